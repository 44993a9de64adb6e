package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"storekeeper/internal/analytics"
	"storekeeper/internal/config"
	"storekeeper/internal/currency"
)

// Server exposes a health probe and a read-only stats endpoint.
type Server struct {
	server    *http.Server
	analytics *analytics.Service
	rates     currency.Rates
	logger    *zap.Logger
}

func New(analyticsService *analytics.Service, rates currency.Rates, logger *zap.Logger, cfg config.WebConfig) *Server {
	s := &Server{
		analytics: analyticsService,
		rates:     rates,
		logger:    logger,
	}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/api/stats", s.handleStats).Methods(http.MethodGet)

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Run blocks until the server stops. A clean shutdown returns nil.
func (s *Server) Run() error {
	s.logger.Info("web server listening", zap.String("addr", s.server.Addr))
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type productSales struct {
	Code string `json:"code"`
	Sold int    `json:"sold"`
}

type statsResponse struct {
	Accounts      int            `json:"accounts"`
	Holdings      string         `json:"holdings"`
	HoldingsRaw   int64          `json:"holdings_copper"`
	ActiveTraders int            `json:"active_traders_24h"`
	Purchases     int            `json:"purchases_24h"`
	Revenue       int64          `json:"revenue_copper_24h"`
	TopProducts   []productSales `json:"top_products"`
	Transactions  map[string]int `json:"transactions_24h"`
	ActiveActions map[string]int `json:"active_actions"`
	Warnings      int            `json:"warnings_24h"`
	AdminActions  int            `json:"admin_actions_24h"`
	Messages      int64          `json:"messages_total"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	report, err := s.analytics.Report(r.Context(), time.Now().Add(-24*time.Hour))
	if err != nil {
		s.logger.Error("stats report failed", zap.Error(err))
		http.Error(w, "report failed", http.StatusInternalServerError)
		return
	}

	resp := statsResponse{
		Accounts:      report.Accounts,
		Holdings:      currency.Format(report.TotalHoldings),
		HoldingsRaw:   s.rates.ToCopper(report.TotalHoldings),
		ActiveTraders: report.ActiveTraders,
		Purchases:     report.Purchases,
		Revenue:       report.Revenue,
		TopProducts:   make([]productSales, 0, len(report.TopProducts)),
		Transactions:  report.Transactions,
		ActiveActions: report.ActiveActions,
		Warnings:      report.Warnings,
		AdminActions:  report.AdminActions,
		Messages:      report.Messages,
	}
	for _, item := range report.TopProducts {
		resp.TopProducts = append(resp.TopProducts, productSales{Code: item.Code, Sold: item.Sold})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("stats encode failed", zap.Error(err))
	}
}
