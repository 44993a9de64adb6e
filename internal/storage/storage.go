package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

var (
	// ErrNotFound is returned when an account, product, or scheduled action
	// does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateAccount is returned when an account handle already exists.
	// Handle comparison is byte-exact.
	ErrDuplicateAccount = errors.New("account already exists")
)

type Store struct {
	db *sql.DB
}

type AdminLog struct {
	ID        int64
	AdminID   string
	Action    string
	Target    string
	Details   string
	CreatedAt time.Time
}

type BlacklistEntry struct {
	UserID    string
	Reason    string
	AddedBy   string
	CreatedAt time.Time
}

func New(dbPath string) (*Store, error) {
	dsn := dbPath
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// sqlite is single-writer; one pooled connection also keeps :memory:
	// databases from fanning out across pool connections.
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Store) Migrate() error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join("migrations", file))
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			if isIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

func (s *Store) GetSetting(ctx context.Context, key, fallback string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM bot_settings WHERE key = ?`, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fallback, nil
		}
		return "", err
	}
	return value, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bot_settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().Unix())
	return err
}

func (s *Store) AddBlacklist(ctx context.Context, userID, reason, addedBy string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blacklist (user_id, reason, added_by, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET reason = excluded.reason, added_by = excluded.added_by
	`, userID, reason, addedBy, time.Now().Unix())
	return err
}

func (s *Store) RemoveBlacklist(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM blacklist WHERE user_id = ?`, userID)
	return err
}

func (s *Store) IsBlacklisted(ctx context.Context, userID string) (bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT 1 FROM blacklist WHERE user_id = ?`, userID)
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) ListBlacklist(ctx context.Context) ([]BlacklistEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, reason, added_by, created_at FROM blacklist ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []BlacklistEntry
	for rows.Next() {
		var entry BlacklistEntry
		var created int64
		if err := rows.Scan(&entry.UserID, &entry.Reason, &entry.AddedBy, &created); err != nil {
			return nil, err
		}
		entry.CreatedAt = time.Unix(created, 0)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) AddAdminLog(ctx context.Context, log AdminLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admin_logs (admin_id, action, target, details, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, log.AdminID, log.Action, log.Target, log.Details, log.CreatedAt.Unix())
	return err
}

func (s *Store) ListAdminLogs(ctx context.Context, since time.Time) ([]AdminLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, admin_id, action, target, details, created_at
		FROM admin_logs
		WHERE created_at >= ?
		ORDER BY created_at DESC
	`, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []AdminLog
	for rows.Next() {
		var log AdminLog
		var created int64
		if err := rows.Scan(&log.ID, &log.AdminID, &log.Action, &log.Target, &log.Details, &created); err != nil {
			return nil, err
		}
		log.CreatedAt = time.Unix(created, 0)
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func (s *Store) CleanupAdminLogs(ctx context.Context, retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	_, err := s.db.ExecContext(ctx, `DELETE FROM admin_logs WHERE created_at < ?`, cutoff.Unix())
	return err
}

func (s *Store) AddDomainBlock(ctx context.Context, guildID, domain string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO domain_blocklist (guild_id, domain) VALUES (?, ?)`, guildID, strings.ToLower(domain))
	return err
}

func (s *Store) RemoveDomainBlock(ctx context.Context, guildID, domain string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM domain_blocklist WHERE guild_id = ? AND domain = ?`, guildID, strings.ToLower(domain))
	return err
}

func (s *Store) ListDomainBlock(ctx context.Context, guildID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT domain FROM domain_blocklist WHERE guild_id = ? ORDER BY domain`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var domain string
		if err := rows.Scan(&domain); err != nil {
			return nil, err
		}
		domains = append(domains, domain)
	}
	return domains, rows.Err()
}

func (s *Store) AddDomainAllow(ctx context.Context, guildID, domain string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO domain_allowlist (guild_id, domain) VALUES (?, ?)`, guildID, strings.ToLower(domain))
	return err
}

func (s *Store) RemoveDomainAllow(ctx context.Context, guildID, domain string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM domain_allowlist WHERE guild_id = ? AND domain = ?`, guildID, strings.ToLower(domain))
	return err
}

func (s *Store) ListDomainAllow(ctx context.Context, guildID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT domain FROM domain_allowlist WHERE guild_id = ? ORDER BY domain`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var domain string
		if err := rows.Scan(&domain); err != nil {
			return nil, err
		}
		domains = append(domains, domain)
	}
	return domains, rows.Err()
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "duplicate column name") || strings.Contains(message, "already exists")
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
