package automod

import (
	"math"
	"sort"
	"sync"
	"time"
)

// ScoreConfig tunes the decaying violation score. Zero values fall back to
// half a point per minute and a one hour memory.
type ScoreConfig struct {
	DecayPerMinute float64
	TTL            time.Duration
}

type scoreEntry struct {
	score      float64
	lastUpdate time.Time
}

// ScoreEngine keeps a per-member violation score that decays over time, so
// one bad evening does not follow a member for a month.
type ScoreEngine struct {
	mu      sync.Mutex
	cfg     ScoreConfig
	clock   Clock
	entries map[string]*scoreEntry
}

type ScoreItem struct {
	UserID string
	Score  float64
}

func NewScoreEngine(cfg ScoreConfig) *ScoreEngine {
	if cfg.DecayPerMinute <= 0 {
		cfg.DecayPerMinute = 0.5
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	return &ScoreEngine{
		cfg:     cfg,
		clock:   realClock{},
		entries: make(map[string]*scoreEntry),
	}
}

func (e *ScoreEngine) WithClock(clock Clock) {
	e.clock = clock
}

func (e *ScoreEngine) Add(guildID, userID string, delta float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := guildID + ":" + userID
	now := e.clock.Now()

	item := e.entries[key]
	if item == nil {
		item = &scoreEntry{lastUpdate: now}
		e.entries[key] = item
	}

	item.score = e.decay(item.score, item.lastUpdate, now)
	item.score = math.Max(0, item.score+delta)
	item.lastUpdate = now
	return item.score
}

func (e *ScoreEngine) Score(guildID, userID string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := guildID + ":" + userID
	item := e.entries[key]
	if item == nil {
		return 0
	}

	now := e.clock.Now()
	if now.Sub(item.lastUpdate) > e.cfg.TTL {
		delete(e.entries, key)
		return 0
	}
	item.score = e.decay(item.score, item.lastUpdate, now)
	item.lastUpdate = now
	return item.score
}

func (e *ScoreEngine) Reset(guildID, userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.entries, guildID+":"+userID)
}

// Top returns the highest-scoring members of a guild, expired entries
// dropped along the way.
func (e *ScoreEngine) Top(guildID string, limit int) []ScoreItem {
	if limit <= 0 {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	prefix := guildID + ":"
	items := make([]ScoreItem, 0, limit)
	for key, item := range e.entries {
		if len(key) <= len(prefix) || key[:len(prefix)] != prefix {
			continue
		}
		if now.Sub(item.lastUpdate) > e.cfg.TTL {
			delete(e.entries, key)
			continue
		}
		item.score = e.decay(item.score, item.lastUpdate, now)
		item.lastUpdate = now
		if item.score <= 0 {
			continue
		}
		items = append(items, ScoreItem{UserID: key[len(prefix):], Score: item.score})
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

func (e *ScoreEngine) decay(score float64, lastUpdate, now time.Time) float64 {
	minutes := now.Sub(lastUpdate).Minutes()
	if minutes <= 0 {
		return score
	}
	decayed := score - minutes*e.cfg.DecayPerMinute
	if decayed < 0 {
		return 0
	}
	return decayed
}
