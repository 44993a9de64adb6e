package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

type Warning struct {
	ID        int64
	GuildID   string
	UserID    string
	Reason    string
	IssuedBy  string
	CreatedAt time.Time
}

// AutomodSettings holds per-guild filter thresholds. Missing rows resolve to
// DefaultAutomodSettings, so guilds work without any setup.
type AutomodSettings struct {
	GuildID        string
	Enabled        bool
	SpamMessages   int
	SpamWindow     time.Duration
	CapsRatio      float64
	CapsMinLength  int
	BannedWords    []string
	LinkFilter     bool
	WarnThreshold  int
	TimeoutMinutes int
}

func DefaultAutomodSettings(guildID string) AutomodSettings {
	return AutomodSettings{
		GuildID:        guildID,
		Enabled:        true,
		SpamMessages:   6,
		SpamWindow:     8 * time.Second,
		CapsRatio:      0.8,
		CapsMinLength:  12,
		WarnThreshold:  3,
		TimeoutMinutes: 10,
	}
}

func (s *Store) AddWarning(ctx context.Context, w Warning) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO warnings (guild_id, user_id, reason, issued_by, created_at) VALUES (?, ?, ?, ?, ?)
	`, w.GuildID, w.UserID, w.Reason, w.IssuedBy, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) CountWarnings(ctx context.Context, guildID, userID string) (int, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM warnings WHERE guild_id = ? AND user_id = ?
	`, guildID, userID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) ListWarnings(ctx context.Context, guildID, userID string, limit int) ([]Warning, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, user_id, reason, issued_by, created_at
		FROM warnings
		WHERE guild_id = ? AND user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, guildID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var warnings []Warning
	for rows.Next() {
		var w Warning
		var created int64
		if err := rows.Scan(&w.ID, &w.GuildID, &w.UserID, &w.Reason, &w.IssuedBy, &created); err != nil {
			return nil, err
		}
		w.CreatedAt = time.Unix(created, 0)
		warnings = append(warnings, w)
	}
	return warnings, rows.Err()
}

func (s *Store) ClearWarnings(ctx context.Context, guildID, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM warnings WHERE guild_id = ? AND user_id = ?
	`, guildID, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) GetAutomodSettings(ctx context.Context, guildID string) (AutomodSettings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT enabled, spam_messages, spam_window_seconds, caps_ratio, caps_min_length, banned_words, link_filter, warn_threshold, timeout_minutes
		FROM automod_settings
		WHERE guild_id = ?
	`, guildID)

	settings := AutomodSettings{GuildID: guildID}
	var enabled, linkFilter, windowSeconds int
	var banned string
	err := row.Scan(&enabled, &settings.SpamMessages, &windowSeconds, &settings.CapsRatio, &settings.CapsMinLength, &banned, &linkFilter, &settings.WarnThreshold, &settings.TimeoutMinutes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DefaultAutomodSettings(guildID), nil
		}
		return AutomodSettings{}, err
	}
	settings.Enabled = enabled != 0
	settings.SpamWindow = time.Duration(windowSeconds) * time.Second
	settings.LinkFilter = linkFilter != 0
	settings.BannedWords = splitWords(banned)
	return settings, nil
}

func (s *Store) UpsertAutomodSettings(ctx context.Context, settings AutomodSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO automod_settings (guild_id, enabled, spam_messages, spam_window_seconds, caps_ratio, caps_min_length, banned_words, link_filter, warn_threshold, timeout_minutes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			enabled = excluded.enabled,
			spam_messages = excluded.spam_messages,
			spam_window_seconds = excluded.spam_window_seconds,
			caps_ratio = excluded.caps_ratio,
			caps_min_length = excluded.caps_min_length,
			banned_words = excluded.banned_words,
			link_filter = excluded.link_filter,
			warn_threshold = excluded.warn_threshold,
			timeout_minutes = excluded.timeout_minutes
	`, settings.GuildID, boolToInt(settings.Enabled), settings.SpamMessages, int(settings.SpamWindow/time.Second),
		settings.CapsRatio, settings.CapsMinLength, strings.Join(settings.BannedWords, ","), boolToInt(settings.LinkFilter),
		settings.WarnThreshold, settings.TimeoutMinutes)
	return err
}

func splitWords(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	words := make([]string, 0, len(parts))
	for _, part := range parts {
		if word := strings.TrimSpace(part); word != "" {
			words = append(words, word)
		}
	}
	if len(words) == 0 {
		return nil
	}
	return words
}
