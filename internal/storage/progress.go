package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// LevelProgress tracks a member's message XP within a guild.
type LevelProgress struct {
	GuildID       string
	UserID        string
	XP            int64
	Level         int
	Messages      int64
	LastMessageAt time.Time
}

// GetLevel returns the stored progress, or a fresh zero record when the
// member has never earned XP.
func (s *Store) GetLevel(ctx context.Context, guildID, userID string) (LevelProgress, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT xp, level, messages, last_message_at FROM levels WHERE guild_id = ? AND user_id = ?
	`, guildID, userID)

	progress := LevelProgress{GuildID: guildID, UserID: userID}
	var last int64
	if err := row.Scan(&progress.XP, &progress.Level, &progress.Messages, &last); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return progress, nil
		}
		return LevelProgress{}, err
	}
	progress.LastMessageAt = time.Unix(last, 0)
	return progress, nil
}

func (s *Store) UpsertLevel(ctx context.Context, p LevelProgress) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO levels (guild_id, user_id, xp, level, messages, last_message_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id, user_id) DO UPDATE SET
			xp = excluded.xp,
			level = excluded.level,
			messages = excluded.messages,
			last_message_at = excluded.last_message_at
	`, p.GuildID, p.UserID, p.XP, p.Level, p.Messages, p.LastMessageAt.Unix())
	return err
}

func (s *Store) TopLevels(ctx context.Context, guildID string, limit int) ([]LevelProgress, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, xp, level, messages, last_message_at FROM levels
		WHERE guild_id = ?
		ORDER BY xp DESC
		LIMIT ?
	`, guildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var top []LevelProgress
	for rows.Next() {
		progress := LevelProgress{GuildID: guildID}
		var last int64
		if err := rows.Scan(&progress.UserID, &progress.XP, &progress.Level, &progress.Messages, &last); err != nil {
			return nil, err
		}
		progress.LastMessageAt = time.Unix(last, 0)
		top = append(top, progress)
	}
	return top, rows.Err()
}

func (s *Store) GetReputation(ctx context.Context, guildID, userID string) (int64, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT points FROM reputation WHERE guild_id = ? AND user_id = ?
	`, guildID, userID)
	var points int64
	if err := row.Scan(&points); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return points, nil
}

// AddReputation records the giving event and increments the receiver's
// points in one transaction. Returns the receiver's new total.
func (s *Store) AddReputation(ctx context.Context, guildID, giverID, receiverID string, at time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO rep_events (guild_id, giver_id, receiver_id, created_at) VALUES (?, ?, ?, ?)
	`, guildID, giverID, receiverID, at.Unix()); err != nil {
		return 0, err
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO reputation (guild_id, user_id, points) VALUES (?, ?, 1)
		ON CONFLICT(guild_id, user_id) DO UPDATE SET points = points + 1
	`, guildID, receiverID); err != nil {
		return 0, err
	}

	row := tx.QueryRowContext(ctx, `
		SELECT points FROM reputation WHERE guild_id = ? AND user_id = ?
	`, guildID, receiverID)
	var points int64
	if err = row.Scan(&points); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return points, nil
}

// LastRepGiven returns when the giver last gave reputation to the receiver
// in this guild, or the zero time when they never have.
func (s *Store) LastRepGiven(ctx context.Context, guildID, giverID, receiverID string) (time.Time, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT created_at FROM rep_events
		WHERE guild_id = ? AND giver_id = ? AND receiver_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, guildID, giverID, receiverID)
	var created int64
	if err := row.Scan(&created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return time.Unix(created, 0), nil
}

func (s *Store) CountRepGivenSince(ctx context.Context, guildID, giverID string, since time.Time) (int, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM rep_events WHERE guild_id = ? AND giver_id = ? AND created_at >= ?
	`, guildID, giverID, since.Unix())
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) TopReputation(ctx context.Context, guildID string, limit int) (map[string]int64, []string, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, points FROM reputation
		WHERE guild_id = ?
		ORDER BY points DESC, user_id
		LIMIT ?
	`, guildID, limit)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	points := make(map[string]int64)
	var order []string
	for rows.Next() {
		var userID string
		var p int64
		if err := rows.Scan(&userID, &p); err != nil {
			return nil, nil, err
		}
		points[userID] = p
		order = append(order, userID)
	}
	return points, order, rows.Err()
}
