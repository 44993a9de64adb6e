package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Scheduled action kinds.
const (
	ActionGiveaway = "giveaway"
	ActionReminder = "reminder"
	ActionPoll     = "poll"
)

// ScheduledAction is a durable row in the action registry. The poller fires a
// row once its target time has passed, then either advances the target by the
// repeat interval or deactivates the row.
type ScheduledAction struct {
	ID         int64
	Kind       string
	GuildID    string
	ChannelID  string
	MessageID  string
	CreatorID  string
	Payload    string
	TargetTime time.Time
	Repeat     time.Duration
	Active     bool
	CreatedAt  time.Time
}

func (a ScheduledAction) Recurring() bool { return a.Repeat > 0 }

func (s *Store) CreateAction(ctx context.Context, a ScheduledAction) (int64, error) {
	var repeat sql.NullInt64
	if a.Repeat > 0 {
		repeat = sql.NullInt64{Int64: int64(a.Repeat / time.Second), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_actions (kind, guild_id, channel_id, message_id, creator_id, payload, target_time, repeat_seconds, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
	`, a.Kind, a.GuildID, a.ChannelID, a.MessageID, a.CreatorID, a.Payload, a.TargetTime.Unix(), repeat, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const actionColumns = `id, kind, guild_id, channel_id, message_id, creator_id, payload, target_time, repeat_seconds, active, created_at`

func scanAction(row interface{ Scan(dest ...any) error }) (ScheduledAction, error) {
	var a ScheduledAction
	var target, created int64
	var repeat sql.NullInt64
	var active int
	if err := row.Scan(&a.ID, &a.Kind, &a.GuildID, &a.ChannelID, &a.MessageID, &a.CreatorID, &a.Payload, &target, &repeat, &active, &created); err != nil {
		return ScheduledAction{}, err
	}
	a.TargetTime = time.Unix(target, 0)
	if repeat.Valid {
		a.Repeat = time.Duration(repeat.Int64) * time.Second
	}
	a.Active = active != 0
	a.CreatedAt = time.Unix(created, 0)
	return a, nil
}

func (s *Store) GetAction(ctx context.Context, id int64) (ScheduledAction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+actionColumns+` FROM scheduled_actions WHERE id = ?`, id)
	a, err := scanAction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ScheduledAction{}, ErrNotFound
		}
		return ScheduledAction{}, err
	}
	return a, nil
}

// ActionByMessageID resolves the active action whose announcement message the
// given ID belongs to. Reaction handlers use this to route entry events.
func (s *Store) ActionByMessageID(ctx context.Context, messageID string) (ScheduledAction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+actionColumns+` FROM scheduled_actions WHERE message_id = ? AND active = 1
	`, messageID)
	a, err := scanAction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ScheduledAction{}, ErrNotFound
		}
		return ScheduledAction{}, err
	}
	return a, nil
}

func (s *Store) ListActiveActions(ctx context.Context, guildID string) ([]ScheduledAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+actionColumns+` FROM scheduled_actions WHERE guild_id = ? AND active = 1 ORDER BY target_time
	`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []ScheduledAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// DueActions returns active actions whose target time is at or before now,
// oldest first. Rows stay untouched; the poller advances or deactivates them
// after handling.
func (s *Store) DueActions(ctx context.Context, now time.Time) ([]ScheduledAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+actionColumns+` FROM scheduled_actions WHERE active = 1 AND target_time <= ? ORDER BY target_time
	`, now.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []ScheduledAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

func (s *Store) RescheduleAction(ctx context.Context, id int64, next time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_actions SET target_time = ? WHERE id = ?
	`, next.Unix(), id)
	return err
}

func (s *Store) DeactivateAction(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE scheduled_actions SET active = 0 WHERE id = ?`, id)
	return err
}

func (s *Store) SetActionMessageID(ctx context.Context, id int64, messageID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE scheduled_actions SET message_id = ? WHERE id = ?`, messageID, id)
	return err
}

// DeleteAction removes a cancelled action together with its entries and
// votes. Completed actions are deactivated instead so their history stays.
func (s *Store) DeleteAction(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var res sql.Result
	res, err = tx.ExecContext(ctx, `DELETE FROM scheduled_actions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		err = ErrNotFound
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM giveaway_entries WHERE action_id = ?`, id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM poll_votes WHERE action_id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// PurgeInactiveActions deletes one-shot rows that completed before the
// cutoff. Recurring actions and their histories are left alone.
func (s *Store) PurgeInactiveActions(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM scheduled_actions WHERE active = 0 AND target_time < ?
	`, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// AddGiveawayEntry records an entry. Returns false when the user already
// entered this giveaway.
func (s *Store) AddGiveawayEntry(ctx context.Context, actionID int64, userID string) (bool, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO giveaway_entries (action_id, user_id, created_at) VALUES (?, ?, ?)
	`, actionID, userID, time.Now().Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) RemoveGiveawayEntry(ctx context.Context, actionID int64, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM giveaway_entries WHERE action_id = ? AND user_id = ?
	`, actionID, userID)
	return err
}

func (s *Store) ListGiveawayEntries(ctx context.Context, actionID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM giveaway_entries WHERE action_id = ? ORDER BY created_at, user_id
	`, actionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		users = append(users, userID)
	}
	return users, rows.Err()
}

func (s *Store) CountGiveawayEntries(ctx context.Context, actionID int64) (int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM giveaway_entries WHERE action_id = ?`, actionID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// AddPollVote records a vote, replacing the user's previous choice if any.
func (s *Store) AddPollVote(ctx context.Context, actionID int64, userID string, optionIndex int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO poll_votes (action_id, user_id, option_index, created_at) VALUES (?, ?, ?, ?)
	`, actionID, userID, optionIndex, time.Now().Unix())
	return err
}

func (s *Store) TallyPollVotes(ctx context.Context, actionID int64) (map[int]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT option_index, COUNT(*) FROM poll_votes WHERE action_id = ? GROUP BY option_index
	`, actionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tally := make(map[int]int)
	for rows.Next() {
		var option, count int
		if err := rows.Scan(&option, &count); err != nil {
			return nil, err
		}
		tally[option] = count
	}
	return tally, rows.Err()
}
