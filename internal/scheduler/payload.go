package scheduler

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
)

// GiveawayPayload describes what a giveaway hands out when it ends.
type GiveawayPayload struct {
	Prize   string `json:"prize"`
	Winners int    `json:"winners"`
}

// ReminderPayload carries who to ping and with what.
type ReminderPayload struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// PollPayload lists the question and its choices; votes reference choices by
// index.
type PollPayload struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

func EncodeGiveaway(p GiveawayPayload) (string, error) { return encodePayload(p) }
func EncodeReminder(p ReminderPayload) (string, error) { return encodePayload(p) }
func EncodePoll(p PollPayload) (string, error)         { return encodePayload(p) }

func DecodeGiveaway(raw string) (GiveawayPayload, error) {
	var p GiveawayPayload
	err := decodePayload(raw, &p)
	return p, err
}

func DecodeReminder(raw string) (ReminderPayload, error) {
	var p ReminderPayload
	err := decodePayload(raw, &p)
	return p, err
}

func DecodePoll(raw string) (PollPayload, error) {
	var p PollPayload
	err := decodePayload(raw, &p)
	return p, err
}

func encodePayload(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodePayload(raw string, v any) error {
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("malformed action payload %q: %w", raw, err)
	}
	return nil
}

// DrawWinners picks count distinct entries at random. Fewer entries than
// requested winners means everyone wins.
func DrawWinners(entries []string, count int) []string {
	if count <= 0 || len(entries) == 0 {
		return nil
	}
	shuffled := append([]string(nil), entries...)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if count > len(shuffled) {
		count = len(shuffled)
	}
	return shuffled[:count]
}
