package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

const (
	KeyVerificationEmail     = "verification_email"
	KeyRegistrationTimestamp = "registration_timestamp"
	KeyMessages              = "messages"
)

// MessageTTL bounds how long an unread flash message is kept.
const MessageTTL = time.Hour

var ErrNoSession = errors.New("session id is required")

// Store is a key-value store scoped to a session id. Every key carries its
// own TTL.
type Store interface {
	Get(ctx context.Context, sid, key string) (string, bool, error)
	Set(ctx context.Context, sid, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, sid string, keys ...string) error
	Clear(ctx context.Context, sid string) error
}

type Message struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

const (
	LevelSuccess = "success"
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// AddMessage appends a flash message that survives until the next PopMessages.
func AddMessage(ctx context.Context, store Store, sid, level, text string, ttl time.Duration) error {
	msgs, err := readMessages(ctx, store, sid)
	if err != nil {
		return err
	}
	msgs = append(msgs, Message{Level: level, Text: text})
	raw, err := json.Marshal(msgs)
	if err != nil {
		return err
	}
	return store.Set(ctx, sid, KeyMessages, string(raw), ttl)
}

func PopMessages(ctx context.Context, store Store, sid string) ([]Message, error) {
	msgs, err := readMessages(ctx, store, sid)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return []Message{}, nil
	}
	if err := store.Delete(ctx, sid, KeyMessages); err != nil {
		return nil, err
	}
	return msgs, nil
}

// PeekMessages returns the pending flash messages without draining them.
func PeekMessages(ctx context.Context, store Store, sid string) ([]Message, error) {
	msgs, err := readMessages(ctx, store, sid)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		return []Message{}, nil
	}
	return msgs, nil
}

func readMessages(ctx context.Context, store Store, sid string) ([]Message, error) {
	raw, ok, err := store.Get(ctx, sid, KeyMessages)
	if err != nil || !ok || raw == "" {
		return nil, err
	}
	var msgs []Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		// Drop unreadable payloads rather than failing the request.
		return nil, nil
	}
	return msgs, nil
}
