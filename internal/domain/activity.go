package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrMissingOccurredAt is returned when a record carries no timestamp.
	ErrMissingOccurredAt = errors.New("activity record missing occurred_at")
	// ErrInvalidOccurredAt is returned when a record timestamp cannot be parsed.
	ErrInvalidOccurredAt = errors.New("activity record has unparseable occurred_at")
	// ErrMissingActionType is returned when a record carries no action tag.
	ErrMissingActionType = errors.New("activity record missing action_type")
)

const (
	// ActivityLogTopic is the push topic carrying newly inserted activity log records.
	ActivityLogTopic = "activity_log"
	// EventActivityLogged is the event type stamped on published activity log records.
	EventActivityLogged = "activity_log.created"
)

// ActivityEvent is the immutable unit flowing through the notification pipeline.
// Optional fields are left empty; rendering defaults are applied by the presentation layer.
type ActivityEvent struct {
	ID             string
	ActionType     ActionType
	ActorName      string
	ActorAvatarURL string
	SubjectName    string
	Location       string
	SessionID      string
	OccurredAt     time.Time
}

// Validate reports whether the event may enter the notification pipeline.
func (e ActivityEvent) Validate() error {
	if e.OccurredAt.IsZero() {
		return ErrMissingOccurredAt
	}
	if strings.TrimSpace(string(e.ActionType)) == "" {
		return ErrMissingActionType
	}
	return nil
}

// Elapsed returns the time passed since the event occurred, clamped at zero for future timestamps.
func (e ActivityEvent) Elapsed(now time.Time) time.Duration {
	d := now.Sub(e.OccurredAt)
	if d < 0 {
		return 0
	}
	return d
}

// RawRecord is the boundary form of an activity log row as read from the log or a push channel.
type RawRecord struct {
	ID             string `json:"id,omitempty"`
	ActionType     string `json:"action_type"`
	ActorName      string `json:"actor_name,omitempty"`
	ActorAvatarURL string `json:"actor_avatar_url,omitempty"`
	SubjectName    string `json:"subject_name,omitempty"`
	Location       string `json:"location,omitempty"`
	SessionID      string `json:"session_id,omitempty"`
	CreatedAt      string `json:"created_at"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
}

// DecodeRecord validates a raw record and converts it into an ActivityEvent.
func DecodeRecord(rec RawRecord) (ActivityEvent, error) {
	if strings.TrimSpace(rec.ActionType) == "" {
		return ActivityEvent{}, ErrMissingActionType
	}
	raw := strings.TrimSpace(rec.CreatedAt)
	if raw == "" {
		return ActivityEvent{}, ErrMissingOccurredAt
	}
	occurredAt, err := parseTimestamp(raw)
	if err != nil {
		return ActivityEvent{}, fmt.Errorf("%w: %q", ErrInvalidOccurredAt, raw)
	}

	return ActivityEvent{
		ID:             rec.ID,
		ActionType:     ParseActionType(rec.ActionType),
		ActorName:      strings.TrimSpace(rec.ActorName),
		ActorAvatarURL: strings.TrimSpace(rec.ActorAvatarURL),
		SubjectName:    strings.TrimSpace(rec.SubjectName),
		Location:       strings.TrimSpace(rec.Location),
		SessionID:      rec.SessionID,
		OccurredAt:     occurredAt.UTC(),
	}, nil
}

func parseTimestamp(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		ts, err := time.Parse(layout, value)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// ActivityLogEntry is an activity log row as stored in PostgreSQL.
type ActivityLogEntry struct {
	ID             string
	ActionType     ActionType
	ActorName      string
	ActorAvatarURL string
	SubjectName    string
	Location       string
	SessionID      string
	CreatedAt      time.Time
}

// Record converts the entry into its boundary representation.
func (e ActivityLogEntry) Record() RawRecord {
	return RawRecord{
		ID:             e.ID,
		ActionType:     string(e.ActionType),
		ActorName:      e.ActorName,
		ActorAvatarURL: e.ActorAvatarURL,
		SubjectName:    e.SubjectName,
		Location:       e.Location,
		SessionID:      e.SessionID,
		CreatedAt:      e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
