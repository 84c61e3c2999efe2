// Package domain defines the activity model and the activity log workflows.
package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidActivity is returned when a log request fails validation.
var ErrInvalidActivity = errors.New("invalid activity")

// ActivityLog captures persistence operations for the activity log.
type ActivityLog interface {
	Record(ctx context.Context, entry ActivityLogEntry) error
	ListRecent(ctx context.Context, cursor *Cursor, limit int) ([]ActivityLogEntry, *Cursor, error)
}

// Service orchestrates activity log workflows.
type Service struct {
	log ActivityLog
	now func() time.Time
}

// NewService constructs a Service.
func NewService(log ActivityLog) *Service {
	return &Service{log: log, now: time.Now}
}

// LogActivityInput captures a locally performed action.
type LogActivityInput struct {
	ActionType     ActionType
	ActorName      string
	ActorAvatarURL string
	SubjectName    string
	Location       string
	SessionID      string
}

// Cursor models the pagination token.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// LogActivity appends an entry to the activity log.
func (s *Service) LogActivity(ctx context.Context, input LogActivityInput) (*ActivityLogEntry, error) {
	actionType := ParseActionType(string(input.ActionType))
	if actionType == "" {
		return nil, errors.Join(ErrInvalidActivity, ErrMissingActionType)
	}

	entry := ActivityLogEntry{
		ID:             uuid.NewString(),
		ActionType:     actionType,
		ActorName:      strings.TrimSpace(input.ActorName),
		ActorAvatarURL: strings.TrimSpace(input.ActorAvatarURL),
		SubjectName:    strings.TrimSpace(input.SubjectName),
		Location:       strings.TrimSpace(input.Location),
		SessionID:      input.SessionID,
		CreatedAt:      s.now().UTC(),
	}

	if err := s.log.Record(ctx, entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListRecent fetches log entries newest first with cursor pagination.
func (s *Service) ListRecent(ctx context.Context, cursor *Cursor, limit int) ([]ActivityLogEntry, *Cursor, error) {
	return s.log.ListRecent(ctx, cursor, limit)
}
