// Package presentation turns activity events into display notifications and delivers them to a
// display surface.
package presentation

import (
	"fmt"
	"strings"
	"time"

	"example.com/activityfeed/internal/domain"
)

// Rendering defaults for optional event fields.
const (
	DefaultActorName   = "Someone"
	DefaultAvatarURL   = "/static/img/avatar-placeholder.svg"
	DefaultSubjectName = "a vehicle"
	DefaultLocation    = "nearby"
)

// Notification is the rendered form of an activity event.
type Notification struct {
	ID             string    `json:"id,omitempty"`
	ActionType     string    `json:"action_type"`
	SessionID      string    `json:"session_id,omitempty"`
	Verb           string    `json:"verb"`
	Icon           string    `json:"icon"`
	ActorName      string    `json:"actor_name"`
	ActorAvatarURL string    `json:"actor_avatar_url"`
	SubjectName    string    `json:"subject_name"`
	Location       string    `json:"location"`
	Message        string    `json:"message"`
	TimeAgo        string    `json:"time_ago"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Compose builds the notification for ev as seen at now. Every field has a default, so any
// event renders.
func Compose(ev domain.ActivityEvent, now time.Time) Notification {
	style := domain.LookupAction(ev.ActionType)
	n := Notification{
		ID:             ev.ID,
		ActionType:     string(ev.ActionType),
		SessionID:      ev.SessionID,
		Verb:           style.Verb,
		Icon:           style.Icon,
		ActorName:      orDefault(ev.ActorName, DefaultActorName),
		ActorAvatarURL: orDefault(ev.ActorAvatarURL, DefaultAvatarURL),
		SubjectName:    orDefault(ev.SubjectName, DefaultSubjectName),
		Location:       orDefault(ev.Location, DefaultLocation),
		TimeAgo:        TimeAgo(ev.Elapsed(now)),
		OccurredAt:     ev.OccurredAt,
	}
	n.Message = fmt.Sprintf("%s from %s %s %s", n.ActorName, n.Location, n.Verb, n.SubjectName)
	return n
}

// TimeAgo formats an elapsed duration. Negative and sub-minute values read "just now".
func TimeAgo(elapsed time.Duration) string {
	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return fmt.Sprintf("%d min ago", int(elapsed/time.Minute))
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("%d h ago", int(elapsed/time.Hour))
	default:
		return fmt.Sprintf("%d d ago", int(elapsed/(24*time.Hour)))
	}
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
