// Package api exposes HTTP handlers for the activity notifier.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"example.com/activityfeed/internal/auth"
	"example.com/activityfeed/internal/domain"
	"example.com/activityfeed/internal/notifier"
	"example.com/activityfeed/internal/notify"
	"example.com/activityfeed/internal/persistence"
	"example.com/activityfeed/internal/presentation"
)

// SessionHeader carries the visitor session that display clients pass as ?session= on the
// notification websocket.
const SessionHeader = "X-Session-ID"

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ActivityReader pages through the activity log.
type ActivityReader interface {
	ListRecent(ctx context.Context, cursor *domain.Cursor, limit int) ([]domain.ActivityLogEntry, *domain.Cursor, error)
}

// Notifier is the notification subsystem as seen by HTTP callers.
type Notifier interface {
	LogUserActivity(actionType domain.ActionType, actx notifier.ActivityContext)
	Snapshot() notify.Snapshot
	Degraded() bool
}

// Handler coordinates HTTP requests with the activity log and the notifier.
type Handler struct {
	log      ActivityReader
	notifier Notifier
	display  http.Handler
	clock    clockwork.Clock
}

// NewHandler builds a Handler. display serves the notification websocket and may be nil
// when notifications are only logged.
func NewHandler(log ActivityReader, n Notifier, display http.Handler) *Handler {
	return &Handler{log: log, notifier: n, display: display, clock: clockwork.NewRealClock()}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/activity", h.activity)
	mux.HandleFunc("/v1/notifications/state", h.notificationState)
	if h.display != nil {
		mux.Handle("/v1/notifications/ws", h.display)
	}
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) activity(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.logActivity(w, r)
	case http.MethodGet:
		h.listActivity(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) logActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeActivityWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope activity:write required")
		return
	}

	var req LogActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if strings.TrimSpace(req.ActionType) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "action_type is required")
		return
	}

	sessionID := strings.TrimSpace(r.Header.Get(SessionHeader))
	if sessionID == "" {
		sessionID = claims.Subject
	}

	actionType := domain.ParseActionType(req.ActionType)
	h.notifier.LogUserActivity(actionType, notifier.ActivityContext{
		SessionID:      sessionID,
		ActorName:      req.ActorName,
		ActorAvatarURL: req.ActorAvatarURL,
		SubjectName:    req.SubjectName,
		Location:       req.Location,
	})

	writeJSON(w, http.StatusAccepted, LogActivityResponse{ActionType: string(actionType), Status: "accepted"})
}

func (h *Handler) listActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeActivityRead) && !claims.HasScope(auth.ScopeActivityWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope activity:read required")
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = min(parsed, maxListLimit)
		}
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	entries, next, err := h.log.ListRecent(r.Context(), cursor, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]ActivityView, 0, len(entries))
	for _, entry := range entries {
		items = append(items, toActivityView(entry))
	}
	writeJSON(w, http.StatusOK, ListActivityResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) notificationState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	snap := h.notifier.Snapshot()
	resp := NotificationStateResponse{
		State:       string(snap.State),
		Source:      string(snap.Source),
		QueueLength: snap.QueueLen,
		Degraded:    h.notifier.Degraded(),
	}
	if snap.Current != nil {
		n := presentation.Compose(*snap.Current, h.clock.Now())
		resp.Current = &n
	}
	writeJSON(w, http.StatusOK, resp)
}

// LogActivityRequest is the payload for POST /v1/activity.
type LogActivityRequest struct {
	ActionType     string `json:"action_type"`
	ActorName      string `json:"actor_name"`
	ActorAvatarURL string `json:"actor_avatar_url"`
	SubjectName    string `json:"subject_name"`
	Location       string `json:"location"`
}

// LogActivityResponse acknowledges a queued activity write.
type LogActivityResponse struct {
	ActionType string `json:"action_type"`
	Status     string `json:"status"`
}

// ActivityView exposes an activity log row.
type ActivityView struct {
	ID             string    `json:"id"`
	ActionType     string    `json:"action_type"`
	Verb           string    `json:"verb"`
	Icon           string    `json:"icon"`
	ActorName      string    `json:"actor_name,omitempty"`
	ActorAvatarURL string    `json:"actor_avatar_url,omitempty"`
	SubjectName    string    `json:"subject_name,omitempty"`
	Location       string    `json:"location,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ListActivityResponse packages list results.
type ListActivityResponse struct {
	Items      []ActivityView `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// NotificationStateResponse describes the display slot.
type NotificationStateResponse struct {
	State       string                     `json:"state"`
	Source      string                     `json:"source,omitempty"`
	QueueLength int                        `json:"queue_length"`
	Degraded    bool                       `json:"degraded"`
	Current     *presentation.Notification `json:"current,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toActivityView(entry domain.ActivityLogEntry) ActivityView {
	style := domain.LookupAction(entry.ActionType)
	return ActivityView{
		ID:             entry.ID,
		ActionType:     string(entry.ActionType),
		Verb:           style.Verb,
		Icon:           style.Icon,
		ActorName:      entry.ActorName,
		ActorAvatarURL: entry.ActorAvatarURL,
		SubjectName:    entry.SubjectName,
		Location:       entry.Location,
		CreatedAt:      entry.CreatedAt,
	}
}
