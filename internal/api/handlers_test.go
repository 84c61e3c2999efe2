package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"example.com/activityfeed/internal/auth"
	"example.com/activityfeed/internal/domain"
	"example.com/activityfeed/internal/notifier"
	"example.com/activityfeed/internal/notify"
	"example.com/activityfeed/internal/persistence"
)

type mockLog struct {
	entries    []domain.ActivityLogEntry
	next       *domain.Cursor
	err        error
	lastCursor *domain.Cursor
	lastLimit  int
}

func (m *mockLog) ListRecent(_ context.Context, cursor *domain.Cursor, limit int) ([]domain.ActivityLogEntry, *domain.Cursor, error) {
	m.lastCursor = cursor
	m.lastLimit = limit
	return m.entries, m.next, m.err
}

type loggedAction struct {
	actionType domain.ActionType
	actx       notifier.ActivityContext
}

type mockNotifier struct {
	logged   []loggedAction
	snapshot notify.Snapshot
	degraded bool
}

func (m *mockNotifier) LogUserActivity(actionType domain.ActionType, actx notifier.ActivityContext) {
	m.logged = append(m.logged, loggedAction{actionType: actionType, actx: actx})
}

func (m *mockNotifier) Snapshot() notify.Snapshot { return m.snapshot }
func (m *mockNotifier) Degraded() bool            { return m.degraded }

func withScopes(req *http.Request, scopes ...string) *http.Request {
	claims := &auth.Claims{
		Subject:   "visitor-1",
		Scopes:    map[string]struct{}{},
		ExpiresAt: time.Now().Add(time.Hour),
	}
	for _, scope := range scopes {
		claims.Scopes[scope] = struct{}{}
	}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

func TestLogActivityAccepted(t *testing.T) {
	n := &mockNotifier{}
	handler := NewHandler(&mockLog{}, n, nil)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	body := `{"action_type":" Reservation ","actor_name":"Ana","subject_name":"a 2021 Civic","location":"Austin"}`
	req := withScopes(httptest.NewRequest(http.MethodPost, "/v1/activity", strings.NewReader(body)), auth.ScopeActivityWrite)
	req.Header.Set(SessionHeader, "tab-42")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	require.Len(t, n.logged, 1)
	require.Equal(t, domain.ActionReservation, n.logged[0].actionType)
	require.Equal(t, "Ana", n.logged[0].actx.ActorName)
	require.Equal(t, "Austin", n.logged[0].actx.Location)
	require.Equal(t, "tab-42", n.logged[0].actx.SessionID)

	var resp LogActivityResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "reservation", resp.ActionType)
	require.Equal(t, "accepted", resp.Status)
}

func TestLogActivityFallsBackToTokenSubject(t *testing.T) {
	n := &mockNotifier{}
	handler := NewHandler(&mockLog{}, n, nil)

	req := withScopes(httptest.NewRequest(http.MethodPost, "/v1/activity", strings.NewReader(`{"action_type":"share"}`)), auth.ScopeActivityWrite)
	rr := httptest.NewRecorder()
	handler.activity(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Len(t, n.logged, 1)
	require.Equal(t, "visitor-1", n.logged[0].actx.SessionID)
}

func TestLogActivityRejections(t *testing.T) {
	n := &mockNotifier{}
	handler := NewHandler(&mockLog{}, n, nil)

	cases := []struct {
		name   string
		body   string
		scopes []string
		claims bool
		want   int
	}{
		{name: "no claims", body: `{"action_type":"share"}`, want: http.StatusUnauthorized},
		{name: "read scope only", body: `{"action_type":"share"}`, claims: true, scopes: []string{auth.ScopeActivityRead}, want: http.StatusForbidden},
		{name: "bad json", body: `{`, claims: true, scopes: []string{auth.ScopeActivityWrite}, want: http.StatusBadRequest},
		{name: "blank action", body: `{"action_type":"  "}`, claims: true, scopes: []string{auth.ScopeActivityWrite}, want: http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/activity", strings.NewReader(tc.body))
			if tc.claims {
				req = withScopes(req, tc.scopes...)
			}
			rr := httptest.NewRecorder()
			handler.activity(rr, req)
			require.Equal(t, tc.want, rr.Code, rr.Body.String())

			var payload map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
			require.NotEmpty(t, payload["type"])
		})
	}
	require.Empty(t, n.logged)
}

func TestListActivityPaginates(t *testing.T) {
	created := time.Date(2025, time.October, 27, 20, 0, 0, 0, time.UTC)
	next := &domain.Cursor{CreatedAt: created, ID: "b"}
	log := &mockLog{
		entries: []domain.ActivityLogEntry{
			{ID: "a", ActionType: domain.ActionDelivery, ActorName: "Ben", CreatedAt: created.Add(time.Minute)},
			{ID: "b", ActionType: "wishlist", CreatedAt: created},
		},
		next: next,
	}
	handler := NewHandler(log, &mockNotifier{}, nil)

	prevID := "7d3c5a4e-9f1b-4c2a-8e6d-1a2b3c4d5e6f"
	prev := persistence.EncodeCursor(&domain.Cursor{CreatedAt: created.Add(time.Hour), ID: prevID})
	req := withScopes(httptest.NewRequest(http.MethodGet, "/v1/activity?limit=500&cursor="+prev, nil), auth.ScopeActivityRead)
	rr := httptest.NewRecorder()
	handler.activity(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	require.Equal(t, maxListLimit, log.lastLimit)
	require.NotNil(t, log.lastCursor)
	require.Equal(t, prevID, log.lastCursor.ID)

	var resp ListActivityResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 2)
	require.Equal(t, "took delivery of", resp.Items[0].Verb)
	require.Equal(t, domain.GenericAction.Verb, resp.Items[1].Verb)
	require.Equal(t, persistence.EncodeCursor(next), resp.NextCursor)
}

func TestListActivityErrors(t *testing.T) {
	log := &mockLog{err: errors.New("boom")}
	handler := NewHandler(log, &mockNotifier{}, nil)

	req := withScopes(httptest.NewRequest(http.MethodGet, "/v1/activity?cursor=%21%21%21", nil), auth.ScopeActivityRead)
	rr := httptest.NewRecorder()
	handler.activity(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	req = withScopes(httptest.NewRequest(http.MethodGet, "/v1/activity", nil), auth.ScopeActivityRead)
	rr = httptest.NewRecorder()
	handler.activity(rr, req)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, defaultListLimit, log.lastLimit)

	req = withScopes(httptest.NewRequest(http.MethodDelete, "/v1/activity", nil), auth.ScopeActivityRead)
	rr = httptest.NewRecorder()
	handler.activity(rr, req)
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestNotificationState(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, time.October, 27, 20, 5, 0, 0, time.UTC))
	current := domain.ActivityEvent{
		ID:         "evt-1",
		ActionType: domain.ActionShare,
		ActorName:  "Cleo",
		OccurredAt: clock.Now().Add(-5 * time.Minute),
	}
	n := &mockNotifier{
		snapshot: notify.Snapshot{State: notify.StateShowing, Current: &current, Source: notify.SourceRealtime, QueueLen: 2},
		degraded: true,
	}
	handler := NewHandler(&mockLog{}, n, nil)
	handler.clock = clock

	rr := httptest.NewRecorder()
	handler.notificationState(rr, httptest.NewRequest(http.MethodGet, "/v1/notifications/state", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp NotificationStateResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "showing", resp.State)
	require.Equal(t, "realtime", resp.Source)
	require.Equal(t, 2, resp.QueueLength)
	require.True(t, resp.Degraded)
	require.NotNil(t, resp.Current)
	require.Equal(t, "Cleo from nearby shared a vehicle", resp.Current.Message)
	require.Equal(t, "5 min ago", resp.Current.TimeAgo)
}

func TestRegisterRoutesMountsDisplay(t *testing.T) {
	display := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	mux := http.NewServeMux()
	NewHandler(&mockLog{}, &mockNotifier{}, display).RegisterRoutes(mux)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/notifications/ws", nil))
	require.Equal(t, http.StatusTeapot, rr.Code)

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}
