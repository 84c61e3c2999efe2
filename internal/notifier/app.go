// Package notifier wires the seed store, both feeds and the display scheduler into the
// activity notification subsystem.
package notifier

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"example.com/activityfeed/internal/config"
	"example.com/activityfeed/internal/domain"
	"example.com/activityfeed/internal/feed"
	"example.com/activityfeed/internal/notify"
	"example.com/activityfeed/internal/realtime"
)

// SeedLoader provides the events replayed by the simulated feed.
type SeedLoader interface {
	LoadSeed(ctx context.Context, limit int) []domain.ActivityEvent
}

// ActivityLogger appends locally performed actions to the activity log.
type ActivityLogger interface {
	LogActivity(ctx context.Context, input domain.LogActivityInput) (*domain.ActivityLogEntry, error)
}

// Dependencies are the collaborators of an App.
type Dependencies struct {
	Store       SeedLoader
	Channel     realtime.Channel
	Topic       string
	Sink        notify.Sink
	ActivityLog ActivityLogger
	Config      config.NotifyConfig
}

// ActivityContext describes a locally performed action. SessionID identifies the visitor who
// performed it; when empty the action is attributed to this App's own session.
type ActivityContext struct {
	SessionID      string
	ActorName      string
	ActorAvatarURL string
	SubjectName    string
	Location       string
}

// Option configures the App.
type Option func(*App)

// WithClock overrides the clock driving every timer in the subsystem.
func WithClock(clock clockwork.Clock) Option {
	return func(a *App) {
		a.clock = clock
	}
}

// WithLogger overrides the application logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// WithSessionID fixes the session id stamped on locally logged activity.
func WithSessionID(id string) Option {
	return func(a *App) {
		if id != "" {
			a.sessionID = id
		}
	}
}

// App is the notification subsystem of one process. Construct it once and pass it to the
// collaborators that need it.
type App struct {
	deps      Dependencies
	clock     clockwork.Clock
	logger    zerolog.Logger
	sessionID string

	writeCtx    context.Context
	cancelWrite context.CancelFunc
	writes      sync.WaitGroup

	mu          sync.Mutex
	initialized bool
	destroyed   bool
	scheduler   *notify.Scheduler
	simulated   *feed.SimulatedFeed
	realtime    *feed.RealtimeFeed
	sub         *feed.Subscription
}

// New constructs an App. Nothing runs until Init.
func New(deps Dependencies, opts ...Option) *App {
	if deps.Topic == "" {
		deps.Topic = domain.ActivityLogTopic
	}
	deps.Config = deps.Config.Normalize()

	a := &App{
		deps:      deps,
		clock:     clockwork.NewRealClock(),
		logger:    zerolog.Nop(),
		sessionID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.writeCtx, a.cancelWrite = context.WithCancel(context.Background())
	return a
}

// SessionID identifies actions logged by this App without a visitor session.
func (a *App) SessionID() string {
	return a.sessionID
}

// Init loads the seed, starts the simulated feed and subscribes the realtime feed. Only the
// first call has an effect, and Init after Destroy does nothing.
func (a *App) Init(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.initialized || a.destroyed {
		return
	}
	a.initialized = true
	cfg := a.deps.Config

	a.scheduler = notify.NewScheduler(a.deps.Sink,
		notify.WithClock(a.clock),
		notify.WithLogger(a.logger.With().Str("component", "scheduler").Logger()),
		notify.WithDisplayDuration(cfg.DisplayDuration),
		notify.WithInterQueueGap(cfg.InterQueueGap),
	)

	var seed []domain.ActivityEvent
	if a.deps.Store != nil {
		seed = a.deps.Store.LoadSeed(ctx, cfg.SeedLimit)
	}

	scheduler := a.scheduler
	a.simulated = feed.NewSimulatedFeed(seed,
		feed.WithClock(a.clock),
		feed.WithLogger(a.logger.With().Str("component", "simulated_feed").Logger()),
		feed.WithInitialDelay(cfg.InitialDelay),
		feed.WithInterval(cfg.Interval),
	)
	a.simulated.Start(func(ev domain.ActivityEvent) { scheduler.Tick(ev) })

	a.realtime = feed.NewRealtimeFeed(a.deps.Channel, a.deps.Topic,
		feed.WithLogger(a.logger.With().Str("component", "realtime_feed").Logger()),
		feed.WithSessionFilter(a.sessionID),
	)
	a.sub = a.realtime.Subscribe(a.writeCtx, func(ev domain.ActivityEvent) { scheduler.Enqueue(ev) })

	a.logger.Info().
		Str("session_id", a.sessionID).
		Int("seed_events", len(seed)).
		Bool("degraded", a.realtime.Degraded()).
		Msg("activity notifier initialised")
}

// LogUserActivity records a local action in the background. It never blocks the caller and
// never produces a notification for the local actor: rows stamped with the App's own session are
// dropped by the realtime feed, and display clients skip notifications carrying their session.
func (a *App) LogUserActivity(actionType domain.ActionType, actx ActivityContext) {
	a.mu.Lock()
	if a.destroyed || a.deps.ActivityLog == nil {
		a.mu.Unlock()
		return
	}
	a.writes.Add(1)
	a.mu.Unlock()

	sessionID := actx.SessionID
	if sessionID == "" {
		sessionID = a.sessionID
	}
	input := domain.LogActivityInput{
		ActionType:     actionType,
		ActorName:      actx.ActorName,
		ActorAvatarURL: actx.ActorAvatarURL,
		SubjectName:    actx.SubjectName,
		Location:       actx.Location,
		SessionID:      sessionID,
	}

	go func() {
		defer a.writes.Done()
		ctx, cancel := context.WithTimeout(a.writeCtx, a.deps.Config.LogTimeout)
		defer cancel()

		entry, err := a.deps.ActivityLog.LogActivity(ctx, input)
		if err != nil {
			a.logger.Warn().Err(err).Str("action_type", string(actionType)).Msg("failed to log user activity")
			return
		}
		a.logger.Debug().Str("activity_id", entry.ID).Str("action_type", string(entry.ActionType)).Msg("user activity logged")
	}()
}

// Destroy unsubscribes the realtime feed, stops the simulated feed and cancels display timers.
// No sink call happens after Destroy returns. Pending activity writes are awaited.
func (a *App) Destroy() {
	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return
	}
	a.destroyed = true
	realtimeFeed, sub, simulated, scheduler := a.realtime, a.sub, a.simulated, a.scheduler
	a.mu.Unlock()

	if realtimeFeed != nil {
		realtimeFeed.Unsubscribe(sub)
	}
	if simulated != nil {
		simulated.Stop()
	}
	if scheduler != nil {
		scheduler.Stop()
	}
	a.writes.Wait()
	a.cancelWrite()
	a.logger.Info().Msg("activity notifier destroyed")
}

// Snapshot reports the display slot state.
func (a *App) Snapshot() notify.Snapshot {
	a.mu.Lock()
	scheduler, destroyed := a.scheduler, a.destroyed
	a.mu.Unlock()

	if scheduler == nil {
		if destroyed {
			return notify.Snapshot{State: notify.StateStopped}
		}
		return notify.Snapshot{State: notify.StateIdle}
	}
	return scheduler.Snapshot()
}

// Degraded reports whether the realtime feed is unavailable.
func (a *App) Degraded() bool {
	a.mu.Lock()
	realtimeFeed := a.realtime
	a.mu.Unlock()
	return realtimeFeed == nil || realtimeFeed.Degraded()
}
