// Package syncer drives provider data imports: explicit and automatic
// start requests, status polling while any import runs, and the single
// coalesced overlay the UI renders for combined progress.
package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"advisor/internal/events"
	"advisor/internal/logging"
	"advisor/internal/models"
	"advisor/internal/session"
)

// Orchestrator errors.
var (
	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("sync orchestrator closed")
)

// Config contains configuration for the sync Orchestrator.
type Config struct {
	// PollInterval is how often integration status is fetched while at
	// least one provider is syncing.
	// Default: 2s
	PollInterval time.Duration

	// AutoSyncDelay is how long AutoSync waits before starting imports,
	// giving the interface time to settle.
	// Default: 500ms
	AutoSyncDelay time.Duration

	// MaxSyncDuration caps how long a provider may stay syncing before
	// it is forced back to idle. Zero disables the cap.
	MaxSyncDuration time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:  2 * time.Second,
		AutoSyncDelay: 500 * time.Millisecond,
	}
}

// SyncAPI is the slice of the backend client the orchestrator needs.
type SyncAPI interface {
	StartSync(ctx context.Context, provider models.Provider, mode models.SyncMode) error
	Status(ctx context.Context) (*models.IntegrationStatus, error)
}

// Session is the slice of the session the orchestrator needs: reading
// identity, and the post-sync profile refresh.
type Session interface {
	Token() string
	User() *models.User
	Refresh(ctx context.Context) (*models.User, error)
}

// ProviderState is one provider's import status as tracked locally.
// Mode and StartedAt are meaningful only while Syncing is true.
type ProviderState struct {
	Syncing   bool
	Mode      models.SyncMode
	StartedAt time.Time
}

// OverlayState describes the coalesced progress overlay. Service is the
// provider the overlay is attributed to while any import runs; when two
// run at once, the earlier provider in display order wins.
type OverlayState struct {
	Visible bool
	Service models.Provider
}

// Orchestrator tracks per-provider sync state and the overlay derived
// from it. All methods are safe for concurrent use.
type Orchestrator struct {
	config    Config
	api       SyncAPI
	session   Session
	publisher events.Publisher
	logger    zerolog.Logger

	rootCtx    context.Context
	rootCancel context.CancelFunc

	mu             sync.Mutex
	states         map[models.Provider]*ProviderState
	dismissed      bool
	lastOverlay    OverlayState
	autoDone       bool
	refreshPending bool
	closed         bool

	polling    bool
	pollCancel context.CancelFunc
	wg         sync.WaitGroup
}

// New creates a sync Orchestrator. The publisher may be nil, in which
// case state changes are not announced.
func New(config Config, api SyncAPI, sess Session, publisher events.Publisher) *Orchestrator {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	if config.AutoSyncDelay <= 0 {
		config.AutoSyncDelay = DefaultConfig().AutoSyncDelay
	}
	if config.MaxSyncDuration < 0 {
		config.MaxSyncDuration = 0
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	states := make(map[models.Provider]*ProviderState, len(models.Providers()))
	for _, p := range models.Providers() {
		states[p] = &ProviderState{}
	}
	return &Orchestrator{
		config:     config,
		api:        api,
		session:    sess,
		publisher:  publisher,
		logger:     logging.Component("syncer"),
		rootCtx:    rootCtx,
		rootCancel: rootCancel,
		states:     states,
	}
}

// State returns the tracked state for a provider.
func (o *Orchestrator) State(provider models.Provider) ProviderState {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.states[provider]; ok {
		return *s
	}
	return ProviderState{}
}

// Overlay returns the current overlay snapshot.
func (o *Orchestrator) Overlay() OverlayState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.overlayLocked()
}

// AnySyncing reports whether any provider is currently syncing.
func (o *Orchestrator) AnySyncing() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.anySyncingLocked()
}

// Start marks the provider as syncing, opens the overlay, and asks the
// backend to begin the import. A request failure reverts the provider to
// idle, raises an alert event, and is returned to the caller. Without a
// session token nothing is started.
func (o *Orchestrator) Start(ctx context.Context, provider models.Provider, mode models.SyncMode) error {
	if o.session.Token() == "" {
		return session.ErrNotAuthenticated
	}
	return o.start(ctx, provider, mode, true)
}

// start marks the provider syncing before issuing the request, so the
// overlay reflects the user's intent immediately. alert controls whether
// a request failure is announced or only logged.
func (o *Orchestrator) start(ctx context.Context, provider models.Provider, mode models.SyncMode, alert bool) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	state := o.states[provider]
	state.Syncing = true
	state.Mode = mode
	state.StartedAt = time.Now()
	o.refreshPending = true
	if alert {
		// An explicit request re-shows a previously dismissed overlay.
		o.dismissed = false
	}
	o.startPollingLocked()
	overlayChanged := o.refreshOverlayLocked()
	overlay := o.lastOverlay
	o.mu.Unlock()

	o.publishSyncState(provider, true, mode)
	if overlayChanged {
		o.publishOverlay(overlay)
	}

	logger := logging.WithProvider(o.logger, string(provider))
	logger.Info().Str("mode", string(mode)).Msg("starting sync")

	if err := o.api.StartSync(ctx, provider, mode); err != nil {
		o.mu.Lock()
		if o.closed {
			o.mu.Unlock()
			return err
		}
		state := o.states[provider]
		state.Syncing = false
		state.Mode = ""
		if !o.anySyncingLocked() {
			o.stopPollingLocked()
		}
		overlayChanged := o.refreshOverlayLocked()
		overlay := o.lastOverlay
		o.mu.Unlock()

		o.publishSyncState(provider, false, "")
		if overlayChanged {
			o.publishOverlay(overlay)
		}
		if alert {
			o.publishAlert(provider, err)
		} else {
			logger.Warn().Err(err).Msg("sync request rejected")
		}
		return err
	}
	return nil
}

// AutoSync starts a recent-mode import for every provider the user has
// linked. It fires at most once per orchestrator; repeat calls return
// immediately even when the first attempt started nothing. The call
// waits out the configured delay first and blocks until the start
// requests have been issued.
func (o *Orchestrator) AutoSync(ctx context.Context) {
	o.mu.Lock()
	if o.autoDone || o.closed {
		o.mu.Unlock()
		return
	}
	o.autoDone = true
	delay := o.config.AutoSyncDelay
	o.mu.Unlock()

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-o.rootCtx.Done():
		return
	case <-timer.C:
	}

	user := o.session.User()
	if user == nil || o.session.Token() == "" {
		o.logger.Debug().Msg("auto sync skipped, no session")
		return
	}

	var wg sync.WaitGroup
	for _, provider := range models.Providers() {
		if !user.Linked(provider) {
			continue
		}
		wg.Add(1)
		go func(p models.Provider) {
			defer wg.Done()
			if err := o.start(ctx, p, models.SyncModeRecent, false); err != nil {
				o.logger.Warn().Err(err).Str("provider", string(p)).Msg("auto sync failed to start")
			}
		}(provider)
	}
	wg.Wait()
}

// Dismiss hides the overlay without touching any provider state.
// Tracking continues and later poll results still apply; the overlay
// stays hidden for already-running imports and reappears only for a new
// explicit start. The dismissal resets once all providers are idle.
func (o *Orchestrator) Dismiss() {
	o.mu.Lock()
	o.dismissed = true
	changed := o.refreshOverlayLocked()
	overlay := o.lastOverlay
	o.mu.Unlock()

	if changed {
		o.publishOverlay(overlay)
	}
}

// Close stops polling and cancels a pending auto-sync delay. Results of
// requests that complete after Close are discarded.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.stopPollingLocked()
	o.mu.Unlock()

	o.rootCancel()
	o.wg.Wait()
	o.logger.Debug().Msg("sync orchestrator closed")
}

// startPollingLocked launches the status poll loop if it is not already
// running. Callers hold o.mu.
func (o *Orchestrator) startPollingLocked() {
	if o.polling || o.closed {
		return
	}
	ctx, cancel := context.WithCancel(o.rootCtx)
	o.polling = true
	o.pollCancel = cancel
	o.wg.Add(1)
	go o.pollLoop(ctx)
	o.logger.Debug().Dur("interval", o.config.PollInterval).Msg("status polling started")
}

// stopPollingLocked cancels the poll loop. Callers hold o.mu.
func (o *Orchestrator) stopPollingLocked() {
	if !o.polling {
		return
	}
	o.pollCancel()
	o.polling = false
	o.logger.Debug().Msg("status polling stopped")
}

func (o *Orchestrator) pollLoop(ctx context.Context) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.pollOnce(ctx)
		}
	}
}

// pollOnce fetches combined status and applies it. Fetch failures leave
// all state untouched; an optimistic syncing flag is never lowered by a
// failed poll.
func (o *Orchestrator) pollOnce(ctx context.Context) {
	status, err := o.api.Status(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		o.logger.Warn().Err(err).Msg("status poll failed")
		return
	}
	o.applyStatus(status)
}

// applyStatus reconciles local provider state with a status response.
// The server value wins for each provider. On the transition to all-idle
// it closes the overlay, refreshes the session profile once, and stops
// the poll loop.
func (o *Orchestrator) applyStatus(status *models.IntegrationStatus) {
	now := time.Now()

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}

	wasSyncing := o.anySyncingLocked()
	type transition struct {
		provider models.Provider
		syncing  bool
		mode     models.SyncMode
	}
	var transitions []transition

	for _, provider := range models.Providers() {
		state := o.states[provider]
		target := status.Syncing(provider)
		if target && o.config.MaxSyncDuration > 0 && state.Syncing &&
			now.Sub(state.StartedAt) > o.config.MaxSyncDuration {
			o.logger.Warn().
				Str("provider", string(provider)).
				Dur("elapsed", now.Sub(state.StartedAt)).
				Msg("sync exceeded duration cap, forcing idle")
			target = false
		}
		if target == state.Syncing {
			continue
		}
		state.Syncing = target
		if target {
			state.StartedAt = now
			o.refreshPending = true
		} else {
			state.Mode = ""
		}
		transitions = append(transitions, transition{provider: provider, syncing: target, mode: state.Mode})
	}

	allIdle := !o.anySyncingLocked()
	completed := wasSyncing && allIdle && o.refreshPending
	if completed {
		o.refreshPending = false
		o.dismissed = false
		o.stopPollingLocked()
	}
	overlayChanged := o.refreshOverlayLocked()
	overlay := o.lastOverlay
	o.mu.Unlock()

	for _, tr := range transitions {
		o.publishSyncState(tr.provider, tr.syncing, tr.mode)
	}
	if overlayChanged {
		o.publishOverlay(overlay)
	}
	if completed {
		o.refreshProfile()
	}
}

// refreshProfile re-derives the session user after imports finish, the
// sole point where provider links changed by a sync become visible.
func (o *Orchestrator) refreshProfile() {
	o.logger.Debug().Msg("refreshing profile after sync")
	user, err := o.session.Refresh(o.rootCtx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("profile refresh failed")
		return
	}
	if o.publisher != nil {
		o.publisher.Publish(events.Event{
			Type:    events.EventProfileRefreshed,
			Payload: events.ProfileRefreshed{User: user},
		})
	}
}

func (o *Orchestrator) anySyncingLocked() bool {
	for _, s := range o.states {
		if s.Syncing {
			return true
		}
	}
	return false
}

// overlayLocked derives the overlay snapshot. Callers hold o.mu.
func (o *Orchestrator) overlayLocked() OverlayState {
	var service models.Provider
	for _, provider := range models.Providers() {
		if o.states[provider].Syncing {
			service = provider
			break
		}
	}
	return OverlayState{
		Visible: service != "" && !o.dismissed,
		Service: service,
	}
}

// refreshOverlayLocked recomputes the overlay and reports whether it
// changed since the last announcement. Callers hold o.mu.
func (o *Orchestrator) refreshOverlayLocked() bool {
	overlay := o.overlayLocked()
	if overlay == o.lastOverlay {
		return false
	}
	o.lastOverlay = overlay
	return true
}

func (o *Orchestrator) publishSyncState(provider models.Provider, syncing bool, mode models.SyncMode) {
	if o.publisher == nil {
		return
	}
	o.publisher.Publish(events.Event{
		Type:    events.EventSyncState,
		Payload: events.SyncState{Provider: provider, Syncing: syncing, Mode: mode},
	})
}

func (o *Orchestrator) publishOverlay(overlay OverlayState) {
	if o.publisher == nil {
		return
	}
	o.publisher.Publish(events.Event{
		Type:    events.EventOverlay,
		Payload: events.Overlay{Visible: overlay.Visible, Service: overlay.Service},
	})
}

func (o *Orchestrator) publishAlert(provider models.Provider, err error) {
	if o.publisher == nil {
		return
	}
	o.publisher.Publish(events.Event{
		Type:    events.EventSyncAlert,
		Payload: events.SyncAlert{Provider: provider, Message: err.Error()},
	})
}
