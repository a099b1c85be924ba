// Package session orchestrates login, logout and the session state machine,
// composing the token lifecycle manager, the profile source and the
// permission resolver into one consistent session.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jking1031/ZZIOT2.0-sub002/internal/apperrors"
	"github.com/jking1031/ZZIOT2.0-sub002/permission"
	"github.com/jking1031/ZZIOT2.0-sub002/profile"
	"github.com/jking1031/ZZIOT2.0-sub002/store"
	"github.com/jking1031/ZZIOT2.0-sub002/token"
)

// State is the coordinator's session state.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateActive
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// Deps holds the collaborators the coordinator composes.
type Deps struct {
	Tokens      *token.Manager
	Profiles    profile.Source
	Permissions *permission.Resolver
	Store       store.KV
	Bus         Publisher
}

// Coordinator owns the session state machine. State transitions are atomic
// with respect to any login/logout call; a login issued while another is in
// flight is rejected, never interleaved.
type Coordinator struct {
	deps    Deps
	logger  zerolog.Logger
	nowFunc func() time.Time

	// watchInterval drives the background expiry check in Run.
	watchInterval time.Duration

	mu         sync.Mutex
	state      State
	generation int // bumped on every committed transition; stale logins discard
	sessionID  string
	user       *profile.UserProfile
	resolved   permission.ResolvedSet
}

type CoordinatorOption func(*Coordinator)

// WithLogger sets the coordinator's logger.
func WithLogger(logger zerolog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithNowFunc sets the clock (primarily for testing).
func WithNowFunc(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		c.nowFunc = now
	}
}

// WithWatchInterval overrides how often Run checks token expiry.
func WithWatchInterval(interval time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.watchInterval = interval
	}
}

// New creates a Coordinator and wires itself as the token manager's
// invalidation handler.
func New(deps Deps, options ...CoordinatorOption) (*Coordinator, error) {
	if deps.Tokens == nil {
		return nil, errors.New("[session.New] token manager is required")
	}
	if deps.Profiles == nil {
		return nil, errors.New("[session.New] profile source is required")
	}
	if deps.Permissions == nil {
		return nil, errors.New("[session.New] permission resolver is required")
	}
	if deps.Store == nil {
		return nil, errors.New("[session.New] store is required")
	}
	if deps.Bus == nil {
		deps.Bus = NewBus()
	}

	c := &Coordinator{
		deps:          deps,
		logger:        zerolog.Nop(),
		nowFunc:       time.Now,
		watchInterval: time.Minute,
		state:         StateUnauthenticated,
	}
	for _, opt := range options {
		opt(c)
	}

	deps.Tokens.SetInvalidationHandler(c.HandleReauthenticationRequired)
	return c, nil
}

// Login drives the fixed orchestration: credential grant, profile fetch,
// permission resolution, snapshot persistence, session-ready event.
//
// A grant failure discards all partial state. Failures after the grant keep
// the credential — the user is authenticated — but degrade permissions to
// guest level and are reported so the UI can show a degraded-permissions
// notice.
func (c *Coordinator) Login(ctx context.Context, username, password string) error {
	c.mu.Lock()
	switch c.state {
	case StateAuthenticating:
		c.mu.Unlock()
		return apperrors.Wrapf(apperrors.ErrLoginInProgress, "[Coordinator.Login]")
	case StateActive, StateRefreshing:
		c.mu.Unlock()
		return errors.New("[Coordinator.Login] already signed in, log out first")
	}
	c.state = StateAuthenticating
	c.generation++
	generation := c.generation
	c.mu.Unlock()

	if _, err := c.deps.Tokens.Login(ctx, username, password, ""); err != nil {
		c.abandon(generation)
		return errors.Wrap(err, "[Coordinator.Login] grant")
	}

	user, resolved, degradedErr := c.establish(ctx, username)

	c.mu.Lock()
	if c.generation != generation || c.state != StateAuthenticating {
		// The caller backed out (or the session was torn down) while the
		// network calls were in flight; discard the results, including
		// anything the resolver cached on the way.
		c.mu.Unlock()
		if user.ID != "" {
			_ = c.deps.Permissions.Invalidate(ctx, user.ID)
		}
		return errors.New("[Coordinator.Login] login abandoned")
	}
	c.state = StateActive
	c.sessionID = uuid.NewString()
	c.user = user
	c.resolved = resolved
	sessionID := c.sessionID
	c.persistSnapshot(ctx, user)
	c.mu.Unlock()

	c.logger.Info().Str("username", username).Str("session_id", sessionID).Msg("session established")
	c.deps.Bus.Publish(Event{Type: EventSessionReady, SessionID: sessionID, UserID: user.ID, At: c.nowFunc()})

	if degradedErr != nil {
		return degradedErr
	}
	return nil
}

// establish runs login steps 2-3: profile fetch and permission resolution.
// It never fails outright; the returned error marks a degraded session.
// Persistence is deliberately left to the commit path so an abandoned login
// cannot write through a completed logout.
func (c *Coordinator) establish(ctx context.Context, username string) (*profile.UserProfile, permission.ResolvedSet, error) {
	user, err := c.deps.Profiles.Fetch(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("profile fetch failed, degrading to guest permissions")
		return &profile.UserProfile{Username: username},
			permission.GuestSet(),
			apperrors.Wrapf(apperrors.ErrPermissionFetch, "[Coordinator.Login] profile fetch failed: %s", err.Error())
	}

	resolved, resolveErr := c.deps.Permissions.Resolve(ctx, user.ID, user.Departments, false)
	if resolveErr != nil {
		return user, resolved, errors.Wrap(resolveErr, "[Coordinator.Login] degraded permissions")
	}
	return user, resolved, nil
}

// persistSnapshot stores the profile for restore-on-startup. A placeholder
// profile from a degraded login carries no ID and nothing worth restoring.
// Called with c.mu held, after the commit check.
func (c *Coordinator) persistSnapshot(ctx context.Context, user *profile.UserProfile) {
	if user.ID == "" {
		return
	}
	data, err := json.Marshal(user)
	if err != nil {
		return
	}
	if err := c.deps.Store.Set(ctx, store.KeySessionUser, data); err != nil {
		c.logger.Warn().Err(err).Msg("persisting session snapshot failed")
	}
}

// abandon reverts an Authenticating transition that failed before commit.
func (c *Coordinator) abandon(generation int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation == generation && c.state == StateAuthenticating {
		c.state = StateUnauthenticated
	}
}

// Logout clears all stored session material synchronously, then completes the
// transition to Unauthenticated and publishes the session-ended event.
func (c *Coordinator) Logout(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateUnauthenticated {
		c.mu.Unlock()
		return nil
	}
	sessionID := c.sessionID
	userID := ""
	if c.user != nil {
		userID = c.user.ID
	}

	var firstErr error
	if err := c.deps.Tokens.Logout(ctx); err != nil {
		firstErr = err
	}
	if userID != "" {
		if err := c.deps.Permissions.Invalidate(ctx, userID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := c.deps.Store.Remove(ctx, store.KeySessionUser); err != nil && firstErr == nil {
		firstErr = err
	}

	c.state = StateUnauthenticated
	c.generation++
	c.sessionID = ""
	c.user = nil
	c.resolved = nil
	c.mu.Unlock()

	c.deps.Bus.Publish(Event{Type: EventSessionEnded, SessionID: sessionID, UserID: userID, At: c.nowFunc()})
	return errors.Wrap(firstErr, "[Coordinator.Logout]")
}

// HandleReauthenticationRequired forces the session to Unauthenticated from
// any state and publishes a session-invalidated event. Safe to call multiple
// times; only the first call for a live session publishes.
func (c *Coordinator) HandleReauthenticationRequired() {
	ctx := context.Background()

	c.mu.Lock()
	if c.state == StateUnauthenticated {
		c.mu.Unlock()
		return
	}
	sessionID := c.sessionID
	userID := ""
	if c.user != nil {
		userID = c.user.ID
	}

	if userID != "" {
		_ = c.deps.Permissions.Invalidate(ctx, userID)
	}
	_ = c.deps.Store.Remove(ctx, store.KeySessionUser)

	c.state = StateUnauthenticated
	c.generation++
	c.sessionID = ""
	c.user = nil
	c.resolved = nil
	c.mu.Unlock()

	c.logger.Warn().Str("session_id", sessionID).Msg("session invalidated, reauthentication required")
	c.deps.Bus.Publish(Event{Type: EventSessionInvalidated, SessionID: sessionID, UserID: userID, At: c.nowFunc()})
}

// Restore re-establishes a session from persisted material on startup. It
// requires a stored credential; profile and permissions come from the
// persisted snapshot and cache when available.
func (c *Coordinator) Restore(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateUnauthenticated {
		c.mu.Unlock()
		return errors.New("[Coordinator.Restore] session already established")
	}
	c.state = StateAuthenticating
	c.generation++
	generation := c.generation
	c.mu.Unlock()

	if _, err := c.deps.Tokens.StoredCredential(ctx); err != nil {
		c.abandon(generation)
		return errors.Wrap(err, "[Coordinator.Restore]")
	}

	var user profile.UserProfile
	data, err := c.deps.Store.Get(ctx, store.KeySessionUser)
	if err != nil || json.Unmarshal(data, &user) != nil {
		c.abandon(generation)
		return apperrors.Wrapf(apperrors.ErrNoCredential, "[Coordinator.Restore] no usable session snapshot")
	}

	resolved, resolveErr := c.deps.Permissions.Resolve(ctx, user.ID, user.Departments, false)

	c.mu.Lock()
	if c.generation != generation || c.state != StateAuthenticating {
		c.mu.Unlock()
		if user.ID != "" {
			_ = c.deps.Permissions.Invalidate(ctx, user.ID)
		}
		return errors.New("[Coordinator.Restore] restore abandoned")
	}
	c.state = StateActive
	c.sessionID = uuid.NewString()
	c.user = &user
	c.resolved = resolved
	sessionID := c.sessionID
	c.mu.Unlock()

	c.deps.Bus.Publish(Event{Type: EventSessionReady, SessionID: sessionID, UserID: user.ID, At: c.nowFunc()})

	return errors.Wrap(resolveErr, "[Coordinator.Restore] degraded permissions")
}

// RefreshPermissions re-resolves the user's permissions, bypassing the cache,
// and publishes a permissions-updated event.
func (c *Coordinator) RefreshPermissions(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateActive || c.user == nil {
		c.mu.Unlock()
		return errors.New("[Coordinator.RefreshPermissions] no active session")
	}
	user := c.user
	sessionID := c.sessionID
	c.mu.Unlock()

	resolved, resolveErr := c.deps.Permissions.Resolve(ctx, user.ID, user.Departments, true)

	c.mu.Lock()
	if c.state == StateActive && c.user == user {
		c.resolved = resolved
	}
	c.mu.Unlock()

	c.deps.Bus.Publish(Event{Type: EventPermissionsUpdated, SessionID: sessionID, UserID: user.ID, At: c.nowFunc()})
	return errors.Wrap(resolveErr, "[Coordinator.RefreshPermissions]")
}

// Run watches for background token expiry, driving Active → Refreshing →
// Active (or Unauthenticated on terminal refresh failure). It returns when
// ctx is done.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refreshIfExpiring(ctx)
		}
	}
}

func (c *Coordinator) refreshIfExpiring(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return
	}
	c.state = StateRefreshing
	c.mu.Unlock()

	backToActive := func() {
		c.mu.Lock()
		if c.state == StateRefreshing {
			c.state = StateActive
		}
		c.mu.Unlock()
	}

	// ValidAccessToken refreshes only when the token is inside the leeway
	// window, so the common case is a cheap store read.
	if _, err := c.deps.Tokens.ValidAccessToken(ctx); err != nil {
		if apperrors.IsTerminal(err) {
			backToActive() // restore a coherent state before teardown
			c.HandleReauthenticationRequired()
			return
		}
		// Transient failure; leave the session up and try again next tick.
		c.logger.Warn().Err(err).Msg("background token check failed")
	}
	backToActive()
}

// Snapshot is a point-in-time view of the session.
type Snapshot struct {
	State     State
	SessionID string
	User      *profile.UserProfile
	Resolved  permission.ResolvedSet
}

// Snapshot returns the current session view. The resolved set falls back to
// the guest set so gating stays well-defined in every state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	resolved := c.resolved
	if resolved == nil {
		resolved = permission.GuestSet()
	}
	return Snapshot{State: c.state, SessionID: c.sessionID, User: c.user, Resolved: resolved}
}

// CheckPermission gates a feature on the current session's resolved set.
func (c *Coordinator) CheckPermission(key string, required permission.Level) bool {
	return c.Snapshot().Resolved.CheckPermission(key, required)
}

// CheckRoute gates a navigation target on the current session's resolved set.
func (c *Coordinator) CheckRoute(path string, required permission.Level) bool {
	return c.Snapshot().Resolved.CheckRoute(path, required)
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
