package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jrkphani/heybo-engine/config"
	"github.com/jrkphani/heybo-engine/errors"
	"github.com/jrkphani/heybo-engine/menu"
	"github.com/jrkphani/heybo-engine/metric"
	"github.com/jrkphani/heybo-engine/pkg/clock"
	"github.com/jrkphani/heybo-engine/recovery"
)

// cartMutationRetries bounds the compare-and-set loop on cart writes.
const cartMutationRetries = 3

// WarningListener receives session warnings as they are raised.
type WarningListener func(Warning)

// ExpiryListener receives the id of a session that just expired.
type ExpiryListener func(sessionID string)

// Manager owns the single current session for a device: creation with
// conflict detection, activity-driven extension, warning and expiry
// timers, and cart mutation behind a version counter.
type Manager struct {
	mu       sync.Mutex
	sched    clock.Scheduler
	repo     *Repository
	recovery *recovery.Manager
	metrics  *metric.Metrics
	logger   *slog.Logger

	duration      time.Duration
	warnThreshold time.Duration
	autoExtend    bool

	warningTimer *clock.Token
	expiryTimer  *clock.Token
	warnedFor    string // session id the current timeout warning was raised for

	nextListener     int
	warningListeners map[int]WarningListener
	expiryListeners  map[int]ExpiryListener
}

// NewManager builds a session manager. logger defaults to slog.Default
// and zero cfg fields fall back to the built-in defaults; metrics and
// rec may be nil.
func NewManager(
	sched clock.Scheduler,
	repo *Repository,
	rec *recovery.Manager,
	metrics *metric.Metrics,
	logger *slog.Logger,
	cfg config.SessionConfig,
) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := config.Defaults().Session
	if cfg.Duration <= 0 {
		cfg.Duration = defaults.Duration
	}
	if cfg.WarningThreshold <= 0 {
		cfg.WarningThreshold = defaults.WarningThreshold
	}
	return &Manager{
		sched:            sched,
		repo:             repo,
		recovery:         rec,
		metrics:          metrics,
		logger:           logger,
		duration:         cfg.Duration,
		warnThreshold:    cfg.WarningThreshold,
		autoExtend:       cfg.AutoExtend,
		warningListeners: make(map[int]WarningListener),
		expiryListeners:  make(map[int]ExpiryListener),
	}
}

// Create starts a new session for user.
//
// When a live session for a different user already occupies the device,
// Create raises a conflict warning offering to keep this device or the
// other one and returns ErrSessionConflict without touching the
// existing record; ForceCreate is the "keep this device" resolution.
func (m *Manager) Create(ctx context.Context, user User) (*Record, error) {
	if err := validateUser(user); err != nil {
		return nil, err
	}

	existing, err := m.loadChecked(ctx)
	if err != nil {
		return nil, err
	}
	if existing != nil && m.sched.Now().Before(existing.ExpiresAt) && differentUser(existing, user) {
		m.metrics.IncSessionConflict()
		m.emitWarning(Warning{
			Type:    WarningConflict,
			Message: "You're already ordering on this device under a different account",
			Actions: []errors.RecoveryAction{
				{ID: errors.ActionKeepThisDevice, Label: "Keep this device", Primary: true},
				{ID: errors.ActionKeepOther, Label: "Keep the other session"},
			},
		})
		return nil, errors.Wrap(errors.ErrSessionConflict, "session", "Create", "detect existing session")
	}

	return m.create(ctx, user)
}

// ForceCreate starts a new session for user, replacing any existing
// session on this device without conflict checks.
func (m *Manager) ForceCreate(ctx context.Context, user User) (*Record, error) {
	if err := validateUser(user); err != nil {
		return nil, err
	}
	return m.create(ctx, user)
}

func (m *Manager) create(ctx context.Context, user User) (*Record, error) {
	deviceID, err := m.repo.DeviceID(ctx)
	if err != nil {
		m.emitWarning(Warning{
			Type:    WarningStorage,
			Message: "Device identity could not be saved; your session may not survive a reload",
			Actions: []errors.RecoveryAction{{ID: errors.ActionDismiss, Label: "Dismiss", Primary: true}},
		})
	}

	now := m.sched.Now()
	rec := &Record{
		SessionID:      uuid.NewString(),
		UserID:         user.ID,
		UserType:       user.Type,
		DeviceID:       deviceID,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(m.duration),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.repo.SaveSession(ctx, rec); err != nil {
		return nil, errors.WrapAs(errors.CategorySession, err, "session", "Create", "persist record")
	}
	m.warnedFor = ""
	m.armTimersLocked(rec)
	m.metrics.IncSessionCreated(string(user.Type))
	m.logger.Info("session created",
		"sessionId", rec.SessionID, "userType", rec.UserType, "expiresAt", rec.ExpiresAt)
	return rec.Clone(), nil
}

// Current returns the live session, or nil when there is none.
//
// Corrupted records are cleared and reported through the recovery
// manager; an expired record triggers expiry handling. Both paths
// return (nil, nil): the caller sees "no session", never an error it
// must decode.
func (m *Manager) Current(ctx context.Context) (*Record, error) {
	rec, err := m.loadChecked(ctx)
	if err != nil || rec == nil {
		return nil, err
	}

	now := m.sched.Now()
	if !rec.ExpiresAt.After(now) {
		m.expire(ctx, rec)
		return nil, nil
	}

	if remaining := rec.ExpiresAt.Sub(now); remaining <= m.warnThreshold {
		m.raiseTimeoutWarning(rec, remaining)
	}

	return rec.Clone(), nil
}

// UpdateActivity records a user interaction. With auto-extend enabled
// the expiry moves to now plus the full session duration and both
// timers are re-armed atomically with the stored record; otherwise only
// lastActivityAt changes.
func (m *Manager) UpdateActivity(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.loadChecked(ctx)
	if err != nil {
		return err
	}
	if rec == nil {
		return errors.Wrap(errors.ErrSessionExpired, "session", "UpdateActivity", "load current session")
	}

	now := m.sched.Now()
	rec.LastActivityAt = now
	if m.autoExtend {
		rec.ExpiresAt = now.Add(m.duration)
	}
	if err := m.repo.SaveSession(ctx, rec); err != nil {
		return errors.WrapAs(errors.CategorySession, err, "session", "UpdateActivity", "persist record")
	}
	if m.autoExtend {
		// A fresh expiry means the previous warning no longer applies.
		m.warnedFor = ""
		m.armTimersLocked(rec)
		m.metrics.IncSessionExtended()
	}
	return nil
}

// SetStep records the flow step the session is on.
func (m *Manager) SetStep(ctx context.Context, step string) error {
	return m.update(ctx, "SetStep", func(rec *Record) {
		rec.CurrentStep = step
	})
}

// AppendSelection appends one event to the session's audit trail.
func (m *Manager) AppendSelection(ctx context.Context, kind, subject string) error {
	return m.update(ctx, "AppendSelection", func(rec *Record) {
		rec.Selections = append(rec.Selections, SelectionEvent{
			At:      m.sched.Now(),
			Kind:    kind,
			Subject: subject,
		})
	})
}

func (m *Manager) update(ctx context.Context, op string, mutate func(*Record)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.loadChecked(ctx)
	if err != nil {
		return err
	}
	if rec == nil {
		return errors.Wrap(errors.ErrSessionExpired, "session", op, "load current session")
	}

	mutate(rec)
	rec.LastActivityAt = m.sched.Now()
	if err := m.repo.SaveSession(ctx, rec); err != nil {
		return errors.WrapAs(errors.CategorySession, err, "session", op, "persist record")
	}
	return nil
}

// MutateCart applies fn to the cart under a version counter. fn
// receives a copy of the items and returns the replacement set; the
// write only lands if the stored version still matches the one read,
// retrying a bounded number of times on conflict.
func (m *Manager) MutateCart(ctx context.Context, fn func(items []menu.CartItem) ([]menu.CartItem, error)) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for attempt := 0; attempt < cartMutationRetries; attempt++ {
		rec, err := m.loadChecked(ctx)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, errors.Wrap(errors.ErrSessionExpired, "session", "MutateCart", "load current session")
		}
		readVersion := rec.CartVersion

		items, err := fn(rec.Clone().Cart)
		if err != nil {
			return nil, err
		}

		// Re-read before writing: another execution context may have
		// advanced the cart while fn ran.
		check, err := m.loadChecked(ctx)
		if err != nil {
			return nil, err
		}
		if check == nil || check.CartVersion != readVersion {
			m.metrics.IncCartCASConflict()
			continue
		}

		check.Cart = items
		check.CartVersion = readVersion + 1
		check.LastActivityAt = m.sched.Now()
		if err := m.repo.SaveSession(ctx, check); err != nil {
			return nil, errors.WrapAs(errors.CategorySession, err, "session", "MutateCart", "persist record")
		}
		return check.Clone(), nil
	}

	return nil, errors.WrapAs(errors.CategoryCart, errors.ErrCartVersionConflict,
		"session", "MutateCart", fmt.Sprintf("give up after %d attempts", cartMutationRetries))
}

// Logout destroys the current session without a cart backup.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelTimersLocked()
	m.warnedFor = ""
	if err := m.repo.ClearSession(ctx); err != nil {
		return errors.WrapAs(errors.CategorySession, err, "session", "Logout", "clear record")
	}
	return nil
}

// OnWarning subscribes to session warnings; the returned function
// unsubscribes.
func (m *Manager) OnWarning(l WarningListener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextListener
	m.nextListener++
	m.warningListeners[id] = l
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.warningListeners, id)
	}
}

// OnExpiry subscribes to session expiry; the returned function
// unsubscribes.
func (m *Manager) OnExpiry(l ExpiryListener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextListener
	m.nextListener++
	m.expiryListeners[id] = l
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.expiryListeners, id)
	}
}

// loadChecked loads the stored record and funnels corruption into the
// recovery manager, clearing storage. Returns (nil, nil) for absent,
// corrupted, or unreadable records.
func (m *Manager) loadChecked(ctx context.Context) (*Record, error) {
	rec, err := m.repo.LoadSession(ctx)
	if err != nil {
		m.handleCorruption(ctx, err)
		return nil, nil
	}
	if rec == nil {
		return nil, nil
	}
	if err := rec.Integrity(); err != nil {
		m.handleCorruption(ctx, err)
		return nil, nil
	}
	return rec, nil
}

func (m *Manager) handleCorruption(ctx context.Context, cause error) {
	if err := m.repo.ClearSession(ctx); err != nil {
		m.logger.Error("failed to clear corrupted session", "error", err)
	}
	if m.recovery != nil {
		m.recovery.CreateError(
			errors.CategorySession,
			"CORRUPTED_SESSION",
			cause.Error(),
			"Your session data was unreadable and has been reset",
			errors.SeverityMedium,
			nil,
		)
	}
	m.logger.Warn("session record corrupted, cleared", "error", cause)
}

// expire backs up a non-empty cart, clears the record, and raises the
// timeout warning offering sign-in or guest continuation.
func (m *Manager) expire(ctx context.Context, rec *Record) {
	m.mu.Lock()
	m.cancelTimersLocked()
	m.warnedFor = ""

	if len(rec.Cart) > 0 {
		backup := CartBackup{
			SessionID: rec.SessionID,
			SavedAt:   m.sched.Now(),
			Items:     rec.Cart,
		}
		if err := m.repo.SaveCartBackup(ctx, backup); err != nil {
			m.logger.Error("cart backup failed on expiry", "sessionId", rec.SessionID, "error", err)
		} else {
			m.metrics.IncCartBackup()
		}
	}

	if err := m.repo.ClearSession(ctx); err != nil {
		m.logger.Error("failed to clear expired session", "sessionId", rec.SessionID, "error", err)
	}
	m.metrics.IncSessionExpired()
	m.logger.Info("session expired", "sessionId", rec.SessionID, "cartItems", len(rec.Cart))
	listeners := m.expiryListenersLocked()
	m.mu.Unlock()

	for _, l := range listeners {
		l(rec.SessionID)
	}
	m.emitWarning(Warning{
		Type:    WarningTimeout,
		Message: "Your session has expired; your cart was saved",
		Actions: []errors.RecoveryAction{
			{ID: errors.ActionSignIn, Label: "Sign in again", Primary: true},
			{ID: errors.ActionContinueGuest, Label: "Continue as guest"},
		},
	})
}

// raiseTimeoutWarning surfaces the pre-expiry warning once per session.
func (m *Manager) raiseTimeoutWarning(rec *Record, remaining time.Duration) {
	m.mu.Lock()
	if m.warnedFor == rec.SessionID {
		m.mu.Unlock()
		return
	}
	m.warnedFor = rec.SessionID
	m.mu.Unlock()

	m.emitWarning(Warning{
		Type:          WarningTimeout,
		Message:       "Your session is about to expire",
		TimeRemaining: remaining,
		Actions: []errors.RecoveryAction{
			{ID: errors.ActionDismiss, Label: "Dismiss", Primary: true},
		},
	})
}

// armTimersLocked schedules the warning and expiry timers for rec,
// replacing any armed pair. Callbacks re-read the stored record so an
// extension between scheduling and firing is honored.
func (m *Manager) armTimersLocked(rec *Record) {
	m.cancelTimersLocked()

	now := m.sched.Now()
	if warnIn := rec.ExpiresAt.Sub(now) - m.warnThreshold; warnIn > 0 {
		m.warningTimer = m.sched.After(warnIn, m.onWarningTimer)
	}
	if expireIn := rec.ExpiresAt.Sub(now); expireIn > 0 {
		m.expiryTimer = m.sched.After(expireIn, m.onExpiryTimer)
	}
}

func (m *Manager) cancelTimersLocked() {
	if m.warningTimer != nil {
		m.sched.Cancel(m.warningTimer)
		m.warningTimer = nil
	}
	if m.expiryTimer != nil {
		m.sched.Cancel(m.expiryTimer)
		m.expiryTimer = nil
	}
}

func (m *Manager) onWarningTimer() {
	ctx := context.Background()
	rec, err := m.loadChecked(ctx)
	if err != nil || rec == nil {
		return
	}
	now := m.sched.Now()
	if !rec.ExpiresAt.After(now) {
		return // the expiry timer handles this
	}
	if remaining := rec.ExpiresAt.Sub(now); remaining <= m.warnThreshold {
		m.raiseTimeoutWarning(rec, remaining)
	}
}

func (m *Manager) onExpiryTimer() {
	ctx := context.Background()
	rec, err := m.loadChecked(ctx)
	if err != nil || rec == nil {
		return
	}
	if !rec.ExpiresAt.After(m.sched.Now()) {
		m.expire(ctx, rec)
		return
	}
	// The session was extended after this timer was armed.
	m.mu.Lock()
	m.armTimersLocked(rec)
	m.mu.Unlock()
}

func (m *Manager) emitWarning(w Warning) {
	m.mu.Lock()
	listeners := make([]WarningListener, 0, len(m.warningListeners))
	for _, l := range m.warningListeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	for _, l := range listeners {
		l(w)
	}
}

func (m *Manager) expiryListenersLocked() []ExpiryListener {
	listeners := make([]ExpiryListener, 0, len(m.expiryListeners))
	for _, l := range m.expiryListeners {
		listeners = append(listeners, l)
	}
	return listeners
}

func validateUser(user User) error {
	if !user.Type.valid() {
		return errors.WrapAs(errors.CategoryValidation,
			fmt.Errorf("unknown user type %q", user.Type), "session", "Create", "validate user")
	}
	if user.Type == UserUnauthenticated && user.ID != "" {
		return errors.WrapAs(errors.CategoryValidation,
			fmt.Errorf("unauthenticated user cannot carry id %q", user.ID), "session", "Create", "validate user")
	}
	if user.Type == UserRegistered && user.ID == "" {
		return errors.WrapAs(errors.CategoryValidation,
			fmt.Errorf("registered user requires an id"), "session", "Create", "validate user")
	}
	return nil
}

func differentUser(rec *Record, user User) bool {
	return rec.UserID != user.ID || rec.UserType != user.Type
}
