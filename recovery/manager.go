package recovery

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/jrkphani/heybo-engine/errors"
	"github.com/jrkphani/heybo-engine/metric"
	"github.com/jrkphani/heybo-engine/pkg/clock"
	"github.com/jrkphani/heybo-engine/pkg/retry"
)

// Listener receives a copy of an error state on creation or recovery.
type Listener func(errors.State)

// Manager tracks error states and gates their retries. Constructed once
// at application start and passed by dependency injection; safe for
// concurrent use.
type Manager struct {
	sched   clock.Scheduler
	logger  *slog.Logger
	metrics *metric.Metrics

	mu             sync.Mutex
	states         map[string]*errors.State
	order          []string // creation order
	pendingRetries map[string]*clock.Token

	listenerSeq       int
	errorListeners    map[int]Listener
	recoveryListeners map[int]Listener

	otpRemaining map[string]int
}

// NewManager creates a recovery manager. logger may be nil (defaults to
// slog.Default()); metrics may be nil (unmetered).
func NewManager(sched clock.Scheduler, logger *slog.Logger, metrics *metric.Metrics) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sched:             sched,
		logger:            logger,
		metrics:           metrics,
		states:            make(map[string]*errors.State),
		pendingRetries:    make(map[string]*clock.Token),
		errorListeners:    make(map[int]Listener),
		recoveryListeners: make(map[int]Listener),
		otpRemaining:      make(map[string]int),
	}
}

// CreateError records a new error state with category defaults applied:
// retry budget from the category, recoverability from the code, and the
// baseline action set. An unresolved state with the same category and
// code is superseded (resolved) by the new one.
func (m *Manager) CreateError(
	category errors.Category,
	code, message, userMessage string,
	severity errors.Severity,
	details map[string]any,
) errors.State {
	recoverable := errors.DefaultRecoverable(code)
	state := errors.State{
		ID:          uuid.NewString(),
		Category:    category,
		Code:        code,
		Message:     message,
		UserMessage: userMessage,
		Severity:    severity,
		Recoverable: recoverable,
		MaxRetries:  category.DefaultMaxRetries(),
		Actions:     errors.DefaultActions(recoverable, severity),
		Timestamp:   m.sched.Now(),
		Details:     details,
	}
	return m.insert(state)
}

// CreateErrorWithActions is CreateError with an explicit action set,
// used by the specialized classifiers.
func (m *Manager) CreateErrorWithActions(
	category errors.Category,
	code, message, userMessage string,
	severity errors.Severity,
	recoverable bool,
	actions []errors.RecoveryAction,
	details map[string]any,
) errors.State {
	state := errors.State{
		ID:          uuid.NewString(),
		Category:    category,
		Code:        code,
		Message:     message,
		UserMessage: userMessage,
		Severity:    severity,
		Recoverable: recoverable,
		MaxRetries:  category.DefaultMaxRetries(),
		Actions:     actions,
		Timestamp:   m.sched.Now(),
		Details:     details,
	}
	return m.insert(state)
}

// Report classifies err and records it as an error state. Convenience
// for callers holding a wrapped error rather than a category.
func (m *Manager) Report(err error, code, userMessage string, severity errors.Severity) errors.State {
	return m.CreateError(errors.CategoryOf(err), code, err.Error(), userMessage, severity, nil)
}

func (m *Manager) insert(state errors.State) errors.State {
	m.mu.Lock()
	// Supersede an unresolved state with the same category and code.
	var superseded *errors.State
	for _, id := range m.order {
		s := m.states[id]
		if !s.Resolved && s.Category == state.Category && s.Code == state.Code {
			s.Resolved = true
			superseded = s
			m.cancelPendingLocked(s.ID)
			break
		}
	}
	copied := state
	m.states[state.ID] = &copied
	m.order = append(m.order, state.ID)
	listeners := m.snapshotListenersLocked(m.errorListeners)
	m.mu.Unlock()

	m.metrics.IncError(string(state.Category), state.Severity.String())
	m.logger.Warn("error state created",
		"id", state.ID,
		"category", state.Category,
		"code", state.Code,
		"severity", state.Severity.String(),
		"recoverable", state.Recoverable,
	)
	if superseded != nil {
		m.logger.Debug("error state superseded", "id", superseded.ID, "code", superseded.Code)
	}

	for _, l := range listeners {
		l(state)
	}
	return state
}

// RetryError gates one retry of the failed operation behind the state's
// budget and backoff delay. attempt runs on the scheduler after
// min(1s·2^(retryCount−1), 10s); the manager never re-runs the
// operation itself. Returns ErrNotRecoverable or ErrMaxRetriesExceeded
// without touching the retry count when the state cannot be retried.
func (m *Manager) RetryError(id string, attempt func()) error {
	m.mu.Lock()
	state, ok := m.states[id]
	if !ok {
		m.mu.Unlock()
		return errors.ErrKeyNotFound
	}
	category := state.Category
	if !state.Recoverable || state.Resolved {
		m.mu.Unlock()
		m.metrics.IncErrorRetry(string(category), "refused")
		return errors.ErrNotRecoverable
	}
	if state.RetryCount >= state.MaxRetries {
		m.mu.Unlock()
		m.metrics.IncErrorRetry(string(category), "exhausted")
		return errors.ErrMaxRetriesExceeded
	}
	if _, pending := m.pendingRetries[id]; pending {
		m.mu.Unlock()
		return errors.Wrap(errors.ErrInvalidTransition, "recovery", "RetryError", "retry already pending")
	}

	state.RetryCount++
	delay := retry.ErrorBackoff(state.RetryCount)
	token := m.sched.After(delay, func() {
		m.mu.Lock()
		delete(m.pendingRetries, id)
		m.mu.Unlock()
		attempt()
	})
	m.pendingRetries[id] = token
	m.mu.Unlock()

	m.metrics.IncErrorRetry(string(category), "scheduled")
	m.logger.Info("retry scheduled", "id", id, "delay", delay)
	return nil
}

// ResolveError marks the state resolved (successful retry or
// supersession), cancels any pending backoff, and notifies recovery
// listeners.
func (m *Manager) ResolveError(id string) bool {
	return m.finish(id, "resolved")
}

// DismissError marks the state resolved at the user's request. A
// pending backoff delay is cancelled: dismissing an error always wins
// over a scheduled retry.
func (m *Manager) DismissError(id string) bool {
	return m.finish(id, "dismissed")
}

func (m *Manager) finish(id, how string) bool {
	m.mu.Lock()
	state, ok := m.states[id]
	if !ok || state.Resolved {
		m.mu.Unlock()
		return false
	}
	state.Resolved = true
	m.cancelPendingLocked(id)
	copied := *state
	listeners := m.snapshotListenersLocked(m.recoveryListeners)
	m.mu.Unlock()

	m.logger.Info("error state "+how, "id", id, "code", copied.Code)
	for _, l := range listeners {
		l(copied)
	}
	return true
}

func (m *Manager) cancelPendingLocked(id string) {
	if token, ok := m.pendingRetries[id]; ok {
		m.sched.Cancel(token)
		delete(m.pendingRetries, id)
	}
}

// ActiveErrors returns unresolved states in creation order.
func (m *Manager) ActiveErrors() []errors.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []errors.State
	for _, id := range m.order {
		if s := m.states[id]; !s.Resolved {
			out = append(out, *s)
		}
	}
	return out
}

// Get returns a copy of the state with id.
func (m *Manager) Get(id string) (errors.State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[id]
	if !ok {
		return errors.State{}, false
	}
	return *s, true
}

// OnError registers a listener for newly created states. The returned
// function unsubscribes it.
func (m *Manager) OnError(l Listener) func() {
	return m.subscribe(m.errorListeners, l)
}

// OnRecovery registers a listener for resolved states. The returned
// function unsubscribes it.
func (m *Manager) OnRecovery(l Listener) func() {
	return m.subscribe(m.recoveryListeners, l)
}

func (m *Manager) subscribe(set map[int]Listener, l Listener) func() {
	m.mu.Lock()
	m.listenerSeq++
	id := m.listenerSeq
	set[id] = l
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(set, id)
		m.mu.Unlock()
	}
}

func (m *Manager) snapshotListenersLocked(set map[int]Listener) []Listener {
	out := make([]Listener, 0, len(set))
	for _, l := range set {
		out = append(out, l)
	}
	return out
}
