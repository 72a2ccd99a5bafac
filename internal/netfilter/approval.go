package netfilter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultApprovalTimeout is how long the approval manager waits for an
// interactive decision before treating the request as denied.
const defaultApprovalTimeout = 30 * time.Second

// ApprovalListener is asked to resolve a domain that needs interactive
// approval. Implementations surface the request out-of-band (a chat
// message, a UI prompt) and block until the user responds or ctx expires.
type ApprovalListener interface {
	PromptApproval(ctx context.Context, session, domain string) DomainDecision
}

// ApprovalManagerOption configures a Manager.
type ApprovalManagerOption func(*Manager)

// WithApprovalTimeout overrides the default prompt timeout.
func WithApprovalTimeout(d time.Duration) ApprovalManagerOption {
	return func(m *Manager) { m.timeout = d }
}

// WithPromptRateLimit caps how many approval prompts a single session can
// trigger per second, bursting up to burst.
func WithPromptRateLimit(perSecond rate.Limit, burst int) ApprovalManagerOption {
	return func(m *Manager) { m.limiterRate, m.limiterBurst = perSecond, burst }
}

// Manager implements the domain approval state machine: an allowlist check,
// a per-session approved/denied cache, and — failing both — an interactive
// prompt with a hard timeout. A request with no listener registered fails
// closed (Deny), never silently times out into an allow.
type Manager struct {
	allowlist Allowlist
	listener  ApprovalListener
	timeout   time.Duration

	limiterRate  rate.Limit
	limiterBurst int

	mu       sync.Mutex
	approved map[string]map[string]struct{} // session -> domain set
	denied   map[string]map[string]struct{}
	limiters map[string]*rate.Limiter
}

// NewManager builds an approval manager over the given config allowlist.
// listener may be nil, in which case any domain outside the allowlist and
// session caches is denied without prompting.
func NewManager(allowlist Allowlist, listener ApprovalListener, opts ...ApprovalManagerOption) *Manager {
	m := &Manager{
		allowlist: allowlist,
		listener:  listener,
		timeout:   defaultApprovalTimeout,
		approved:  make(map[string]map[string]struct{}),
		denied:    make(map[string]map[string]struct{}),
		limiters:  make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Decide runs the full approval state machine for a session/domain pair and
// returns the filter outcome plus, when relevant, how the domain was
// approved.
func (m *Manager) Decide(ctx context.Context, session, domain string) (FilterOutcome, *ApprovalSource) {
	if m.allowlist.Matches(domain) {
		src := ApprovalConfig
		return OutcomeAllowed, &src
	}

	if m.sessionApproved(session, domain) {
		src := ApprovalSession
		return OutcomeAllowed, &src
	}

	if m.sessionDenied(session, domain) {
		return OutcomeDenied, nil
	}

	if m.listener == nil {
		m.markDenied(session, domain)
		return OutcomeDenied, nil
	}

	if !m.allowPrompt(session) {
		return OutcomeDenied, nil
	}

	promptCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	switch m.listener.PromptApproval(promptCtx, session, domain) {
	case DecisionApproved:
		m.markApproved(session, domain)
		src := ApprovalUserPrompt
		return OutcomeApprovedByUser, &src
	case DecisionDenied:
		m.markDenied(session, domain)
		return OutcomeDenied, nil
	default: // DecisionTimeout
		m.markDenied(session, domain)
		return OutcomeTimeout, nil
	}
}

func (m *Manager) allowPrompt(session string) bool {
	if m.limiterRate == 0 {
		return true
	}
	m.mu.Lock()
	l, ok := m.limiters[session]
	if !ok {
		l = rate.NewLimiter(m.limiterRate, m.limiterBurst)
		m.limiters[session] = l
	}
	m.mu.Unlock()
	return l.Allow()
}

func (m *Manager) sessionApproved(session, domain string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.approved[session][domain]
	return ok
}

func (m *Manager) sessionDenied(session, domain string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.denied[session][domain]
	return ok
}

func (m *Manager) markApproved(session, domain string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.approved[session] == nil {
		m.approved[session] = make(map[string]struct{})
	}
	m.approved[session][domain] = struct{}{}
	delete(m.denied[session], domain)
}

func (m *Manager) markDenied(session, domain string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.denied[session] == nil {
		m.denied[session] = make(map[string]struct{})
	}
	m.denied[session][domain] = struct{}{}
}

// ResetSession clears the approved/denied cache for a session, used when a
// sandboxed container is torn down.
func (m *Manager) ResetSession(session string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.approved, session)
	delete(m.denied, session)
	delete(m.limiters, session)
}
