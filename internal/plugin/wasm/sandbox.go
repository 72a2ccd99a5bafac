package wasm

import (
	"fmt"
	"log/slog"
	"time"

	"moltis/internal/domain"
)

// Capability constants define the host functions a WASM plugin can access.
const (
	CapLog        = "log"       // always allowed
	CapConfig     = "config"    // always allowed
	CapEventBus   = "event_bus" // requires explicit grant
	CapToolResult = "tool"      // requires explicit grant
	CapHTTP       = "http"      // requires explicit grant; routed through the trusted proxy
)

// knownCapabilities is the set of all valid capability strings.
var knownCapabilities = map[string]bool{
	CapLog:        true,
	CapConfig:     true,
	CapEventBus:   true,
	CapToolResult: true,
	CapHTTP:       true,
}

// alwaysAllowed capabilities are granted regardless of manifest configuration.
var alwaysAllowed = map[string]bool{
	CapLog:    true,
	CapConfig: true,
}

// Sandbox enforces capability-based restrictions on WASM plugin host function access.
type Sandbox struct {
	capabilities map[string]bool
	execTimeout  time.Duration
	limits       ToolLimits
	logger       *slog.Logger
}

// NewSandbox creates a Sandbox from the given WASM plugin config. toolName
// selects the per-tool fuel/memory/table budget from the resource limits
// table; pass "" to take the default budget. cfg.MaxMemoryMB, when set,
// overrides the table's memory ceiling (and the table-element ceiling
// derived from it) for this one plugin instance — the table entry remains
// the single source of truth otherwise, so MaxMemoryMB and Limits() can
// never disagree about how much memory a plugin is actually allowed.
func NewSandbox(cfg domain.WASMPluginConfig, toolName string, logger *slog.Logger) *Sandbox {
	limits := LimitsFor(toolName)
	if cfg.MaxMemoryMB > 0 {
		limits = withDerivedTableLimit(limits.Fuel, uint32(cfg.MaxMemoryMB)*1024*1024)
	}

	timeout := cfg.ExecTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	caps := make(map[string]bool)
	// Always-allowed capabilities.
	for cap := range alwaysAllowed {
		caps[cap] = true
	}
	// Explicitly requested capabilities.
	for _, cap := range cfg.Capabilities {
		caps[cap] = true
	}

	return &Sandbox{
		capabilities: caps,
		execTimeout:  timeout,
		limits:       limits,
		logger:       logger,
	}
}

// Limits returns the fuel/memory/table resource budget for this sandbox's
// tool. This is the single source of truth for enforcement: the runtime a
// plugin is instantiated on is chosen by Limits().MemoryPages(), so two
// sandboxes with equal Limits() always share the same memory ceiling.
func (s *Sandbox) Limits() ToolLimits {
	return s.limits
}

// AllowCapability reports whether the given capability is permitted.
func (s *Sandbox) AllowCapability(cap string) bool {
	return s.capabilities[cap]
}

// MaxMemoryMB returns the memory limit in megabytes.
func (s *Sandbox) MaxMemoryMB() int {
	return int(s.limits.MemoryBytes / (1024 * 1024))
}

// ExecTimeout returns the execution timeout for guest function calls.
func (s *Sandbox) ExecTimeout() time.Duration {
	return s.execTimeout
}

// MemoryPages returns the number of WASM 64KB memory pages corresponding
// to the configured memory limit.
func (s *Sandbox) MemoryPages() uint32 {
	return s.limits.MemoryPages()
}

// ValidateCapabilities checks that all requested capabilities are known.
// Returns an error listing unknown capabilities.
func ValidateCapabilities(requested []string) error {
	var unknown []string
	for _, cap := range requested {
		if !knownCapabilities[cap] {
			unknown = append(unknown, cap)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("%w: unknown capabilities: %v", domain.ErrPermissionDenied, unknown)
	}
	return nil
}
