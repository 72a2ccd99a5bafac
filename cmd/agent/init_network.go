package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"moltis/internal/infra/config"
	"moltis/internal/netaudit"
	"moltis/internal/netfilter"
	"moltis/internal/proxy"
)

// NetworkComponents holds the trusted-network proxy stack: the domain
// allowlist/approval state machine, the audit ring buffer, and the proxy
// server itself. Proxy is nil when disabled.
type NetworkComponents struct {
	Approval  *netfilter.Manager
	Audit     *netaudit.Buffer
	Proxy     *proxy.Proxy
	ProxyAddr string // empty when the proxy is disabled
}

// initNetwork wires the trusted-network proxy and its supporting allowlist
// and audit components. It does not start the proxy; the caller starts it
// alongside the other long-running servers so shutdown ordering stays
// centralized in main.
func initNetwork(cfg *config.Config, log *slog.Logger) (*NetworkComponents, func(), error) {
	comp := &NetworkComponents{}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	capacity := cfg.Network.Audit.Capacity
	if capacity <= 0 {
		capacity = 2000
	}
	audit := netaudit.NewBuffer(capacity, log)
	if cfg.Network.Audit.Path != "" {
		if err := audit.EnablePersistence(cfg.Network.Audit.Path); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("network audit persistence: %w", err)
		}
	}
	cleanups = append(cleanups, func() {
		if err := audit.Close(); err != nil {
			log.Warn("network audit buffer close failed", "error", err)
		}
	})
	comp.Audit = audit

	allowlist := netfilter.ParseAllowlist(cfg.Network.Allowlist)

	var approvalOpts []netfilter.ApprovalManagerOption
	if cfg.Network.Approval.Timeout != "" {
		d, err := time.ParseDuration(cfg.Network.Approval.Timeout)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("parse network approval timeout: %w", err)
		}
		approvalOpts = append(approvalOpts, netfilter.WithApprovalTimeout(d))
	}
	if cfg.Network.Approval.PromptsPerSecond > 0 {
		approvalOpts = append(approvalOpts, netfilter.WithPromptRateLimit(
			rate.Limit(cfg.Network.Approval.PromptsPerSecond), cfg.Network.Approval.PromptBurst))
	}

	// No interactive ApprovalListener is wired yet (the gateway has no
	// channel-agnostic out-of-band prompt surface); domains outside the
	// allowlist fail closed instead of hanging on an unanswerable prompt,
	// matching usecase.ConfigApprover's own "unlisted means denied" default.
	approval := netfilter.NewManager(allowlist, nil, approvalOpts...)
	comp.Approval = approval

	if !cfg.Network.Proxy.Enabled {
		return comp, cleanup, nil
	}

	addr := cfg.Network.Proxy.ListenAddr
	if addr == "" {
		addr = "127.0.0.1:18791"
	}

	var proxyOpts []proxy.Option
	if cfg.Network.Proxy.DialTimeout != "" {
		d, err := time.ParseDuration(cfg.Network.Proxy.DialTimeout)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("parse network proxy dial_timeout: %w", err)
		}
		proxyOpts = append(proxyOpts, proxy.WithDialTimeout(d))
	}
	if len(cfg.Network.Proxy.SSRFAllow) > 0 {
		cidrs, err := netfilter.ParseCIDRAllowlist(cfg.Network.Proxy.SSRFAllow)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("parse network proxy ssrf_allow: %w", err)
		}
		proxyOpts = append(proxyOpts, proxy.WithSSRFAllowlist(cidrs))
	}

	p := proxy.New(addr, approval, audit, log, proxyOpts...)
	comp.Proxy = p
	comp.ProxyAddr = addr

	log.Info("trusted network proxy configured", "addr", addr, "allowlist", len(cfg.Network.Allowlist))
	return comp, cleanup, nil
}

// startNetworkProxy runs the proxy until ctx is cancelled; it's a no-op when
// the proxy wasn't configured.
func startNetworkProxy(ctx context.Context, net *NetworkComponents, log *slog.Logger) {
	if net.Proxy == nil {
		return
	}
	go func() {
		if err := net.Proxy.ListenAndServe(ctx); err != nil && ctx.Err() == nil {
			log.Error("network proxy server error", "error", err)
		}
	}()
}
