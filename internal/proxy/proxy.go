// Package proxy implements the trusted-network HTTP CONNECT and forward
// proxy that mediates all outbound traffic from sandboxed tool containers:
// every accepted or rejected connection is domain-filtered, SSRF-checked,
// and audited exactly once.
package proxy

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"moltis/internal/netaudit"
	"moltis/internal/netfilter"
)

// Option configures a Proxy.
type Option func(*Proxy)

// WithSSRFAllowlist sets the CIDR allowlist consulted before dialing any
// upstream IP.
func WithSSRFAllowlist(allow []*net.IPNet) Option {
	return func(p *Proxy) { p.ssrfAllowlist = allow }
}

// WithDialTimeout overrides the upstream dial timeout (default 10s).
func WithDialTimeout(d time.Duration) Option {
	return func(p *Proxy) { p.dialer.Timeout = d }
}

// Proxy is the trusted-network HTTP CONNECT/forward proxy.
type Proxy struct {
	addr          string
	approval      *netfilter.Manager
	audit         *netaudit.Buffer
	logger        *slog.Logger
	dialer        net.Dialer
	ssrfAllowlist []*net.IPNet

	server *http.Server
}

// New builds a Proxy listening on addr (typically loopback-only,
// 127.0.0.1:18791). approval and audit must not be nil.
func New(addr string, approval *netfilter.Manager, audit *netaudit.Buffer, logger *slog.Logger, opts ...Option) *Proxy {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Proxy{
		addr:     addr,
		approval: approval,
		audit:    audit,
		logger:   logger,
		dialer:   net.Dialer{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.server = &http.Server{
		Addr:              addr,
		Handler:           p,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0, // CONNECT tunnels run indefinitely
	}
	return p
}

// ListenAndServe starts accepting connections; it blocks until ctx is
// cancelled or the listener fails.
func (p *Proxy) ListenAndServe(ctx context.Context) error {
	p.server.BaseContext = func(net.Listener) context.Context { return ctx }
	errCh := make(chan error, 1)
	go func() { errCh <- p.server.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return p.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// ServeHTTP dispatches between CONNECT tunnels and plain HTTP forwards.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodConnect {
		p.handleConnect(w, r)
		return
	}
	p.handleForward(w, r)
}

func (p *Proxy) handleConnect(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	session := r.RemoteAddr

	host, portStr, err := net.SplitHostPort(r.Host)
	if err != nil {
		host, portStr = r.Host, "443"
	}
	port := parsePort(portStr)

	outcome, src := p.approval.Decide(r.Context(), session, host)
	if outcome != netfilter.OutcomeAllowed && outcome != netfilter.OutcomeApprovedByUser {
		p.rejectConnect(w, host, port, session, outcome, start)
		return
	}

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "hijack unsupported", http.StatusInternalServerError)
		return
	}
	clientConn, _, err := hijacker.Hijack()
	if err != nil {
		p.logger.Warn("proxy: hijack failed", "error", err)
		return
	}
	defer clientConn.Close()

	ip, err := p.resolveValidated(r.Context(), host)
	if err != nil {
		clientConn.Write([]byte("HTTP/1.1 403 Forbidden\r\n\r\n"))
		p.pushAudit(audit(session, host, port, netfilter.ProtocolHTTPConnect, netfilter.OutcomeDenied, nil, nil, nil, 0, 0, start, err, nil))
		return
	}

	upstream, err := p.dialer.DialContext(r.Context(), "tcp", net.JoinHostPort(ip.String(), portStr))
	if err != nil {
		clientConn.Write([]byte("HTTP/1.1 502 Bad Gateway\r\n\r\n"))
		p.pushAudit(audit(session, host, port, netfilter.ProtocolHTTPConnect, outcome, nil, nil, nil, 0, 0, start, err, src))
		return
	}
	defer upstream.Close()

	if _, err := clientConn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n")); err != nil {
		return
	}

	sent, received := relay(clientConn, upstream)
	p.pushAudit(audit(session, host, port, netfilter.ProtocolHTTPConnect, outcome, nil, nil, nil, sent, received, start, nil, src))
}

func (p *Proxy) rejectConnect(w http.ResponseWriter, host string, port uint16, session string, outcome netfilter.FilterOutcome, start time.Time) {
	w.WriteHeader(http.StatusForbidden)
	p.pushAudit(audit(session, host, port, netfilter.ProtocolHTTPConnect, outcome, nil, nil, nil, 0, 0, start, nil, nil))
}

func (p *Proxy) handleForward(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	session := r.RemoteAddr

	target := r.URL
	if !target.IsAbs() {
		http.Error(w, "absolute-form request-URI required", http.StatusBadRequest)
		return
	}
	host := target.Hostname()
	port := parsePort(target.Port())
	if port == 0 {
		port = defaultPortFor(target.Scheme)
	}
	method := r.Method
	fullURL := target.String()

	outcome, src := p.approval.Decide(r.Context(), session, host)
	if outcome != netfilter.OutcomeAllowed && outcome != netfilter.OutcomeApprovedByUser {
		w.WriteHeader(http.StatusForbidden)
		p.pushAudit(audit(session, host, port, netfilter.ProtocolHTTPForward, outcome, &method, &fullURL, nil, 0, 0, start, nil, nil))
		return
	}

	ip, err := p.resolveValidated(r.Context(), host)
	if err != nil {
		w.WriteHeader(http.StatusForbidden)
		p.pushAudit(audit(session, host, port, netfilter.ProtocolHTTPForward, netfilter.OutcomeDenied, &method, &fullURL, nil, 0, 0, start, err, nil))
		return
	}

	outReq, err := http.NewRequestWithContext(r.Context(), r.Method, fullURL, r.Body)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	outReq.Header = r.Header.Clone()

	resp, err := p.pinnedTransport(ip).RoundTrip(outReq)
	if err != nil {
		w.WriteHeader(http.StatusBadGateway)
		p.pushAudit(audit(session, host, port, netfilter.ProtocolHTTPForward, outcome, &method, &fullURL, nil, 0, 0, start, err, src))
		return
	}
	defer resp.Body.Close()

	for k, vv := range resp.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	received, _ := io.Copy(w, resp.Body)
	status := uint16(resp.StatusCode)

	p.pushAudit(audit(session, host, port, netfilter.ProtocolHTTPForward, outcome, &method, &fullURL, &status, 0, uint64(received), start, nil, src))
}

// resolveValidated resolves host once and validates every candidate IP
// against the SSRF guard, returning the first validated address. Dialing
// the returned IP directly (rather than the hostname) closes the
// resolve-then-dial DNS-rebinding gap.
func (p *Proxy) resolveValidated(ctx context.Context, host string) (net.IP, error) {
	u := &url.URL{Host: host}
	if err := netfilter.SSRFCheck(ctx, u, p.ssrfAllowlist); err != nil {
		return nil, err
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil || len(addrs) == 0 {
		return nil, err
	}
	return addrs[0].IP, nil
}

// pinnedTransport returns a one-shot http.Transport that dials exactly ip,
// ignoring whatever the outgoing request's Host header says, for the
// single forwarded request.
func (p *Proxy) pinnedTransport(ip net.IP) *http.Transport {
	return &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			_, port, err := net.SplitHostPort(addr)
			if err != nil {
				port = "80"
			}
			return p.dialer.DialContext(ctx, network, net.JoinHostPort(ip.String(), port))
		},
	}
}

func (p *Proxy) pushAudit(e netfilter.AuditEntry) {
	p.audit.Push(e)
}

func audit(
	session, domain string, port uint16, proto netfilter.NetworkProtocol, outcome netfilter.FilterOutcome,
	method, url *string, status *uint16, sent, received uint64, start time.Time, err error, src *netfilter.ApprovalSource,
) netfilter.AuditEntry {
	e := netfilter.AuditEntry{
		Timestamp:      start.UTC(),
		Session:        session,
		Domain:         domain,
		Port:           port,
		Protocol:       proto,
		Action:         outcome,
		Method:         method,
		URL:            url,
		Status:         status,
		BytesSent:      sent,
		BytesReceived:  received,
		DurationMs:     uint64(time.Since(start).Milliseconds()),
		ApprovalSource: src,
	}
	if err != nil {
		msg := err.Error()
		e.Error = &msg
	}
	return e
}

func relay(client, upstream net.Conn) (sent, received uint64) {
	done := make(chan uint64, 1)
	go func() {
		n, _ := io.Copy(upstream, client)
		if tcp, ok := upstream.(*net.TCPConn); ok {
			tcp.CloseWrite()
		}
		done <- uint64(n)
	}()
	received64, _ := io.Copy(client, upstream)
	sent = <-done
	return sent, uint64(received64)
}

func parsePort(s string) uint16 {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 65535 {
		return 0
	}
	return uint16(n)
}

func defaultPortFor(scheme string) uint16 {
	if strings.EqualFold(scheme, "https") {
		return 443
	}
	return 80
}
