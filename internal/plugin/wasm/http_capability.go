package wasm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// Defaults mirror original_source/crates/wasm-tools/web-search's
// outgoing-handler.handle constants, since no per-request override is
// supplied by the guest.
const (
	defaultHTTPTimeoutMS           = 12_000
	defaultMaxResponseBytes        = 2_000_000
	maxHTTPTimeoutMS        uint32 = 120_000 // guests cannot request longer than this
)

// httpFetchRequest is the JSON envelope a guest passes to http_fetch,
// matching the outgoing-handler.handle request shape from spec §4.6/§6:
// method, url, headers, and optional per-request timeout/size overrides.
// The request body itself travels as a separate raw ptr/len pair so binary
// payloads don't pay a base64 tax.
type httpFetchRequest struct {
	Method           string            `json:"method"`
	URL              string            `json:"url"`
	Headers          map[string]string `json:"headers,omitempty"`
	TimeoutMS        uint32            `json:"timeout_ms,omitempty"`
	MaxResponseBytes uint64            `json:"max_response_bytes,omitempty"`
}

// httpFetchResponse is the success-shaped JSON result written back to the
// guest.
type httpFetchResponse struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body"`
}

// httpFetchError is the tagged-error JSON result per spec §7: one of
// invalid_url, blocked_url, timeout, network, http_status, too_large,
// http_error.
type httpFetchError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newHTTPFetchError(code, message string) httpFetchError {
	var e httpFetchError
	e.Error.Code = code
	e.Error.Message = message
	return e
}

// httpClientFor returns an http.Client that routes every request through the
// trusted-network proxy at proxyAddr, or nil if no proxy is configured. Guest
// code never dials the network directly; the proxy is the only path a WASM
// tool has to the outside world, so every request it issues is domain
// filtered, SSRF checked, and audited exactly like any other outbound call.
// The client carries no fixed Timeout: each call's deadline comes from the
// guest-supplied (or default) timeout_ms, applied per request via context.
func httpClientFor(proxyAddr string) *http.Client {
	if proxyAddr == "" {
		return nil
	}
	proxyURL := &url.URL{Scheme: "http", Host: proxyAddr}
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyURL(proxyURL),
		},
	}
}

// registerHTTPCapability adds http_fetch(req_ptr, req_len, body_ptr,
// body_len) → (ptr, len) to the host module builder. req is the JSON
// httpFetchRequest envelope; the result is a JSON httpFetchResponse on
// success or a tagged httpFetchError on failure, written back into guest
// memory — callers distinguish the two by probing for the top-level "error"
// key. Registration is skipped unless CapHTTP is granted, so a plugin
// without the capability cannot even see the import; env.httpClient is
// wired in later during Init, so calls made before Init fail closed rather
// than panicking.
func registerHTTPCapability(builder wazero.HostModuleBuilder, env *hostEnv) {
	if !env.sandbox.AllowCapability(CapHTTP) {
		return
	}

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			reqPtr, reqLen := uint32(stack[0]), uint32(stack[1])
			bodyPtr, bodyLen := uint32(stack[2]), uint32(stack[3])

			ptr, size := handleHTTPFetch(ctx, env, mod, reqPtr, reqLen, bodyPtr, bodyLen)
			stack[0] = uint64(ptr)
			stack[1] = uint64(size)
		}), []api.ValueType{
			api.ValueTypeI32, api.ValueTypeI32, // request JSON
			api.ValueTypeI32, api.ValueTypeI32, // body
		}, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}).
		Export("http_fetch")
}

// handleHTTPFetch performs the request and writes either an
// httpFetchResponse or an httpFetchError back into guest memory, returning
// the ptr/len of whichever it wrote. A zero ptr/len pair is only returned
// when the write-back itself fails — every request-level failure still
// reaches the guest as a tagged error so it can react to invalid_url vs.
// timeout vs. blocked_url instead of seeing an opaque null.
func handleHTTPFetch(ctx context.Context, env *hostEnv, mod api.Module, reqPtr, reqLen, bodyPtr, bodyLen uint32) (uint32, uint32) {
	if env.httpClient == nil {
		env.logger.Warn("wasm http_fetch: proxy not configured")
		return writeHTTPFetchError(env, mod, newHTTPFetchError("network", "trusted proxy not configured"))
	}

	rawReq, err := ReadBytes(mod, reqPtr, reqLen)
	if err != nil {
		env.logger.Error("wasm http_fetch: read request failed", "error", err)
		return writeHTTPFetchError(env, mod, newHTTPFetchError("http_error", "failed to read request"))
	}

	var req httpFetchRequest
	if err := json.Unmarshal(rawReq, &req); err != nil {
		return writeHTTPFetchError(env, mod, newHTTPFetchError("http_error", "malformed request: "+err.Error()))
	}

	target, err := url.Parse(req.URL)
	if err != nil || target.Scheme != "http" && target.Scheme != "https" || target.Host == "" {
		return writeHTTPFetchError(env, mod, newHTTPFetchError("invalid_url", "unsupported or malformed url: "+req.URL))
	}

	var body io.Reader
	if bodyLen > 0 {
		b, err := ReadBytes(mod, bodyPtr, bodyLen)
		if err != nil {
			env.logger.Error("wasm http_fetch: read body failed", "error", err)
			return writeHTTPFetchError(env, mod, newHTTPFetchError("http_error", "failed to read body"))
		}
		body = newByteReader(b)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	timeoutMS := req.TimeoutMS
	if timeoutMS == 0 {
		timeoutMS = defaultHTTPTimeoutMS
	}
	if timeoutMS > maxHTTPTimeoutMS {
		timeoutMS = maxHTTPTimeoutMS
	}

	maxBytes := req.MaxResponseBytes
	if maxBytes == 0 {
		maxBytes = defaultMaxResponseBytes
	}
	// A guest can never ask for more than its own sandboxed memory budget —
	// it couldn't hold a larger response anyway.
	if sandboxCeiling := uint64(env.sandbox.Limits().MemoryBytes); maxBytes > sandboxCeiling {
		maxBytes = sandboxCeiling
	}

	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMS)*time.Millisecond)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, method, target.String(), body)
	if err != nil {
		return writeHTTPFetchError(env, mod, newHTTPFetchError("invalid_url", err.Error()))
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := env.httpClient.Do(httpReq)
	if err != nil {
		return writeHTTPFetchError(env, mod, classifyFetchError(err))
	}
	defer resp.Body.Close()

	// The trusted proxy rejects a blocked/unapproved destination with a
	// bare 403 and no body (see internal/proxy's rejectConnect/handleForward);
	// a real origin server's own 403 almost always carries one. This is a
	// heuristic, not a protocol guarantee, but it's the only signal
	// available without a side channel from the proxy.
	if resp.StatusCode == http.StatusForbidden && resp.ContentLength == 0 {
		return writeHTTPFetchError(env, mod, newHTTPFetchError("blocked_url", "destination blocked by trusted proxy"))
	}

	limited := io.LimitReader(resp.Body, int64(maxBytes)+1)
	respBody, err := io.ReadAll(limited)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return writeHTTPFetchError(env, mod, newHTTPFetchError("timeout", "reading response body timed out"))
		}
		return writeHTTPFetchError(env, mod, newHTTPFetchError("network", "reading response body: "+err.Error()))
	}
	if uint64(len(respBody)) > maxBytes {
		return writeHTTPFetchError(env, mod, newHTTPFetchError("too_large", fmt.Sprintf("response exceeded %d bytes", maxBytes)))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return writeHTTPFetchError(env, mod, newHTTPFetchError("http_status", fmt.Sprintf("HTTP %d", resp.StatusCode)))
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	payload, err := json.Marshal(httpFetchResponse{
		Status:  resp.StatusCode,
		Headers: headers,
		Body:    string(respBody),
	})
	if err != nil {
		env.logger.Error("wasm http_fetch: marshal response failed", "error", err)
		return writeHTTPFetchError(env, mod, newHTTPFetchError("http_error", "failed to encode response"))
	}

	outPtr, outSize, err := WriteBytes(mod, payload)
	if err != nil {
		env.logger.Error("wasm http_fetch: write result failed", "error", err)
		return 0, 0
	}
	return outPtr, outSize
}

// classifyFetchError maps an http.Client.Do error onto the spec §7 tagged
// error taxonomy. CONNECT-tunnel proxy rejections (for https targets) and
// dial-time DNS/refused-connection failures both surface here as client
// errors rather than as a response, so they need text-based classification
// rather than a status code to inspect.
func classifyFetchError(err error) httpFetchError {
	if errors.Is(err, context.DeadlineExceeded) {
		return newHTTPFetchError("timeout", "request timed out")
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(msg, "403") || strings.Contains(lower, "forbidden") {
		return newHTTPFetchError("blocked_url", "destination blocked by trusted proxy")
	}
	return newHTTPFetchError("network", msg)
}

// writeHTTPFetchError marshals e and writes it into guest memory, falling
// back to a zero ptr/len pair only if the write itself fails.
func writeHTTPFetchError(env *hostEnv, mod api.Module, e httpFetchError) (uint32, uint32) {
	payload, err := json.Marshal(e)
	if err != nil {
		env.logger.Error("wasm http_fetch: marshal error failed", "error", err)
		return 0, 0
	}
	ptr, size, err := WriteBytes(mod, payload)
	if err != nil {
		env.logger.Error("wasm http_fetch: write error failed", "error", err)
		return 0, 0
	}
	return ptr, size
}

type byteReader struct {
	b   []byte
	off int
}

func newByteReader(b []byte) *byteReader { return &byteReader{b: b} }

func (r *byteReader) Read(p []byte) (int, error) {
	if r.off >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.off:])
	r.off += n
	return n, nil
}
