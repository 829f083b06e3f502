package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"

	"github.com/rhuss/aichat/pkg/api"
	"github.com/rhuss/aichat/pkg/auth"
	"github.com/rhuss/aichat/pkg/debug"
	"github.com/rhuss/aichat/pkg/observability"
	"github.com/rhuss/aichat/pkg/transport"
)

// Adapter serves the chat endpoints over HTTP.
// It routes requests to the ChatHandler and streams replies as SSE.
type Adapter struct {
	handler  transport.ChatHandler
	health   HealthChecker // nil reports ready unconditionally
	sessions *Sessions
	inflight *transport.InFlightRegistry
	mux      *http.ServeMux
	wrappers []func(http.Handler) http.Handler
	config   Config
}

// HealthChecker reports whether the backing stores are reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthCheckFunc adapts a function to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

// HealthCheck calls f.
func (f HealthCheckFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64
	UI          UIConfig
}

// UIConfig is the presentation data returned by GET /chat/.
type UIConfig struct {
	Title          string `json:"title"`
	Placeholder    string `json:"placeholder"`
	RenderMarkdown bool   `json:"render_markdown"`
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 1 << 20, // 1 MB
		UI: UIConfig{
			Title:          "Chat",
			Placeholder:    "Type your message here...",
			RenderMarkdown: true,
		},
	}
}

// chatView is the body of GET /chat/.
type chatView struct {
	UIConfig
	Conversation api.Conversation `json:"conversation"`
}

// submitRequest is the JSON body of POST /chat/.
type submitRequest struct {
	Message *string `json:"message"`
}

// NewAdapter creates an HTTP adapter for handler. Middleware is applied to
// the handler in the given order. With nil sessions the chat routes read
// the session ID only from the context (see ContextWithSession).
func NewAdapter(handler transport.ChatHandler, sessions *Sessions, health HealthChecker, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if len(middlewares) > 0 {
		handler = transport.Chain(middlewares...)(handler)
	}

	a := &Adapter{
		handler:  handler,
		health:   health,
		sessions: sessions,
		inflight: transport.NewInFlightRegistry(),
		mux:      http.NewServeMux(),
		config:   cfg,
	}

	a.mux.Handle("POST /chat/{$}", a.withSession(a.handleSubmit))
	a.mux.Handle("POST /chat/clear/{$}", a.withSession(a.handleClear))
	a.mux.Handle("GET /chat/{$}", a.withSession(a.handleView))
	a.mux.HandleFunc("GET /healthz", a.handleHealthz)
	a.mux.HandleFunc("GET /readyz", a.handleReadyz)
	a.mux.HandleFunc("/", handleNotFound)

	return a
}

// withSession resolves the session cookie before h runs.
func (a *Adapter) withSession(h http.HandlerFunc) http.Handler {
	if a.sessions == nil {
		return h
	}
	return a.sessions.Middleware(h)
}

// Handle registers an extra handler on the adapter's mux, such as the
// metrics endpoint.
func (a *Adapter) Handle(pattern string, h http.Handler) {
	a.mux.Handle(pattern, h)
}

// Use adds HTTP middleware, such as authentication, that runs after
// request ID assignment and before the metrics middleware. The first
// added is the outermost.
func (a *Adapter) Use(mw func(http.Handler) http.Handler) {
	a.wrappers = append(a.wrappers, mw)
}

// InFlight returns the registry of running exchanges.
func (a *Adapter) InFlight() *transport.InFlightRegistry {
	return a.inflight
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest. The returned handler includes
// request ID propagation and request metrics.
func (a *Adapter) Handler() http.Handler {
	h := observability.MetricsMiddleware(a.mux)
	for i := len(a.wrappers) - 1; i >= 0; i-- {
		h = a.wrappers[i](h)
	}
	return httpRequestIDMiddleware(h)
}

// httpRequestIDMiddleware puts the X-Request-ID header value into the
// request context, replacing a missing or malformed one with a fresh ID.
// The ID is echoed on the response.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if !transport.ValidRequestID(id) {
			id = transport.NewRequestID()
		}
		r = r.WithContext(transport.ContextWithRequestID(r.Context(), id))
		rw := &requestIDResponseWriter{ResponseWriter: w, r: r}
		next.ServeHTTP(rw, r)
	})
}

// requestIDResponseWriter wraps http.ResponseWriter to inject the
// X-Request-ID header before the first write.
type requestIDResponseWriter struct {
	http.ResponseWriter
	r           *http.Request
	headersSent bool
}

func (w *requestIDResponseWriter) WriteHeader(statusCode int) {
	w.ensureRequestIDHeader()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *requestIDResponseWriter) Write(b []byte) (int, error) {
	w.ensureRequestIDHeader()
	return w.ResponseWriter.Write(b)
}

func (w *requestIDResponseWriter) Flush() {
	w.ensureRequestIDHeader()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter for http.NewResponseController.
func (w *requestIDResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *requestIDResponseWriter) ensureRequestIDHeader() {
	if w.headersSent {
		return
	}
	w.headersSent = true
	if id := transport.RequestIDFromContext(w.r.Context()); id != "" {
		w.ResponseWriter.Header().Set("X-Request-ID", id)
	}
}

// handleSubmit handles POST /chat/. The reply is streamed as SSE.
func (a *Adapter) handleSubmit(w http.ResponseWriter, r *http.Request) {
	text, apiErr, status := a.decodeMessage(w, r)
	if apiErr != nil {
		transport.WriteErrorResponse(w, apiErr, status)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	id := transport.RequestIDFromContext(ctx)
	session := SessionFromContext(ctx)
	release := a.inflight.Register(id, session, cancel)
	defer release()
	debug.Log("transport", "exchange started", "request_id", id, "session", session, "subject", auth.SubjectFromContext(ctx))

	rw := newSSEFragmentWriter(w)
	err := a.handler.Submit(ctx, session, text, rw)
	if err != nil {
		a.writeHandlerError(w, rw, err)
		return
	}
	if err := rw.writeDone(); err != nil && ctx.Err() == nil {
		slog.Debug("writing done frame", "request_id", id, "error", err)
	}
}

// decodeMessage extracts the message field from a form or JSON body. A
// body without the field is rejected like an invalid form.
func (a *Adapter) decodeMessage(w http.ResponseWriter, r *http.Request) (string, *api.APIError, int) {
	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			if tooLarge(err) {
				return "", a.tooLargeError(), http.StatusRequestEntityTooLarge
			}
			return "", api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()), http.StatusBadRequest
		}
		if req.Message == nil {
			return "", api.NewInvalidRequestError("message", "message is required"), http.StatusBadRequest
		}
		return *req.Message, nil, 0

	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(a.config.MaxBodySize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			if tooLarge(err) {
				return "", a.tooLargeError(), http.StatusRequestEntityTooLarge
			}
			return "", api.NewInvalidRequestError("body", "invalid form: "+err.Error()), http.StatusBadRequest
		}
		if _, ok := r.PostForm["message"]; !ok {
			return "", api.NewInvalidRequestError("message", "message is required"), http.StatusBadRequest
		}
		return r.PostForm.Get("message"), nil, 0

	default:
		msg := "Content-Type must be application/json, application/x-www-form-urlencoded or multipart/form-data"
		return "", api.NewInvalidRequestError("content_type", msg), http.StatusUnsupportedMediaType
	}
}

func tooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}

func (a *Adapter) tooLargeError() *api.APIError {
	return api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize))
}

// handleClear handles POST /chat/clear/.
func (a *Adapter) handleClear(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())

	// A reply still streaming would be committed after the clear.
	n, err := a.inflight.CancelSession(r.Context(), session)
	if err != nil {
		slog.Warn("clear abandoned while replies were stopping",
			"request_id", transport.RequestIDFromContext(r.Context()), "session", session, "error", err)
		apiErr := api.NewServerError("conversation not cleared: running reply did not stop in time")
		transport.WriteErrorResponse(w, apiErr, http.StatusServiceUnavailable)
		return
	}
	if n > 0 {
		slog.Debug("cancelled exchanges before clear", "session", session, "count", n)
	}

	if err := a.handler.Clear(r.Context(), session); err != nil {
		slog.Error("clearing conversation", "request_id", transport.RequestIDFromContext(r.Context()), "error", err)
		transport.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleView handles GET /chat/.
func (a *Adapter) handleView(w http.ResponseWriter, r *http.Request) {
	conv, err := a.handler.Conversation(r.Context(), SessionFromContext(r.Context()))
	if err != nil {
		slog.Error("loading conversation", "request_id", transport.RequestIDFromContext(r.Context()), "error", err)
		transport.WriteError(w, err)
		return
	}
	if conv == nil {
		conv = api.Conversation{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chatView{UIConfig: a.config.UI, Conversation: conv})
}

// handleNotFound answers requests no other route matched.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	transport.WriteAPIError(w, api.NewNotFoundError("no route for "+r.Method+" "+r.URL.Path))
}

// handleHealthz handles GET /healthz.
func (a *Adapter) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleReadyz handles GET /readyz by checking the stores.
func (a *Adapter) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if a.health != nil {
		if err := a.health.HealthCheck(r.Context()); err != nil {
			slog.Warn("readiness check failed", "error", err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// writeHandlerError writes an error from the handler. If streaming has
// already started it sends an error frame, otherwise a JSON error
// response.
func (a *Adapter) writeHandlerError(w http.ResponseWriter, rw *sseFragmentWriter, err error) {
	apiErr := transport.ToAPIError(err)

	if rw.hasStartedStreaming() {
		if werr := rw.writeError(apiErr); werr != nil {
			slog.Debug("writing error frame", "error", werr)
		}
		return
	}

	transport.WriteAPIError(w, apiErr)
}
