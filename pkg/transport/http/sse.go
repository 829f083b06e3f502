package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/rhuss/aichat/pkg/api"
	"github.com/rhuss/aichat/pkg/transport"
)

// SSE event names for the terminal frames of a chat stream. Fragment
// frames carry no event name.
const (
	eventDone  = "done"
	eventError = "error"
)

// writerState tracks the state of an SSE FragmentWriter.
type writerState int

const (
	writerIdle      writerState = iota // Initial state, no writes yet
	writerStreaming                    // Headers sent, at least one frame written
	writerCompleted                    // Terminal frame sent
)

var errWriterCompleted = errors.New("cannot write fragment: stream is completed")

// sseFragmentWriter implements transport.FragmentWriter for HTTP/SSE
// responses. Each fragment becomes one SSE message; the stream ends with
// an "event: done" or "event: error" frame.
type sseFragmentWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu    sync.Mutex
	state writerState
}

var _ transport.FragmentWriter = (*sseFragmentWriter)(nil)

func newSSEFragmentWriter(w http.ResponseWriter) *sseFragmentWriter {
	return &sseFragmentWriter{
		w:  w,
		rc: http.NewResponseController(w),
	}
}

// WriteFragment sends chunk as one SSE message. A multi-line chunk is
// split over several data lines, which the client rejoins with "\n".
func (s *sseFragmentWriter) WriteFragment(_ context.Context, chunk string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerCompleted {
		return errWriterCompleted
	}
	s.start()

	if _, err := fmt.Fprint(s.w, formatData(chunk)); err != nil {
		return fmt.Errorf("failed to write fragment: %w", err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return nil
}

// Flush ensures buffered data is sent to the client.
func (s *sseFragmentWriter) Flush() error {
	return s.rc.Flush()
}

// writeDone ends the stream normally.
func (s *sseFragmentWriter) writeDone() error {
	return s.writeTerminal(eventDone, "")
}

// writeError ends the stream with an error frame carrying the JSON error
// body.
func (s *sseFragmentWriter) writeError(apiErr *api.APIError) error {
	data, err := json.Marshal(api.ErrorResponse{Error: apiErr})
	if err != nil {
		return fmt.Errorf("failed to marshal error: %w", err)
	}
	return s.writeTerminal(eventError, string(data))
}

func (s *sseFragmentWriter) writeTerminal(event, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerCompleted {
		return errWriterCompleted
	}
	s.start()
	s.state = writerCompleted

	if _, err := fmt.Fprintf(s.w, "event: %s\n%s", event, formatData(data)); err != nil {
		return fmt.Errorf("failed to write %s event: %w", event, err)
	}
	return s.rc.Flush()
}

// start sends the SSE headers on the first write. Callers hold mu.
func (s *sseFragmentWriter) start() {
	if s.state != writerIdle {
		return
	}
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.state = writerStreaming
}

// hasStartedStreaming reports whether any frame has been written.
func (s *sseFragmentWriter) hasStartedStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != writerIdle
}

// formatData renders payload as the data lines of one SSE message.
func formatData(payload string) string {
	var b strings.Builder
	for _, line := range strings.Split(payload, "\n") {
		b.WriteString("data: ")
		b.WriteString(strings.TrimSuffix(line, "\r"))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.String()
}
