package relay

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/SirClappington/jobstream/internal/domain"
)

var ErrStreamingUnsupported = errors.New("response writer does not support flushing")

// SSEWriter is a Sink that writes each message as one Server-Sent Event and
// flushes it immediately.
type SSEWriter struct {
	w       io.Writer
	flusher http.Flusher
	encode  Encoder
}

// NewSSEWriter writes the event-stream headers and flushes them, so the
// subscriber sees the stream open before the first message.
func NewSSEWriter(w http.ResponseWriter, encode Encoder) (*SSEWriter, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	f.Flush()

	return &SSEWriter{w: w, flusher: f, encode: encode}, nil
}

func (s *SSEWriter) Send(rep domain.Report) error {
	var b strings.Builder
	for _, line := range strings.Split(s.encode(rep), "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	if _, err := io.WriteString(s.w, b.String()); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
