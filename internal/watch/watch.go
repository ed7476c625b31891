// Package watch subscribes to a relay's status stream.
package watch

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/SirClappington/jobstream/internal/domain"
)

// ErrStreamEnded is returned when the stream closes before a terminal status.
var ErrStreamEnded = errors.New("stream ended before a terminal status")

// Watcher reads one status stream.
type Watcher struct {
	client *http.Client
}

func New(client *http.Client) *Watcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Watcher{client: client}
}

// Watch opens the stream at url and calls onStatus for each status until a
// terminal one arrives, which it returns. The stream is closed on return.
func (w *Watcher) Watch(ctx context.Context, url string, onStatus func(domain.Report)) (domain.Report, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Report{}, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := w.client.Do(req)
	if err != nil {
		return domain.Report{}, fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Report{}, fmt.Errorf("connect: relay returned %s", resp.Status)
	}

	return readStream(resp.Body, onStatus)
}

func readStream(r io.Reader, onStatus func(domain.Report)) (domain.Report, error) {
	var data []string

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()

		if line != "" {
			if v, ok := strings.CutPrefix(line, "data:"); ok {
				data = append(data, strings.TrimPrefix(v, " "))
			}
			continue
		}
		if len(data) == 0 {
			continue
		}

		payload := strings.TrimSpace(strings.Join(data, "\n"))
		data = nil
		if payload == "" {
			continue
		}

		rep, err := ParsePayload(payload)
		if err != nil {
			return domain.Report{}, err
		}
		if onStatus != nil {
			onStatus(rep)
		}
		if rep.Result.Terminal() {
			return rep, nil
		}
	}
	if err := sc.Err(); err != nil {
		return domain.Report{}, err
	}
	return domain.Report{}, ErrStreamEnded
}

// ParsePayload decodes either payload format.
func ParsePayload(payload string) (domain.Report, error) {
	// Some relays repeat the field name inside the data.
	payload = strings.TrimSpace(strings.TrimPrefix(payload, "data:"))

	var rep domain.Report
	if err := json.Unmarshal([]byte(payload), &rep); err != nil {
		converted, cerr := legacyToJSON(payload)
		if cerr != nil {
			return domain.Report{}, fmt.Errorf("parse status %q: %w", payload, cerr)
		}
		if err := json.Unmarshal([]byte(converted), &rep); err != nil {
			return domain.Report{}, fmt.Errorf("parse status %q: %w", payload, err)
		}
	}
	if !rep.Result.Valid() {
		return domain.Report{}, fmt.Errorf("parse status %q: unknown result %q", payload, rep.Result)
	}
	return rep, nil
}

// legacyToJSON rewrites every single- or double-quoted literal of a legacy
// payload as a JSON string, leaving the text between literals untouched.
func legacyToJSON(payload string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(payload); i++ {
		q := payload[i]
		if q != '\'' && q != '"' {
			b.WriteByte(q)
			continue
		}

		var lit strings.Builder
		closed := false
		for i++; i < len(payload); i++ {
			c := payload[i]
			if c == q {
				closed = true
				break
			}
			if c != '\\' || i+1 == len(payload) {
				lit.WriteByte(c)
				continue
			}
			i++
			switch e := payload[i]; e {
			case 'n':
				lit.WriteByte('\n')
			case 'r':
				lit.WriteByte('\r')
			case 't':
				lit.WriteByte('\t')
			case '\\', '\'', '"':
				lit.WriteByte(e)
			default:
				lit.WriteByte('\\')
				lit.WriteByte(e)
			}
		}
		if !closed {
			return "", errors.New("unterminated string literal")
		}

		quoted, err := json.Marshal(lit.String())
		if err != nil {
			return "", err
		}
		b.Write(quoted)
	}
	return b.String(), nil
}
