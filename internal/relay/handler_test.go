package relay

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SirClappington/jobstream/internal/registry"
	"github.com/SirClappington/jobstream/internal/storage"
)

type testEnv struct {
	store    *storage.MemoryStore
	queries  atomic.Int32
	registry *httptest.Server
	relay    *httptest.Server
}

// setupTestEnv starts a registry and a relay pointed at it, both on loopback.
func setupTestEnv(t *testing.T, threshold, interval time.Duration, encode Encoder) *testEnv {
	t.Helper()

	env := &testEnv{store: storage.NewMemory()}

	regHandler := registry.NewHandler(registry.New(env.store, threshold), zap.NewNop(), registry.HandlerOptions{})
	env.registry = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/status/") {
			env.queries.Add(1)
		}
		regHandler.ServeHTTP(w, r)
	}))
	t.Cleanup(env.registry.Close)

	rl := New(NewHTTPClient(env.registry.URL, time.Second, nil), WithPollInterval(interval))
	env.relay = httptest.NewServer(NewHandler(rl, encode, zap.NewNop()))
	t.Cleanup(env.relay.Close)

	return env
}

// readEvents returns the data payload of each event until the stream closes.
func readEvents(t *testing.T, resp *http.Response) []string {
	t.Helper()

	var events []string
	var data []string

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				events = append(events, strings.Join(data, "\n"))
				data = nil
			}
		case strings.HasPrefix(line, "data: "):
			data = append(data, strings.TrimPrefix(line, "data: "))
		}
	}
	return events
}

func TestClientStatusStreamsUntilCompleted(t *testing.T) {
	env := setupTestEnv(t, 200*time.Millisecond, 50*time.Millisecond, EncodeLegacy)

	resp, err := http.Get(env.relay.URL + "/client_status")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	events := readEvents(t, resp)

	require.GreaterOrEqual(t, len(events), 2, "at least one pending and the completed event")
	assert.Equal(t, "{'result': 'completed'}", events[len(events)-1])
	for _, ev := range events[:len(events)-1] {
		assert.Equal(t, "{'result': 'pending'}", ev)
	}

	// The completing query removed the job.
	assert.Zero(t, env.store.Len())
}

func TestClientStatusPollsTwiceBeforeThreshold(t *testing.T) {
	// Polling at half the threshold sees the job pending twice, then completed.
	env := setupTestEnv(t, 100*time.Millisecond, 50*time.Millisecond, EncodeLegacy)

	resp, err := http.Get(env.relay.URL + "/client_status")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, []string{
		"{'result': 'pending'}",
		"{'result': 'pending'}",
		"{'result': 'completed'}",
	}, readEvents(t, resp))
	assert.EqualValues(t, 3, env.queries.Load())
	assert.Zero(t, env.store.Len())
}

func TestClientStatusJSONPayload(t *testing.T) {
	env := setupTestEnv(t, 50*time.Millisecond, 20*time.Millisecond, EncodeJSON)

	resp, err := http.Get(env.relay.URL + "/client_status")
	require.NoError(t, err)
	defer resp.Body.Close()

	events := readEvents(t, resp)
	require.NotEmpty(t, events)
	assert.JSONEq(t, `{"result":"completed"}`, events[len(events)-1])
}

func TestClientStatusRegistryUnreachable(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	rl := New(NewHTTPClient(deadURL, time.Second, nil))
	srv := httptest.NewServer(NewHandler(rl, EncodeLegacy, zap.NewNop()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/client_status")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, []string{
		"{'result': 'error', 'message': 'Unable to create job'}",
	}, readEvents(t, resp))
}

func TestClientStatusJobVanishes(t *testing.T) {
	// The registry forgets the job after answering one query.
	var queries atomic.Int32
	reg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/status":
			respond(http.StatusOK, `{"job_id":"abc","result":"pending"}`)(w, r)
		case queries.Add(1) == 1:
			respond(http.StatusOK, `{"result":"pending"}`)(w, r)
		default:
			respond(http.StatusNotFound, `{"detail":"Job ID not found"}`)(w, r)
		}
	}))
	defer reg.Close()

	rl := New(NewHTTPClient(reg.URL, time.Second, nil), WithPollInterval(10*time.Millisecond))
	srv := httptest.NewServer(NewHandler(rl, EncodeLegacy, zap.NewNop()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/client_status")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, []string{
		"{'result': 'pending'}",
		"{'result': 'error', 'message': 'Job not found'}",
	}, readEvents(t, resp))
	assert.EqualValues(t, 2, queries.Load())
}

func TestClientStatusDisconnect(t *testing.T) {
	interval := 30 * time.Millisecond
	env := setupTestEnv(t, time.Hour, interval, EncodeLegacy)

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.relay.URL+"/client_status", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	sc := bufio.NewScanner(resp.Body)
	require.True(t, sc.Scan())
	assert.Equal(t, "data: {'result': 'pending'}", sc.Text())

	cancel()
	resp.Body.Close()

	// Polling stops within an interval or so of the disconnect.
	time.Sleep(5 * interval)
	stopped := env.queries.Load()
	time.Sleep(5 * interval)
	assert.Equal(t, stopped, env.queries.Load(), "relay kept polling after disconnect")

	// Nothing cleans up the registry entry on disconnect.
	assert.Equal(t, 1, env.store.Len())
}

func TestHealthz(t *testing.T) {
	env := setupTestEnv(t, time.Second, time.Second, EncodeLegacy)

	resp, err := http.Get(env.relay.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

type nonFlusher struct{ http.ResponseWriter }

func TestClientStatusWithoutFlusher(t *testing.T) {
	h := NewHandler(New(&scriptedClient{}), EncodeLegacy, zap.NewNop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/client_status", nil)
	// Strip Flush from the recorder before chi sees it.
	h.ServeHTTP(nonFlusher{rec}, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
