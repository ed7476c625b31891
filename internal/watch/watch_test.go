package watch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SirClappington/jobstream/internal/domain"
	"github.com/SirClappington/jobstream/internal/relay"
)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		payload string
		want    domain.Report
	}{
		{"{'result': 'pending'}", domain.Report{Result: domain.Pending}},
		{`{"result":"completed"}`, domain.Report{Result: domain.Completed}},
		{
			"{'result': 'error', 'message': 'Job not found'}",
			domain.Report{Result: domain.Error, Message: "Job not found"},
		},
		{"data: {'result': 'pending'}", domain.Report{Result: domain.Pending}},
		{
			`{'result': 'error', 'message': "it's gone"}`,
			domain.Report{Result: domain.Error, Message: "it's gone"},
		},
		{
			`{'result': 'error', 'message': 'say "hi" it\'s me'}`,
			domain.Report{Result: domain.Error, Message: `say "hi" it's me`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			got, err := ParsePayload(tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePayloadInvalid(t *testing.T) {
	for _, payload := range []string{"", "pending", "{'result': 'running'}", "{}", "{'result': 'pending}"} {
		_, err := ParsePayload(payload)
		assert.Error(t, err, payload)
	}
}

func TestParsePayloadRoundTrip(t *testing.T) {
	messages := []string{
		"Job not found",
		"it's gone",
		`say "hi" it's me`,
		`C:\tmp\jobs`,
		"line one\nline two",
	}

	for _, encode := range []relay.Encoder{relay.EncodeLegacy, relay.EncodeJSON} {
		for _, msg := range messages {
			want := domain.Report{JobID: "job-1", Result: domain.Error, Message: msg}
			payload := encode(want)

			got, err := ParsePayload(payload)
			require.NoError(t, err, payload)
			assert.Equal(t, want, got, payload)
		}
	}
}

func TestReadStream(t *testing.T) {
	stream := "data: {'result': 'pending'}\n\n" +
		"data: \n\n" +
		": comment\n\n" +
		"data: {'result': 'pending'}\n\n" +
		"data: {'result': 'completed'}\n\n" +
		"data: {'result': 'pending'}\n\n"

	var seen []domain.Status
	final, err := readStream(strings.NewReader(stream), func(rep domain.Report) {
		seen = append(seen, rep.Result)
	})

	require.NoError(t, err)
	assert.Equal(t, domain.Completed, final.Result)
	assert.Equal(t, []domain.Status{domain.Pending, domain.Pending, domain.Completed}, seen)
}

func TestReadStreamEndsEarly(t *testing.T) {
	_, err := readStream(strings.NewReader("data: {'result': 'pending'}\n\n"), nil)
	assert.ErrorIs(t, err, ErrStreamEnded)
}

func TestReadStreamBadPayload(t *testing.T) {
	_, err := readStream(strings.NewReader("data: garbage\n\n"), nil)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrStreamEnded)
}

func TestWatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {'result': 'pending'}\n\n")
		_, _ = io.WriteString(w, "data: {'result': 'error', 'message': 'Unable to create job'}\n\n")
	}))
	defer srv.Close()

	final, err := New(nil).Watch(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ErrorReport("Unable to create job"), final)
}

func TestWatchBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := New(srv.Client()).Watch(context.Background(), srv.URL, nil)
	assert.Error(t, err)
}
