package vexa

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/murmurhq/murmur/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient("test-key", WithBaseURL(server.URL))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient("")
	assert.ErrorIs(t, err, source.ErrInvalidConfig)
}

func TestNewClient_TrimsBaseURL(t *testing.T) {
	client, err := NewClient("key", WithBaseURL("https://vexa.example.com/v1/"))
	require.NoError(t, err)
	assert.Equal(t, "https://vexa.example.com/v1", client.baseURL)
}

func TestFetchTranscript(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/meetings/meet-001/transcript", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Write([]byte(`{"transcript": [
			{"speaker_id": "spk-1", "speaker_name": "Alice", "text": "hello", "start_time": 10.5, "end_time": 12.0},
			{"speaker_id": "spk-2", "speaker_name": "Bob", "text": "hi there", "start_time": 13.0, "end_time": 14.5}
		]}`))
	})

	utts, err := client.FetchTranscript(context.Background(), "meet-001", 0)
	require.NoError(t, err)
	require.Len(t, utts, 2)

	assert.Equal(t, "meet-001", utts[0].SessionID)
	assert.Equal(t, "spk-1", utts[0].SpeakerID)
	assert.Equal(t, "Alice", utts[0].SpeakerName)
	assert.Equal(t, "hello", utts[0].Text)
	assert.Equal(t, 10.5, utts[0].StartTS)
	assert.Equal(t, 12.0, utts[0].EndTS)
	assert.Equal(t, "vexa", utts[0].Source)
}

func TestFetchTranscript_SinceFilter(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"transcript": [
			{"speaker_id": "spk-1", "text": "old", "start_time": 10.0},
			{"speaker_id": "spk-1", "text": "boundary", "start_time": 12.0},
			{"speaker_id": "spk-1", "text": "new", "start_time": 14.0}
		]}`))
	})

	// The boundary is exclusive: a segment exactly at sinceTS was already seen.
	utts, err := client.FetchTranscript(context.Background(), "meet-001", 12.0)
	require.NoError(t, err)
	require.Len(t, utts, 1)
	assert.Equal(t, "new", utts[0].Text)
}

func TestFetchTranscript_SkipsMalformedSegments(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"transcript": [
			{"speaker_id": "spk-1", "text": "valid", "start_time": 10.0},
			{"speaker_id": "spk-1", "text": "no start time"},
			{"text": "missing speaker", "start_time": 11.0}
		]}`))
	})

	utts, err := client.FetchTranscript(context.Background(), "meet-001", 0)
	require.NoError(t, err)
	require.Len(t, utts, 2)
	assert.Equal(t, "valid", utts[0].Text)

	// A missing speaker falls back to "unknown" rather than being dropped.
	assert.Equal(t, "unknown", utts[1].SpeakerID)
}

func TestFetchTranscript_EmptyTranscript(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"transcript": []}`))
	})

	utts, err := client.FetchTranscript(context.Background(), "meet-001", 0)
	require.NoError(t, err)
	assert.Empty(t, utts)
}

func TestFetchTranscript_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	})

	_, err := client.FetchTranscript(context.Background(), "meet-001", 0)
	assert.ErrorIs(t, err, source.ErrFetchFailed)
}

func TestFetchTranscript_MalformedJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	})

	_, err := client.FetchTranscript(context.Background(), "meet-001", 0)
	assert.ErrorIs(t, err, source.ErrFetchFailed)
}

func TestDeployBot(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/bots", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
	})

	assert.NoError(t, client.DeployBot(context.Background(), "meet-001"))
}

func TestDeployBot_AlreadyDeployed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	assert.NoError(t, client.DeployBot(context.Background(), "meet-001"))
}

func TestDeployBot_Failure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid meeting", http.StatusBadRequest)
	})

	err := client.DeployBot(context.Background(), "meet-001")
	assert.ErrorIs(t, err, source.ErrDeployFailed)
}

func TestMeetingActive(t *testing.T) {
	tests := []struct {
		name   string
		status string
		active bool
	}{
		{"active meeting", "active", true},
		{"ended meeting", "ended", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/meetings/meet-001/status", r.URL.Path)
				w.Write([]byte(`{"status": "` + tt.status + `"}`))
			})

			active, err := client.MeetingActive(context.Background(), "meet-001")
			require.NoError(t, err)
			assert.Equal(t, tt.active, active)
		})
	}
}
