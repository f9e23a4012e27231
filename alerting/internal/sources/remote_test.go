package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"weaponwatch/alerting/internal/ingest"
	"weaponwatch/alerting/internal/models"
	"weaponwatch/alerting/internal/repository"
)

// fakeBackend serves a mutable alert feed and records acknowledgements.
type fakeBackend struct {
	mu     sync.Mutex
	feed   string
	status int
	acks   []string
	ackErr bool
}

func (b *fakeBackend) setFeed(feed string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.feed = feed
	b.status = http.StatusOK
}

func (b *fakeBackend) setStatus(code int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = code
}

func (b *fakeBackend) failAcks() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ackErr = true
}

func (b *fakeBackend) ackedPaths() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.acks...)
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/alerts":
		if b.status != http.StatusOK {
			w.WriteHeader(b.status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(b.feed))
	case r.Method == http.MethodPost && len(r.URL.Path) > len("/alerts/"):
		if b.ackErr {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		b.acks = append(b.acks, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	default:
		http.NotFound(w, r)
	}
}

func newBackend(t *testing.T) (*fakeBackend, *RemoteClient) {
	t.Helper()
	b := &fakeBackend{status: http.StatusOK, feed: "[]"}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return b, NewRemoteClient(srv.URL+"/", time.Second, zap.NewNop())
}

func TestRemotePollerOnlyConsidersHead(t *testing.T) {
	b, client := newBackend(t)
	b.setFeed(`[
		{"id": 12, "weapon": "gun", "confidence": 0.93, "timestamp": "2024-05-01T12:00:05"},
		{"id": 11, "weapon": "knife", "confidence": 0.70, "timestamp": "2024-05-01T12:00:00"}
	]`)
	p := NewRemotePoller(client, "Primary Webcam", "Local Device", zap.NewNop())

	got, err := p.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)

	c := got[0]
	assert.Equal(t, "12", c.SourceID)
	assert.Equal(t, "gun", c.Weapon)
	assert.Equal(t, "Primary Webcam", c.Camera)
	assert.Equal(t, "Local Device", c.Location)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 5, 0, time.UTC), c.Timestamp)
}

func TestRemotePollerWatermark(t *testing.T) {
	b, client := newBackend(t)
	b.setFeed(`[{"id": "x", "weapon": "gun", "confidence": 0.93, "timestamp": "2024-05-01T12:00:05Z"}]`)
	p := NewRemotePoller(client, "Primary Webcam", "", zap.NewNop())

	got, err := p.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)

	p.Commit(got[0])
	assert.Equal(t, "x", p.Watermark())

	got, err = p.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got, "head equal to watermark yields nothing")
}

func TestRemotePollerEmptyFeed(t *testing.T) {
	_, client := newBackend(t)
	p := NewRemotePoller(client, "Primary Webcam", "", zap.NewNop())

	got, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRemotePollerTransportErrors(t *testing.T) {
	b, client := newBackend(t)
	p := NewRemotePoller(client, "Primary Webcam", "", zap.NewNop())

	b.setStatus(http.StatusServiceUnavailable)
	_, err := p.Poll(context.Background())
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusServiceUnavailable, terr.StatusCode)

	unreachable := NewRemoteClient("http://127.0.0.1:1", 200*time.Millisecond, zap.NewNop())
	_, err = NewRemotePoller(unreachable, "", "", zap.NewNop()).Poll(context.Background())
	require.ErrorAs(t, err, &terr)
	assert.Zero(t, terr.StatusCode)
}

// The same remote head seen on two consecutive ticks creates one alert.
func TestRemoteHeadTwiceCreatesOneAlert(t *testing.T) {
	b, client := newBackend(t)
	b.setFeed(`[{"id": 5, "weapon": "gun", "confidence": 0.85, "timestamp": "2024-05-01T12:00:00Z"}]`)

	repo := repository.NewMemoryAlertRepository()
	pipeline := ingest.NewPipeline(repo, nil, zap.NewNop())
	poller := NewRemotePoller(client, "Primary Webcam", "Local Device", zap.NewNop())
	r := NewRunner(poller, pipeline, time.Hour, zap.NewNop())

	require.NoError(t, r.Tick(context.Background()))
	require.NoError(t, r.Tick(context.Background()))

	assert.Equal(t, 1, repo.Len())
	alert, err := repo.Get("remote-5")
	require.NoError(t, err)
	assert.Equal(t, models.SeverityCritical, alert.Severity)
	assert.Equal(t, "5", poller.Watermark())
}

func TestRemoteFailureThenRecovery(t *testing.T) {
	b, client := newBackend(t)
	repo := repository.NewMemoryAlertRepository()
	pipeline := ingest.NewPipeline(repo, nil, zap.NewNop())
	r := NewRunner(NewRemotePoller(client, "Primary Webcam", "", zap.NewNop()), pipeline, time.Hour, zap.NewNop())

	b.setStatus(http.StatusInternalServerError)
	assert.Error(t, r.Tick(context.Background()))
	assert.Equal(t, 0, repo.Len())

	b.setFeed(`[{"id": 9, "weapon": "knife", "confidence": 0.65, "timestamp": "2024-05-01T12:00:00Z"}]`)
	require.NoError(t, r.Tick(context.Background()))
	assert.Equal(t, 1, repo.Len())
}

func TestRemoteAcknowledgeRelay(t *testing.T) {
	b, client := newBackend(t)
	p := NewRemotePoller(client, "", "", zap.NewNop())

	require.NoError(t, p.Acknowledge(context.Background(), "12"))
	assert.Equal(t, []string{"/alerts/12/acknowledge"}, b.ackedPaths())

	b.failAcks()
	err := p.Acknowledge(context.Background(), "13")
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, http.StatusInternalServerError, terr.StatusCode)
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, raw := range []string{
		"2024-05-01T12:00:00Z",
		"2024-05-01T14:00:00+02:00",
		"2024-05-01T12:00:00",
		"2024-05-01T12:00:00.000000",
		"2024-05-01 12:00:00",
		"1714564800",
	} {
		got, ok := parseTimestamp(raw)
		require.True(t, ok, raw)
		assert.True(t, want.Equal(got), "%s parsed as %s", raw, got)
	}

	_, ok := parseTimestamp("yesterday")
	assert.False(t, ok)
}
