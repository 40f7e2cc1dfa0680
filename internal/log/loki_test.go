package log

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lokiServer records push requests.
type lokiServer struct {
	mu       sync.Mutex
	requests []lokiPushRequest
	status   atomic.Int32
}

func newLokiServer(t *testing.T) (*lokiServer, string) {
	t.Helper()
	ls := &lokiServer{}
	ls.status.Store(http.StatusNoContent)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req lokiPushRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		ls.mu.Lock()
		ls.requests = append(ls.requests, req)
		ls.mu.Unlock()
		w.WriteHeader(int(ls.status.Load()))
	}))
	t.Cleanup(srv.Close)
	return ls, srv.URL
}

func (ls *lokiServer) lines() []string {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	var out []string
	for _, r := range ls.requests {
		for _, s := range r.Streams {
			for _, v := range s.Values {
				out = append(out, v[1])
			}
		}
	}
	return out
}

func TestNewLokiWriter_Defaults(t *testing.T) {
	lw, err := NewLokiWriter(LokiConfig{Endpoint: "http://127.0.0.1:1/push"})
	require.NoError(t, err)
	defer lw.Close()

	assert.Equal(t, 100, lw.batchSize)
	assert.Equal(t, 5*time.Second, lw.interval)
	assert.Equal(t, "posebridge", lw.labels["job"])
}

func TestNewLokiWriter_Invalid(t *testing.T) {
	_, err := NewLokiWriter(LokiConfig{})
	assert.Error(t, err)

	_, err = NewLokiWriter(LokiConfig{Endpoint: "http://x", FlushInterval: -time.Second})
	assert.Error(t, err)
}

func TestLokiWriter_FlushOnBatchSize(t *testing.T) {
	ls, url := newLokiServer(t)
	lw, err := NewLokiWriter(LokiConfig{
		Endpoint:      url,
		Labels:        map[string]string{"service": "bridge"},
		BatchSize:     2,
		FlushInterval: time.Hour,
	})
	require.NoError(t, err)
	defer lw.Close()

	_, err = lw.Write([]byte("first\n"))
	require.NoError(t, err)
	_, err = lw.Write([]byte("second\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(ls.lines()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"first", "second"}, ls.lines())

	ls.mu.Lock()
	labels := ls.requests[0].Streams[0].Stream
	ls.mu.Unlock()
	assert.Equal(t, "bridge", labels["service"])
	assert.Equal(t, "posebridge", labels["job"])
}

func TestLokiWriter_FlushOnInterval(t *testing.T) {
	ls, url := newLokiServer(t)
	lw, err := NewLokiWriter(LokiConfig{Endpoint: url, BatchSize: 100, FlushInterval: 20 * time.Millisecond})
	require.NoError(t, err)
	defer lw.Close()

	_, err = lw.Write([]byte("tick"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(ls.lines()) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestLokiWriter_CloseFlushesAndRejects(t *testing.T) {
	ls, url := newLokiServer(t)
	lw, err := NewLokiWriter(LokiConfig{Endpoint: url, FlushInterval: time.Hour})
	require.NoError(t, err)

	_, err = lw.Write([]byte("pending"))
	require.NoError(t, err)
	require.NoError(t, lw.Close())
	assert.Equal(t, []string{"pending"}, ls.lines())

	_, err = lw.Write([]byte("late"))
	assert.Error(t, err)
	assert.NoError(t, lw.Close())
}

func TestLokiWriter_ServerErrorDropsBatch(t *testing.T) {
	ls, url := newLokiServer(t)
	ls.status.Store(http.StatusInternalServerError)

	lw, err := NewLokiWriter(LokiConfig{Endpoint: url, FlushInterval: time.Hour})
	require.NoError(t, err)

	_, err = lw.Write([]byte("lost"))
	require.NoError(t, err)
	assert.Error(t, lw.Close())
	assert.Equal(t, uint64(1), lw.Dropped())
	assert.Len(t, ls.lines(), 3, "each attempt reached the server")
}
