package inspector

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgast/agwait/pkg/events"
	"github.com/cgast/agwait/pkg/wait"
)

type staticHistory struct {
	records []wait.Record
	err     error
	limit   int
}

func (h *staticHistory) History(limit int) ([]wait.Record, error) {
	h.limit = limit
	return h.records, h.err
}

func newTestServer(t *testing.T, hist HistorySource) (*events.MemoryBus, *httptest.Server) {
	t.Helper()
	bus := events.NewMemoryBus()
	ts := httptest.NewServer(New(bus, hist, nil).Handler())
	t.Cleanup(ts.Close)
	return bus, ts
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestStatusCountsOutcomes(t *testing.T) {
	bus, ts := newTestServer(t, nil)
	bus.Publish(events.WaitEvent(events.EventWaitStart, "a", nil))
	bus.Publish(events.WaitEvent(events.EventWaitSatisfied, "a", nil))
	bus.Publish(events.WaitEvent(events.EventWaitTimeout, "b", nil))
	bus.Publish(events.WaitEvent(events.EventWaitTimeout, "c", nil))

	var status map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/status", &status))
	assert.EqualValues(t, 4, status["events"])
	assert.EqualValues(t, 1, status["satisfied"])
	assert.EqualValues(t, 2, status["timeouts"])
	assert.EqualValues(t, 0, status["errors"])
}

func TestHistory(t *testing.T) {
	hist := &staticHistory{records: []wait.Record{{ID: "w-1", Command: wait.NameEnabled, Outcome: wait.OutcomeTimeout}}}
	_, ts := newTestServer(t, hist)

	var records []wait.Record
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/history?limit=5", &records))
	assert.Equal(t, 5, hist.limit)
	require.Len(t, records, 1)
	assert.Equal(t, wait.OutcomeTimeout, records[0].Outcome)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/history?limit=x", &records))

	hist.err = errors.New("db closed")
	assert.Equal(t, http.StatusInternalServerError, getJSON(t, ts.URL+"/api/history", &records))
}

func TestHistoryWithoutSource(t *testing.T) {
	_, ts := newTestServer(t, nil)

	var records []wait.Record
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/history", &records))
	assert.Empty(t, records)
}

func TestWaitTrail(t *testing.T) {
	bus, ts := newTestServer(t, nil)
	bus.Publish(events.WaitEvent(events.EventWaitStart, "w-1", nil))
	bus.Publish(events.WaitEvent(events.EventWaitStart, "w-2", nil))
	bus.Publish(events.WaitEvent(events.EventWaitSatisfied, "w-1", nil))

	var trail []events.Event
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/waits/w-1", &trail))
	require.Len(t, trail, 2)
	assert.Equal(t, events.EventWaitSatisfied, trail[1].Type)

	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/waits/missing", &trail))
}

func TestEventStream(t *testing.T) {
	bus, ts := newTestServer(t, nil)
	bus.Publish(events.WaitEvent(events.EventWaitStart, "w-1", nil))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	next := func() string {
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "event: ") {
				return strings.TrimPrefix(line, "event: ")
			}
		}
		return ""
	}

	assert.Equal(t, "wait.start", next(), "retained events are replayed")

	bus.Publish(events.WaitEvent(events.EventWaitTimeout, "w-1", nil))
	assert.Equal(t, "wait.timeout", next())
}

func TestServeStopsOnCancel(t *testing.T) {
	s := New(events.NewMemoryBus(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
