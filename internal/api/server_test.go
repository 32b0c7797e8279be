package api

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bidwatch/g2b-crawler/internal/events"
	"github.com/bidwatch/g2b-crawler/internal/g2b"
	"github.com/bidwatch/g2b-crawler/internal/job"
)

// fakeController scripts coordinator behavior per test.
type fakeController struct {
	startErr error
	stopErr  error
	started  [][]string
	stopped  int
	status   job.Snapshot
	results  []g2b.BidItem
}

func (f *fakeController) Start(keywords []string, _ job.Options) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, keywords)
	return nil
}

func (f *fakeController) Stop() (job.Snapshot, error) {
	if f.stopErr != nil {
		return job.Snapshot{}, f.stopErr
	}
	f.stopped++
	return f.status, nil
}

func (f *fakeController) Status() job.Snapshot   { return f.status }
func (f *fakeController) Results() []g2b.BidItem { return f.results }

func newTestServer(t *testing.T, ctrl JobController) (*Server, *events.Bus) {
	t.Helper()
	bus := events.NewBus(16, zap.NewNop())
	t.Cleanup(bus.Close)
	return NewServer(ctrl, bus, zap.NewNop()), bus
}

func TestStartAccepted(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{}
	srv, _ := newTestServer(t, ctrl)

	req := httptest.NewRequest(http.MethodPost, "/api/start",
		strings.NewReader(`{"keywords":["도로","교량"],"max_items_per_keyword":10}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, [][]string{{"도로", "교량"}}, ctrl.started)
}

func TestStartConflictWhenJobRunning(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{startErr: job.ErrJobRunning}
	srv, _ := newTestServer(t, ctrl)

	req := httptest.NewRequest(http.MethodPost, "/api/start",
		strings.NewReader(`{"keywords":["도로"]}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "already running")
}

func TestStartRejectsBadInput(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &fakeController{startErr: job.ErrNoKeywords})

	req := httptest.NewRequest(http.MethodPost, "/api/start", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/start", strings.NewReader(`{"keywords":[]}`))
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStopNoJob(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &fakeController{stopErr: job.ErrNoJob})

	req := httptest.NewRequest(http.MethodPost, "/api/stop", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestStopReturnsSnapshot(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{status: job.Snapshot{State: job.StateRunning, Running: true, TotalItems: 4}}
	srv, _ := newTestServer(t, ctrl)

	req := httptest.NewRequest(http.MethodPost, "/api/stop", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var snap job.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Equal(t, 4, snap.TotalItems)
	require.Equal(t, 1, ctrl.stopped)
}

func TestStatusAndResults(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{
		status: job.Snapshot{State: job.StateCompleted, TotalItems: 1},
		results: []g2b.BidItem{
			{ID: "1", BidNumber: "20260815-00123", Title: "도로 유지보수 공사"},
		},
	}
	srv, _ := newTestServer(t, ctrl)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"state":"completed"`)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/results", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Total   int           `json:"total"`
		Results []g2b.BidItem `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Total)
	require.Equal(t, "도로 유지보수 공사", body.Results[0].Title)
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &fakeController{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestEventStream(t *testing.T) {
	t.Parallel()

	srv, bus := newTestServer(t, &fakeController{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// The subscription is registered before the handler starts reading, so
	// wait for it to show up before publishing.
	require.Eventually(t, func() bool {
		return bus.SubscriberCount() > 0
	}, 2*time.Second, 10*time.Millisecond)
	bus.Publish(events.Log("keyword started"))

	reader := bufio.NewReader(resp.Body)
	var eventLine, dataLine string
	for eventLine == "" || dataLine == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "event: ") {
			eventLine = line
		}
		if strings.HasPrefix(line, "data: ") {
			dataLine = line
		}
	}
	require.Equal(t, "event: log", eventLine)
	require.Contains(t, dataLine, "keyword started")
}
