package sink

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrvrbhanu01/connected-vehicle-security/internal/domain"
)

type influxStub struct {
	mu     sync.Mutex
	status int
	bodies []string
	query  []string
}

func (s *influxStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.bodies = append(s.bodies, string(b))
	s.query = append(s.query, r.URL.RawQuery)
	status := s.status
	s.mu.Unlock()
	if status == 0 {
		status = http.StatusNoContent
	}
	if status >= 400 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"code":"internal error","message":"down"}`))
		return
	}
	w.WriteHeader(status)
}

func newInfluxFixture(t *testing.T) (*influxStub, *InfluxSink, time.Time) {
	t.Helper()
	stub := &influxStub{}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	client := NewInfluxClient(srv.URL, "token")
	t.Cleanup(client.Close)
	start := time.Date(2024, 5, 17, 10, 0, 0, 0, time.UTC)
	return stub, NewInfluxSink(client.WriteAPIBlocking("iov", "runs"), "run-1", start), start
}

func TestInfluxSinkWritesLineProtocol(t *testing.T) {
	stub, s, start := newInfluxFixture(t)

	require.NoError(t, s.WriteSnapshot(10, sampleSnapshot))
	require.NoError(t, s.WriteAnomalies(sampleAnomalies))
	require.NoError(t, s.WriteSummary(domain.RunSummary{Status: domain.RunComplete, TotalActorsInjected: 2, CompletedAt: start}))

	stub.mu.Lock()
	defer stub.mu.Unlock()
	require.Len(t, stub.bodies, 3)
	assert.Contains(t, stub.query[0], "bucket=runs")
	assert.Contains(t, stub.query[0], "org=iov")

	traffic := strings.Split(strings.TrimSpace(stub.bodies[0]), "\n")
	require.Len(t, traffic, 2)
	assert.True(t, strings.HasPrefix(traffic[0], "iov_traffic,is_malicious=true,run_id=run-1,vehicle_id=veh_3_0 "), traffic[0])
	assert.Contains(t, traffic[0], "speed=10")
	wantTS := start.Add(10 * time.Second).UnixMilli()
	assert.True(t, strings.HasSuffix(traffic[0], " "+strconv.FormatInt(wantTS, 10)), traffic[0])

	assert.Contains(t, stub.bodies[1], "iov_anomaly,attack_category=DoS,attack_type=flooding,run_id=run-1 ")
	assert.Contains(t, stub.bodies[1], `payload="DEADBEEF"`)
	assert.Contains(t, stub.bodies[2], "iov_run,run_id=run-1,status=complete ")
}

func TestInfluxSinkSkipsEmptyBatches(t *testing.T) {
	stub, s, _ := newInfluxFixture(t)
	require.NoError(t, s.WriteSnapshot(0, nil))
	require.NoError(t, s.WriteAnomalies(nil))
	assert.Empty(t, stub.bodies)
}

func TestInfluxSinkReportsServerErrors(t *testing.T) {
	stub, s, _ := newInfluxFixture(t)
	stub.status = http.StatusInternalServerError
	assert.Error(t, s.WriteSnapshot(1, sampleSnapshot))
	assert.Equal(t, "influxdb", s.Name())
}
