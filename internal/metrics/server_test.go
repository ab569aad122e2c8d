package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerExposesMetrics(t *testing.T) {
	s := NewServer("127.0.0.1:0", "")
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	QueueDropsTotal.Inc()
	FramesTotal.WithLabelValues("RadioReceive").Inc()

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "zbridge_queue_drops_total"))
	assert.True(t, strings.Contains(string(body), `zbridge_frames_total{type="RadioReceive"}`))
}

func TestServerListenError(t *testing.T) {
	s := NewServer("256.0.0.1:bad", "/m")
	assert.Error(t, s.Start(context.Background()))
	assert.NoError(t, s.Stop(context.Background()))
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(ResyncBytesTotal)
	ResyncBytesTotal.Add(5)
	assert.Equal(t, before+5, testutil.ToFloat64(ResyncBytesTotal))
}
