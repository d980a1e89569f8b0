package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/battwatch/battwatch/pkg/events"
	"github.com/battwatch/battwatch/pkg/powerinfo"
)

// serveUnix starts an HTTP server on a unix socket in a short temp dir,
// since socket paths are limited to about 100 bytes.
func serveUnix(t *testing.T, h http.Handler) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "bwc")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	path := filepath.Join(dir, "s.sock")
	l, err := net.Listen("unix", path)
	require.NoError(t, err)

	srv := httptest.NewUnstartedServer(h)
	srv.Listener = l
	srv.Start()
	t.Cleanup(srv.Close)
	return path
}

func TestDaemonNotRunning(t *testing.T) {
	c := NewClient(filepath.Join(t.TempDir(), "missing.sock"))
	_, err := c.GetVersion()
	assert.ErrorIs(t, err, ErrDaemonNotRunning)
}

func TestAPIs(t *testing.T) {
	var gotThresholds Thresholds
	mux := http.NewServeMux()
	mux.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `"v1.2.3"`)
	})
	mux.HandleFunc("/suppress", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		_, _ = io.WriteString(w, "true")
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"source":"upower","device":{"path":"/bat0","vendor":"ACME","model":"B1"},
			"direction":"discharging","state":"Discharging","percentage":33.5,"nextDue":30,
			"suppressed":false,"remaining":[20],"recentWarnings":[]}`)
	})
	mux.HandleFunc("/query", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `"no battery power supply found"`)
	})
	mux.HandleFunc("/thresholds", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotThresholds))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `"thresholds updated"`)
	})
	c := NewClient(serveUnix(t, mux))

	v, err := c.GetVersion()
	require.NoError(t, err)
	assert.Equal(t, "v1.2.3", v)

	disarmed, err := c.Suppress()
	require.NoError(t, err)
	assert.True(t, disarmed)

	st, err := c.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, "ACME", st.Device.Vendor)
	assert.Equal(t, powerinfo.Discharging, st.Direction)
	require.NotNil(t, st.NextDue)
	assert.Equal(t, 30, *st.NextDue)

	_, err = c.Query()
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = c.NotifyQuery()
	assert.ErrorIs(t, err, ErrNotFound)

	discharge := []int{20, 10}
	msg, err := c.SetThresholds(Thresholds{Discharge: &discharge})
	require.NoError(t, err)
	assert.Equal(t, "thresholds updated", msg)
	require.NotNil(t, gotThresholds.Discharge)
	assert.Equal(t, discharge, *gotThresholds.Discharge)
	assert.Nil(t, gotThresholds.Charge)
}

func TestReadEvents(t *testing.T) {
	stream := strings.Join([]string{
		": comment",
		"event:warning.fired",
		`data:{"percentage":28}`,
		"",
		"event: epoch.started",
		`data: {"direction":"charging"}`,
		"",
		"event:empty",
		"",
	}, "\n")

	out := make(chan events.Event, 4)
	err := readEvents(context.Background(), strings.NewReader(stream), out)
	assert.True(t, errors.Is(err, io.EOF))
	close(out)

	var got []events.Event
	for ev := range out {
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	assert.Equal(t, events.WarningFired, got[0].Name)
	assert.JSONEq(t, `{"percentage":28}`, string(got[0].Data))
	assert.Equal(t, events.EpochStarted, got[1].Name)
	assert.JSONEq(t, `{"direction":"charging"}`, string(got[1].Data))
}

func TestSubscribeEvents(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "event:warnings.suppressed\ndata:{\"direction\":\"discharging\"}\n\n")
	})
	c := NewClient(serveUnix(t, mux))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []events.Event
	for ev := range c.SubscribeEvents(ctx) {
		got = append(got, ev)
	}
	require.Len(t, got, 1)
	payload, err := events.DecodeAs[events.WarningsSuppressedEvent](got[0])
	require.NoError(t, err)
	assert.Equal(t, "discharging", payload.Direction)
}
