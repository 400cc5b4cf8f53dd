package bridge_test

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/kioskauth/internal/bridge"
	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/types"
)

type captured struct {
	path        string
	contentType string
	device      string
	body        []byte
}

func newGateway(t *testing.T, status int) (*httptest.Server, func() []captured) {
	t.Helper()
	var (
		mu  sync.Mutex
		got []captured
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, captured{
			path:        r.URL.Path,
			contentType: r.Header.Get("Content-Type"),
			device:      r.Header.Get("X-Device-ID"),
			body:        body,
		})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(ts.Close)
	return ts, func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured(nil), got...)
	}
}

var ts0 = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func TestPoster_JSON(t *testing.T) {
	gw, requests := newGateway(t, http.StatusAccepted)
	p := bridge.NewPoster(bridge.PosterConfig{GatewayURL: gw.URL + "/", DeviceID: "kiosk-01"}, log.New(io.Discard, "", 0))

	ok := p.Post(context.Background(), types.TagEvent{UID: "AA", TS: ts0, Source: types.SourceHardwareReader, Device: "kiosk-01"})
	require.True(t, ok)

	reqs := requests()
	require.Len(t, reqs, 1)
	require.Equal(t, "/api/auth/tag", reqs[0].path)
	require.Equal(t, "application/json", reqs[0].contentType)
	require.Equal(t, "kiosk-01", reqs[0].device)

	var sub types.Submission
	require.NoError(t, json.Unmarshal(reqs[0].body, &sub))
	require.Equal(t, "tag", sub.Type)
	require.Equal(t, "AA", sub.UID)
	require.Equal(t, "2026-03-01T09:30:00.000Z", sub.TS)
}

func TestPoster_ProtobufAndCustomRoute(t *testing.T) {
	gw, requests := newGateway(t, http.StatusAccepted)
	p := bridge.NewPoster(bridge.PosterConfig{
		GatewayURL: gw.URL,
		DeviceID:   "kiosk-01",
		Routes:     bridge.Routes{types.KindTag: "custom/tag"},
		Wire:       bridge.WireProtobuf,
	}, log.New(io.Discard, "", 0))

	require.True(t, p.Post(context.Background(), types.TagEvent{UID: "AA", TS: ts0, Source: types.SourceManual, Device: "kiosk-01"}))

	reqs := requests()
	require.Len(t, reqs, 1)
	require.Equal(t, "/custom/tag", reqs[0].path)
	require.Equal(t, "application/x-protobuf", reqs[0].contentType)

	var sub types.Submission
	require.NoError(t, sub.UnmarshalProto(reqs[0].body))
	require.Equal(t, "AA", sub.UID)
	require.Equal(t, "manual", sub.Source)
}

func TestPoster_RejectedIsDroppedWithoutRetry(t *testing.T) {
	gw, requests := newGateway(t, http.StatusBadRequest)
	p := bridge.NewPoster(bridge.PosterConfig{GatewayURL: gw.URL}, log.New(io.Discard, "", 0))

	require.False(t, p.Post(context.Background(), types.HeartbeatEvent{TS: ts0, Source: types.SourceHardwareReader, Device: "k"}))
	require.Len(t, requests(), 1, "no retry")
}

func TestPoster_UnreachableGateway(t *testing.T) {
	gw, _ := newGateway(t, http.StatusAccepted)
	url := gw.URL
	gw.Close()

	p := bridge.NewPoster(bridge.PosterConfig{GatewayURL: url, Timeout: time.Second}, log.New(io.Discard, "", 0))
	require.False(t, p.Post(context.Background(), types.HeartbeatEvent{TS: ts0, Source: types.SourceHardwareReader, Device: "k"}))
}
