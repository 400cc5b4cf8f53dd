package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/BrandonDHaskell/kioskauth/internal/httpx"
	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/types"
)

type Wire string

const (
	WireJSON     Wire = "json"
	WireProtobuf Wire = "protobuf"
)

// Routes maps each event kind to the gateway path it is posted to.
type Routes map[types.Kind]string

// DefaultRoutes are the gateway's ingest routes.
func DefaultRoutes() Routes {
	return Routes{
		types.KindTag:         "/api/auth/tag",
		types.KindReader:      "/api/auth/reader",
		types.KindHeartbeat:   "/api/auth/heartbeat",
		types.KindReaderError: "/api/auth/reader-error",
	}
}

type PosterConfig struct {
	GatewayURL string
	DeviceID   string
	Routes     Routes
	Wire       Wire
	Timeout    time.Duration
}

// Poster delivers events to the gateway. Delivery is best effort: a failed
// post is logged and the event is dropped.
type Poster struct {
	client  *http.Client
	baseURL string
	routes  Routes
	wire    Wire
	logger  *log.Logger
}

func NewPoster(cfg PosterConfig, logger *log.Logger) *Poster {
	routes := DefaultRoutes()
	for k, v := range cfg.Routes {
		routes[k] = normalizePath(v)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Wire == "" {
		cfg.Wire = WireJSON
	}

	inj := httpx.NewHeaderInjector(nil, "", cfg.DeviceID)
	client := inj.Client()
	client.Timeout = cfg.Timeout

	return &Poster{
		client:  client,
		baseURL: strings.TrimRight(cfg.GatewayURL, "/"),
		routes:  routes,
		wire:    cfg.Wire,
		logger:  logger,
	}
}

// Post sends ev and reports whether the gateway accepted it. Errors are
// logged here; callers need not act on the result.
func (p *Poster) Post(ctx context.Context, ev types.Event) bool {
	path, ok := p.routes[ev.Kind()]
	if !ok {
		p.logger.Printf("no route for event type=%s", ev.Kind())
		return false
	}

	body, contentType, err := p.encode(ev)
	if err != nil {
		p.logger.Printf("encode %s event: %v", ev.Kind(), err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		p.logger.Printf("build %s request: %v", ev.Kind(), err)
		return false
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Printf("failed to post %s: %v", ev.Kind(), err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.Printf("gateway responded %d to %s", resp.StatusCode, ev.Kind())
		return false
	}
	return true
}

func (p *Poster) encode(ev types.Event) ([]byte, string, error) {
	sub := types.SubmissionFor(ev)
	if p.wire == WireProtobuf {
		return sub.MarshalProto(), "application/x-protobuf", nil
	}
	b, err := json.Marshal(sub)
	if err != nil {
		return nil, "", fmt.Errorf("marshal submission: %w", err)
	}
	return b, "application/json", nil
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}
