package httpapi

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/BrandonDHaskell/kioskauth/internal/hub"
	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/service"
	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/types"
)

// HeaderDeviceID carries the bridge's device id when the body names none.
const HeaderDeviceID = "X-Device-ID"

type Dependencies struct {
	Logger         *log.Logger
	Addr           string
	Ingest         *service.IngestService
	Registry       *service.DeviceRegistry
	Hub            *hub.Hub
	AllowedOrigins []string

	// IngestRate limits submissions per device per second; zero disables.
	IngestRate  float64
	IngestBurst int
}

type Server struct {
	httpServer *http.Server
	logger     *log.Logger
	router     chi.Router
	ingest     *service.IngestService
	registry   *service.DeviceRegistry
	hub        *hub.Hub
	origins    []string
}

func NewServer(d Dependencies) *Server {
	r := chi.NewRouter()

	s := &Server{
		logger:   d.Logger,
		router:   r,
		ingest:   d.Ingest,
		registry: d.Registry,
		hub:      d.Hub,
		origins:  d.AllowedOrigins,
	}

	r.Use(func(next http.Handler) http.Handler { return loggingMiddleware(d.Logger, next) })
	r.Use(limitBody)

	r.Route("/api/auth", func(r chi.Router) {
		r.Use(newDeviceLimiter(d.IngestRate, d.IngestBurst).middleware)
		r.Post("/tag", s.handleIngest(types.KindTag))
		r.Post("/reader", s.handleIngest(types.KindReader))
		r.Post("/heartbeat", s.handleIngest(types.KindHeartbeat))
		r.Post("/reader-error", s.handleIngest(types.KindReaderError))
		r.Post("/logout", s.handleLogout)
	})
	r.Get("/ws/auth", s.handleSubscribe)
	r.Get("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ── Ingest ───────────────────────────────────────────────────────────────────

func (s *Server) handleIngest(kind types.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := readSubmission(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if _, err := s.ingest.Ingest(r.Context(), kind, sub, r.Header.Get(HeaderDeviceID)); err != nil {
			s.fail(w, string(kind), err)
			return
		}
		writeJSON(w, http.StatusAccepted, okResponse{OK: true})
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req types.LogoutSubmission
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.ingest.RecordLogout(r.Context(), req, r.Header.Get(HeaderDeviceID)); err != nil {
		s.fail(w, "logout", err)
		return
	}
	writeJSON(w, http.StatusAccepted, okResponse{OK: true})
}

func (s *Server) fail(w http.ResponseWriter, route string, err error) {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, ve.Reason)
		return
	}
	s.logger.Printf("%s error: %v", route, err)
	writeError(w, http.StatusInternalServerError, "unexpected server error")
}

func readSubmission(r *http.Request) (types.Submission, error) {
	var sub types.Submission
	if isProtobuf(r) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return sub, err
		}
		return sub, sub.UnmarshalProto(body)
	}
	return sub, readJSON(r, &sub)
}

// ── Subscribe ────────────────────────────────────────────────────────────────

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	if len(s.origins) > 0 {
		opts.OriginPatterns = s.origins
	}
	c, err := websocket.Accept(w, r, opts)
	if err != nil {
		s.logger.Printf("websocket accept error from=%s: %v", r.RemoteAddr, err)
		return
	}

	// CloseRead keeps a reader running so pongs and close frames are seen;
	// subscribers never send application messages.
	ctx := c.CloseRead(r.Context())

	sub := s.hub.Add(hub.NewWebSocketConn(c))
	if sub == nil {
		return
	}
	defer s.hub.Remove(sub)

	<-ctx.Done()
}

// ── Health ───────────────────────────────────────────────────────────────────

type deviceStatus struct {
	Device   string     `json:"device"`
	LastSeen string     `json:"lastSeen"`
	LastKind types.Kind `json:"lastKind"`
}

type healthResponse struct {
	OK      bool           `json:"ok"`
	Clients int            `json:"clients"`
	Devices []deviceStatus `json:"devices"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{OK: true, Clients: s.hub.ClientCount(), Devices: []deviceStatus{}}

	if s.registry != nil {
		recs, err := s.registry.Devices(r.Context())
		if err != nil {
			s.logger.Printf("health: device list error: %v", err)
		}
		for _, rec := range recs {
			resp.Devices = append(resp.Devices, deviceStatus{
				Device:   rec.DeviceID,
				LastSeen: rec.LastSeen.UTC().Format(types.TimestampLayout),
				LastKind: rec.LastKind,
			})
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// OriginPatterns turns a comma separated list into websocket origin
// patterns, dropping empty entries.
func OriginPatterns(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
