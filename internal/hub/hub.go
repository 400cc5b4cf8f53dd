package hub

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/types"
)

// MaxMissedProbes is the number of consecutive unanswered liveness probes
// after which a subscriber is dropped.
const MaxMissedProbes = 2

// Conn is one subscriber's transport. Implementations must allow Send, Ping
// and Close to be called from different goroutines.
type Conn interface {
	Send(ctx context.Context, msg []byte) error
	Ping(ctx context.Context) error
	Close(reason string) error
}

// Config holds the parameters for New.
type Config struct {
	// ProbeInterval is how often every subscriber is probed. Defaults to 30s.
	ProbeInterval time.Duration

	// QueueSize bounds each subscriber's outbound queue. A subscriber whose
	// queue is full when an event arrives is evicted rather than allowed to
	// miss the event. Defaults to 64.
	QueueSize int

	// WriteTimeout bounds a single Send. Defaults to 5s.
	WriteTimeout time.Duration
}

// Subscriber is a handle to one registered connection.
type Subscriber struct {
	id    uint64
	conn  Conn
	queue chan []byte
	stop  chan struct{}
	once  sync.Once

	// guarded by Hub.mu
	confirmed bool
	missed    int

	sent atomic.Uint64
}

func (s *Subscriber) ID() uint64 { return s.id }

// Sent is the number of messages written to the connection.
func (s *Subscriber) Sent() uint64 { return s.sent.Load() }

// Hub fans accepted events out to every live subscriber. Each event is
// serialised once; every subscriber sees events in the order Broadcast was
// called.
type Hub struct {
	cfg    Config
	logger *log.Logger

	mu     sync.Mutex
	subs   map[uint64]*Subscriber
	nextID uint64
	closed bool

	wg     sync.WaitGroup
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg Config, logger *log.Logger) *Hub {
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = 30 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &Hub{
		cfg:    cfg,
		logger: logger,
		subs:   make(map[uint64]*Subscriber),
		done:   make(chan struct{}),
	}
}

// Add registers conn. A new subscriber counts as having answered the
// current probe cycle. Add returns nil after Stop.
func (h *Hub) Add(conn Conn) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		_ = conn.Close("shutting down")
		return nil
	}

	h.nextID++
	s := &Subscriber{
		id:        h.nextID,
		conn:      conn,
		queue:     make(chan []byte, h.cfg.QueueSize),
		stop:      make(chan struct{}),
		confirmed: true,
	}
	h.subs[s.id] = s

	h.wg.Add(1)
	go h.writeLoop(s)

	h.logger.Printf("subscriber %d joined (clients=%d)", s.id, len(h.subs))
	return s
}

// Remove unregisters s and closes its connection. It is safe to call more
// than once.
func (h *Hub) Remove(s *Subscriber) {
	if s == nil {
		return
	}
	h.mu.Lock()
	_, ok := h.subs[s.id]
	delete(h.subs, s.id)
	n := len(h.subs)
	h.mu.Unlock()

	h.release(s, "closed")
	if ok {
		h.logger.Printf("subscriber %d left (clients=%d)", s.id, n)
	}
}

func (h *Hub) release(s *Subscriber, reason string) {
	s.once.Do(func() {
		close(s.stop)
		_ = s.conn.Close(reason)
	})
}

// Broadcast serialises ev and queues it for every subscriber. A subscriber
// whose queue is full is evicted so it never observes a gap; its client
// reconnects and starts from the current state.
func (h *Hub) Broadcast(ev types.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Printf("broadcast encode error type=%s: %v", ev.Kind(), err)
		return
	}

	var slow []*Subscriber

	h.mu.Lock()
	for id, s := range h.subs {
		select {
		case s.queue <- msg:
		default:
			delete(h.subs, id)
			slow = append(slow, s)
		}
	}
	h.mu.Unlock()

	for _, s := range slow {
		h.logger.Printf("subscriber %d queue full; dropping", s.id)
		h.release(s, "too slow")
	}
}

// ClientCount is the number of registered subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) writeLoop(s *Subscriber) {
	defer h.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case msg := <-s.queue:
			ctx, cancel := context.WithTimeout(context.Background(), h.cfg.WriteTimeout)
			err := s.conn.Send(ctx, msg)
			cancel()
			if err != nil {
				h.logger.Printf("subscriber %d write error: %v", s.id, err)
				h.Remove(s)
				return
			}
			s.sent.Add(1)
		}
	}
}

// ── Liveness ─────────────────────────────────────────────────────────────────

// Probe runs one liveness cycle. Subscribers that have not answered since
// the previous cycle accrue a miss; MaxMissedProbes consecutive misses drop
// the subscriber. Every remaining subscriber is pinged, and a successful
// ping marks it confirmed for the next cycle.
func (h *Hub) Probe(ctx context.Context) {
	var (
		stale []*Subscriber
		alive []*Subscriber
	)

	h.mu.Lock()
	for id, s := range h.subs {
		if s.confirmed {
			s.missed = 0
		} else {
			s.missed++
		}
		if s.missed >= MaxMissedProbes {
			delete(h.subs, id)
			stale = append(stale, s)
			continue
		}
		s.confirmed = false
		alive = append(alive, s)
	}
	h.mu.Unlock()

	for _, s := range stale {
		h.logger.Printf("subscriber %d missed %d probes; dropping", s.id, MaxMissedProbes)
		h.release(s, "liveness probe timeout")
	}

	for _, s := range alive {
		h.wg.Add(1)
		go func(s *Subscriber) {
			defer h.wg.Done()
			pctx, cancel := context.WithTimeout(ctx, h.cfg.ProbeInterval)
			defer cancel()
			if err := s.conn.Ping(pctx); err == nil {
				h.confirm(s)
			}
		}(s)
	}
}

func (h *Hub) confirm(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s.confirmed = true
}

// Start begins the background probe loop. The loop exits when ctx is
// cancelled or Stop is called.
func (h *Hub) Start(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)
	go h.loop(ctx)
	h.logger.Printf("broadcast hub started (probe_interval=%s)", h.cfg.ProbeInterval)
}

// Stop ends the probe loop, closes every subscriber and waits for their
// writers to exit.
func (h *Hub) Stop() {
	if h.cancel != nil {
		h.cancel()
		<-h.done
	}

	h.mu.Lock()
	h.closed = true
	subs := h.subs
	h.subs = make(map[uint64]*Subscriber)
	h.mu.Unlock()

	for _, s := range subs {
		h.release(s, "shutting down")
	}
	h.wg.Wait()
}

func (h *Hub) loop(ctx context.Context) {
	defer close(h.done)

	ticker := time.NewTicker(h.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Probe(ctx)
		}
	}
}
