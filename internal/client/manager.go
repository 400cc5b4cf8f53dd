package client

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/types"
)

type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusRetrying     Status = "retrying"
)

// Handler receives dispatched events and status changes. Calls are made
// from a single goroutine, one at a time. A handler may call Disconnect.
type Handler interface {
	OnTag(types.TagEvent)
	OnReader(types.ReaderEvent)
	OnHeartbeat(types.HeartbeatEvent)
	OnReaderError(types.ReaderErrorEvent)
	OnStatus(Status)
}

type Config struct {
	URL     string
	Backoff Backoff

	// DialTimeout bounds a single connection attempt. Defaults to 10s.
	DialTimeout time.Duration
}

// Manager keeps a subscription to the gateway open, reconnecting with
// exponential backoff until Disconnect is called.
type Manager struct {
	cfg     Config
	dialer  Dialer
	handler Handler
	logger  *log.Logger

	mu      sync.Mutex
	status  Status
	retries int
	cancel  context.CancelFunc
	done    chan struct{}

	// set while the run goroutine is inside a Handler call
	inHandler atomic.Bool
}

func NewManager(cfg Config, dialer Dialer, handler Handler, logger *log.Logger) *Manager {
	if cfg.Backoff == (Backoff{}) {
		cfg.Backoff = DefaultBackoff()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &Manager{
		cfg:     cfg,
		dialer:  dialer,
		handler: handler,
		logger:  logger,
		status:  StatusDisconnected,
	}
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Connect starts the connection loop. It is a no-op while the loop is
// already running.
func (m *Manager) Connect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.retries = 0

	go m.run(ctx, m.done)
}

// Disconnect closes the connection and cancels any pending reconnect. It
// waits for the loop to exit unless called from inside a Handler, where
// the loop exits once the handler returns.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		if !m.inHandler.Load() {
			<-done
		}
	}
	m.setStatus(StatusDisconnected)
}

func (m *Manager) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		m.setStatus(StatusConnecting)

		dctx, cancel := context.WithTimeout(ctx, m.cfg.DialTimeout)
		stream, err := m.dialer.Dial(dctx, m.cfg.URL)
		cancel()

		if err == nil {
			if ctx.Err() != nil {
				_ = stream.Close()
				return
			}
			m.mu.Lock()
			m.retries = 0
			m.mu.Unlock()
			m.setStatus(StatusConnected)

			err = m.readLoop(ctx, stream)
			_ = stream.Close()
		}

		if ctx.Err() != nil {
			return
		}
		m.logger.Printf("connection to %s closed: %v", m.cfg.URL, err)
		m.setStatus(StatusDisconnected)

		if ctx.Err() != nil {
			return
		}

		m.mu.Lock()
		m.retries++
		delay := m.cfg.Backoff.Delay(m.retries)
		m.mu.Unlock()
		m.setStatus(StatusRetrying)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (m *Manager) readLoop(ctx context.Context, s Stream) error {
	for {
		data, err := s.Read(ctx)
		if err != nil {
			return err
		}
		m.dispatch(data)
	}
}

// dispatch routes one message by its type. Malformed or unknown messages
// are discarded.
func (m *Manager) dispatch(data []byte) {
	ev, err := types.Decode(data)
	if err != nil {
		if !errors.Is(err, types.ErrUnknownKind) {
			m.logger.Printf("discarding message: %v", err)
		}
		return
	}

	m.inHandler.Store(true)
	defer m.inHandler.Store(false)

	switch e := ev.(type) {
	case types.TagEvent:
		m.handler.OnTag(e)
	case types.ReaderEvent:
		m.handler.OnReader(e)
	case types.HeartbeatEvent:
		m.handler.OnHeartbeat(e)
	case types.ReaderErrorEvent:
		m.handler.OnReaderError(e)
	}
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	changed := m.status != s
	m.status = s
	m.mu.Unlock()

	if changed {
		nested := m.inHandler.Swap(true)
		m.handler.OnStatus(s)
		m.inHandler.Store(nested)
	}
}
