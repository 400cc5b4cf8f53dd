package bridge

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/types"
)

// Publisher delivers one event to the gateway. *Poster implements it.
type Publisher interface {
	Post(ctx context.Context, ev types.Event) bool
}

const DefaultDebounce = 800 * time.Millisecond

type AdapterConfig struct {
	DeviceID string
	Source   types.Source

	// Debounce is the same-card suppression window. Zero disables it; a
	// negative value selects the 800ms default.
	Debounce time.Duration

	// HeartbeatInterval defaults to 15s.
	HeartbeatInterval time.Duration

	// PostTimeout bounds each delivery. Defaults to 5s.
	PostTimeout time.Duration
}

// Adapter turns reader signals into gateway events. Card reads pass the
// debouncer; every delivery runs on its own goroutine so a slow gateway
// never stalls the reader.
type Adapter struct {
	cfg       AdapterConfig
	reader    Reader
	publisher Publisher
	debouncer *Debouncer
	logger    *log.Logger
	now       func() time.Time

	wg sync.WaitGroup
}

func NewAdapter(cfg AdapterConfig, reader Reader, pub Publisher, logger *log.Logger) *Adapter {
	if cfg.Debounce < 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 15 * time.Second
	}
	if cfg.PostTimeout <= 0 {
		cfg.PostTimeout = 5 * time.Second
	}
	if cfg.Source == "" {
		cfg.Source = types.SourceHardwareReader
	}
	return &Adapter{
		cfg:       cfg,
		reader:    reader,
		publisher: pub,
		debouncer: NewDebouncer(cfg.Debounce),
		logger:    logger,
		now:       time.Now,
	}
}

// Run reads signals and sends heartbeats until ctx is cancelled, then
// waits for in-flight deliveries. A reader that ends on its own does not
// stop heartbeats.
func (a *Adapter) Run(ctx context.Context) error {
	signals := make(chan Signal, 16)
	readerDone := make(chan error, 1)
	go func() { readerDone <- a.reader.Run(ctx, signals) }()

	ticker := time.NewTicker(a.cfg.HeartbeatInterval)
	defer ticker.Stop()

	a.logger.Printf("bridge started device=%s source=%s debounce=%s heartbeat=%s",
		a.cfg.DeviceID, a.cfg.Source, a.cfg.Debounce, a.cfg.HeartbeatInterval)

	for {
		select {
		case <-ctx.Done():
			a.wg.Wait()
			return nil

		case err := <-readerDone:
			if err != nil {
				a.logger.Printf("reader stopped: %v", err)
			} else {
				a.logger.Printf("reader stopped")
			}
			readerDone = nil

		case s := <-signals:
			a.handle(ctx, s)

		case <-ticker.C:
			a.publish(ctx, types.HeartbeatEvent{TS: a.ts(), Source: a.cfg.Source, Device: a.cfg.DeviceID})
		}
	}
}

func (a *Adapter) handle(ctx context.Context, s Signal) {
	switch s.Kind {
	case SignalCard:
		if s.UID == "" {
			a.logger.Printf("card detected without uid")
			return
		}
		if !a.debouncer.Accept(s.UID) {
			a.logger.Printf("debounced uid=%s", s.UID)
			return
		}
		a.publish(ctx, types.TagEvent{UID: s.UID, TS: a.ts(), Source: a.cfg.Source, Device: a.cfg.DeviceID})

	case SignalAttached, SignalDetached:
		status := types.ReaderAttached
		if s.Kind == SignalDetached {
			status = types.ReaderDetached
		}
		a.logger.Printf("reader %s %s", status, s.Reader)
		a.publish(ctx, types.ReaderEvent{Status: status, TS: a.ts(), Source: a.cfg.Source, Device: a.cfg.DeviceID})

	case SignalError:
		msg := "unknown error"
		if s.Err != nil {
			msg = s.Err.Error()
		}
		a.logger.Printf("reader error %s: %s", s.Reader, msg)
		a.publish(ctx, types.ReaderErrorEvent{TS: a.ts(), Source: a.cfg.Source, Device: a.cfg.DeviceID, Error: msg})
	}
}

func (a *Adapter) publish(ctx context.Context, ev types.Event) {
	a.wg.Go(func() {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.PostTimeout)
		defer cancel()
		if a.publisher.Post(pctx, ev) && ev.Kind() == types.KindTag {
			a.logger.Printf("tag posted uid=%s", ev.(types.TagEvent).UID)
		}
	})
}

func (a *Adapter) ts() time.Time {
	return types.Canonical(a.now())
}
