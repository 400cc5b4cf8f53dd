package db

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestWorker(t *testing.T) (*Worker, *sql.DB) {
	t.Helper()
	conn, err := OpenMemory(context.Background(), t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewWorker(conn), conn
}

func noop(context.Context, *sql.Tx) error { return nil }

func TestWorker_DoAfterClose(t *testing.T) {
	w, _ := newTestWorker(t)

	require.NoError(t, w.Do(context.Background(), noop))
	w.Close()
	w.Close()

	require.ErrorIs(t, w.Do(context.Background(), noop), ErrWorkerClosed)
}

func TestWorker_CloseRacingDo(t *testing.T) {
	w, _ := newTestWorker(t)

	var wg sync.WaitGroup
	errs := make(chan error, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- w.Do(context.Background(), noop)
		}()
	}
	w.Close()
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			require.ErrorIs(t, err, ErrWorkerClosed)
		}
	}
}
