package bridge

import (
	"bufio"
	"context"
	"io"
	"strings"
)

type SignalKind int

const (
	SignalCard SignalKind = iota
	SignalAttached
	SignalDetached
	SignalError
)

func (k SignalKind) String() string {
	switch k {
	case SignalCard:
		return "card"
	case SignalAttached:
		return "attached"
	case SignalDetached:
		return "detached"
	case SignalError:
		return "error"
	}
	return "unknown"
}

// Signal is one observation from a card reader.
type Signal struct {
	Kind   SignalKind
	Reader string
	UID    string // SignalCard only
	Err    error  // SignalError only
}

// Reader is a source of card reader signals. Run delivers signals on out
// until the device goes away or ctx is cancelled. It does not close out.
type Reader interface {
	Run(ctx context.Context, out chan<- Signal) error
}

// LineReader reads card UIDs from a keyboard-wedge style stream, one UID
// per line. The stream being open counts as the reader being attached.
type LineReader struct {
	name string
	r    io.Reader
}

func NewLineReader(name string, r io.Reader) *LineReader {
	return &LineReader{name: name, r: r}
}

func (l *LineReader) Run(ctx context.Context, out chan<- Signal) error {
	if !l.emit(ctx, out, Signal{Kind: SignalAttached, Reader: l.name}) {
		return ctx.Err()
	}

	sc := bufio.NewScanner(l.r)
	for sc.Scan() {
		uid := strings.TrimSpace(sc.Text())
		if uid == "" {
			continue
		}
		if !l.emit(ctx, out, Signal{Kind: SignalCard, Reader: l.name, UID: uid}) {
			return ctx.Err()
		}
	}

	err := sc.Err()
	if err != nil {
		l.emit(ctx, out, Signal{Kind: SignalError, Reader: l.name, Err: err})
	}
	l.emit(ctx, out, Signal{Kind: SignalDetached, Reader: l.name})
	return err
}

func (l *LineReader) emit(ctx context.Context, out chan<- Signal, s Signal) bool {
	select {
	case out <- s:
		return true
	case <-ctx.Done():
		return false
	}
}
