package journal

import (
	"context"
	"errors"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum/event"

	"github.com/pegswap-experiment/pegswap/internal/logging"
	"github.com/pegswap-experiment/pegswap/internal/pegswap"
)

// Source publishes committed swaps. *pegswap.Engine satisfies it.
type Source interface {
	Subscribe(ch chan<- pegswap.TokensSwapped) event.Subscription
}

// WriteObserver is told the outcome of every insert: "ok", "duplicate" or "error".
type WriteObserver interface {
	ObserveJournalWrite(outcome string)
}

// Writer copies swap notifications into a Store.
type Writer struct {
	store    Store
	height   func() uint64
	now      func() time.Time
	observer WriteObserver
	log      *clog.Logger
}

type WriterOption func(*Writer)

func WithWriteObserver(o WriteObserver) WriterOption {
	return func(w *Writer) { w.observer = o }
}

func WithClock(now func() time.Time) WriterOption {
	return func(w *Writer) { w.now = now }
}

// NewWriter returns a writer for store. Swaps that carry no block number are
// stamped with height(), the block currently pending.
func NewWriter(store Store, height func() uint64, opts ...WriterOption) *Writer {
	w := &Writer{
		store:  store,
		height: height,
		now:    time.Now,
		log:    logging.With("journal"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run subscribes to src and writes until ctx is done or the subscription fails.
func (w *Writer) Run(ctx context.Context, src Source) error {
	ch := make(chan pegswap.TokensSwapped, 256)
	sub := src.Subscribe(ch)
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			w.drain(ch)
			return nil
		case err := <-sub.Err():
			return err
		case ev := <-ch:
			w.Write(ctx, ev)
		}
	}
}

// Write stores one notification. Failures are logged, never returned: the
// swap has already committed.
func (w *Writer) Write(ctx context.Context, ev pegswap.TokensSwapped) {
	block := ev.Block
	if block == 0 {
		block = w.height()
	}
	rec := FromEvent(ev, block, w.now().UnixMilli())
	err := w.store.Insert(ctx, rec)
	switch {
	case err == nil:
		w.observe("ok")
	case errors.Is(err, ErrDuplicateKey):
		w.log.Warn("duplicate swap record", "tx", ev.TxHash.Hex(), "log", ev.LogIndex)
		w.observe("duplicate")
	default:
		w.log.Error("journal insert failed", "tx", ev.TxHash.Hex(), "err", err)
		w.observe("error")
	}
}

// drain flushes whatever was already queued when shutdown began.
func (w *Writer) drain(ch <-chan pegswap.TokensSwapped) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case ev := <-ch:
			w.Write(ctx, ev)
		default:
			return
		}
	}
}

func (w *Writer) observe(outcome string) {
	if w.observer != nil {
		w.observer.ObserveJournalWrite(outcome)
	}
}
