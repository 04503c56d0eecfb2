package cli

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// SignalContext is cancelled by SIGINT or SIGTERM and remembers which one
// arrived, so commands can tell an interrupt from a normal shutdown.
type SignalContext struct {
	context.Context
	Cancel context.CancelFunc

	received atomic.Value // os.Signal
}

// NewSignalContext derives a SignalContext from parent. Cancel releases the
// signal subscription.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{Context: ctx, Cancel: cancel}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(ch)
		select {
		case sig := <-ch:
			sc.received.Store(sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return sc
}

// Signal returns the signal that cancelled the context, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sig, _ := sc.received.Load().(os.Signal)
	return sig
}
