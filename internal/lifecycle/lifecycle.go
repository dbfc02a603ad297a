// Package lifecycle provides the two small process-lifetime primitives
// cmd/bake needs: an interrupt-aware context (spec §5: "interrupt
// signalling from the host aborts after the currently running subprocess
// returns") and a process-exit cleanup hook list, adapted from the
// teacher's top-level atexit.go/context.go.
package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
)

var atExit struct {
	sync.Mutex
	fns    []func() error
	closed uint32
}

// RegisterAtExit queues fn to run during RunAtExit, in registration
// order. Must not be called from within an already-running atExit func.
func RegisterAtExit(fn func() error) {
	if atomic.LoadUint32(&atExit.closed) != 0 {
		panic("BUG: RegisterAtExit must not be called from an atExit func")
	}
	atExit.Lock()
	defer atExit.Unlock()
	atExit.fns = append(atExit.fns, fn)
}

// RunAtExit runs every registered cleanup hook, stopping at the first
// error.
func RunAtExit() error {
	atomic.StoreUint32(&atExit.closed, 1)
	for _, fn := range atExit.fns {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

// InterruptibleContext returns a context canceled on SIGINT/SIGTERM. The
// pipeline (spec §5) only checks for cancellation between steps
// (pipeline.Run), so an interrupt takes effect once the currently running
// step, and any subprocess it started, has returned.
func InterruptibleContext() (context.Context, context.CancelFunc) {
	ctx, canc := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		signal.Stop(sig)
		canc()
	}()
	return ctx, canc
}
