package supervisor

import (
	"context"
	"time"
)

// Reconcile applies the exit policy to any Running entry whose process has
// already ended. Exit notifications normally do this; Reconcile is the
// fallback that guarantees a dead process never stays Running.
func (s *Supervisor) Reconcile() int {
	n := 0
	for _, e := range s.registry.Snapshot() {
		if e.Handle == nil || e.Live() {
			continue
		}
		r, ok := e.Handle.(*run)
		if !ok {
			continue
		}
		s.handleExit(r)
		n++
	}
	if n > 0 {
		s.logger.Debug("reconciled exited processes", "count", n)
	}
	return n
}

// RunReconciler calls Reconcile every interval until ctx is done. A
// non-positive interval disables it.
func (s *Supervisor) RunReconciler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Reconcile()
		}
	}
}
