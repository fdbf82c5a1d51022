package dispatcher

import (
	"context"
	"time"

	"github.com/c360/cse/resource"
)

// expirableTypes are the stored types that carry an expiration time.
var expirableTypes = []resource.Type{
	resource.TypeACP, resource.TypeAE, resource.TypeCNT, resource.TypeCIN,
	resource.TypeGRP, resource.TypeCSR, resource.TypeREQ, resource.TypeSUB,
	resource.TypeFCNT, resource.TypeFCI,
}

// SweepExpired removes every expired resource from storage. Discovery already
// hides expired resources, so the sweep only reclaims space and fires the
// deletion lifecycle events. Returns the number of resources removed.
func (d *Dispatcher) SweepExpired(ctx context.Context, originator string) (int, error) {
	removed := 0
	for _, ty := range expirableTypes {
		rs, err := d.store.RetrieveResourcesByType(ctx, ty)
		if err != nil {
			return removed, err
		}
		for _, r := range rs {
			if !r.IsExpired() {
				continue
			}
			// A parent's earlier removal may have taken the subtree with it.
			if _, err := d.store.RetrieveResource(ctx, r.RI()); err != nil {
				continue
			}
			if result := d.DeleteResource(ctx, r, originator, false); result.IsError() {
				d.logger.Warn("failed to remove expired resource",
					"ri", r.RI(), "status", int(result.Status), "debug", result.Debug)
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		d.logger.Info("expired resources removed", "count", removed)
	}
	if d.metrics != nil {
		if total, err := d.store.CountResources(ctx); err == nil {
			d.metrics.observeResourceCount(total)
		}
	}
	return removed, nil
}

// RunExpirationSweeper periodically sweeps expired resources until the
// context ends.
func (d *Dispatcher) RunExpirationSweeper(ctx context.Context, interval time.Duration, originator string) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.SweepExpired(ctx, originator); err != nil {
				d.logger.Warn("expiration sweep failed", "error", err)
			}
		}
	}
}
