package dispatcher

import (
	"context"

	"github.com/c360/cse/resource"
)

// DirectChildResources is a thin pass-through to storage, used both for
// simple listings and as the discovery seed.
func (d *Dispatcher) DirectChildResources(ctx context.Context, pi string, ty resource.Type) ([]*resource.Resource, error) {
	return d.store.DirectChildResources(ctx, pi, ty)
}

// DiscoverResources resolves the root (unless the caller already supplies
// it), walks the tree below it applying the filter criteria, and returns the
// matches in discovery order. The returned list is never re-sorted; tree
// reconstruction depends on the exact walk order.
func (d *Dispatcher) DiscoverResources(ctx context.Context, id string, originator string,
	args resource.Arguments, root *resource.Resource, permission resource.Permission) resource.Result {

	if root == nil {
		r, err := d.store.RetrieveResource(ctx, id)
		if err != nil {
			status, debug := statusFromError(err, resource.StatusInternalServerError)
			return resource.Err(status, debug)
		}
		root = r
	}

	children, err := d.store.DirectChildResources(ctx, root.RI(), resource.TypeMixed)
	if err != nil {
		status, debug := statusFromError(err, resource.StatusInternalServerError)
		return resource.Err(status, debug)
	}

	// Pagination slices breadth at the top level only; each surviving direct
	// child's subtree is still walked in full, bounded by the level directive.
	children = paginate(children, args.Offset, args.Limit)

	level := args.Level
	if level <= 0 {
		level = d.config.MaxDiscoveryLevel
	}
	if level <= 0 {
		level = -1 // unbounded
	}

	fctx := newFilterContext(args.Criteria, args.FilterOperation)

	var discovered []*resource.Resource
	discovered, err = d.walk(ctx, children, originator, fctx, permission, level, discovered)
	if err != nil {
		status, debug := statusFromError(err, resource.StatusInternalServerError)
		return resource.Err(status, debug)
	}

	if args.ARP != "" {
		discovered, err = d.applyARP(ctx, discovered, originator, args.ARP, permission)
		if err != nil {
			status, debug := statusFromError(err, resource.StatusInternalServerError)
			return resource.Err(status, debug)
		}
	}

	if d.metrics != nil {
		d.metrics.ObserveDiscovered(len(discovered))
	}
	return resource.OKList(resource.StatusOK, discovered)
}

// walk recursively visits the candidate set. Virtual resources are walked
// into but never reported; expired resources are treated as absent. The
// result list preserves discovery order.
func (d *Dispatcher) walk(ctx context.Context, candidates []*resource.Resource, originator string,
	fctx filterContext, permission resource.Permission, level int,
	acc []*resource.Resource) ([]*resource.Resource, error) {

	if level == 0 {
		return acc, nil
	}

	for _, r := range candidates {
		if !r.Type().IsVirtual() && !r.IsExpired() {
			if fctx.matches(r) && d.security.HasAccess(ctx, originator, r, permission, AccessCheck{}) {
				acc = append(acc, r)
			}
		}

		children, err := d.store.DirectChildResources(ctx, r.RI(), resource.TypeMixed)
		if err != nil {
			return nil, err
		}
		acc, err = d.walk(ctx, children, originator, fctx, permission, level-1, acc)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// applyARP re-resolves every discovered resource's structured path with the
// additional resource path appended, replacing the list with the targets that
// exist and are accessible.
func (d *Dispatcher) applyARP(ctx context.Context, discovered []*resource.Resource,
	originator, arp string, permission resource.Permission) ([]*resource.Resource, error) {

	resolved := make([]*resource.Resource, 0, len(discovered))
	for _, r := range discovered {
		srn, err := d.structuredPath(ctx, r)
		if err != nil {
			return nil, err
		}
		target, err := d.store.RetrieveResource(ctx, resource.ChildPath(srn, arp))
		if err != nil {
			continue // absent targets are simply excluded
		}
		if d.security.HasAccess(ctx, originator, target, permission, AccessCheck{}) {
			resolved = append(resolved, target)
		}
	}
	return resolved, nil
}

// paginate applies the 1-based offset and the limit to the direct-children
// list.
func paginate(rs []*resource.Resource, offset, limit int) []*resource.Resource {
	if offset < 1 {
		offset = 1
	}
	if offset > len(rs) {
		return nil
	}
	rs = rs[offset-1:]
	if limit > 0 && limit < len(rs) {
		rs = rs[:limit]
	}
	return rs
}
