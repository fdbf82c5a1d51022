package dispatcher

import (
	"context"
	"sort"
	"strings"

	"github.com/c360/cse/resource"
)

// The assembler converts a flat, order-preserving discovered-resource list
// into the different response shapes. None of these functions reorder the
// input relative to tree semantics: sorting, where configured, stays inside a
// single type-and-parent batch.

// resourcesToURIList renders the discovered list as a {"m2m:uril": [...]}
// body, addressing each resource per the desired identifier result type.
func (d *Dispatcher) resourcesToURIList(ctx context.Context, rs []*resource.Resource,
	drt resource.DesiredIdentifierResultType) (map[string]any, error) {

	uris := make([]string, 0, len(rs))
	for _, r := range rs {
		ref, err := d.resourceReference(ctx, r, drt)
		if err != nil {
			return nil, err
		}
		uris = append(uris, ref)
	}
	return map[string]any{"m2m:uril": uris}, nil
}

// resourceReference addresses one resource as a structured path or a
// CSE-relative unstructured identifier.
func (d *Dispatcher) resourceReference(ctx context.Context, r *resource.Resource,
	drt resource.DesiredIdentifierResultType) (string, error) {

	if drt == resource.IdentifierUnstructured {
		return "/" + d.config.CSEID + "/" + r.RI(), nil
	}
	return d.structuredPath(ctx, r)
}

// buildResourceTree reconstructs the nested child tree of the container
// identified by targetRI into target, consuming resources from the remaining
// list. The algorithm partitions the remaining items into the first matching
// type-and-parent batch and the rest, recurses into each batch member for its
// own children, and repeats until a pass finds no candidate. It returns the
// unconsumed remainder.
func (d *Dispatcher) buildResourceTree(rs []*resource.Resource, target map[string]any,
	targetRI string) []*resource.Resource {

	remaining := rs
	for {
		// Find the first unconsumed resource belonging to the target.
		var seed *resource.Resource
		for _, r := range remaining {
			if r.Type().IsVirtual() {
				continue
			}
			if targetRI == "" || r.PI() == targetRI {
				seed = r
				break
			}
		}
		if seed == nil {
			return remaining
		}

		// Partition: everything sharing the seed's type and parent forms this
		// batch; the rest stays for later passes.
		var batch, rest []*resource.Resource
		for _, r := range remaining {
			if !r.Type().IsVirtual() && r.Type() == seed.Type() && r.PI() == seed.PI() {
				batch = append(batch, r)
			} else {
				rest = append(rest, r)
			}
		}
		remaining = rest

		if d.config.SortDiscoveredResources {
			sortBatch(batch)
		}

		bodies := make([]any, 0, len(batch))
		for _, r := range batch {
			remaining = d.buildResourceTree(remaining, r.Attributes(), r.RI())
			bodies = append(bodies, r.Attributes())
		}

		key := seed.Type().Key()
		if existing, ok := target[key].([]any); ok {
			target[key] = append(existing, bodies...)
		} else {
			target[key] = bodies
		}
	}
}

// childResourceTree builds the full child tree of the target into a scratch
// dict and copies the top-level keys into the target container. Used by the
// delete handler, which shapes its response before the tree is gone.
func (d *Dispatcher) childResourceTree(rs []*resource.Resource, target map[string]any, targetRI string) {
	scratch := map[string]any{}
	d.buildResourceTree(rs, scratch, targetRI)
	for k, v := range scratch {
		target[k] = v
	}
}

// resourceTreeReferences renders the discovered list as a reference list.
// With no target container a fresh {"m2m:rrl": [...]} dict is returned;
// otherwise the references are attached under the container's "ch" key.
func (d *Dispatcher) resourceTreeReferences(ctx context.Context, rs []*resource.Resource,
	target map[string]any, drt resource.DesiredIdentifierResultType) (map[string]any, error) {

	key := "ch"
	if target == nil {
		target = map[string]any{}
		key = "m2m:rrl"
	}

	if d.config.SortDiscoveredResources {
		rs = append([]*resource.Resource(nil), rs...)
		sortBatch(rs)
	}

	refs := make([]any, 0, len(rs))
	for _, r := range rs {
		if r.Type().IsVirtual() {
			continue
		}
		val, err := d.resourceReference(ctx, r, drt)
		if err != nil {
			return nil, err
		}
		ref := map[string]any{
			"nm":  r.Name(),
			"typ": int(r.Type()),
			"val": val,
		}
		if r.Type() == resource.TypeFCNT {
			if cnd, ok := r.Attribute("cnd"); ok {
				ref["spty"] = cnd
			}
		}
		refs = append(refs, ref)
	}
	target[key] = refs
	return target, nil
}

// sortBatch orders a single batch by (type, lowercase name). It is only ever
// applied within one batch, never across recursion levels.
func sortBatch(rs []*resource.Resource) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Type() != rs[j].Type() {
			return rs[i].Type() < rs[j].Type()
		}
		return strings.ToLower(rs[i].Name()) < strings.ToLower(rs[j].Name())
	})
}
