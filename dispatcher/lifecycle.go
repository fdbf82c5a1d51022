package dispatcher

import (
	"context"
	"fmt"

	"github.com/c360/cse/resource"
)

// defaultLifecycle implements the built-in type-specific activation rules.
// Activation runs after the resource has been persisted and may assume it is
// findable in storage. It fills defaults and derived attributes only; schema
// validation of submitted content is a validator collaborator's concern.
type defaultLifecycle struct {
	store  Storage
	config Config
}

func (l *defaultLifecycle) Activate(ctx context.Context, r *resource.Resource,
	parent *resource.Resource, originator string) error {

	switch r.Type() {
	case resource.TypeAE:
		if _, ok := r.Attribute("aei"); !ok {
			r.SetAttribute("aei", originator)
		}
		if _, ok := r.Attribute("rr"); !ok {
			r.SetAttribute("rr", false)
		}

	case resource.TypeCNT:
		if _, ok := r.Attribute("cni"); !ok {
			r.SetAttribute("cni", 0)
		}
		if _, ok := r.Attribute("cbs"); !ok {
			r.SetAttribute("cbs", 0)
		}
		if _, ok := r.Attribute("st"); !ok {
			r.SetAttribute("st", 0)
		}

	case resource.TypeFCNT:
		if _, ok := r.Attribute("st"); !ok {
			r.SetAttribute("st", 0)
		}

	case resource.TypeCIN, resource.TypeFCI:
		if con, ok := r.Attribute("con"); ok {
			if s, isString := con.(string); isString {
				r.SetAttribute("cs", len(s))
			}
		}
		if parent != nil {
			// Instances inherit the parent's next state tag; the parent's own
			// counter is advanced by the child bookkeeping afterwards.
			r.SetAttribute("st", intAttr(parent, "st")+1)
		}

	case resource.TypeGRP:
		members := memberIDs(r)
		r.SetAttribute("cnm", len(members))
		if _, ok := r.Attribute("mnm"); !ok {
			r.SetAttribute("mnm", maxGroupMembers)
		}
		if len(members) > intAttr(r, "mnm") {
			return fmt.Errorf("group member list exceeds maximum of %d", intAttr(r, "mnm"))
		}

	}
	return nil
}

func (l *defaultLifecycle) Deactivate(ctx context.Context, r *resource.Resource, originator string) error {
	// No built-in type requires teardown work beyond removal itself; child
	// resources are removed by their own delete requests.
	return nil
}

// maxGroupMembers is the default mnm when a group omits it.
const maxGroupMembers = 10

// memberIDs returns the group's mid attribute as a string list.
func memberIDs(r *resource.Resource) []string {
	v, ok := r.Attribute("mid")
	if !ok {
		return nil
	}
	switch ids := v.(type) {
	case []string:
		return ids
	case []any:
		out := make([]string, 0, len(ids))
		for _, id := range ids {
			if s, isString := id.(string); isString {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
