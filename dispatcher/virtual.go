package dispatcher

import (
	"context"
	"fmt"

	"github.com/c360/cse/resource"
)

// VirtualResourceHandler intercepts requests addressed at a virtual resource.
// Virtual resources have no stored representation; the handler computes the
// effect of each operation against the parent's real children.
type VirtualResourceHandler interface {
	HandleRetrieve(ctx context.Context, req *resource.Request, originator string) resource.Result
	HandleCreate(ctx context.Context, req *resource.Request, originator string) resource.Result
	HandleUpdate(ctx context.Context, req *resource.Request, originator string) resource.Result
	HandleDelete(ctx context.Context, req *resource.Request, originator string) resource.Result
}

// handlerFor returns the handler for a virtual resource type under the given
// parent, nil when the type has no handler.
func (d *Dispatcher) handlerFor(vt resource.Type, parent *resource.Resource) VirtualResourceHandler {
	switch vt {
	case resource.TypeCNTLatest, resource.TypeFCNTLatest:
		return &instanceHandler{d: d, parent: parent, latest: true}
	case resource.TypeCNTOldest, resource.TypeFCNTOldest:
		return &instanceHandler{d: d, parent: parent, latest: false}
	case resource.TypeGRPFanOutPoint:
		return &fanOutHandler{d: d, group: parent}
	default:
		return nil
	}
}

// instanceHandler serves the latest and oldest virtual children of container
// resources. The addressed instance is the child with the lexically greatest
// (latest) or smallest (oldest) creation time.
type instanceHandler struct {
	d      *Dispatcher
	parent *resource.Resource
	latest bool
}

// instanceType returns the instance child type of the handler's parent.
func (h *instanceHandler) instanceType() resource.Type {
	if h.parent.Type() == resource.TypeFCNT {
		return resource.TypeFCI
	}
	return resource.TypeCIN
}

// pick selects the addressed instance among the parent's children.
func (h *instanceHandler) pick(ctx context.Context) (*resource.Resource, resource.Result) {
	children, err := h.d.store.DirectChildResources(ctx, h.parent.RI(), h.instanceType())
	if err != nil {
		status, debug := statusFromError(err, resource.StatusInternalServerError)
		return nil, resource.Err(status, debug)
	}

	var picked *resource.Resource
	for _, c := range children {
		if c.IsExpired() {
			continue
		}
		if picked == nil {
			picked = c
			continue
		}
		if h.latest && c.CreationTime() > picked.CreationTime() {
			picked = c
		}
		if !h.latest && c.CreationTime() < picked.CreationTime() {
			picked = c
		}
	}
	if picked == nil {
		return nil, resource.Err(resource.StatusNotFound,
			fmt.Sprintf("container %s has no instances", h.parent.RI()))
	}
	return picked, resource.Result{}
}

func (h *instanceHandler) HandleRetrieve(ctx context.Context, req *resource.Request, originator string) resource.Result {
	picked, res := h.pick(ctx)
	if picked == nil {
		return res
	}
	if !h.d.security.HasAccess(ctx, originator, picked, resource.PermissionRetrieve, AccessCheck{}) {
		return resource.Err(resource.StatusOriginatorHasNoPrivilege,
			fmt.Sprintf("originator has no retrieve privilege for %s", picked.RI()))
	}
	return resource.OK(resource.StatusOK, picked)
}

func (h *instanceHandler) HandleCreate(ctx context.Context, req *resource.Request, originator string) resource.Result {
	return resource.Err(resource.StatusOperationNotAllowed, "cannot create under a virtual instance resource")
}

func (h *instanceHandler) HandleUpdate(ctx context.Context, req *resource.Request, originator string) resource.Result {
	return resource.Err(resource.StatusOperationNotAllowed, "cannot update a virtual instance resource")
}

func (h *instanceHandler) HandleDelete(ctx context.Context, req *resource.Request, originator string) resource.Result {
	picked, res := h.pick(ctx)
	if picked == nil {
		return res
	}
	if !h.d.security.HasAccess(ctx, originator, picked, resource.PermissionDelete, AccessCheck{}) {
		return resource.Err(resource.StatusOriginatorHasNoPrivilege,
			fmt.Sprintf("originator has no delete privilege for %s", picked.RI()))
	}
	return h.d.DeleteResource(ctx, picked, originator, true)
}

// fanOutHandler serves a group's fan-out point: it forwards the request to
// every group member and aggregates the member responses into one body. Only
// local members are supported; a member identifier outside this tree yields a
// not-found member response rather than failing the whole fan-out.
type fanOutHandler struct {
	d     *Dispatcher
	group *resource.Resource
}

// aggregate runs op against every member and collects the responses in member
// order.
func (h *fanOutHandler) aggregate(op func(id string) resource.Result) resource.Result {
	members := memberIDs(h.group)
	if len(members) == 0 {
		return resource.Err(resource.StatusNotFound,
			fmt.Sprintf("group %s has no members", h.group.RI()))
	}

	responses := make([]any, 0, len(members))
	for _, id := range members {
		result := op(id)
		rsp := map[string]any{
			"rsc": int(result.Status),
			"to":  id,
		}
		switch {
		case result.Resource != nil:
			rsp["pc"] = result.Resource.Body()
		case result.Body != nil:
			rsp["pc"] = result.Body
		case result.Debug != "":
			rsp["pc"] = map[string]any{"m2m:dbg": result.Debug}
		}
		responses = append(responses, rsp)
	}

	return resource.OKBody(resource.StatusOK, map[string]any{
		"m2m:agr": map[string]any{"m2m:rsp": responses},
	})
}

func (h *fanOutHandler) HandleRetrieve(ctx context.Context, req *resource.Request, originator string) resource.Result {
	return h.aggregate(func(id string) resource.Result {
		return h.d.ProcessRetrieveRequest(ctx, req, originator, id)
	})
}

func (h *fanOutHandler) HandleCreate(ctx context.Context, req *resource.Request, originator string) resource.Result {
	return h.aggregate(func(id string) resource.Result {
		return h.d.ProcessCreateRequest(ctx, req, originator, id)
	})
}

func (h *fanOutHandler) HandleUpdate(ctx context.Context, req *resource.Request, originator string) resource.Result {
	return h.aggregate(func(id string) resource.Result {
		return h.d.ProcessUpdateRequest(ctx, req, originator, id)
	})
}

func (h *fanOutHandler) HandleDelete(ctx context.Context, req *resource.Request, originator string) resource.Result {
	return h.aggregate(func(id string) resource.Result {
		return h.d.ProcessDeleteRequest(ctx, req, originator, id)
	})
}
