package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360/cse/errors"
	"github.com/c360/cse/resource"
)

// Dispatcher implements the request-processing entry points against the
// resource tree. It is invoked synchronously per inbound request; it blocks
// the calling goroutine for the duration of storage and access control round
// trips and spawns no background work.
type Dispatcher struct {
	store        Storage
	security     AccessControl
	registration RegistrationValidator
	notifier     Notifier
	lifecycle    Lifecycle
	logger       *slog.Logger
	metrics      *Metrics
	config       Config
}

// New creates a Dispatcher from its dependencies.
func New(deps Dependencies) (*Dispatcher, error) {
	if deps.Store == nil {
		return nil, errors.WrapInvalid(nil, "Dispatcher", "New", "storage is required")
	}
	if deps.Security == nil {
		return nil, errors.WrapInvalid(nil, "Dispatcher", "New", "access control is required")
	}
	if deps.Registration == nil {
		return nil, errors.WrapInvalid(nil, "Dispatcher", "New", "registration validator is required")
	}
	if deps.Logger == nil {
		return nil, errors.WrapInvalid(nil, "Dispatcher", "New", "logger is required")
	}
	if deps.Config.CSEID == "" {
		deps.Config = DefaultConfig()
	}
	if err := deps.Config.Validate(); err != nil {
		return nil, err
	}

	d := &Dispatcher{
		store:        deps.Store,
		security:     deps.Security,
		registration: deps.Registration,
		notifier:     deps.Notifier,
		lifecycle:    deps.Lifecycle,
		logger:       deps.Logger,
		config:       deps.Config,
	}
	if d.lifecycle == nil {
		d.lifecycle = &defaultLifecycle{store: deps.Store, config: deps.Config}
	}
	if deps.Metrics != nil {
		d.metrics = NewMetrics(deps.Metrics)
	}
	return d, nil
}

// retrieveModes maps the permission determined from the filter usage to the
// result content modes legal for it.
var retrieveModes = map[resource.Permission][]resource.ResultContent{
	resource.PermissionDiscovery: {
		resource.ResultContentDiscoveryResultReferences,
		resource.ResultContentChildResourceReferences,
	},
	resource.PermissionRetrieve: {
		resource.ResultContentAttributes,
		resource.ResultContentAttributesAndChildResources,
		resource.ResultContentChildResources,
		resource.ResultContentAttributesAndChildResourceReferences,
		resource.ResultContentOriginalResource,
		resource.ResultContentChildResourceReferences,
	},
}

// ProcessRetrieveRequest handles RETRIEVE and DISCOVER operations. The id
// argument overrides the request's own target when non-empty.
func (d *Dispatcher) ProcessRetrieveRequest(ctx context.Context, req *resource.Request,
	originator string, id string) resource.Result {

	defer d.observe("retrieve", time.Now())

	targetID, handler, res := d.resolveTarget(ctx, req, id)
	if handler != nil {
		return handler.HandleRetrieve(ctx, req, originator)
	}
	if res != nil {
		return *res
	}

	permission := resource.PermissionRetrieve
	if req.Args.FilterUsage == resource.FilterUsageDiscovery {
		permission = resource.PermissionDiscovery
	}

	// The mode check precedes any storage access.
	rcn := req.Args.ResultContent
	if !modeAllowed(retrieveModes[permission], rcn) {
		return resource.Err(resource.StatusBadRequest,
			fmt.Sprintf("invalid resultContent/filterUsage combination: (%s, %d)", rcn, req.Args.FilterUsage))
	}

	var root *resource.Resource
	switch rcn {
	case resource.ResultContentAttributes,
		resource.ResultContentAttributesAndChildResources,
		resource.ResultContentChildResources,
		resource.ResultContentAttributesAndChildResourceReferences,
		resource.ResultContentOriginalResource:

		r, err := d.store.RetrieveResource(ctx, targetID)
		if err != nil {
			status, debug := statusFromError(err, resource.StatusInternalServerError)
			return resource.Err(status, debug)
		}
		if !d.security.HasAccess(ctx, originator, r, permission, AccessCheck{}) {
			return resource.Err(resource.StatusOriginatorHasNoPrivilege,
				fmt.Sprintf("originator has no %s privilege for %s", permission, r.RI()))
		}
		root = r

		switch rcn {
		case resource.ResultContentAttributes:
			return resource.OK(resource.StatusOK, r)
		case resource.ResultContentOriginalResource:
			lnk := r.Link()
			if lnk == "" {
				return resource.Err(resource.StatusBadRequest, "missing link attribute for originalResource")
			}
			original, err := d.store.RetrieveResource(ctx, lnk)
			if err != nil {
				status, debug := statusFromError(err, resource.StatusInternalServerError)
				return resource.Err(status, debug)
			}
			return resource.OK(resource.StatusOK, original)
		}
	}

	discovery := d.DiscoverResources(ctx, targetID, originator, req.Args, root, permission)
	if discovery.IsError() {
		return discovery
	}
	discovered := discovery.Resources
	drt := req.Args.DesiredIdentifierResultType

	switch rcn {
	case resource.ResultContentAttributesAndChildResources:
		d.childResourceTree(discovered, root.Attributes(), root.RI())
		return resource.OK(resource.StatusOK, root)

	case resource.ResultContentAttributesAndChildResourceReferences:
		if _, err := d.resourceTreeReferences(ctx, discovered, root.Attributes(), drt); err != nil {
			return resource.Err(resource.StatusInternalServerError, err.Error())
		}
		return resource.OK(resource.StatusOK, root)

	case resource.ResultContentChildResourceReferences:
		body, err := d.resourceTreeReferences(ctx, discovered, nil, drt)
		if err != nil {
			return resource.Err(resource.StatusInternalServerError, err.Error())
		}
		return resource.OKBody(resource.StatusOK, body)

	case resource.ResultContentChildResources:
		inner := map[string]any{}
		d.childResourceTree(discovered, inner, root.RI())
		return resource.OKBody(resource.StatusOK, map[string]any{root.Type().Key(): inner})

	case resource.ResultContentDiscoveryResultReferences:
		body, err := d.resourcesToURIList(ctx, discovered, drt)
		if err != nil {
			return resource.Err(resource.StatusInternalServerError, err.Error())
		}
		return resource.OKBody(resource.StatusOK, body)

	default:
		return resource.Err(resource.StatusBadRequest,
			fmt.Sprintf("unsupported resultContent: %s", rcn))
	}
}

// ProcessCreateRequest handles CREATE operations addressed at the parent
// resource.
func (d *Dispatcher) ProcessCreateRequest(ctx context.Context, req *resource.Request,
	originator string, id string) resource.Result {

	defer d.observe("create", time.Now())

	targetID, handler, res := d.resolveTarget(ctx, req, id)
	if handler != nil {
		return handler.HandleCreate(ctx, req, originator)
	}
	if res != nil {
		return *res
	}

	ty := req.Type
	if ty == resource.TypeCSEBase || ty == resource.TypeREQ {
		return resource.Err(resource.StatusOperationNotAllowed,
			fmt.Sprintf("cannot create resource of type %s via request", ty))
	}

	parent, err := d.store.RetrieveResource(ctx, targetID)
	if err != nil {
		status, debug := statusFromError(err, resource.StatusInternalServerError)
		return resource.Err(status, debug)
	}

	if !d.security.HasAccess(ctx, originator, parent, resource.PermissionCreate,
		AccessCheck{ChildType: ty, IsCreateRequest: true, Parent: parent}) {
		if ty == resource.TypeAE {
			// AE self-registration without a security association is a
			// recoverable denial with its own status.
			return resource.Err(resource.StatusSecurityAssociationRequired,
				"security association required for AE registration")
		}
		return resource.Err(resource.StatusOriginatorHasNoPrivilege,
			fmt.Sprintf("originator has no create privilege under %s", parent.RI()))
	}

	child, buildErr := d.newResourceFromRequest(req, parent, ty)
	if buildErr != nil {
		return resource.Err(resource.StatusBadRequest, buildErr.Error())
	}

	if res := d.parentAllowsChild(parent, child); res != nil {
		return *res
	}

	srn, err := d.structuredPath(ctx, parent)
	if err != nil {
		status, debug := statusFromError(err, resource.StatusInternalServerError)
		return resource.Err(status, debug)
	}
	child.SetStructuredPath(resource.ChildPath(srn, child.Name()))

	exists, err := d.store.HasResource(ctx, child.RI(), child.StructuredPath())
	if err != nil {
		status, debug := statusFromError(err, resource.StatusInternalServerError)
		return resource.Err(status, debug)
	}
	if exists {
		return resource.Err(resource.StatusConflict,
			fmt.Sprintf("resource %s already exists", child.StructuredPath()))
	}

	status, effectiveOriginator := d.registration.CheckResourceCreation(ctx, child, originator, parent)
	if status != resource.StatusOK {
		return resource.Err(status, "registration check failed")
	}
	if effectiveOriginator != "" {
		originator = effectiveOriginator
	}

	result := d.CreateResource(ctx, child, parent, originator)
	if result.IsError() {
		// Reverse the registration before surfacing the failure.
		d.registration.CheckResourceDeletion(ctx, child)
		if d.metrics != nil {
			d.metrics.RollbackTotal.Inc()
		}
		return result
	}

	return d.shapeCreateResult(req, result.Resource)
}

// shapeCreateResult shapes the create response per the requested result
// content mode.
func (d *Dispatcher) shapeCreateResult(req *resource.Request, r *resource.Resource) resource.Result {
	switch req.Args.ResultContent {
	case resource.ResultContentAttributes:
		return resource.OK(resource.StatusCreated, r)

	case resource.ResultContentModifiedAttributes:
		submitted := innerAttributes(req.Content)
		diff := map[string]any{}
		for k, v := range r.Attributes() {
			if sub, ok := submitted[k]; !ok || !equalJSON(sub, v) {
				diff[k] = v
			}
		}
		return resource.OKBody(resource.StatusCreated, map[string]any{r.Type().Key(): diff})

	case resource.ResultContentHierarchicalAddress:
		return resource.OKBody(resource.StatusCreated, map[string]any{"m2m:uri": r.StructuredPath()})

	case resource.ResultContentHierarchicalAddressAttributes:
		return resource.OKBody(resource.StatusCreated, map[string]any{
			"m2m:uri":      r.StructuredPath(),
			r.Type().Key(): r.Attributes(),
		})

	case resource.ResultContentNothing:
		return resource.Result{Status: resource.StatusCreated}

	default:
		return resource.Err(resource.StatusBadRequest,
			fmt.Sprintf("unsupported resultContent for create: %s", req.Args.ResultContent))
	}
}

// CreateResource runs the persist-and-activate sub-protocol. The dbCreate is
// the durability point: every later failure rolls the persisted resource back
// so no orphaned partial resource remains in storage.
func (d *Dispatcher) CreateResource(ctx context.Context, r *resource.Resource,
	parent *resource.Resource, originator string) resource.Result {

	if parent != nil && !parent.Type().CanHaveChild(r.Type()) {
		if r.Type() == resource.TypeSUB {
			return resource.Err(resource.StatusTargetNotSubscribable,
				fmt.Sprintf("target %s is not subscribable", parent.RI()))
		}
		return resource.Err(resource.StatusInvalidChildResourceType,
			fmt.Sprintf("invalid child resource type %s under %s", r.Type(), parent.Type()))
	}

	if r.StructuredPath() == "" && parent != nil {
		srn, err := d.structuredPath(ctx, parent)
		if err != nil {
			status, debug := statusFromError(err, resource.StatusInternalServerError)
			return resource.Err(status, debug)
		}
		r.SetStructuredPath(resource.ChildPath(srn, r.Name()))
	}

	if err := d.store.CreateResource(ctx, r, false); err != nil {
		status, debug := statusFromError(err, resource.StatusInternalServerError)
		return resource.Err(status, debug)
	}

	if err := d.lifecycle.Activate(ctx, r, parent, originator); err != nil {
		d.rollbackCreate(ctx, r)
		status, debug := statusFromError(err, resource.StatusBadRequest)
		return resource.Err(status, debug)
	}

	// Activation may have mutated the resource in memory.
	if err := d.store.UpdateResource(ctx, r); err != nil {
		d.rollbackCreate(ctx, r)
		status, debug := statusFromError(err, resource.StatusInternalServerError)
		return resource.Err(status, debug)
	}

	if parent != nil {
		// Reload: the parent may have been touched concurrently.
		fresh, err := d.store.RetrieveResource(ctx, parent.RI())
		if err == nil {
			d.childAdded(ctx, fresh, r)
		} else {
			d.logger.Warn("parent reload after create failed",
				"parent", parent.RI(), "error", err)
		}
	}

	if d.notifier != nil {
		d.notifier.ResourceCreated(r)
	}
	return resource.OK(resource.StatusCreated, r)
}

// rollbackCreate removes a resource persisted by a create whose later steps
// failed.
func (d *Dispatcher) rollbackCreate(ctx context.Context, r *resource.Resource) {
	if err := d.store.DeleteResource(ctx, r); err != nil {
		d.logger.Error("create rollback failed", "ri", r.RI(), "error", err)
	}
}

// ProcessUpdateRequest handles UPDATE operations.
func (d *Dispatcher) ProcessUpdateRequest(ctx context.Context, req *resource.Request,
	originator string, id string) resource.Result {

	defer d.observe("update", time.Now())

	targetID, handler, res := d.resolveTarget(ctx, req, id)
	if handler != nil {
		return handler.HandleUpdate(ctx, req, originator)
	}
	if res != nil {
		return *res
	}

	target, err := d.store.RetrieveResource(ctx, targetID)
	if err != nil {
		status, debug := statusFromError(err, resource.StatusInternalServerError)
		return resource.Err(status, debug)
	}
	if target.ReadOnly() {
		return resource.Err(resource.StatusOperationNotAllowed,
			fmt.Sprintf("resource %s is read-only", target.RI()))
	}

	update := innerAttributes(req.Content)

	// Touching acpi means modifying who can access the resource; that takes
	// the stricter self-privileges check, with DELETE permission when the
	// assignment is being cleared.
	if acpi, touchesACPI := update["acpi"]; touchesACPI {
		permission := resource.PermissionUpdate
		if acpi == nil {
			permission = resource.PermissionDelete
		}
		if !d.security.HasAccess(ctx, originator, target, permission, AccessCheck{CheckSelf: true}) {
			return resource.Err(resource.StatusOriginatorHasNoPrivilege,
				fmt.Sprintf("originator has no self %s privilege for %s", permission, target.RI()))
		}
	} else if !d.security.HasAccess(ctx, originator, target, resource.PermissionUpdate, AccessCheck{}) {
		return resource.Err(resource.StatusOriginatorHasNoPrivilege,
			fmt.Sprintf("originator has no update privilege for %s", target.RI()))
	}

	if status := d.registration.CheckResourceUpdate(ctx, target, update); status != resource.StatusOK {
		return resource.Err(status, "registration update check failed")
	}

	target.ClearModified()
	target.ApplyUpdate(update)

	if err := d.store.UpdateResource(ctx, target); err != nil {
		status, debug := statusFromError(err, resource.StatusInternalServerError)
		return resource.Err(status, debug)
	}

	if d.notifier != nil {
		d.notifier.ResourceUpdated(target)
	}

	switch req.Args.ResultContent {
	case resource.ResultContentAttributes:
		return resource.OK(resource.StatusUpdated, target)

	case resource.ResultContentModifiedAttributes:
		diff := map[string]any{}
		for _, name := range target.ModifiedAttributes() {
			if v, ok := target.Attribute(name); ok {
				diff[name] = v
			} else {
				diff[name] = nil
			}
		}
		return resource.OKBody(resource.StatusUpdated, map[string]any{target.Type().Key(): diff})

	case resource.ResultContentNothing:
		return resource.Result{Status: resource.StatusUpdated}

	default:
		return resource.Err(resource.StatusBadRequest,
			fmt.Sprintf("unsupported resultContent for update: %s", req.Args.ResultContent))
	}
}

// deleteModes is the legal result content set for DELETE.
var deleteModes = []resource.ResultContent{
	resource.ResultContentNothing,
	resource.ResultContentAttributes,
	resource.ResultContentAttributesAndChildResources,
	resource.ResultContentChildResources,
	resource.ResultContentAttributesAndChildResourceReferences,
	resource.ResultContentChildResourceReferences,
}

// ProcessDeleteRequest handles DELETE operations. Result shaping happens
// before the deletion, because afterwards the child tree is gone.
func (d *Dispatcher) ProcessDeleteRequest(ctx context.Context, req *resource.Request,
	originator string, id string) resource.Result {

	defer d.observe("delete", time.Now())

	targetID, handler, res := d.resolveTarget(ctx, req, id)
	if handler != nil {
		return handler.HandleDelete(ctx, req, originator)
	}
	if res != nil {
		return *res
	}

	target, err := d.store.RetrieveResource(ctx, targetID)
	if err != nil {
		status, debug := statusFromError(err, resource.StatusInternalServerError)
		return resource.Err(status, debug)
	}
	if target.Type() == resource.TypeCSEBase {
		return resource.Err(resource.StatusOperationNotAllowed, "cannot delete the base resource")
	}
	if !d.security.HasAccess(ctx, originator, target, resource.PermissionDelete, AccessCheck{}) {
		return resource.Err(resource.StatusOriginatorHasNoPrivilege,
			fmt.Sprintf("originator has no delete privilege for %s", target.RI()))
	}

	rcn := req.Args.ResultContent
	if !modeAllowed(deleteModes, rcn) {
		return resource.Err(resource.StatusBadRequest,
			fmt.Sprintf("unsupported resultContent for delete: %s", rcn))
	}

	shaped, shapeErr := d.shapeDeleteResult(ctx, req, target, originator)
	if shapeErr != nil {
		return *shapeErr
	}

	if result := d.DeleteResource(ctx, target, originator, true); result.IsError() {
		return result
	}

	shaped.Status = resource.StatusDeleted
	return shaped
}

// shapeDeleteResult pre-computes the response shape for a delete, walking the
// still-present child tree with DELETE permission.
func (d *Dispatcher) shapeDeleteResult(ctx context.Context, req *resource.Request,
	target *resource.Resource, originator string) (resource.Result, *resource.Result) {

	rcn := req.Args.ResultContent
	if rcn == resource.ResultContentNothing {
		return resource.Result{}, nil
	}
	if rcn == resource.ResultContentAttributes {
		return resource.OK(resource.StatusDeleted, target), nil
	}

	discovery := d.DiscoverResources(ctx, target.RI(), originator, req.Args, target, resource.PermissionDelete)
	if discovery.IsError() {
		return resource.Result{}, &discovery
	}
	discovered := discovery.Resources
	drt := req.Args.DesiredIdentifierResultType

	switch rcn {
	case resource.ResultContentAttributesAndChildResources:
		d.childResourceTree(discovered, target.Attributes(), target.RI())
		return resource.OK(resource.StatusDeleted, target), nil

	case resource.ResultContentChildResources:
		inner := map[string]any{}
		d.childResourceTree(discovered, inner, target.RI())
		return resource.OKBody(resource.StatusDeleted, map[string]any{target.Type().Key(): inner}), nil

	case resource.ResultContentAttributesAndChildResourceReferences:
		if _, err := d.resourceTreeReferences(ctx, discovered, target.Attributes(), drt); err != nil {
			res := resource.Err(resource.StatusInternalServerError, err.Error())
			return resource.Result{}, &res
		}
		return resource.OK(resource.StatusDeleted, target), nil

	case resource.ResultContentChildResourceReferences:
		body, err := d.resourceTreeReferences(ctx, discovered, nil, drt)
		if err != nil {
			res := resource.Err(resource.StatusInternalServerError, err.Error())
			return resource.Result{}, &res
		}
		return resource.OKBody(resource.StatusDeleted, body), nil
	}

	res := resource.Err(resource.StatusBadRequest, fmt.Sprintf("unsupported resultContent for delete: %s", rcn))
	return resource.Result{}, &res
}

// DeleteResource runs the delete sub-protocol: deregistration check,
// deactivation, storage removal, lifecycle event, parent bookkeeping.
func (d *Dispatcher) DeleteResource(ctx context.Context, r *resource.Resource,
	originator string, withDeregistration bool) resource.Result {

	if withDeregistration {
		if status := d.registration.CheckResourceDeletion(ctx, r); status != resource.StatusOK {
			return resource.Err(resource.StatusBadRequest, "deregistration check failed")
		}
	}

	if err := d.lifecycle.Deactivate(ctx, r, originator); err != nil {
		d.logger.Warn("deactivation failed", "ri", r.RI(), "error", err)
	}

	// Capture before the record is gone.
	parentRI := r.PI()

	if err := d.store.DeleteResource(ctx, r); err != nil {
		status, debug := statusFromError(err, resource.StatusInternalServerError)
		return resource.Err(status, debug)
	}

	if d.notifier != nil {
		d.notifier.ResourceDeleted(r)
	}

	if parentRI != "" {
		if parent, err := d.store.RetrieveResource(ctx, parentRI); err == nil {
			d.childRemoved(ctx, parent, r)
		}
	}

	return resource.Result{Status: resource.StatusDeleted}
}

// resolveTarget resolves a possibly-hybrid target identifier. It returns the
// addressed identifier, or a virtual resource handler when the identifier
// carries a virtual suffix, or an error result when resolution fails. Plain
// identifiers resolve without any storage access.
func (d *Dispatcher) resolveTarget(ctx context.Context, req *resource.Request,
	id string) (string, VirtualResourceHandler, *resource.Result) {

	targetID := id
	if targetID == "" {
		targetID = req.SRN
	}
	if targetID == "" {
		targetID = req.ID
	}
	if targetID == "" {
		res := resource.Err(resource.StatusBadRequest, "empty target identifier")
		return "", nil, &res
	}

	base, suffix := resource.SplitHybrid(targetID)
	if suffix == "" {
		return base, nil, nil
	}

	parent, err := d.store.RetrieveResource(ctx, base)
	if err != nil {
		status, debug := statusFromError(err, resource.StatusInternalServerError)
		res := resource.Err(status, debug)
		return "", nil, &res
	}

	vt := resource.VirtualTypeFor(suffix, parent.Type())
	if vt == resource.TypeMixed {
		res := resource.Err(resource.StatusBadRequest,
			fmt.Sprintf("%s is not a virtual child of %s", suffix, parent.Type()))
		return "", nil, &res
	}

	handler := d.handlerFor(vt, parent)
	if handler == nil {
		res := resource.Err(resource.StatusNotImplemented,
			fmt.Sprintf("no handler for virtual resource %s", vt))
		return "", nil, &res
	}
	return base, handler, nil
}

// newResourceFromRequest constructs the candidate child resource from the
// request body.
func (d *Dispatcher) newResourceFromRequest(req *resource.Request,
	parent *resource.Resource, ty resource.Type) (*resource.Resource, error) {

	attrs := innerAttributes(req.Content)
	if attrs == nil {
		return nil, fmt.Errorf("missing or malformed request content")
	}

	copied := make(map[string]any, len(attrs)+4)
	for k, v := range attrs {
		copied[k] = v
	}
	copied["ty"] = int(ty)

	r, err := resource.FromAttributes(copied)
	if err != nil {
		return nil, err
	}
	if r.RI() == "" {
		r.SetRI(resource.UniqueRI(ty))
	}
	if r.Name() == "" {
		r.SetName(r.RI())
	}
	r.SetPI(parent.RI())
	r.Stamp(d.config.DefaultExpiration)
	return r, nil
}

// parentAllowsChild applies structural rules beyond the child-type
// allow-list. The virtual child names are reserved under every parent because
// hybrid-identifier splitting strips them from any structured path.
func (d *Dispatcher) parentAllowsChild(parent, child *resource.Resource) *resource.Result {
	if resource.IsReservedName(child.Name()) {
		res := resource.Err(resource.StatusOperationNotAllowed,
			fmt.Sprintf("%q is a reserved resource name", child.Name()))
		return &res
	}
	return nil
}

// childAdded updates the parent's child bookkeeping after a create.
func (d *Dispatcher) childAdded(ctx context.Context, parent, child *resource.Resource) {
	switch parent.Type() {
	case resource.TypeCNT:
		if child.Type() == resource.TypeCIN {
			parent.SetAttribute("cni", intAttr(parent, "cni")+1)
			parent.SetAttribute("cbs", intAttr(parent, "cbs")+child.ContentSize())
			parent.SetAttribute("st", intAttr(parent, "st")+1)
		}
	case resource.TypeGRP:
		// Group bookkeeping tracks the current member count only.
	default:
		return
	}
	if err := d.store.UpdateResource(ctx, parent); err != nil {
		d.logger.Warn("parent bookkeeping update failed", "parent", parent.RI(), "error", err)
	}
}

// childRemoved updates the parent's child bookkeeping after a delete.
func (d *Dispatcher) childRemoved(ctx context.Context, parent, child *resource.Resource) {
	switch parent.Type() {
	case resource.TypeCNT:
		if child.Type() == resource.TypeCIN {
			if cni := intAttr(parent, "cni"); cni > 0 {
				parent.SetAttribute("cni", cni-1)
			}
			if cbs := intAttr(parent, "cbs") - child.ContentSize(); cbs >= 0 {
				parent.SetAttribute("cbs", cbs)
			} else {
				parent.SetAttribute("cbs", 0)
			}
			parent.SetAttribute("st", intAttr(parent, "st")+1)
		}
	default:
		return
	}
	if err := d.store.UpdateResource(ctx, parent); err != nil {
		d.logger.Warn("parent bookkeeping update failed", "parent", parent.RI(), "error", err)
	}
}

// structuredPath resolves and caches the structured path of a resource by
// walking its parent chain.
func (d *Dispatcher) structuredPath(ctx context.Context, r *resource.Resource) (string, error) {
	if srn := r.StructuredPath(); srn != "" {
		return srn, nil
	}
	if r.Type() == resource.TypeCSEBase {
		r.SetStructuredPath(r.Name())
		return r.Name(), nil
	}
	if r.PI() == "" {
		r.SetStructuredPath(r.Name())
		return r.Name(), nil
	}
	parent, err := d.store.RetrieveResource(ctx, r.PI())
	if err != nil {
		return "", err
	}
	parentSRN, err := d.structuredPath(ctx, parent)
	if err != nil {
		return "", err
	}
	srn := resource.ChildPath(parentSRN, r.Name())
	r.SetStructuredPath(srn)
	return srn, nil
}

// observe records request metrics.
func (d *Dispatcher) observe(operation string, start time.Time) {
	if d.metrics != nil {
		d.metrics.ObserveRequest(operation, time.Since(start))
	}
}

// modeAllowed reports whether a result content mode is in the allowed set.
func modeAllowed(allowed []resource.ResultContent, rcn resource.ResultContent) bool {
	for _, m := range allowed {
		if m == rcn {
			return true
		}
	}
	return false
}

// innerAttributes unwraps an embedded request body {"m2m:xxx": {...}} to its
// attribute map; a bare attribute map passes through.
func innerAttributes(content map[string]any) map[string]any {
	if content == nil {
		return nil
	}
	if len(content) == 1 {
		for k, v := range content {
			if inner, ok := v.(map[string]any); ok && len(k) > 4 && k[:4] == "m2m:" {
				return inner
			}
		}
	}
	return content
}

// intAttr reads a numeric attribute as int, 0 when absent.
func intAttr(r *resource.Resource, name string) int {
	v, ok := r.Attribute(name)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

// equalJSON compares two attribute values by their string forms; good enough
// for the create diff where values round-trip through JSON.
func equalJSON(a, b any) bool {
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}
