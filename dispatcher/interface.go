// Package dispatcher implements the resource dispatcher and discovery engine:
// the CRUD entry points against the resource tree, hierarchical discovery with
// AND/OR filter matching, virtual resource interception, and result assembly
// in the different resultContent shapes.
//
// The dispatcher holds no state of its own beyond configuration; every fetched
// resource is a request-scoped copy, and concurrent requests race at the
// storage layer without additional serialization.
package dispatcher

import (
	"context"
	"log/slog"

	"github.com/c360/cse/metric"
	"github.com/c360/cse/resource"
)

// Storage is the persistence collaborator. Identifiers passed to
// RetrieveResource may be unstructured resource identifiers or structured
// paths. Absent resources are reported via errors.ErrResourceNotFound,
// duplicates at creation via errors.ErrResourceExists.
type Storage interface {
	RetrieveResource(ctx context.Context, id string) (*resource.Resource, error)
	DirectChildResources(ctx context.Context, pi string, ty resource.Type) ([]*resource.Resource, error)
	HasResource(ctx context.Context, ri, srn string) (bool, error)
	CreateResource(ctx context.Context, r *resource.Resource, overwrite bool) error
	UpdateResource(ctx context.Context, r *resource.Resource) error
	DeleteResource(ctx context.Context, r *resource.Resource) error
	CountResources(ctx context.Context) (int, error)
	RetrieveResourcesByType(ctx context.Context, ty resource.Type) ([]*resource.Resource, error)
}

// AccessCheck carries the context of an access decision beyond the plain
// (originator, resource, permission) triple.
type AccessCheck struct {
	// ChildType is the type of the resource a create operation would add.
	ChildType resource.Type
	// IsCreateRequest marks checks performed on behalf of a create.
	IsCreateRequest bool
	// Parent is the parent resource for create checks.
	Parent *resource.Resource
	// CheckSelf requests the stricter self-privileges check used when an
	// update touches the acpi attribute.
	CheckSelf bool
}

// AccessControl is the authorization collaborator.
type AccessControl interface {
	HasAccess(ctx context.Context, originator string, r *resource.Resource,
		permission resource.Permission, check AccessCheck) bool
}

// RegistrationValidator hooks resource creation, update, and deletion for
// registration semantics (AE/CSR registration rules). CheckResourceCreation
// may rewrite the originator; the returned originator must be used downstream.
// A returned status of resource.StatusOK means pass.
type RegistrationValidator interface {
	CheckResourceCreation(ctx context.Context, r *resource.Resource,
		originator string, parent *resource.Resource) (resource.StatusCode, string)
	CheckResourceUpdate(ctx context.Context, r *resource.Resource,
		update map[string]any) resource.StatusCode
	CheckResourceDeletion(ctx context.Context, r *resource.Resource) resource.StatusCode
}

// Notifier receives lifecycle events. Calls are fire-and-forget; the
// dispatcher never waits on delivery.
type Notifier interface {
	ResourceCreated(r *resource.Resource)
	ResourceUpdated(r *resource.Resource)
	ResourceDeleted(r *resource.Resource)
}

// Lifecycle performs type-specific activation after a resource is persisted
// and deactivation before it is removed. Activation runs after the durability
// point on purpose: it may read or write other resources that expect to find
// the new one in storage. An activation error triggers rollback of the
// persisted resource.
type Lifecycle interface {
	Activate(ctx context.Context, r *resource.Resource, parent *resource.Resource, originator string) error
	Deactivate(ctx context.Context, r *resource.Resource, originator string) error
}

// Dependencies defines all collaborators needed by the Dispatcher.
type Dependencies struct {
	Store        Storage
	Security     AccessControl
	Registration RegistrationValidator
	Notifier     Notifier               // optional
	Lifecycle    Lifecycle              // optional, defaults to the built-in lifecycle
	Metrics      *metric.Registry       // optional
	Logger       *slog.Logger
	Config       Config
}
