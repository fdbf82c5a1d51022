package resource

import "net/http"

// Permission is the operation privilege bitmask used by access control
// decisions. Values follow the oneM2M accessControlOperations encoding.
type Permission int

const (
	// PermissionCreate allows creating child resources.
	PermissionCreate Permission = 1
	// PermissionRetrieve allows reading a resource.
	PermissionRetrieve Permission = 2
	// PermissionUpdate allows modifying a resource.
	PermissionUpdate Permission = 4
	// PermissionDelete allows removing a resource.
	PermissionDelete Permission = 8
	// PermissionNotify allows sending notifications to a resource.
	PermissionNotify Permission = 16
	// PermissionDiscovery allows a resource to appear in discovery results.
	PermissionDiscovery Permission = 32

	// PermissionAll grants every operation.
	PermissionAll Permission = 63
)

// String returns the lowercase name of the permission.
func (p Permission) String() string {
	switch p {
	case PermissionCreate:
		return "create"
	case PermissionRetrieve:
		return "retrieve"
	case PermissionUpdate:
		return "update"
	case PermissionDelete:
		return "delete"
	case PermissionNotify:
		return "notify"
	case PermissionDiscovery:
		return "discovery"
	default:
		return "unknown"
	}
}

// ResultContent selects the shape of a successful response body (rcn).
type ResultContent int

const (
	// ResultContentNothing returns a status only, with no body.
	ResultContentNothing ResultContent = 0
	// ResultContentAttributes returns the resource's own attributes.
	ResultContentAttributes ResultContent = 1
	// ResultContentHierarchicalAddress returns the structured path only.
	ResultContentHierarchicalAddress ResultContent = 2
	// ResultContentHierarchicalAddressAttributes returns path plus attributes.
	ResultContentHierarchicalAddressAttributes ResultContent = 3
	// ResultContentAttributesAndChildResources embeds the full child tree.
	ResultContentAttributesAndChildResources ResultContent = 4
	// ResultContentAttributesAndChildResourceReferences embeds a reference list.
	ResultContentAttributesAndChildResourceReferences ResultContent = 5
	// ResultContentChildResourceReferences returns a standalone reference list.
	ResultContentChildResourceReferences ResultContent = 6
	// ResultContentOriginalResource returns the resource an announced resource links to.
	ResultContentOriginalResource ResultContent = 7
	// ResultContentChildResources returns the child tree without the root attributes.
	ResultContentChildResources ResultContent = 8
	// ResultContentModifiedAttributes returns only the attributes the operation changed.
	ResultContentModifiedAttributes ResultContent = 9
	// ResultContentDiscoveryResultReferences returns a URI list.
	ResultContentDiscoveryResultReferences ResultContent = 11
)

// String returns a readable name for the result content mode.
func (rc ResultContent) String() string {
	switch rc {
	case ResultContentNothing:
		return "nothing"
	case ResultContentAttributes:
		return "attributes"
	case ResultContentHierarchicalAddress:
		return "hierarchicalAddress"
	case ResultContentHierarchicalAddressAttributes:
		return "hierarchicalAddressAttributes"
	case ResultContentAttributesAndChildResources:
		return "attributesAndChildResources"
	case ResultContentAttributesAndChildResourceReferences:
		return "attributesAndChildResourceReferences"
	case ResultContentChildResourceReferences:
		return "childResourceReferences"
	case ResultContentOriginalResource:
		return "originalResource"
	case ResultContentChildResources:
		return "childResources"
	case ResultContentModifiedAttributes:
		return "modifiedAttributes"
	case ResultContentDiscoveryResultReferences:
		return "discoveryResultReferences"
	default:
		return "unknown"
	}
}

// FilterOperation combines the filter condition results.
type FilterOperation int

const (
	// FilterOperationAND requires every condition slot to be satisfied.
	FilterOperationAND FilterOperation = 1
	// FilterOperationOR requires any condition to be satisfied.
	FilterOperationOR FilterOperation = 2
)

// FilterUsage distinguishes discovery requests from conditional retrieval.
type FilterUsage int

const (
	// FilterUsageDiscovery marks a discovery-only request.
	FilterUsageDiscovery FilterUsage = 1
	// FilterUsageConditionalRetrieval marks a filtered retrieve.
	FilterUsageConditionalRetrieval FilterUsage = 2
	// FilterUsageNone means no filter usage argument was supplied.
	FilterUsageNone FilterUsage = 0
)

// DesiredIdentifierResultType selects how discovered resources are addressed
// in reference and URI lists (drt).
type DesiredIdentifierResultType int

const (
	// IdentifierStructured emits structured paths.
	IdentifierStructured DesiredIdentifierResultType = 1
	// IdentifierUnstructured emits CSE-relative resource identifiers.
	IdentifierUnstructured DesiredIdentifierResultType = 2
)

// StatusCode is the oneM2M response status code (rsc) carried on every
// dispatcher result. Collaborator-reported codes pass through unchanged.
type StatusCode int

const (
	// StatusOK indicates a successful retrieve/notify.
	StatusOK StatusCode = 2000
	// StatusCreated indicates a successful create.
	StatusCreated StatusCode = 2001
	// StatusDeleted indicates a successful delete.
	StatusDeleted StatusCode = 2002
	// StatusUpdated indicates a successful update.
	StatusUpdated StatusCode = 2004

	// StatusBadRequest indicates a malformed or inconsistent request.
	StatusBadRequest StatusCode = 4000
	// StatusNotFound indicates an absent target, parent, or linked resource.
	StatusNotFound StatusCode = 4004
	// StatusOperationNotAllowed indicates an operation the target forbids.
	StatusOperationNotAllowed StatusCode = 4005
	// StatusConflict indicates a duplicate identifier or structured path.
	StatusConflict StatusCode = 4105
	// StatusOriginatorHasNoPrivilege indicates an access control denial.
	StatusOriginatorHasNoPrivilege StatusCode = 4103
	// StatusSecurityAssociationRequired is the AE-creation-specific denial.
	StatusSecurityAssociationRequired StatusCode = 4107
	// StatusInvalidChildResourceType indicates a parent/child type violation.
	StatusInvalidChildResourceType StatusCode = 4108
	// StatusAppRuleValidationFailed indicates an AE registration rule failure.
	StatusAppRuleValidationFailed StatusCode = 4110

	// StatusInternalServerError indicates an unexpected processing failure.
	StatusInternalServerError StatusCode = 5000
	// StatusNotImplemented indicates an unsupported operation.
	StatusNotImplemented StatusCode = 5001
	// StatusTargetNotReachable indicates an unreachable fan-out member.
	StatusTargetNotReachable StatusCode = 5103
	// StatusTargetNotSubscribable indicates a SUB under a non-subscribable parent.
	StatusTargetNotSubscribable StatusCode = 5203
)

// IsSuccess reports whether the status code indicates success.
func (sc StatusCode) IsSuccess() bool {
	return sc >= 2000 && sc < 3000
}

// HTTPStatus maps the response status code to an HTTP status for the
// transport binding.
func (sc StatusCode) HTTPStatus() int {
	switch sc {
	case StatusOK, StatusUpdated:
		return http.StatusOK
	case StatusCreated:
		return http.StatusCreated
	case StatusDeleted:
		return http.StatusOK
	case StatusBadRequest, StatusInvalidChildResourceType, StatusAppRuleValidationFailed:
		return http.StatusBadRequest
	case StatusNotFound:
		return http.StatusNotFound
	case StatusOperationNotAllowed:
		return http.StatusMethodNotAllowed
	case StatusConflict:
		return http.StatusConflict
	case StatusOriginatorHasNoPrivilege, StatusSecurityAssociationRequired:
		return http.StatusForbidden
	case StatusTargetNotReachable:
		return http.StatusNotFound
	case StatusTargetNotSubscribable:
		return http.StatusBadRequest
	case StatusNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
