package resource

// Result is the dispatcher's return envelope. Exactly one of Resource,
// Resources, or Body is meaningfully populated per call; callers must check
// Status before reading the others.
type Result struct {
	Status    StatusCode
	Resource  *Resource
	Resources []*Resource
	Body      map[string]any
	Debug     string
}

// OK wraps a single resource in a successful result.
func OK(status StatusCode, r *Resource) Result {
	return Result{Status: status, Resource: r}
}

// OKList wraps a discovered resource list in a successful result.
func OKList(status StatusCode, rs []*Resource) Result {
	return Result{Status: status, Resources: rs}
}

// OKBody wraps a constructed body in a successful result.
func OKBody(status StatusCode, body map[string]any) Result {
	return Result{Status: status, Body: body}
}

// Err builds an error result with a debug message.
func Err(status StatusCode, debug string) Result {
	return Result{Status: status, Debug: debug}
}

// IsError reports whether the result carries a non-success status.
func (r Result) IsError() bool {
	return !r.Status.IsSuccess()
}
