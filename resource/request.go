package resource

// Request represents one inbound operation against the resource tree.
type Request struct {
	// ID is the target identifier, an unstructured RI or a structured path,
	// possibly hybrid (carrying a trailing virtual-resource suffix).
	ID string
	// SRN is the structured path of the target when the transport resolved
	// one; empty otherwise.
	SRN string
	// Originator is the authenticated actor string.
	Originator string
	// Content is the decoded request body for create and update operations.
	Content map[string]any
	// Type is the resource type a create operation targets.
	Type Type
	// Args holds the parsed query arguments.
	Args Arguments
}

// Arguments are the parsed query arguments of a request. The filter criteria
// are immutable for the duration of one discovery call.
type Arguments struct {
	FilterUsage     FilterUsage
	FilterOperation FilterOperation
	ResultContent   ResultContent
	DesiredIdentifierResultType DesiredIdentifierResultType

	// Handling directives.
	Offset int    // 1-based offset into the direct-children list
	Limit  int    // 0 means unbounded
	Level  int    // maximum recursion depth, 0 means unbounded
	ARP    string // additional resource path suffix

	Criteria FilterCriteria
}

// NewArguments returns arguments with the protocol defaults applied.
func NewArguments() Arguments {
	return Arguments{
		FilterOperation:             FilterOperationAND,
		ResultContent:               ResultContentAttributes,
		DesiredIdentifierResultType: IdentifierStructured,
		Offset:                      1,
	}
}

// FilterCriteria is the parsed filter-condition set of one discovery call.
// Multi-valued predicates (Types, ContentTypes, Labels) are OR-combined
// internally even under an overall AND filter operation.
type FilterCriteria struct {
	Types        []Type   // ty
	ContentTypes []string // cty, CIN only
	Labels       []string // lbl

	CreatedBefore   string // crb
	CreatedAfter    string // cra
	ModifiedSince   string // ms
	UnmodifiedSince string // us
	StateTagSmaller string // sts, st strictly below
	StateTagBigger  string // stb, st strictly above
	ExpireBefore    string // exb
	ExpireAfter     string // exa

	SizeAbove int // sza, >= comparison on contentSize
	SizeBelow int // szb, < comparison on contentSize

	// Attributes maps arbitrary attribute names to required values; a value
	// containing '*' is matched as a wildcard pattern.
	Attributes map[string]string
}

// IsEmpty reports whether no condition is present.
func (fc *FilterCriteria) IsEmpty() bool {
	return fc.ConditionCount() == 0
}

// ConditionCount returns the AND-satisfaction denominator the evaluator
// compares its counter against. Conceptually each multi-valued predicate is a
// single slot that matching any member satisfies; the bookkeeping balances by
// counting the set's full cardinality here and having the evaluator add the
// same cardinality when any member matches.
func (fc *FilterCriteria) ConditionCount() int {
	n := 0
	if len(fc.Types) > 0 {
		n += len(fc.Types)
	}
	if len(fc.ContentTypes) > 0 {
		n += len(fc.ContentTypes)
	}
	if len(fc.Labels) > 0 {
		n += len(fc.Labels)
	}
	for _, s := range []string{
		fc.CreatedBefore, fc.CreatedAfter,
		fc.ModifiedSince, fc.UnmodifiedSince,
		fc.StateTagSmaller, fc.StateTagBigger,
		fc.ExpireBefore, fc.ExpireAfter,
	} {
		if s != "" {
			n++
		}
	}
	if fc.SizeAbove > 0 {
		n++
	}
	if fc.SizeBelow > 0 {
		n++
	}
	n += len(fc.Attributes)
	return n
}
