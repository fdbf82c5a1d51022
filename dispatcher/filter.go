package dispatcher

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/c360/cse/resource"
)

// filterContext is the precomputed, immutable matching input of one discovery
// call: the parsed criteria plus the AND-satisfaction denominator. It is
// computed once and threaded through the recursion; no global state.
type filterContext struct {
	criteria  resource.FilterCriteria
	operation resource.FilterOperation
	total     int
}

// newFilterContext precomputes the condition slot total for the criteria.
func newFilterContext(criteria resource.FilterCriteria, operation resource.FilterOperation) filterContext {
	if operation != resource.FilterOperationOR {
		operation = resource.FilterOperationAND
	}
	return filterContext{
		criteria:  criteria,
		operation: operation,
		total:     criteria.ConditionCount(),
	}
}

// matches decides whether a resource satisfies the filter. It accumulates a
// counter over the present condition categories; a multi-valued predicate
// adds its full cardinality when any member matches, balancing the total
// computed by ConditionCount. OR mode fires on any satisfied condition, AND
// mode requires the counter to reach the total.
func (fc filterContext) matches(r *resource.Resource) bool {
	if fc.total == 0 {
		return true
	}

	found := 0
	crit := &fc.criteria

	if len(crit.Types) > 0 {
		for _, ty := range crit.Types {
			if r.Type() == ty {
				found += len(crit.Types)
				break
			}
		}
	}

	if ct := r.CreationTime(); ct != "" {
		if crit.CreatedBefore != "" && ct < crit.CreatedBefore {
			found++
		}
		if crit.CreatedAfter != "" && ct > crit.CreatedAfter {
			found++
		}
	}

	if lt := r.LastModified(); lt != "" {
		if crit.ModifiedSince != "" && lt > crit.ModifiedSince {
			found++
		}
		if crit.UnmodifiedSince != "" && lt < crit.UnmodifiedSince {
			found++
		}
	}

	if st := r.StateTag(); st != "" {
		if crit.StateTagSmaller != "" && st < crit.StateTagSmaller {
			found++
		}
		if crit.StateTagBigger != "" && st > crit.StateTagBigger {
			found++
		}
	}

	if et := r.ExpirationTime(); et != "" {
		if crit.ExpireBefore != "" && et < crit.ExpireBefore {
			found++
		}
		if crit.ExpireAfter != "" && et > crit.ExpireAfter {
			found++
		}
	}

	if len(crit.Labels) > 0 && labelsIntersect(r.Labels(), crit.Labels) {
		found += len(crit.Labels)
	}

	// Size predicates only apply to types carrying a contentSize attribute.
	if r.Type().HasContentSize() {
		cs := r.ContentSize()
		if crit.SizeAbove > 0 && cs >= crit.SizeAbove {
			found++
		}
		if crit.SizeBelow > 0 && cs < crit.SizeBelow {
			found++
		}
	}

	if len(crit.ContentTypes) > 0 && r.Type() == resource.TypeCIN {
		cnf := r.ContentFormat()
		for _, want := range crit.ContentTypes {
			if cnf == want {
				found += len(crit.ContentTypes)
				break
			}
		}
	}

	for name, want := range crit.Attributes {
		value, ok := r.Attribute(name)
		if !ok {
			continue
		}
		if matchAttribute(want, attributeString(value)) {
			found++
		}
	}

	if fc.operation == resource.FilterOperationOR {
		return found > 0
	}
	return found == fc.total
}

// labelsIntersect reports whether the two label sets share any member.
func labelsIntersect(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

// matchAttribute compares a requested value against the stringified resource
// value. A '*' in the requested value makes it a wildcard pattern; otherwise
// exact string equality is required.
func matchAttribute(want, got string) bool {
	if !strings.Contains(want, "*") {
		return want == got
	}
	pattern := wildcardRegexp(want)
	matched, err := regexp.MatchString(pattern, got)
	return err == nil && matched
}

// wildcardRegexp translates a '*' wildcard expression into an anchored
// regular expression, quoting every literal part.
func wildcardRegexp(expr string) string {
	parts := strings.Split(expr, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return "^" + strings.Join(parts, ".*") + "$"
}

// attributeString renders an attribute value the way filters compare it.
func attributeString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		if s == float64(int64(s)) {
			return fmt.Sprintf("%d", int64(s))
		}
		return fmt.Sprintf("%v", s)
	default:
		return fmt.Sprintf("%v", v)
	}
}
