// Package security implements access control decisions over access control
// policy resources. Policies grant operations to originators through access
// control rules; the checker resolves a resource's policy references and
// evaluates the requested permission against the granted bitmask.
package security

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/c360/cse/dispatcher"
	"github.com/c360/cse/resource"
)

// Storage is the subset of the resource store the checker needs to resolve
// policy references.
type Storage interface {
	RetrieveResource(ctx context.Context, id string) (*resource.Resource, error)
}

// Checker evaluates access control decisions.
type Checker struct {
	store  Storage
	logger *slog.Logger
	config Config
}

// New creates a Checker.
func New(store Storage, logger *slog.Logger, config Config) *Checker {
	if config.AdminOriginator == "" {
		config = DefaultConfig()
	}
	return &Checker{store: store, logger: logger, config: config}
}

// HasAccess decides whether the originator may perform the operation on the
// resource. Policy resources are always governed by their own self-privileges;
// other resources by the privileges of their referenced policies. A resource
// without policy references falls back to the creator rule.
func (c *Checker) HasAccess(ctx context.Context, originator string, r *resource.Resource,
	permission resource.Permission, check dispatcher.AccessCheck) bool {

	if originator == c.config.AdminOriginator {
		return true
	}

	if r.Type() == resource.TypeACP {
		return c.evaluatePolicy(r, originator, permission, true)
	}

	acpi := r.ACPI()
	if check.CheckSelf || len(acpi) > 0 {
		for _, id := range acpi {
			acp, err := c.store.RetrieveResource(ctx, id)
			if err != nil {
				c.logger.Warn("unresolvable policy reference", "acpi", id, "resource", r.RI())
				continue
			}
			if acp.Type() != resource.TypeACP {
				continue
			}
			if c.evaluatePolicy(acp, originator, permission, check.CheckSelf) {
				return true
			}
		}
		return false
	}

	return c.defaultAccess(originator, r, permission, check)
}

// defaultAccess applies the fallback rules for resources without policy
// references: the creator keeps full access, and registrations under the CSE
// base are open here because the registration validator vets them separately.
func (c *Checker) defaultAccess(originator string, r *resource.Resource,
	permission resource.Permission, check dispatcher.AccessCheck) bool {

	if check.IsCreateRequest && check.Parent != nil && check.Parent.Type() == resource.TypeCSEBase {
		switch check.ChildType {
		case resource.TypeAE, resource.TypeCSR:
			return originator != ""
		}
	}

	if creator, ok := r.Attribute("cr"); ok {
		if s, isString := creator.(string); isString && s == originator {
			return true
		}
	}
	if aei, ok := r.Attribute("aei"); ok {
		if s, isString := aei.(string); isString && s == originator {
			return true
		}
	}

	// The CSE base itself stays readable so that discovery from registered
	// entities works without an explicit policy.
	if r.Type() == resource.TypeCSEBase &&
		(permission == resource.PermissionRetrieve || permission == resource.PermissionDiscovery) {
		return originator != ""
	}

	return false
}

// evaluatePolicy checks one policy resource. The self flag selects the
// self-privileges rule set governing operations on policies themselves.
func (c *Checker) evaluatePolicy(acp *resource.Resource, originator string,
	permission resource.Permission, self bool) bool {

	attrName := "pv"
	if self {
		attrName = "pvs"
	}

	for _, rule := range policyRules(acp, attrName) {
		if !originatorMatches(rule.originators, originator) {
			continue
		}
		if rule.operations&int(permission) != 0 {
			return true
		}
	}
	return false
}

// accessRule is one decoded access control rule.
type accessRule struct {
	originators []string
	operations  int
}

// policyRules decodes the acr list of a policy's pv or pvs attribute.
func policyRules(acp *resource.Resource, attrName string) []accessRule {
	raw, ok := acp.Attribute(attrName)
	if !ok {
		return nil
	}
	priv, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	acr, ok := priv["acr"].([]any)
	if !ok {
		return nil
	}

	rules := make([]accessRule, 0, len(acr))
	for _, entry := range acr {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		var rule accessRule
		switch acor := m["acor"].(type) {
		case []any:
			for _, o := range acor {
				if s, isString := o.(string); isString {
					rule.originators = append(rule.originators, s)
				}
			}
		case []string:
			rule.originators = acor
		}
		switch acop := m["acop"].(type) {
		case int:
			rule.operations = acop
		case float64:
			rule.operations = int(acop)
		}
		rules = append(rules, rule)
	}
	return rules
}

// originatorMatches checks an originator against a rule's originator list.
// The special entry "all" matches everyone; entries containing '*' are
// wildcard patterns.
func originatorMatches(allowed []string, originator string) bool {
	for _, a := range allowed {
		if a == "all" {
			return true
		}
		if strings.Contains(a, "*") {
			if wildcardMatch(a, originator) {
				return true
			}
			continue
		}
		if a == originator {
			return true
		}
	}
	return false
}

func wildcardMatch(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	matched, err := regexp.MatchString("^"+strings.Join(parts, ".*")+"$", s)
	return err == nil && matched
}
