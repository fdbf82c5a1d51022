// Package registration implements the registration rules for application
// entities and remote CSEs: originator vetting, AE identifier assignment, and
// the deregistration hooks the dispatcher calls around resource removal.
package registration

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/c360/cse/resource"
)

// Validator vets registrations and deregistrations.
type Validator struct {
	logger *slog.Logger
	config Config
}

// New creates a Validator.
func New(logger *slog.Logger, config Config) *Validator {
	if len(config.AllowedAEOriginators) == 0 {
		config.AllowedAEOriginators = DefaultConfig().AllowedAEOriginators
	}
	return &Validator{logger: logger, config: config}
}

// CheckResourceCreation vets a resource creation. For application entity
// registrations it assigns the AE identifier and returns the originator the
// dispatcher must continue with; an empty returned originator means keep the
// current one.
func (v *Validator) CheckResourceCreation(ctx context.Context, r *resource.Resource,
	originator string, parent *resource.Resource) (resource.StatusCode, string) {

	switch r.Type() {
	case resource.TypeAE:
		return v.checkAERegistration(r, originator)
	case resource.TypeCSR:
		return v.checkCSRRegistration(r, originator)
	default:
		return resource.StatusOK, ""
	}
}

func (v *Validator) checkAERegistration(r *resource.Resource, originator string) (resource.StatusCode, string) {
	if v.isReserved(originator) {
		v.logger.Warn("ae registration with reserved originator rejected", "originator", originator)
		return resource.StatusAppRuleValidationFailed, ""
	}

	// The originator "C" (or none) requests a CSE-assigned identifier.
	assigned := originator
	if originator == "" || originator == "C" || originator == "S" {
		assigned = resource.UniqueAEI()
	} else if !v.originatorAllowed(originator) {
		v.logger.Warn("ae registration originator not allowed", "originator", originator)
		return resource.StatusAppRuleValidationFailed, ""
	}

	r.SetAttribute("aei", assigned)
	return resource.StatusOK, assigned
}

func (v *Validator) checkCSRRegistration(r *resource.Resource, originator string) (resource.StatusCode, string) {
	csi, ok := r.Attribute("csi")
	if !ok {
		return resource.StatusBadRequest, ""
	}
	id, isString := csi.(string)
	if !isString || id == "" {
		return resource.StatusBadRequest, ""
	}
	if strings.TrimPrefix(id, "/") == strings.TrimPrefix(v.config.CSEID, "/") {
		v.logger.Warn("remote cse registration with own identifier rejected", "csi", id)
		return resource.StatusBadRequest, ""
	}
	return resource.StatusOK, ""
}

// CheckResourceUpdate vets an update. Registration identity attributes are
// immutable.
func (v *Validator) CheckResourceUpdate(ctx context.Context, r *resource.Resource,
	update map[string]any) resource.StatusCode {

	switch r.Type() {
	case resource.TypeAE:
		if newAEI, ok := update["aei"]; ok {
			if current, _ := r.Attribute("aei"); newAEI != current {
				return resource.StatusBadRequest
			}
		}
	case resource.TypeCSR:
		if newCSI, ok := update["csi"]; ok {
			if current, _ := r.Attribute("csi"); newCSI != current {
				return resource.StatusBadRequest
			}
		}
	}
	return resource.StatusOK
}

// CheckResourceDeletion vets a deregistration. Entities may always deregister
// themselves; access control has already run at this point.
func (v *Validator) CheckResourceDeletion(ctx context.Context, r *resource.Resource) resource.StatusCode {
	return resource.StatusOK
}

func (v *Validator) isReserved(originator string) bool {
	for _, reserved := range v.config.ReservedOriginators {
		if originator == reserved {
			return true
		}
	}
	return false
}

func (v *Validator) originatorAllowed(originator string) bool {
	for _, pattern := range v.config.AllowedAEOriginators {
		if pattern == originator {
			return true
		}
		if strings.Contains(pattern, "*") && wildcardMatch(pattern, originator) {
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
