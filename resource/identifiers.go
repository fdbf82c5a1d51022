package resource

import (
	"strings"

	"github.com/google/uuid"
)

// virtualSuffixes maps the trailing segment of a hybrid identifier to the
// virtual resource type it addresses under a parent of the given type.
var virtualSuffixes = map[string]map[Type]Type{
	"la": {
		TypeCNT:  TypeCNTLatest,
		TypeFCNT: TypeFCNTLatest,
	},
	"ol": {
		TypeCNT:  TypeCNTOldest,
		TypeFCNT: TypeFCNTOldest,
	},
	"fopt": {
		TypeGRP: TypeGRPFanOutPoint,
	},
	"pcu": {
		TypeAE:  TypePollingChannelURI,
		TypeCSR: TypePollingChannelURI,
	},
}

// IsStructured reports whether an identifier is a structured path rather than
// an opaque resource identifier.
func IsStructured(id string) bool {
	return strings.Contains(id, "/")
}

// SplitHybrid splits a possibly-hybrid identifier into the addressed resource
// and a trailing virtual-resource suffix. An identifier whose final segment is
// not a virtual suffix is returned unchanged with an empty suffix.
func SplitHybrid(id string) (base, suffix string) {
	if !IsStructured(id) {
		return id, ""
	}
	idx := strings.LastIndex(id, "/")
	last := id[idx+1:]
	if _, ok := virtualSuffixes[last]; ok {
		return id[:idx], last
	}
	return id, ""
}

// IsReservedName reports whether a resource name collides with a virtual
// resource suffix. SplitHybrid strips these names from the end of any
// structured path, so a resource carrying one could never be addressed.
func IsReservedName(name string) bool {
	_, ok := virtualSuffixes[name]
	return ok
}

// VirtualTypeFor resolves the virtual resource type a suffix addresses under
// a parent of the given type, TypeMixed when the combination is not virtual.
func VirtualTypeFor(suffix string, parent Type) Type {
	if m, ok := virtualSuffixes[suffix]; ok {
		if vt, ok := m[parent]; ok {
			return vt
		}
	}
	return TypeMixed
}

// UniqueRI generates a new resource identifier with the type's short name as
// prefix, e.g. "cnt8f14e45f".
func UniqueRI(ty Type) string {
	return ty.String() + strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

// UniqueAEI generates a new C-type AE-ID for self-registering application
// entities.
func UniqueAEI() string {
	return "C" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// ChildPath appends a segment to a structured path.
func ChildPath(parent, rn string) string {
	if parent == "" {
		return rn
	}
	return parent + "/" + rn
}
