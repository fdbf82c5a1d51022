// Package resource provides the resource model and boundary types for the CSE
// resource tree: typed resources, request/response envelopes, filter criteria,
// and the enumerations shared between the dispatcher and its collaborators.
package resource

import "encoding/json"

// Type is the oneM2M resource type tag. Values follow TS-0004; virtual
// resource types use an internal range and are never persisted.
type Type int

const (
	// TypeMixed matches any resource type in filters and group member lists.
	TypeMixed Type = 0
	// TypeACP is an accessControlPolicy resource.
	TypeACP Type = 1
	// TypeAE is an application entity registration.
	TypeAE Type = 2
	// TypeCNT is a container.
	TypeCNT Type = 3
	// TypeCIN is a contentInstance.
	TypeCIN Type = 4
	// TypeCSEBase is the root resource of the CSE.
	TypeCSEBase Type = 5
	// TypeGRP is a group.
	TypeGRP Type = 9
	// TypeCSR is a remoteCSE registration.
	TypeCSR Type = 16
	// TypeREQ is a request resource holding an asynchronous request result.
	TypeREQ Type = 17
	// TypeSUB is a subscription.
	TypeSUB Type = 23
	// TypeFCNT is a flexContainer.
	TypeFCNT Type = 28
	// TypeFCI is a flexContainerInstance.
	TypeFCI Type = 58
)

// Internal types for virtual resources. Kept well clear of the standard
// range so they can never collide with a persisted type tag.
const (
	TypeCNTLatest         Type = 20001
	TypeCNTOldest         Type = 20002
	TypeFCNTLatest        Type = 20003
	TypeFCNTOldest        Type = 20004
	TypeGRPFanOutPoint    Type = 20005
	TypePollingChannelURI Type = 20006
)

// typeKeys maps a resource type to its canonical serialization key.
var typeKeys = map[Type]string{
	TypeMixed:   "m2m:mixed",
	TypeACP:     "m2m:acp",
	TypeAE:      "m2m:ae",
	TypeCNT:     "m2m:cnt",
	TypeCIN:     "m2m:cin",
	TypeCSEBase: "m2m:cb",
	TypeGRP:     "m2m:grp",
	TypeCSR:     "m2m:csr",
	TypeREQ:     "m2m:req",
	TypeSUB:     "m2m:sub",
	TypeFCNT:    "m2m:fcnt",
	TypeFCI:     "m2m:fci",

	TypeCNTLatest:         "m2m:la",
	TypeCNTOldest:         "m2m:ol",
	TypeFCNTLatest:        "m2m:la",
	TypeFCNTOldest:        "m2m:ol",
	TypeGRPFanOutPoint:    "m2m:fopt",
	TypePollingChannelURI: "m2m:pcu",
}

// Key returns the canonical serialization key for the type, e.g. "m2m:cnt".
func (t Type) Key() string {
	if k, ok := typeKeys[t]; ok {
		return k
	}
	return "m2m:unknown"
}

// String returns the short name of the type without the namespace prefix.
func (t Type) String() string {
	k := t.Key()
	if len(k) > 4 {
		return k[4:]
	}
	return k
}

// IsVirtual reports whether the type is a virtual resource type. Virtual
// resources are intercepted before generic CRUD logic and never appear in
// discovery results or reconstructed trees.
func (t Type) IsVirtual() bool {
	switch t {
	case TypeCNTLatest, TypeCNTOldest, TypeFCNTLatest, TypeFCNTOldest,
		TypeGRPFanOutPoint, TypePollingChannelURI:
		return true
	default:
		return false
	}
}

// IsInstance reports whether the type is an instance resource carrying
// content (contentInstance or flexContainerInstance).
func (t Type) IsInstance() bool {
	return t == TypeCIN || t == TypeFCI
}

// HasContentSize reports whether resources of this type carry a contentSize
// attribute that size filters may compare against.
func (t Type) HasContentSize() bool {
	return t == TypeCIN || t == TypeFCNT
}

// MarshalJSON serializes the type as its numeric tag.
func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(t))
}

// UnmarshalJSON deserializes the type from its numeric tag.
func (t *Type) UnmarshalJSON(data []byte) error {
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*t = Type(v)
	return nil
}

// allowedChildTypes is the structural parent/child allow-list enforced at
// creation time.
var allowedChildTypes = map[Type][]Type{
	TypeCSEBase: {TypeACP, TypeAE, TypeCNT, TypeFCNT, TypeGRP, TypeCSR, TypeREQ, TypeSUB},
	TypeAE:      {TypeACP, TypeCNT, TypeFCNT, TypeGRP, TypeSUB},
	TypeCNT:     {TypeCNT, TypeCIN, TypeFCNT, TypeSUB},
	TypeFCNT:    {TypeCNT, TypeFCNT, TypeFCI, TypeSUB},
	TypeGRP:     {TypeSUB},
	TypeCSR:     {TypeACP, TypeCNT, TypeFCNT, TypeGRP, TypeSUB},
	TypeACP:     {TypeSUB},
	TypeSUB:     {},
	TypeCIN:     {},
	TypeFCI:     {},
	TypeREQ:     {TypeSUB},
}

// CanHaveChild reports whether a resource of type t may hold a direct child
// of type child.
func (t Type) CanHaveChild(child Type) bool {
	for _, ct := range allowedChildTypes[t] {
		if ct == child {
			return true
		}
	}
	return false
}
