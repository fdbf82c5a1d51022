package resource

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimestampFormat is the oneM2M basic timestamp layout. Timestamps in this
// format compare correctly as plain strings.
const TimestampFormat = "20060102T150405,000000"

// Timestamp formats t in the oneM2M basic layout.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// Now returns the current time as a oneM2M timestamp.
func Now() string {
	return Timestamp(time.Now())
}

// Resource is a node of the resource tree. Attributes are held in their
// serialized short-name form (ri, pi, rn, ct, ...); typed accessors cover the
// small set the dispatcher inspects. The structured path is computed lazily
// and cached. A resource fetched from storage is a request-scoped copy and may
// be mutated freely for response shaping.
type Resource struct {
	attrs          map[string]any
	structuredPath string
	dirty          map[string]struct{}
}

// New creates a resource of the given type and name with empty attributes.
func New(ty Type, rn string) *Resource {
	r := &Resource{attrs: map[string]any{}}
	r.attrs["ty"] = int(ty)
	if rn != "" {
		r.attrs["rn"] = rn
	}
	return r
}

// FromAttributes builds a resource from a decoded attribute map. The map must
// carry a valid "ty" tag.
func FromAttributes(attrs map[string]any) (*Resource, error) {
	if attrs == nil {
		return nil, fmt.Errorf("nil attribute map")
	}
	if _, ok := attrs["ty"]; !ok {
		return nil, fmt.Errorf("attribute map has no resource type")
	}
	r := &Resource{attrs: attrs}
	if r.Type() == TypeMixed {
		return nil, fmt.Errorf("attribute map has no valid resource type")
	}
	return r, nil
}

// Type returns the resource type tag.
func (r *Resource) Type() Type {
	return Type(toInt(r.attrs["ty"]))
}

// RI returns the resource identifier.
func (r *Resource) RI() string { return toString(r.attrs["ri"]) }

// SetRI assigns the resource identifier.
func (r *Resource) SetRI(ri string) { r.attrs["ri"] = ri }

// PI returns the parent resource identifier.
func (r *Resource) PI() string { return toString(r.attrs["pi"]) }

// SetPI assigns the parent resource identifier.
func (r *Resource) SetPI(pi string) { r.attrs["pi"] = pi }

// Name returns the resource name (rn).
func (r *Resource) Name() string { return toString(r.attrs["rn"]) }

// SetName assigns the resource name.
func (r *Resource) SetName(rn string) { r.attrs["rn"] = rn }

// CreationTime returns the ct attribute.
func (r *Resource) CreationTime() string { return toString(r.attrs["ct"]) }

// LastModified returns the lt attribute.
func (r *Resource) LastModified() string { return toString(r.attrs["lt"]) }

// ExpirationTime returns the et attribute, empty when the resource does not
// expire.
func (r *Resource) ExpirationTime() string { return toString(r.attrs["et"]) }

// ACPI returns the list of access control policy identifiers governing the
// resource. A missing acpi attribute yields nil.
func (r *Resource) ACPI() []string { return toStringSlice(r.attrs["acpi"]) }

// Labels returns the lbl attribute.
func (r *Resource) Labels() []string { return toStringSlice(r.attrs["lbl"]) }

// StateTag returns the st attribute in its string form; state tags compare
// lexically, never numerically.
func (r *Resource) StateTag() string {
	if _, ok := r.attrs["st"]; !ok {
		return ""
	}
	return toString(r.attrs["st"])
}

// ContentSize returns the cs attribute, 0 when absent.
func (r *Resource) ContentSize() int { return toInt(r.attrs["cs"]) }

// ContentFormat returns the cnf attribute.
func (r *Resource) ContentFormat() string { return toString(r.attrs["cnf"]) }

// Link returns the lnk attribute of an announced resource.
func (r *Resource) Link() string { return toString(r.attrs["lnk"]) }

// ReadOnly reports whether the resource rejects updates. The REQ type and
// instance resources are immutable once created.
func (r *Resource) ReadOnly() bool {
	return r.Type() == TypeREQ || r.Type().IsInstance()
}

// Attribute returns the named attribute and whether it is present.
func (r *Resource) Attribute(name string) (any, bool) {
	v, ok := r.attrs[name]
	return v, ok
}

// SetAttribute assigns an attribute and marks it modified. Assigning the same
// value again still counts as a modification; modifiedAttributes shaping
// depends on that.
func (r *Resource) SetAttribute(name string, value any) {
	r.attrs[name] = value
	if r.dirty == nil {
		r.dirty = map[string]struct{}{}
	}
	r.dirty[name] = struct{}{}
}

// RemoveAttribute deletes an attribute and marks it modified.
func (r *Resource) RemoveAttribute(name string) {
	delete(r.attrs, name)
	if r.dirty == nil {
		r.dirty = map[string]struct{}{}
	}
	r.dirty[name] = struct{}{}
}

// ApplyUpdate merges an update body into the resource. Every key of the
// update is marked modified regardless of whether its value changed; nil
// values remove the attribute. Identity attributes cannot be rewritten.
func (r *Resource) ApplyUpdate(update map[string]any) {
	for k, v := range update {
		switch k {
		case "ri", "pi", "ty", "ct", "rn":
			continue
		}
		if v == nil {
			r.RemoveAttribute(k)
			continue
		}
		r.SetAttribute(k, v)
	}
	r.SetAttribute("lt", Now())
}

// ModifiedAttributes returns the names of attributes touched since the last
// ClearModified call.
func (r *Resource) ModifiedAttributes() []string {
	names := make([]string, 0, len(r.dirty))
	for k := range r.dirty {
		names = append(names, k)
	}
	return names
}

// ClearModified resets the modification markers.
func (r *Resource) ClearModified() {
	r.dirty = nil
}

// Attributes returns the live attribute map. Callers shaping responses may
// mutate it; the mutation stays request-scoped unless the resource is
// persisted.
func (r *Resource) Attributes() map[string]any {
	return r.attrs
}

// Body returns the embedded serialization form {"m2m:<ty>": attributes}.
func (r *Resource) Body() map[string]any {
	return map[string]any{r.Type().Key(): r.attrs}
}

// StructuredPath returns the cached structured path, empty when it has not
// been computed yet.
func (r *Resource) StructuredPath() string {
	return r.structuredPath
}

// SetStructuredPath caches the structured path.
func (r *Resource) SetStructuredPath(srn string) {
	r.structuredPath = srn
}

// Stamp assigns creation, modification, and expiration timestamps on a fresh
// resource. The expiration offset of zero leaves et unset.
func (r *Resource) Stamp(expiration time.Duration) {
	now := time.Now()
	ts := Timestamp(now)
	r.attrs["ct"] = ts
	r.attrs["lt"] = ts
	if expiration > 0 {
		r.attrs["et"] = Timestamp(now.Add(expiration))
	}
}

// IsExpired reports whether the resource's expiration time lies in the past.
func (r *Resource) IsExpired() bool {
	et := r.ExpirationTime()
	return et != "" && et < Now()
}

// Clone returns a deep copy of the resource.
func (r *Resource) Clone() *Resource {
	data, err := json.Marshal(r.attrs)
	if err != nil {
		// Fall back to a shallow copy when the attribute map is unmarshalable.
		attrs := make(map[string]any, len(r.attrs))
		for k, v := range r.attrs {
			attrs[k] = v
		}
		return &Resource{attrs: attrs, structuredPath: r.structuredPath}
	}
	var attrs map[string]any
	if err := json.Unmarshal(data, &attrs); err != nil {
		attrs = map[string]any{}
	}
	return &Resource{attrs: attrs, structuredPath: r.structuredPath}
}

// record is the storage serialization envelope for a resource.
type record struct {
	SRN   string         `json:"srn,omitempty"`
	Attrs map[string]any `json:"attrs"`
}

// MarshalRecord serializes the resource for storage.
func (r *Resource) MarshalRecord() ([]byte, error) {
	return json.Marshal(record{SRN: r.structuredPath, Attrs: r.attrs})
}

// UnmarshalRecord deserializes a resource from its storage form.
func UnmarshalRecord(data []byte) (*Resource, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal resource record: %w", err)
	}
	r, err := FromAttributes(rec.Attrs)
	if err != nil {
		return nil, err
	}
	r.structuredPath = rec.SRN
	return r, nil
}

// toString converts an attribute value to its string form.
func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		// JSON decodes numbers to float64; state tags and sizes round-trip
		// through here.
		if s == float64(int64(s)) {
			return fmt.Sprintf("%d", int64(s))
		}
		return fmt.Sprintf("%v", s)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// toInt converts an attribute value to int, 0 when not numeric.
func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	default:
		return 0
	}
}

// toStringSlice converts an attribute value to a string slice.
func toStringSlice(v any) []string {
	switch s := v.(type) {
	case nil:
		return nil
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			out = append(out, toString(e))
		}
		return out
	default:
		return nil
	}
}
