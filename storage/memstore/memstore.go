// Package memstore provides the in-memory storage backend. It keeps the full
// resource tree in maps guarded by one RWMutex and is the default backend for
// tests and single-node deployments without persistence requirements.
package memstore

import (
	"context"
	"sync"

	"github.com/c360/cse/errors"
	"github.com/c360/cse/resource"
)

// Store is an in-memory resource store. Child lists preserve insertion order;
// discovery depends on a stable child ordering.
type Store struct {
	mu       sync.RWMutex
	byRI     map[string]*resource.Resource
	bySRN    map[string]string   // structured path -> ri
	children map[string][]string // pi -> child ris in insertion order
}

// New creates an empty store.
func New() *Store {
	return &Store{
		byRI:     map[string]*resource.Resource{},
		bySRN:    map[string]string{},
		children: map[string][]string{},
	}
}

// RetrieveResource fetches a resource by unstructured identifier or structured
// path. The returned resource is a copy the caller may mutate freely.
func (s *Store) RetrieveResource(ctx context.Context, id string) (*resource.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(id)
}

func (s *Store) lookup(id string) (*resource.Resource, error) {
	ri := id
	if resource.IsStructured(id) {
		mapped, ok := s.bySRN[id]
		if !ok {
			return nil, errors.WrapInvalid(errors.ErrResourceNotFound,
				"Store", "RetrieveResource", "structured path "+id+" not found")
		}
		ri = mapped
	}
	r, ok := s.byRI[ri]
	if !ok {
		// The base resource's structured path is a single segment and carries
		// no separator; try the path index before reporting absence.
		if mapped, found := s.bySRN[id]; found {
			if r, ok = s.byRI[mapped]; ok {
				return r.Clone(), nil
			}
		}
		return nil, errors.WrapInvalid(errors.ErrResourceNotFound,
			"Store", "RetrieveResource", "resource "+ri+" not found")
	}
	return r.Clone(), nil
}

// DirectChildResources returns the direct children of pi in insertion order,
// optionally filtered by type. resource.TypeMixed matches every type.
func (s *Store) DirectChildResources(ctx context.Context, pi string, ty resource.Type) ([]*resource.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ris := s.children[pi]
	out := make([]*resource.Resource, 0, len(ris))
	for _, ri := range ris {
		r, ok := s.byRI[ri]
		if !ok {
			continue
		}
		if ty != resource.TypeMixed && r.Type() != ty {
			continue
		}
		out = append(out, r.Clone())
	}
	return out, nil
}

// HasResource reports whether a resource with the identifier or the structured
// path exists.
func (s *Store) HasResource(ctx context.Context, ri, srn string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ri != "" {
		if _, ok := s.byRI[ri]; ok {
			return true, nil
		}
	}
	if srn != "" {
		if _, ok := s.bySRN[srn]; ok {
			return true, nil
		}
	}
	return false, nil
}

// CreateResource stores a new resource. Without overwrite a duplicate
// identifier or structured path is rejected.
func (s *Store) CreateResource(ctx context.Context, r *resource.Resource, overwrite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ri := r.RI()
	srn := r.StructuredPath()

	if !overwrite {
		if _, ok := s.byRI[ri]; ok {
			return errors.WrapInvalid(errors.ErrResourceExists,
				"Store", "CreateResource", "resource "+ri+" already exists")
		}
		if srn != "" {
			if _, ok := s.bySRN[srn]; ok {
				return errors.WrapInvalid(errors.ErrResourceExists,
					"Store", "CreateResource", "structured path "+srn+" already exists")
			}
		}
	}

	_, existed := s.byRI[ri]
	s.byRI[ri] = r.Clone()
	if srn != "" {
		s.bySRN[srn] = ri
	}
	if !existed {
		s.children[r.PI()] = append(s.children[r.PI()], ri)
	}
	return nil
}

// UpdateResource replaces a stored resource's attributes.
func (s *Store) UpdateResource(ctx context.Context, r *resource.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ri := r.RI()
	if _, ok := s.byRI[ri]; !ok {
		return errors.WrapInvalid(errors.ErrResourceNotFound,
			"Store", "UpdateResource", "resource "+ri+" not found")
	}
	s.byRI[ri] = r.Clone()
	if srn := r.StructuredPath(); srn != "" {
		s.bySRN[srn] = ri
	}
	return nil
}

// DeleteResource removes a resource and, recursively, its subtree.
func (s *Store) DeleteResource(ctx context.Context, r *resource.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ri := r.RI()
	stored, ok := s.byRI[ri]
	if !ok {
		return errors.WrapInvalid(errors.ErrResourceNotFound,
			"Store", "DeleteResource", "resource "+ri+" not found")
	}
	s.remove(stored)
	return nil
}

func (s *Store) remove(r *resource.Resource) {
	ri := r.RI()
	for _, childRI := range s.children[ri] {
		if child, ok := s.byRI[childRI]; ok {
			s.remove(child)
		}
	}
	delete(s.children, ri)
	delete(s.byRI, ri)
	if srn := r.StructuredPath(); srn != "" {
		delete(s.bySRN, srn)
	}
	// Unlink from the parent's child list.
	pi := r.PI()
	siblings := s.children[pi]
	for i, sib := range siblings {
		if sib == ri {
			s.children[pi] = append(siblings[:i:i], siblings[i+1:]...)
			break
		}
	}
}

// CountResources returns the number of stored resources.
func (s *Store) CountResources(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byRI), nil
}

// RetrieveResourcesByType returns every stored resource of the given type.
func (s *Store) RetrieveResourcesByType(ctx context.Context, ty resource.Type) ([]*resource.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*resource.Resource
	for _, r := range s.byRI {
		if r.Type() == ty {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}
