// Package kvstore implements the resource store on NATS JetStream KV. Three
// buckets hold the tree: the resource records keyed by identifier, the
// structured-path index, and the per-parent child lists. Child list mutations
// go through CAS with retry so concurrent creates under one parent never lose
// entries.
package kvstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/c360/cse/errors"
	"github.com/c360/cse/natsclient"
	"github.com/c360/cse/resource"
	"github.com/c360/cse/storage"
)

// Store is the JetStream KV resource store.
type Store struct {
	resources *natsclient.KVStore // ri -> record
	paths     *natsclient.KVStore // encoded srn -> ri
	children  *natsclient.KVStore // encoded pi -> JSON list of child ris
	logger    *slog.Logger
}

// New opens the three buckets and returns the store.
func New(ctx context.Context, client *natsclient.Client, cfg storage.Config, logger *slog.Logger) (*Store, error) {
	prefix := cfg.BucketPrefix
	if prefix == "" {
		prefix = "cse"
	}

	resources, err := client.KeyValue(ctx, prefix+"-resources")
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "New", "failed to open resources bucket")
	}
	paths, err := client.KeyValue(ctx, prefix+"-paths")
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "New", "failed to open paths bucket")
	}
	children, err := client.KeyValue(ctx, prefix+"-children")
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "New", "failed to open children bucket")
	}

	return &Store{
		resources: client.NewKVStore(resources),
		paths:     client.NewKVStore(paths),
		children:  client.NewKVStore(children),
		logger:    logger,
	}, nil
}

// encodeKey makes an arbitrary identifier safe as a KV key. Structured paths
// contain '/', which JetStream key syntax forbids.
func encodeKey(id string) string {
	if id == "" {
		return "root"
	}
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

// RetrieveResource fetches a resource by unstructured identifier or structured
// path.
func (s *Store) RetrieveResource(ctx context.Context, id string) (*resource.Resource, error) {
	ri := id
	if resource.IsStructured(id) {
		entry, err := s.paths.Get(ctx, encodeKey(id))
		if err != nil {
			if stderrors.Is(err, errors.ErrResourceNotFound) {
				return nil, errors.WrapInvalid(errors.ErrResourceNotFound,
					"Store", "RetrieveResource", "structured path "+id+" not found")
			}
			return nil, errors.WrapTransient(err, "Store", "RetrieveResource", "path index lookup failed")
		}
		ri = string(entry.Value)
	}

	entry, err := s.resources.Get(ctx, encodeKey(ri))
	if err != nil {
		if stderrors.Is(err, errors.ErrResourceNotFound) {
			// The base resource's structured path is a single segment and
			// carries no separator; try the path index before reporting
			// absence.
			if pathEntry, pathErr := s.paths.Get(ctx, encodeKey(id)); pathErr == nil {
				if entry, err = s.resources.Get(ctx, encodeKey(string(pathEntry.Value))); err == nil {
					return resource.UnmarshalRecord(entry.Value)
				}
			}
			return nil, errors.WrapInvalid(errors.ErrResourceNotFound,
				"Store", "RetrieveResource", "resource "+ri+" not found")
		}
		return nil, errors.WrapTransient(err, "Store", "RetrieveResource", "resource lookup failed")
	}
	return resource.UnmarshalRecord(entry.Value)
}

// DirectChildResources returns the direct children of pi in creation order,
// optionally filtered by type.
func (s *Store) DirectChildResources(ctx context.Context, pi string, ty resource.Type) ([]*resource.Resource, error) {
	ris, err := s.childList(ctx, pi)
	if err != nil {
		return nil, err
	}

	out := make([]*resource.Resource, 0, len(ris))
	for _, ri := range ris {
		r, err := s.RetrieveResource(ctx, ri)
		if err != nil {
			if stderrors.Is(err, errors.ErrResourceNotFound) {
				// Stale child list entry; skip it.
				continue
			}
			return nil, err
		}
		if ty != resource.TypeMixed && r.Type() != ty {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) childList(ctx context.Context, pi string) ([]string, error) {
	entry, err := s.children.Get(ctx, encodeKey(pi))
	if err != nil {
		if stderrors.Is(err, errors.ErrResourceNotFound) {
			return nil, nil
		}
		return nil, errors.WrapTransient(err, "Store", "childList", "child index lookup failed")
	}
	var ris []string
	if err := json.Unmarshal(entry.Value, &ris); err != nil {
		return nil, errors.WrapFatal(err, "Store", "childList", "corrupt child index for "+pi)
	}
	return ris, nil
}

// HasResource reports whether a resource with the identifier or the structured
// path exists.
func (s *Store) HasResource(ctx context.Context, ri, srn string) (bool, error) {
	if ri != "" {
		if _, err := s.resources.Get(ctx, encodeKey(ri)); err == nil {
			return true, nil
		} else if !stderrors.Is(err, errors.ErrResourceNotFound) {
			return false, errors.WrapTransient(err, "Store", "HasResource", "resource lookup failed")
		}
	}
	if srn != "" {
		if _, err := s.paths.Get(ctx, encodeKey(srn)); err == nil {
			return true, nil
		} else if !stderrors.Is(err, errors.ErrResourceNotFound) {
			return false, errors.WrapTransient(err, "Store", "HasResource", "path index lookup failed")
		}
	}
	return false, nil
}

// CreateResource stores a new resource and links it into the indexes.
func (s *Store) CreateResource(ctx context.Context, r *resource.Resource, overwrite bool) error {
	data, err := r.MarshalRecord()
	if err != nil {
		return errors.WrapInvalid(err, "Store", "CreateResource", "failed to serialize resource")
	}

	ri := r.RI()
	if overwrite {
		if _, err := s.resources.Put(ctx, encodeKey(ri), data); err != nil {
			return errors.WrapTransient(err, "Store", "CreateResource", "resource write failed")
		}
	} else {
		if _, err := s.resources.Create(ctx, encodeKey(ri), data); err != nil {
			if stderrors.Is(err, errors.ErrResourceExists) {
				return errors.WrapInvalid(errors.ErrResourceExists,
					"Store", "CreateResource", "resource "+ri+" already exists")
			}
			return errors.WrapTransient(err, "Store", "CreateResource", "resource write failed")
		}
	}

	if srn := r.StructuredPath(); srn != "" {
		if _, err := s.paths.Put(ctx, encodeKey(srn), []byte(ri)); err != nil {
			return errors.WrapTransient(err, "Store", "CreateResource", "path index write failed")
		}
	}

	if err := s.linkChild(ctx, r.PI(), ri); err != nil {
		return err
	}
	return nil
}

func (s *Store) linkChild(ctx context.Context, pi, ri string) error {
	err := s.children.UpdateWithRetry(ctx, encodeKey(pi), func(current []byte) ([]byte, error) {
		var ris []string
		if len(current) > 0 {
			if err := json.Unmarshal(current, &ris); err != nil {
				return nil, fmt.Errorf("corrupt child index: %w", err)
			}
		}
		for _, existing := range ris {
			if existing == ri {
				return current, nil
			}
		}
		return json.Marshal(append(ris, ri))
	})
	if err != nil {
		return errors.WrapTransient(err, "Store", "linkChild", "child index update failed")
	}
	return nil
}

func (s *Store) unlinkChild(ctx context.Context, pi, ri string) error {
	err := s.children.UpdateWithRetry(ctx, encodeKey(pi), func(current []byte) ([]byte, error) {
		var ris []string
		if len(current) > 0 {
			if err := json.Unmarshal(current, &ris); err != nil {
				return nil, fmt.Errorf("corrupt child index: %w", err)
			}
		}
		out := ris[:0]
		for _, existing := range ris {
			if existing != ri {
				out = append(out, existing)
			}
		}
		return json.Marshal(out)
	})
	if err != nil {
		return errors.WrapTransient(err, "Store", "unlinkChild", "child index update failed")
	}
	return nil
}

// UpdateResource replaces a stored resource's record.
func (s *Store) UpdateResource(ctx context.Context, r *resource.Resource) error {
	ri := r.RI()
	if _, err := s.resources.Get(ctx, encodeKey(ri)); err != nil {
		if stderrors.Is(err, errors.ErrResourceNotFound) {
			return errors.WrapInvalid(errors.ErrResourceNotFound,
				"Store", "UpdateResource", "resource "+ri+" not found")
		}
		return errors.WrapTransient(err, "Store", "UpdateResource", "resource lookup failed")
	}

	data, err := r.MarshalRecord()
	if err != nil {
		return errors.WrapInvalid(err, "Store", "UpdateResource", "failed to serialize resource")
	}
	if _, err := s.resources.Put(ctx, encodeKey(ri), data); err != nil {
		return errors.WrapTransient(err, "Store", "UpdateResource", "resource write failed")
	}
	if srn := r.StructuredPath(); srn != "" {
		if _, err := s.paths.Put(ctx, encodeKey(srn), []byte(ri)); err != nil {
			return errors.WrapTransient(err, "Store", "UpdateResource", "path index write failed")
		}
	}
	return nil
}

// DeleteResource removes a resource and, recursively, its subtree.
func (s *Store) DeleteResource(ctx context.Context, r *resource.Resource) error {
	if err := s.deleteSubtree(ctx, r); err != nil {
		return err
	}
	return s.unlinkChild(ctx, r.PI(), r.RI())
}

func (s *Store) deleteSubtree(ctx context.Context, r *resource.Resource) error {
	ri := r.RI()

	childRIs, err := s.childList(ctx, ri)
	if err != nil {
		return err
	}
	for _, childRI := range childRIs {
		child, err := s.RetrieveResource(ctx, childRI)
		if err != nil {
			if stderrors.Is(err, errors.ErrResourceNotFound) {
				continue
			}
			return err
		}
		if err := s.deleteSubtree(ctx, child); err != nil {
			return err
		}
	}

	if err := s.children.Delete(ctx, encodeKey(ri)); err != nil &&
		!stderrors.Is(err, errors.ErrResourceNotFound) {
		return errors.WrapTransient(err, "Store", "DeleteResource", "child index delete failed")
	}
	if srn := r.StructuredPath(); srn != "" {
		if err := s.paths.Delete(ctx, encodeKey(srn)); err != nil &&
			!stderrors.Is(err, errors.ErrResourceNotFound) {
			return errors.WrapTransient(err, "Store", "DeleteResource", "path index delete failed")
		}
	}
	if err := s.resources.Delete(ctx, encodeKey(ri)); err != nil {
		if stderrors.Is(err, errors.ErrResourceNotFound) {
			return errors.WrapInvalid(errors.ErrResourceNotFound,
				"Store", "DeleteResource", "resource "+ri+" not found")
		}
		return errors.WrapTransient(err, "Store", "DeleteResource", "resource delete failed")
	}
	return nil
}

// CountResources returns the number of stored resources.
func (s *Store) CountResources(ctx context.Context) (int, error) {
	keys, err := s.resources.Keys(ctx)
	if err != nil {
		return 0, errors.WrapTransient(err, "Store", "CountResources", "key listing failed")
	}
	return len(keys), nil
}

// RetrieveResourcesByType returns every stored resource of the given type.
// This scans the whole bucket; callers use it for maintenance tasks, not on
// the request path.
func (s *Store) RetrieveResourcesByType(ctx context.Context, ty resource.Type) ([]*resource.Resource, error) {
	keys, err := s.resources.Keys(ctx)
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "RetrieveResourcesByType", "key listing failed")
	}

	var out []*resource.Resource
	for _, key := range keys {
		entry, err := s.resources.Get(ctx, key)
		if err != nil {
			if stderrors.Is(err, errors.ErrResourceNotFound) {
				continue
			}
			return nil, errors.WrapTransient(err, "Store", "RetrieveResourcesByType", "resource lookup failed")
		}
		r, err := resource.UnmarshalRecord(entry.Value)
		if err != nil {
			s.logger.Warn("skipping corrupt resource record", "key", key, "error", err)
			continue
		}
		if r.Type() == ty {
			out = append(out, r)
		}
	}
	return out, nil
}
