package dispatcher

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/cse/resource"
	"github.com/c360/cse/storage/memstore"
)

// --- test collaborators ---

type allowAllAccess struct{}

func (allowAllAccess) HasAccess(ctx context.Context, originator string, r *resource.Resource,
	permission resource.Permission, check AccessCheck) bool {
	return true
}

// denyRIAccess denies every permission on the listed resource identifiers.
type denyRIAccess struct {
	denied map[string]bool
}

func (a denyRIAccess) HasAccess(ctx context.Context, originator string, r *resource.Resource,
	permission resource.Permission, check AccessCheck) bool {
	return !a.denied[r.RI()]
}

type accessCall struct {
	originator string
	ri         string
	permission resource.Permission
	check      AccessCheck
}

// recordingAccess grants everything and records every decision it was asked
// for.
type recordingAccess struct {
	calls []accessCall
}

func (a *recordingAccess) HasAccess(ctx context.Context, originator string, r *resource.Resource,
	permission resource.Permission, check AccessCheck) bool {
	a.calls = append(a.calls, accessCall{
		originator: originator,
		ri:         r.RI(),
		permission: permission,
		check:      check,
	})
	return true
}

type okRegistration struct{}

func (okRegistration) CheckResourceCreation(ctx context.Context, r *resource.Resource,
	originator string, parent *resource.Resource) (resource.StatusCode, string) {
	return resource.StatusOK, ""
}

func (okRegistration) CheckResourceUpdate(ctx context.Context, r *resource.Resource,
	update map[string]any) resource.StatusCode {
	return resource.StatusOK
}

func (okRegistration) CheckResourceDeletion(ctx context.Context, r *resource.Resource) resource.StatusCode {
	return resource.StatusOK
}

// recordingRegistration passes everything through and records the deletions it
// was asked to validate.
type recordingRegistration struct {
	deletions []string
}

func (v *recordingRegistration) CheckResourceCreation(ctx context.Context, r *resource.Resource,
	originator string, parent *resource.Resource) (resource.StatusCode, string) {
	return resource.StatusOK, ""
}

func (v *recordingRegistration) CheckResourceUpdate(ctx context.Context, r *resource.Resource,
	update map[string]any) resource.StatusCode {
	return resource.StatusOK
}

func (v *recordingRegistration) CheckResourceDeletion(ctx context.Context, r *resource.Resource) resource.StatusCode {
	v.deletions = append(v.deletions, r.RI())
	return resource.StatusOK
}

type recordingNotifier struct {
	created []string
	updated []string
	deleted []string
}

func (n *recordingNotifier) ResourceCreated(r *resource.Resource) { n.created = append(n.created, r.RI()) }
func (n *recordingNotifier) ResourceUpdated(r *resource.Resource) { n.updated = append(n.updated, r.RI()) }
func (n *recordingNotifier) ResourceDeleted(r *resource.Resource) { n.deleted = append(n.deleted, r.RI()) }

// --- fixtures ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		CSEID:           "id-in",
		CSEResourceID:   "cb0",
		CSEResourceName: "cse-in",
	}
}

// newTestDispatcher builds a dispatcher over a fresh in-memory store seeded
// with the base resource.
func newTestDispatcher(t *testing.T, mutate ...func(*Dependencies)) (*Dispatcher, *memstore.Store) {
	t.Helper()

	store := memstore.New()
	base := resource.New(resource.TypeCSEBase, "cse-in")
	base.SetRI("cb0")
	base.SetPI("")
	base.SetAttribute("csi", "/id-in")
	base.Stamp(0)
	base.SetStructuredPath("cse-in")
	require.NoError(t, store.CreateResource(context.Background(), base, false))

	deps := Dependencies{
		Store:        store,
		Security:     allowAllAccess{},
		Registration: okRegistration{},
		Logger:       testLogger(),
		Config:       testConfig(),
	}
	for _, f := range mutate {
		f(&deps)
	}

	d, err := New(deps)
	require.NoError(t, err)
	return d, store
}

// seed writes a resource directly into the store, bypassing the dispatcher.
// The last path segment of srn becomes the resource name.
func seed(t *testing.T, store *memstore.Store, ty resource.Type, ri, pi, srn string,
	attrs map[string]any) *resource.Resource {
	t.Helper()

	all := map[string]any{
		"ty": int(ty),
		"ri": ri,
		"pi": pi,
		"ct": "20240101T000000,000000",
		"lt": "20240101T000000,000000",
	}
	for k, v := range attrs {
		all[k] = v
	}
	if _, ok := all["rn"]; !ok {
		rn := srn
		if idx := len(srn) - 1; idx >= 0 {
			for i := idx; i >= 0; i-- {
				if srn[i] == '/' {
					rn = srn[i+1:]
					break
				}
			}
		}
		all["rn"] = rn
	}

	r, err := resource.FromAttributes(all)
	require.NoError(t, err)
	r.SetStructuredPath(srn)
	require.NoError(t, store.CreateResource(context.Background(), r, false))
	return r
}

func createReq(ty resource.Type, body map[string]any) *resource.Request {
	return &resource.Request{Content: body, Type: ty, Args: resource.NewArguments()}
}

func retrieveReq(target string) *resource.Request {
	return &resource.Request{ID: target, Args: resource.NewArguments()}
}

// --- create ---

func TestCreateContainerInitialisesCounters(t *testing.T) {
	d, store := newTestDispatcher(t)
	ctx := context.Background()

	req := createReq(resource.TypeCNT, map[string]any{
		"m2m:cnt": map[string]any{"rn": "sensor"},
	})
	result := d.ProcessCreateRequest(ctx, req, "CClient", "cse-in")

	require.Equal(t, resource.StatusCreated, result.Status, result.Debug)
	require.NotNil(t, result.Resource)
	r := result.Resource
	assert.Equal(t, "cb0", r.PI())
	assert.Equal(t, "sensor", r.Name())
	assert.Equal(t, "cse-in/sensor", r.StructuredPath())
	assert.NotEmpty(t, r.CreationTime())
	assert.Equal(t, 0, intAttr(r, "cni"))
	assert.Equal(t, 0, intAttr(r, "cbs"))
	assert.Equal(t, "0", r.StateTag())

	stored, err := store.RetrieveResource(ctx, "cse-in/sensor")
	require.NoError(t, err)
	assert.Equal(t, r.RI(), stored.RI())
}

func TestCreateInstanceUpdatesParentBookkeeping(t *testing.T) {
	d, store := newTestDispatcher(t)
	ctx := context.Background()

	cnt := d.ProcessCreateRequest(ctx, createReq(resource.TypeCNT, map[string]any{
		"m2m:cnt": map[string]any{"rn": "sensor"},
	}), "CClient", "cse-in")
	require.Equal(t, resource.StatusCreated, cnt.Status)

	cin := d.ProcessCreateRequest(ctx, createReq(resource.TypeCIN, map[string]any{
		"m2m:cin": map[string]any{"rn": "item", "con": "hello", "cnf": "text/plain"},
	}), "CClient", "cse-in/sensor")
	require.Equal(t, resource.StatusCreated, cin.Status, cin.Debug)
	assert.Equal(t, 5, cin.Resource.ContentSize())
	assert.Equal(t, "1", cin.Resource.StateTag())

	parent, err := store.RetrieveResource(ctx, "cse-in/sensor")
	require.NoError(t, err)
	assert.Equal(t, 1, intAttr(parent, "cni"))
	assert.Equal(t, 5, intAttr(parent, "cbs"))
	assert.Equal(t, "1", parent.StateTag())

	del := d.ProcessDeleteRequest(ctx, retrieveReq("cse-in/sensor/item"), "CClient", "")
	require.Equal(t, resource.StatusDeleted, del.Status, del.Debug)

	parent, err = store.RetrieveResource(ctx, "cse-in/sensor")
	require.NoError(t, err)
	assert.Equal(t, 0, intAttr(parent, "cni"))
	assert.Equal(t, 0, intAttr(parent, "cbs"))
	assert.Equal(t, "2", parent.StateTag())
}

func TestCreateDuplicateNameConflicts(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	body := map[string]any{"m2m:cnt": map[string]any{"rn": "sensor"}}
	first := d.ProcessCreateRequest(ctx, createReq(resource.TypeCNT, body), "CClient", "cse-in")
	require.Equal(t, resource.StatusCreated, first.Status)

	second := d.ProcessCreateRequest(ctx, createReq(resource.TypeCNT, body), "CClient", "cse-in")
	assert.Equal(t, resource.StatusConflict, second.Status)
}

func TestCreateInvalidChildType(t *testing.T) {
	d, store := newTestDispatcher(t)
	ctx := context.Background()
	seed(t, store, resource.TypeAE, "ae1", "cb0", "cse-in/app", map[string]any{
		"api": "Napp", "aei": "CClient",
	})

	result := d.ProcessCreateRequest(ctx, createReq(resource.TypeCIN, map[string]any{
		"m2m:cin": map[string]any{"con": "x"},
	}), "CClient", "cse-in/app")

	assert.Equal(t, resource.StatusInvalidChildResourceType, result.Status)
}

func TestCreateSubscriptionUnderInstance(t *testing.T) {
	d, store := newTestDispatcher(t)
	ctx := context.Background()
	seed(t, store, resource.TypeCNT, "cnt1", "cb0", "cse-in/sensor", nil)
	seed(t, store, resource.TypeCIN, "cin1", "cnt1", "cse-in/sensor/item", map[string]any{"con": "x", "cs": 1})

	result := d.ProcessCreateRequest(ctx, createReq(resource.TypeSUB, map[string]any{
		"m2m:sub": map[string]any{"nu": []any{"http://client/notify"}},
	}), "CClient", "cse-in/sensor/item")

	assert.Equal(t, resource.StatusTargetNotSubscribable, result.Status)
}

func TestCreateForbiddenTypes(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	for _, ty := range []resource.Type{resource.TypeCSEBase, resource.TypeREQ} {
		result := d.ProcessCreateRequest(ctx, createReq(ty, map[string]any{
			"rn": "x",
		}), "CClient", "cse-in")
		assert.Equal(t, resource.StatusOperationNotAllowed, result.Status, ty.String())
	}
}

func TestCreateReservedNames(t *testing.T) {
	d, store := newTestDispatcher(t)
	ctx := context.Background()
	seed(t, store, resource.TypeCNT, "cnt1", "cb0", "cse-in/sensor", nil)
	seed(t, store, resource.TypeGRP, "grp1", "cb0", "cse-in/devices", map[string]any{
		"mid": []any{"cnt1"}, "cnm": 1, "mnm": 10,
	})

	for _, rn := range []string{"la", "ol"} {
		result := d.ProcessCreateRequest(ctx, createReq(resource.TypeCNT, map[string]any{
			"m2m:cnt": map[string]any{"rn": rn},
		}), "CClient", "cse-in/sensor")
		assert.Equal(t, resource.StatusOperationNotAllowed, result.Status, rn)
	}

	result := d.ProcessCreateRequest(ctx, createReq(resource.TypeSUB, map[string]any{
		"m2m:sub": map[string]any{"rn": "fopt", "nu": []any{"http://client"}},
	}), "CClient", "cse-in/devices")
	assert.Equal(t, resource.StatusOperationNotAllowed, result.Status)

	// The names are reserved even under parents without that virtual child;
	// a container named fopt could never be addressed again.
	seed(t, store, resource.TypeAE, "ae1", "cb0", "cse-in/app", map[string]any{"aei": "CClient"})
	for _, rn := range []string{"fopt", "pcu"} {
		result := d.ProcessCreateRequest(ctx, createReq(resource.TypeCNT, map[string]any{
			"m2m:cnt": map[string]any{"rn": rn},
		}), "CClient", "cse-in/app")
		assert.Equal(t, resource.StatusOperationNotAllowed, result.Status, rn)
	}
}

func TestCreateRollsBackOnActivationFailure(t *testing.T) {
	reg := &recordingRegistration{}
	d, store := newTestDispatcher(t, func(deps *Dependencies) {
		deps.Registration = reg
	})
	ctx := context.Background()

	// A group whose member list exceeds its own maximum fails activation
	// after the resource has been persisted.
	result := d.ProcessCreateRequest(ctx, createReq(resource.TypeGRP, map[string]any{
		"m2m:grp": map[string]any{"rn": "devices", "mnm": 1, "mid": []any{"a", "b"}},
	}), "CClient", "cse-in")

	assert.Equal(t, resource.StatusBadRequest, result.Status)

	leftover, err := store.RetrieveResourcesByType(ctx, resource.TypeGRP)
	require.NoError(t, err)
	assert.Empty(t, leftover, "persisted resource must be rolled back")
	assert.Len(t, reg.deletions, 1, "registration must be reversed")
}

func TestCreateMinimalAERegistration(t *testing.T) {
	d, store := newTestDispatcher(t)
	ctx := context.Background()

	// An AE body carrying nothing but a name is acceptable; activation fills
	// the registration attributes instead of rejecting the content.
	result := d.ProcessCreateRequest(ctx, createReq(resource.TypeAE, map[string]any{
		"m2m:ae": map[string]any{"rn": "myApp"},
	}), "Cnew", "cse-in")

	require.Equal(t, resource.StatusCreated, result.Status, result.Debug)
	require.NotNil(t, result.Resource)
	assert.Equal(t, "cb0", result.Resource.PI())
	aei, ok := result.Resource.Attribute("aei")
	require.True(t, ok)
	assert.Equal(t, "Cnew", aei)

	stored, err := store.RetrieveResource(ctx, "cse-in/myApp")
	require.NoError(t, err)
	assert.Equal(t, result.Resource.RI(), stored.RI())
}

func TestCreateMissingContent(t *testing.T) {
	d, _ := newTestDispatcher(t)

	result := d.ProcessCreateRequest(context.Background(),
		createReq(resource.TypeCNT, nil), "CClient", "cse-in")
	assert.Equal(t, resource.StatusBadRequest, result.Status)
}

func TestCreateAEDenialStatus(t *testing.T) {
	d, _ := newTestDispatcher(t, func(deps *Dependencies) {
		deps.Security = denyRIAccess{denied: map[string]bool{"cb0": true}}
	})
	ctx := context.Background()

	ae := d.ProcessCreateRequest(ctx, createReq(resource.TypeAE, map[string]any{
		"m2m:ae": map[string]any{"rn": "app", "api": "Napp"},
	}), "CClient", "cse-in")
	assert.Equal(t, resource.StatusSecurityAssociationRequired, ae.Status)

	cnt := d.ProcessCreateRequest(ctx, createReq(resource.TypeCNT, map[string]any{
		"m2m:cnt": map[string]any{"rn": "sensor"},
	}), "CClient", "cse-in")
	assert.Equal(t, resource.StatusOriginatorHasNoPrivilege, cnt.Status)
}

func TestCreateResultShapes(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	t.Run("hierarchical address", func(t *testing.T) {
		req := createReq(resource.TypeCNT, map[string]any{"m2m:cnt": map[string]any{"rn": "c1"}})
		req.Args.ResultContent = resource.ResultContentHierarchicalAddress
		result := d.ProcessCreateRequest(ctx, req, "CClient", "cse-in")
		require.Equal(t, resource.StatusCreated, result.Status)
		assert.Equal(t, "cse-in/c1", result.Body["m2m:uri"])
	})

	t.Run("nothing", func(t *testing.T) {
		req := createReq(resource.TypeCNT, map[string]any{"m2m:cnt": map[string]any{"rn": "c2"}})
		req.Args.ResultContent = resource.ResultContentNothing
		result := d.ProcessCreateRequest(ctx, req, "CClient", "cse-in")
		require.Equal(t, resource.StatusCreated, result.Status)
		assert.Nil(t, result.Resource)
		assert.Nil(t, result.Body)
	})

	t.Run("modified attributes", func(t *testing.T) {
		req := createReq(resource.TypeCNT, map[string]any{"m2m:cnt": map[string]any{
			"rn": "c3", "lbl": []any{"x"},
		}})
		req.Args.ResultContent = resource.ResultContentModifiedAttributes
		result := d.ProcessCreateRequest(ctx, req, "CClient", "cse-in")
		require.Equal(t, resource.StatusCreated, result.Status)
		diff, ok := result.Body["m2m:cnt"].(map[string]any)
		require.True(t, ok)
		assert.Contains(t, diff, "ri")
		assert.Contains(t, diff, "ct")
		assert.NotContains(t, diff, "lbl", "submitted attributes are not echoed")
	})
}

// --- retrieve ---

func TestRetrieveAttributes(t *testing.T) {
	d, store := newTestDispatcher(t)
	ctx := context.Background()
	seed(t, store, resource.TypeCNT, "cnt1", "cb0", "cse-in/sensor", nil)

	result := d.ProcessRetrieveRequest(ctx, retrieveReq("cse-in/sensor"), "CClient", "")
	require.Equal(t, resource.StatusOK, result.Status, result.Debug)
	assert.Equal(t, "cnt1", result.Resource.RI())

	byRI := d.ProcessRetrieveRequest(ctx, retrieveReq("cnt1"), "CClient", "")
	require.Equal(t, resource.StatusOK, byRI.Status)
	assert.Equal(t, "cnt1", byRI.Resource.RI())
}

func TestRetrieveMissing(t *testing.T) {
	d, _ := newTestDispatcher(t)

	result := d.ProcessRetrieveRequest(context.Background(), retrieveReq("cse-in/nope"), "CClient", "")
	assert.Equal(t, resource.StatusNotFound, result.Status)
}

func TestRetrieveModeValidationPrecedesStorage(t *testing.T) {
	d, _ := newTestDispatcher(t)

	// An illegal resultContent/filterUsage combination fails before the target
	// is even looked up; a missing target must still yield 4000, not 4004.
	req := retrieveReq("cse-in/nope")
	req.Args.FilterUsage = resource.FilterUsageDiscovery
	req.Args.ResultContent = resource.ResultContentAttributes

	result := d.ProcessRetrieveRequest(context.Background(), req, "CClient", "")
	assert.Equal(t, resource.StatusBadRequest, result.Status)
}

func TestRetrieveDenied(t *testing.T) {
	d, store := newTestDispatcher(t, func(deps *Dependencies) {
		deps.Security = denyRIAccess{denied: map[string]bool{"cnt1": true}}
	})
	seed(t, store, resource.TypeCNT, "cnt1", "cb0", "cse-in/sensor", nil)

	result := d.ProcessRetrieveRequest(context.Background(), retrieveReq("cse-in/sensor"), "CClient", "")
	assert.Equal(t, resource.StatusOriginatorHasNoPrivilege, result.Status)
}

// --- virtual resources ---

func TestLatestOldestRetrieve(t *testing.T) {
	d, store := newTestDispatcher(t)
	ctx := context.Background()
	seed(t, store, resource.TypeCNT, "cnt1", "cb0", "cse-in/sensor", map[string]any{
		"cni": 2, "cbs": 11, "st": 2,
	})
	seed(t, store, resource.TypeCIN, "cin1", "cnt1", "cse-in/sensor/first", map[string]any{
		"con": "hello", "cs": 5, "ct": "20240101T000000,000000",
	})
	seed(t, store, resource.TypeCIN, "cin2", "cnt1", "cse-in/sensor/second", map[string]any{
		"con": "world!", "cs": 6, "ct": "20240102T000000,000000",
	})

	latest := d.ProcessRetrieveRequest(ctx, retrieveReq("cse-in/sensor/la"), "CClient", "")
	require.Equal(t, resource.StatusOK, latest.Status, latest.Debug)
	assert.Equal(t, "cin2", latest.Resource.RI())

	oldest := d.ProcessRetrieveRequest(ctx, retrieveReq("cse-in/sensor/ol"), "CClient", "")
	require.Equal(t, resource.StatusOK, oldest.Status)
	assert.Equal(t, "cin1", oldest.Resource.RI())
}

func TestLatestDeleteUpdatesParent(t *testing.T) {
	d, store := newTestDispatcher(t)
	ctx := context.Background()
	seed(t, store, resource.TypeCNT, "cnt1", "cb0", "cse-in/sensor", map[string]any{
		"cni": 2, "cbs": 11, "st": 2,
	})
	seed(t, store, resource.TypeCIN, "cin1", "cnt1", "cse-in/sensor/first", map[string]any{
		"con": "hello", "cs": 5, "ct": "20240101T000000,000000",
	})
	seed(t, store, resource.TypeCIN, "cin2", "cnt1", "cse-in/sensor/second", map[string]any{
		"con": "world!", "cs": 6, "ct": "20240102T000000,000000",
	})

	result := d.ProcessDeleteRequest(ctx, retrieveReq("cse-in/sensor/la"), "CClient", "")
	require.Equal(t, resource.StatusDeleted, result.Status, result.Debug)

	_, err := store.RetrieveResource(ctx, "cin2")
	assert.Error(t, err)

	parent, err := store.RetrieveResource(ctx, "cnt1")
	require.NoError(t, err)
	assert.Equal(t, 1, intAttr(parent, "cni"))
	assert.Equal(t, 5, intAttr(parent, "cbs"))
	assert.Equal(t, "3", parent.StateTag())
}

func TestLatestEmptyContainer(t *testing.T) {
	d, store := newTestDispatcher(t)
	seed(t, store, resource.TypeCNT, "cnt1", "cb0", "cse-in/sensor", nil)

	result := d.ProcessRetrieveRequest(context.Background(), retrieveReq("cse-in/sensor/la"), "CClient", "")
	assert.Equal(t, resource.StatusNotFound, result.Status)
}

func TestVirtualSuffixOnWrongParent(t *testing.T) {
	d, store := newTestDispatcher(t)
	seed(t, store, resource.TypeAE, "ae1", "cb0", "cse-in/app", map[string]any{"api": "Napp"})

	result := d.ProcessRetrieveRequest(context.Background(), retrieveReq("cse-in/app/la"), "CClient", "")
	assert.Equal(t, resource.StatusBadRequest, result.Status)
}

func TestVirtualCreateAndUpdateForbidden(t *testing.T) {
	d, store := newTestDispatcher(t)
	ctx := context.Background()
	seed(t, store, resource.TypeCNT, "cnt1", "cb0", "cse-in/sensor", nil)

	create := d.ProcessCreateRequest(ctx, createReq(resource.TypeCIN, map[string]any{
		"m2m:cin": map[string]any{"con": "x"},
	}), "CClient", "cse-in/sensor/la")
	assert.Equal(t, resource.StatusOperationNotAllowed, create.Status)

	update := &resource.Request{ID: "cse-in/sensor/la", Content: map[string]any{
		"m2m:cin": map[string]any{"lbl": []any{"x"}},
	}, Args: resource.NewArguments()}
	result := d.ProcessUpdateRequest(ctx, update, "CClient", "")
	assert.Equal(t, resource.StatusOperationNotAllowed, result.Status)
}

func TestFanOutRetrieve(t *testing.T) {
	d, store := newTestDispatcher(t)
	ctx := context.Background()
	seed(t, store, resource.TypeCNT, "cnt1", "cb0", "cse-in/sensor", nil)
	seed(t, store, resource.TypeGRP, "grp1", "cb0", "cse-in/devices", map[string]any{
		"mid": []any{"cnt1", "missing"}, "cnm": 2, "mnm": 10,
	})

	result := d.ProcessRetrieveRequest(ctx, retrieveReq("cse-in/devices/fopt"), "CClient", "")
	require.Equal(t, resource.StatusOK, result.Status, result.Debug)

	agr, ok := result.Body["m2m:agr"].(map[string]any)
	require.True(t, ok)
	responses, ok := agr["m2m:rsp"].([]any)
	require.True(t, ok)
	require.Len(t, responses, 2)

	first := responses[0].(map[string]any)
	assert.Equal(t, int(resource.StatusOK), first["rsc"])
	assert.Equal(t, "cnt1", first["to"])
	assert.Contains(t, first["pc"].(map[string]any), "m2m:cnt")

	second := responses[1].(map[string]any)
	assert.Equal(t, int(resource.StatusNotFound), second["rsc"])
	assert.Equal(t, "missing", second["to"])
}

func TestFanOutEmptyGroup(t *testing.T) {
	d, store := newTestDispatcher(t)
	seed(t, store, resource.TypeGRP, "grp1", "cb0", "cse-in/devices", map[string]any{
		"cnm": 0, "mnm": 10,
	})

	result := d.ProcessRetrieveRequest(context.Background(), retrieveReq("cse-in/devices/fopt"), "CClient", "")
	assert.Equal(t, resource.StatusNotFound, result.Status)
}

// --- update ---

func TestUpdateResource(t *testing.T) {
	notif := &recordingNotifier{}
	d, store := newTestDispatcher(t, func(deps *Dependencies) {
		deps.Notifier = notif
	})
	ctx := context.Background()
	seed(t, store, resource.TypeCNT, "cnt1", "cb0", "cse-in/sensor", nil)

	req := &resource.Request{ID: "cse-in/sensor", Content: map[string]any{
		"m2m:cnt": map[string]any{"lbl": []any{"room1"}},
	}, Args: resource.NewArguments()}

	result := d.ProcessUpdateRequest(ctx, req, "CClient", "")
	require.Equal(t, resource.StatusUpdated, result.Status, result.Debug)
	assert.Equal(t, []string{"room1"}, result.Resource.Labels())

	stored, err := store.RetrieveResource(ctx, "cnt1")
	require.NoError(t, err)
	assert.Equal(t, []string{"room1"}, stored.Labels())
	assert.NotEqual(t, "20240101T000000,000000", stored.LastModified())
	assert.Equal(t, []string{"cnt1"}, notif.updated)
}

func TestUpdateModifiedAttributesShape(t *testing.T) {
	d, store := newTestDispatcher(t)
	seed(t, store, resource.TypeCNT, "cnt1", "cb0", "cse-in/sensor", nil)

	req := &resource.Request{ID: "cse-in/sensor", Content: map[string]any{
		"m2m:cnt": map[string]any{"lbl": []any{"room1"}},
	}, Args: resource.NewArguments()}
	req.Args.ResultContent = resource.ResultContentModifiedAttributes

	result := d.ProcessUpdateRequest(context.Background(), req, "CClient", "")
	require.Equal(t, resource.StatusUpdated, result.Status)

	diff, ok := result.Body["m2m:cnt"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, diff, "lbl")
	assert.Contains(t, diff, "lt")
	assert.NotContains(t, diff, "ri")
}

func TestUpdateReadOnlyResource(t *testing.T) {
	d, store := newTestDispatcher(t)
	seed(t, store, resource.TypeCNT, "cnt1", "cb0", "cse-in/sensor", nil)
	seed(t, store, resource.TypeCIN, "cin1", "cnt1", "cse-in/sensor/item", map[string]any{"con": "x", "cs": 1})

	req := &resource.Request{ID: "cse-in/sensor/item", Content: map[string]any{
		"m2m:cin": map[string]any{"con": "y"},
	}, Args: resource.NewArguments()}

	result := d.ProcessUpdateRequest(context.Background(), req, "CClient", "")
	assert.Equal(t, resource.StatusOperationNotAllowed, result.Status)
}

func TestUpdateACPIRequiresSelfPrivileges(t *testing.T) {
	access := &recordingAccess{}
	d, store := newTestDispatcher(t, func(deps *Dependencies) {
		deps.Security = access
	})
	ctx := context.Background()
	seed(t, store, resource.TypeCNT, "cnt1", "cb0", "cse-in/sensor", map[string]any{
		"acpi": []any{"acp1"},
	})

	assign := &resource.Request{ID: "cse-in/sensor", Content: map[string]any{
		"m2m:cnt": map[string]any{"acpi": []any{"acp2"}},
	}, Args: resource.NewArguments()}
	result := d.ProcessUpdateRequest(ctx, assign, "CClient", "")
	require.Equal(t, resource.StatusUpdated, result.Status)

	last := access.calls[len(access.calls)-1]
	assert.True(t, last.check.CheckSelf)
	assert.Equal(t, resource.PermissionUpdate, last.permission)

	clear := &resource.Request{ID: "cse-in/sensor", Content: map[string]any{
		"m2m:cnt": map[string]any{"acpi": nil},
	}, Args: resource.NewArguments()}
	result = d.ProcessUpdateRequest(ctx, clear, "CClient", "")
	require.Equal(t, resource.StatusUpdated, result.Status)

	last = access.calls[len(access.calls)-1]
	assert.True(t, last.check.CheckSelf)
	assert.Equal(t, resource.PermissionDelete, last.permission,
		"clearing acpi takes the delete self-privilege")

	stored, err := store.RetrieveResource(ctx, "cnt1")
	require.NoError(t, err)
	_, present := stored.Attribute("acpi")
	assert.False(t, present)
}

func TestUpdateIgnoresIdentityAttributes(t *testing.T) {
	d, store := newTestDispatcher(t)
	seed(t, store, resource.TypeCNT, "cnt1", "cb0", "cse-in/sensor", nil)

	req := &resource.Request{ID: "cse-in/sensor", Content: map[string]any{
		"m2m:cnt": map[string]any{"ri": "evil", "rn": "other", "lbl": []any{"x"}},
	}, Args: resource.NewArguments()}

	result := d.ProcessUpdateRequest(context.Background(), req, "CClient", "")
	require.Equal(t, resource.StatusUpdated, result.Status)
	assert.Equal(t, "cnt1", result.Resource.RI())
	assert.Equal(t, "sensor", result.Resource.Name())
	assert.Equal(t, []string{"x"}, result.Resource.Labels())
}

// --- delete ---

func TestDeleteBaseResourceForbidden(t *testing.T) {
	d, _ := newTestDispatcher(t)

	result := d.ProcessDeleteRequest(context.Background(), retrieveReq("cse-in"), "CAdmin", "")
	assert.Equal(t, resource.StatusOperationNotAllowed, result.Status)
}

func TestDeleteRemovesSubtree(t *testing.T) {
	notif := &recordingNotifier{}
	d, store := newTestDispatcher(t, func(deps *Dependencies) {
		deps.Notifier = notif
	})
	ctx := context.Background()
	seed(t, store, resource.TypeCNT, "cnt1", "cb0", "cse-in/sensor", nil)
	seed(t, store, resource.TypeCIN, "cin1", "cnt1", "cse-in/sensor/item", map[string]any{"con": "x", "cs": 1})

	result := d.ProcessDeleteRequest(ctx, retrieveReq("cse-in/sensor"), "CClient", "")
	require.Equal(t, resource.StatusDeleted, result.Status, result.Debug)
	require.NotNil(t, result.Resource)
	assert.Equal(t, "cnt1", result.Resource.RI())

	for _, id := range []string{"cnt1", "cin1", "cse-in/sensor"} {
		_, err := store.RetrieveResource(ctx, id)
		assert.Error(t, err, id)
	}
	assert.Equal(t, []string{"cnt1"}, notif.deleted)
}

func TestDeleteShapesChildTreeBeforeRemoval(t *testing.T) {
	d, store := newTestDispatcher(t)
	ctx := context.Background()
	seed(t, store, resource.TypeCNT, "cnt1", "cb0", "cse-in/sensor", nil)
	seed(t, store, resource.TypeCIN, "cin1", "cnt1", "cse-in/sensor/item", map[string]any{"con": "x", "cs": 1})

	req := retrieveReq("cse-in/sensor")
	req.Args.ResultContent = resource.ResultContentAttributesAndChildResources

	result := d.ProcessDeleteRequest(ctx, req, "CClient", "")
	require.Equal(t, resource.StatusDeleted, result.Status, result.Debug)
	require.NotNil(t, result.Resource)

	children, ok := result.Resource.Attributes()["m2m:cin"].([]any)
	require.True(t, ok, "deleted subtree must be embedded in the response")
	assert.Len(t, children, 1)

	_, err := store.RetrieveResource(ctx, "cnt1")
	assert.Error(t, err)
}

func TestDeleteDenied(t *testing.T) {
	d, store := newTestDispatcher(t, func(deps *Dependencies) {
		deps.Security = denyRIAccess{denied: map[string]bool{"cnt1": true}}
	})
	ctx := context.Background()
	seed(t, store, resource.TypeCNT, "cnt1", "cb0", "cse-in/sensor", nil)

	result := d.ProcessDeleteRequest(ctx, retrieveReq("cse-in/sensor"), "CClient", "")
	assert.Equal(t, resource.StatusOriginatorHasNoPrivilege, result.Status)

	_, err := store.RetrieveResource(ctx, "cnt1")
	assert.NoError(t, err, "denied delete must not remove the resource")
}

func TestDeleteInvalidResultContent(t *testing.T) {
	d, store := newTestDispatcher(t)
	seed(t, store, resource.TypeCNT, "cnt1", "cb0", "cse-in/sensor", nil)

	req := retrieveReq("cse-in/sensor")
	req.Args.ResultContent = resource.ResultContentModifiedAttributes

	result := d.ProcessDeleteRequest(context.Background(), req, "CClient", "")
	assert.Equal(t, resource.StatusBadRequest, result.Status)
}

// --- expiration sweep ---

func TestSweepExpired(t *testing.T) {
	d, store := newTestDispatcher(t)
	ctx := context.Background()
	seed(t, store, resource.TypeCNT, "cnt1", "cb0", "cse-in/sensor", nil)
	seed(t, store, resource.TypeCIN, "cin1", "cnt1", "cse-in/sensor/old", map[string]any{
		"con": "x", "cs": 1, "et": "20200101T000000,000000",
	})
	seed(t, store, resource.TypeCIN, "cin2", "cnt1", "cse-in/sensor/new", map[string]any{
		"con": "y", "cs": 1, "et": "20990101T000000,000000",
	})

	removed, err := d.SweepExpired(ctx, "CAdmin")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.RetrieveResource(ctx, "cin1")
	assert.Error(t, err)
	_, err = store.RetrieveResource(ctx, "cin2")
	assert.NoError(t, err)
}

func TestNewRequiresCollaborators(t *testing.T) {
	store := memstore.New()

	_, err := New(Dependencies{Security: allowAllAccess{}, Registration: okRegistration{}, Logger: testLogger()})
	assert.Error(t, err)

	_, err = New(Dependencies{Store: store, Registration: okRegistration{}, Logger: testLogger()})
	assert.Error(t, err)

	_, err = New(Dependencies{Store: store, Security: allowAllAccess{}, Logger: testLogger()})
	assert.Error(t, err)

	_, err = New(Dependencies{Store: store, Security: allowAllAccess{}, Registration: okRegistration{}})
	assert.Error(t, err)
}
