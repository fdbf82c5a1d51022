package dispatcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/cse/resource"
)

func treeResource(t *testing.T, ty resource.Type, ri, pi, rn string) *resource.Resource {
	t.Helper()
	r, err := resource.FromAttributes(map[string]any{
		"ty": int(ty), "ri": ri, "pi": pi, "rn": rn,
	})
	require.NoError(t, err)
	return r
}

func TestBuildResourceTreeNesting(t *testing.T) {
	d, _ := newTestDispatcher(t)

	// Discovery order: parents precede their own children.
	rs := []*resource.Resource{
		treeResource(t, resource.TypeCNT, "cnt1", "cb0", "data1"),
		treeResource(t, resource.TypeCIN, "cin1", "cnt1", "item1"),
		treeResource(t, resource.TypeCIN, "cin2", "cnt1", "item2"),
		treeResource(t, resource.TypeCNT, "cnt2", "cb0", "data2"),
		treeResource(t, resource.TypeCIN, "cin3", "cnt2", "item3"),
	}

	target := map[string]any{}
	remaining := d.buildResourceTree(rs, target, "cb0")
	assert.Empty(t, remaining, "every resource belongs somewhere in the tree")

	cnts, ok := target["m2m:cnt"].([]any)
	require.True(t, ok)
	require.Len(t, cnts, 2)

	first := cnts[0].(map[string]any)
	assert.Equal(t, "cnt1", first["ri"])
	cins, ok := first["m2m:cin"].([]any)
	require.True(t, ok)
	require.Len(t, cins, 2)
	assert.Equal(t, "cin1", cins[0].(map[string]any)["ri"])

	second := cnts[1].(map[string]any)
	assert.Equal(t, "cnt2", second["ri"])
	assert.Len(t, second["m2m:cin"].([]any), 1)
}

func TestBuildResourceTreeMixedTypeSiblings(t *testing.T) {
	d, _ := newTestDispatcher(t)

	rs := []*resource.Resource{
		treeResource(t, resource.TypeAE, "ae1", "cb0", "app"),
		treeResource(t, resource.TypeCNT, "cnt1", "cb0", "data"),
		treeResource(t, resource.TypeAE, "ae2", "cb0", "app2"),
	}

	target := map[string]any{}
	d.buildResourceTree(rs, target, "cb0")

	// Same-type siblings group under one key, the container keeps its own.
	aes, ok := target["m2m:ae"].([]any)
	require.True(t, ok)
	assert.Len(t, aes, 2)
	assert.Len(t, target["m2m:cnt"].([]any), 1)
}

func TestBuildResourceTreeLeavesForeignResources(t *testing.T) {
	d, _ := newTestDispatcher(t)

	rs := []*resource.Resource{
		treeResource(t, resource.TypeCNT, "cnt1", "cb0", "data1"),
		treeResource(t, resource.TypeCIN, "orphan", "elsewhere", "stray"),
	}

	target := map[string]any{}
	remaining := d.buildResourceTree(rs, target, "cb0")
	require.Len(t, remaining, 1)
	assert.Equal(t, "orphan", remaining[0].RI())
}

func TestSortedBatches(t *testing.T) {
	d, _ := newTestDispatcher(t, func(deps *Dependencies) {
		cfg := testConfig()
		cfg.SortDiscoveredResources = true
		deps.Config = cfg
	})

	rs := []*resource.Resource{
		treeResource(t, resource.TypeCNT, "cnt1", "cb0", "zeta"),
		treeResource(t, resource.TypeCNT, "cnt2", "cb0", "Alpha"),
	}

	target := map[string]any{}
	d.buildResourceTree(rs, target, "cb0")

	cnts := target["m2m:cnt"].([]any)
	require.Len(t, cnts, 2)
	assert.Equal(t, "Alpha", cnts[0].(map[string]any)["rn"],
		"batches sort case-insensitively by name")
	assert.Equal(t, "zeta", cnts[1].(map[string]any)["rn"])
}

func TestResourceTreeReferences(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	cnt := treeResource(t, resource.TypeCNT, "cnt1", "cb0", "data1")
	cnt.SetStructuredPath("cse-in/data1")
	fcnt := treeResource(t, resource.TypeFCNT, "fcnt1", "cb0", "flex1")
	fcnt.SetStructuredPath("cse-in/flex1")
	fcnt.SetAttribute("cnd", "org.example.flex")

	body, err := d.resourceTreeReferences(ctx, []*resource.Resource{cnt, fcnt},
		nil, resource.IdentifierStructured)
	require.NoError(t, err)

	refs, ok := body["m2m:rrl"].([]any)
	require.True(t, ok)
	require.Len(t, refs, 2)

	first := refs[0].(map[string]any)
	assert.Equal(t, "data1", first["nm"])
	assert.Equal(t, int(resource.TypeCNT), first["typ"])
	assert.Equal(t, "cse-in/data1", first["val"])
	assert.NotContains(t, first, "spty")

	second := refs[1].(map[string]any)
	assert.Equal(t, "org.example.flex", second["spty"],
		"flex containers carry their definition as specialization type")
}

func TestResourceTreeReferencesIntoContainer(t *testing.T) {
	d, _ := newTestDispatcher(t)

	cnt := treeResource(t, resource.TypeCNT, "cnt1", "cb0", "data1")
	cnt.SetStructuredPath("cse-in/data1")

	target := map[string]any{"ri": "cb0"}
	body, err := d.resourceTreeReferences(context.Background(),
		[]*resource.Resource{cnt}, target, resource.IdentifierStructured)
	require.NoError(t, err)

	assert.Equal(t, target, body, "references attach to the supplied container")
	refs, ok := target["ch"].([]any)
	require.True(t, ok)
	assert.Len(t, refs, 1)
}

func TestResourcesToURIList(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	cnt := treeResource(t, resource.TypeCNT, "cnt1", "cb0", "data1")
	cnt.SetStructuredPath("cse-in/data1")

	structured, err := d.resourcesToURIList(ctx, []*resource.Resource{cnt},
		resource.IdentifierStructured)
	require.NoError(t, err)
	assert.Equal(t, []string{"cse-in/data1"}, structured["m2m:uril"])

	unstructured, err := d.resourcesToURIList(ctx, []*resource.Resource{cnt},
		resource.IdentifierUnstructured)
	require.NoError(t, err)
	assert.Equal(t, []string{"/id-in/cnt1"}, unstructured["m2m:uril"])
}
