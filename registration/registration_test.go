package registration

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/cse/resource"
)

func newValidator() *Validator {
	// The application config fills CSEID from the CSE identity section.
	cfg := DefaultConfig()
	cfg.CSEID = "id-in"
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), cfg)
}

func aeResource(t *testing.T, attrs map[string]any) *resource.Resource {
	t.Helper()
	all := map[string]any{"ty": int(resource.TypeAE), "ri": "ae1", "rn": "app"}
	for k, v := range attrs {
		all[k] = v
	}
	r, err := resource.FromAttributes(all)
	require.NoError(t, err)
	return r
}

func TestAERegistrationAssignsIdentifier(t *testing.T) {
	v := newValidator()
	ctx := context.Background()

	t.Run("cse-assigned for empty originator", func(t *testing.T) {
		r := aeResource(t, nil)
		status, assigned := v.CheckResourceCreation(ctx, r, "", nil)
		require.Equal(t, resource.StatusOK, status)
		assert.True(t, strings.HasPrefix(assigned, "C"))
		aei, _ := r.Attribute("aei")
		assert.Equal(t, assigned, aei)
	})

	t.Run("cse-assigned for C request", func(t *testing.T) {
		r := aeResource(t, nil)
		status, assigned := v.CheckResourceCreation(ctx, r, "C", nil)
		require.Equal(t, resource.StatusOK, status)
		assert.NotEqual(t, "C", assigned)
		assert.True(t, strings.HasPrefix(assigned, "C"))
	})

	t.Run("self-supplied identifier kept", func(t *testing.T) {
		r := aeResource(t, nil)
		status, assigned := v.CheckResourceCreation(ctx, r, "CMyApp", nil)
		require.Equal(t, resource.StatusOK, status)
		assert.Equal(t, "CMyApp", assigned)
		aei, _ := r.Attribute("aei")
		assert.Equal(t, "CMyApp", aei)
	})
}

func TestAERegistrationRejectsReservedOriginators(t *testing.T) {
	v := newValidator()
	ctx := context.Background()

	for _, originator := range []string{"CAdmin", "none"} {
		status, _ := v.CheckResourceCreation(ctx, aeResource(t, nil), originator, nil)
		assert.Equal(t, resource.StatusAppRuleValidationFailed, status, originator)
	}
}

func TestAERegistrationEnforcesAllowedPatterns(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowedAEOriginators = []string{"Csensor*"}
	v := New(slog.New(slog.NewTextHandler(io.Discard, nil)), cfg)
	ctx := context.Background()

	status, _ := v.CheckResourceCreation(ctx, aeResource(t, nil), "Csensor42", nil)
	assert.Equal(t, resource.StatusOK, status)

	status, _ = v.CheckResourceCreation(ctx, aeResource(t, nil), "Cother", nil)
	assert.Equal(t, resource.StatusAppRuleValidationFailed, status)
}

func TestCSRRegistration(t *testing.T) {
	v := newValidator()
	ctx := context.Background()

	csr := func(attrs map[string]any) *resource.Resource {
		all := map[string]any{"ty": int(resource.TypeCSR), "ri": "csr1", "rn": "remote"}
		for k, v := range attrs {
			all[k] = v
		}
		r, err := resource.FromAttributes(all)
		require.NoError(t, err)
		return r
	}

	t.Run("valid", func(t *testing.T) {
		status, _ := v.CheckResourceCreation(ctx, csr(map[string]any{"csi": "/id-mn"}), "/id-mn", nil)
		assert.Equal(t, resource.StatusOK, status)
	})

	t.Run("missing csi", func(t *testing.T) {
		status, _ := v.CheckResourceCreation(ctx, csr(nil), "/id-mn", nil)
		assert.Equal(t, resource.StatusBadRequest, status)
	})

	t.Run("own identifier rejected", func(t *testing.T) {
		status, _ := v.CheckResourceCreation(ctx, csr(map[string]any{"csi": "/id-in"}), "/id-in", nil)
		assert.Equal(t, resource.StatusBadRequest, status)
	})
}

func TestUpdateKeepsIdentityAttributesImmutable(t *testing.T) {
	v := newValidator()
	ctx := context.Background()

	ae := aeResource(t, map[string]any{"aei": "CMyApp"})
	assert.Equal(t, resource.StatusBadRequest,
		v.CheckResourceUpdate(ctx, ae, map[string]any{"aei": "CEvil"}))
	assert.Equal(t, resource.StatusOK,
		v.CheckResourceUpdate(ctx, ae, map[string]any{"aei": "CMyApp"}),
		"writing the unchanged value passes")
	assert.Equal(t, resource.StatusOK,
		v.CheckResourceUpdate(ctx, ae, map[string]any{"lbl": []any{"x"}}))

	csr, err := resource.FromAttributes(map[string]any{
		"ty": int(resource.TypeCSR), "ri": "csr1", "csi": "/id-mn",
	})
	require.NoError(t, err)
	assert.Equal(t, resource.StatusBadRequest,
		v.CheckResourceUpdate(ctx, csr, map[string]any{"csi": "/id-other"}))
}

func TestDeletionAlwaysAllowed(t *testing.T) {
	v := newValidator()
	assert.Equal(t, resource.StatusOK,
		v.CheckResourceDeletion(context.Background(), aeResource(t, nil)))
}

func TestNonRegistrationTypesPassThrough(t *testing.T) {
	v := newValidator()
	cnt, err := resource.FromAttributes(map[string]any{"ty": int(resource.TypeCNT), "ri": "cnt1"})
	require.NoError(t, err)

	status, assigned := v.CheckResourceCreation(context.Background(), cnt, "CClient", nil)
	assert.Equal(t, resource.StatusOK, status)
	assert.Empty(t, assigned)
}
