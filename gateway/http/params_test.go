package http

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/cse/resource"
)

func TestParseArgumentsDefaults(t *testing.T) {
	args, err := parseArguments(url.Values{})
	require.NoError(t, err)

	assert.Equal(t, resource.FilterUsageNone, args.FilterUsage)
	assert.Equal(t, resource.FilterOperationAND, args.FilterOperation)
	assert.Equal(t, resource.ResultContentAttributes, args.ResultContent)
	assert.Equal(t, resource.IdentifierStructured, args.DesiredIdentifierResultType)
	assert.Equal(t, 1, args.Offset)
	assert.True(t, args.Criteria.IsEmpty())
}

func TestParseArgumentsHandlingDirectives(t *testing.T) {
	args, err := parseArguments(url.Values{
		"fu":   []string{"1"},
		"fo":   []string{"2"},
		"rcn":  []string{"8"},
		"drt":  []string{"2"},
		"lvl":  []string{"3"},
		"ofst": []string{"2"},
		"lim":  []string{"10"},
		"arp":  []string{"la"},
	})
	require.NoError(t, err)

	assert.Equal(t, resource.FilterUsageDiscovery, args.FilterUsage)
	assert.Equal(t, resource.FilterOperationOR, args.FilterOperation)
	assert.Equal(t, resource.ResultContentChildResources, args.ResultContent)
	assert.Equal(t, resource.IdentifierUnstructured, args.DesiredIdentifierResultType)
	assert.Equal(t, 3, args.Level)
	assert.Equal(t, 2, args.Offset)
	assert.Equal(t, 10, args.Limit)
	assert.Equal(t, "la", args.ARP)
}

func TestParseArgumentsFilterCriteria(t *testing.T) {
	args, err := parseArguments(url.Values{
		"ty":  []string{"3", "4"},
		"cty": []string{"text/plain"},
		"lbl": []string{"room1", "room2"},
		"crb": []string{"20240101T000000,000000"},
		"cra": []string{"20230101T000000,000000"},
		"ms":  []string{"20240601T000000,000000"},
		"sts": []string{"5"},
		"stb": []string{"1"},
		"sza": []string{"100"},
		"szb": []string{"10000"},
	})
	require.NoError(t, err)

	assert.Equal(t, []resource.Type{resource.TypeCNT, resource.TypeCIN}, args.Criteria.Types)
	assert.Equal(t, []string{"text/plain"}, args.Criteria.ContentTypes)
	assert.Equal(t, []string{"room1", "room2"}, args.Criteria.Labels)
	assert.Equal(t, "20240101T000000,000000", args.Criteria.CreatedBefore)
	assert.Equal(t, "20230101T000000,000000", args.Criteria.CreatedAfter)
	assert.Equal(t, "20240601T000000,000000", args.Criteria.ModifiedSince)
	assert.Equal(t, "5", args.Criteria.StateTagSmaller)
	assert.Equal(t, "1", args.Criteria.StateTagBigger)
	assert.Equal(t, 100, args.Criteria.SizeAbove)
	assert.Equal(t, 10000, args.Criteria.SizeBelow)
}

func TestParseArgumentsUnknownKeysBecomeAttributeConditions(t *testing.T) {
	args, err := parseArguments(url.Values{
		"rn":  []string{"sensor*"},
		"mni": []string{"30"},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"rn": "sensor*", "mni": "30"}, args.Criteria.Attributes)
}

func TestParseArgumentsRejectsMalformedValues(t *testing.T) {
	cases := []url.Values{
		{"rcn": []string{"abc"}},
		{"lim": []string{"ten"}},
		{"ty": []string{"3", "x"}},
		{"fo": []string{"9"}},
		{"drt": []string{"0"}},
		{"sza": []string{"big"}},
	}
	for _, values := range cases {
		_, err := parseArguments(values)
		assert.Error(t, err, values.Encode())
	}
}
