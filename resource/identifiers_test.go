package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitHybrid(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		base   string
		suffix string
	}{
		{"plain ri", "cnt001", "cnt001", ""},
		{"structured no suffix", "cse/ae/cnt", "cse/ae/cnt", ""},
		{"latest suffix", "cse/ae/cnt/la", "cse/ae/cnt", "la"},
		{"oldest suffix", "cse/ae/cnt/ol", "cse/ae/cnt", "ol"},
		{"fanout suffix", "cse/grp/fopt", "cse/grp", "fopt"},
		{"polling suffix", "cse/ae/pcu", "cse/ae", "pcu"},
		{"suffix-like name mid path", "cse/la/cnt", "cse/la/cnt", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, suffix := SplitHybrid(tt.id)
			assert.Equal(t, tt.base, base)
			assert.Equal(t, tt.suffix, suffix)
		})
	}
}

func TestVirtualTypeFor(t *testing.T) {
	assert.Equal(t, TypeCNTLatest, VirtualTypeFor("la", TypeCNT))
	assert.Equal(t, TypeFCNTOldest, VirtualTypeFor("ol", TypeFCNT))
	assert.Equal(t, TypeGRPFanOutPoint, VirtualTypeFor("fopt", TypeGRP))
	assert.Equal(t, TypeMixed, VirtualTypeFor("la", TypeGRP))
	assert.Equal(t, TypeMixed, VirtualTypeFor("xx", TypeCNT))
}

func TestIsReservedName(t *testing.T) {
	for _, name := range []string{"la", "ol", "fopt", "pcu"} {
		assert.True(t, IsReservedName(name), name)
	}
	assert.False(t, IsReservedName("latest"))
	assert.False(t, IsReservedName("data"))
}

func TestIsStructured(t *testing.T) {
	assert.True(t, IsStructured("cse/ae"))
	assert.False(t, IsStructured("ae001"))
}

func TestUniqueIdentifiers(t *testing.T) {
	ri1 := UniqueRI(TypeCNT)
	ri2 := UniqueRI(TypeCNT)
	assert.NotEqual(t, ri1, ri2)
	assert.Contains(t, ri1, "cnt")

	aei := UniqueAEI()
	assert.Equal(t, byte('C'), aei[0])
	assert.Len(t, aei, 13)
}

func TestChildPath(t *testing.T) {
	assert.Equal(t, "cse/ae", ChildPath("cse", "ae"))
	assert.Equal(t, "ae", ChildPath("", "ae"))
}

func TestConditionCount(t *testing.T) {
	fc := FilterCriteria{}
	assert.True(t, fc.IsEmpty())

	fc = FilterCriteria{
		Types:        []Type{TypeCNT, TypeCIN, TypeSUB},
		CreatedAfter: "20240101T000000,000000",
		Attributes:   map[string]string{"rn": "a*"},
		SizeAbove:    10,
		Labels:       []string{"x", "y"},
	}
	// 3 (ty cardinality) + 1 (cra) + 1 (attribute) + 1 (sza) + 2 (lbl cardinality)
	assert.Equal(t, 8, fc.ConditionCount())
	assert.False(t, fc.IsEmpty())
}
