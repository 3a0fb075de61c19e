package citation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAncestors(t *testing.T) {
	tests := []struct {
		id   string
		want []string
	}{
		{"art(1)", []string{"art(1)"}},
		{"art(1)§(2)", []string{"art(1)", "art(1)§(2)"}},
		{"art(1)§(2)pkt(3)", []string{"art(1)", "art(1)§(2)", "art(1)§(2)pkt(3)"}},
		{"art(1(a))ust(2)", []string{"art(1(a))", "art(1(a))ust(2)"}},
		{"preamble", nil},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := Ancestors(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAncestorsUnmatched(t *testing.T) {
	t.Run("closing", func(t *testing.T) {
		got, err := Ancestors("art(1))ust(2)")
		var nestErr *NestingError
		require.True(t, errors.As(err, &nestErr))
		assert.Equal(t, "unmatched closing", nestErr.Kind)
		assert.Equal(t, 6, nestErr.Pos)
		assert.Equal(t, []string{"art(1)", "art(1))ust(2)"}, got)
	})

	t.Run("opening", func(t *testing.T) {
		got, err := Ancestors("art(1)ust(2")
		var nestErr *NestingError
		require.True(t, errors.As(err, &nestErr))
		assert.Equal(t, "unmatched opening", nestErr.Kind)
		assert.Equal(t, []string{"art(1)"}, got)
	})
}

func TestParent(t *testing.T) {
	parent, ok := Parent("art(1)§(2)")
	assert.True(t, ok)
	assert.Equal(t, "art(1)", parent)

	_, ok = Parent("art(1)")
	assert.False(t, ok)

	_, ok = Parent("art(1)§(2")
	assert.False(t, ok)
}

func TestFixRoman(t *testing.T) {
	tests := []struct {
		id   string
		want string
		ok   bool
	}{
		{"roz(2)", "roz(II)", true},
		{"dz(4)roz(1)", "dz(IV)roz(1)", true},
		{"roz(12a)", "roz(XIIa)", true},
		{"roz(II)", "roz(II)", false},
		{"preamble", "preamble", false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, ok := FixRoman(tt.id)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToRoman(t *testing.T) {
	cases := map[int]string{1: "I", 4: "IV", 9: "IX", 14: "XIV", 40: "XL", 1994: "MCMXCIV", 3999: "MMMCMXCIX"}
	for n, want := range cases {
		got, ok := ToRoman(n)
		assert.True(t, ok)
		assert.Equal(t, want, got, "n=%d", n)
	}

	_, ok := ToRoman(0)
	assert.False(t, ok)
	_, ok = ToRoman(4000)
	assert.False(t, ok)
}

func TestIsSynthetic(t *testing.T) {
	prefixes := []string{"all", "ks", "dz", "roz", "tyt"}
	assert.True(t, IsSynthetic("all()", prefixes))
	assert.True(t, IsSynthetic("roz(2)", prefixes))
	assert.False(t, IsSynthetic("art(1)", prefixes))
	assert.False(t, IsSynthetic("art(1)", nil))
}
