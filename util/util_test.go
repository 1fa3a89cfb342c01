package util_test

import (
	"testing"

	"github.com/cottand/typecore/util"
	"github.com/stretchr/testify/assert"
)

type name string

func (n name) String() string { return string(n) }

func TestStack(t *testing.T) {
	var s util.Stack[string]
	_, ok := s.Pop()
	assert.False(t, ok)

	s.Push("a")
	s.Push("b")
	assert.Equal(t, []string{"a", "b"}, s.Items())
	top, ok := s.Pop()
	assert.True(t, ok)
	assert.Equal(t, "b", top)
	assert.Equal(t, 1, s.Len())
}

func TestMSet(t *testing.T) {
	s := util.NewEmptySet[string]()
	s.Add("a", "b", "a")
	assert.Equal(t, 2, s.Len())
	s.Remove("a")
	assert.False(t, s.Contains("a"))
	assert.True(t, s.Contains("b"))
}

func TestJoinString(t *testing.T) {
	cases := map[string]struct {
		elems []name
		want  string
	}{
		"empty": {nil, ""},
		"one":   {[]name{"Int"}, "Int"},
		"many":  {[]name{"Int", "Str", "Nat"}, "Int, Str, Nat"},
	}
	for n, c := range cases {
		t.Run(n, func(t *testing.T) {
			assert.Equal(t, c.want, util.JoinString(c.elems, ", "))
		})
	}
}
