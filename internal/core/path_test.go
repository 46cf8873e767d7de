package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePathTracking(t *testing.T) {
	for in, want := range map[string]PathTracking{"": TrackPath, "path": TrackPath, "depth": TrackDepth, "none": TrackNone} {
		got, err := ParsePathTracking(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		if in != "" {
			assert.Equal(t, in, got.String())
		}
	}

	_, err := ParsePathTracking("full")
	assert.True(t, IsConfigurationError(err))
	assert.Equal(t, "PathTracking(9)", PathTracking(9).String())
}

func TestCyclePolicy_String(t *testing.T) {
	assert.Equal(t, "tolerate", CycleTolerate.String())
	assert.Equal(t, "strict", CycleStrict.String())

	p, err := ParseCyclePolicy("strict")
	require.NoError(t, err)
	assert.Equal(t, CycleStrict, p)

	_, err = ParseCyclePolicy("panic")
	assert.True(t, IsConfigurationError(err))
}

func TestPathState_Step(t *testing.T) {
	root := PathState{Keys: []string{"1"}}

	child := root.Step("2", Descendants)
	assert.Equal(t, []string{"1", "2"}, child.Keys)
	assert.Equal(t, 1, child.Depth)
	assert.False(t, child.Cycle)

	back := child.Step("1", Descendants)
	assert.Equal(t, []string{"1", "2", "1"}, back.Keys)
	assert.Equal(t, 2, back.Depth)
	assert.True(t, back.Cycle)

	parent := root.Step("5", Ancestors)
	assert.Equal(t, []string{"5", "1"}, parent.Keys)
	assert.Equal(t, -1, parent.Depth)
	assert.Equal(t, []string{"1"}, root.Keys, "stepping must not modify the source path")
}

func TestPathState_Contains(t *testing.T) {
	p := PathState{Keys: []string{"1", "11"}}
	assert.True(t, p.Contains("11"))
	assert.False(t, p.Contains("111"))
}

func TestKeyString(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{nil, ""},
		{"a", "a"},
		{[]byte("7"), "7"},
		{int64(42), "42"},
		{float64(3), "3"},
		{1.5, "1.5"},
		{7, "7"},
		{uint8(9), "9"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, keyString(tt.in))
	}
}

func TestToIntAndBool(t *testing.T) {
	assert.Equal(t, 3, toInt(int64(3)))
	assert.Equal(t, -2, toInt([]byte("-2")))
	assert.Equal(t, 4, toInt("4"))
	assert.Equal(t, 0, toInt(nil))

	assert.True(t, toBool(true))
	assert.True(t, toBool(int64(1)))
	assert.True(t, toBool([]byte("1")))
	assert.True(t, toBool("t"))
	assert.False(t, toBool("f"))
	assert.False(t, toBool(nil))
	assert.False(t, toBool(int64(0)))
}

func TestIsInternalColumn(t *testing.T) {
	for _, c := range []string{ColumnDepth, ColumnPath, ColumnCycle, ColumnGroup} {
		assert.True(t, isInternalColumn(c))
	}
	assert.False(t, isInternalColumn("depth"))
}
