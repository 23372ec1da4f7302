package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVariableFormat(t *testing.T) {
	assert.Equal(t, "3", Int(3).Format())
	assert.Equal(t, "true", Bool(true).Format())
	assert.Equal(t, "false", Bool(false).Format())
	assert.Equal(t, "hi", Str("hi").Format())
}

func TestVariableSameKindAllowsIntFloatCrossing(t *testing.T) {
	assert.True(t, Int(1).SameKind(Float(2)))
	assert.True(t, Float(1).SameKind(Int(2)))
	assert.True(t, Str("a").SameKind(Str("b")))
	assert.False(t, Str("a").SameKind(Int(1)))
	assert.False(t, Bool(true).SameKind(Str("x")))
}

func TestNewLineChunkInsertsEmptyForNoItems(t *testing.T) {
	chunk := NewLineChunk(nil)
	assert.Len(t, chunk.Items, 1)
	assert.Equal(t, Empty, chunk.Items[0].Kind)
}

func TestNewLineChunkPreservesGivenItems(t *testing.T) {
	chunk := NewLineChunk([]Content{NewText("hello")})
	assert.Len(t, chunk.Items, 1)
	assert.Equal(t, "hello", chunk.Items[0].TextValue)
}

func TestAlternativeSequenceClampsAtLastChunk(t *testing.T) {
	alt := NewAlternative(Sequence, 0, []LineChunk{
		NewLineChunk([]Content{NewText("a")}),
		NewLineChunk([]Content{NewText("b")}),
	})
	idx, ok := alt.Select(nil)
	assert.True(t, ok)
	assert.Equal(t, 0, idx)
	idx, ok = alt.Select(nil)
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
	idx, ok = alt.Select(nil)
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, 3, alt.Visits())
}

func TestAlternativeOnceOnlyExhausts(t *testing.T) {
	alt := NewAlternative(OnceOnly, 0, []LineChunk{
		NewLineChunk([]Content{NewText("a")}),
	})
	_, ok := alt.Select(nil)
	assert.True(t, ok)
	_, ok = alt.Select(nil)
	assert.False(t, ok)
}

func TestAlternativeCycleWraps(t *testing.T) {
	alt := NewAlternative(Cycle, 0, []LineChunk{
		NewLineChunk([]Content{NewText("a")}),
		NewLineChunk([]Content{NewText("b")}),
	})
	idx, _ := alt.Select(nil)
	assert.Equal(t, 0, idx)
	idx, _ = alt.Select(nil)
	assert.Equal(t, 1, idx)
	idx, _ = alt.Select(nil)
	assert.Equal(t, 0, idx)
}

func TestAlternativeShuffleUsesInjectedIndex(t *testing.T) {
	alt := NewAlternative(Shuffle, 2, []LineChunk{
		NewLineChunk([]Content{NewText("a")}),
		NewLineChunk([]Content{NewText("b")}),
	})
	idx, ok := alt.Select(func(position, visits, n int) int {
		assert.Equal(t, 2, position)
		assert.Equal(t, 0, visits)
		assert.Equal(t, 2, n)
		return 1
	})
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestCompareOpApply(t *testing.T) {
	assert.True(t, CmpEq.Apply(0))
	assert.False(t, CmpEq.Apply(1))
	assert.True(t, CmpLt.Apply(-1))
	assert.True(t, CmpGe.Apply(0))
	assert.True(t, CmpGe.Apply(1))
	assert.False(t, CmpGe.Apply(-1))
}
