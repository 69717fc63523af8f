package rowtable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff_Idempotent(t *testing.T) {
	item := map[string]AttrValue{
		"a":    S("x"),
		"list": L(Number(1), Number(2), M(map[string]AttrValue{"k": Bool(true)})),
	}
	diffs, err := Diff(item, item)
	require.NoError(t, err)
	assert.Empty(t, diffs)
}

func TestDiff_Scenario(t *testing.T) {
	newItem := map[string]AttrValue{
		"a":    S("x"),
		"list": L(Number(1), Number(2), Number(3), Number(4)),
		"nested": M(map[string]AttrValue{
			"k": Bool(true),
		}),
	}
	existing := map[string]AttrValue{
		"a":    S("x"),
		"list": L(Number(1), Number(9), Number(3)),
		"nested": M(map[string]AttrValue{
			"k":    Bool(false),
			"gone": S("z"),
		}),
	}

	diffs, err := Diff(newItem, existing)
	require.NoError(t, err)

	assert.ElementsMatch(t, []AttrDiff{
		updateDiff("list[1]", "2"),
		listAppendDiff("list", "[4]"),
		updateDiff("nested.k", "true"),
		removeDiff("nested.gone"),
	}, diffs)
}

func TestDiff_UnsupportedAttribute(t *testing.T) {
	newItem := map[string]AttrValue{"blob": {Kind: KindB}}
	existing := map[string]AttrValue{"blob": S("x")}

	_, err := Diff(newItem, existing)
	require.Error(t, err)

	var unable *UnableToUpdateError
	require.ErrorAs(t, err, &unable)
	assert.Equal(t, "Unable to handle Binary types.", unable.Reason)
}

func TestDiff_TypeChangeRecomputes(t *testing.T) {
	newItem := map[string]AttrValue{"a": Number(5)}
	existing := map[string]AttrValue{"a": S("5")}

	diffs, err := Diff(newItem, existing)
	require.NoError(t, err)
	assert.Equal(t, []AttrDiff{updateDiff("a", "5")}, diffs)
}

func TestDiff_NullBecomesRemove(t *testing.T) {
	newItem := map[string]AttrValue{"a": Null()}
	existing := map[string]AttrValue{"a": S("old"), "b": S("keep")}

	diffs, err := Diff(newItem, existing)
	require.NoError(t, err)
	assert.ElementsMatch(t, []AttrDiff{
		removeDiff("a"),
		removeDiff("b"),
	}, diffs)
}

func TestDiff_OnlyInNewKeyIsUpdate(t *testing.T) {
	newItem := map[string]AttrValue{"a": S("hi")}
	existing := map[string]AttrValue{}

	diffs, err := Diff(newItem, existing)
	require.NoError(t, err)
	assert.Equal(t, []AttrDiff{updateDiff("a", "'hi'")}, diffs)
}

func TestDiff_StringEscaping(t *testing.T) {
	newItem := map[string]AttrValue{"a": S("it's")}
	existing := map[string]AttrValue{"a": S("it's not")}

	diffs, err := Diff(newItem, existing)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t, "'it''s'", diffs[0].Rendered)
}
