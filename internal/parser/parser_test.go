package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/lexcite/pkg/types"
)

const twoArticles = `<div id=\"art(1)\">Article one
  <div id=\"art(1)ust(1)\">First para <a href="#">link</a></div>
  <div id=\"art(1)ust(2)\">Second&nbsp;para</div>
</div>
<div id=\"art(2)\">Article two</div>`

func TestNew(t *testing.T) {
	p := New()
	assert.NotNil(t, p)
	assert.False(t, p.SkipRomanFixup)
}

func TestParseAct_LinksChildren(t *testing.T) {
	raw := &types.RawAct{
		Nro:     10,
		Title:   `Act \"on\" things`,
		Content: twoArticles,
		Units:   []string{"art(1)", "art(1)ust(1)", "art(1)ust(2)", "art(2)"},
	}

	tree, err := New().ParseAct(raw)
	require.NoError(t, err)

	assert.Equal(t, "Act on things", tree.Title)
	assert.Equal(t, []string{"art(1)ust(1)", "art(1)ust(2)"}, tree.Elements["art(1)"].Children)
	assert.Nil(t, tree.Elements["art(1)"].Parent)
	require.NotNil(t, tree.Elements["art(1)ust(2)"].Parent)
	assert.Equal(t, "art(1)", *tree.Elements["art(1)ust(2)"].Parent)

	assert.Equal(t, "Article one", tree.Elements["art(1)"].Text)
	assert.Equal(t, "First para link", tree.Elements["art(1)ust(1)"].Text)
	assert.Equal(t, "Secondpara", tree.Elements["art(1)ust(2)"].Text)
	assert.Equal(t, "Article two", tree.Elements["art(2)"].Text)

	assert.Equal(t, []string{"art(1)", "art(2)"}, tree.TopLevel())
	assert.Equal(t, []string{"art(1)ust(1)", "art(1)ust(2)", "art(2)"}, tree.Leaves())
	assert.Empty(t, tree.StructuralErrors)
}

func TestParseAct_ChildrenBehindWrapper(t *testing.T) {
	raw := &types.RawAct{
		Nro: 1,
		Content: `<div id=\"roz(1)\"><h2>Title</h2><div class="body">` +
			`<div id=\"roz(1)art(1)\">A</div><div id=\"other\">skip</div></div></div>`,
		Units: []string{"roz(1)", "roz(1)art(1)"},
	}

	tree, err := New().ParseAct(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"roz(1)art(1)"}, tree.Elements["roz(1)"].Children)
	assert.Equal(t, "Title skip", tree.Elements["roz(1)"].Text)
}

func TestParseAct_RomanFixup(t *testing.T) {
	raw := &types.RawAct{
		Nro:     2,
		Content: `<div id=\"roz(II)\">Chapter</div><div id=\"roz(2)art(5)\">Orphan</div>`,
		Units:   []string{"roz(II)", "roz(2)art(5)"},
	}

	tree, err := New().ParseAct(raw)
	require.NoError(t, err)
	require.NotNil(t, tree.Elements["roz(2)art(5)"].Parent)
	assert.Equal(t, "roz(II)", *tree.Elements["roz(2)art(5)"].Parent)
	assert.Equal(t, []string{"roz(2)art(5)"}, tree.Elements["roz(II)"].Children)
	assert.Equal(t, "Chapter", tree.Elements["roz(II)"].Text)

	p := New()
	p.SkipRomanFixup = true
	tree, err = p.ParseAct(raw)
	require.NoError(t, err)
	assert.Nil(t, tree.Elements["roz(2)art(5)"].Parent)
}

func TestParseAct_MissingNode(t *testing.T) {
	raw := &types.RawAct{
		Nro:     3,
		Content: `<div id=\"art(1)\">One</div>`,
		Units:   []string{"art(1)", "art(9)"},
	}

	tree, err := New().ParseAct(raw)
	require.NoError(t, err)
	assert.Equal(t, "", tree.Elements["art(9)"].Text)
	assert.Empty(t, tree.Elements["art(9)"].Children)
	require.Len(t, tree.StructuralErrors, 1)
	assert.Contains(t, tree.StructuralErrors[0], "art(9)")
}

func TestParseAct_Errors(t *testing.T) {
	_, err := New().ParseAct(&types.RawAct{Nro: 4, Content: "<div></div>"})
	assert.ErrorIs(t, err, types.ErrNoUnits)

	_, err = New().ParseAct(&types.RawAct{Nro: 4, Units: []string{"art(1)"}, Content: "  "})
	assert.ErrorIs(t, err, types.ErrEmptyMarkup)
}

func TestNormalizeID(t *testing.T) {
	assert.Equal(t, "art(1)", NormalizeID(`\"art(1)\"`))
	assert.Equal(t, "art(1)", NormalizeID("art(1)"))
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "ab cd", CleanText(`a\"b  c`+"\u00a0d"))
	assert.Equal(t, "x y", CleanText("  x\n\t y  "))
	assert.Equal(t, "", CleanText(""))
}

func TestCheckStructure(t *testing.T) {
	t.Run("cycle", func(t *testing.T) {
		tree := &types.TreeAct{
			Nro:   1,
			Units: []string{"a", "b"},
			Elements: map[string]*types.Element{
				"a": {Children: []string{"b"}},
				"b": {Children: []string{"a"}},
			},
		}
		errs := CheckStructure(tree)
		require.Len(t, errs, 1)
		assert.True(t, strings.Contains(errs[0].Error(), "cycle"))
	})

	t.Run("shared child", func(t *testing.T) {
		tree := &types.TreeAct{
			Nro:   1,
			Units: []string{"x", "y", "z"},
			Elements: map[string]*types.Element{
				"x": {Children: []string{"z"}},
				"y": {Children: []string{"z"}},
				"z": {},
			},
		}
		errs := CheckStructure(tree)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Error(), "several parents")
	})

	t.Run("undeclared child", func(t *testing.T) {
		tree := &types.TreeAct{
			Nro:      1,
			Units:    []string{"x"},
			Elements: map[string]*types.Element{"x": {Children: []string{"ghost"}}},
		}
		errs := CheckStructure(tree)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Error(), "ghost")
	})

	t.Run("clean tree", func(t *testing.T) {
		tree := &types.TreeAct{
			Units: []string{"a", "b"},
			Elements: map[string]*types.Element{
				"a": {Children: []string{"b"}},
				"b": {},
			},
		}
		assert.Empty(t, CheckStructure(tree))
	})
}

func TestParseQuestion(t *testing.T) {
	markup := `<div class="qa_q">Can I <a href="x">deduct</a> VAT?</div>` +
		`<div class="qa_a-cont extra">Yes.</div>` +
		`<div class="qa_a-just">Because <b>art. 86</b>.</div>`

	text, err := ParseQuestion(markup)
	require.NoError(t, err)
	assert.Equal(t, "Can I deduct VAT?", text.Question)
	assert.Equal(t, "Yes.", text.Answer)
	assert.Equal(t, "Because art. 86 .", text.Justification)
}

func TestParseQuestion_MissingBlocks(t *testing.T) {
	text, err := ParseQuestion(`<div class="qa_q">Only a question</div>`)
	require.NoError(t, err)
	assert.Equal(t, "Only a question", text.Question)
	assert.Empty(t, text.Answer)
	assert.Empty(t, text.Justification)
}
