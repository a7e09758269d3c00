package vrm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPatch_UpdateIsLocal(t *testing.T) {
	m := newSampleModel(t)
	c, err := m.Get(SectionPre, 2)
	require.NoError(t, err)
	c.X = 99
	require.NoError(t, m.Update(c))

	out, err := ApplyPatch(sampleDoc, m.Dirty())
	require.NoError(t, err)

	start := strings.Index(sampleDoc, "<c>\n<n>2</n>")
	end := strings.Index(sampleDoc, "\n</preproc>")
	assert.Equal(t, sampleDoc[:start], out[:start])
	assert.True(t, strings.HasSuffix(out, sampleDoc[end:]))
	assert.Equal(t, RenderComponent(c), out[start:len(out)-len(sampleDoc[end:])])

	doc := mustParse(t, out)
	assert.Equal(t, 99, doc.Pre[1].X)
	assert.Equal(t, mustParse(t, sampleDoc).Pre[0], doc.Pre[0])
}

func TestApplyPatch_InsertAppendsToSection(t *testing.T) {
	m := newSampleModel(t)
	c := component(m.NextID(), TypeError, ErrorValues{Message: "boom"})
	c.Section = SectionPost
	require.NoError(t, m.Add(c))

	out, err := ApplyPatch(sampleDoc, m.Dirty())
	require.NoError(t, err)

	want := strings.Replace(sampleDoc, "<postproc>\n</postproc>", "<postproc>\n"+RenderComponent(c)+"\n</postproc>", 1)
	assert.Equal(t, want, out)
}

func TestApplyPatch_InsertIntoInlineSection(t *testing.T) {
	raw := "<preproc></preproc><html></html><postproc></postproc>"
	c := component(1, TypeCondition, ConditionValues{Expression: "ok"})

	out, err := ApplyPatch(raw, []DirtyItem{{Kind: ItemUpsert, Section: SectionPre, ID: 1, Component: c}})
	require.NoError(t, err)

	assert.Equal(t, "<preproc>\n"+RenderComponent(c)+"\n</preproc><html></html><postproc></postproc>", out)
	doc := mustParse(t, out)
	require.Len(t, doc.Pre, 1)
	assert.Equal(t, c, doc.Pre[0])
}

func TestApplyPatch_RemoveDropsLines(t *testing.T) {
	m := newSampleModel(t)
	require.NoError(t, m.Remove(SectionPre, 2))

	out, err := ApplyPatch(sampleDoc, m.Dirty())
	require.NoError(t, err)

	start := strings.Index(sampleDoc, "<c>\n<n>2</n>")
	end := strings.Index(sampleDoc, "\n</preproc>")
	assert.Equal(t, sampleDoc[:start]+sampleDoc[end+1:], out)
}

func TestApplyPatch_RemoveMissingIsNoop(t *testing.T) {
	out, err := ApplyPatch(sampleDoc, []DirtyItem{{Kind: ItemRemove, Section: SectionPost, ID: 5}})

	require.NoError(t, err)
	assert.Equal(t, sampleDoc, out)
}

func TestApplyPatch_ContentBlocks(t *testing.T) {
	t.Run("html keeps script", func(t *testing.T) {
		m := newSampleModel(t)
		require.NoError(t, m.UpdateContent(ContentHTML, "<p>Bye</p>"))

		out, err := ApplyPatch(sampleDoc, m.Dirty())

		require.NoError(t, err)
		assert.Contains(t, out, "<html><![CDATA[<p>Bye</p>]]><script><![CDATA[var x = 1;]]></script></html>")
	})

	t.Run("script keeps html", func(t *testing.T) {
		m := newSampleModel(t)
		require.NoError(t, m.UpdateContent(ContentScript, "var y = 2;"))

		out, err := ApplyPatch(sampleDoc, m.Dirty())

		require.NoError(t, err)
		assert.Contains(t, out, "<html><![CDATA[<p>Hello</p>]]><script><![CDATA[var y = 2;]]></script></html>")
	})

	t.Run("script added when absent", func(t *testing.T) {
		raw := "<preproc></preproc><html><![CDATA[<b>x</b>]]></html><postproc></postproc>"

		out, err := ApplyPatch(raw, []DirtyItem{{Kind: ItemContent, Content: ContentScript, Text: "go()"}})

		require.NoError(t, err)
		assert.Equal(t, "<preproc></preproc><html><![CDATA[<b>x</b>]]><script><![CDATA[go()]]></script></html><postproc></postproc>", out)
	})
}

func TestApplyPatch_CRLF(t *testing.T) {
	raw := strings.ReplaceAll(sampleDoc, "\n", "\r\n")
	m := NewModel(mustParse(t, raw))
	c, _ := m.Get(SectionPre, 1)
	c.Comment = nil
	require.NoError(t, m.Update(c))

	out, err := ApplyPatch(raw, m.Dirty())

	require.NoError(t, err)
	assert.NotContains(t, strings.ReplaceAll(out, "\r\n", ""), "\n")
	assert.Nil(t, mustParse(t, out).Pre[0].Comment)
}

func TestApplyPatch_MissingSection(t *testing.T) {
	_, err := ApplyPatch("<html></html>", []DirtyItem{{Kind: ItemUpsert, Section: SectionPre, ID: 1}})

	var perr *StructuralParseError
	assert.ErrorAs(t, err, &perr)
}

func TestScenario_RemoveAndCleanup(t *testing.T) {
	doc := mustParse(t, sampleDoc)
	require.Len(t, doc.Pre, 2)
	assert.Equal(t, 2, doc.Pre[0].Primary())
	assert.Empty(t, FindDanglingConnections(doc))

	m := NewModel(doc)
	require.NoError(t, m.Remove(SectionPre, 2))
	m.DetachConnections(SectionPre, 2)

	out, err := ApplyPatch(sampleDoc, m.Dirty())
	require.NoError(t, err)

	after := mustParse(t, out)
	require.Len(t, after.Pre, 1)
	assert.Equal(t, 1, after.Pre[0].ID)
	assert.Equal(t, 0, after.Pre[0].Primary())
}

// skippedDoc has a valid component 1 and a component 2 without x, which is
// skipped at load but stays in the text.
const skippedDoc = `<preproc>
<c>
<n>1</n>
<t>IF</t>
<values><expr>a</expr></values>
<j/>
<j/>
<x>1</x>
<y>1</y>
<c/>
<wp/>
</c>
<c>
<n>2</n>
<t>IF</t>
<values><expr>b</expr></values>
<j/>
<j/>
<y>2</y>
<c>keep me</c>
<wp/>
</c>
</preproc>
<html></html>
<postproc>
</postproc>
`

func TestApplyPatch_AddKeepsSkippedBlock(t *testing.T) {
	doc, warnings, err := ParseDocument(skippedDoc)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, []int{2}, doc.Skipped[SectionPre])

	m := NewModel(doc)
	assert.ErrorIs(t, m.Add(component(2, TypeCondition, ConditionValues{Expression: "c"})), ErrDuplicateID)

	id := m.NextID()
	assert.Equal(t, 3, id)
	c := component(id, TypeCondition, ConditionValues{Expression: "c"})
	require.NoError(t, m.Add(c))

	out, err := ApplyPatch(skippedDoc, m.Dirty())
	require.NoError(t, err)

	end := strings.Index(skippedDoc, "</preproc>")
	assert.Equal(t, skippedDoc[:end], out[:end])
	assert.Contains(t, out, "keep me")

	after, warnings, err := ParseDocument(out)
	require.NoError(t, err)
	assert.Len(t, warnings, 1)
	require.Len(t, after.Pre, 2)
	assert.Equal(t, c, after.Pre[1])
}

func TestApplyPatch_AddedComponentNeverReplacesBlock(t *testing.T) {
	// Component 2 exists in the text but the item was added in the model,
	// as when another writer added the same id meanwhile.
	c := component(2, TypeError, ErrorValues{Message: "new"})

	out, err := ApplyPatch(sampleDoc, []DirtyItem{{Kind: ItemUpsert, Section: SectionPre, ID: 2, Component: c, Added: true}})
	require.NoError(t, err)

	end := strings.Index(sampleDoc, "</preproc>")
	assert.Equal(t, sampleDoc[:end], out[:end])
	assert.Len(t, mustParse(t, out).Pre, 3)
}

func TestApplyPatch_AddThenRemoveBeforeCommit(t *testing.T) {
	m := newSampleModel(t)
	require.NoError(t, m.Add(component(3, TypeCondition, nil)))
	require.NoError(t, m.Remove(SectionPre, 3))

	items := m.Dirty()
	require.Len(t, items, 1)
	assert.Equal(t, ItemRemove, items[0].Kind)
	assert.True(t, items[0].Added)

	out, err := ApplyPatch(sampleDoc, items)
	require.NoError(t, err)
	assert.Equal(t, sampleDoc, out)
}

func TestApplyPatch_SelfClosedBlocks(t *testing.T) {
	raw := "<preproc/><html/><postproc></postproc>"

	t.Run("component", func(t *testing.T) {
		c := component(1, TypeCondition, ConditionValues{Expression: "ok"})

		out, err := ApplyPatch(raw, []DirtyItem{{Kind: ItemUpsert, Section: SectionPre, ID: 1, Component: c, Added: true}})
		require.NoError(t, err)

		assert.Equal(t, "<preproc>\n"+RenderComponent(c)+"\n</preproc><html/><postproc></postproc>", out)
		doc := mustParse(t, out)
		require.Len(t, doc.Pre, 1)
		assert.Equal(t, c, doc.Pre[0])
	})

	t.Run("html", func(t *testing.T) {
		out, err := ApplyPatch(raw, []DirtyItem{{Kind: ItemContent, Content: ContentHTML, Text: "<p>x</p>"}})
		require.NoError(t, err)

		assert.Equal(t, "<preproc/><html><![CDATA[<p>x</p>]]></html><postproc></postproc>", out)
		assert.Equal(t, "<p>x</p>", mustParse(t, out).HTML)
	})

	t.Run("script", func(t *testing.T) {
		out, err := ApplyPatch(raw, []DirtyItem{{Kind: ItemContent, Content: ContentScript, Text: "go()"}})
		require.NoError(t, err)

		doc := mustParse(t, out)
		assert.True(t, doc.HasScript)
		assert.Equal(t, "go()", doc.Script)
	})
}

func TestApplyPatch_HTMLKeepsScriptPosition(t *testing.T) {
	raw := "<preproc></preproc>\n<html>\n  <script><![CDATA[s()]]></script>\n  <![CDATA[<p>a</p>]]>\n</html>\n<postproc></postproc>"

	out, err := ApplyPatch(raw, []DirtyItem{{Kind: ItemContent, Content: ContentHTML, Text: "<p>b</p>"}})
	require.NoError(t, err)

	assert.Equal(t, strings.Replace(raw, "<p>a</p>", "<p>b</p>", 1), out)
	doc := mustParse(t, out)
	assert.Equal(t, "<p>b</p>", doc.HTML)
	assert.Equal(t, "s()", doc.Script)
}
