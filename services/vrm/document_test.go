package vrm

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleDoc has a condition (1) wired to a script function (2). The
// condition's comment contains literal c tags.
const sampleDoc = `<languages><lang>en</lang></languages>
<preproc>
<c>
<n>1</n>
<t>IF</t>
<values><expr><![CDATA[a < b]]></expr></values>
<j>2</j>
<j/>
<x>10</x>
<y>20</y>
<c>check <c>nested</c> tags</c>
<wp/>
</c>
<c>
<n>2</n>
<t>CSF</t>
<values>
<name>doThing</name>
<value>result</value>
<name>first</name>
<value>1</value>
</values>
<j/>
<j/>
<x>30</x>
<y>40</y>
<c/>
<wp>1</wp>
</c>
</preproc>
<html><![CDATA[<p>Hello</p>]]><script><![CDATA[var x = 1;]]></script></html>
<postproc>
</postproc>
`

func mustParse(t *testing.T, raw string) *Document {
	t.Helper()
	doc, warnings, err := ParseDocument(raw)
	require.NoError(t, err)
	require.Empty(t, warnings)
	return doc
}

func TestParseDocument_Sample(t *testing.T) {
	doc := mustParse(t, sampleDoc)

	require.Len(t, doc.Pre, 2)
	assert.Empty(t, doc.Post)

	cond := doc.Pre[0]
	assert.Equal(t, 1, cond.ID)
	assert.Equal(t, TypeCondition, cond.Type)
	assert.Equal(t, SectionPre, cond.Section)
	assert.Equal(t, 10, cond.X)
	assert.Equal(t, 20, cond.Y)
	require.NotNil(t, cond.Comment)
	assert.Equal(t, "check <c>nested</c> tags", *cond.Comment)
	assert.Equal(t, WatchUnset, cond.Watchpoint)
	assert.Equal(t, []int{2, 0}, cond.Connections)
	assert.Equal(t, ConditionValues{Expression: "a < b"}, cond.Values)

	fn := doc.Pre[1]
	assert.Equal(t, TypeScriptFunction, fn.Type)
	assert.Nil(t, fn.Comment)
	assert.Equal(t, WatchOn, fn.Watchpoint)
	assert.Equal(t, FunctionValues{
		Function: "doThing",
		Return:   "result",
		Params:   []FunctionParam{{Label: "first", Value: "1"}},
	}, fn.Values)

	assert.Equal(t, "<p>Hello</p>", doc.HTML)
	assert.True(t, doc.HasScript)
	assert.Equal(t, "var x = 1;", doc.Script)
	assert.Equal(t, []string{"<languages><lang>en</lang></languages>"}, doc.Metadata)
	assert.Equal(t, "\n", doc.LineEnding)
	assert.Empty(t, FindDanglingConnections(doc))
}

func TestParseDocument_MissingBlock(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		block string
	}{
		{"no preproc", "<html></html><postproc></postproc>", "preproc"},
		{"no postproc", "<preproc></preproc><html></html>", "postproc"},
		{"no html", "<preproc></preproc><postproc></postproc>", "html"},
		{"unclosed preproc", "<preproc><html></html><postproc></postproc>", "preproc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, _, err := ParseDocument(tt.raw)

			require.Error(t, err)
			assert.Nil(t, doc)
			var perr *StructuralParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.block, perr.Block)
		})
	}
}

func TestParseDocument_SkipsBadComponent(t *testing.T) {
	raw := strings.Replace(sampleDoc, "<x>30</x>\n", "", 1)

	doc, warnings, err := ParseDocument(raw)

	require.NoError(t, err)
	require.Len(t, doc.Pre, 1)
	assert.Equal(t, 1, doc.Pre[0].ID)
	require.Len(t, warnings, 1)
	assert.Equal(t, KindComponent, warnings[0].Kind)
	assert.Equal(t, 2, warnings[0].ComponentID)
	assert.Equal(t, SectionPre, warnings[0].Section)
	assert.Equal(t, strings.Index(raw, "<c>\n<n>2</n>"), warnings[0].Offset)
}

func TestParseDocument_ValueWarningKeepsComponent(t *testing.T) {
	raw := strings.Replace(sampleDoc, "<value>1</value>\n", "", 1)

	doc, warnings, err := ParseDocument(raw)

	require.NoError(t, err)
	require.Len(t, doc.Pre, 2)
	require.Len(t, warnings, 1)
	assert.Equal(t, KindValue, warnings[0].Kind)
	assert.Equal(t, 2, warnings[0].ComponentID)
	fn := doc.Pre[1].Values.(FunctionValues)
	assert.Equal(t, "doThing", fn.Function)
	assert.Empty(t, fn.Params)
}

func TestParseDocument_NoScript(t *testing.T) {
	raw := "<preproc></preproc>\n<html>\n  <p>plain &amp; simple</p>\n</html>\n<postproc></postproc>"

	doc := mustParse(t, raw)

	assert.False(t, doc.HasScript)
	assert.Equal(t, "<p>plain & simple</p>", doc.HTML)
}

func TestParseDocument_CRLF(t *testing.T) {
	raw := strings.ReplaceAll(sampleDoc, "\n", "\r\n")

	doc := mustParse(t, raw)

	assert.Equal(t, "\r\n", doc.LineEnding)
	require.Len(t, doc.Pre, 2)
	assert.Equal(t, "check <c>nested</c> tags", *doc.Pre[0].Comment)
}

func TestRenderDocument_RoundTrip(t *testing.T) {
	doc := mustParse(t, sampleDoc)

	again := mustParse(t, RenderDocument(doc))

	assert.Equal(t, doc, again)
}

func TestRenderDocument_KeepsLineEnding(t *testing.T) {
	doc := mustParse(t, strings.ReplaceAll(sampleDoc, "\n", "\r\n"))

	out := RenderDocument(doc)

	assert.NotContains(t, strings.ReplaceAll(out, "\r\n", ""), "\n")
}
