package vrm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func block(id, comment string) string {
	return "<c>\n<n>" + id + "</n>\n<t>IF</t>\n<x>1</x>\n<y>2</y>\n" + comment + "\n<wp/>\n</c>"
}

func TestExtractSpans_Basic(t *testing.T) {
	a, b := block("1", "<c/>"), block("2", "<c>plain</c>")
	section := "\n" + a + "\n" + b + "\n"

	spans, warnings := ExtractSpans(section)

	assert.Empty(t, warnings)
	require.Len(t, spans, 2)
	assert.Equal(t, a, spans[0].Text)
	assert.Equal(t, b, spans[1].Text)
	assert.Equal(t, section[spans[1].Start:spans[1].End], b)
}

func TestExtractSpans_CommentShapedLikeComponent(t *testing.T) {
	// The comment itself opens with a c tag followed by an n tag.
	tricky := block("1", "<c><c><n>9</n></c></c>")
	section := tricky + "\n" + block("2", "<c/>")

	spans, warnings := ExtractSpans(section)

	assert.Empty(t, warnings)
	require.Len(t, spans, 2)
	assert.Equal(t, tricky, spans[0].Text)
	assert.Equal(t, 2, peekID(spans[1].Text))
}

func TestExtractSpans_DropsBlockWithoutTail(t *testing.T) {
	broken := "<c>\n<n>7</n>\n<t>IF</t>\n<x>1</x>\n<y>2</y>\n<c>no marker\n</c>"
	good := block("8", "<c/>")
	section := "\n" + broken + "\n" + good + "\n"

	spans, warnings := ExtractSpans(section)

	require.Len(t, spans, 1)
	assert.Equal(t, good, spans[0].Text)
	require.Len(t, warnings, 1)
	assert.Equal(t, KindComponent, warnings[0].Kind)
	assert.Equal(t, 7, warnings[0].ComponentID)
	assert.Equal(t, 1, warnings[0].Offset)
}

func TestExtractSpans_IgnoresCDATA(t *testing.T) {
	inner := block("1", "<c><![CDATA[</c>\n<wp/>\n</c>]]></c>")

	spans, warnings := ExtractSpans(inner)

	assert.Empty(t, warnings)
	require.Len(t, spans, 1)
	assert.Equal(t, inner, spans[0].Text)
}

func TestExtractSpans_Empty(t *testing.T) {
	spans, warnings := ExtractSpans(strings.Repeat(" ", 4))

	assert.Empty(t, spans)
	assert.Empty(t, warnings)
}
