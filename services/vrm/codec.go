package vrm

import "fmt"

// valuesCodec decodes and encodes the values block of one component type.
type valuesCodec struct {
	decode func(r *fieldReader) Values
	encode func(v Values) []string
	match  func(v Values) bool
}

// codecs maps component types to their values schema.
var codecs = map[Type]valuesCodec{
	TypeTransaction:       {decodeTransaction, encodeTransaction, is[TransactionValues]},
	TypeSelectQuery:       {decodeQuery, encodeQuery, is[QueryValues]},
	TypeInsertUpdateQuery: {decodeQuery, encodeQuery, is[QueryValues]},
	TypeScriptFunction:    {decodeFunction, encodeFunction, is[FunctionValues]},
	TypeScript:            {decodeScript, encodeScript, is[ScriptValues]},
	TypeCondition:         {decodeCondition, encodeCondition, is[ConditionValues]},
	TypeError:             {decodeError, encodeError, is[ErrorValues]},
	TypeMultiSet:          {decodeSet, encodeSet, is[SetValues]},
	TypeMath:              {decodeMath, encodeMath, is[MathValues]},
	TypeExternal:          {decodeExternal, encodeExternal, is[ExternalValues]},
	TypeTemplate:          {decodeTemplate, encodeTemplate, is[TemplateValues]},
}

func is[T Values](v Values) bool {
	_, ok := v.(T)
	return ok
}

// DecodeValues decodes the inner content of a values block for type t.
// Shape problems are reported as value warnings next to a best-effort payload.
func DecodeValues(t Type, raw string) (Values, []Warning) {
	r := newFieldReader(raw)
	codec, ok := codecs[t]
	var v Values
	if ok {
		v = codec.decode(r)
	} else {
		v = decodeGeneric(r, raw)
	}
	warnings := make([]Warning, 0, len(r.problems))
	for _, p := range r.problems {
		warnings = append(warnings, Warning{Kind: KindValue, Message: p})
	}
	return v, warnings
}

// EncodeValues renders the inner content of a values block.
func EncodeValues(v Values) string {
	return encodeValues(v, "\n")
}

func encodeValues(v Values, le string) string {
	if g, ok := v.(GenericValues); ok {
		if g.Raw != "" {
			return g.Raw
		}
		return wrapLines(encodeGeneric(g), le)
	}
	for _, codec := range codecs {
		if codec.match(v) {
			return wrapLines(codec.encode(v), le)
		}
	}
	return ""
}

func wrapLines(lines []string, le string) string {
	if len(lines) == 0 {
		return ""
	}
	return le + joinLines(lines, le) + le
}

// valuesMatch reports whether v is an acceptable payload for type t.
func valuesMatch(t Type, v Values) bool {
	if v == nil {
		return true
	}
	if codec, ok := codecs[t]; ok {
		return codec.match(v)
	}
	return is[GenericValues](v)
}

// fieldReader gives positional and by-name access to the elements of a block.
type fieldReader struct {
	elems    []element
	problems []string
}

func newFieldReader(raw string) *fieldReader {
	r := &fieldReader{}
	elems, err := elements(raw)
	r.elems = elems
	if err != nil {
		r.problems = append(r.problems, fmt.Sprintf("values block truncated: %v", err))
	}
	return r
}

func (r *fieldReader) find(name string) (element, bool) {
	for _, e := range r.elems {
		if e.Name == name {
			return e, true
		}
	}
	return element{}, false
}

// text returns a required field, recording a problem when it is missing.
func (r *fieldReader) text(name string) string {
	e, ok := r.find(name)
	if !ok {
		r.problems = append(r.problems, fmt.Sprintf("missing <%s> field", name))
		return ""
	}
	return decodeText(e.Inner)
}

func (r *fieldReader) optText(name string) string {
	e, _ := r.find(name)
	return decodeText(e.Inner)
}

func (r *fieldReader) texts(name string) []string {
	out := []string{}
	for _, e := range r.elems {
		if e.Name == name {
			out = append(out, decodeText(e.Inner))
		}
	}
	return out
}

// pairs matches the n-th name with the n-th value. An unmatched tail is
// dropped and reported.
func (r *fieldReader) pairs() (names, values []string) {
	names, values = r.texts("name"), r.texts("value")
	if len(names) != len(values) {
		r.problems = append(r.problems, fmt.Sprintf("%d names but %d values; unmatched entries dropped", len(names), len(values)))
		n := min(len(names), len(values))
		names, values = names[:n], values[:n]
	}
	return names, values
}

// params decodes <param> blocks, either nested in <params> or at top level.
func (r *fieldReader) params() []QueryParam {
	out := []QueryParam{}
	blocks := r.elems
	if p, ok := r.find("params"); ok {
		inner := newFieldReader(p.Inner)
		r.problems = append(r.problems, inner.problems...)
		blocks = inner.elems
	}
	for _, e := range blocks {
		if e.Name != "param" || !isParamBlock(e.Inner) {
			continue
		}
		pr := newFieldReader(e.Inner)
		out = append(out, QueryParam{Name: pr.optText("name"), Type: pr.optText("type"), Value: pr.optText("value")})
	}
	return out
}

// isParamBlock tells a structured parameter apart from a plain <param> text field.
func isParamBlock(inner string) bool {
	_, ok, _ := nextElement(inner, 0)
	return ok
}

func decodeTransaction(r *fieldReader) Values {
	return TransactionValues{Name: r.text("name"), Kind: r.text("type")}
}

func encodeTransaction(v Values) []string {
	t := v.(TransactionValues)
	return []string{textElement("name", t.Name), textElement("type", t.Kind)}
}

func decodeQuery(r *fieldReader) Values {
	return QueryValues{Query: r.text("query"), Params: r.params()}
}

func encodeQuery(v Values) []string {
	q := v.(QueryValues)
	lines := []string{textElement("query", q.Query)}
	if len(q.Params) > 0 {
		lines = append(lines, "<params>")
		for _, p := range q.Params {
			lines = append(lines, "<param>"+textElement("name", p.Name)+textElement("type", p.Type)+textElement("value", p.Value)+"</param>")
		}
		lines = append(lines, "</params>")
	}
	return lines
}

func decodeFunction(r *fieldReader) Values {
	names, values := r.pairs()
	f := FunctionValues{Params: []FunctionParam{}}
	if len(names) == 0 {
		r.problems = append(r.problems, "missing function name/value pair")
		return f
	}
	f.Function, f.Return = names[0], values[0]
	for i := 1; i < len(names); i++ {
		f.Params = append(f.Params, FunctionParam{Label: names[i], Value: values[i]})
	}
	return f
}

func encodeFunction(v Values) []string {
	f := v.(FunctionValues)
	lines := []string{textElement("name", f.Function), textElement("value", f.Return)}
	for _, p := range f.Params {
		lines = append(lines, textElement("name", p.Label), textElement("value", p.Value))
	}
	return lines
}

func decodeScript(r *fieldReader) Values {
	return ScriptValues{Script: r.text("script"), Language: r.text("lang")}
}

func encodeScript(v Values) []string {
	s := v.(ScriptValues)
	return []string{textElement("script", s.Script), textElement("lang", s.Language)}
}

func decodeCondition(r *fieldReader) Values {
	return ConditionValues{Expression: r.text("expr")}
}

func encodeCondition(v Values) []string {
	return []string{textElement("expr", v.(ConditionValues).Expression)}
}

func decodeError(r *fieldReader) Values {
	return ErrorValues{Message: r.text("msg")}
}

func encodeError(v Values) []string {
	return []string{textElement("msg", v.(ErrorValues).Message)}
}

func decodeSet(r *fieldReader) Values {
	names, values := r.pairs()
	s := SetValues{Vars: make([]Assignment, 0, len(names))}
	for i := range names {
		s.Vars = append(s.Vars, Assignment{Name: names[i], Value: values[i]})
	}
	return s
}

func encodeSet(v Values) []string {
	var lines []string
	for _, a := range v.(SetValues).Vars {
		lines = append(lines, textElement("name", a.Name), textElement("value", a.Value))
	}
	return lines
}

func decodeMath(r *fieldReader) Values {
	return MathValues{Name: r.text("name"), Format: r.text("format"), Param: r.text("param")}
}

func encodeMath(v Values) []string {
	m := v.(MathValues)
	return []string{textElement("name", m.Name), textElement("format", m.Format), textElement("param", m.Param)}
}

func decodeExternal(r *fieldReader) Values {
	return ExternalValues{Value: r.text("value")}
}

func encodeExternal(v Values) []string {
	return []string{textElement("value", v.(ExternalValues).Value)}
}

func decodeTemplate(r *fieldReader) Values {
	return TemplateValues{Name: r.text("name"), Target: r.text("target")}
}

func encodeTemplate(v Values) []string {
	t := v.(TemplateValues)
	return []string{textElement("name", t.Name), textElement("target", t.Target)}
}

// decodeGeneric extracts what it can from a block of unknown shape: every
// CDATA text field, a query field and parameter blocks.
func decodeGeneric(r *fieldReader, raw string) Values {
	g := GenericValues{Texts: []string{}, Raw: raw}
	for _, e := range r.elems {
		if e.Name == "query" {
			q := decodeText(e.Inner)
			g.Query = &q
			continue
		}
		if containsCDATA(e.Inner) {
			g.Texts = append(g.Texts, decodeText(e.Inner))
		}
	}
	g.Params = r.params()
	return g
}

func encodeGeneric(g GenericValues) []string {
	var lines []string
	if g.Query != nil {
		lines = append(lines, textElement("query", *g.Query))
	}
	for _, t := range g.Texts {
		lines = append(lines, "<text>"+cdata(t)+"</text>")
	}
	if len(g.Params) > 0 {
		lines = append(lines, encodeQuery(QueryValues{Params: g.Params})[1:]...)
	}
	return lines
}
