package vrm

// Values is the type-specific payload of a component's values block.
type Values interface {
	isValues()
}

// TransactionValues is the payload of TRANSACTION components.
type TransactionValues struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// QueryValues is the payload of SELECTQUERY and INSERTUPDATEQUERY components.
type QueryValues struct {
	Query  string       `json:"query"`
	Params []QueryParam `json:"params"`
}

type QueryParam struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// FunctionValues is the payload of CSF components. The first name/value
// pair of the block carries the function name and the return capture.
type FunctionValues struct {
	Function string          `json:"function"`
	Return   string          `json:"return"`
	Params   []FunctionParam `json:"params"`
}

type FunctionParam struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type ScriptValues struct {
	Script   string `json:"script"`
	Language string `json:"language"`
}

type ConditionValues struct {
	Expression string `json:"expression"`
}

type ErrorValues struct {
	Message string `json:"message"`
}

// SetValues is the payload of SET components.
type SetValues struct {
	Vars []Assignment `json:"vars"`
}

type Assignment struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type MathValues struct {
	Name   string `json:"name"`
	Format string `json:"format"`
	Param  string `json:"param"`
}

type ExternalValues struct {
	Value string `json:"value"`
}

type TemplateValues struct {
	Name   string `json:"name"`
	Target string `json:"target"`
}

// GenericValues is the best-effort payload of types without a dedicated
// schema. Raw holds the original block content and is written back as-is
// when set.
type GenericValues struct {
	Texts  []string     `json:"texts"`
	Query  *string      `json:"query,omitempty"`
	Params []QueryParam `json:"params"`
	Raw    string       `json:"raw"`
}

func (TransactionValues) isValues() {}
func (QueryValues) isValues()       {}
func (FunctionValues) isValues()    {}
func (ScriptValues) isValues()      {}
func (ConditionValues) isValues()   {}
func (ErrorValues) isValues()       {}
func (SetValues) isValues()         {}
func (MathValues) isValues()        {}
func (ExternalValues) isValues()    {}
func (TemplateValues) isValues()    {}
func (GenericValues) isValues()     {}

func cloneValues(v Values) Values {
	switch x := v.(type) {
	case QueryValues:
		x.Params = cloneSlice(x.Params)
		return x
	case FunctionValues:
		x.Params = cloneSlice(x.Params)
		return x
	case SetValues:
		x.Vars = cloneSlice(x.Vars)
		return x
	case GenericValues:
		x.Texts = cloneSlice(x.Texts)
		x.Params = cloneSlice(x.Params)
		if x.Query != nil {
			q := *x.Query
			x.Query = &q
		}
		return x
	default:
		return v
	}
}

// cloneSlice copies s, keeping nil and empty distinct.
func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
