package editor

import (
	"encoding/json"
	"fmt"

	"github.com/Chris-Boho/stingray-vrm-sub000/services/vrm"
)

func toDTO(c vrm.Component) (ComponentDTO, error) {
	dto := ComponentDTO{
		ID:          c.ID,
		Type:        string(c.Type),
		Section:     string(c.Section),
		Position:    Position{X: c.X, Y: c.Y},
		Comment:     c.Comment,
		Connections: c.Connections,
		Extra:       c.Extra,
	}
	switch c.Watchpoint {
	case vrm.WatchOn:
		on := true
		dto.Watchpoint = &on
	case vrm.WatchOff:
		off := false
		dto.Watchpoint = &off
	}
	if c.Values != nil {
		raw, err := json.Marshal(c.Values)
		if err != nil {
			return ComponentDTO{}, fmt.Errorf("marshal values of component %d: %w", c.ID, err)
		}
		dto.Values = raw
	}
	return dto, nil
}

func toDTOs(cs []vrm.Component) ([]ComponentDTO, error) {
	out := make([]ComponentDTO, 0, len(cs))
	for _, c := range cs {
		dto, err := toDTO(c)
		if err != nil {
			return nil, err
		}
		out = append(out, dto)
	}
	return out, nil
}

func fromDTO(dto ComponentDTO) (vrm.Component, error) {
	section, ok := vrm.ParseSection(dto.Section)
	if !ok {
		return vrm.Component{}, errInvalid("section")
	}
	if dto.Type == "" {
		return vrm.Component{}, errMissing("type")
	}
	c := vrm.Component{
		ID:          dto.ID,
		Type:        vrm.Type(dto.Type),
		Section:     section,
		X:           dto.Position.X,
		Y:           dto.Position.Y,
		Comment:     dto.Comment,
		Connections: dto.Connections,
		Extra:       dto.Extra,
	}
	if dto.Watchpoint != nil {
		c.Watchpoint = vrm.WatchOff
		if *dto.Watchpoint {
			c.Watchpoint = vrm.WatchOn
		}
	}
	values, err := valuesFromJSON(c.Type, dto.Values)
	if err != nil {
		return vrm.Component{}, err
	}
	c.Values = values
	return c, nil
}

// valuesFromJSON decodes a values payload into the struct matching t.
func valuesFromJSON(t vrm.Type, raw json.RawMessage) (vrm.Values, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var v vrm.Values
	switch t {
	case vrm.TypeTransaction:
		v = decodeInto[vrm.TransactionValues](raw)
	case vrm.TypeSelectQuery, vrm.TypeInsertUpdateQuery:
		v = decodeInto[vrm.QueryValues](raw)
	case vrm.TypeScriptFunction:
		v = decodeInto[vrm.FunctionValues](raw)
	case vrm.TypeScript:
		v = decodeInto[vrm.ScriptValues](raw)
	case vrm.TypeCondition:
		v = decodeInto[vrm.ConditionValues](raw)
	case vrm.TypeError:
		v = decodeInto[vrm.ErrorValues](raw)
	case vrm.TypeMultiSet:
		v = decodeInto[vrm.SetValues](raw)
	case vrm.TypeMath:
		v = decodeInto[vrm.MathValues](raw)
	case vrm.TypeExternal:
		v = decodeInto[vrm.ExternalValues](raw)
	case vrm.TypeTemplate:
		v = decodeInto[vrm.TemplateValues](raw)
	default:
		v = decodeInto[vrm.GenericValues](raw)
	}
	if v == nil {
		return nil, errInvalid("values")
	}
	return v, nil
}

func decodeInto[T vrm.Values](raw json.RawMessage) vrm.Values {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}
