package project

import (
	"encoding/json"

	"github.com/bakegraph/bake/attribute"
	"golang.org/x/xerrors"
)

// EvaluateAttributes expands binding's raw driver-configuration JSON through
// expander, populating binding.Attributes (spec §4.5). Only string values —
// including strings nested in lists — undergo ${VAR}/$fn(args) expansion;
// booleans, numbers and nested objects pass through unchanged.
func EvaluateAttributes(p *Project, binding *DriverBinding, expander *attribute.Expander) error {
	if len(binding.RawJSON) == 0 {
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(binding.RawJSON, &raw); err != nil {
		return xerrors.Errorf("driver %q: decoding raw attributes: %w", binding.Driver, err)
	}

	out := make(map[string]json.RawMessage, len(raw))
	for name, v := range raw {
		expanded, err := expandAttributeValue(p.ID, binding.Driver, v, expander)
		if err != nil {
			return xerrors.Errorf("driver %q attribute %q: %w", binding.Driver, name, err)
		}
		out[name] = expanded
	}
	binding.Attributes = out
	return nil
}

func expandAttributeValue(projectID, packageID string, v json.RawMessage, expander *attribute.Expander) (json.RawMessage, error) {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		expanded, err := expander.Expand(projectID, packageID, s)
		if err != nil {
			return nil, err
		}
		return json.Marshal(expanded)
	}

	var list []json.RawMessage
	if err := json.Unmarshal(v, &list); err == nil {
		out := make([]json.RawMessage, len(list))
		for i, item := range list {
			expanded, err := expandAttributeValue(projectID, packageID, item, expander)
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return json.Marshal(out)
	}

	return v, nil
}
