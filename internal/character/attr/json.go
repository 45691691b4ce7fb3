package attr

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON renders the state as a flat object keyed by rendered keys.
func (s State) MarshalJSON() ([]byte, error) {
	flat := make(map[string]float64, len(s))
	for k, v := range s {
		flat[k.String()] = v
	}
	return json.Marshal(flat)
}

// UnmarshalJSON parses a flat object, rejecting unknown or derived keys.
func (s *State) UnmarshalJSON(data []byte) error {
	var flat map[string]float64
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	parsed, err := FromMap(flat)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// FromMap builds a state from rendered keys.
func FromMap(flat map[string]float64) (State, error) {
	out := make(State, len(flat))
	for raw, v := range flat {
		k, err := ParseKey(raw)
		if err != nil {
			return nil, err
		}
		if !k.Raw() {
			return nil, fmt.Errorf("%w: %q is derived", ErrMalformedKey, raw)
		}
		out.Set(k, v)
	}
	return out, nil
}

// ToMap renders the state as a flat map.
func (s State) ToMap() map[string]float64 {
	flat := make(map[string]float64, len(s))
	for k, v := range s {
		flat[k.String()] = v
	}
	return flat
}
