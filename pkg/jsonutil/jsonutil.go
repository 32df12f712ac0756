// Package jsonutil converts between Go values and the JSON column types stored through gorm.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"
)

// NewObject returns an empty JSON object ready to be populated.
func NewObject() datatypes.JSONMap {
	return datatypes.JSONMap{}
}

// ToJSON marshals v into a JSON column value. Nil values and empty maps produce nil.
func ToJSON(v any) (datatypes.JSON, error) {
	switch typed := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		if len(typed) == 0 {
			return nil, nil
		}
	case datatypes.JSONMap:
		if len(typed) == 0 {
			return nil, nil
		}
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("jsonutil: marshal: %w", err)
	}
	return datatypes.JSON(data), nil
}

// Parse validates raw JSON text and returns it as a column value.
func Parse(raw string) (datatypes.JSON, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if !json.Valid([]byte(raw)) {
		return nil, fmt.Errorf("jsonutil: invalid json")
	}
	return datatypes.JSON(raw), nil
}

// Object decodes a JSON column into a map. Empty columns decode to an empty object.
func Object(data datatypes.JSON) (datatypes.JSONMap, error) {
	out := NewObject()
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("jsonutil: decode object: %w", err)
	}
	return out, nil
}
