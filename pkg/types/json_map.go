package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap stores an arbitrary JSON object inside a JSONB column.
type JSONMap map[string]any

// Value serializes the map to JSON.
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	raw, err := json.Marshal(map[string]any(j))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan decodes JSONB (or sqlite TEXT) into the map.
func (j *JSONMap) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("json map: unsupported scan type %T", value)
	}
	if len(raw) == 0 {
		*j = nil
		return nil
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*j = decoded
	return nil
}

// GormDataType marks the map as a column value rather than an association.
func (JSONMap) GormDataType() string {
	return "jsonb"
}
