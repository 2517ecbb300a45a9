package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FlexString absorbs fields the API serves sometimes as a JSON string and
// sometimes as a bare number (student ids in particular).
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*s = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	*s = FlexString(raw)
	return nil
}

// FlexFloat absorbs numeric fields that arrive as a number, a quoted number,
// an empty string or null. Anything unparseable degrades to invalid rather
// than failing the record.
type FlexFloat struct {
	Value float64
	Valid bool
}

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(strings.Trim(strings.TrimSpace(string(b)), `"`))
	if raw == "" || raw == "null" {
		f.Valid = false
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		f.Valid = false
		return nil
	}
	f.Value = v
	f.Valid = true
	return nil
}

func (f FlexFloat) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Ptr returns the value as a nullable float for storage.
func (f *FlexFloat) Ptr() *float64 {
	if f == nil || !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}
