package utils

// GetStringOrEmpty dereferences a nullable string field.
func GetStringOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// StrPtr returns a pointer to s, for building nullable fields in place.
func StrPtr(s string) *string {
	return &s
}

// FloatPtr returns a pointer to f.
func FloatPtr(f float64) *float64 {
	return &f
}
