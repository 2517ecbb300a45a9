package models

// APIResponse is the JSON envelope every edustems endpoint wraps its payload
// in. Responses that do not decode into this shape are treated as fetch
// failures.
type APIResponse[T any] struct {
	Data []T `json:"data"`
}
