package canvas

import "fmt"

// AuthError is a fatal credential or permission failure: an invalid or
// expired token, or a token that cannot access the requested course. There
// is no retry for these; the message tells the user what to fix.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("canvas: %s", e.Reason)
}

// DataShapeError reports an unexpected value shape in an API response, such
// as a non-numeric sentinel where a score was expected. These fail parsing
// instead of being silently coerced downstream.
type DataShapeError struct {
	Field string
	Raw   string
}

func (e *DataShapeError) Error() string {
	return fmt.Sprintf("canvas: unexpected value %s in field %q", e.Raw, e.Field)
}

// NotFoundError reports a course id the API does not know about.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("canvas: %s %s not found", e.Resource, e.ID)
}
