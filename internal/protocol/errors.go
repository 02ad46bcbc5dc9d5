package protocol

const (
	// Input validation.
	ErrBadRequest = "E_BAD_REQUEST"

	// Identity/session layer.
	ErrNotFound = "E_NOT_FOUND"
	ErrConflict = "E_CONFLICT"
	ErrNoAuth   = "E_NO_AUTH"

	// Action layer.
	ErrRateLimit  = "E_RATE_LIMIT"
	ErrNoResource = "E_NO_RESOURCE"

	// Failure layer.
	ErrUpstream = "E_UPSTREAM"
	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest: {},
	ErrNotFound:   {},
	ErrConflict:   {},
	ErrNoAuth:     {},
	ErrRateLimit:  {},
	ErrNoResource: {},
	ErrUpstream:   {},
	ErrInternal:   {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
