package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument      = 1000
	ErrCodeInvalidJSON          = 1001
	ErrCodeRequestTooLarge      = 1002
	ErrCodeInvalidID            = 1004
	ErrCodeInvalidTitle         = 1005
	ErrCodeInvalidBody          = 1006
	ErrCodeInvalidDirection     = 1007
	ErrCodeInvalidImage         = 1008
	ErrCodeMissingRequired      = 1009
	ErrCodeImageTooLarge        = 1010
	ErrCodeUnsupportedMediaType = 1011

	// Domain state (2xxx)
	ErrCodeRouteNotFound = 2000
	ErrCodePostNotFound  = 2001
	ErrCodeImageNotFound = 2002

	// Limits (3xxx)
	ErrCodeResourceExhausted = 3003

	// Internal/system (4xxx)
	ErrCodeInternal     = 4001
	ErrCodeStoreFailure = 4002
	ErrCodeBlobFailure  = 4003
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return ErrCodeInvalidArgument
	case 404:
		return ErrCodePostNotFound
	case 429:
		return ErrCodeResourceExhausted
	case 500:
		return ErrCodeInternal
	default:
		return 0
	}
}
