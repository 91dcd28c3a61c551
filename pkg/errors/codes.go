package errors

// Application error codes shared by HTTP and gRPC surfaces.
const (
	ErrInternal          = "INTERNAL"
	ErrNotFound          = "NOT_FOUND"
	ErrInvalidArgument   = "INVALID_ARGUMENT"
	ErrUnauthenticated   = "UNAUTHENTICATED"
	ErrUnauthorized      = "UNAUTHORIZED"
	ErrConflict          = "CONFLICT"
	ErrTimeout           = "TIMEOUT"
	ErrNotImplemented    = "NOT_IMPLEMENTED"
	ErrUnavailable       = "UNAVAILABLE"
	ErrDownstreamFailure = "DOWNSTREAM_FAILURE"
)

// CodePair maps an application code to transport status codes.
type CodePair struct {
	HTTPStatus int
	GRPCCode   int
}

var codeMapping = map[string]CodePair{
	ErrInternal:          {500, 13}, // INTERNAL
	ErrNotFound:          {404, 5},  // NOT_FOUND
	ErrInvalidArgument:   {400, 3},  // INVALID_ARGUMENT
	ErrUnauthenticated:   {401, 16}, // UNAUTHENTICATED
	ErrUnauthorized:      {403, 7},  // PERMISSION_DENIED
	ErrConflict:          {409, 6},  // ALREADY_EXISTS
	ErrTimeout:           {504, 4},  // DEADLINE_EXCEEDED
	ErrNotImplemented:    {501, 12}, // UNIMPLEMENTED
	ErrUnavailable:       {503, 14}, // UNAVAILABLE
	ErrDownstreamFailure: {502, 14}, // UNAVAILABLE
}

// GetCodeMapping returns the HTTP status and gRPC code for code, defaulting
// to 500/INTERNAL.
func GetCodeMapping(code string) (int, int) {
	if pair, ok := codeMapping[code]; ok {
		return pair.HTTPStatus, pair.GRPCCode
	}
	return 500, 13
}
