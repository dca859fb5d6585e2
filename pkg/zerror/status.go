package zerror

// Status is a transport agnostic error classification. The HTTP layer maps it
// to a status code; other transports are free to map it differently.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusUnauthorized
	StatusForbidden
	StatusNotFound
	StatusUnprocessableEntity
	StatusConflict
	StatusTooManyRequests
	StatusBadRequest
	StatusValidationFailed
	StatusInternalServerError
	StatusTimeout
	StatusNotImplemented
	StatusBadGateway
	StatusServiceUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusUnauthorized:
		return "unauthorized"
	case StatusForbidden:
		return "forbidden"
	case StatusNotFound:
		return "not_found"
	case StatusUnprocessableEntity:
		return "unprocessable_entity"
	case StatusConflict:
		return "conflict"
	case StatusTooManyRequests:
		return "too_many_requests"
	case StatusBadRequest:
		return "bad_request"
	case StatusValidationFailed:
		return "validation_failed"
	case StatusInternalServerError:
		return "internal_server_error"
	case StatusTimeout:
		return "timeout"
	case StatusNotImplemented:
		return "not_implemented"
	case StatusBadGateway:
		return "bad_gateway"
	case StatusServiceUnavailable:
		return "service_unavailable"
	default:
		return "unknown"
	}
}
