package bridge

import (
	"errors"
	"net/http"
)

// Code classifies why a call was rejected.
type Code string

const (
	CodeNoData            Code = "NO_DATA"
	CodePermissionDenied  Code = "PERMISSION_DENIED"
	CodeSensorUnavailable Code = "SENSOR_UNAVAILABLE"
	CodeInvalidArgument   Code = "INVALID_ARGUMENT"
	CodeUnavailable       Code = "UNAVAILABLE"
	CodeUnimplemented     Code = "UNIMPLEMENTED"
)

// Caller-facing messages. Hybrid-app code matches on these strings, so they
// must not change.
const (
	MsgPermissionNotGranted = "Activity recognition permission not granted"
	MsgSensorUnavailable    = "Step sensor not available on this device"
	MsgNoDataYet            = "No step data available yet. Try again after walking a few steps."
	MsgNoWindowData         = "No step data available. Make sure step counting is active."
	MsgNoSensorData         = "No sensor data available yet. Try again after walking a few steps."
	MsgMissingValue         = "Must provide a string value"
)

// Rejection is a call failure that is reported to the caller rather than
// treated as an internal error.
type Rejection struct {
	Code    Code
	Message string
	Err     error
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return r.Message + ": " + r.Err.Error()
	}
	return r.Message
}

func (r *Rejection) Unwrap() error { return r.Err }

func reject(code Code, msg string, err error) *Rejection {
	return &Rejection{Code: code, Message: msg, Err: err}
}

// AsRejection extracts a Rejection from err, classifying anything else as
// UNAVAILABLE.
func AsRejection(err error) *Rejection {
	var r *Rejection
	if errors.As(err, &r) {
		return r
	}
	return reject(CodeUnavailable, "Step bridge unavailable", err)
}

// HTTPStatus maps a rejection code to the envelope status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNoData:
		return http.StatusNotFound
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeUnimplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusServiceUnavailable
	}
}
