package service

import "errors"

// ErrInvalidInput 请求参数不合法（在任何持久化之前返回）
var ErrInvalidInput = errors.New("invalid input")

// ValidationError is an ErrInvalidInput with a client-facing message.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Is makes every ValidationError match ErrInvalidInput.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

var (
	ErrMissingFields    = &ValidationError{Message: "Missing required fields"}
	ErrMissingProject   = &ValidationError{Message: "Missing project_number"}
	ErrInvalidLayerType = &ValidationError{Message: "Invalid layer_type"}
	ErrInvalidGeometry  = &ValidationError{Message: "Invalid GeoJSON geometry"}
	ErrNoValidFeatures  = &ValidationError{Message: "No valid features to insert"}
	ErrInvalidScope     = &ValidationError{Message: "Provide either a feature id or parent_layer_id"}
	ErrMissingCreds     = &ValidationError{Message: "Missing username or password"}
)

// ErrInvalidCredentials 用户名或密码错误（不区分哪一个）
var ErrInvalidCredentials = errors.New("invalid username or password")
