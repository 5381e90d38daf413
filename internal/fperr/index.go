package fperr

import (
	"errors"

	"github.com/turbot/pipe-fittings/perr"
)

const (
	ErrorCodeConfiguration   = "error_configuration"
	ErrorCodeExecutionFailed = "error_execution_failed"
	ErrorCodeBackend         = "error_backend"
	ErrorCodeNotFound        = "error_not_found"
	ErrorCodeUnknownError    = "error_unknown_error"

	ExitCodeExecutionFailed    = 2
	ExitCodeConfiguration      = 3
	ExitCodeBackend            = 4
	ExitCodeNotFound           = 5
	ExitCodeUnknownFlowciError = 10
)

// ConfigurationWithMessage creates an error for a malformed pipeline tree or
// definition file.
func ConfigurationWithMessage(msg string) perr.ErrorModel {
	e := perr.BadRequestWithMessage(msg)
	e.Type = ErrorCodeConfiguration
	return e
}

// ExecutionFailedWithMessage creates the error reported when a run completes
// but the root result has a failure status.
func ExecutionFailedWithMessage(msg string) perr.ErrorModel {
	e := perr.InternalWithMessage(msg)
	e.Type = ErrorCodeExecutionFailed
	return e
}

func BackendWithMessage(msg string) perr.ErrorModel {
	e := perr.InternalWithMessage(msg)
	e.Type = ErrorCodeBackend
	return e
}

func NotFoundWithMessage(msg string) perr.ErrorModel {
	e := perr.NotFoundWithMessage(msg)
	e.Type = ErrorCodeNotFound
	return e
}

// Wrap converts any error into an ErrorModel carrying the given code. Errors
// that already are ErrorModels keep their type unless it is empty.
func Wrap(sourceError error, errorCode string) perr.ErrorModel {
	var flowciError perr.ErrorModel
	if errors.As(sourceError, &flowciError) {
		if flowciError.Type == "" {
			flowciError.Type = errorCode
		}
		return flowciError
	}

	flowciError = perr.Internal(sourceError)
	flowciError.Type = errorCode
	return flowciError
}

func HasCode(err error, errorCode string) bool {
	var e perr.ErrorModel
	if errors.As(err, &e) {
		return e.Type == errorCode
	}
	return false
}

func IsConfigurationError(err error) bool {
	return HasCode(err, ErrorCodeConfiguration)
}

func GetExitCode(err error, fromPanic bool) int {
	if err == nil {
		return 0
	}

	if fromPanic {
		return ExitCodeUnknownFlowciError
	}

	var e perr.ErrorModel
	if errors.As(err, &e) {
		switch e.Type {
		case ErrorCodeConfiguration:
			return ExitCodeConfiguration
		case ErrorCodeExecutionFailed:
			return ExitCodeExecutionFailed
		case ErrorCodeNotFound:
			return ExitCodeNotFound
		case ErrorCodeUnknownError:
			return ExitCodeUnknownFlowciError
		}
	}

	// anything a step or the engine raised without classification is a backend error
	return ExitCodeBackend
}
