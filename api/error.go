package api

import (
	"net/url"

	"github.com/kostiamol/farmms/svc"
)

// Error codes.
const (
	ErrService     = "ERR_SERVICE"
	ErrNotFound    = "ERR_NOT_FOUND"
	ErrBadRequest  = "ERR_BAD_REQUEST"
	ErrBadParam    = "ERR_BAD_PARAM"
	ErrUnavailable = "ERR_UNAVAILABLE"
)

type (
	apiError struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}

	validationError struct {
		apiError
		GlobalMessage []string
		Errors        url.Values
	}
)

func (e apiError) Error() string { return e.Message }

func (e validationError) Error() string { return e.Message }

func newServiceError() apiError {
	return apiError{Code: ErrService, Message: "Internal Server Error"}
}

func newNotFoundError(what string) apiError {
	return apiError{Code: ErrNotFound, Message: what + " not found"}
}

func newBadRequestError(msg string) apiError {
	return apiError{Code: ErrBadRequest, Message: msg}
}

func newUnavailableError() apiError {
	return apiError{Code: ErrUnavailable, Message: "Store unavailable"}
}

func newValidationError(errs url.Values, global ...string) validationError {
	return validationError{
		apiError:      apiError{Code: ErrBadParam, Message: "Bad request"},
		GlobalMessage: global,
		Errors:        errs,
	}
}

// fromEngineError maps the errors returned by the farm state to their REST form.
func fromEngineError(err error) error {
	switch e := err.(type) {
	case *svc.NotFoundError:
		return newNotFoundError("preset " + e.Name)
	case *svc.StoreError:
		return newUnavailableError()
	case *svc.ValidationError:
		return newValidationError(url.Values{}, e.Err.Error())
	default:
		return err
	}
}
