package errors

import (
	"errors"

	"github.com/ether/easysync/lib/pad"
)

var InvalidRevisionError = Error{
	Message: "Invalid revision number",
	Error:   400,
}

var RevisionHigherThanHeadError = Error{
	Message: "Revision number is higher than head",
	Error:   400,
}

var InvalidRequestError = Error{
	Message: "Invalid request",
	Error:   400,
}

var InvalidPadIdError = Error{
	Message: "Invalid pad id",
	Error:   400,
}

var PadNotFoundError = Error{
	Message: "Pad not found",
	Error:   404,
}

var PadAlreadyExistsError = Error{
	Message: "Pad already exists",
	Error:   409,
}

var TextTooLongError = Error{
	Message: "Text is too long",
	Error:   413,
}

var ValidationError = Error{
	Message: "Validation failed",
	Error:   422,
}

var InternalServerError = Error{
	Message: "Internal server error",
	Error:   500,
}

func NewValidationError(err error) Error {
	return Error{
		Message: ValidationError.Message + ": " + err.Error(),
		Error:   ValidationError.Error,
	}
}

// FromPadError maps an error of the pad manager onto its API error.
func FromPadError(err error) Error {
	switch {
	case errors.Is(err, pad.ErrInvalidPadId):
		return InvalidPadIdError
	case errors.Is(err, pad.ErrPadNotFound):
		return PadNotFoundError
	case errors.Is(err, pad.ErrPadExists):
		return PadAlreadyExistsError
	case errors.Is(err, pad.ErrTextTooLong):
		return TextTooLongError
	default:
		return InternalServerError
	}
}
