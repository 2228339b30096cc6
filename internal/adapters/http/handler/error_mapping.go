package handler

import (
	"errors"
	"net/http"

	"github.com/ogurasousui/codex-http-clean-arch/internal/core/company"
	"github.com/ogurasousui/codex-http-clean-arch/internal/core/validation"
)

const internalErrorDetail = "the request could not be processed"

func toProblem(err error) Problem {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		return Problem{
			Type:   ProblemTypeValidation,
			Title:  "Validation Failed",
			Status: http.StatusBadRequest,
			Detail: verr.Error(),
			Fields: verr.Fields,
		}
	case errors.Is(err, validation.ErrInvalid):
		return Problem{
			Type:   ProblemTypeValidation,
			Title:  "Validation Failed",
			Status: http.StatusBadRequest,
			Detail: err.Error(),
		}
	case errors.Is(err, company.ErrCompanyNotFound):
		return Problem{
			Type:   ProblemTypeNotFound,
			Title:  "Not Found",
			Status: http.StatusNotFound,
			Detail: err.Error(),
		}
	case errors.Is(err, company.ErrRegistrationAlreadyExists):
		return Problem{
			Type:   ProblemTypeConflict,
			Title:  "Conflict",
			Status: http.StatusConflict,
			Detail: err.Error(),
		}
	default:
		return Problem{
			Type:   ProblemTypeInternal,
			Title:  "Internal Server Error",
			Status: http.StatusInternalServerError,
			Detail: internalErrorDetail,
		}
	}
}
