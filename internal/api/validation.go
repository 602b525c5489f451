package api

import (
	"errors"
	"net/http"

	"cascade/internal/grid"

	"github.com/gin-gonic/gin"
)

type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Коды ошибок API
const (
	ErrNotFound          = "not_found"
	ErrInvalidReference  = "invalid_reference"
	ErrOptionUnavailable = "option_unavailable"
	ErrUniqueViolation   = "unique_violation"
	ErrSizeNotAllowed    = "size_not_allowed"
	ErrInvalidJSON       = "invalid_json"
	ErrSchemaLint        = "schema_lint"
	ErrInternal          = "internal"
)

func ferr(code, field, msg string) FieldError {
	return FieldError{Code: code, Field: field, Message: msg}
}

// codeFor сопоставляет ошибку ядра коду API
func codeFor(err error) string {
	var lint *LintError
	switch {
	case errors.Is(err, ErrRowNotFound):
		return ErrNotFound
	case errors.Is(err, ErrRowCountNotAllowed):
		return ErrSizeNotAllowed
	case errors.Is(err, grid.ErrOptionTaken):
		return ErrUniqueViolation
	case errors.Is(err, grid.ErrOptionUnavailable):
		return ErrOptionUnavailable
	case errors.Is(err, grid.ErrInvalidReference):
		return ErrInvalidReference
	case errors.As(err, &lint):
		return ErrSchemaLint
	default:
		return ErrInternal
	}
}

func statusForErrors(errs []FieldError) int {
	status := http.StatusBadRequest
	for _, e := range errs {
		switch e.Code {
		case ErrNotFound:
			return http.StatusNotFound
		case ErrUniqueViolation:
			return http.StatusConflict
		case ErrOptionUnavailable:
			status = http.StatusUnprocessableEntity
		case ErrInternal:
			return http.StatusInternalServerError
		}
	}
	return status
}

// abortWithError отвечает {"errors":[...]} со статусом по коду ошибки
func abortWithError(c *gin.Context, err error, field string) {
	errs := []FieldError{ferr(codeFor(err), field, err.Error())}
	c.AbortWithStatusJSON(statusForErrors(errs), gin.H{"errors": errs})
}

func invalidJSON(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"errors": []FieldError{ferr(ErrInvalidJSON, "body", err.Error())},
	})
}
