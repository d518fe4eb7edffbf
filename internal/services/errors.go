package services

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is the error taxonomy surfaced to callers.
type ErrorKind int

const (
	KindNotFound ErrorKind = iota + 1
	KindForbidden
	KindBadRequest
	KindConflict
)

// HTTPStatus maps a kind to its response status.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindBadRequest:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

type DomainError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(kind ErrorKind, code, message string, details any) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func notFound(what string) *DomainError {
	return domainError(KindNotFound, "NOT_FOUND", what+" not found", nil)
}

func forbidden(message string) *DomainError {
	return domainError(KindForbidden, "FORBIDDEN", message, nil)
}

func badRequest(code, message string, details any) *DomainError {
	return domainError(KindBadRequest, code, message, details)
}

func conflict(code, message string) *DomainError {
	return domainError(KindConflict, code, message, nil)
}

// AsDomainError unwraps err into a *DomainError if it carries one.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// IsKind reports whether err is a DomainError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	de, ok := AsDomainError(err)
	return ok && de.Kind == kind
}
