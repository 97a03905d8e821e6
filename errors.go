/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrAuth         = errors.New("authentication error")
	ErrUnauthorized = errors.New("authorization error")
	ErrInvalidState = errors.New("invalid state")
)

// Error carries the reason string reported to clients. Kind is one of the
// sentinel errors above, so callers can branch with errors.Is.
type Error struct {
	Kind   error
	Reason string
}

func (e *Error) Error() string { return e.Reason }

func (e *Error) Unwrap() error { return e.Kind }

func validationError(reason string) error { return &Error{Kind: ErrValidation, Reason: reason} }

func notFoundError(reason string) error { return &Error{Kind: ErrNotFound, Reason: reason} }

func authError(reason string) error { return &Error{Kind: ErrAuth, Reason: reason} }

func unauthorizedError(reason string) error { return &Error{Kind: ErrUnauthorized, Reason: reason} }

func invalidStateError(reason string) error { return &Error{Kind: ErrInvalidState, Reason: reason} }

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
