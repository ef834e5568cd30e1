// Package web defines common components for a web application.
package web

import (
	"github.com/go-playground/validator/v10"
)

// Response holds the common response type for all APIs.
type Response struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// Error wraps a given err into json frinedly struct.
func Error(err error) Response {
	return Response{Error: err.Error()}
}

// ErrorWithCode wraps err together with its machine readable code.
func ErrorWithCode(err error, code string) Response {
	return Response{Error: err.Error(), Code: code}
}

// GetErrorMsg returns a human readable message for a failed validation tag.
func GetErrorMsg(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return " field is required"
	case "min":
		return " must be at least " + fe.Param()
	case "max":
		return " must be at most " + fe.Param()
	case "money":
		return " must be a positive amount with at most 2 decimals"
	case "oneof":
		return " must be one of: " + fe.Param()
	case "len":
		return " must be " + fe.Param() + " characters long"
	case "alphanum":
		return " must be alphanumeric"
	}

	return " is invalid"
}
