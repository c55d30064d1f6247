// Package render writes JSON responses and the error envelopes shared by all handlers.
package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
)

const (
	ValidationErrorType = "validation_failed"
	DecodingErrorType   = "decoding_failed"
	ServiceErrorType    = "service_error"
)

// Request bodies are small: credentials, room names and message text
const maxBodyBytes = 64 << 10

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	configureValidator(validate)
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

func JSON(w http.ResponseWriter, data any) {
	write(w, http.StatusOK, data)
}

func Created(w http.ResponseWriter, data any) {
	write(w, http.StatusCreated, data)
}

// Render '{"success": true}'
func Success(w http.ResponseWriter) {
	write(w, http.StatusOK, SuccessResponse{Success: true})
}

func ServiceError(w http.ResponseWriter, message string, code int) {
	write(w, code, ErrorResponse{Error: ServiceErrorType, Message: message})
}

// Body that can't be decoded is invalid input like any other: 422
func DecodeError(w http.ResponseWriter, err error) {
	write(w, http.StatusUnprocessableEntity, ErrorResponse{Error: DecodingErrorType, Message: decodeMessage(err)})
}

func decodeMessage(err error) string {
	var (
		typeErr   *json.UnmarshalTypeError
		syntaxErr *json.SyntaxError
		tooLarge  *http.MaxBytesError
	)

	switch {
	case errors.Is(err, io.EOF):
		return "Request body is empty"
	case errors.As(err, &typeErr):
		return fmt.Sprintf("Invalid data type for field '%s'", typeErr.Field)
	case errors.As(err, &syntaxErr):
		return fmt.Sprintf("Malformed JSON at position %d", syntaxErr.Offset)
	case errors.As(err, &tooLarge):
		return fmt.Sprintf("Request body is too large (maximum %d bytes)", tooLarge.Limit)
	default:
		return fmt.Sprintf("Failed to parse JSON: %s", err)
	}
}

// Field names are json names, see configureValidator
func ValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	fields := make(map[string]string, len(errs))
	for _, fe := range errs {
		fields[fe.Field()] = validationMessage(fe)
	}

	write(w, http.StatusUnprocessableEntity, ErrorResponse{
		Error:   ValidationErrorType,
		Message: "Request validation failed",
		Fields:  fields,
	})
}

// BindAndValidate decodes request body into T and checks its 'validate' tags.
// On failure the error response is written already and the caller only has to return.
func BindAndValidate[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	return bind[T](w, r, false)
}

// BindOptional is BindAndValidate for endpoints where every field is optional:
// missing body is the zero T.
func BindOptional[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	return bind[T](w, r, true)
}

func bind[T any](w http.ResponseWriter, r *http.Request, emptyOK bool) (T, error) {
	var value T

	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&value)
	switch {
	case errors.Is(err, io.EOF) && emptyOK:
		// nothing sent, keep zero value
	case err != nil:
		DecodeError(w, err)
		return value, err
	}

	err = validate.Struct(value)
	var errs validator.ValidationErrors
	switch {
	case errors.As(err, &errs):
		ValidationErrors(w, errs)
		return value, err
	case err != nil:
		// T is not a struct: programming error
		ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return value, err
	}

	return value, nil
}

// Encoding is done before headers are sent so a failure still yields a proper 500
func write(w http.ResponseWriter, code int, data any) {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}
