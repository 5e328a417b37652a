package apiutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

type HandlerError struct {
	Status  int
	Message string
	Err     error
}

func (e HandlerError) Error() string {
	return e.Message
}

func (e HandlerError) Unwrap() error {
	return e.Err
}

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("missing request body")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

// DecodeOptionalJSON is DecodeJSON for endpoints whose body may be empty.
// It reports whether a body was present.
func DecodeOptionalJSON(r *http.Request, dst any) (bool, error) {
	if r.Body == nil || r.ContentLength == 0 {
		return false, nil
	}
	if err := DecodeJSON(r, dst); err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return true, err
	}
	return true, nil
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	if err := encoder.Encode(payload); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteError maps err onto a status code and writes it as JSON. Only
// HandlerError and FieldError carry a status; feature packages translate
// their domain errors into one of those first. Anything else is logged and
// reported as 500 without its detail.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.Ctx(r.Context())
	status, resp := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	} else {
		logger.Debug().Err(err).Int("status", status).Msg("Request rejected")
	}
	if werr := WriteJSON(w, status, resp); werr != nil {
		logger.Error().Err(werr).Msg("Failed to write error response")
	}
}

// StatusFor is the HTTP status WriteError would use for err.
func StatusFor(err error) int {
	status, _ := classify(err)
	return status
}

func classify(err error) (int, ErrorResponse) {
	var handlerErr HandlerError
	if errors.As(err, &handlerErr) {
		return handlerErr.Status, ErrorResponse{Error: handlerErr.Message}
	}
	var fieldErr FieldError
	if errors.As(err, &fieldErr) {
		return http.StatusBadRequest, ErrorResponse{Error: fieldErr.Error(), Field: fieldErr.Field}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: "Internal Server Error"}
}
