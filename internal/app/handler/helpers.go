// Package handler adapts the link, media and analytics services to HTTP. It
// decodes JSON bodies, reads the caller's identity from the request context
// and maps service errors onto status codes.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/linkcore/internal/apperr"
	"github.com/atinyakov/linkcore/internal/middleware"
	"github.com/atinyakov/linkcore/internal/models"
)

// malformedRequest represents an error with a malformed HTTP request.
type malformedRequest struct {
	status int    // HTTP status code for the error
	msg    string // Error message
}

// Error returns the error message for a malformed request.
func (mr *malformedRequest) Error() string {
	return mr.msg
}

// decodeJSONBody decodes a JSON request body into the given destination struct.
// It reads the content from the request body, checks for proper JSON formatting,
// and handles common errors related to JSON parsing.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	ct := r.Header.Get("Content-Type")
	if ct != "" {
		mediaType := strings.ToLower(strings.TrimSpace(strings.Split(ct, ";")[0]))
		if mediaType != "application/json" {
			msg := "Content-Type header is not application/json"
			return &malformedRequest{status: http.StatusUnsupportedMediaType, msg: msg}
		}
	}

	// Limit the size of the request body to 1MB
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)

	// Decode the JSON body into the destination struct
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(&dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError

		switch {
		case errors.As(err, &syntaxError):
			msg := fmt.Sprintf("Request body contains badly-formed JSON (at position %d)", syntaxError.Offset)
			return &malformedRequest{status: http.StatusBadRequest, msg: msg}

		case errors.Is(err, io.ErrUnexpectedEOF):
			msg := "Request body contains badly-formed JSON"
			return &malformedRequest{status: http.StatusBadRequest, msg: msg}

		case errors.As(err, &unmarshalTypeError):
			msg := fmt.Sprintf("Request body contains an invalid value for the %q field (at position %d)", unmarshalTypeError.Field, unmarshalTypeError.Offset)
			return &malformedRequest{status: http.StatusBadRequest, msg: msg}

		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			msg := fmt.Sprintf("Request body contains unknown field %s", fieldName)
			return &malformedRequest{status: http.StatusBadRequest, msg: msg}

		case errors.Is(err, io.EOF):
			msg := "Request body must not be empty"
			return &malformedRequest{status: http.StatusBadRequest, msg: msg}

		case err.Error() == "http: request body too large":
			msg := "Request body must not be larger than 1MB"
			return &malformedRequest{status: http.StatusRequestEntityTooLarge, msg: msg}

		default:
			return err
		}
	}

	// Ensure the body only contains a single JSON object
	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		msg := "Request body must only contain a single JSON object"
		return &malformedRequest{status: http.StatusBadRequest, msg: msg}
	}

	return nil
}

// writeJSON sends v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code. Unexpected errors are logged and
// reported without their cause.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var mr *malformedRequest
	switch {
	case errors.As(err, &mr):
		writeJSON(w, mr.status, models.ErrorResponse{Error: mr.msg})
	case !apperr.IsKind(err):
		logger.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: http.StatusText(http.StatusInternalServerError)})
	case errors.Is(err, apperr.ErrValidation):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, models.ErrorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
	}
}

// identity returns the caller's company and user. WithJWT guarantees both
// on authenticated routes; a missing company is answered with 401.
func identity(w http.ResponseWriter, r *http.Request) (companyID, userID string, ok bool) {
	companyID, userID, ok = middleware.Identity(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: http.StatusText(http.StatusUnauthorized)})
	}
	return companyID, userID, ok
}

// queryInt reads a positive integer query parameter. Missing or malformed
// values yield 0 so the services apply their defaults.
func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func queryBool(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}

// queryRef returns a pointer to the query value, or nil when it is absent.
func queryRef(r *http.Request, name string) *string {
	if v := r.URL.Query().Get(name); v != "" {
		return &v
	}
	return nil
}

// parseDateRange reads the from and to query parameters. Both accept
// RFC 3339 timestamps or plain dates; a plain "to" date covers the whole day.
func parseDateRange(r *http.Request) (models.DateRange, error) {
	var rng models.DateRange

	parse := func(name string, endOfDay bool) (*time.Time, error) {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			return nil, nil
		}
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return &t, nil
		}
		t, err := time.Parse(models.DateLayout, raw)
		if err != nil {
			return nil, apperr.Validation("invalid %s date: %s", name, raw)
		}
		if endOfDay {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return &t, nil
	}

	var err error
	if rng.From, err = parse("from", false); err != nil {
		return rng, err
	}
	if rng.To, err = parse("to", true); err != nil {
		return rng, err
	}
	return rng, nil
}
