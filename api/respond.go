package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	g "github.com/maragudk/gomponents"
)

const maxPageSize = 100

// envelope is the response shape every endpoint uses.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, envelope{Success: true, Data: data})
}

func respondMessage(w http.ResponseWriter, status int, data any, message string) {
	writeEnvelope(w, status, envelope{Success: true, Data: data, Message: message})
}

func respondError(w http.ResponseWriter, status int, message string) {
	writeEnvelope(w, status, envelope{Success: false, Error: message})
}

// respondValidation reports field-level failures under data.errors.
func respondValidation(w http.ResponseWriter, v *validator) {
	writeEnvelope(w, http.StatusBadRequest, envelope{
		Success: false,
		Error:   "validation failed",
		Data:    map[string]any{"errors": v.Errors},
	})
}

// respondServerError logs the real error and hides it behind a generic body.
func respondServerError(w http.ResponseWriter, r *http.Request, action string, err error) {
	slog.Error(action, "error", err, "method", r.Method, "path", r.URL.Path)
	respondError(w, http.StatusInternalServerError, "something went wrong")
}

func writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.Error("Writing response", "error", err)
	}
}

func renderHTML(w http.ResponseWriter, status int, node g.Node) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := node.Render(w); err != nil {
		slog.Error("Rendering page", "error", err)
	}
}

// decodeJSON reads a single JSON body into dst, with a 1 MB cap. The error
// message is safe to echo back to the client.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	const maxBytes = 1 << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		var (
			syntaxError        *json.SyntaxError
			unmarshalTypeError *json.UnmarshalTypeError
			maxBytesError      *http.MaxBytesError
		)

		switch {
		case errors.As(err, &syntaxError), errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return errors.New("body contains an incorrect JSON type for field " + strconv.Quote(unmarshalTypeError.Field))
			}
			return errors.New("body contains an incorrect JSON type")
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case errors.As(err, &maxBytesError):
			return errors.New("body must not be larger than 1 MB")
		default:
			return errors.New("could not decode request body")
		}
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("body must contain only a single JSON value")
	}
	return nil
}

// parsePagination reads page/limit query params. Limits are clamped to
// maxPageSize, bad values fall back to defaults.
func parsePagination(r *http.Request) (page, limit, offset int) {
	page = parsePositiveInt(r.URL.Query().Get("page"), 1)
	limit = parsePositiveInt(r.URL.Query().Get("limit"), 20)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit, (page - 1) * limit
}

func parsePositiveInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
