package httpserver

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/Clark-Hu/bookshelf/internal/domain"
	"github.com/Clark-Hu/bookshelf/internal/repository"
	"github.com/Clark-Hu/bookshelf/internal/service"
	"github.com/Clark-Hu/bookshelf/internal/validation"
)

const maxRequestBody = 1 << 20 // 1 MiB

const (
	detailNotFound        = "Not found."
	detailForbidden       = "You do not have permission to perform this action."
	detailUnauthenticated = "Authentication credentials were not provided."
	detailInvalidToken    = "Invalid token."
	detailServerError     = "A server error occurred."
	detailMalformedJSON   = "JSON parse error."
	detailUnsupported     = "Unsupported media type in request."
)

type detailResponse struct {
	Detail string `json:"detail"`
}

// errBadPayload is returned by readPayload; its message is the response detail.
type errBadPayload struct {
	status int
	detail string
}

func (e *errBadPayload) Error() string { return e.detail }

// readPayload returns the request body as raw JSON values keyed by field.
// JSON objects and url-encoded or multipart forms are accepted; form values
// become JSON strings.
func readPayload(w http.ResponseWriter, r *http.Request) (map[string]json.RawMessage, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()

	mediaType := "application/json"
	if ct := r.Header.Get("Content-Type"); ct != "" {
		parsed, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return nil, &errBadPayload{status: http.StatusUnsupportedMediaType, detail: detailUnsupported}
		}
		mediaType = parsed
	}

	switch mediaType {
	case "application/json":
		payload := make(map[string]json.RawMessage)
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			if errors.Is(err, io.EOF) {
				return payload, nil
			}
			return nil, &errBadPayload{status: http.StatusBadRequest, detail: detailMalformedJSON}
		}
		return payload, nil
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(maxRequestBody); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return nil, &errBadPayload{status: http.StatusBadRequest, detail: "Malformed form data."}
		}
		payload := make(map[string]json.RawMessage, len(r.PostForm))
		for key, values := range r.PostForm {
			if len(values) == 0 {
				continue
			}
			raw, err := json.Marshal(values[len(values)-1])
			if err != nil {
				return nil, err
			}
			payload[key] = raw
		}
		return payload, nil
	default:
		return nil, &errBadPayload{status: http.StatusUnsupportedMediaType, detail: `Unsupported media type "` + mediaType + `" in request.`}
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Error().Err(err).Msg("failed to encode response")
		}
	}
}

func (s *Server) respondDetail(w http.ResponseWriter, status int, detail string) {
	s.respondJSON(w, status, detailResponse{Detail: detail})
}

func (s *Server) respondPayloadError(w http.ResponseWriter, err error) {
	var bad *errBadPayload
	if errors.As(err, &bad) {
		s.respondDetail(w, bad.status, bad.detail)
		return
	}
	s.respondDetail(w, http.StatusBadRequest, detailMalformedJSON)
}

// respondServiceError maps domain and repository errors onto responses.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var fe validation.FieldErrors
	switch {
	case errors.As(err, &fe):
		s.respondJSON(w, http.StatusBadRequest, fe)
	case errors.Is(err, repository.ErrNotFound):
		s.respondDetail(w, http.StatusNotFound, detailNotFound)
	case errors.Is(err, service.ErrForbidden):
		s.respondDetail(w, http.StatusForbidden, detailForbidden)
	case errors.Is(err, service.ErrUnauthenticated):
		s.respondDetail(w, http.StatusUnauthorized, detailUnauthenticated)
	case errors.Is(err, domain.ErrInvalidRate):
		s.respondJSON(w, http.StatusBadRequest, validation.FieldErrors{"rate": {"Invalid rate."}})
	case errors.Is(err, repository.ErrConflict):
		s.respondJSON(w, http.StatusBadRequest, validation.FieldErrors{"non_field_errors": {"The fields user, book must make a unique set."}})
	default:
		s.logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		s.respondDetail(w, http.StatusInternalServerError, detailServerError)
	}
}

// rawString decodes a CharField-like value: strings pass, numbers are
// rendered as written, anything else is invalid.
func rawString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

// rawBool accepts the usual boolean spellings.
func rawBool(raw json.RawMessage) (bool, bool) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, true
	}
	s, ok := rawString(raw)
	if !ok {
		return false, false
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on", "y", "t":
		return true, true
	case "false", "0", "no", "off", "n", "f":
		return false, true
	}
	return false, false
}

// formRequest reports whether the body was sent as a url-encoded or
// multipart form.
func formRequest(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data"
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}
