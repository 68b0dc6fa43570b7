package httpserver

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/Clark-Hu/bookshelf/internal/auth"
	"github.com/Clark-Hu/bookshelf/internal/repository"
	"github.com/Clark-Hu/bookshelf/internal/validation"
)

//go:embed templates/*.html
var templateFS embed.FS

var loginTemplate = template.Must(template.ParseFS(templateFS, "templates/login.html"))

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		Title    string
		TokenURL string
	}{Title: "Bookshelf sign in", TokenURL: "/auth/token/"}
	if err := loginTemplate.Execute(w, data); err != nil {
		s.logger.Error().Err(err).Msg("render login page")
	}
}

// handleIssueToken exchanges a username and password for a bearer token.
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	raw, err := readPayload(w, r)
	if err != nil {
		s.respondPayloadError(w, err)
		return
	}

	fe := make(validation.FieldErrors)
	var username, password *string
	decodeStringField(raw, "username", &username, validation.MsgInvalidString, fe)
	decodeRawField(raw, "password", &password, validation.MsgInvalidString, fe)
	if _, failed := fe["username"]; !failed && (username == nil || *username == "") {
		fe.Add("username", requiredOrBlank(username))
	}
	if _, failed := fe["password"]; !failed && (password == nil || *password == "") {
		fe.Add("password", requiredOrBlank(password))
	}
	if err := fe.Err(); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	user, err := s.repo.Users.GetByUsername(r.Context(), *username)
	if err == nil {
		err = auth.CheckPassword(user.PasswordHash, *password)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, auth.ErrInvalidCredentials) {
			s.logger.Info().Str("username", *username).Msg("login rejected")
			s.respondJSON(w, http.StatusBadRequest, validation.FieldErrors{
				"non_field_errors": {"Unable to log in with provided credentials."},
			})
			return
		}
		s.respondServiceError(w, r, err)
		return
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: expiresAt.UTC()})
}

func requiredOrBlank(value *string) string {
	if value == nil {
		return validation.MsgRequired
	}
	return validation.MsgBlank
}
