package httpserver

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleIssueToken(t *testing.T) {
	ts := buildTestServer(t)
	user, _ := ts.user(t, "test_username", false)

	rec := ts.do(http.MethodPost, "/auth/token/", "", map[string]string{"username": "test_username", "password": "password"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp tokenResponse
	decodeBody(t, rec, &resp)
	require.NotEmpty(t, resp.Token)

	id, err := ts.tokens.Parse(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)

	rec = ts.do(http.MethodPost, "/book/", resp.Token, map[string]string{"name": "n", "price": "1", "author_name": "a"})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodPost, "/auth/token/", "", map[string]string{"username": "test_username", "password": "wrong"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"non_field_errors":["Unable to log in with provided credentials."]}`, rec.Body.String())

	rec = ts.do(http.MethodPost, "/auth/token/", "", map[string]string{"username": "nobody", "password": "password"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/auth/token/", "", map[string]string{"password": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"username":["This field is required."],"password":["This field may not be blank."]}`, rec.Body.String())
}

func TestHandleIssueToken_Form(t *testing.T) {
	ts := buildTestServer(t)
	ts.user(t, "test_username", false)

	form := url.Values{"username": {"test_username"}, "password": {"password"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/token/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestHandleLoginPage(t *testing.T) {
	ts := buildTestServer(t)
	rec := ts.do(http.MethodGet, "/auth/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `action="/auth/token/"`)
}
