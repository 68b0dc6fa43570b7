package httpserver

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func relationPath(bookID int64) string {
	return "/book-relation/" + strconv.FormatInt(bookID, 10) + "/"
}

func TestHandlePatchRelation(t *testing.T) {
	ts := buildTestServer(t)
	owner, _ := ts.user(t, "test_username", false)
	reader, token := ts.user(t, "test_username2", false)
	book := ts.book(t, "Test Book 1", "25.00", "Author 1", &owner)

	rec := ts.do(http.MethodPatch, relationPath(book.ID), "", map[string]interface{}{"like": true})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodPatch, relationPath(book.ID), token, map[string]interface{}{"like": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"book":`+strconv.FormatInt(book.ID, 10)+`,"like":true,"in_bookmarks":false,"rate":null}`, rec.Body.String())

	rel, err := ts.repo.Relations.Get(ts.ctx, reader.ID, book.ID)
	require.NoError(t, err)
	assert.True(t, rel.Like)

	rec = ts.do(http.MethodPatch, relationPath(book.ID), token, map[string]interface{}{"rate": 3, "in_bookmarks": "true"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got relationResponse
	decodeBody(t, rec, &got)
	assert.True(t, got.Like)
	assert.True(t, got.InBookmarks)
	require.NotNil(t, got.Rate)
	assert.Equal(t, 3, *got.Rate)

	stored, err := ts.repo.Books.GetByID(ts.ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "3.00", stored.Rating.Decimal.StringFixed(2))

	rec = ts.do(http.MethodPatch, relationPath(book.ID), token, map[string]interface{}{"rate": nil})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stored, err = ts.repo.Books.GetByID(ts.ctx, book.ID)
	require.NoError(t, err)
	assert.False(t, stored.Rating.Valid)
}

func TestHandlePatchRelation_InvalidRate(t *testing.T) {
	ts := buildTestServer(t)
	reader, token := ts.user(t, "test_username2", false)
	book := ts.book(t, "Test Book 1", "25.00", "Author 1", nil)

	rec := ts.do(http.MethodPatch, relationPath(book.ID), token, map[string]interface{}{"rate": 7})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"rate":["\"7\" is not a valid choice."]}`, rec.Body.String())

	rec = ts.do(http.MethodPatch, relationPath(book.ID), token, map[string]interface{}{"like": "maybe"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"like":["Must be a valid boolean."]}`, rec.Body.String())

	rels, err := ts.repo.Relations.ListByBook(ts.ctx, book.ID)
	require.NoError(t, err)
	assert.Empty(t, rels, "rejected payloads create no relation")

	_, err = ts.repo.Relations.Get(ts.ctx, reader.ID, book.ID)
	assert.Error(t, err)
}

func TestHandlePatchRelation_UnknownBookAndMethods(t *testing.T) {
	ts := buildTestServer(t)
	_, token := ts.user(t, "test_username2", false)
	book := ts.book(t, "Test Book 1", "25.00", "Author 1", nil)

	rec := ts.do(http.MethodPatch, relationPath(book.ID+1000), token, map[string]interface{}{"like": true})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"Not found."}`, rec.Body.String())

	for _, method := range []string{http.MethodGet, http.MethodPut} {
		rec = ts.do(method, relationPath(book.ID), token, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
	}
}

func TestHandlePatchRelation_BlankFormRateClears(t *testing.T) {
	ts := buildTestServer(t)
	_, token := ts.user(t, "test_username2", false)
	book := ts.book(t, "Test Book 1", "25.00", "Author 1", nil)

	patchForm := func(form url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPatch, relationPath(book.ID), strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		ts.Handler().ServeHTTP(rec, req)
		return rec
	}

	rec := patchForm(url.Values{"rate": {"4"}, "like": {"on"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"book":`+strconv.FormatInt(book.ID, 10)+`,"like":true,"in_bookmarks":false,"rate":4}`, rec.Body.String())

	stored, err := ts.repo.Books.GetByID(ts.ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "4.00", stored.Rating.Decimal.StringFixed(2))

	rec = patchForm(url.Values{"rate": {""}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"book":`+strconv.FormatInt(book.ID, 10)+`,"like":true,"in_bookmarks":false,"rate":null}`, rec.Body.String())

	stored, err = ts.repo.Books.GetByID(ts.ctx, book.ID)
	require.NoError(t, err)
	assert.False(t, stored.Rating.Valid)

	rec = ts.do(http.MethodPatch, relationPath(book.ID), token, map[string]interface{}{"rate": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"rate":["\"\" is not a valid choice."]}`, rec.Body.String())
}
