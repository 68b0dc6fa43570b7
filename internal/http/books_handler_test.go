package httpserver

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Clark-Hu/bookshelf/internal/auth"
	"github.com/Clark-Hu/bookshelf/internal/config"
	"github.com/Clark-Hu/bookshelf/internal/domain"
	"github.com/Clark-Hu/bookshelf/internal/policy"
	"github.com/Clark-Hu/bookshelf/internal/rating"
	"github.com/Clark-Hu/bookshelf/internal/repository"
	"github.com/Clark-Hu/bookshelf/internal/service"
	"github.com/Clark-Hu/bookshelf/internal/store"
	"github.com/Clark-Hu/bookshelf/internal/testdb"
)

func init() {
	auth.PasswordCost = bcrypt.MinCost
}

type testServer struct {
	*Server
	ctx context.Context
}

func buildTestServer(tb testing.TB) *testServer {
	tb.Helper()
	cfg := config.Config{
		Port:             "0",
		JWTSecret:        "secret",
		TokenTTLSecs:     3600,
		ReadTimeoutSecs:  15,
		WriteTimeoutSecs: 15,
		IdleTimeoutSecs:  60,
		MetricsEnabled:   true,
	}

	db := testdb.Start(tb)
	st, err := store.New(context.Background(), db.URL, store.Options{
		MaxConns:               4,
		StatementCacheCapacity: 64,
		Logger:                 zerolog.Nop(),
	})
	require.NoError(tb, err)
	tb.Cleanup(st.Close)
	repo := repository.New(st)
	p, err := policy.New()
	require.NoError(tb, err)
	tokens, err := auth.NewTokenManager(cfg.JWTSecret, time.Hour)
	require.NoError(tb, err)

	logger := zerolog.Nop()
	svc := service.New(repo, p, rating.NewService(logger), logger)
	return &testServer{Server: New(cfg, st, repo, svc, tokens, logger), ctx: context.Background()}
}

func (ts *testServer) user(tb testing.TB, username string, staff bool) (domain.User, string) {
	tb.Helper()
	hash, err := auth.HashPassword("password")
	require.NoError(tb, err)
	user, err := ts.repo.Users.Create(ts.ctx, repository.UserCreateParams{
		Username:     username,
		FirstName:    "Ivan",
		LastName:     "Petrov",
		PasswordHash: hash,
		IsStaff:      staff,
	})
	require.NoError(tb, err)
	token, _, err := ts.tokens.Issue(user)
	require.NoError(tb, err)
	return user, token
}

func (ts *testServer) book(tb testing.TB, name, price, author string, owner *domain.User) domain.Book {
	tb.Helper()
	params := repository.BookCreateParams{Name: name, Price: decimal.RequireFromString(price), AuthorName: author}
	if owner != nil {
		params.OwnerID = &owner.ID
	}
	book, err := ts.repo.Books.Create(ts.ctx, params)
	require.NoError(tb, err)
	return book
}

func (ts *testServer) do(method, target, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		payload, _ := json.Marshal(b)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), "body: %s", rec.Body.String())
}

func bookPath(id int64) string {
	return "/book/" + strconv.FormatInt(id, 10) + "/"
}

func TestHandleListBooks_Annotations(t *testing.T) {
	ts := buildTestServer(t)
	owner, _ := ts.user(t, "test_username", false)
	reader, _ := ts.user(t, "test_username2", false)

	book1 := ts.book(t, "Test Book 1", "25.00", "Author 1", &owner)
	ts.book(t, "Test Book 2", "55.00", "Author 5", nil)
	_, err := ts.svc.CreateRelation(ts.ctx, repository.RelationCreateParams{UserID: owner.ID, BookID: book1.ID, Like: true, Rate: intPtr(5)})
	require.NoError(t, err)
	_, err = ts.svc.CreateRelation(ts.ctx, repository.RelationCreateParams{UserID: reader.ID, BookID: book1.ID, Like: true, Rate: intPtr(4)})
	require.NoError(t, err)

	rec := ts.do(http.MethodGet, "/book/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var books []bookResponse
	decodeBody(t, rec, &books)
	require.Len(t, books, 2)

	first := books[0]
	assert.Equal(t, book1.ID, first.ID)
	assert.Equal(t, "25.00", first.Price)
	assert.EqualValues(t, 2, first.AnnotatedLikes)
	require.NotNil(t, first.Rating)
	assert.Equal(t, "4.50", *first.Rating)
	require.NotNil(t, first.OwnerName)
	assert.Equal(t, "test_username", *first.OwnerName)
	assert.Equal(t, []readerResponse{{"Ivan", "Petrov"}, {"Ivan", "Petrov"}}, first.Readers)

	second := books[1]
	assert.Nil(t, second.Rating)
	assert.Nil(t, second.OwnerName)
	assert.Empty(t, second.Readers)
	assert.Contains(t, rec.Body.String(), `"rating":null`)
	assert.Contains(t, rec.Body.String(), `"readers":[]`)
}

func TestHandleListBooks_FilterSearchOrder(t *testing.T) {
	ts := buildTestServer(t)
	ts.book(t, "Test Book 1", "25.00", "Author 1", nil)
	ts.book(t, "Test Book 2", "55.00", "Author 5", nil)
	ts.book(t, "Test Book Author 1", "55.00", "Author 2", nil)

	names := func(query string) []string {
		t.Helper()
		rec := ts.do(http.MethodGet, "/book/?"+query, "", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var books []bookResponse
		decodeBody(t, rec, &books)
		out := make([]string, len(books))
		for i, b := range books {
			out[i] = b.Name
		}
		return out
	}

	assert.Equal(t, []string{"Test Book 2", "Test Book Author 1"}, names("price=55"))
	assert.Equal(t, []string{"Test Book 1", "Test Book Author 1"}, names("search="+url.QueryEscape("Author 1")))
	assert.Equal(t, []string{"Test Book 2", "Test Book Author 1", "Test Book 1"}, names("ordering=-author_name"))
	assert.Equal(t, []string{"Test Book 1", "Test Book 2", "Test Book Author 1"}, names("ordering=price,bogus"))

	assert.Equal(t, []string{"Test Book 2", "Test Book Author 1"}, names("price=55.000"))
	assert.Equal(t, []string{}, names("price=1e-200000000"))
	assert.Equal(t, []string{}, names("price=55.001"))

	rec := ts.do(http.MethodGet, "/book/?price=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"price":["Enter a number."]}`, rec.Body.String())
}

func TestHandleGetBook(t *testing.T) {
	ts := buildTestServer(t)
	book := ts.book(t, "Test Book 1", "25.50", "Author 1", nil)

	for _, path := range []string{bookPath(book.ID), strings.TrimSuffix(bookPath(book.ID), "/")} {
		rec := ts.do(http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
		var got bookResponse
		decodeBody(t, rec, &got)
		assert.Equal(t, "25.50", got.Price)
	}

	rec := ts.do(http.MethodGet, bookPath(book.ID+1000), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"Not found."}`, rec.Body.String())

	rec = ts.do(http.MethodGet, "/book/abc/", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCreateBook(t *testing.T) {
	ts := buildTestServer(t)
	owner, token := ts.user(t, "test_username", false)
	other, _ := ts.user(t, "test_username2", false)

	body := map[string]interface{}{"name": "Programming in Python 3", "price": "150", "author_name": "Mark Summerfield", "owner": other.ID}

	rec := ts.do(http.MethodPost, "/book/", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"detail":"Authentication credentials were not provided."}`, rec.Body.String())
	books, err := ts.repo.Books.List(ts.ctx, repository.BookListFilters{})
	require.NoError(t, err)
	assert.Empty(t, books)

	rec = ts.do(http.MethodPost, "/book/", token, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created bookResponse
	decodeBody(t, rec, &created)
	assert.Equal(t, "150.00", created.Price)
	require.NotNil(t, created.OwnerName)
	assert.Equal(t, owner.Username, *created.OwnerName, "client supplied owner is ignored")

	rec = ts.do(http.MethodPost, "/book/", token, map[string]interface{}{"name": "  ", "price": "1.234"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{
		"name": ["This field may not be blank."],
		"price": ["Ensure that there are no more than 2 decimal places."],
		"author_name": ["This field is required."]
	}`, rec.Body.String())

	rec = ts.do(http.MethodPost, "/book/", token, "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCreateBook_Form(t *testing.T) {
	ts := buildTestServer(t)
	_, token := ts.user(t, "test_username", false)

	form := url.Values{"name": {"test_post"}, "price": {"25.5"}, "author_name": {"Valera-1"}}
	req := httptest.NewRequest(http.MethodPost, "/book/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created bookResponse
	decodeBody(t, rec, &created)
	assert.Equal(t, "25.50", created.Price)
}

func TestHandleUpdateBook_Policy(t *testing.T) {
	ts := buildTestServer(t)
	owner, ownerToken := ts.user(t, "test_username", false)
	_, otherToken := ts.user(t, "test_username2", false)
	_, staffToken := ts.user(t, "test_username3", true)
	book := ts.book(t, "Test Book 1", "25.00", "Author 1", &owner)

	body := map[string]interface{}{"name": book.Name, "price": 575, "author_name": book.AuthorName}

	rec := ts.do(http.MethodPut, bookPath(book.ID), otherToken, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"detail":"You do not have permission to perform this action."}`, rec.Body.String())

	rec = ts.do(http.MethodPut, bookPath(book.ID), "", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	stored, err := ts.repo.Books.GetByID(ts.ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "25.00", stored.Price.StringFixed(2))

	rec = ts.do(http.MethodPut, bookPath(book.ID), staffToken, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated bookResponse
	decodeBody(t, rec, &updated)
	assert.Equal(t, "575.00", updated.Price)

	rec = ts.do(http.MethodPut, bookPath(book.ID), ownerToken, map[string]interface{}{"name": "Only name"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"price":["This field is required."],"author_name":["This field is required."]}`, rec.Body.String())

	rec = ts.do(http.MethodPatch, bookPath(book.ID), ownerToken, map[string]interface{}{"name": "Only name"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeBody(t, rec, &updated)
	assert.Equal(t, "Only name", updated.Name)
	assert.Equal(t, "575.00", updated.Price)

	rec = ts.do(http.MethodPatch, bookPath(book.ID+1000), ownerToken, map[string]interface{}{"name": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleDeleteBook(t *testing.T) {
	ts := buildTestServer(t)
	owner, ownerToken := ts.user(t, "test_username", false)
	_, otherToken := ts.user(t, "test_username2", false)
	book := ts.book(t, "Test Book 1", "25.00", "Author 1", &owner)

	rec := ts.do(http.MethodDelete, bookPath(book.ID), otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodDelete, bookPath(book.ID), ownerToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = ts.do(http.MethodDelete, bookPath(book.ID), ownerToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	ts := buildTestServer(t)
	rec := ts.do(http.MethodGet, "/book/", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"detail":"Invalid token."}`, rec.Body.String())
}

func intPtr(v int) *int { return &v }

func TestHealthzAndPoolMetrics(t *testing.T) {
	ts := buildTestServer(t)

	rec := ts.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = ts.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "bookshelf_db_pool_max_conns 4")
	assert.Contains(t, body, `bookshelf_db_pool_conns{state="total"}`)
	assert.Contains(t, body, `bookshelf_db_pool_acquires{outcome="ok"}`)
}
