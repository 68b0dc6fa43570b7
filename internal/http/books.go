package httpserver

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/Clark-Hu/bookshelf/internal/domain"
	"github.com/Clark-Hu/bookshelf/internal/repository"
	"github.com/Clark-Hu/bookshelf/internal/service"
	"github.com/Clark-Hu/bookshelf/internal/validation"
)

// bookPayload is the body of POST and PUT; every field is required.
type bookPayload struct {
	Name       *string `json:"name" validate:"required,nonblank,max=255"`
	Price      *string `json:"price" validate:"required,decimal,max_digits=7,decimal_places=2,max_whole_digits=5"`
	AuthorName *string `json:"author_name" validate:"required,nonblank,max=255"`
}

// bookPatchPayload is the body of PATCH; absent fields are left unchanged.
type bookPatchPayload struct {
	Name       *string `json:"name" validate:"omitnil,nonblank,max=255"`
	Price      *string `json:"price" validate:"omitnil,decimal,max_digits=7,decimal_places=2,max_whole_digits=5"`
	AuthorName *string `json:"author_name" validate:"omitnil,nonblank,max=255"`
}

type readerResponse struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type bookResponse struct {
	ID             int64            `json:"id"`
	Name           string           `json:"name"`
	Price          string           `json:"price"`
	AuthorName     string           `json:"author_name"`
	AnnotatedLikes int64            `json:"annotated_likes"`
	Rating         *string          `json:"rating"`
	OwnerName      *string          `json:"owner_name"`
	Readers        []readerResponse `json:"readers"`
}

func toBookResponse(book domain.Book) bookResponse {
	resp := bookResponse{
		ID:             book.ID,
		Name:           book.Name,
		Price:          book.Price.StringFixed(2),
		AuthorName:     book.AuthorName,
		AnnotatedLikes: book.AnnotatedLikes,
		OwnerName:      book.OwnerName,
		Readers:        make([]readerResponse, 0, len(book.Readers)),
	}
	if book.Rating.Valid {
		rating := book.Rating.Decimal.StringFixed(2)
		resp.Rating = &rating
	}
	for _, reader := range book.Readers {
		resp.Readers = append(resp.Readers, readerResponse{FirstName: reader.FirstName, LastName: reader.LastName})
	}
	return resp
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	filters, err := buildBookFilters(r.URL.Query())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	books, err := s.svc.ListBooks(r.Context(), filters)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	items := make([]bookResponse, 0, len(books))
	for _, book := range books {
		items = append(items, toBookResponse(book))
	}
	s.respondJSON(w, http.StatusOK, items)
}

// buildBookFilters reads price, search and ordering. Unknown ordering fields
// are ignored.
func buildBookFilters(query url.Values) (repository.BookListFilters, error) {
	var filters repository.BookListFilters

	if val := strings.TrimSpace(query.Get("price")); val != "" {
		price, err := decimal.NewFromString(val)
		if err != nil {
			return filters, validation.FieldErrors{"price": {"Enter a number."}}
		}
		if stored, ok := storablePrice(price); ok {
			filters.Price = &stored
		} else {
			filters.MatchNone = true
		}
	}

	if val := query.Get("search"); val != "" {
		val = strings.ReplaceAll(strings.ReplaceAll(val, "\x00", ""), ",", " ")
		filters.Search = strings.Fields(val)
	}

	if val := query.Get("ordering"); val != "" {
		for _, term := range strings.Split(val, ",") {
			term = strings.TrimSpace(term)
			desc := strings.HasPrefix(term, "-")
			field := strings.TrimPrefix(term, "-")
			if _, ok := repository.OrderableFields[field]; !ok {
				continue
			}
			filters.Ordering = append(filters.Ordering, repository.OrderField{Field: field, Desc: desc})
		}
	}
	return filters, nil
}

const (
	priceMaxDigits = 7
	pricePlaces    = 2
	// priceExpLimit bounds the exponent before any rescaling.
	priceExpLimit = 32
)

// storablePrice returns d at the scale of books.price, or false when no
// NUMERIC(7,2) value can equal it.
func storablePrice(d decimal.Decimal) (decimal.Decimal, bool) {
	if d.IsZero() {
		return decimal.Zero, true
	}
	if exp := d.Exponent(); exp < -priceExpLimit || exp > priceExpLimit {
		return decimal.Decimal{}, false
	}
	rounded := d.Round(pricePlaces)
	if !rounded.Equal(d) {
		return decimal.Decimal{}, false
	}
	if validation.PrecisionOf(rounded).Digits > priceMaxDigits {
		return decimal.Decimal{}, false
	}
	return rounded, true
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := bookIDParam(r, "id")
	if !ok {
		s.respondDetail(w, http.StatusNotFound, detailNotFound)
		return
	}
	book, err := s.svc.GetBook(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toBookResponse(book))
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	if !actor.Authenticated() {
		s.respondDetail(w, http.StatusUnauthorized, detailUnauthenticated)
		return
	}

	raw, err := readPayload(w, r)
	if err != nil {
		s.respondPayloadError(w, err)
		return
	}
	var payload bookPayload
	if err := s.decodeBook(raw, &payload.Name, &payload.Price, &payload.AuthorName, &payload); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	book, err := s.svc.CreateBook(r.Context(), actor, service.BookInput{
		Name:       *payload.Name,
		Price:      decimal.RequireFromString(*payload.Price),
		AuthorName: *payload.AuthorName,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", "/book/"+strconv.FormatInt(book.ID, 10)+"/")
	s.respondJSON(w, http.StatusCreated, toBookResponse(book))
}

func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	var payload bookPayload
	s.updateBook(w, r, &payload.Name, &payload.Price, &payload.AuthorName, &payload)
}

func (s *Server) handlePartialUpdateBook(w http.ResponseWriter, r *http.Request) {
	var payload bookPatchPayload
	s.updateBook(w, r, &payload.Name, &payload.Price, &payload.AuthorName, &payload)
}

// updateBook serves PUT and PATCH. The book is looked up and the policy
// checked before the body is validated.
func (s *Server) updateBook(w http.ResponseWriter, r *http.Request, name, price, author **string, payload interface{}) {
	id, ok := bookIDParam(r, "id")
	if !ok {
		s.respondDetail(w, http.StatusNotFound, detailNotFound)
		return
	}
	actor := actorFrom(r.Context())
	if err := s.checkWritable(r, actor, id); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	raw, err := readPayload(w, r)
	if err != nil {
		s.respondPayloadError(w, err)
		return
	}
	if err := s.decodeBook(raw, name, price, author, payload); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	params := repository.BookUpdateParams{Name: *name, AuthorName: *author}
	if *price != nil {
		value := decimal.RequireFromString(**price)
		params.Price = &value
	}

	book, err := s.svc.UpdateBook(r.Context(), actor, id, params)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toBookResponse(book))
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := bookIDParam(r, "id")
	if !ok {
		s.respondDetail(w, http.StatusNotFound, detailNotFound)
		return
	}
	if err := s.svc.DeleteBook(r.Context(), actorFrom(r.Context()), id); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// checkWritable reports not-found and denial before any body parsing.
func (s *Server) checkWritable(r *http.Request, actor domain.Actor, id int64) error {
	book, err := s.svc.GetBook(r.Context(), id)
	if err != nil {
		return err
	}
	if !s.svc.MayWrite(actor, book) {
		return service.ErrForbidden
	}
	return nil
}

// decodeBook fills the three string fields from raw and validates payload.
// A field with a decoding error is not validated further.
func (s *Server) decodeBook(raw map[string]json.RawMessage, name, price, author **string, payload interface{}) error {
	fe := make(validation.FieldErrors)
	decodeStringField(raw, "name", name, validation.MsgInvalidString, fe)
	decodeStringField(raw, "price", price, validation.MsgInvalidNumber, fe)
	decodeStringField(raw, "author_name", author, validation.MsgInvalidString, fe)

	if err := s.validator.Struct(payload); err != nil {
		verr, ok := err.(validation.FieldErrors)
		if !ok {
			return err
		}
		for field, msgs := range verr {
			if _, seen := fe[field]; !seen {
				fe[field] = msgs
			}
		}
	}
	return fe.Err()
}

// decodeStringField reads a trimmed string field into dst.
func decodeStringField(raw map[string]json.RawMessage, field string, dst **string, invalid string, fe validation.FieldErrors) {
	decodeRawField(raw, field, dst, invalid, fe)
	if *dst != nil {
		trimmed := strings.TrimSpace(**dst)
		*dst = &trimmed
	}
}

func decodeRawField(raw map[string]json.RawMessage, field string, dst **string, invalid string, fe validation.FieldErrors) {
	value, present := raw[field]
	if !present {
		return
	}
	if isNull(value) {
		fe.Add(field, validation.MsgNull)
		return
	}
	str, ok := rawString(value)
	if !ok {
		fe.Add(field, invalid)
		return
	}
	*dst = &str
}

func bookIDParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
