package httpserver

import (
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/Clark-Hu/bookshelf/internal/domain"
	"github.com/Clark-Hu/bookshelf/internal/service"
	"github.com/Clark-Hu/bookshelf/internal/validation"
)

type relationRatePayload struct {
	Rate *string `json:"rate" validate:"omitnil,rate"`
}

type relationResponse struct {
	Book        int64 `json:"book"`
	Like        bool  `json:"like"`
	InBookmarks bool  `json:"in_bookmarks"`
	Rate        *int  `json:"rate"`
}

func toRelationResponse(rel domain.Relation) relationResponse {
	return relationResponse{
		Book:        rel.BookID,
		Like:        rel.Like,
		InBookmarks: rel.InBookmarks,
		Rate:        rel.Rate,
	}
}

// handlePatchRelation updates the caller's relation to a book, creating it on
// first use. The body is validated before anything is written.
func (s *Server) handlePatchRelation(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	if !actor.Authenticated() {
		s.respondDetail(w, http.StatusUnauthorized, detailUnauthenticated)
		return
	}
	bookID, ok := bookIDParam(r, "bookID")
	if !ok {
		s.respondDetail(w, http.StatusNotFound, detailNotFound)
		return
	}

	raw, err := readPayload(w, r)
	if err != nil {
		s.respondPayloadError(w, err)
		return
	}
	patch, err := s.decodeRelationPatch(raw, formRequest(r))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	rel, err := s.svc.PatchRelation(r.Context(), actor, bookID, patch)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toRelationResponse(rel))
}

// decodeRelationPatch reads like, in_bookmarks and rate. A blank form rate
// clears it, as null does in JSON.
func (s *Server) decodeRelationPatch(raw map[string]json.RawMessage, form bool) (service.RelationPatch, error) {
	var patch service.RelationPatch
	fe := make(validation.FieldErrors)

	decodeBool := func(field string) *bool {
		value, present := raw[field]
		if !present {
			return nil
		}
		b, ok := rawBool(value)
		if !ok {
			fe.Add(field, validation.MsgInvalidBoolean)
			return nil
		}
		return &b
	}
	patch.Like = decodeBool("like")
	patch.InBookmarks = decodeBool("in_bookmarks")

	if value, present := raw["rate"]; present {
		patch.Rate.Set = true
		if form {
			if text, ok := rawString(value); ok && text == "" {
				value = json.RawMessage("null")
			}
		}
		if !isNull(value) {
			rate, err := s.decodeRate(value)
			if err != nil {
				fe.Merge(err)
			} else {
				patch.Rate.Value = &rate
			}
		}
	}

	if err := fe.Err(); err != nil {
		return service.RelationPatch{}, err
	}
	return patch, nil
}

// decodeRate accepts 1..5 written as a number or a string.
func (s *Server) decodeRate(raw json.RawMessage) (int, validation.FieldErrors) {
	text, ok := rawString(raw)
	if !ok {
		text = string(raw)
	}
	payload := relationRatePayload{Rate: &text}
	if err := s.validator.Struct(payload); err != nil {
		if fe, ok := err.(validation.FieldErrors); ok {
			return 0, fe
		}
		return 0, validation.FieldErrors{"rate": {err.Error()}}
	}
	rate, _ := strconv.Atoi(text)
	return rate, nil
}
