package echoapi

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-dashboard/core"
	"github.com/trezcool/masomo-dashboard/core/listing"
)

const (
	searchParam  = "search"
	sortParam    = "sort"
	pageParam    = "page"
	refreshParam = "refresh"
)

// ListQuery holds the list parameters of a request.
// Absent parameters leave the list state unchanged.
type ListQuery struct {
	Search  *string
	SortKey string
	SortDir listing.Direction
	Page    int // 0: unchanged
	Refresh bool
}

// Bind reads `search`, `sort` (`-key` for descending), `page` and `refresh` from the query string.
func (q *ListQuery) Bind(ctx echo.Context) error {
	data := ctx.QueryParams()
	var flds []core.FieldError

	if val, ok := data[searchParam]; ok && len(val) > 0 {
		search := val[0]
		q.Search = &search
	}

	if val := strings.TrimSpace(data.Get(sortParam)); val != "" {
		q.SortDir = listing.Ascending
		if strings.HasPrefix(val, "-") {
			q.SortDir = listing.Descending
			val = val[1:] // drop "-"
		}
		q.SortKey = strings.TrimSpace(val)
		if q.SortKey == "" {
			flds = append(flds, core.FieldError{Field: sortParam, Error: "this field cannot be blank"})
		}
	}

	if val := data.Get(pageParam); val != "" {
		page, err := strconv.Atoi(val)
		if err != nil || page < 1 {
			flds = append(flds, core.FieldError{Field: pageParam, Error: "must be a positive integer"})
		}
		q.Page = page
	}

	if val := data.Get(refreshParam); val != "" {
		refresh, err := strconv.ParseBool(val)
		if err != nil {
			flds = append(flds, core.FieldError{Field: refreshParam, Error: "must be a boolean"})
		}
		q.Refresh = refresh
	}

	if flds != nil {
		return core.NewValidationError(errors.New("invalid list query"), flds...)
	}
	return nil
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	SortRequest struct {
		Key string `json:"key" validate:"notblank"`
	}

	ReplyRequest struct {
		Body string `json:"body" validate:"notblank"`
	}

	// RecordResponse answers a create or update with the stored record and the updated list.
	RecordResponse struct {
		Record listing.Record `json:"record"`
		View   listing.View   `json:"view"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (sr *SortRequest) Validate(validate *validator.Validate) error {
	sr.Key = core.CleanString(sr.Key)
	return validate.Struct(sr)
}

func (rr *ReplyRequest) Validate(validate *validator.Validate) error {
	rr.Body = strings.TrimSpace(rr.Body)
	return validate.Struct(rr)
}
