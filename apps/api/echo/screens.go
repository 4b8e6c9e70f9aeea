package echoapi

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-dashboard/core"
	"github.com/trezcool/masomo-dashboard/core/dashboard"
	"github.com/trezcool/masomo-dashboard/core/listing"
)

// contextScreen returns the screen named by the `:resource` param, loaded from the backend on first use.
func contextScreen(ctx echo.Context, refresh bool) (*dashboard.Screen, error) {
	dash, err := getContextDashboard(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "getting context dashboard")
	}
	return dash.LoadedScreen(ctx.Request().Context(), ctx.Param("resource"), refresh)
}

// screen applies the list query to the screen and returns the page.
func (api *dashboardApi) screen(ctx echo.Context) error {
	query := new(ListQuery)
	if err := query.Bind(ctx); err != nil {
		return err
	}

	scr, err := contextScreen(ctx, query.Refresh)
	if err != nil {
		return err
	}
	if query.Search != nil {
		scr.Search(*query.Search)
	}
	if query.SortKey != "" {
		scr.SortBy(query.SortKey, query.SortDir)
	}
	if query.Page > 0 {
		scr.Page(query.Page)
	}
	return ctx.JSON(http.StatusOK, scr.View())
}

func (api *dashboardApi) sort(ctx echo.Context) error {
	var data SortRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SortRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	scr, err := contextScreen(ctx, false)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, scr.Sort(data.Key))
}

func (api *dashboardApi) create(ctx echo.Context) error {
	scr, err := contextScreen(ctx, false)
	if err != nil {
		return err
	}

	data, err := bindRecord(ctx)
	if err != nil {
		return err
	}
	rec, err := scr.Resource().Clean(api.validate, data)
	if err != nil {
		return err
	}

	created, err := scr.Create(ctx.Request().Context(), rec)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, RecordResponse{Record: created, View: scr.View()})
}

func (api *dashboardApi) update(ctx echo.Context) error {
	scr, err := contextScreen(ctx, false)
	if err != nil {
		return err
	}
	id := ctx.Param("id")
	if _, ok := scr.Get(id); !ok {
		return errHttpNotFound
	}

	data, err := bindRecord(ctx)
	if err != nil {
		return err
	}
	data[listing.IDField] = id
	rec, err := scr.Resource().Clean(api.validate, data)
	if err != nil {
		return err
	}

	updated, err := scr.Update(ctx.Request().Context(), id, rec)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, RecordResponse{Record: updated, View: scr.View()})
}

func (api *dashboardApi) destroy(ctx echo.Context) error {
	scr, err := contextScreen(ctx, false)
	if err != nil {
		return err
	}
	if err = scr.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, scr.View())
}

func bindRecord(ctx echo.Context) (listing.Record, error) {
	rec := make(listing.Record)
	if err := json.NewDecoder(ctx.Request().Body).Decode(&rec); err != nil || rec == nil {
		return nil, core.NewValidationError(errors.New("invalid record"), core.FieldError{Field: "record", Error: "must be a JSON object"})
	}
	return rec, nil
}
