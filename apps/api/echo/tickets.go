package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-dashboard/core/ticket"
)

func contextThread(ctx echo.Context) (*ticket.Thread, error) {
	ticketID := ctx.Param("id")
	if id, err := strconv.Atoi(ticketID); err != nil || id < 1 {
		return nil, errHttpNotFound
	}
	dash, err := getContextDashboard(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "getting context dashboard")
	}
	return dash.Thread(ctx.Request().Context(), ticketID)
}

func (api *dashboardApi) thread(ctx echo.Context) error {
	query := new(ListQuery)
	if err := query.Bind(ctx); err != nil {
		return err
	}

	th, err := contextThread(ctx)
	if err != nil {
		return err
	}
	if query.Search != nil {
		th.Search(*query.Search)
	}
	if query.Page > 0 {
		th.Page(query.Page)
	}
	return ctx.JSON(http.StatusOK, th.View())
}

func (api *dashboardApi) reply(ctx echo.Context) error {
	var data ReplyRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReplyRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	th, err := contextThread(ctx)
	if err != nil {
		return err
	}
	msg, err := th.Reply(ctx.Request().Context(), data.Body)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, RecordResponse{Record: msg, View: th.View()})
}
