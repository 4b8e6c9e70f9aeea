package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-dashboard/core/resource"
	"github.com/trezcool/masomo-dashboard/services/restclient"
)

type dashboardApi struct {
	secretKey string
	sessions  *Sessions
	validate  *validator.Validate
}

func registerDashboardAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	secretKey string,
	sessions *Sessions,
	validate *validator.Validate,
) {
	api := dashboardApi{
		secretKey: secretKey,
		sessions:  sessions,
		validate:  validate,
	}

	// un-authed endpoints
	g.POST("/session", api.login)

	// authed endpoints
	ag := g.Group("", jwt, adminMiddleware(), sessionMiddleware(sessions))
	ag.DELETE("/session", api.logout)
	ag.GET("/resources", api.queryResources)
	ag.GET("/summary", api.summary)

	sg := ag.Group("/screens/:resource")
	sg.GET("", api.screen)
	sg.POST("", api.create)
	sg.POST("/sort", api.sort)
	sg.PUT("/:id", api.update)
	sg.DELETE("/:id", api.destroy)

	tg := ag.Group("/tickets/:id/messages")
	tg.GET("", api.thread)
	tg.POST("", api.reply)
}

// Handlers

func (api *dashboardApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	token, err := api.sessions.Login(ctx.Request().Context(), data.Username, data.Password)
	if err != nil {
		var apiErr *restclient.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
			return errAuthenticationFailed
		}
		return errors.Wrap(err, "logging in")
	}

	claims, err := parseToken(api.secretKey, token)
	if err != nil {
		return errors.Wrap(err, "parsing backend token")
	}
	if !claims.IsAdmin {
		return errHttpForbidden
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *dashboardApi) logout(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	api.sessions.End(claims.Subject)
	return ctx.NoContent(http.StatusNoContent)
}

func (api *dashboardApi) queryResources(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, resource.All())
}

func (api *dashboardApi) summary(ctx echo.Context) error {
	dash, err := getContextDashboard(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context dashboard")
	}
	return ctx.JSON(http.StatusOK, dash.Summary())
}
