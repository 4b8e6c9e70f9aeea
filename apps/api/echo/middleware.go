package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-dashboard/core/dashboard"
)

func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// sessionMiddleware puts the dashboard of the signed-in admin in the context.
func sessionMiddleware(sessions *Sessions) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			token, claims, err := getContextToken(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context token")
			}
			dash, err := sessions.Open(claims.Subject, token)
			if err != nil {
				return errors.Wrap(err, "opening session")
			}
			ctx.Set(contextDashboardKey, dash)
			return next(ctx)
		}
	}
}

func getContextDashboard(ctx echo.Context) (*dashboard.Dashboard, error) {
	if dash, ok := ctx.Get(contextDashboardKey).(*dashboard.Dashboard); ok {
		return dash, nil
	}
	return nil, errUnauthorized
}
