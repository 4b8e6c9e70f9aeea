package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-dashboard/core"
	"github.com/trezcool/masomo-dashboard/core/dashboard"
	"github.com/trezcool/masomo-dashboard/core/resource"
	"github.com/trezcool/masomo-dashboard/services/restclient"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errSessionExpired       = echo.NewHTTPError(http.StatusUnauthorized, "session expired, log in again")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
	errBadGateway           = echo.NewHTTPError(http.StatusBadGateway, "backend unavailable")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			message = core.ValidationError{Fields: core.TranslateErrors(origErr, translator)}.FieldMap()
		case *core.ValidationError:
			if origErr.Fields != nil {
				message = origErr.FieldMap()
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *restclient.APIError:
			code, message = backendErrorResponse(origErr)
		default:
			switch origErr {
			case resource.ErrUnknown:
				code, message = http.StatusNotFound, "unknown resource"
			case restclient.ErrTokenExpired, restclient.ErrNoToken, dashboard.ErrClosed:
				code, message = errSessionExpired.Code, errSessionExpired.Message
			case dashboard.ErrMissingID:
				code, message = errBadGateway.Code, errBadGateway.Message
				logger.Error("backend answered without id", err, contextPerson(ctx))
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg
				logger.Error(msg, errors.Wrap(err, msg), contextPerson(ctx))

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// backendErrorResponse relays backend client errors and hides backend failures.
func backendErrorResponse(err *restclient.APIError) (int, interface{}) {
	switch {
	case len(err.Fields) > 0:
		return http.StatusBadRequest, core.ValidationError{Fields: err.Fields}.FieldMap()
	case err.StatusCode == http.StatusUnauthorized:
		return errSessionExpired.Code, errSessionExpired.Message
	case err.StatusCode >= http.StatusInternalServerError:
		return errBadGateway.Code, errBadGateway.Message
	default:
		return err.StatusCode, err.Message
	}
}

func contextPerson(ctx echo.Context) core.Person {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return core.Person{}
	}
	return claims.Person()
}
