package http_server

import (
	"context"
	"errors"
	"net/http"

	"github.com/danthegoodman1/directdict/catalog"
	"github.com/danthegoodman1/directdict/dictionary"
	"github.com/danthegoodman1/directdict/gologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type CustomContext struct {
	echo.Context
	RequestID string
}

func CreateReqContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		reqID := c.Request().Header.Get(echo.HeaderXRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Response().Header().Set(echo.HeaderXRequestID, reqID)
		ctx := context.WithValue(c.Request().Context(), gologger.ReqIDKey, reqID)
		reqLogger := logger.With().Str("reqID", reqID).Logger()
		ctx = reqLogger.WithContext(ctx)
		c.SetRequest(c.Request().WithContext(ctx))
		cc := &CustomContext{
			Context:   c,
			RequestID: reqID,
		}
		return next(cc)
	}
}

// Casts to custom context for the handler, so this doesn't have to be done per handler
func ccHandler(h func(*CustomContext) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		return h(c.(*CustomContext))
	}
}

func (c *CustomContext) internalErrorMessage() string {
	return "internal error, request id: " + c.RequestID
}

func (c *CustomContext) InternalError(err error, msg string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		zerolog.Ctx(c.Request().Context()).Warn().CallerSkipFrame(1).Msg(err.Error())
	} else {
		zerolog.Ctx(c.Request().Context()).Error().CallerSkipFrame(1).Err(err).Msg(msg)
	}
	return c.String(http.StatusInternalServerError, c.internalErrorMessage())
}

// DictionaryError responds with the status matching a dictionary or catalog error, falling
// back to InternalError.
func (c *CustomContext) DictionaryError(err error, msg string) error {
	switch {
	case errors.Is(err, dictionary.ErrNotFound):
		return c.String(http.StatusNotFound, err.Error())
	case errors.Is(err, dictionary.ErrBadArguments),
		errors.Is(err, dictionary.ErrTypeMismatch),
		errors.Is(err, dictionary.ErrConfiguration),
		errors.Is(err, catalog.ErrUnknownSource):
		return c.String(http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrDictionaryExists):
		return c.String(http.StatusConflict, err.Error())
	case errors.Is(err, dictionary.ErrUnsupportedMethod):
		return c.String(http.StatusNotImplemented, err.Error())
	}
	return c.InternalError(err, msg)
}
