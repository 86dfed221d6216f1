package rest

import (
	"encoding/json"
	"errors"

	"github.com/centbook/centbook"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	ErrorMessage string `json:"error_message"`
}

func requestLog(ctx *fiber.Ctx) *logrus.Entry {
	return logrus.
		WithField("remote_addr", ctx.Context().RemoteAddr()).
		WithField("path", ctx.Path()).
		WithField("z_referer", string(ctx.Request().Header.Peek("Referer"))).
		WithField("z_user_agent", string(ctx.Request().Header.Peek("User-Agent"))).
		WithField("z_x_forwared_for", string(ctx.Request().Header.Peek("X-Forwarded-For")))
}

func ErrorHandler(ctx *fiber.Ctx, err error) error {
	if fe, ok := err.(*fiber.Error); ok {
		return ctx.
			Status(fe.Code).
			JSON(&ErrorResponse{ErrorMessage: fe.Message})
	}
	if status, ok := domainErrorStatus(err); ok {
		return ctx.
			Status(status).
			JSON(&ErrorResponse{ErrorMessage: err.Error()})
	}
	requestLog(ctx).WithError(err).Errorln("Internal server error.")
	// keep internal server errors private. reply with generic error message.
	return ctx.
		Status(fiber.ErrInternalServerError.Code).
		JSON(&ErrorResponse{ErrorMessage: fiber.ErrInternalServerError.Message})
}

// domainErrorStatus maps workflow errors to http statuses. Remote failure
// wraps keep the backend message, passed through to the client.
func domainErrorStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, centbook.ErrNotAuthenticated),
		errors.Is(err, centbook.ErrSessionNotFound):
		return fiber.StatusUnauthorized, true
	case errors.Is(err, centbook.ErrInvalidFileType):
		return fiber.StatusBadRequest, true
	case errors.Is(err, centbook.ErrFileTooLarge):
		return fiber.StatusRequestEntityTooLarge, true
	case errors.Is(err, centbook.ErrProfileNotFound):
		return fiber.StatusNotFound, true
	}

	var queryErr *centbook.BackendQueryError
	var uploadErr *centbook.StorageUploadError
	var deleteErr *centbook.StorageDeleteError
	var updateErr *centbook.ProfileUpdateError
	if errors.As(err, &queryErr) || errors.As(err, &uploadErr) ||
		errors.As(err, &deleteErr) || errors.As(err, &updateErr) {
		return fiber.StatusBadGateway, true
	}
	return 0, false
}

func NotFoundHandler(c *fiber.Ctx) error {
	return fiber.NewError(fiber.StatusNotFound)
}

func combineHandlers(handlers ...fiber.Handler) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		for _, handler := range handlers {
			err := handler(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	}
}

func JsonErrorMessageResponse(message string) string {
	bytes, err := json.Marshal(ErrorResponse{ErrorMessage: message})
	if err != nil {
		panic(err)
	}
	return string(bytes)
}
