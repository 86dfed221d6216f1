package rest

import (
	"github.com/centbook/centbook"
	"github.com/gofiber/fiber/v2"
)

type SessionController struct {
	Store centbook.SessionStore
}

func (c *SessionController) InstallTo(requestAuthorizer fiber.Handler, app *fiber.App) {
	app.Get("/session", combineHandlers(requestAuthorizer, c.serveCurrentSession))
}

func (c *SessionController) serveCurrentSession(ctx *fiber.Ctx) error {
	session, ok := ctx.Locals(sessionLocalsKey).(centbook.Session)
	if !ok {
		return fiber.ErrUnauthorized
	}

	// session info without the authorization token itself.
	type SessionMeta struct {
		Id        string `json:"id"`
		UserId    string `json:"userId"`
		ExpiresAt int64  `json:"expiresAt"`
	}
	return ctx.JSON(SessionMeta{
		Id:        session.Id,
		UserId:    string(session.UserId),
		ExpiresAt: session.ExpiresAt.Unix(),
	})
}
