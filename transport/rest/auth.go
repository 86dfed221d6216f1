package rest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/centbook/centbook"
	"github.com/gofiber/fiber/v2"
)

const sessionLocalsKey = "session"

// AuthController is the identity-context seam. The credential check itself
// lives upstream (SSO in front of the api); login only exchanges a verified
// user id for a bearer token.
type AuthController struct {
	SessionStore centbook.SessionStore
}

func (c *AuthController) InstallTo(app *fiber.App) {
	app.Post("/auth/login", c.serveLogin)
	app.Post("/auth/logout", c.logoutHandler())
}

func (c *AuthController) serveLogin(ctx *fiber.Ctx) error {
	body := struct {
		UserId string `json:"userId"`
	}{}
	if err := ctx.BodyParser(&body); err != nil {
		requestLog(ctx).WithError(err).Infoln("Invalid body.")
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if body.UserId == "" {
		return fiber.NewError(fiber.StatusBadRequest, "no user id")
	}

	session, err := c.SessionStore.RegisterNew(ctx.Context(), centbook.UserId(body.UserId))
	if err != nil {
		return fmt.Errorf("session register new: %w", err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(map[string]interface{}{
		"id":          session.Id,
		"userId":      session.UserId,
		"accessToken": session.Token,
		"expiresAt":   session.ExpiresAt.Unix(),
	})
}

func (c *AuthController) logoutHandler() fiber.Handler {
	return combineHandlers(RequestAuthorizer(c.SessionStore), func(ctx *fiber.Ctx) error {
		session := ctx.Locals(sessionLocalsKey).(centbook.Session)
		return c.SessionStore.InvalidateByToken(session.Token)
	})
}

func RequestAuthorizer(sessionStore centbook.SessionStore) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		auth := ctx.Get(fiber.HeaderAuthorization)
		if auth == "" {
			return fiber.ErrUnauthorized
		}
		if !strings.HasPrefix(auth, "Bearer ") {
			return fiber.NewError(fiber.ErrBadRequest.Code, "invalid auth type")
		}
		token := strings.TrimPrefix(auth, "Bearer ")

		session, err := sessionStore.ByToken(token)
		if err != nil {
			if errors.Is(err, centbook.ErrSessionNotFound) {
				return fiber.ErrUnauthorized
			} else {
				return fmt.Errorf("session by token: %w", err)
			}
		}

		requestLog(ctx).
			WithField("user_id", session.UserId).
			Infoln("Authorized access.")

		ctx.Locals(sessionLocalsKey, session)
		return nil
	}
}

// currentUserId reads the authorized session placed by RequestAuthorizer.
func currentUserId(ctx *fiber.Ctx) (centbook.UserId, error) {
	session, ok := ctx.Locals(sessionLocalsKey).(centbook.Session)
	if !ok {
		return "", fiber.ErrUnauthorized
	}
	return session.UserId, nil
}
