package rest

import (
	"fmt"
	"html"
	"io"

	"github.com/centbook/centbook"
	"github.com/gofiber/fiber/v2"
)

type ProfileController struct {
	Reader  centbook.ProfileReader
	Service *centbook.ProfileService
	Avatars *centbook.AvatarService
}

func (c *ProfileController) InstallTo(requestAuthorizer fiber.Handler, app *fiber.App) {
	app.Get("/profile", combineHandlers(requestAuthorizer, c.serveProfile))
	app.Patch("/profile", combineHandlers(requestAuthorizer, c.serveUpdateContact))
	app.Get("/profile/avatar", combineHandlers(requestAuthorizer, c.serveAvatar))
	app.Put("/profile/avatar", combineHandlers(requestAuthorizer, c.serveUploadAvatar))
	app.Delete("/profile/avatar", combineHandlers(requestAuthorizer, c.serveDeleteAvatar))
}

type ProfileResponse struct {
	Id        string  `json:"id"`
	Name      *string `json:"name"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
	AvatarUrl *string `json:"avatarUrl"`
	UpdatedAt int64   `json:"updatedAt"`
}

func profileResponse(profile centbook.Profile) ProfileResponse {
	return ProfileResponse{
		Id:        string(profile.Id),
		Name:      profile.Name,
		Email:     profile.Email,
		Phone:     profile.Phone,
		AvatarUrl: profile.AvatarUrl,
		UpdatedAt: profile.UpdatedAt.Unix(),
	}
}

func (c *ProfileController) serveProfile(ctx *fiber.Ctx) error {
	userId, err := currentUserId(ctx)
	if err != nil {
		return err
	}

	profile, err := c.Reader.Get(ctx.Context(), userId)
	if err != nil {
		return fmt.Errorf("get profile: %w", err)
	}
	return ctx.JSON(profileResponse(profile))
}

func (c *ProfileController) serveUpdateContact(ctx *fiber.Ctx) error {
	userId, err := currentUserId(ctx)
	if err != nil {
		return err
	}

	body := struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	}{}
	if err := ctx.BodyParser(&body); err != nil {
		requestLog(ctx).WithError(err).Infoln("Invalid body.")
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	profile, err := c.Service.UpdateContact(ctx.Context(), userId, centbook.ContactUpdate{
		Name:  body.Name,
		Phone: body.Phone,
	})
	if err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	return ctx.JSON(profileResponse(profile))
}

func (c *ProfileController) serveUploadAvatar(ctx *fiber.Ctx) error {
	userId, err := currentUserId(ctx)
	if err != nil {
		return err
	}

	fileHeader, err := ctx.FormFile("avatar")
	if err != nil {
		requestLog(ctx).WithError(err).Infoln("Missing avatar file.")
		return fiber.NewError(fiber.StatusBadRequest, "no avatar file")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return fmt.Errorf("open avatar upload: %w", err)
	}
	defer file.Close()

	// read at most one byte over the limit so oversized uploads still fail
	// validation without buffering the whole body.
	content, err := io.ReadAll(io.LimitReader(file, centbook.MaxAvatarBytes+1))
	if err != nil {
		return fmt.Errorf("read avatar upload: %w", err)
	}

	profile, err := c.Avatars.Upload(ctx.Context(), userId, centbook.FileUpload{
		Name:        fileHeader.Filename,
		ContentType: fileHeader.Header.Get(fiber.HeaderContentType),
		Content:     content,
	})
	if err != nil {
		return fmt.Errorf("upload avatar: %w", err)
	}
	return ctx.JSON(profileResponse(profile))
}

func (c *ProfileController) serveDeleteAvatar(ctx *fiber.Ctx) error {
	userId, err := currentUserId(ctx)
	if err != nil {
		return err
	}

	profile, err := c.Avatars.Delete(ctx.Context(), userId)
	if err != nil {
		return fmt.Errorf("delete avatar: %w", err)
	}
	return ctx.JSON(profileResponse(profile))
}

// serveAvatar redirects to the stored image, or renders the initials fallback
// when no avatar is set.
func (c *ProfileController) serveAvatar(ctx *fiber.Ctx) error {
	userId, err := currentUserId(ctx)
	if err != nil {
		return err
	}

	profile, err := c.Reader.Get(ctx.Context(), userId)
	if err != nil {
		return fmt.Errorf("get profile: %w", err)
	}
	if profile.AvatarUrl != nil {
		return ctx.Redirect(*profile.AvatarUrl, fiber.StatusFound)
	}

	initials := centbook.Initials(profile.Name, profile.Email)
	color := centbook.AvatarPalette[centbook.ColorIndex(centbook.FallbackIdentifier(profile.Name, profile.Email))]
	ctx.Set(fiber.HeaderContentType, "image/svg+xml")
	return ctx.SendString(fallbackAvatarSvg(initials, color))
}

func fallbackAvatarSvg(initials string, color string) string {
	return fmt.Sprintf(
		`<svg xmlns="http://www.w3.org/2000/svg" width="128" height="128" viewBox="0 0 128 128">`+
			`<rect width="128" height="128" fill="%s"/>`+
			`<text x="64" y="64" fill="#ffffff" font-family="sans-serif" font-size="56" `+
			`text-anchor="middle" dominant-baseline="central">%s</text>`+
			`</svg>`,
		color, html.EscapeString(initials))
}
