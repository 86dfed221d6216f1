package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/centbook/centbook"
	"github.com/centbook/centbook/inmem"
	"github.com/centbook/centbook/mock"
	"github.com/centbook/centbook/storage"
	"github.com/gofiber/fiber/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string {
	return &s
}

func testAuthorizer() fiber.Handler {
	return RequestAuthorizer(mock.SessionStore{
		ByTokenFn: func(token string) (centbook.Session, error) {
			if token != "valid-token" {
				return centbook.Session{}, centbook.ErrSessionNotFound
			}
			return centbook.Session{
				Id:        "s1",
				UserId:    "u1",
				Token:     token,
				ExpiresAt: time.Now().Add(time.Hour),
			}, nil
		},
	})
}

type profileTestEnv struct {
	app    *fiber.App
	store  *inmem.ProfileStore
	bucket *storage.Bucket
}

func newProfileTestEnv() *profileTestEnv {
	store := inmem.NewProfileStore()
	bucket := &storage.Bucket{
		Fs:      afero.NewMemMapFs(),
		BaseUrl: "https://cdn.centbook.pl/avatars",
	}

	controller := ProfileController{
		Reader: mock.ProfileReader{
			GetFn: func(ctx context.Context, userId centbook.UserId) (centbook.Profile, error) {
				return store.ById(ctx, userId)
			},
		},
		Service: &centbook.ProfileService{Store: &store},
		Avatars: &centbook.AvatarService{Files: bucket, Profiles: &store},
	}

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	controller.InstallTo(testAuthorizer(), app)
	return &profileTestEnv{app: app, store: &store, bucket: bucket}
}

func decodeProfile(t *testing.T, body io.Reader) ProfileResponse {
	t.Helper()
	var response ProfileResponse
	if err := json.NewDecoder(body).Decode(&response); err != nil {
		t.Fatalf("decode profile response: %s", err)
	}
	return response
}

func TestServeProfile(t *testing.T) {
	assert := assert.New(t)
	env := newProfileTestEnv()
	env.store.Put(centbook.Profile{
		Id:    "u1",
		Name:  strPtr("Makin"),
		Email: strPtr("makin@centbook.pl"),
	})

	req := httptest.NewRequest("GET", "/profile", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer valid-token")
	resp, err := env.app.Test(req)
	if !assert.NoError(err) {
		return
	}
	defer resp.Body.Close()

	assert.Equal(fiber.StatusOK, resp.StatusCode)
	profile := decodeProfile(t, resp.Body)
	assert.Equal("u1", profile.Id)
	assert.Equal("Makin", *profile.Name)
	assert.Nil(profile.AvatarUrl)
}

func TestServeProfileUnauthorized(t *testing.T) {
	assert := assert.New(t)
	env := newProfileTestEnv()

	req := httptest.NewRequest("GET", "/profile", nil)
	resp, err := env.app.Test(req)
	if !assert.NoError(err) {
		return
	}
	defer resp.Body.Close()
	assert.Equal(fiber.StatusUnauthorized, resp.StatusCode)
}

func TestUpdateContactEndpoint(t *testing.T) {
	assert := assert.New(t)
	env := newProfileTestEnv()
	env.store.Put(centbook.Profile{Id: "u1", Phone: strPtr("111")})

	req := httptest.NewRequest("PATCH", "/profile",
		strings.NewReader(`{"name":"Alice","phone":""}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer valid-token")
	resp, err := env.app.Test(req)
	if !assert.NoError(err) {
		return
	}
	defer resp.Body.Close()

	assert.Equal(fiber.StatusOK, resp.StatusCode)
	profile := decodeProfile(t, resp.Body)
	assert.Equal("Alice", *profile.Name)
	assert.Nil(profile.Phone)

	stored, err := env.store.ById(context.Background(), "u1")
	if !assert.NoError(err) {
		return
	}
	assert.Equal("Alice", *stored.Name)
	assert.Nil(stored.Phone)
}

func newAvatarUpload(t *testing.T, fileName string, contentType string, content []byte) (io.Reader, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		`form-data; name="avatar"; filename="`+fileName+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create multipart part: %s", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write multipart content: %s", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %s", err)
	}
	return body, writer.FormDataContentType()
}

func TestUploadAvatarEndpoint(t *testing.T) {
	assert := assert.New(t)
	env := newProfileTestEnv()
	env.store.Put(centbook.Profile{Id: "u1"})

	body, contentType := newAvatarUpload(t, "photo.PNG", "image/png", bytes.Repeat([]byte{9}, 10*1024))
	req := httptest.NewRequest("PUT", "/profile/avatar", body)
	req.Header.Set(fiber.HeaderContentType, contentType)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer valid-token")
	resp, err := env.app.Test(req)
	if !assert.NoError(err) {
		return
	}
	defer resp.Body.Close()

	assert.Equal(fiber.StatusOK, resp.StatusCode)
	profile := decodeProfile(t, resp.Body)
	if !assert.NotNil(profile.AvatarUrl) {
		return
	}
	assert.Regexp(`^https://cdn\.centbook\.pl/avatars/u1/avatar\.png\?t=\d+$`, *profile.AvatarUrl)

	objects, err := env.bucket.List(context.Background(), "u1")
	if !assert.NoError(err) {
		return
	}
	assert.Equal([]centbook.StoredObject{{Name: "avatar.png"}}, objects)
	assert.Equal("image/png", env.bucket.ContentType("u1/avatar.png"))
}

func TestUploadAvatarRejectsBadType(t *testing.T) {
	assert := assert.New(t)
	env := newProfileTestEnv()
	env.store.Put(centbook.Profile{Id: "u1"})

	body, contentType := newAvatarUpload(t, "notes.pdf", "application/pdf", []byte("%PDF"))
	req := httptest.NewRequest("PUT", "/profile/avatar", body)
	req.Header.Set(fiber.HeaderContentType, contentType)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer valid-token")
	resp, err := env.app.Test(req)
	if !assert.NoError(err) {
		return
	}
	defer resp.Body.Close()

	assert.Equal(fiber.StatusBadRequest, resp.StatusCode)

	objects, err := env.bucket.List(context.Background(), "u1")
	if !assert.NoError(err) {
		return
	}
	assert.Empty(objects)
}

func TestUploadAvatarRejectsMissingFile(t *testing.T) {
	assert := assert.New(t)
	env := newProfileTestEnv()

	req := httptest.NewRequest("PUT", "/profile/avatar", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer valid-token")
	resp, err := env.app.Test(req)
	if !assert.NoError(err) {
		return
	}
	defer resp.Body.Close()
	assert.Equal(fiber.StatusBadRequest, resp.StatusCode)
}

func TestDeleteAvatarEndpoint(t *testing.T) {
	assert := assert.New(t)
	env := newProfileTestEnv()
	url := "https://cdn.centbook.pl/avatars/u1/avatar.png?t=1"
	env.store.Put(centbook.Profile{Id: "u1", AvatarUrl: &url})
	ctx := context.Background()
	if !assert.NoError(env.bucket.Upload(ctx, "u1/avatar.png", []byte{1}, "image/png")) {
		return
	}

	req := httptest.NewRequest("DELETE", "/profile/avatar", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer valid-token")
	resp, err := env.app.Test(req)
	if !assert.NoError(err) {
		return
	}
	defer resp.Body.Close()

	assert.Equal(fiber.StatusOK, resp.StatusCode)
	profile := decodeProfile(t, resp.Body)
	assert.Nil(profile.AvatarUrl)

	objects, err := env.bucket.List(ctx, "u1")
	if !assert.NoError(err) {
		return
	}
	assert.Empty(objects)
}

func TestUploadAvatarStorageFailure(t *testing.T) {
	assert := assert.New(t)

	rowTouched := false
	avatars := &centbook.AvatarService{
		Files: mock.FileStore{
			ListFn: func(ctx context.Context, namespace string) ([]centbook.StoredObject, error) {
				return nil, nil
			},
			UploadFn: func(ctx context.Context, path string, content []byte, contentType string) error {
				return errors.New("bucket unavailable")
			},
			PublicUrlFn: func(path string) string { return path },
		},
		Profiles: mock.ProfileStore{
			UpdateAvatarUrlFn: func(ctx context.Context, userId centbook.UserId, avatarUrl *string) (centbook.Profile, error) {
				rowTouched = true
				return centbook.Profile{}, nil
			},
		},
	}
	controller := ProfileController{Avatars: avatars}
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	controller.InstallTo(testAuthorizer(), app)

	body, contentType := newAvatarUpload(t, "photo.png", "image/png", []byte{1})
	req := httptest.NewRequest("PUT", "/profile/avatar", body)
	req.Header.Set(fiber.HeaderContentType, contentType)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer valid-token")
	resp, err := app.Test(req)
	if !assert.NoError(err) {
		return
	}
	defer resp.Body.Close()

	assert.Equal(fiber.StatusBadGateway, resp.StatusCode)
	assert.False(rowTouched)
	var response ErrorResponse
	if !assert.NoError(json.NewDecoder(resp.Body).Decode(&response)) {
		return
	}
	assert.Contains(response.ErrorMessage, "bucket unavailable")
}

func TestServeAvatarRedirectsWhenSet(t *testing.T) {
	assert := assert.New(t)
	env := newProfileTestEnv()
	url := "https://cdn.centbook.pl/avatars/u1/avatar.png?t=17"
	env.store.Put(centbook.Profile{Id: "u1", AvatarUrl: &url})

	req := httptest.NewRequest("GET", "/profile/avatar", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer valid-token")
	resp, err := env.app.Test(req)
	if !assert.NoError(err) {
		return
	}
	defer resp.Body.Close()

	assert.Equal(fiber.StatusFound, resp.StatusCode)
	assert.Equal(url, resp.Header.Get("Location"))
}

func TestServeAvatarFallback(t *testing.T) {
	assert := assert.New(t)
	env := newProfileTestEnv()
	env.store.Put(centbook.Profile{Id: "u1", Name: strPtr("Alice")})

	req := httptest.NewRequest("GET", "/profile/avatar", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer valid-token")
	resp, err := env.app.Test(req)
	if !assert.NoError(err) {
		return
	}
	defer resp.Body.Close()

	assert.Equal(fiber.StatusOK, resp.StatusCode)
	assert.Equal("image/svg+xml", resp.Header.Get(fiber.HeaderContentType))

	body, err := io.ReadAll(resp.Body)
	if !assert.NoError(err) {
		return
	}
	svg := string(body)
	assert.Contains(svg, ">A</text>")
	assert.Contains(svg, centbook.AvatarPalette[centbook.ColorIndex("Alice")])
}
