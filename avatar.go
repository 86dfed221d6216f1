package centbook

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const MaxAvatarBytes = 2 << 20 // 2 MiB

var (
	ErrInvalidFileType = errors.New("invalid file type")
	ErrFileTooLarge    = errors.New("file too large")
)

var allowedAvatarTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// StoredObject is a single object listed from the avatar bucket. Name is
// relative to the user namespace.
type StoredObject struct {
	Name string
}

// FileStore is the avatar bucket. Upload overwrites an existing object at the
// same path.
type FileStore interface {
	List(ctx context.Context, namespace string) ([]StoredObject, error)

	Remove(ctx context.Context, paths []string) error

	Upload(ctx context.Context, path string, content []byte, contentType string) error

	PublicUrl(path string) string
}

// CleanupPolicy decides whether a failed namespace cleanup aborts the calling
// operation. Upload uses CleanupTolerant: it must not be blocked by stale
// object cleanup, an orphan may rarely remain. Delete uses CleanupStrict: it
// must not report success while objects remain.
type CleanupPolicy byte

const (
	CleanupTolerant CleanupPolicy = iota
	CleanupStrict
)

type StorageUploadError struct {
	Err error
}

func (e *StorageUploadError) Error() string { return "storage upload: " + e.Err.Error() }

func (e *StorageUploadError) Unwrap() error { return e.Err }

type StorageDeleteError struct {
	Err error
}

func (e *StorageDeleteError) Error() string { return "storage delete: " + e.Err.Error() }

func (e *StorageDeleteError) Unwrap() error { return e.Err }

type ProfileUpdateError struct {
	Err error
}

func (e *ProfileUpdateError) Error() string { return "profile update: " + e.Err.Error() }

func (e *ProfileUpdateError) Unwrap() error { return e.Err }

// FileUpload is a file received from the client: declared content type and
// name are trusted only after validation.
type FileUpload struct {
	Name        string
	ContentType string
	Content     []byte
}

type AvatarService struct {
	Files    FileStore
	Profiles ProfileStore
	Cache    ProfileInvalidator

	// Now stamps the cache-busting url parameter. Defaults to time.Now.
	Now func() time.Time
}

// Upload validates the file, clears the user's namespace (tolerant), stores
// the new object and writes the cache-busted public url onto the profile row.
// Validation failures issue no storage or database call. A failed row write
// leaves the uploaded object in place: the next successful upload supersedes
// it.
func (s *AvatarService) Upload(ctx context.Context, userId UserId, upload FileUpload) (Profile, error) {
	if userId == "" {
		return Profile{}, ErrNotAuthenticated
	}
	if !allowedAvatarTypes[upload.ContentType] {
		return Profile{}, ErrInvalidFileType
	}
	if len(upload.Content) > MaxAvatarBytes {
		return Profile{}, ErrFileTooLarge
	}

	path := AvatarPath(userId, upload.Name)
	_ = s.clearNamespace(ctx, userId, CleanupTolerant)

	if err := s.Files.Upload(ctx, path, upload.Content, upload.ContentType); err != nil {
		return Profile{}, &StorageUploadError{Err: err}
	}

	url := s.Files.PublicUrl(path) + "?t=" + strconv.FormatInt(s.now().UnixMilli(), 10)
	profile, err := s.Profiles.UpdateAvatarUrl(ctx, userId, &url)
	if err != nil {
		return Profile{}, &ProfileUpdateError{Err: err}
	}
	invalidateProfiles(ctx, s.Cache)
	return profile, nil
}

// Delete clears the user's namespace (strict) and nulls avatar_url. A failed
// removal aborts before the row is touched, so the url is never nulled while
// objects may remain. Deleting with nothing stored succeeds.
func (s *AvatarService) Delete(ctx context.Context, userId UserId) (Profile, error) {
	if userId == "" {
		return Profile{}, ErrNotAuthenticated
	}
	if err := s.clearNamespace(ctx, userId, CleanupStrict); err != nil {
		return Profile{}, &StorageDeleteError{Err: err}
	}
	profile, err := s.Profiles.UpdateAvatarUrl(ctx, userId, nil)
	if err != nil {
		return Profile{}, &ProfileUpdateError{Err: err}
	}
	invalidateProfiles(ctx, s.Cache)
	return profile, nil
}

func (s *AvatarService) clearNamespace(ctx context.Context, userId UserId, policy CleanupPolicy) error {
	objects, err := s.Files.List(ctx, string(userId))
	if err != nil {
		if policy == CleanupTolerant {
			logrus.WithField("user_id", userId).WithError(err).
				Warningln("Avatar cleanup list failed, proceeding.")
			return nil
		}
		return err
	}
	if len(objects) == 0 {
		return nil
	}

	paths := make([]string, len(objects))
	for i, object := range objects {
		paths[i] = string(userId) + "/" + object.Name
	}
	if err := s.Files.Remove(ctx, paths); err != nil {
		if policy == CleanupTolerant {
			logrus.WithField("user_id", userId).WithError(err).
				Warningln("Avatar cleanup remove failed, proceeding.")
			return nil
		}
		return err
	}
	return nil
}

func (s *AvatarService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// AvatarPath derives the object path for a user's avatar: the lowercased
// suffix after the last dot of the client file name, defaulting to jpg.
func AvatarPath(userId UserId, fileName string) string {
	ext := "jpg"
	if i := strings.LastIndexByte(fileName, '.'); i >= 0 && i+1 < len(fileName) {
		ext = strings.ToLower(fileName[i+1:])
	}
	return string(userId) + "/avatar." + ext
}

// invalidateProfiles drops cached rows after a successful mutation. The row is
// already persisted at this point, so a failing bus only delays refresh.
func invalidateProfiles(ctx context.Context, cache ProfileInvalidator) {
	if cache == nil {
		return
	}
	if err := cache.InvalidateProfiles(ctx); err != nil {
		logrus.WithError(err).Warningln("Profile cache invalidation failed.")
	}
}
