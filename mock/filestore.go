package mock

import (
	"context"

	"github.com/centbook/centbook"
)

type FileStore struct {
	ListFn      func(ctx context.Context, namespace string) ([]centbook.StoredObject, error)
	RemoveFn    func(ctx context.Context, paths []string) error
	UploadFn    func(ctx context.Context, path string, content []byte, contentType string) error
	PublicUrlFn func(path string) string
}

func (s FileStore) List(ctx context.Context, namespace string) ([]centbook.StoredObject, error) {
	return s.ListFn(ctx, namespace)
}

func (s FileStore) Remove(ctx context.Context, paths []string) error {
	return s.RemoveFn(ctx, paths)
}

func (s FileStore) Upload(ctx context.Context, path string, content []byte, contentType string) error {
	return s.UploadFn(ctx, path, content, contentType)
}

func (s FileStore) PublicUrl(path string) string {
	return s.PublicUrlFn(path)
}
