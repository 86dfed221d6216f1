// Package storage holds avatar objects on an afero filesystem: OsFs rooted at
// the avatar directory in production, MemMapFs in tests.
package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/centbook/centbook"
	"github.com/spf13/afero"
)

// contentTypeSuffix marks the sidecar object recording an upload's declared
// content type. Sidecars are hidden from List and removed with their object.
const contentTypeSuffix = ".contenttype"

type Bucket struct {
	Fs afero.Fs

	// BaseUrl is the public prefix objects are served under,
	// e.g. https://cdn.centbook.pl/avatars
	BaseUrl string
}

var _ centbook.FileStore = (*Bucket)(nil)

func (b *Bucket) List(ctx context.Context, namespace string) ([]centbook.StoredObject, error) {
	infos, err := afero.ReadDir(b.Fs, namespace)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read namespace dir: %w", err)
	}

	objects := make([]centbook.StoredObject, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() || strings.HasSuffix(info.Name(), contentTypeSuffix) {
			continue
		}
		objects = append(objects, centbook.StoredObject{Name: info.Name()})
	}
	return objects, nil
}

func (b *Bucket) Remove(ctx context.Context, paths []string) error {
	for _, objectPath := range paths {
		if err := b.Fs.Remove(objectPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", objectPath, err)
		}
		if err := b.Fs.Remove(objectPath + contentTypeSuffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s sidecar: %w", objectPath, err)
		}
	}
	return nil
}

func (b *Bucket) Upload(ctx context.Context, objectPath string, content []byte, contentType string) error {
	if err := b.Fs.MkdirAll(path.Dir(objectPath), 0o755); err != nil {
		return fmt.Errorf("create namespace dir: %w", err)
	}
	if err := afero.WriteFile(b.Fs, objectPath, content, 0o644); err != nil {
		return fmt.Errorf("write object: %w", err)
	}
	if err := afero.WriteFile(b.Fs, objectPath+contentTypeSuffix, []byte(contentType), 0o644); err != nil {
		return fmt.Errorf("write content type sidecar: %w", err)
	}
	return nil
}

func (b *Bucket) PublicUrl(objectPath string) string {
	return strings.TrimSuffix(b.BaseUrl, "/") + "/" + objectPath
}

// ContentType reports the declared content type recorded at upload, or empty
// when unknown.
func (b *Bucket) ContentType(objectPath string) string {
	declared, err := afero.ReadFile(b.Fs, objectPath+contentTypeSuffix)
	if err != nil {
		return ""
	}
	return string(declared)
}
