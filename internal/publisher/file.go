package publisher

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"

	"cnft-drop/go-backend/internal/content"
	"cnft-drop/go-backend/internal/storage"
)

// File writes records into a local directory, for dry runs against a local
// validator or when the directory is served by a web server at BaseURL.
type File struct {
	store   *storage.FileStore
	baseURL string
}

func NewFile(dir, baseURL string) (*File, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewFileStore(abs)
	if err != nil {
		return nil, fmt.Errorf("file publisher: %w", err)
	}
	return &File{store: store, baseURL: baseURL}, nil
}

func (f *File) Publish(_ context.Context, record content.Record) (string, error) {
	obj, err := newObject("", record)
	if err != nil {
		return "", err
	}
	if err := f.store.Save(obj.Key, obj.Body); err != nil {
		return "", fmt.Errorf("write %s: %w", obj.Key, err)
	}
	if f.baseURL != "" {
		return joinURL(f.baseURL, obj.Key), nil
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(f.store.Path(obj.Key))}).String(), nil
}
