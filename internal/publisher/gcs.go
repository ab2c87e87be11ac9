package publisher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"cnft-drop/go-backend/internal/content"
)

type GCSConfig struct {
	Bucket        string
	Prefix        string
	PublicBaseURL string
	// Endpoint points the client at an emulator; requests are then sent
	// unauthenticated.
	Endpoint string
}

// GCS publishes records to a Google Cloud Storage bucket using application
// default credentials.
type GCS struct {
	client  *storage.Client
	bucket  string
	prefix  string
	baseURL string
}

func NewGCS(ctx context.Context, cfg GCSConfig) (*GCS, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("gcs publisher: bucket is required")
	}
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs publisher: create client: %w", err)
	}
	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = "https://storage.googleapis.com/" + cfg.Bucket
	}
	return &GCS{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, baseURL: baseURL}, nil
}

func (g *GCS) Publish(ctx context.Context, record content.Record) (string, error) {
	obj, err := newObject(g.prefix, record)
	if err != nil {
		return "", err
	}
	handle := g.client.Bucket(g.bucket).Object(obj.Key).If(storage.Conditions{DoesNotExist: true})
	w := handle.NewWriter(ctx)
	w.ContentType = contentType
	w.ChunkSize = 0
	if _, err := w.Write(obj.Body); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs write %s: %w", obj.Key, err)
	}
	if err := w.Close(); err != nil && !alreadyExists(err) {
		return "", fmt.Errorf("gcs close %s: %w", obj.Key, err)
	}
	return joinURL(g.baseURL, obj.Key), nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}

// alreadyExists reports a failed DoesNotExist precondition: the content
// addressed object is already there.
func alreadyExists(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed
}
