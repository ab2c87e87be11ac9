// Package publisher uploads the drop's metadata record and hands back the
// URI every mint points at.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cnft-drop/go-backend/internal/apperr"
	"cnft-drop/go-backend/internal/bubblegum"
	"cnft-drop/go-backend/internal/content"
)

var (
	ErrEmptyURI   = errors.New("publisher returned an empty uri")
	ErrURITooLong = errors.New("published uri exceeds the on-chain limit")
)

// Publisher stores a record somewhere fetchable and returns its URI.
type Publisher interface {
	Publish(ctx context.Context, record content.Record) (string, error)
}

// Adapter gives a Publisher the single-attempt contract a run relies on.
type Adapter struct {
	pub    Publisher
	logger *slog.Logger
}

func NewAdapter(pub Publisher, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{pub: pub, logger: logger}
}

// PublishOnce validates the record and publishes it exactly once. There is
// no cache and no retry; every failure is a publish error.
func (a *Adapter) PublishOnce(ctx context.Context, record content.Record) (string, error) {
	if a == nil || a.pub == nil {
		return "", apperr.Publish("publish metadata", errors.New("no publisher configured"))
	}
	if err := record.Validate(); err != nil {
		return "", apperr.Publish("validate metadata", err)
	}
	uri, err := a.pub.Publish(ctx, record)
	if err != nil {
		return "", apperr.Publish("publish metadata", err)
	}
	uri = strings.TrimSpace(uri)
	switch {
	case uri == "":
		return "", apperr.Publish("publish metadata", ErrEmptyURI)
	case len(uri) > bubblegum.MaxURILength:
		return "", apperr.Publish("publish metadata", fmt.Errorf("%w: %d bytes", ErrURITooLong, len(uri)))
	}
	a.logger.Info("metadata published", "uri", uri)
	return uri, nil
}

// object is a record ready for upload: canonical bytes under a content key.
type object struct {
	Key  string
	Body []byte
}

const contentType = "application/json"

func newObject(prefix string, record content.Record) (object, error) {
	body, err := record.Canonical()
	if err != nil {
		return object{}, fmt.Errorf("encode metadata: %w", err)
	}
	return object{Key: prefix + content.ObjectKey(body), Body: body}, nil
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
