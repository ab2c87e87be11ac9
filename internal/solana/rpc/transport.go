package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"cnft-drop/go-backend/internal/platform/ratelimiter"
)

const maxResponseBytes int64 = 8 << 20 // 8 MiB

var ErrRateLimited = errors.New("rpc endpoint rate limited the request")

// limitedTransport throttles JSON-RPC calls per method, logs them, and caps
// the response size read by the decoder.
type limitedTransport struct {
	base    http.RoundTripper
	limiter *ratelimiter.MapLimiter
	logger  *slog.Logger
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	method := requestMethod(req)
	if err := t.limiter.Wait(req.Context(), method); err != nil {
		return nil, err
	}

	started := time.Now()
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	t.logger.Debug("rpc call", "method", method, "status", resp.StatusCode, "elapsed", time.Since(started))

	if resp.StatusCode == http.StatusTooManyRequests {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%s: %w", method, ErrRateLimited)
	}
	resp.Body = limitedBody{Reader: io.LimitReader(resp.Body, maxResponseBytes), Closer: resp.Body}
	return resp, nil
}

type limitedBody struct {
	io.Reader
	io.Closer
}

// requestMethod reads the JSON-RPC method name without consuming the body.
func requestMethod(req *http.Request) string {
	if req.GetBody == nil {
		return "batch"
	}
	body, err := req.GetBody()
	if err != nil {
		return "unknown"
	}
	defer func() { _ = body.Close() }()
	var peek struct {
		Method string `json:"method"`
	}
	if err := json.NewDecoder(body).Decode(&peek); err != nil || peek.Method == "" {
		return "batch"
	}
	return peek.Method
}
