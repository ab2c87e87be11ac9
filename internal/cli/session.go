package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"cnft-drop/go-backend/internal/apperr"
	"cnft-drop/go-backend/internal/config"
	"cnft-drop/go-backend/internal/identity"
	"cnft-drop/go-backend/internal/ledger"
	"cnft-drop/go-backend/internal/platform/privacylog"
	"cnft-drop/go-backend/internal/platform/ratelimiter"
	"cnft-drop/go-backend/internal/publisher"
	"cnft-drop/go-backend/internal/solana/rpc"
	"cnft-drop/go-backend/internal/storage"
)

// session is the resolved configuration plus the state directory of one
// command invocation.
type session struct {
	cfg    config.Config
	logger *slog.Logger
	store  *storage.FileStore
	lock   *storage.DirLock
}

// openSession loads config, applies flag overrides and opens the state
// directory. Commands that write state pass exclusive to hold the
// directory lock until Close.
func openSession(opts *RootOptions, stderr io.Writer, exclusive bool) (*session, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, apperr.InvalidRequest("load config", err)
	}
	if opts.StateDir != "" {
		cfg.StateDir = opts.StateDir
	}
	if opts.RPCURL != "" {
		cfg.RPC.Endpoint = opts.RPCURL
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	return newSession(cfg, stderr, exclusive)
}

func newSession(cfg config.Config, stderr io.Writer, exclusive bool) (*session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, apperr.InvalidRequest("validate config", err)
	}
	logger, err := newLogger(cfg.Log, stderr)
	if err != nil {
		return nil, apperr.InvalidRequest("configure logging", err)
	}
	store, err := storage.NewFileStore(cfg.StateDir)
	if err != nil {
		return nil, apperr.Persistence("open state dir", err)
	}
	s := &session{cfg: cfg, logger: logger, store: store}
	if exclusive {
		lock, err := storage.LockDir(store.Dir())
		if err != nil {
			return nil, apperr.Persistence("lock state dir", err)
		}
		s.lock = lock
	}
	logger.Debug("session opened", "state_dir", store.Dir(), "rpc_url", cfg.RPC.Endpoint, "exclusive", exclusive)
	return s, nil
}

func (s *session) Close() error {
	return s.lock.Unlock()
}

func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(cfg.Level))); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(w, handlerOpts)
	} else {
		h = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(privacylog.WrapHandler(h)), nil
}

func (s *session) identities() (*identity.Store, error) {
	pass, err := s.cfg.Keystore.Passphrase(os.LookupEnv)
	if err != nil {
		return nil, apperr.InvalidRequest("keystore passphrase", err)
	}
	return identity.NewStore(s.store, identity.StoreOptions{
		Passphrase: pass,
		Logger:     s.logger.With("component", "identity"),
	}), nil
}

func (s *session) rpcClient() *rpc.Client {
	r := s.cfg.RPC
	return rpc.New(r.Endpoint, rpc.Options{
		HTTPClient: &http.Client{Timeout: r.Timeout},
		Limiter:    ratelimiter.New(r.RateLimit, r.RateBurst, r.MethodLimits),
		Logger:     s.logger.With("component", "rpc"),
		Commitment: rpc.Commitment(r.Commitment),
	})
}

func (s *session) newLedger(client *rpc.Client, payer *identity.Identity) *ledger.Solana {
	return ledger.NewSolana(client, payer.PrivateKey(), ledger.SolanaOptions{
		Confirm: ledger.ConfirmPolicy{
			Interval: s.cfg.RPC.ConfirmInterval,
			Timeout:  s.cfg.RPC.ConfirmTimeout,
		},
		Logger: s.logger.With("component", "ledger"),
	})
}

// publisher builds the configured publisher. The returned close func is
// never nil.
func (s *session) publisher(ctx context.Context) (publisher.Publisher, func() error, error) {
	p := s.cfg.Publisher
	noop := func() error { return nil }
	switch p.Kind {
	case config.PublisherS3:
		pub, err := publisher.NewS3(ctx, publisher.S3Config{
			Bucket:          p.Bucket,
			Region:          p.Region,
			Endpoint:        p.Endpoint,
			Prefix:          p.Prefix,
			PublicBaseURL:   p.PublicBaseURL,
			AccessKeyID:     os.Getenv(config.EnvPrefix + "S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv(config.EnvPrefix + "S3_SECRET_ACCESS_KEY"),
		})
		return pub, noop, err
	case config.PublisherGCS:
		pub, err := publisher.NewGCS(ctx, publisher.GCSConfig{
			Bucket:        p.Bucket,
			Prefix:        p.Prefix,
			PublicBaseURL: p.PublicBaseURL,
			Endpoint:      p.Endpoint,
		})
		if err != nil {
			return nil, noop, err
		}
		return pub, pub.Close, nil
	case config.PublisherFile:
		dir := p.Dir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(s.cfg.StateDir, dir)
		}
		pub, err := publisher.NewFile(dir, p.PublicBaseURL)
		return pub, noop, err
	}
	return nil, noop, errors.New("unknown publisher kind " + p.Kind)
}
