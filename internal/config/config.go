// Package config loads drop settings: built-in defaults, then a YAML file,
// then CNFTDROP_* environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"cnft-drop/go-backend/internal/batch"
	"cnft-drop/go-backend/internal/bubblegum"
	"cnft-drop/go-backend/internal/content"
	"cnft-drop/go-backend/internal/ledger"
	"cnft-drop/go-backend/internal/solana/rpc"
)

const EnvPrefix = "CNFTDROP_"

const (
	PublisherS3   = "s3"
	PublisherGCS  = "gcs"
	PublisherFile = "file"
)

type Config struct {
	StateDir  string          `yaml:"stateDir"`
	RPC       RPCConfig       `yaml:"rpc"`
	Keystore  KeystoreConfig  `yaml:"keystore"`
	Tree      TreeConfig      `yaml:"tree"`
	Drop      DropConfig      `yaml:"drop"`
	Content   content.Record  `yaml:"content"`
	Publisher PublisherConfig `yaml:"publisher"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type RPCConfig struct {
	Endpoint        string             `yaml:"endpoint"`
	Commitment      string             `yaml:"commitment"`
	Timeout         time.Duration      `yaml:"timeout"`
	ConfirmInterval time.Duration      `yaml:"confirmInterval"`
	ConfirmTimeout  time.Duration      `yaml:"confirmTimeout"`
	RateLimit       float64            `yaml:"rateLimit"`
	RateBurst       int                `yaml:"rateBurst"`
	MethodLimits    map[string]float64 `yaml:"methodLimits"`
}

// KeystoreConfig never holds the passphrase itself; it names where to read
// it from.
type KeystoreConfig struct {
	PassphraseEnv  string `yaml:"passphraseEnv"`
	PassphraseFile string `yaml:"passphraseFile"`
}

type TreeConfig struct {
	MaxDepth      uint32 `yaml:"maxDepth"`
	MaxBufferSize uint32 `yaml:"maxBufferSize"`
	CanopyDepth   uint32 `yaml:"canopyDepth"`
	Public        *bool  `yaml:"public"`
}

func (t TreeConfig) Params() bubblegum.TreeParams {
	return bubblegum.TreeParams{
		MaxDepth:      t.MaxDepth,
		MaxBufferSize: t.MaxBufferSize,
		CanopyDepth:   t.CanopyDepth,
		Public:        t.Public,
	}
}

type DropConfig struct {
	Name              string        `yaml:"name"`
	Symbol            string        `yaml:"symbol"`
	RoyaltyBps        uint16        `yaml:"royaltyBps"`
	Pacing            time.Duration `yaml:"pacing"`
	ContinueOnFailure bool          `yaml:"continueOnFailure"`
	RecipientsFile    string        `yaml:"recipientsFile"`
}

func (d DropConfig) Template() batch.Template {
	return batch.Template{Name: d.Name, Symbol: d.Symbol, RoyaltyBps: d.RoyaltyBps}
}

type PublisherConfig struct {
	Kind          string `yaml:"kind"`
	Bucket        string `yaml:"bucket"`
	Region        string `yaml:"region"`
	Endpoint      string `yaml:"endpoint"`
	Prefix        string `yaml:"prefix"`
	PublicBaseURL string `yaml:"publicBaseUrl"`
	Dir           string `yaml:"dir"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	// Listen is the address of the /metrics endpoint; empty disables it.
	Listen string `yaml:"listen"`
}

// Default mirrors a devnet drop: depth 14 / buffer 64 tree without canopy,
// 5% royalty, five seconds between mints.
func Default() Config {
	return Config{
		StateDir: "state",
		RPC: RPCConfig{
			Endpoint:        "https://api.devnet.solana.com",
			Commitment:      string(rpc.CommitmentConfirmed),
			Timeout:         30 * time.Second,
			ConfirmInterval: ledger.DefaultConfirmInterval,
			ConfirmTimeout:  ledger.DefaultConfirmTimeout,
			RateLimit:       4,
			RateBurst:       4,
		},
		Keystore: KeystoreConfig{PassphraseEnv: EnvPrefix + "PASSPHRASE"},
		Tree:     TreeConfig{MaxDepth: 14, MaxBufferSize: 64},
		Drop: DropConfig{
			RoyaltyBps: 500,
			Pacing:     batch.DefaultPacing,
		},
		Publisher: PublisherConfig{Kind: PublisherFile, Dir: "metadata"},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := Merge(&cfg, data); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := ApplyEnvOverrides(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Merge decodes YAML onto cfg; keys absent from data keep their current
// values. Unknown keys are rejected.
func Merge(cfg *Config, data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnvOverrides applies CNFTDROP_* variables found through lookup.
func ApplyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("STATE_DIR", &cfg.StateDir)
	str("RPC_URL", &cfg.RPC.Endpoint)
	str("COMMITMENT", &cfg.RPC.Commitment)
	str("PUBLISHER", &cfg.Publisher.Kind)
	str("BUCKET", &cfg.Publisher.Bucket)
	str("REGION", &cfg.Publisher.Region)
	str("PUBLISHER_ENDPOINT", &cfg.Publisher.Endpoint)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	str("METRICS_LISTEN", &cfg.Metrics.Listen)
	str("RECIPIENTS_FILE", &cfg.Drop.RecipientsFile)

	if v, ok := lookup(EnvPrefix + "PACING"); ok && strings.TrimSpace(v) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sPACING: %w", EnvPrefix, err)
		}
		cfg.Drop.Pacing = d
	}
	if v, ok := lookup(EnvPrefix + "CONTINUE_ON_FAILURE"); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sCONTINUE_ON_FAILURE: %w", EnvPrefix, err)
		}
		cfg.Drop.ContinueOnFailure = b
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.StateDir) == "" {
		errs = append(errs, errors.New("stateDir is required"))
	}
	if u, err := url.Parse(c.RPC.Endpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("rpc.endpoint %q is not an http(s) url", c.RPC.Endpoint))
	}
	switch rpc.Commitment(c.RPC.Commitment) {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
	default:
		errs = append(errs, fmt.Errorf("rpc.commitment %q is not processed, confirmed or finalized", c.RPC.Commitment))
	}
	if c.RPC.Timeout < 0 || c.RPC.ConfirmInterval < 0 || c.RPC.ConfirmTimeout < 0 {
		errs = append(errs, errors.New("rpc durations must not be negative"))
	}
	if err := c.Tree.Params().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tree: %w", err))
	}
	if c.Drop.RoyaltyBps > bubblegum.MaxBasisPoints {
		errs = append(errs, fmt.Errorf("drop.royaltyBps %d exceeds %d", c.Drop.RoyaltyBps, bubblegum.MaxBasisPoints))
	}
	switch c.Publisher.Kind {
	case PublisherS3:
		if c.Publisher.Bucket == "" || c.Publisher.Region == "" {
			errs = append(errs, errors.New("publisher s3 needs bucket and region"))
		}
	case PublisherGCS:
		if c.Publisher.Bucket == "" {
			errs = append(errs, errors.New("publisher gcs needs bucket"))
		}
	case PublisherFile:
		if c.Publisher.Dir == "" {
			errs = append(errs, errors.New("publisher file needs dir"))
		}
	default:
		errs = append(errs, fmt.Errorf("publisher.kind %q is not s3, gcs or file", c.Publisher.Kind))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not text or json", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Passphrase resolves the keystore passphrase: the named environment
// variable first, then the file. Empty means the keypair is stored
// unencrypted.
func (k KeystoreConfig) Passphrase(lookup func(string) (string, bool)) (string, error) {
	if k.PassphraseEnv != "" {
		if v, ok := lookup(k.PassphraseEnv); ok && v != "" {
			return v, nil
		}
	}
	if k.PassphraseFile != "" {
		data, err := os.ReadFile(k.PassphraseFile)
		if err != nil {
			return "", fmt.Errorf("read passphrase file: %w", err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}
	return "", nil
}
