package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if cfg.Drop.Pacing != 5*time.Second {
		t.Fatalf("expected default pacing 5s, got %s", cfg.Drop.Pacing)
	}
	if cfg.Tree.MaxDepth != 14 || cfg.Tree.MaxBufferSize != 64 || cfg.Tree.CanopyDepth != 0 {
		t.Fatalf("unexpected default tree shape: %+v", cfg.Tree)
	}
}

func TestMergeKeepsUnsetFields(t *testing.T) {
	cfg := Default()
	data := []byte(`
rpc:
  endpoint: http://127.0.0.1:8899
  confirmTimeout: 45s
drop:
  name: MGF cNFT
  continueOnFailure: true
content:
  name: MGF cNFT
  image: https://example.com/a.png
  attributes:
    - trait_type: twitter
      value: "@mfeitozaa"
`)
	if err := Merge(&cfg, data); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if cfg.RPC.Endpoint != "http://127.0.0.1:8899" {
		t.Fatalf("endpoint not merged: %s", cfg.RPC.Endpoint)
	}
	if cfg.RPC.ConfirmTimeout != 45*time.Second {
		t.Fatalf("expected confirmTimeout=45s, got %s", cfg.RPC.ConfirmTimeout)
	}
	if cfg.RPC.Commitment != "confirmed" {
		t.Fatalf("unset commitment must keep default, got %q", cfg.RPC.Commitment)
	}
	if cfg.Drop.RoyaltyBps != 500 || cfg.Drop.Pacing != 5*time.Second {
		t.Fatalf("unset drop fields must keep defaults: %+v", cfg.Drop)
	}
	if !cfg.Drop.ContinueOnFailure {
		t.Fatal("expected continueOnFailure=true after merge")
	}
	if len(cfg.Content.Attributes) != 1 || cfg.Content.Attributes[0].TraitType != "twitter" {
		t.Fatalf("content attributes not merged: %+v", cfg.Content.Attributes)
	}
}

func TestMergeRejectsUnknownKeys(t *testing.T) {
	cfg := Default()
	if err := Merge(&cfg, []byte("rpc:\n  endpont: http://x\n")); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	cfg := Default()
	if err := Merge(&cfg, []byte("stateDir: from-file\ndrop:\n  pacing: 2s\n")); err != nil {
		t.Fatalf("merge: %v", err)
	}
	err := ApplyEnvOverrides(&cfg, envMap(map[string]string{
		"CNFTDROP_STATE_DIR":           "from-env",
		"CNFTDROP_PACING":              "750ms",
		"CNFTDROP_CONTINUE_ON_FAILURE": "true",
		"CNFTDROP_RPC_URL":             "  ",
	}))
	if err != nil {
		t.Fatalf("env overrides: %v", err)
	}
	if cfg.StateDir != "from-env" {
		t.Fatalf("expected env state dir, got %s", cfg.StateDir)
	}
	if cfg.Drop.Pacing != 750*time.Millisecond {
		t.Fatalf("expected env pacing, got %s", cfg.Drop.Pacing)
	}
	if !cfg.Drop.ContinueOnFailure {
		t.Fatal("expected env continueOnFailure")
	}
	if cfg.RPC.Endpoint != Default().RPC.Endpoint {
		t.Fatalf("blank env value must not override, got %s", cfg.RPC.Endpoint)
	}
}

func TestEnvOverridesRejectMalformedValues(t *testing.T) {
	for name, value := range map[string]string{
		"CNFTDROP_PACING":              "five seconds",
		"CNFTDROP_CONTINUE_ON_FAILURE": "sometimes",
	} {
		cfg := Default()
		if err := ApplyEnvOverrides(&cfg, envMap(map[string]string{name: value})); err == nil {
			t.Fatalf("expected %s=%q to be rejected", name, value)
		}
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.RPC.Endpoint = "ftp://node"
	cfg.RPC.Commitment = "max"
	cfg.Tree.MaxBufferSize = 65
	cfg.Publisher.Kind = "ipfs"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"rpc.endpoint", "rpc.commitment", "tree:", "publisher.kind"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestLoadReadsFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cnftdrop.yaml")
	if err := os.WriteFile(path, []byte("publisher:\n  kind: s3\n  bucket: drops\n  region: eu-west-1\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CNFTDROP_BUCKET", "drops-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Publisher.Kind != PublisherS3 || cfg.Publisher.Bucket != "drops-env" || cfg.Publisher.Region != "eu-west-1" {
		t.Fatalf("unexpected publisher config: %+v", cfg.Publisher)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestPassphraseSources(t *testing.T) {
	file := filepath.Join(t.TempDir(), "pass")
	if err := os.WriteFile(file, []byte("from-file\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	k := KeystoreConfig{PassphraseEnv: "CNFTDROP_PASSPHRASE", PassphraseFile: file}

	got, err := k.Passphrase(envMap(map[string]string{"CNFTDROP_PASSPHRASE": "from-env"}))
	if err != nil || got != "from-env" {
		t.Fatalf("expected env passphrase, got %q err=%v", got, err)
	}
	got, err = k.Passphrase(envMap(nil))
	if err != nil || got != "from-file" {
		t.Fatalf("expected file passphrase, got %q err=%v", got, err)
	}
	got, err = KeystoreConfig{}.Passphrase(envMap(nil))
	if err != nil || got != "" {
		t.Fatalf("expected no passphrase, got %q err=%v", got, err)
	}
}

func TestExampleConfigIsValid(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "configs", "cnftdrop.example.yaml"))
	if err != nil {
		t.Fatalf("read example: %v", err)
	}
	cfg := Default()
	if err := Merge(&cfg, data); err != nil {
		t.Fatalf("merge example: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("example must validate: %v", err)
	}
	if cfg.RPC.MethodLimits["sendTransaction"] != 1 {
		t.Fatalf("expected sendTransaction limit 1, got %v", cfg.RPC.MethodLimits)
	}
}
