// Package content describes the off-chain metadata record shared by every
// mint of a drop, and the canonical bytes it is published as.
package content

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gowebpki/jcs"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "https://cnftdrop.local/schemas/metadata.schema.json"

//go:embed metadata.schema.json
var schemaSource string

var ErrInvalidRecord = errors.New("invalid metadata record")

type Attribute struct {
	TraitType string `json:"trait_type" yaml:"trait_type"`
	Value     any    `json:"value" yaml:"value"`
}

type File struct {
	URI  string `json:"uri" yaml:"uri"`
	Type string `json:"type" yaml:"type"`
}

type Properties struct {
	Files    []File `json:"files,omitempty" yaml:"files"`
	Category string `json:"category,omitempty" yaml:"category"`
}

// Record is the metadata JSON wallets and explorers fetch from the minted
// leaf's URI.
type Record struct {
	Name        string      `json:"name" yaml:"name"`
	Symbol      string      `json:"symbol,omitempty" yaml:"symbol"`
	Description string      `json:"description,omitempty" yaml:"description"`
	Image       string      `json:"image" yaml:"image"`
	ExternalURL string      `json:"external_url,omitempty" yaml:"external_url"`
	Attributes  []Attribute `json:"attributes,omitempty" yaml:"attributes"`
	Properties  *Properties `json:"properties,omitempty" yaml:"properties"`
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		c.AssertFormat = true
		if err := c.AddResource(schemaURL, bytes.NewReader([]byte(schemaSource))); err != nil {
			schemaErr = fmt.Errorf("load metadata schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// Validate checks the record against the metadata schema.
func (r Record) Validate() error {
	s, err := compiledSchema()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return nil
}

// Canonical returns the RFC 8785 encoding of the record, so equal records
// always publish byte-identical objects.
func (r Record) Canonical() ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return jcs.Transform(raw)
}

// ObjectKey names the published object after the digest of its canonical
// bytes.
func ObjectKey(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]) + ".json"
}
