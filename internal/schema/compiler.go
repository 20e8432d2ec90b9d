package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	js "github.com/santhosh-tekuri/jsonschema/v5"
)

// Compiler compiles named JSON schemas and keeps the compiled form in an
// expiring LRU. Sources stay registered, so an evicted schema is recompiled
// on next use.
type Compiler struct {
	mu       sync.Mutex
	compiler *js.Compiler
	cache    *expirable.LRU[string, *js.Schema]
	sources  map[string][]byte
}

// NewCompilerWithCache creates a new compiler with cache
func NewCompilerWithCache(maxSize int, ttl time.Duration) *Compiler {
	c := js.NewCompiler()
	c.ExtractAnnotations = true

	return &Compiler{
		compiler: c,
		cache:    expirable.NewLRU[string, *js.Schema](maxSize, nil, ttl),
		sources:  make(map[string][]byte),
	}
}

func resourceURL(name string) string {
	return fmt.Sprintf("mem://schema/%s.json", name)
}

// Register adds a named schema and compiles it once to surface syntax errors early
func (c *Compiler) Register(name string, raw []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.compiler.AddResource(resourceURL(name), bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("failed to add resource %s: %w", name, err)
	}
	compiled, err := c.compiler.Compile(resourceURL(name))
	if err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}
	c.sources[name] = raw
	c.cache.Add(name, compiled)
	return nil
}

func (c *Compiler) get(name string) (*js.Schema, error) {
	if compiled, ok := c.cache.Get(name); ok {
		return compiled, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sources[name]; !ok {
		return nil, fmt.Errorf("schema %s not registered", name)
	}
	compiled, err := c.compiler.Compile(resourceURL(name))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
	}
	c.cache.Add(name, compiled)
	return compiled, nil
}

// Validate validates a value against a registered schema
func (c *Compiler) Validate(ctx context.Context, name string, value interface{}) error {
	compiled, err := c.get(name)
	if err != nil {
		return err
	}

	// Round-trip through JSON so structs validate like decoded payloads
	valueBytes, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	var valueRaw interface{}
	if err := json.Unmarshal(valueBytes, &valueRaw); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}

	if err := compiled.Validate(valueRaw); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// Violations flattens a schema validation error into instance path -> message.
// Errors that are not schema violations yield nil.
func Violations(err error) map[string]string {
	var ve *js.ValidationError
	if !errors.As(err, &ve) {
		return nil
	}
	out := make(map[string]string)
	for _, e := range ve.BasicOutput().Errors {
		if e.Error == "" || strings.HasPrefix(e.Error, "doesn't validate with") {
			continue
		}
		field := strings.TrimPrefix(e.InstanceLocation, "/")
		if field == "" {
			field = "$"
		}
		out[strings.ReplaceAll(field, "/", ".")] = e.Error
	}
	return out
}
