package forms

import (
	"context"
	"embed"
	"fmt"

	"protectbox/internal/schema"
)

const (
	SchemaInterview = "interview"
	SchemaITVR      = "itvr"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// RegisterSchemas loads the form payload schemas into the compiler
func RegisterSchemas(c *schema.Compiler) error {
	for _, name := range []string{SchemaInterview, SchemaITVR} {
		raw, err := schemaFS.ReadFile("schemas/" + name + ".json")
		if err != nil {
			return fmt.Errorf("read schema %s: %w", name, err)
		}
		if err := c.Register(name, raw); err != nil {
			return err
		}
	}
	return nil
}

// ValidateInterview checks an interview payload against its schema
func ValidateInterview(ctx context.Context, c *schema.Compiler, f *InterviewForm) error {
	return c.Validate(ctx, SchemaInterview, f)
}

// ValidateITVR checks an assessment payload against its schema
func ValidateITVR(ctx context.Context, c *schema.Compiler, f *ITVRForm) error {
	return c.Validate(ctx, SchemaITVR, f)
}
