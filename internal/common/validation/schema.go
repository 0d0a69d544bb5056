// Package validation checks request bodies against JSON schemas.
package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"follicle-match/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled JSON schema.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

// MustCompile panics on an invalid schema document; schemas are package
// constants.
func MustCompile(name, document string) *Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(document))
	if err != nil {
		panic(fmt.Sprintf("invalid schema %s: %v", name, err))
	}
	return &Schema{name: name, schema: s}
}

// Validate checks raw JSON and returns a VALIDATION_FAILED error listing
// every violation.
func (s *Schema) Validate(raw []byte) error {
	if !json.Valid(raw) {
		return errors.NewValidationError("body is not valid JSON")
	}

	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return errors.NewValidationError(fmt.Sprintf("%s: %v", s.name, err))
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, len(result.Errors()))
	for i, desc := range result.Errors() {
		msgs[i] = desc.String()
	}
	return errors.NewValidationError(strings.Join(msgs, "; "))
}

// Bind validates raw and decodes it into out.
func (s *Schema) Bind(raw []byte, out interface{}) error {
	if err := s.Validate(raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.NewValidationError(err.Error())
	}
	return nil
}
