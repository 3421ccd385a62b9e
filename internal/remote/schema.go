package remote

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

const listResponseSchema = `{
  "type": "object",
  "required": ["prompts"],
  "properties": {
    "prompts": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "description": {"type": ["string", "null"]},
          "tags": {"type": ["array", "null"], "items": {"type": "string"}}
        }
      }
    }
  }
}`

const pushResponseSchema = `{
  "type": "object",
  "properties": {
    "success": {"type": "boolean"},
    "message": {"type": ["string", "null"]},
    "results": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["name", "status"],
        "properties": {
          "name": {"type": "string"},
          "status": {"type": "string"},
          "error": {"type": ["string", "null"]}
        }
      }
    },
    "stats": {
      "type": ["object", "null"],
      "properties": {
        "errors": {"type": "integer", "minimum": 0}
      }
    }
  }
}`

var (
	listSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
		return gojsonschema.NewSchema(gojsonschema.NewStringLoader(listResponseSchema))
	})
	pushSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
		return gojsonschema.NewSchema(gojsonschema.NewStringLoader(pushResponseSchema))
	})
)

// validate checks body against a compiled schema and joins all violations
// into one error.
func validate(schemaFn func() (*gojsonschema.Schema, error), body []byte) error {
	schema, err := schemaFn()
	if err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("response does not match schema: %s", strings.Join(msgs, "; "))
}
