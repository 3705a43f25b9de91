package flow

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// flowDocumentSchema is the shape check applied to incoming flow documents
// before semantic validation. It rejects malformed JSON structure early with
// pointer-level messages; graph semantics are checked by Validate.
const flowDocumentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["account_id", "name", "nodes", "edges"],
  "properties": {
    "id": {"type": "string"},
    "account_id": {"type": "string", "minLength": 1},
    "name": {"type": "string", "minLength": 1},
    "is_active": {"type": "boolean"},
    "nodes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "type"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "type": {"enum": ["trigger", "message", "condition", "delay", "action"]},
          "data": {"type": "object"},
          "position": {
            "type": "object",
            "properties": {
              "x": {"type": "number"},
              "y": {"type": "number"}
            }
          }
        }
      }
    },
    "edges": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "source", "target"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "source": {"type": "string", "minLength": 1},
          "target": {"type": "string", "minLength": 1},
          "branch_handle": {"type": "string"}
        }
      }
    }
  }
}`

// ValidateDocument checks the raw JSON shape of a flow document. Returned
// messages are human readable, one per violation.
func ValidateDocument(raw []byte) ([]string, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(flowDocumentSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to run schema validation: %w", err)
	}

	if result.Valid() {
		return nil, nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		messages = append(messages, desc.String())
	}

	return messages, nil
}
