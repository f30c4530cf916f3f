package mcp

import (
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/tempo/internal/errors"
)

// decode copies the tool arguments into T. A wrongly typed argument is a
// VALIDATION_ERROR whose details name the field.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return result, errors.NewInternal(fmt.Errorf("marshal args: %w", err))
	}
	if err := json.Unmarshal(b, &result); err != nil {
		var typeErr *json.UnmarshalTypeError
		if stderrors.As(err, &typeErr) && typeErr.Field != "" {
			e := errors.NewValidation(fmt.Sprintf("%s has the wrong type (want %s)", typeErr.Field, typeErr.Type))
			e.Details = map[string]any{"field": typeErr.Field}
			return result, e
		}
		return result, errors.NewValidation(fmt.Sprintf("invalid arguments: %v", err))
	}
	return result, nil
}
