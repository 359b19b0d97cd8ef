package tools

import (
	"context"
	"fmt"
	"math"

	"github.com/xhad/courserag/internal/models"
)

// Definition describes a tool to the model. Parameters is a JSON Schema
// object for the tool's arguments.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Tool is a capability the model may invoke by name.
type Tool interface {
	Definition() Definition
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// SourceTracker is implemented by tools that cite the material they return.
// LastSources holds the citations of the most recent Execute call only.
type SourceTracker interface {
	LastSources() []models.Source
	ResetSources()
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidArguments, key)
	}
	return s, nil
}

func intArg(args map[string]any, key string) (*int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}

	var n int
	switch x := v.(type) {
	case int:
		n = x
	case float64:
		if x != math.Trunc(x) {
			return nil, fmt.Errorf("%w: %s must be an integer", ErrInvalidArguments, key)
		}
		n = int(x)
	default:
		return nil, fmt.Errorf("%w: %s must be an integer", ErrInvalidArguments, key)
	}
	return &n, nil
}
