package harness

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/roach88/streakgate/internal/rank"
)

const progressSchemaURL = "https://streakgate.invalid/schemas/progress.json"

// CompileProgressSchema builds the JSON Schema every progress payload must
// satisfy in strict mode. currentRank is restricted to the tier names of table.
func CompileProgressSchema(table rank.Table) (*jsonschema.Schema, error) {
	count := map[string]any{"type": "integer", "minimum": 0}
	doc := map[string]any{
		"$schema":  "https://json-schema.org/draft/2020-12/schema",
		"type":     "object",
		"required": []string{FieldStreakCount, FieldTotalCompletedDays, FieldCurrentDay, FieldCurrentRank, FieldNextRankInfo},
		"properties": map[string]any{
			FieldStreakCount:        count,
			FieldTotalCompletedDays: count,
			FieldCurrentDay:         count,
			FieldCurrentRank:        map[string]any{"type": "string", "enum": table.Names()},
			FieldNextRankInfo: map[string]any{
				"oneOf": []any{
					map[string]any{"type": "null"},
					map[string]any{
						"type":     "object",
						"required": []string{"nextRank", "daysNeeded"},
						"properties": map[string]any{
							"nextRank":   map[string]any{"type": "string", "minLength": 1},
							"daysNeeded": map[string]any{"type": "integer", "exclusiveMinimum": 0},
						},
					},
				},
			},
		},
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode progress schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(progressSchemaURL, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(progressSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}
