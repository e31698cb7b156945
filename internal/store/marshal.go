package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// marshalScenarios stores the scenario list as a JSON array TEXT.
func marshalScenarios(names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(names); err != nil {
		return "", fmt.Errorf("marshal scenarios: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

func unmarshalScenarios(data string) ([]string, error) {
	names := []string{}
	if data == "" {
		return names, nil
	}
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, fmt.Errorf("unmarshal scenarios: %w", err)
	}
	return names, nil
}

// Times are stored as RFC 3339 UTC so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
