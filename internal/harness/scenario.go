package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a named group of cases run in order against one user.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Cases run sequentially. A case that fails a control call stops early;
	// later cases still run.
	Cases []Case `yaml:"cases"`
}

// Case is one unit of reporting, usually one injected streak value.
type Case struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Step actions.
const (
	ActionSimulate = "simulate"
	ActionGrace    = "grace"
	ActionCheck    = "check"
)

// Step is a single control call or observation.
type Step struct {
	// Action is one of simulate, grace, check.
	Action string `yaml:"action"`

	// Streak is the nominal streak to inject (simulate).
	Streak int `yaml:"streak,omitempty"`

	// SkipOffsets lists day offsets left uncompleted (simulate). 0 is today.
	SkipOffsets []int `yaml:"skipOffsets,omitempty"`

	// GraceOffsetDays selects the backfilled date as UTC now minus this many
	// days (grace). Zero means 1.
	GraceOffsetDays int `yaml:"graceOffsetDays,omitempty"`

	// Capture stores the observed state under this name (check).
	Capture string `yaml:"capture,omitempty"`

	// Expect lists the fields to compare (check).
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is a subset match on the observed progress payload. Unset fields
// are not compared.
type Expect struct {
	StreakCount        *int            `yaml:"streakCount,omitempty"`
	TotalCompletedDays *int            `yaml:"totalCompletedDays,omitempty"`
	CurrentDay         *int            `yaml:"currentDay,omitempty"`
	CurrentRank        string          `yaml:"currentRank,omitempty"`
	NextRank           *NextRankExpect `yaml:"nextRank,omitempty"`
	NextRankNull       bool            `yaml:"nextRankNull,omitempty"`

	// Oracle derives currentRank and nextRankInfo from StreakCount.
	Oracle bool `yaml:"oracle,omitempty"`

	// SameAs compares the whole observed state with an earlier capture.
	SameAs string `yaml:"sameAs,omitempty"`
}

// NextRankExpect is the expected non-null nextRankInfo.
type NextRankExpect struct {
	Name       string `yaml:"name"`
	DaysNeeded int    `yaml:"daysNeeded"`
}

// ValidationError reports a malformed scenario.
type ValidationError struct {
	Scenario string
	Path     string // e.g. "cases[2].steps[0]"
	Message  string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Scenario != "" && e.Path != "":
		return fmt.Sprintf("scenario %q: %s: %s", e.Scenario, e.Path, e.Message)
	case e.Path != "":
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	default:
		return e.Message
	}
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := ValidateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// ValidateScenario checks that required fields are present and that
// every step is runnable. Built-in scenarios pass through here too.
func ValidateScenario(s *Scenario) error {
	if s.Name == "" {
		return &ValidationError{Message: "name is required"}
	}
	if s.Description == "" {
		return &ValidationError{Scenario: s.Name, Message: "description is required"}
	}
	if len(s.Cases) == 0 {
		return &ValidationError{Scenario: s.Name, Message: "cases list is required and must be non-empty"}
	}

	fail := func(path, format string, args ...any) error {
		return &ValidationError{Scenario: s.Name, Path: path, Message: fmt.Sprintf(format, args...)}
	}

	for ci, c := range s.Cases {
		if c.Name == "" {
			return fail(fmt.Sprintf("cases[%d]", ci), "name is required")
		}
		if len(c.Steps) == 0 {
			return fail(fmt.Sprintf("cases[%d]", ci), "steps list is required and must be non-empty")
		}

		// captures are scoped to the case
		captures := make(map[string]bool)
		for si, step := range c.Steps {
			path := fmt.Sprintf("cases[%d].steps[%d]", ci, si)
			switch step.Action {
			case ActionSimulate:
				if step.Streak < 0 {
					return fail(path, "streak must be non-negative, got %d", step.Streak)
				}
				for _, off := range step.SkipOffsets {
					if off < 0 {
						return fail(path, "skipOffsets must be non-negative, got %d", off)
					}
				}
			case ActionGrace:
				if step.GraceOffsetDays < 0 {
					return fail(path, "graceOffsetDays must be non-negative, got %d", step.GraceOffsetDays)
				}
			case ActionCheck:
				if step.Expect == nil && step.Capture == "" {
					return fail(path, "check needs expect or capture")
				}
				if step.Expect != nil {
					if err := validateExpect(step.Expect, captures); err != nil {
						return fail(path+".expect", "%s", err.Error())
					}
				}
				if step.Capture != "" {
					captures[step.Capture] = true
				}
			case "":
				return fail(path, "action is required")
			default:
				return fail(path, "unknown action %q", step.Action)
			}
		}
	}
	return nil
}

func validateExpect(e *Expect, captures map[string]bool) error {
	if e.Oracle {
		if e.StreakCount == nil {
			return fmt.Errorf("oracle requires streakCount")
		}
		if e.CurrentRank != "" || e.NextRank != nil || e.NextRankNull {
			return fmt.Errorf("oracle cannot be combined with currentRank or nextRank")
		}
	}
	if e.NextRank != nil && e.NextRankNull {
		return fmt.Errorf("nextRank and nextRankNull are mutually exclusive")
	}
	if e.NextRank != nil && e.NextRank.Name == "" {
		return fmt.Errorf("nextRank.name is required")
	}
	if e.SameAs != "" && !captures[e.SameAs] {
		return fmt.Errorf("sameAs %q does not name an earlier capture", e.SameAs)
	}
	return nil
}
