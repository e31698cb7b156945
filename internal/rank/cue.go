package rank

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// tableSchema constrains a rank table file. Ordering rules live in
// Table.Validate since CUE cannot express "strictly increasing" over a list
// without comprehensions that produce poor error messages.
const tableSchema = `
#Tier: {
	name:      string & =~"^[a-z][a-z0-9_]*$"
	display:   string & !=""
	threshold: int & >=0
}

tiers: [#Tier, ...#Tier]
`

// ParseCUE loads a rank table from CUE source of the form:
//
//	tiers: [
//		{name: "guest", display: "Guest", threshold: 0},
//		{name: "member", display: "Member", threshold: 4},
//	]
//
// The filename is only used in error positions.
func ParseCUE(filename string, src []byte) (Table, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(tableSchema, cue.Filename("rank_schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile rank schema: %w", err)
	}

	value := ctx.CompileBytes(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("compile %s: %w", filename, err)
	}

	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate %s: %w", filename, err)
	}

	var doc struct {
		Tiers []Tier `json:"tiers"`
	}
	if err := unified.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}

	table := Table(doc.Tiers)
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return table, nil
}

// LoadFile reads and parses a CUE rank table from disk.
func LoadFile(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rank table: %w", err)
	}
	return ParseCUE(path, data)
}
