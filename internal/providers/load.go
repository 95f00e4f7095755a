package providers

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	dErrors "verigate/pkg/domain-errors"
)

// Table is the on-disk provider capability/limit table.
type Table struct {
	Providers []Provider `yaml:"providers"`
}

// LoadFile reads a YAML provider table.
func LoadFile(path string) (Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read provider table: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML provider table and validates every entry. Unknown
// fields and duplicate IDs are rejected.
func Parse(raw []byte) (Table, error) {
	var table Table
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&table); err != nil {
		return Table{}, dErrors.Wrap(err, dErrors.CodeConfiguration, "decode provider table")
	}
	if len(table.Providers) == 0 {
		return Table{}, dErrors.New(dErrors.CodeConfiguration, "provider table is empty")
	}
	seen := make(map[string]struct{}, len(table.Providers))
	for i, p := range table.Providers {
		p = normalize(p)
		if err := p.Validate(); err != nil {
			return Table{}, err
		}
		if _, dup := seen[p.ID]; dup {
			return Table{}, dErrors.Newf(dErrors.CodeConfiguration, "provider %s declared twice", p.ID)
		}
		seen[p.ID] = struct{}{}
		table.Providers[i] = p
	}
	return table, nil
}
