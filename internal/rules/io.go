package rules

import (
	"fmt"
	"io"

	"github.com/Veraticus/receipt-sorter/internal/model"
	"gopkg.in/yaml.v3"
)

// FileVersion is the current rule file format version.
const FileVersion = 1

type ruleFile struct {
	Rules   []model.Rule `yaml:"rules"`
	Version int          `yaml:"version"`
}

// Export writes rules as YAML in evaluation order. Condition and action lists
// keep their order, which the combinator depends on.
func Export(w io.Writer, rules []model.Rule) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(ruleFile{Version: FileVersion, Rules: rules}); err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}
	return enc.Close()
}

// Import reads and validates a YAML rule file.
func Import(r io.Reader) ([]model.Rule, error) {
	var f ruleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode rules: %w", err)
	}
	if f.Version != FileVersion {
		return nil, fmt.Errorf("unsupported rule file version %d", f.Version)
	}
	for i, rule := range f.Rules {
		if err := Validate(rule); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
	}
	return f.Rules, nil
}
