// Package manifest loads experience definitions from YAML files, so a
// site's targeting setup can live in version control next to its content.
package manifest

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/popgate/popgate/internal/engine"
	"github.com/popgate/popgate/internal/frequency"
)

// File is the top-level manifest document.
type File struct {
	Experiences []engine.Experience `yaml:"experiences"`
}

// Load reads and validates a manifest file.
func Load(path string) ([]engine.Experience, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes and validates a manifest document.
func Parse(r io.Reader) ([]engine.Experience, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}

	seen := make(map[string]bool)
	for i := range file.Experiences {
		exp := &file.Experiences[i]
		if err := validate(exp); err != nil {
			return nil, fmt.Errorf("experience %d (%q): %w", i, exp.ID, err)
		}
		if seen[exp.ID] {
			return nil, fmt.Errorf("experience %d: duplicate id %q", i, exp.ID)
		}
		seen[exp.ID] = true
	}
	return file.Experiences, nil
}

func validate(exp *engine.Experience) error {
	if exp.ID == "" {
		return fmt.Errorf("missing id")
	}
	if exp.Kind == "" {
		exp.Kind = engine.KindBanner
	}
	if !engine.ValidKind(exp.Kind) {
		return fmt.Errorf("unknown kind %q", exp.Kind)
	}
	if exp.Frequency != nil {
		if exp.Frequency.Max < 1 {
			return fmt.Errorf("frequency max must be at least 1")
		}
		if _, err := frequency.ParseWindow(string(exp.Frequency.Per)); err != nil {
			return err
		}
	}
	if tr := exp.Targeting.Trigger; tr != nil {
		if tr.Name == "" {
			return fmt.Errorf("trigger rule missing name")
		}
		if tr.Threshold != nil && tr.Name != engine.TriggerScrollDepth {
			return fmt.Errorf("threshold only applies to the %s trigger", engine.TriggerScrollDepth)
		}
	}
	return nil
}
