package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/scrypster/engram/pkg/types"
)

// ComponentSpec selects a processor for one component role within a stage.
type ComponentSpec struct {
	// Role names the slot this processor fills (e.g. "filter",
	// "compressor"). Roles are free-form but must be unique per stage.
	Role string `yaml:"role"`

	// Processor is the registered processor name.
	Processor string `yaml:"processor"`

	// Config is the processor-specific config blob, passed to Configure.
	Config map[string]interface{} `yaml:"config"`
}

// StageSpec configures one named stage.
type StageSpec struct {
	// Enabled toggles the stage. A disabled stage is a pass-through, not
	// an error.
	Enabled bool `yaml:"enabled"`

	// Requires lists earlier stages this stage depends on. A requirement
	// on a disabled or later stage is a configuration error.
	Requires []string `yaml:"requires"`

	// Components are processed in list order within the stage.
	Components []ComponentSpec `yaml:"components"`
}

// Profile is the declarative pipeline configuration: which processors fill
// which component roles in which stages. Unknown stage or processor names
// are rejected at load time, never discovered mid-pipeline.
type Profile struct {
	Name   string              `yaml:"name"`
	Stages map[string]StageSpec `yaml:"stages"`
}

// LoadProfile reads and parses a YAML profile file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile parses YAML profile bytes.
func ParseProfile(data []byte) (*Profile, error) {
	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("%w: malformed pipeline profile: %v", types.ErrConfiguration, err)
	}
	return &profile, nil
}

// Validate checks the profile against the stage enumeration and the
// processor registry. It must pass before any item is processed.
func (p *Profile) Validate(registry *Registry) error {
	for name, spec := range p.Stages {
		stage, err := ParseStage(name)
		if err != nil {
			return fmt.Errorf("%w: %v", types.ErrConfiguration, err)
		}

		roles := make(map[string]bool)
		for _, component := range spec.Components {
			if component.Role == "" {
				return fmt.Errorf("%w: stage %s has a component with no role", types.ErrConfiguration, stage)
			}
			if roles[component.Role] {
				return fmt.Errorf("%w: stage %s defines role %q twice", types.ErrConfiguration, stage, component.Role)
			}
			roles[component.Role] = true

			if !registry.Has(component.Processor) {
				return fmt.Errorf("%w: stage %s role %q names unknown processor %q",
					types.ErrConfiguration, stage, component.Role, component.Processor)
			}
		}

		for _, required := range spec.Requires {
			requiredStage, err := ParseStage(required)
			if err != nil {
				return fmt.Errorf("%w: stage %s requires %v", types.ErrConfiguration, stage, err)
			}
			if !requiredStage.Before(stage) {
				return fmt.Errorf("%w: stage %s cannot require %s, which does not come before it",
					types.ErrConfiguration, stage, requiredStage)
			}
			if spec.Enabled && !p.Stages[required].Enabled {
				return fmt.Errorf("%w: stage %s requires disabled stage %s",
					types.ErrConfiguration, stage, requiredStage)
			}
		}
	}
	return nil
}
