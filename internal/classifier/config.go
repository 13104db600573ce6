// Package classifier trains and serves per-slot role classifiers with a
// fingerprint-gated reuse of previously trained artifacts.
package classifier

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/Keshav04042001/mindmeld/internal/apppath"
)

// Kind identifies a classifier type for configuration resolution.
type Kind string

// KindRole is the role classifier kind.
const KindRole Kind = "role"

// ModelConfig is the resolved training configuration for one classifier.
type ModelConfig struct {
	ModelType string             `yaml:"model_type" json:"model_type"`
	Features  []string           `yaml:"features,omitempty" json:"features,omitempty"`
	Params    map[string]float64 `yaml:"params,omitempty" json:"params,omitempty"`
	// Verbose enables per-fit debug logging. It does not affect the trained
	// outcome and is excluded from the training fingerprint.
	Verbose bool `yaml:"verbose,omitempty" json:"verbose,omitempty"`
}

type significantConfig struct {
	ModelType string             `json:"model_type"`
	Features  []string           `json:"features,omitempty"`
	Params    map[string]float64 `json:"params,omitempty"`
}

// Significant returns the fields that affect the trained outcome. Features
// are sorted on a copy so declaration order never changes the fingerprint.
func (c ModelConfig) Significant() any {
	features := append([]string(nil), c.Features...)
	sort.Strings(features)
	if len(features) == 0 {
		features = nil
	}
	return significantConfig{
		ModelType: c.ModelType,
		Features:  features,
		Params:    c.Params,
	}
}

// HasFeature reports whether name is in the feature set.
func (c ModelConfig) HasFeature(name string) bool {
	for _, f := range c.Features {
		if f == name {
			return true
		}
	}
	return false
}

// DefaultModelConfig is the configuration used when the app defines none.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{ModelType: ModelTypeFrequency}
}

// ConfigOverride scopes a ModelConfig to a (domain, intent, entity) selector.
// Empty selector fields match anything.
type ConfigOverride struct {
	Domain string      `yaml:"domain,omitempty"`
	Intent string      `yaml:"intent,omitempty"`
	Entity string      `yaml:"entity,omitempty"`
	Config ModelConfig `yaml:"config"`
}

type classifierSection struct {
	Default   *ModelConfig     `yaml:"default"`
	Overrides []ConfigOverride `yaml:"overrides"`
}

type appConfigFile struct {
	Classifiers map[string]classifierSection `yaml:"classifiers"`
}

// ResolveConfig returns the effective configuration for a classifier of the
// given kind at (domain, intent, entity), read from the app's config.yaml.
// The most specific matching override wins; a missing file or section falls
// back to DefaultModelConfig.
func ResolveConfig(kind Kind, appPath, domain, intent, entity string) (ModelConfig, error) {
	data, err := os.ReadFile(apppath.ConfigPath(appPath))
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultModelConfig(), nil
	}
	if err != nil {
		return ModelConfig{}, fmt.Errorf("read app config: %w", err)
	}

	var file appConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return ModelConfig{}, fmt.Errorf("parse app config: %w", err)
	}

	section, ok := file.Classifiers[string(kind)]
	if !ok {
		return DefaultModelConfig(), nil
	}

	resolved := DefaultModelConfig()
	if section.Default != nil {
		resolved = *section.Default
	}

	bestSpecificity := -1
	for _, o := range section.Overrides {
		if !selectorMatches(o.Domain, domain) ||
			!selectorMatches(o.Intent, intent) ||
			!selectorMatches(o.Entity, entity) {
			continue
		}
		specificity := 0
		for _, s := range []string{o.Domain, o.Intent, o.Entity} {
			if s != "" {
				specificity++
			}
		}
		// later overrides win ties
		if specificity >= bestSpecificity {
			bestSpecificity = specificity
			resolved = o.Config
		}
	}

	if resolved.ModelType == "" {
		resolved.ModelType = ModelTypeFrequency
	}
	return resolved, nil
}

func selectorMatches(selector, value string) bool {
	return selector == "" || selector == value
}
