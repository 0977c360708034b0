package triage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Signal is one weighted keyword in the bundle.
type Signal struct {
	Signal string  `json:"signal" yaml:"signal"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// Keywords groups the bundle's signal lists by risk class.
type Keywords struct {
	HighRiskSignals      []Signal `json:"high_risk_signals" yaml:"high_risk_signals"`
	PotentialRiskSignals []Signal `json:"potential_risk_signals" yaml:"potential_risk_signals"`
	SafeSignals          []Signal `json:"safe_signals" yaml:"safe_signals"`
}

// Bundle is a capability manifest: the capability name plus the signal
// keywords the scorer runs against.
type Bundle struct {
	Capability string   `json:"capability" yaml:"capability"`
	Version    string   `json:"version" yaml:"version"`
	Keywords   Keywords `json:"keywords" yaml:"keywords"`
}

// LoadBundle reads a manifest from path. The format follows the file
// extension: .yaml/.yml parse as YAML, anything else as JSON.
func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var bundle Bundle
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &bundle); err != nil {
			return nil, fmt.Errorf("parse manifest %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &bundle); err != nil {
			return nil, fmt.Errorf("parse manifest %s: %w", path, err)
		}
	}

	if bundle.Capability == "" {
		return nil, fmt.Errorf("manifest %s: missing capability", path)
	}
	return &bundle, nil
}
