package settings

import (
	_ "embed"
	"fmt"
	"os"
)

//go:embed landing_defaults.json
var landingDefaults []byte

// LandingDefaults returns a fresh copy of the built-in landing page defaults
// applied when a knowledge base is created through the wizard.
func LandingDefaults() Document {
	doc, err := Parse(landingDefaults)
	if err != nil {
		panic(fmt.Sprintf("settings: embedded landing defaults are invalid: %v", err))
	}
	return doc
}

// LoadLandingDefaults reads the defaults from path, or returns the built-in
// defaults when path is empty.
func LoadLandingDefaults(path string) (Document, error) {
	if path == "" {
		return LandingDefaults(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read landing defaults %s: %w", path, err)
	}
	return Parse(raw)
}
