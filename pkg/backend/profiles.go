package backend

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// ProfileInfo summarizes the connection a profile/target pair resolves to.
type ProfileInfo struct {
	Profile     string
	Target      string
	AdapterType string
}

// profileEntry is one named profile in the profiles file.
type profileEntry struct {
	Target  string                    `yaml:"target"`
	Outputs map[string]map[string]any `yaml:"outputs"`
}

// ValidateProfiles checks that the profiles file exists and contains the
// requested profile and target. An empty target falls back to the profile's
// declared default. Credential values are never read, only structure.
func ValidateProfiles(fs afero.Fs, profilesDir, profile, target string) (ProfileInfo, error) {
	info := ProfileInfo{Profile: profile}

	path := filepath.Join(profilesDir, "profiles.yml")
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return info, fmt.Errorf("reading %s: %w", path, err)
	}

	// The top level maps profile names to entries, plus an optional global
	// "config" block that is not a profile.
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return info, fmt.Errorf("parsing %s: %w", path, err)
	}
	delete(raw, "config")

	node, ok := raw[profile]
	if !ok {
		return info, fmt.Errorf("profile %q not found in %s (available: %v)", profile, path, profileNames(raw))
	}

	var entry profileEntry
	if err := node.Decode(&entry); err != nil {
		return info, fmt.Errorf("parsing profile %q: %w", profile, err)
	}

	if target == "" {
		target = entry.Target
	}
	if target == "" {
		return info, fmt.Errorf("profile %q declares no default target and none was configured", profile)
	}
	info.Target = target

	output, ok := entry.Outputs[target]
	if !ok {
		targets := make([]string, 0, len(entry.Outputs))
		for name := range entry.Outputs {
			targets = append(targets, name)
		}
		sort.Strings(targets)
		return info, fmt.Errorf("target %q not found in profile %q (available: %v)", target, profile, targets)
	}

	if adapter, ok := output["type"].(string); ok {
		info.AdapterType = adapter
	}
	return info, nil
}

func profileNames(raw map[string]yaml.Node) []string {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
