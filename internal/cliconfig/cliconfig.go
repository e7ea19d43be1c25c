// Package cliconfig loads the shared YAML configuration file for the
// wsdial command-line tools: named endpoint profiles for wsdial-echo
// and wsdial-repl, and benchmark scenarios for wsdial-bench.
package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultFileName is the config file searched for in the working
	// directory.
	DefaultFileName = "wsdial.yaml"

	// globalConfigDir under os.UserConfigDir holds the fallback config.
	globalConfigDir = "wsdial"
)

// File is a parsed wsdial configuration file.
type File struct {
	// DefaultProfile is used when no profile name is given.
	DefaultProfile string `yaml:"default_profile"`

	// Profiles maps profile names to dial endpoints.
	Profiles map[string]Profile `yaml:"profiles"`

	// Scenarios lists benchmark runs for wsdial-bench.
	Scenarios []Scenario `yaml:"scenarios"`
}

// Profile names a dial endpoint and its connection options.
type Profile struct {
	// URL is the ws:// or wss:// endpoint.
	URL string `yaml:"url"`

	// BufferSize overrides the stream buffer size in bytes.
	BufferSize int `yaml:"buffer_size"`

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	// Headers lists extra upgrade-request header fields.
	Headers []Header `yaml:"headers"`
}

// Header is one extra header field for the upgrade request.
type Header struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// Scenario describes one benchmark run.
type Scenario struct {
	// Name identifies the scenario in reports and on the command line.
	Name string `yaml:"name"`

	// Size is the message payload size in bytes.
	Size int `yaml:"size"`

	// Messages is the number of round trips. Zero means 1000.
	Messages int `yaml:"messages"`
}

// Parse parses a configuration from YAML bytes and validates it.
func Parse(data []byte) (*File, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	for name, profile := range file.Profiles {
		if profile.URL == "" {
			return nil, fmt.Errorf("profile %q is missing a url", name)
		}
		for _, header := range profile.Headers {
			if header.Name == "" {
				return nil, fmt.Errorf("profile %q has a header without a name", name)
			}
		}
	}
	if file.DefaultProfile != "" {
		if _, ok := file.Profiles[file.DefaultProfile]; !ok {
			return nil, fmt.Errorf("default profile %q is not defined", file.DefaultProfile)
		}
	}

	seen := make(map[string]bool, len(file.Scenarios))
	for i, scenario := range file.Scenarios {
		if scenario.Name == "" {
			return nil, fmt.Errorf("scenario %d is missing a name", i)
		}
		if seen[scenario.Name] {
			return nil, fmt.Errorf("scenario %q is defined twice", scenario.Name)
		}
		seen[scenario.Name] = true
		if scenario.Size <= 0 {
			return nil, fmt.Errorf("scenario %q needs a positive size", scenario.Name)
		}
	}

	return &file, nil
}

// Load reads and parses a configuration file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	file, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}

// FindDefault returns the path of the nearest config file: wsdial.yaml
// in the working directory, then config.yaml under the user config
// directory. Empty when neither exists.
func FindDefault() string {
	if _, err := os.Stat(DefaultFileName); err == nil {
		return DefaultFileName
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(configDir, globalConfigDir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

// Profile resolves a profile by name. An empty name selects the
// default profile.
func (f *File) Profile(name string) (Profile, error) {
	if name == "" {
		name = f.DefaultProfile
	}
	if name == "" {
		return Profile{}, fmt.Errorf("no profile named and no default_profile set")
	}
	profile, ok := f.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("profile %q not found (have: %s)", name, strings.Join(f.profileNames(), ", "))
	}
	return profile, nil
}

// Scenario resolves a benchmark scenario by name.
func (f *File) Scenario(name string) (Scenario, error) {
	for _, scenario := range f.Scenarios {
		if scenario.Name == name {
			return scenario, nil
		}
	}
	names := make([]string, 0, len(f.Scenarios))
	for _, scenario := range f.Scenarios {
		names = append(names, scenario.Name)
	}
	return Scenario{}, fmt.Errorf("scenario %q not found (have: %s)", name, strings.Join(names, ", "))
}

func (f *File) profileNames() []string {
	names := make([]string, 0, len(f.Profiles))
	for name := range f.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
