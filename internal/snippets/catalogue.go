// Package snippets holds the catalogue of ready-made code blocks the console
// can run in the shell, and the listener through which an assistant hands new
// blocks to a running console.
package snippets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Snippet is one named block of code.
type Snippet struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description,omitempty"`
	Code        string `yaml:"code" json:"code"`
}

// Catalogue is the file format: a list of snippets under "snippets".
type Catalogue struct {
	Snippets []Snippet `yaml:"snippets"`
}

// Defaults are shown when no catalogue file is configured.
var Defaults = []Snippet{
	{
		Name:        "hello-job",
		Description: "Submit a local Hello World job",
		Code:        "j = Job(name='hello')\nj.application.exe = 'echo'\nj.application.args = ['Hello from GangaFlow']\nj.submit()",
	},
	{
		Name:        "jobs",
		Description: "List all jobs",
		Code:        "jobs",
	},
	{
		Name:        "last-output",
		Description: "Print the stdout of the most recent job",
		Code:        "j = jobs[-1]\nj.peek('stdout')",
	},
	{
		Name:        "split-job",
		Description: "Run one job split into three subjobs",
		Code:        "j = Job(name='split')\nj.application.exe = 'echo'\nj.splitter = ArgSplitter(args=[['a'], ['b'], ['c']])\nj.submit()",
	},
}

// Load reads a catalogue file. An empty path returns Defaults.
func Load(path string) ([]Snippet, error) {
	if strings.TrimSpace(path) == "" {
		return Defaults, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snippets: %w", err)
	}
	return Parse(data)
}

// Parse decodes a catalogue. Every snippet needs a name and code; names must
// be unique.
func Parse(data []byte) ([]Snippet, error) {
	var cat Catalogue
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse snippets: %w", err)
	}

	seen := make(map[string]bool, len(cat.Snippets))
	var errs []error
	for i, s := range cat.Snippets {
		switch {
		case strings.TrimSpace(s.Name) == "":
			errs = append(errs, fmt.Errorf("snippet %d: name is required", i))
		case strings.TrimSpace(s.Code) == "":
			errs = append(errs, fmt.Errorf("snippet %q: code is required", s.Name))
		case seen[s.Name]:
			errs = append(errs, fmt.Errorf("snippet %q: duplicate name", s.Name))
		}
		seen[s.Name] = true
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid snippets: %w", err)
	}
	return cat.Snippets, nil
}

// Find returns the snippet called name.
func Find(list []Snippet, name string) (Snippet, bool) {
	for _, s := range list {
		if s.Name == name {
			return s, true
		}
	}
	return Snippet{}, false
}
