// Package msgs holds the catalog of user-visible messages and command
// descriptions.
package msgs

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed msgs.yaml
var catalogYAML []byte

// Command describes a command for help and man.
type Command struct {
	Summary string `yaml:"summary"`
	Usage   string `yaml:"usage"`
}

// Catalog is a parsed message catalog.
type Catalog struct {
	Messages map[string]string  `yaml:"messages"`
	Commands map[string]Command `yaml:"commands"`
}

// Parse parses a catalog in YAML.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse message catalog: %w", err)
	}
	return &c, nil
}

var builtin = mustParse(catalogYAML)

func mustParse(data []byte) *Catalog {
	c, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return c
}

// Format formats the message with the given key. An unknown key formats as
// the key followed by the arguments.
func (c *Catalog) Format(key string, args ...any) string {
	format, ok := c.Messages[key]
	if !ok {
		return strings.TrimSuffix(fmt.Sprintln(append([]any{key + ":"}, args...)...), "\n")
	}
	return fmt.Sprintf(format, args...)
}

// Command returns the description of a command.
func (c *Catalog) Command(name string) (Command, bool) {
	cmd, ok := c.Commands[name]
	return cmd, ok
}

// CommandNames returns the names of all described commands, sorted.
func (c *Catalog) CommandNames() []string {
	names := make([]string, 0, len(c.Commands))
	for name := range c.Commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Format formats a message from the builtin catalog.
func Format(key string, args ...any) string { return builtin.Format(key, args...) }

// Describe returns the description of a command from the builtin catalog.
func Describe(name string) (Command, bool) { return builtin.Command(name) }
