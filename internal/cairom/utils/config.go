// Package utils holds the compiler-wide Config builder, adapted from the
// Config/Validate/With*/Clone idiom of
// _examples/vybium-vybium-starks-vm/internal/vybium-starks-vm/utils/config.go,
// generalized from proof-system parameters to compiler knobs (spec §6).
package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config bundles every environment-overridable compiler knob into one
// value so pipeline stages take an explicit Config instead of reading
// the environment ad hoc.
type Config struct {
	// MaxPasses caps fixed-point optimizer iterations per pass
	// (CAIRO_M_MAX_PASSES).
	MaxPasses int

	// DisabledPasses names optimizer passes to skip entirely
	// (CAIRO_M_DISABLE_PASSES, comma-separated).
	DisabledPasses []string

	// MemorySize is the VM's total addressable cell count.
	MemorySize uint32

	// PageSize is the VM's lazily-allocated page granularity
	// (CAIRO_M_PAGE_SIZE).
	PageSize uint32
}

// DefaultConfig returns the compiler's default configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxPasses:  8,
		MemorySize: 1 << 28,
		PageSize:   1 << 16,
	}
}

// FromEnv builds a Config from CAIRO_M_* environment variables, falling
// back to DefaultConfig for anything unset or unparsable.
func FromEnv() *Config {
	c := DefaultConfig()
	if v := os.Getenv("CAIRO_M_MAX_PASSES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxPasses = n
		}
	}
	if v := os.Getenv("CAIRO_M_DISABLE_PASSES"); v != "" {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				c.DisabledPasses = append(c.DisabledPasses, name)
			}
		}
	}
	if v := os.Getenv("CAIRO_M_PAGE_SIZE"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil && n > 0 {
			c.PageSize = uint32(n)
		}
	}
	return c
}

// Validate checks invariants Config's consumers (the pass manager, the
// paged memory allocator) rely on without re-checking themselves.
func (c *Config) Validate() error {
	if c.MaxPasses <= 0 {
		return fmt.Errorf("max passes must be positive, got %d", c.MaxPasses)
	}
	if c.MemorySize == 0 || c.PageSize == 0 {
		return fmt.Errorf("memory size and page size must be positive")
	}
	if c.MemorySize%c.PageSize != 0 {
		return fmt.Errorf("memory size (%d) must be a multiple of page size (%d)", c.MemorySize, c.PageSize)
	}
	return nil
}

// WithMaxPasses sets the fixed-point iteration cap.
func (c *Config) WithMaxPasses(n int) *Config {
	c.MaxPasses = n
	return c
}

// WithDisabledPasses sets the list of optimizer passes to skip.
func (c *Config) WithDisabledPasses(names []string) *Config {
	c.DisabledPasses = append([]string(nil), names...)
	return c
}

// WithMemorySize sets the VM's total addressable cell count.
func (c *Config) WithMemorySize(size uint32) *Config {
	c.MemorySize = size
	return c
}

// WithPageSize sets the VM's page granularity.
func (c *Config) WithPageSize(size uint32) *Config {
	c.PageSize = size
	return c
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	return &Config{
		MaxPasses:      c.MaxPasses,
		DisabledPasses: append([]string(nil), c.DisabledPasses...),
		MemorySize:     c.MemorySize,
		PageSize:       c.PageSize,
	}
}

// DisabledSet returns DisabledPasses as a lookup set, the shape the pass
// manager actually consumes.
func (c *Config) DisabledSet() map[string]bool {
	out := make(map[string]bool, len(c.DisabledPasses))
	for _, name := range c.DisabledPasses {
		out[name] = true
	}
	return out
}

// ProjectConfig is the human-editable project manifest (cairom.yaml):
// which source files make up a module graph, plus the same knobs FromEnv
// reads from the environment. Environment variables still win when both
// are set, matching FromEnv's own fallback order (explicit override before
// default).
type ProjectConfig struct {
	// Files lists every .cm source file in this project's module graph, in
	// compilation order. It is parsed from the manifest only; nothing in this
	// module loads these files or feeds them to the query database.
	Files []string `yaml:"files"`

	MaxPasses      int      `yaml:"max_passes,omitempty"`
	DisabledPasses []string `yaml:"disabled_passes,omitempty"`
	PageSize       uint32   `yaml:"page_size,omitempty"`
}

// LoadProjectConfig parses a cairom.yaml document into a ProjectConfig.
func LoadProjectConfig(data []byte) (*ProjectConfig, error) {
	var pc ProjectConfig
	if err := yaml.Unmarshal(data, &pc); err != nil {
		return nil, fmt.Errorf("parsing cairom.yaml: %w", err)
	}
	return &pc, nil
}

// Config builds a compiler Config from the project manifest, overridden by
// any CAIRO_M_* environment variables present (same precedence as FromEnv:
// the environment always wins, since it's the more specific, per-invocation
// override).
func (pc *ProjectConfig) Config() *Config {
	c := DefaultConfig()
	if pc.MaxPasses > 0 {
		c.MaxPasses = pc.MaxPasses
	}
	if len(pc.DisabledPasses) > 0 {
		c.DisabledPasses = append([]string(nil), pc.DisabledPasses...)
	}
	if pc.PageSize > 0 {
		c.PageSize = pc.PageSize
	}

	env := FromEnv()
	if v := os.Getenv("CAIRO_M_MAX_PASSES"); v != "" {
		c.MaxPasses = env.MaxPasses
	}
	if v := os.Getenv("CAIRO_M_DISABLE_PASSES"); v != "" {
		c.DisabledPasses = env.DisabledPasses
	}
	if v := os.Getenv("CAIRO_M_PAGE_SIZE"); v != "" {
		c.PageSize = env.PageSize
	}
	return c
}
