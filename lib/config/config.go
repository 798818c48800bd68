// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file used when neither
// RULEAGENTS_CONFIG nor --config names one.
const DefaultPath = "ruleagents.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RULEAGENTS"

// Config is the configuration file schema.
type Config struct {
	Agents  AgentsConfig  `yaml:"agents" split_words:"true"`
	Monitor MonitorConfig `yaml:"monitor" split_words:"true"`
	Queue   QueueConfig   `yaml:"queue" split_words:"true"`
	WebUI   WebUIConfig   `yaml:"web_ui" split_words:"true"`

	Entries   []EntryConfig    `yaml:"entries" ignored:"true"`
	Rules     []RuleConfig     `yaml:"rules" ignored:"true"`
	Workflows []WorkflowConfig `yaml:"workflows" ignored:"true"`
}

// AgentsConfig sizes the pool and its terminals.
type AgentsConfig struct {
	// Pool is the number of agent sessions. Default: 1
	Pool int `yaml:"pool" split_words:"true"`

	// Cols and Rows size every terminal. Default: 80x24
	Cols int `yaml:"cols" split_words:"true"`
	Rows int `yaml:"rows" split_words:"true"`

	// Backend is "pty" (in-process virtual terminal) or "tmux"
	// (attachable sessions on a private socket). Default: pty
	Backend string `yaml:"backend" split_words:"true"`

	// Shell is the program each session runs. Default: $SHELL, then
	// /bin/sh.
	Shell string `yaml:"shell" split_words:"true"`
}

// MonitorConfig tunes change detection.
type MonitorConfig struct {
	Interval     Duration `yaml:"interval" split_words:"true"`
	WaitTimeout  Duration `yaml:"wait_timeout" split_words:"true"`
	StuckTimeout Duration `yaml:"stuck_timeout" split_words:"true"`
	HistorySize  int      `yaml:"history_size" split_words:"true"`

	// PromptPatterns replace the built-in shell prompt patterns when
	// non-empty.
	PromptPatterns []string `yaml:"prompt_patterns" ignored:"true"`
}

// QueueConfig tunes the named queues.
type QueueConfig struct {
	// SeenLimit bounds each queue's dedupe memory. Zero is unbounded.
	SeenLimit int `yaml:"seen_limit" split_words:"true"`

	// Placeholder is replaced by the item in queue-triggered entries.
	// Default: ${1}
	Placeholder string `yaml:"placeholder" split_words:"true"`
}

// WebUIConfig configures the observation server.
type WebUIConfig struct {
	Enabled  bool   `yaml:"enabled" split_words:"true"`
	Host     string `yaml:"host" split_words:"true"`
	BasePort int    `yaml:"base_port" split_words:"true"`
}

// Address is the listen address for the observation server.
func (w WebUIConfig) Address() string {
	return fmt.Sprintf("%s:%d", w.Host, w.BasePort)
}

// ActionConfig holds the fields shared by entries, rules, and workflow
// steps. Which fields apply depends on Action.
type ActionConfig struct {
	Action   string   `yaml:"action"`
	Keys     []string `yaml:"keys"`
	Workflow string   `yaml:"workflow"`
	Queue    string   `yaml:"queue"`
	Command  string   `yaml:"command"`
}

// EntryConfig is one triggered automation.
type EntryConfig struct {
	Name string `yaml:"name"`

	// Trigger is "startup", "timer:<duration>", or "queue:<name>".
	Trigger string `yaml:"trigger"`

	// Concurrency bounds simultaneous runs. Default: 1
	Concurrency int `yaml:"concurrency"`

	// Source is a command whose non-empty output lines each run the
	// action once, with the line in place of the placeholder. It
	// expands to an enqueue entry feeding a queue-triggered entry.
	Source string `yaml:"source"`

	// Dedupe drops source lines the entry has produced before.
	Dedupe bool `yaml:"dedupe"`

	ActionConfig `yaml:",inline"`
}

// SourceQueue names the queue a source entry feeds.
func SourceQueue(entry string) string { return "source/" + entry }

// SourceItemsEntry names the queue-triggered half of a source entry.
func SourceItemsEntry(entry string) string { return entry + "/items" }

// RuleConfig reacts to terminal output. Exactly one of When and
// DiffTimeout is set.
type RuleConfig struct {
	Name string `yaml:"name"`

	// When is a regular expression matched against new output.
	When string `yaml:"when"`

	// DiffTimeout fires the rule after this long without new output.
	DiffTimeout Duration `yaml:"diff_timeout"`

	ActionConfig `yaml:",inline"`
}

// WorkflowConfig is a named step sequence.
type WorkflowConfig struct {
	Name  string       `yaml:"name"`
	Steps []StepConfig `yaml:"steps"`
}

// StepConfig is one workflow step: an action, or a bare wait.
type StepConfig struct {
	ActionConfig `yaml:",inline"`

	// Agent sends this step to the agent at this pool index instead of
	// the workflow's target.
	Agent *int `yaml:"agent"`

	// Wait pauses the workflow. A step with only Wait set is a pause.
	Wait Duration `yaml:"wait"`
}

// Default returns the configuration used as the base for every file.
func Default() *Config {
	return &Config{
		Agents: AgentsConfig{
			Pool:    1,
			Cols:    80,
			Rows:    24,
			Backend: "pty",
		},
		Monitor: MonitorConfig{
			Interval:     Duration(500 * time.Millisecond),
			WaitTimeout:  Duration(2 * time.Second),
			StuckTimeout: Duration(30 * time.Second),
			HistorySize:  10,
		},
		Queue: QueueConfig{
			Placeholder: "${1}",
		},
		WebUI: WebUIConfig{
			Enabled:  true,
			Host:     "localhost",
			BasePort: 9990,
		},
	}
}

// Path returns the configuration file to load: explicit if non-empty,
// else RULEAGENTS_CONFIG, else DefaultPath.
func Path(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if fromEnv := os.Getenv(EnvPrefix + "_CONFIG"); fromEnv != "" {
		return fromEnv
	}
	return DefaultPath
}

// Load loads the file chosen by Path("").
func Load() (*Config, error) {
	return LoadFile(Path(""))
}

// LoadFile reads path, decodes it over Default, and applies
// environment overrides. It does not validate; call Build.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Decode(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode parses data over Default. ext selects the syntax: ".json" and
// ".jsonc" are converted to plain JSON first, anything else is YAML.
// Unknown keys are errors.
func Decode(data []byte, ext string) (*Config, error) {
	switch strings.ToLower(ext) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides scalar settings from RULEAGENTS_* variables.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("applying %s_* environment: %w", EnvPrefix, err)
	}
	return nil
}
