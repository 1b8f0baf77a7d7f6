// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads swiftdeps settings.
//
// Layers, lowest to highest precedence:
//
//	DefaultConfig() → .swiftdeps.yaml → .env → SWIFTDEPS_* environment → CLI flags
//
// Load applies the first four; the CLI applies its flags and calls Validate
// again.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/swiftdeps/services/depgraph/ast"
	"github.com/AleutianAI/swiftdeps/services/depgraph/cache"
	"github.com/AleutianAI/swiftdeps/services/depgraph/classify"
	"github.com/AleutianAI/swiftdeps/services/depgraph/graph"
	"github.com/AleutianAI/swiftdeps/services/depgraph/scan"
	"github.com/AleutianAI/swiftdeps/services/depgraph/telemetry"
	"github.com/AleutianAI/swiftdeps/services/depgraph/watch"
)

// FileName is the per-project config file looked up in the project root.
const FileName = ".swiftdeps.yaml"

// EnvFileName is the dotenv file looked up in the project root.
const EnvFileName = ".env"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SWIFTDEPS_"

// Log formats.
const (
	LogFormatAuto = "auto"
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// ErrInvalidConfig wraps every parse and validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete swiftdeps configuration.
type Config struct {
	// Output is the graph file, relative to the project root unless absolute.
	Output string `yaml:"output" validate:"required"`

	// Debounce is the quiet period before re-extraction.
	Debounce time.Duration `yaml:"debounce" validate:"gt=0"`

	// Poll is how often the debouncer checks for quiescence.
	Poll time.Duration `yaml:"poll" validate:"gt=0,ltefield=Debounce"`

	// Workers bounds concurrent file extraction. Zero means one per CPU.
	Workers int `yaml:"workers" validate:"gte=0,lte=256"`

	// ASTSource selects the structure source.
	ASTSource string `yaml:"ast_source" validate:"oneof=treesitter sourcekitten"`

	// SourceKittenPath is the sourcekitten binary.
	SourceKittenPath string `yaml:"sourcekitten_path"`

	// ParseTimeout bounds a single file's structure call. Zero disables it.
	ParseTimeout time.Duration `yaml:"parse_timeout" validate:"gte=0"`

	// DescendUntyped keeps walking below nodes with an empty kind.
	DescendUntyped bool `yaml:"descend_untyped"`

	// PersistenceBaseTypes mark a class as a Core Data model.
	PersistenceBaseTypes []string `yaml:"persistence_base_types" validate:"min=1,dive,required"`

	// Extensions are the source file extensions extracted and watched.
	Extensions []string `yaml:"extensions" validate:"min=1,dive,startswith=."`

	// Exclude lists glob patterns skipped by the scanner and the watcher.
	Exclude []string `yaml:"exclude"`

	// ContextLimit is the default file count of the context command.
	ContextLimit int `yaml:"context_limit" validate:"gte=1"`

	// LogLevel is debug, info, warn, or error.
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn warning error"`

	// LogFormat is auto, text, or json. Auto picks text on a terminal.
	LogFormat string `yaml:"log_format" validate:"oneof=auto text json"`

	// LogDir adds JSON file logging in this directory.
	LogDir string `yaml:"log_dir"`

	// HTTPAddr enables the read API when set, e.g. "127.0.0.1:7420".
	HTTPAddr string `yaml:"http_addr" validate:"omitempty,hostname_port"`

	Cache     CacheConfig      `yaml:"cache"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// CacheConfig configures the record cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`

	// Dir holds the on-disk tier, relative to the project root unless
	// absolute. Empty keeps the cache in memory only.
	Dir string `yaml:"dir"`

	HotSize int `yaml:"hot_size" validate:"gte=0"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Output:               graph.DefaultFileName,
		Debounce:             watch.DefaultWindow,
		Poll:                 watch.DefaultPollInterval,
		Workers:              0,
		ASTSource:            ast.SourceTreeSitter,
		SourceKittenPath:     "sourcekitten",
		ParseTimeout:         30 * time.Second,
		PersistenceBaseTypes: []string{classify.DefaultPersistenceBaseType},
		Extensions:           []string{scan.DefaultExtension},
		Exclude:              append([]string(nil), scan.DefaultExcludes...),
		ContextLimit:         5,
		LogLevel:             "info",
		LogFormat:            LogFormatAuto,
		Cache: CacheConfig{
			Enabled: true,
			Dir:     filepath.Join(".swiftdeps", "cache"),
			HotSize: cache.DefaultHotSize,
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// Load builds the configuration for the project at root.
//
// Inputs:
//
//	root - Project root. FileName and EnvFileName are looked up here.
//	path - Explicit config file. Empty uses root/FileName when present.
//
// Outputs:
//
//	*Config - The validated configuration.
//	error   - ErrInvalidConfig for bad content; I/O errors otherwise. An
//	          explicit path that does not exist is an error, a missing
//	          root/FileName is not.
func Load(root, path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = filepath.Join(root, FileName)
	}
	if err := cfg.mergeFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	dotenv, err := readDotenv(filepath.Join(root, EnvFileName))
	if err != nil {
		return nil, err
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.mergeEnv(lookup); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// mergeFile overlays the keys present in a YAML file.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return nil
}

func readDotenv(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return values, nil
}

// mergeEnv overlays SWIFTDEPS_* variables.
func (c *Config) mergeEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	list := func(name string, dst *[]string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = splitList(v)
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	num := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	flag := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	str("OUTPUT", &c.Output)
	dur("DEBOUNCE", &c.Debounce)
	dur("POLL", &c.Poll)
	num("WORKERS", &c.Workers)
	str("AST_SOURCE", &c.ASTSource)
	str("SOURCEKITTEN_PATH", &c.SourceKittenPath)
	dur("PARSE_TIMEOUT", &c.ParseTimeout)
	flag("DESCEND_UNTYPED", &c.DescendUntyped)
	list("PERSISTENCE_BASE_TYPES", &c.PersistenceBaseTypes)
	list("EXTENSIONS", &c.Extensions)
	list("EXCLUDE", &c.Exclude)
	num("CONTEXT_LIMIT", &c.ContextLimit)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("LOG_DIR", &c.LogDir)
	str("HTTP_ADDR", &c.HTTPAddr)
	flag("CACHE", &c.Cache.Enabled)
	str("CACHE_DIR", &c.Cache.Dir)
	num("CACHE_HOT_SIZE", &c.Cache.HotSize)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// OutputPath resolves Output against root.
func (c *Config) OutputPath(root string) string {
	return resolve(root, c.Output)
}

// CacheDir resolves the cache directory against root, or "" for a
// memory-only cache.
func (c *Config) CacheDir(root string) string {
	if c.Cache.Dir == "" {
		return ""
	}
	return resolve(root, c.Cache.Dir)
}

func resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}
