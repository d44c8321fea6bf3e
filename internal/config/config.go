// Package config loads layered configuration for the WAL slot engine
// daemon: a global user config, an optional project config, and CLI
// overrides, in that order, the same way the original tool's config
// loader does (global -> project -> CLI), using hujson so config files
// may carry comments.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"

	"github.com/waldb/slotwal/pkg/fs"
)

// Config holds all tunables for a running WAL instance.
type Config struct {
	LogDir           string `json:"log_dir,omitempty"`          //nolint:tagliatelle
	LogFileMax       int64  `json:"log_file_max,omitempty"`      //nolint:tagliatelle
	SlotBufSize      int64  `json:"slot_buf_size,omitempty"`     //nolint:tagliatelle
	ForceConsolidate *bool  `json:"force_consolidate,omitempty"` //nolint:tagliatelle
	DefaultSync      string `json:"default_sync,omitempty"`      //nolint:tagliatelle
}

// ConfigFileName is the default project config file name.
const ConfigFileName = ".walslot.json"

var (
	errConfigFileNotFound = errors.New("config file not found")
	errConfigFileRead     = errors.New("could not read config file")
	errConfigInvalid      = errors.New("invalid config")
	errLogDirEmpty        = errors.New("log_dir must not be empty")
	errBadSyncMode        = errors.New("default_sync must be one of: none, dsync, fsync")
)

// Default returns the built-in configuration used when nothing overrides it.
func Default() Config {
	return Config{
		LogDir:      "./wal",
		LogFileMax:  100 << 20, // 100 MiB
		SlotBufSize: 256 << 10, // 256 KiB
		DefaultSync: "fsync",
	}
}

// Sources records which config files, if any, contributed to the final
// configuration, for diagnostic printing.
type Sources struct {
	Global  string
	Project string
}

// Load applies: defaults -> global user config -> project config (or an
// explicit path) -> CLI overrides. Later layers win field by field; a
// field a layer leaves zero does not override an earlier layer's value.
func Load(workDir, explicitPath string, cliOverrides Config, env []string) (Config, Sources, error) {
	cfg := Default()

	var sources Sources

	globalCfg, globalPath, err := loadGlobal(env)
	if err != nil {
		return Config{}, Sources{}, err
	}

	sources.Global = globalPath
	cfg = merge(cfg, globalCfg)

	projectCfg, projectPath, err := loadProject(workDir, explicitPath)
	if err != nil {
		return Config{}, Sources{}, err
	}

	sources.Project = projectPath
	cfg = merge(cfg, projectCfg)
	cfg = merge(cfg, cliOverrides)

	if err := validate(cfg); err != nil {
		return Config{}, Sources{}, err
	}

	return cfg, sources, nil
}

func globalConfigPath(env []string) string {
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, "XDG_CONFIG_HOME="); ok {
			return filepath.Join(after, "walslotd", "config.json")
		}
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "walslotd", "config.json")
	}

	home, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(home, ".config", "walslotd", "config.json")
	}

	return ""
}

func loadGlobal(env []string) (Config, string, error) {
	path := globalConfigPath(env)
	if path == "" {
		return Config{}, "", nil
	}

	cfg, loaded, err := loadFile(path, false)
	if err != nil || !loaded {
		return Config{}, "", err
	}

	return cfg, path, nil
}

func loadProject(workDir, explicitPath string) (Config, string, error) {
	path := filepath.Join(workDir, ConfigFileName)
	mustExist := false

	if explicitPath != "" {
		path = explicitPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}

		mustExist = true

		if _, err := os.Stat(path); err != nil {
			return Config{}, "", fmt.Errorf("%w: %s", errConfigFileNotFound, explicitPath)
		}
	}

	cfg, loaded, err := loadFile(path, mustExist)
	if err != nil || !loaded {
		return Config{}, "", err
	}

	return cfg, path, nil
}

func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is config-layer controlled, not request input
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("%w: %s", errConfigFileRead, path)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
	}

	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
	}

	return cfg, true, nil
}

func merge(base, overlay Config) Config {
	if overlay.LogDir != "" {
		base.LogDir = overlay.LogDir
	}

	if overlay.LogFileMax != 0 {
		base.LogFileMax = overlay.LogFileMax
	}

	if overlay.SlotBufSize != 0 {
		base.SlotBufSize = overlay.SlotBufSize
	}

	if overlay.ForceConsolidate != nil {
		base.ForceConsolidate = overlay.ForceConsolidate
	}

	if overlay.DefaultSync != "" {
		base.DefaultSync = overlay.DefaultSync
	}

	return base
}

func validate(cfg Config) error {
	if cfg.LogDir == "" {
		return errLogDirEmpty
	}

	switch cfg.DefaultSync {
	case "none", "dsync", "fsync":
	default:
		return fmt.Errorf("%w: got %q", errBadSyncMode, cfg.DefaultSync)
	}

	return nil
}

// Format returns cfg as formatted JSON, for a CLI's "print effective config" command.
func Format(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("format config: %w", err)
	}

	return string(data), nil
}

// Save writes cfg to path as a project config file, the same way a slot's
// FlagDSync requests a durable directory entry for the log segment it
// lands in (spec.md §4.3): the write lands via rename-into-place and the
// parent directory is fsync'd, so a crash right after Save cannot leave
// behind a half-written config file or an entry that silently vanishes.
func Save(fsys fs.FS, path string, cfg Config) error {
	data, err := Format(cfg)
	if err != nil {
		return err
	}

	writer := fs.NewAtomicWriter(fsys)

	if err := writer.WriteWithDefaults(path, bytes.NewReader([]byte(data))); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	return nil
}
