package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// ConfigFileName is the name of the config file.
const ConfigFileName = "leaperl.yaml"

// ConfigFileNameAlt is the alternate name of the config file.
const ConfigFileNameAlt = "leaperl.yml"

// EnvPrefix prefixes every environment variable read as configuration.
const EnvPrefix = "LEAPERL_"

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"project-root": "project_root",
	"include-dir":  "include_dirs",
	"lib-dir":      "lib_dirs",
	"otp-release":  "otp_release",
	"workers":      "workers",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"output":       "output",
}

// RegisterFlags adds the flags Load understands to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("project-root", "", "Project root (default: directory of leaperl.yaml, or the current directory)")
	fs.StringSlice("include-dir", nil, "Directory searched for -include (repeatable)")
	fs.StringSlice("lib-dir", nil, "Directory searched for -include_lib (repeatable)")
	fs.Int("otp-release", 0, "Value of ?OTP_RELEASE")
	fs.Int("workers", 0, "Parallel lowering workers (0 = one per CPU)")
	fs.String("log-level", "", "Log level (debug|info|warn|error)")
	fs.String("log-format", "", "Log format (text|json)")
	fs.StringP("output", "o", "", "Output format ("+strings.Join(OutputModes, "|")+")")
}

// findConfigFile finds the config file in the given directory.
// Returns empty string if not found.
func findConfigFile(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// FindProjectRoot walks up from startDir to the nearest directory holding a
// config file. Returns empty string if none is found within
// maxUpwardSearchLevels.
func FindProjectRoot(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if findConfigFile(dir) != "" {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// inferProjectRoot determines the project root before any file is read.
// Priority:
//  1. Explicit --project-root flag or LEAPERL_PROJECT_ROOT
//  2. Directory of an explicit config file
//  3. Search upward from CWD for leaperl.yaml
//  4. Current working directory
//
// explicit is true for the first case, which a project_root key in the
// config file cannot override.
func inferProjectRoot(cfgFile string, flags *pflag.FlagSet) (root string, explicit bool) {
	given := os.Getenv(EnvPrefix + "PROJECT_ROOT")
	if flags != nil && flags.Changed("project-root") {
		given, _ = flags.GetString("project-root")
	}
	if given != "" {
		return absPath(given), true
	}

	if cfgFile != "" {
		return filepath.Dir(absPath(cfgFile)), false
	}

	cwd, err := os.Getwd()
	if err != nil || cwd == "" {
		return ".", false
	}
	if root := FindProjectRoot(cwd); root != "" {
		return root, false
	}
	return cwd, false
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// envKey turns LEAPERL_LOG_LEVEL into log.level and LEAPERL_LIB_DIRS into
// lib_dirs.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if rest, ok := strings.CutPrefix(key, "log_"); ok {
		return "log." + rest
	}
	return key
}

// Load loads configuration from defaults, the config file, environment
// variables and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
//
// cfgFile may be empty, in which case the project root is searched for
// leaperl.yaml. flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	root, explicitRoot := inferProjectRoot(cfgFile, flags)

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if cfgFile == "" {
		cfgFile = findConfigFile(root)
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}
	fileRoot := k.String("project_root")

	// 3. Environment variables (LEAPERL_ prefix)
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags, only those explicitly set
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			// Directories given on the command line are relative to CWD.
			if key == "include_dirs" || key == "lib_dirs" {
				dirs, _ := flags.GetStringSlice(f.Name)
				out := make([]string, len(dirs))
				for i, d := range dirs {
					out[i] = absPath(d)
				}
				return key, out
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	// Env values are plain strings; "a,b" must decode to a two-element list.
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToSliceHookFunc(","),
				mapstructure.StringToTimeDurationHookFunc(),
			),
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = cfgFile

	// 6. Project root and path resolution
	switch {
	case explicitRoot:
		cfg.ProjectRoot = root
	case fileRoot != "":
		cfg.ProjectRoot = resolvePathRelativeTo(fileRoot, filepath.Dir(absPath(cfgFile)))
	default:
		cfg.ProjectRoot = root
	}
	for i, dir := range cfg.IncludeDirs {
		cfg.IncludeDirs[i] = resolvePathRelativeTo(dir, cfg.ProjectRoot)
	}
	for i, dir := range cfg.LibDirs {
		cfg.LibDirs[i] = resolvePathRelativeTo(dir, cfg.ProjectRoot)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
