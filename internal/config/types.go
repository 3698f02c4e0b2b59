// Package config provides project configuration for leaperl.
// A project is configured by leaperl.yaml at its root; every key can be
// overridden by LEAPERL_ environment variables and command-line flags.
package config

// Config holds the project settings the semantic database and the CLI need.
type Config struct {
	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"project_root"`

	// IncludeDirs are searched for -include after the including file's
	// directory.
	IncludeDirs []string `koanf:"include_dirs"`

	// LibDirs are additionally searched for -include_lib.
	LibDirs []string `koanf:"lib_dirs"`

	// OTPRelease is the value of ?OTP_RELEASE.
	OTPRelease int `koanf:"otp_release"`

	// Workers bounds parallel lowering. Zero means one per CPU.
	Workers int `koanf:"workers"`

	Log    LogConfig `koanf:"log"`
	Output string    `koanf:"output"`

	// File is the config file that was read, empty when none was found.
	File string `koanf:"-"`
}

// LogConfig selects the slog handler built by the CLI.
type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text, json
}
