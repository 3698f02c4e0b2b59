package config

import "github.com/leapstack-labs/leaperl/internal/hir"

// Default configuration values.
const (
	DefaultLogLevel  = "warn"
	DefaultLogFormat = "text"
	DefaultOutput    = "auto" // table on a terminal, text otherwise
)

// Output modes accepted by the output key.
var OutputModes = []string{"auto", "text", "json", "yaml", "table"}

func defaults() map[string]any {
	return map[string]any{
		"include_dirs": []string{"include"},
		"lib_dirs":     []string{},
		"otp_release":  hir.DefaultOTPRelease,
		"workers":      0,
		"log.level":    DefaultLogLevel,
		"log.format":   DefaultLogFormat,
		"output":       DefaultOutput,
	}
}

// Default returns the configuration used when nothing else is given,
// rooted at dir.
func Default(dir string) *Config {
	return &Config{
		ProjectRoot: dir,
		IncludeDirs: []string{resolvePathRelativeTo("include", dir)},
		OTPRelease:  hir.DefaultOTPRelease,
		Log:         LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
		Output:      DefaultOutput,
	}
}
