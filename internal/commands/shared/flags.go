// Package shared holds state and helpers common to every weave CLI
// subcommand: persistent flag values, exit codes, and JSON output
// envelopes.
package shared

// Global flag values, bound by the root command and read by every
// subcommand.
var (
	verboseFlag bool
	quietFlag   bool
	jsonFlag    bool
	configFlag  string

	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// RegisterFlagPointers returns pointers for the root command to bind
// its persistent flags to.
func RegisterFlagPointers() (*bool, *bool, *bool, *string) {
	return &verboseFlag, &quietFlag, &jsonFlag, &configFlag
}

// SetVersion records build-time version metadata, set from main.
func SetVersion(v, c, b string) {
	version = v
	commit = c
	buildDate = b
}

func GetVerbose() bool       { return verboseFlag }
func GetQuiet() bool         { return quietFlag }
func GetJSON() bool          { return jsonFlag }
func GetConfigPath() string  { return configFlag }
func GetVersion() (string, string, string) { return version, commit, buildDate }
