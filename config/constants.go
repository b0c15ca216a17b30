package config

import "github.com/brettbedarf/unifs/internal/util"

// CLI style verbosity values accepted by ConfigOverride.LogLvl.
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

var verboseLvls = [5]util.LogLevel{util.ErrorLevel, util.WarnLevel, util.InfoLevel, util.DebugLevel, util.TraceLevel}

// LogLevelFromVerbose maps a verbosity between 1 (error) and 5 (trace) to a
// log level. Out of range values are clamped.
func LogLevelFromVerbose(verbose int) util.LogLevel {
	verbose = min(max(verbose, ErrorVerbose), TraceVerbose)
	return verboseLvls[verbose-1]
}
