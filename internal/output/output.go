// Package output centralizes the CLI's --json/--quiet/--verbose mode
// flags and the JSON envelope every command reports results or errors
// through. Error envelopes carry the same context fields (pid, session,
// addr) that internal/logging attaches to the matching log line, so a
// scripted caller reading --json output and a human reading --verbose
// logs see the same facts.
package output

import (
	"encoding/json"
	"fmt"
	"io"
)

// Exit codes the commands in internal/cmd pass to os.Exit.
const (
	ExitSuccess     = 0
	ExitError       = 1
	ExitAttachFail  = 2
	ExitNotFound    = 4
	ExitInterrupted = 130
)

var (
	flagJSON    bool
	flagQuiet   bool
	flagVerbose bool
)

// SetFlags is called from the root command's PersistentPreRunE to
// propagate the global flag values to every subcommand.
func SetFlags(jsonMode, quiet, verbose bool) {
	flagJSON = jsonMode
	flagQuiet = quiet
	flagVerbose = verbose
}

// IsJSON reports whether --json mode is active.
func IsJSON() bool { return flagJSON }

// IsQuiet reports whether --quiet mode is active.
func IsQuiet() bool { return flagQuiet }

// IsVerbose reports whether --verbose mode is active.
func IsVerbose() bool { return flagVerbose }

// PrintJSON marshals v as indented JSON to w.
func PrintJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// Field is one piece of domain context attached to an error envelope —
// a pid, a session index or name, an address — the same vocabulary
// internal/logging.Log.WithFields uses for the equivalent log line.
type Field struct {
	Key   string
	Value any
}

// F builds a Field; kept short since call sites chain several.
func F(key string, value any) Field { return Field{Key: key, Value: value} }

// PrintError writes a JSON error envelope to w: an error code, a
// message, and any domain fields the caller wants alongside them (e.g.
// F("pid", pid)).
func PrintError(w io.Writer, code, message string, fields ...Field) error {
	envelope := map[string]any{
		"error":   code,
		"message": message,
	}
	for _, f := range fields {
		envelope[f.Key] = f.Value
	}
	return PrintJSON(w, envelope)
}
