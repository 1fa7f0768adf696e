// Package logging configures the structured logger the engine, its
// sessions and the freeze worker write through: attach/detach events,
// scan start and completion, and freeze-rewrite failures.
package logging

import (
	log "github.com/sirupsen/logrus"
)

// Log is the package-wide logger. Output defaults to stderr at Info
// level, matching logrus's own defaults.
var Log = log.New()

// SetVerbose raises the logger to Debug level; called once from the
// root command's PersistentPreRunE when --verbose is set.
func SetVerbose(verbose bool) {
	if verbose {
		Log.SetLevel(log.DebugLevel)
		return
	}
	Log.SetLevel(log.InfoLevel)
}
