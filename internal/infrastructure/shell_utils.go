package infrastructure

import (
	"github.com/alessio/shellescape"
)

// ShellEscape quotes a single argument for display in a shell command line.
// This is used for logging only; exec.Command never goes through a shell.
func ShellEscape(s string) string {
	return shellescape.Quote(s)
}

// ShellEscapeCommand renders binary and args as a copy-pasteable command line
func ShellEscapeCommand(binary string, args ...string) string {
	return shellescape.QuoteCommand(append([]string{binary}, args...))
}
