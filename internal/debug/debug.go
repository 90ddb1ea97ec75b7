// Package debug provides the verbose tracing used throughout livelog.
//
// Lines are printed through the standard logger when enabled, either by the
// LIVELOG_DEBUG environment variable or by the server's debug option, and are
// always handed to azer/debug so its DEBUG= environment filter keeps working.
package debug

import (
	"fmt"
	"log"
	"os"
	"path"
	"runtime"
	"strings"
	"sync/atomic"

	azer "github.com/azer/debug"
)

var enabled atomic.Bool

// forward hands every line to azer/debug, which treats its first argument as a
// format string.
var forward = azer.Debug

func init() {
	enabled.Store(envEnabled())
}

func envEnabled() bool {
	return parseFlag(os.Getenv("LIVELOG_DEBUG"))
}

func parseFlag(s string) bool {
	v := strings.TrimSpace(strings.ToLower(s))
	return v != "" && v != "0" && v != "false"
}

// Enable turns on debug output for the whole process.
func Enable() { enabled.Store(true) }

// Enabled reports whether debug output is on.
func Enabled() bool { return enabled.Load() }

func Debug(v ...interface{}) {
	msg := strings.TrimSuffix(fmt.Sprintln(v...), "\n")
	forward("%s", msg)
	if enabled.Load() {
		log.Println(fmt.Sprintf("DEBUG(%s):", caller()), msg)
	}
}

func caller() string {
	_, filename, _, _ := runtime.Caller(2)
	return strings.Split(path.Base(filename), ".")[0]
}
