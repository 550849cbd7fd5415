package unittest

import (
	"flag"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var verboseLogs = flag.Bool("vv", false, "print debug logs of the code under test")

// Logger returns a debug level logger that discards its output unless the
// test binary runs with -vv.
func Logger() zerolog.Logger {
	var out io.Writer = io.Discard
	if *verboseLogs {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339Nano}
	}
	return zerolog.New(out).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}
