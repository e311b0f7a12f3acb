package redicalerr

import (
	"os"

	"github.com/rs/zerolog"
)

// Logger is the engine-wide structured logger. Hosts embedding the engine
// may replace it (e.g. to route through the storage server's own log
// sink); the default is a console writer suitable for a CLI/demo entry
// point, writing human-readable output to stderr.
var Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

// LogInternal logs an Internal-kind failure and returns it unchanged, so
// call sites can write `return redicalerr.LogInternal(err)`.
func LogInternal(err *Error) *Error {
	Logger.Error().Str("kind", err.Kind.String()).Err(err.Err).Msg(err.Message)
	return err
}
