package app

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// NewLogger builds the client logger. Output goes through a console writer
// when w is a terminal. Unknown levels fall back to info.
func NewLogger(level string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	out := w
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// LoginRedirect is the navigator handed to the API client. It records the
// last redirect so callers can tell the user to log in again.
type LoginRedirect struct {
	mu     sync.Mutex
	logger zerolog.Logger
	path   string
	count  int
}

// NewLoginRedirect creates a LoginRedirect that logs through logger.
func NewLoginRedirect(logger zerolog.Logger) *LoginRedirect {
	return &LoginRedirect{logger: logger.With().Str("component", "navigator").Logger()}
}

// Navigate records path.
func (r *LoginRedirect) Navigate(path string) {
	r.mu.Lock()
	r.path = path
	r.count++
	r.mu.Unlock()
	r.logger.Warn().Str("path", path).Msg("Session ended, login required")
}

// Last returns the most recent redirect target and how many redirects
// happened so far.
func (r *LoginRedirect) Last() (string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path, r.count
}
