package logging

import (
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/fatih/color"
)

// Logger is the minimal logging surface the harness components need.
type Logger interface {
	Printf(format string, args ...interface{})
}

type consoleLogger struct {
	l *log.Logger
}

func (c *consoleLogger) Printf(format string, args ...interface{}) {
	c.l.Printf(format, args...)
}

// NewConsole returns a Logger writing timestamped lines to w.
func NewConsole(w io.Writer) Logger {
	return &consoleLogger{l: log.New(w, "", log.LstdFlags)}
}

type nullLogger struct{}

func (nullLogger) Printf(string, ...interface{}) {}

// Null returns a Logger that discards everything.
func Null() Logger {
	return nullLogger{}
}

// Capturing records messages for inspection in tests.
type Capturing struct {
	mu       sync.Mutex
	messages []string
}

func (c *Capturing) Printf(format string, args ...interface{}) {
	c.mu.Lock()
	c.messages = append(c.messages, fmt.Sprintf(format, args...))
	c.mu.Unlock()
}

// Messages returns a copy of everything logged so far.
func (c *Capturing) Messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.messages...)
}

// Verdict renders a stage outcome for console output. Color is applied only
// when stdout is a terminal (handled by fatih/color).
func Verdict(passed bool) string {
	if passed {
		return color.GreenString("succeeded")
	}
	return color.RedString("failed")
}
