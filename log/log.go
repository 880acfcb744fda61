// Package log configures logrus for the commands and renders errors
// together with the stack trace pkg/errors recorded.
package log

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Init sets level and format of the standard logger. format is text or json.
func Init(level, format string) error {
	return Configure(logrus.StandardLogger(), level, format)
}

// Configure sets level and format of l.
func Configure(l *logrus.Logger, level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}

	switch format {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return errors.Errorf("unknown log format %q", format)
	}

	l.SetLevel(lvl)
	return nil
}

// New creates a logger writing to out, mostly for tests.
func New(out io.Writer, level, format string) (*logrus.Logger, error) {
	l := logrus.New()
	l.SetOutput(out)
	err := Configure(l, level, format)
	if err != nil {
		return nil, err
	}

	return l, nil
}

// FormatError renders err. If err or one of its causes carries a stack
// trace, the innermost trace is appended.
func FormatError(err error) string {
	var stErr stackTracer
	for e := err; e != nil; e = errors.Unwrap(e) {
		if st, ok := e.(stackTracer); ok {
			stErr = st
		}
	}

	if stErr != nil {
		b := &bytes.Buffer{}
		fmt.Fprintf(b, "%s\n", err)

		for _, f := range stErr.StackTrace() {
			fmt.Fprintf(b, "  %+v\n", f)
		}

		return b.String()
	}

	return fmt.Sprint(err)
}
