package layer

// Logger receives diagnostics about archive entries that were skipped.
type Logger interface {
	Debugf(format string, args ...interface{})
}

var log Logger = nopLogger{}

// SetLog replaces the logger. nil discards the output.
func SetLog(l Logger) {
	if l == nil {
		l = nopLogger{}
	}

	log = l
}

type nopLogger struct{}

func (nopLogger) Debugf(format string, args ...interface{}) {}
