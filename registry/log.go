package registry

// Logger receives the request log of all clients. *logrus.Logger
// satisfies it.
type Logger interface {
	Debugf(format string, args ...interface{})
}

var log Logger = nopLogger{}

// SetLog replaces the logger of all clients. nil discards the output.
func SetLog(l Logger) {
	if l == nil {
		l = nopLogger{}
	}

	log = l
}

type nopLogger struct{}

func (nopLogger) Debugf(format string, args ...interface{}) {}
