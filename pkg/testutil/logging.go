package testutil

import (
	"io"
	"os"
	"slices"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// Test binaries log everything, but only show it when run verbosely.
func init() {
	logrus.SetLevel(logrus.TraceLevel)
	if !slices.Contains(os.Args[1:], "-test.v=true") {
		logrus.SetOutput(io.Discard)
	}
}

// DisableLogging silences the standard logger until reset is called.
func DisableLogging() (reset func()) {
	logger := logrus.StandardLogger()
	out := logger.Out
	logger.SetOutput(io.Discard)
	return func() {
		logger.SetOutput(out)
	}
}

// CaptureLogs returns an entry whose records, down to level, are kept by hook
// instead of being written.
func CaptureLogs(level logrus.Level) (*logrus.Entry, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(level)
	return logrus.NewEntry(logger), hook
}
