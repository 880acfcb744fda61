package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure(t *testing.T) {
	testcases := []struct {
		name          string
		level         string
		format        string
		expectedLevel logrus.Level
		expectedErr   bool
	}{
		{name: "When level and format are valid", level: "debug", format: "json", expectedLevel: logrus.DebugLevel},
		{name: "When the format is empty it uses text", level: "warn", format: "", expectedLevel: logrus.WarnLevel},
		{name: "When the level is unknown", level: "loud", format: "text", expectedErr: true},
		{name: "When the format is unknown", level: "info", format: "xml", expectedErr: true},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			l := logrus.New()
			err := Configure(l, tc.level, tc.format)
			if tc.expectedErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expectedLevel, l.GetLevel())
		})
	}
}

func TestNew_JSON(t *testing.T) {
	out := &bytes.Buffer{}
	l, err := New(out, "info", "json")
	require.NoError(t, err)

	l.WithField("run", "abc").Info("inspected")
	l.Debug("hidden")

	entry := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &entry))
	assert.Equal(t, "abc", entry["run"])
	assert.Equal(t, "inspected", entry["msg"])
}

func TestFormatError(t *testing.T) {
	plain := fmt.Errorf("plain")
	assert.Equal(t, "plain", FormatError(plain))

	withStack := errors.New("with stack")
	formatted := FormatError(withStack)
	assert.True(t, strings.HasPrefix(formatted, "with stack\n"))
	assert.Contains(t, formatted, "TestFormatError")

	wrapped := fmt.Errorf("outer: %w", withStack)
	formatted = FormatError(wrapped)
	assert.True(t, strings.HasPrefix(formatted, "outer: with stack\n"))
	assert.Contains(t, formatted, "TestFormatError")
}
