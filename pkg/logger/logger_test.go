package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLevels(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error", "bogus"} {
		l, err := New(lvl, "json")
		require.NoError(t, err, lvl)
		require.NotNil(t, l.Logger)
	}

	l, err := New("debug", "console")
	require.NoError(t, err)
	require.True(t, l.Core().Enabled(-1), "debug level should be enabled")

	l, err = New("error", "console")
	require.NoError(t, err)
	require.False(t, l.Core().Enabled(0), "info level should be disabled at error")
}

func TestNopDoesNotPanic(t *testing.T) {
	l := Nop().Named("test")
	l.Infof("hello %s", "world")
	l.Errorf("oops %d", 1)
}
