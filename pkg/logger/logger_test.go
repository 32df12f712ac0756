package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerDefaultsToNop(t *testing.T) {
	Replace(nil)
	require.False(t, Logger().Core().Enabled(zap.ErrorLevel))
}

func TestInitLevels(t *testing.T) {
	t.Cleanup(func() { Replace(nil) })

	cases := []struct {
		level string
		debug bool
		info  bool
	}{
		{level: "debug", debug: true, info: true},
		{level: "warn", debug: false, info: false},
		{level: "bogus", debug: false, info: true},
	}
	for _, tc := range cases {
		t.Run(tc.level, func(t *testing.T) {
			require.NoError(t, Init(tc.level, WithEncoding("console")))
			require.Equal(t, tc.debug, Logger().Core().Enabled(zap.DebugLevel))
			require.Equal(t, tc.info, Logger().Core().Enabled(zap.InfoLevel))
		})
	}
}

func TestWithModule(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	t.Cleanup(func() { Replace(nil) })
	Replace(zap.New(core))

	WithModule("seeding").Info("roles ensured", zap.Int("count", 3))
	WithModule("realtime").Debug("dropped")

	entries := recorded.All()
	require.Len(t, entries, 1)
	require.Equal(t, "seeding", entries[0].ContextMap()["module"])
	require.EqualValues(t, 3, entries[0].ContextMap()["count"])
}
