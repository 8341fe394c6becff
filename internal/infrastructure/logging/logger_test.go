package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_WritesToRotatedFile(t *testing.T) {
	for _, backend := range []string{"zap", "zerolog"} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			logger := NewLogger(&LoggerConfig{
				FilePath: dir,
				Encoding: "json",
				Level:    "info",
				Logger:   backend,
			})

			logger.Info(Room, Join, "session joined room", map[ExtraKey]any{
				RoomID:   "lobby",
				Username: "alice",
			})
			logger.Debug(Room, Join, "filtered out", nil)

			raw, err := os.ReadFile(filepath.Join(dir, "huddle.log"))
			require.NoError(t, err)

			out := string(raw)
			assert.Contains(t, out, "session joined room")
			assert.Contains(t, out, "lobby")
			assert.Contains(t, out, `"Category":"Room"`)
			assert.NotContains(t, out, "filtered out")
		})
	}
}

func TestNewLogger_UnknownBackendPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewLogger(&LoggerConfig{Logger: "logrus"})
	})
}

func TestPrepareLogInfo_NilExtra(t *testing.T) {
	params := prepareLogInfo(General, Startup, nil)
	assert.Len(t, params, 4)
}
