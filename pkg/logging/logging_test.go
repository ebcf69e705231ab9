package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleNormalizeFillsMissingLevels(t *testing.T) {
	var got []string
	console := Console{LevelWarn: func(msg string) { got = append(got, msg) }}.Normalize()

	for _, level := range Levels {
		require.NotNil(t, console[level], level)
	}
	console.Debug("quiet")
	console.Info("quiet")
	console.Warn("loud")
	console.Error("quiet")
	assert.Equal(t, []string{"loud"}, got)
}

func TestNilConsoleNeverFails(t *testing.T) {
	var console Console
	assert.NotPanics(t, func() {
		console.Info("dropped")
		console.Normalize().Error("dropped")
		NopConsole().Warn("dropped")
		console.Log(Level("trace"), "dropped")
	})
}

func TestLoggableBundle(t *testing.T) {
	got := map[Level][]string{}
	console := Console{}
	for _, level := range Levels {
		level := level
		console[level] = func(msg string) { got[level] = append(got[level], msg) }
	}

	bundle := Loggable(console)
	assert.Equal(t, LoggableBundleName, bundle.Name())
	assert.Equal(t, []string{"debug", "error", "info", "warn"}, bundle.Names())

	info, ok := bundle.Method("info")
	require.True(t, ok)
	_, err := info(nil, "pizza is about to make the sound arf!")
	require.NoError(t, err)

	errMethod, _ := bundle.Method("error")
	_, err = errMethod(nil, errors.New("bad dog"))
	require.NoError(t, err)

	debug, _ := bundle.Method("debug")
	_, err = debug(nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"pizza is about to make the sound arf!"}, got[LevelInfo])
	assert.Equal(t, []string{"bad dog"}, got[LevelError])
	assert.Equal(t, []string{""}, got[LevelDebug])
}

func TestLoggableWithoutConsole(t *testing.T) {
	warn, ok := Loggable(nil).Method("warn")
	require.True(t, ok)
	_, err := warn(nil, "nobody listens")
	assert.NoError(t, err)
}

func TestZerologConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	ZerologConsole(logger).Warn("careful")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "careful", entry["message"])
}

func TestSlogConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	SlogConsole(logger).Debug("details")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "details", entry["msg"])
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: "warn", Output: &buf})
	logger.Info("hidden")
	assert.Empty(t, buf.String())
	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")

	assert.Equal(t, slog.LevelInfo, ParseSlogLevel("bogus"))
	assert.Equal(t, slog.LevelError, ParseSlogLevel(" ERROR "))
}

func TestSetupLogger(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	var buf bytes.Buffer
	logger := SetupLogger(Config{Level: "error", Output: &buf})
	assert.Equal(t, zerolog.ErrorLevel, zerolog.GlobalLevel())

	logger.Info().Msg("hidden")
	assert.Empty(t, buf.String())
	logger.Error().Msg("shown")
	assert.Contains(t, buf.String(), "shown")

	SetupLogger(Config{Level: "nonsense", Output: &buf})
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
