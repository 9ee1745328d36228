package logging

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, log.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, log.WarnLevel, ParseLevel(" WARN "))
	assert.Equal(t, log.InfoLevel, ParseLevel(""))
	assert.Equal(t, log.InfoLevel, ParseLevel("loud"))
}

func TestOutputStdoutOnly(t *testing.T) {
	assert.Equal(t, os.Stdout, Output(SetupParams{}))
}

func TestOutputRotatingFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "api")

	out := Output(SetupParams{FileName: name})
	rotating, ok := out.(*lumberjack.Logger)
	require.True(t, ok)
	t.Cleanup(func() { _ = rotating.Close() })
	assert.Equal(t, name+".log", rotating.Filename)

	_, err := out.Write([]byte("hello\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(name + ".log")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}
