package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestConsole_PlainWhenNotTerminal(t *testing.T) {
	var out, errOut bytes.Buffer
	c := NewConsole(&out, &errOut)

	c.Progress("Working on LD clumping variant 1:1000_A/G")
	c.Warning("could not calculate LD for variant 1:1000_A/G at 1:1000")

	assert.Equal(t, "Working on LD clumping variant 1:1000_A/G\n", out.String())
	assert.Equal(t, "Warning: could not calculate LD for variant 1:1000_A/G at 1:1000\n", errOut.String())
}

func TestLogger_Levels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewLogger(zap.New(core))

	l.Progress("starting")
	l.Warning("failed")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "starting", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "failed", entries[1].Message)
}

func TestMulti(t *testing.T) {
	var out1, err1, out2, err2 bytes.Buffer
	m := Multi{NewConsole(&out1, &err1), NewConsole(&out2, &err2), Nop{}}

	m.Progress("p")
	m.Warning("w")

	assert.Equal(t, "p\n", out1.String())
	assert.Equal(t, "p\n", out2.String())
	assert.Equal(t, "Warning: w\n", err1.String())
	assert.Equal(t, "Warning: w\n", err2.String())
}
