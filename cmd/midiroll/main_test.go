package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbegin/midiroll-go"
	"github.com/cbegin/midiroll-go/internal/score"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestListCommand(t *testing.T) {
	out := run(t, "list")
	for _, name := range score.Names() {
		assert.Contains(t, out, name)
	}
}

func TestRenderAndExportCommands(t *testing.T) {
	dir := t.TempDir()
	wav := filepath.Join(dir, "toy.wav")
	mid := filepath.Join(dir, "toy.mid")
	run(t, "render", "Toy", "-o", wav)
	run(t, "export", "Toy", mid)

	data, err := os.ReadFile(wav)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data[:4]))

	s, err := score.ReadSMF(mid)
	require.NoError(t, err)
	assert.Equal(t, 4, s.NumNotes())
}

func TestRenderRoll(t *testing.T) {
	tr, err := midiroll.BuildTrajectory(score.Toy(-1, -1), 0.25, 0)
	require.NoError(t, err)
	out := renderRoll(tr, 2)
	assert.Contains(t, out, "C3")
	assert.Contains(t, out, "C6")
	assert.Contains(t, out, "more steps")
	assert.GreaterOrEqual(t, strings.Count(out, "█"), 2)
}
