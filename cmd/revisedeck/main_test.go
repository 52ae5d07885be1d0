package main

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantDebug bool
	}{
		{name: "debug", level: "debug", wantDebug: true},
		{name: "info", level: "info", wantDebug: false},
		{name: "unknown falls back to info", level: "loud", wantDebug: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupLogger(tt.level, "text")
			logger := slog.Default()
			assert.NotNil(t, logger)
			assert.Equal(t, tt.wantDebug, logger.Enabled(context.Background(), slog.LevelDebug))
		})
	}
}

func TestRootCommand(t *testing.T) {
	cmd := newRootCommand()

	assert.Equal(t, "revisedeck", cmd.Use)
	for _, name := range []string{"add", "card", "due", "review", "sprint", "plan", "import-csv", "source", "sync", "serve"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
		assert.NotNil(t, sub.Flags())
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("db"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(bytes.NewBufferString(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAddDueReview(t *testing.T) {
	color.NoColor = true
	db := filepath.Join(t.TempDir(), "cli.db")

	out, err := run(t, "", "--db", db, "add", "-s", "Medicine", "-t", "heart failure", "-r", "BNP")
	require.NoError(t, err)
	assert.Contains(t, out, "Added #1 [Medicine] Heart Failure")

	out, err = run(t, "", "--db", db, "add", "-s", "Astrology", "-t", "x", "-r", "y")
	assert.Error(t, err)

	out, err = run(t, "", "--db", db, "due")
	require.NoError(t, err)
	assert.Contains(t, out, "1 to revise")
	assert.Contains(t, out, "Heart Failure")

	out, err = run(t, "", "--db", db, "card", "set", "1", "--title", "HF", "--bullet", "BNP up")
	require.NoError(t, err)
	assert.Contains(t, out, "Card saved for #1")

	_, err = run(t, "", "--db", db, "card", "set", "9")
	assert.Error(t, err)

	out, err = run(t, "r\n", "--db", db, "review")
	require.NoError(t, err)
	assert.Contains(t, out, "• BNP up")
	assert.Contains(t, out, "revised 1, weak 0, skipped 0")

	out, err = run(t, "", "--db", db, "due")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to revise.")

	out, err = run(t, "", "--db", db, "plan")
	require.NoError(t, err)
	assert.Contains(t, out, "streak 1")
}

func TestCardSetFromText(t *testing.T) {
	color.NoColor = true
	db := filepath.Join(t.TempDir(), "cli.db")

	_, err := run(t, "", "--db", db, "add", "-s", "Medicine", "-t", "heart failure", "-r", "BNP")
	require.NoError(t, err)

	notes := "Raised BNP. Bibasal crackles; S3\nPedal oedema worse at night"
	_, err = run(t, "", "--db", db, "card", "set", "1", "--bullet", "Echo first", "--from-text", notes)
	require.NoError(t, err)

	out, err := run(t, "r\n", "--db", db, "review")
	require.NoError(t, err)
	assert.Contains(t, out, "• Echo first")
	assert.Contains(t, out, "• Raised BNP")
	assert.Contains(t, out, "• Bibasal crackles")
	assert.Contains(t, out, "• Pedal oedema worse at night")
	assert.NotContains(t, out, "• S3")
}

func TestSprintReadOnly(t *testing.T) {
	color.NoColor = true
	db := filepath.Join(t.TempDir(), "cli.db")

	_, err := run(t, "", "--db", db, "add", "-s", "Surgery", "-t", "hernia", "-r", "inguinal", "--high-yield")
	require.NoError(t, err)

	out, err := run(t, "n\n", "--db", db, "sprint", "--phase", "high_yield_only", "--read-only")
	require.NoError(t, err)
	assert.Contains(t, out, "Phase high_yield_only")
	assert.Contains(t, out, "Hernia")
	assert.Contains(t, out, "skipped 1")

	_, err = run(t, "", "--db", db, "sprint", "--phase", "cram")
	assert.Error(t, err)
}

func TestSourceAdd(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")
	notes := t.TempDir()

	out, err := run(t, "", "--db", db, "source", "add", notes, "--subject", "Anatomy")
	require.NoError(t, err)
	assert.Contains(t, out, "Added local source #1")

	out, err = run(t, "", "--db", db, "source", "add", notes)
	require.NoError(t, err)
	assert.Contains(t, out, "already registered as #1")

	out, err = run(t, "", "--db", db, "source", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Anatomy")
	assert.Contains(t, out, "never")

	_, err = run(t, "", "--db", db, "source", "add", filepath.Join(notes, "missing"))
	assert.Error(t, err)
}
