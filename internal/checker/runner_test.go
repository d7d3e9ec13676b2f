package checker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mglint/internal/config"
	"mglint/internal/mangle"
	"mglint/internal/mangle/diag"
)

const (
	goodProgram   = "parent(/a, /b).\nancestor(X, Y) :- parent(X, Y).\n"
	orphanProgram = "parent(/a, /b).\norphan(X) :- !parent(_, X).\n"
	cycleProgram  = "q(1).\np(X) :- q(X), !p(X).\n"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Workers = 4
	return cfg
}

func codes(fs []mangle.Finding) []diag.Code {
	var out []diag.Code
	for _, f := range fs {
		out = append(out, f.Code)
	}
	return out
}

func TestRunnerRun(t *testing.T) {
	root := writeTree(t, map[string]string{
		"c.mg":     cycleProgram,
		"a.mg":     goodProgram,
		"sub/b.mg": orphanProgram,
	})

	rep, err := NewRunner(testConfig()).Run(context.Background(), []string{root})
	require.NoError(t, err)
	require.Len(t, rep.Files, 3)

	// path order regardless of completion order
	assert.Equal(t, filepath.Join(root, "a.mg"), rep.Files[0].Path)
	assert.Equal(t, filepath.Join(root, "c.mg"), rep.Files[1].Path)
	assert.Equal(t, filepath.Join(root, "sub", "b.mg"), rep.Files[2].Path)

	assert.Empty(t, rep.Files[0].Findings)
	assert.Equal(t, []diag.Code{diag.CodeStratification}, codes(rep.Files[1].Findings))
	assert.Equal(t, mangle.ChannelStratification, rep.Files[1].Findings[0].Channel)
	assert.Equal(t, []diag.Code{diag.CodeRangeRestriction, diag.CodeUnboundNegation}, codes(rep.Files[2].Findings))

	assert.Equal(t, Counts{Files: 3, Errors: 3}, rep.Counts)
	assert.NotEmpty(t, rep.RunID)
	assert.True(t, rep.ExceedsLevel(diag.SeverityError))
	assert.False(t, rep.HasFailures())
}

func TestRunnerFiltersCodes(t *testing.T) {
	root := writeTree(t, map[string]string{"b.mg": orphanProgram})
	cfg := testConfig()
	cfg.Checks.Disabled = []string{"E002"}
	cfg.Checks.Severity = map[string]string{"E003": "warning"}

	rep, err := NewRunner(cfg).Run(context.Background(), []string{root})
	require.NoError(t, err)
	require.Len(t, rep.Files, 1)

	fs := rep.Files[0].Findings
	require.Len(t, fs, 1)
	assert.Equal(t, diag.CodeUnboundNegation, fs[0].Code)
	assert.Equal(t, diag.SeverityWarning, fs[0].Severity)

	assert.False(t, rep.ExceedsLevel(diag.SeverityError))
	assert.True(t, rep.ExceedsLevel(diag.SeverityWarning))
	assert.Equal(t, 1, rep.Counts.Warnings)
}

func TestRunnerUnreadableFile(t *testing.T) {
	root := writeTree(t, map[string]string{"a.mg": goodProgram})
	missing := filepath.Join(root, "gone.mg")

	rep, err := NewRunner(testConfig()).RunFiles(context.Background(), []string{filepath.Join(root, "a.mg"), missing})
	require.NoError(t, err)
	require.Len(t, rep.Files, 2)
	assert.Contains(t, rep.Files[1].Error, "read failed")
	assert.True(t, rep.HasFailures())
	assert.Equal(t, 1, rep.Counts.Failed)
}

func TestRunnerCancelled(t *testing.T) {
	root := writeTree(t, map[string]string{"a.mg": goodProgram, "b.mg": goodProgram})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(testConfig()).Run(ctx, []string{root})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunnerManyFiles(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 40; i++ {
		files[filepath.Join("d", string(rune('a'+i%26))+string(rune('a'+i/26))+".mg")] = goodProgram
	}
	root := writeTree(t, files)

	cfg := testConfig()
	cfg.Workers = 3
	rep, err := NewRunner(cfg).Run(context.Background(), []string{root})
	require.NoError(t, err)
	assert.Len(t, rep.Files, 40)
	for i := 1; i < len(rep.Files); i++ {
		assert.Less(t, rep.Files[i-1].Path, rep.Files[i].Path)
	}
}

func TestRunnerReferenceCheck(t *testing.T) {
	cfg := testConfig()
	cfg.Checks.Reference = true
	r := NewRunner(cfg)

	res := r.CheckSource("x.mg", goodProgram)
	assert.Empty(t, res.Findings)

	res = r.CheckSource("y.mg", "q(1).\np(X :- q(X).")
	var ref bool
	for _, f := range res.Findings {
		if f.Channel == mangle.ChannelReference {
			ref = true
			assert.Equal(t, diag.CodeReferenceParse, f.Code)
		}
	}
	assert.True(t, ref)
}

func TestNilConfigUsesDefaults(t *testing.T) {
	r := NewRunner(nil)
	assert.Equal(t, config.DefaultConfig().FailOn, r.Config().FailOn)

	path := filepath.Join(t.TempDir(), "a.mg")
	require.NoError(t, os.WriteFile(path, []byte(goodProgram), 0o644))
	res := r.CheckFile(context.Background(), path)
	assert.Empty(t, res.Error)
}
