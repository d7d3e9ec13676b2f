package mangle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLint(t *testing.T) {
	findings := Lint("parent(/a, /b).\norphan(X) :- !parent(_, X).\n", false)
	require.Len(t, findings, 2)
	assert.Equal(t, Code("E002"), findings[0].Code)
	assert.Equal(t, SeverityError, findings[0].Severity)
	assert.Equal(t, ChannelSemantic, findings[0].Channel)
}

func TestLintWithReference(t *testing.T) {
	findings := Lint("p(X) :- q(X", true)
	var channels []Channel
	for _, f := range findings {
		channels = append(channels, f.Channel)
	}
	assert.Contains(t, channels, ChannelParse)
	assert.Contains(t, channels, ChannelReference)
}

func TestWorkspaceReexport(t *testing.T) {
	ws := NewWorkspace()
	a := ws.OpenDocument("file:///a.mg", "q(1).\np(X) :- q(X).\n", 1)
	require.NotNil(t, a)
	assert.False(t, a.HasErrors())
	assert.NotEmpty(t, ws.Hover("file:///a.mg", 2, 8))
}
