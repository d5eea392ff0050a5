package expression

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileAndEval_SimpleComparison(t *testing.T) {
	env := map[string]any{"count": 0}
	p, err := Compile("count > 3", env)
	require.NoError(t, err)

	ok, err := p.Eval(context.Background(), map[string]any{"count": 5})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Eval(context.Background(), map[string]any{"count": 1})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompile_RejectsUnknownField(t *testing.T) {
	env := map[string]any{"count": 0}
	_, err := Compile("missingField > 3", env)
	assert.Error(t, err)
}

func TestCompile_RejectsNonBoolResult(t *testing.T) {
	env := map[string]any{"count": 0}
	_, err := Compile("count + 1", env)
	assert.Error(t, err)
}
