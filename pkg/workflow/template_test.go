package workflow

import (
	"testing"

	"github.com/dgxrun/weave/pkg/envlookup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpolate_SubstitutesContextAndEnv(t *testing.T) {
	c := NewContext(nil)
	c.Set("user.name", "ada", SetOptions{})
	env := &envlookup.Resolver{Explicit: map[string]string{"STAGE": "prod"}}

	in := NewInterpolator(c, env)
	out := in.Interpolate("hello ${ctx:user.name}, env=${env:STAGE}")
	assert.Equal(t, "hello ada, env=prod", out)
}

func TestInterpolate_MissingTokenResolvesEmpty(t *testing.T) {
	in := NewInterpolator(NewContext(nil), envlookup.New())
	out := in.Interpolate("x=${ctx:missing}")
	assert.Equal(t, "x=", out)
}

func TestResolveValue_Literal(t *testing.T) {
	lit := "fixed"
	in := NewInterpolator(nil, nil)
	v, err := in.ResolveValue(ValueSource{Literal: &lit})
	require.NoError(t, err)
	assert.Equal(t, "fixed", v)
}

func TestResolveValue_ContextKeyMissingErrors(t *testing.T) {
	in := NewInterpolator(NewContext(nil), nil)
	_, err := in.ResolveValue(ValueSource{ContextKey: "nope"})
	assert.Error(t, err)
}

func TestResolveValue_Template(t *testing.T) {
	c := NewContext(nil)
	c.Set("id", "42", SetOptions{})
	in := NewInterpolator(c, envlookup.New())
	v, err := in.ResolveValue(ValueSource{Template: "item-${ctx:id}"})
	require.NoError(t, err)
	assert.Equal(t, "item-42", v)
}
