package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_SetGet(t *testing.T) {
	c := NewContext(nil)
	c.Set("user.name", "ada", SetOptions{})
	v, ok := c.Get("user.name")
	require.True(t, ok)
	assert.Equal(t, "ada", v)
}

func TestContext_TTLExpiry(t *testing.T) {
	now := time.Unix(0, 0)
	c := NewContext(func() time.Time { return now })
	c.Set("otp", "123456", SetOptions{TTLMs: 1000})

	v, ok := c.Get("otp")
	require.True(t, ok)
	assert.Equal(t, "123456", v)

	now = now.Add(2 * time.Second)
	_, ok = c.Get("otp")
	assert.False(t, ok)
}

func TestContext_MaskTrackedInSnapshot(t *testing.T) {
	c := NewContext(nil)
	c.Set("session.token", "secret-value", SetOptions{Mask: true})
	snap := c.Snapshot()
	assert.Equal(t, "secret-value", snap.Values["session.token"])
	assert.True(t, snap.Masked["session.token"])
}

func TestContext_Merge(t *testing.T) {
	c := NewContext(nil)
	c.Merge(map[string]any{"a": 1, "b": 2})
	va, _ := c.Get("a")
	vb, _ := c.Get("b")
	assert.Equal(t, 1, va)
	assert.Equal(t, 2, vb)
}

func TestContext_ChildScopeShadowsAndDiscardsOnClose(t *testing.T) {
	parent := NewContext(nil)
	parent.Set("item", "parent-item", SetOptions{})

	child := parent.NewChildScope()
	child.Set("item", "child-item", SetOptions{})
	v, ok := child.Get("item")
	require.True(t, ok)
	assert.Equal(t, "child-item", v)

	child.Close()
	v, ok = child.Get("item")
	require.True(t, ok)
	assert.Equal(t, "parent-item", v, "after Close the child's own binding is discarded and parent's shows through")
}

func TestContext_ChildScopeNewNameDiscardedOnClose(t *testing.T) {
	parent := NewContext(nil)
	child := parent.NewChildScope()
	child.Set("index", 3, SetOptions{})
	child.Close()
	_, ok := child.Get("index")
	assert.False(t, ok)
}

func TestContext_ElementBindingsSeparateFromSnapshot(t *testing.T) {
	c := NewContext(nil)
	el := &testElement{id: "submit"}
	c.BindElement("form.submit", el)

	got, ok := c.ElementByKey("form.submit")
	require.True(t, ok)
	assert.Equal(t, el, got)

	snap := c.Snapshot()
	_, present := snap.Values["form.submit"]
	assert.False(t, present, "element bindings must never leak into the value snapshot")
}

func TestContext_ElementBindingFallsBackToParent(t *testing.T) {
	parent := NewContext(nil)
	el := &testElement{id: "row"}
	parent.BindElement("list.row", el)

	child := parent.NewChildScope()
	got, ok := child.ElementByKey("list.row")
	require.True(t, ok)
	assert.Equal(t, el, got)
}
