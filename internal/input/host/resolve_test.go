// internal/input/host/resolve_test.go
package host_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/inputcore/api/schemas"
	"github.com/xkilldash9x/inputcore/internal/browser/vtree"
	"github.com/xkilldash9x/inputcore/internal/input/host"
)

const page = `<html><body>
<div id="card" data-rect="0 0 400 200">
  <button id="btn" data-rect="10 10 100 40"><span id="label" data-rect="20 20 40 20">ok</span></button>
  <p id="para" data-rect="10 100 200 20">words</p>
  <a id="link" href="/next" data-rect="10 150 50 20">next</a>
  <a id="anchor" data-rect="100 150 50 20">anchor</a>
  <div id="edit" contenteditable data-rect="200 10 100 40"></div>
  <input id="ro" readonly data-rect="200 60 100 20">
</div>
</body></html>`

func setup(t *testing.T) (*vtree.View, func(string) host.Ref) {
	t.Helper()
	v, err := vtree.Parse(page, schemas.Point{X: 800, Y: 600}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return v, func(id string) host.Ref { return v.MustQuery(fmt.Sprintf("//*[@id='%s']", id)) }
}

func TestValidAndRevalidate(t *testing.T) {
	v, el := setup(t)
	para := el("para")

	assert.True(t, host.Valid(v, para))
	assert.False(t, host.Valid(v, host.Ref{}))
	got, err := host.Revalidate(v, para)
	require.NoError(t, err)
	assert.Equal(t, para, got)

	_, err = host.Revalidate(v, host.Ref{})
	assert.ErrorIs(t, err, host.ErrNoSession)

	label := el("label")
	v.Remove(el("btn"))
	assert.False(t, host.Valid(v, label))
	_, err = host.Revalidate(v, label)
	assert.ErrorIs(t, err, host.ErrStaleTarget, "a detached subtree has no attached ancestor")

	v.Destroy(para)
	assert.False(t, host.Valid(v, para))
	_, err = host.Revalidate(v, para)
	assert.ErrorIs(t, err, host.ErrStaleTarget)
}

func TestElementOfAndNearest(t *testing.T) {
	v, el := setup(t)
	text := v.HitTest(v.RootDocument(), schemas.Point{X: 15, Y: 105}, schemas.Point{}).Node
	require.True(t, v.IsText(text))
	assert.Equal(t, el("para"), host.ElementOf(v, text))
	assert.Equal(t, el("para"), host.ElementOf(v, el("para")))
	assert.True(t, host.ElementOf(v, host.Ref{}).IsZero())

	card := el("card")
	assert.Equal(t, card, host.Nearest(v, el("label"), func(r host.Ref) bool { return r == card }))
	assert.True(t, host.Nearest(v, el("label"), func(host.Ref) bool { return false }).IsZero())
}

func TestCommonAncestor(t *testing.T) {
	v, el := setup(t)
	tests := []struct {
		name string
		a, b string
		next func(host.Ref) host.Ref
		want string
	}{
		{"siblings meet at their parent", "para", "link", v.Parent, "card"},
		{"self is its own ancestor", "label", "label", v.Parent, "label"},
		{"descendant and ancestor", "label", "btn", v.Parent, "btn"},
		{"interactive content ends the click chain", "label", "para", host.ParentForClick(v), ""},
		{"inside the same control", "label", "btn", host.ParentForClick(v), "btn"},
		{"plain links do not stop the chain", "anchor", "para", host.ParentForClick(v), "card"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := host.CommonAncestor(el(tt.a), el(tt.b), tt.next)
			if tt.want == "" {
				assert.True(t, got.IsZero(), "got %s", got)
				return
			}
			assert.Equal(t, el(tt.want), got)
		})
	}
	assert.True(t, host.CommonAncestor(host.Ref{}, el("para"), v.Parent).IsZero())
}

func TestCapabilityHelpers(t *testing.T) {
	v, el := setup(t)
	assert.True(t, host.IsLink(v, el("link")))
	assert.False(t, host.IsLink(v, el("anchor")))
	assert.True(t, host.IsEditable(v, el("edit")))
	assert.False(t, host.IsEditable(v, el("ro")))
	assert.False(t, host.IsEditable(v, el("para")))
	assert.Equal(t, 100.0, host.Bounds(v, el("btn")).Width)
	assert.Zero(t, host.Bounds(v, host.Ref{}))

	_, ok := host.As[host.Editable](v, host.Ref{})
	assert.False(t, ok)
}
