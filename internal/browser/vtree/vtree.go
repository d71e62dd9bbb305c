// internal/browser/vtree/vtree.go
// Package vtree is a small, HTML-backed visual tree. It implements every
// collaborator contract in internal/input/host so the input core can be driven
// end to end without a layout engine. Geometry comes from data-rect attributes
// rather than layout, and listeners are Go functions rather than scripts.
package vtree

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/inputcore/api/schemas"
	"github.com/xkilldash9x/inputcore/internal/browser/target"
	"github.com/xkilldash9x/inputcore/internal/geom"
	"github.com/xkilldash9x/inputcore/internal/input/host"
	"github.com/xkilldash9x/inputcore/internal/observability"
)

type nodeKind uint8

const (
	kindDocument nodeKind = iota
	kindElement
	kindText
)

// Width of scrollbar strips and resize corners.
const controlSize = 10

type node struct {
	kind     nodeKind
	tag      string
	attrs    map[string]string
	text     string
	src      *html.Node
	parent   host.Ref
	children []host.Ref
	doc      host.Ref
	attached bool
	rect     geom.Rect
	// Frame owners only.
	content host.Ref
}

func (n *node) attr(name string) (string, bool) {
	v, ok := n.attrs[name]
	return v, ok
}

type docState struct {
	root      *html.Node
	owner     host.Ref
	laidOut   bool
	hover     host.Ref
	active    host.Ref
	focused   host.Ref
	selection *Selection
	scrollMax schemas.Point
}

// View is one top-level viewport with its documents.
type View struct {
	logger   *zap.Logger
	nodes    *target.Arena[*node]
	root     host.Ref
	docs     map[host.Ref]*docState
	byHTML   map[*html.Node]host.Ref
	viewport schemas.Point

	listeners  map[host.Ref]map[schemas.EventType][]Listener
	willRemove []func(host.Ref)
	log        []Notification

	focusedDoc host.Ref
	focusGuard func(doc, t host.Ref) bool

	scroll            map[host.Ref]schemas.Point
	scrollLog         []ScrollRecord
	scrollbarGestures []schemas.GestureType
	widgetGestures    []schemas.GestureType

	cursor       schemas.Cursor
	touchActions map[schemas.TouchID]schemas.TouchAction
	contextMenus []host.Ref
	drags        []host.DragInfo
	declineDrags bool
	history      int
	backs        int
	edits        []string
}

// Parse builds a View from an HTML document. viewport is the width and
// height of the root document.
func Parse(src string, viewport schemas.Point, logger *zap.Logger) (*View, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("vtree: parse document: %w", err)
	}
	v := &View{
		logger:       observability.Component(logger, "vtree"),
		nodes:        target.NewArena[*node](),
		docs:         make(map[host.Ref]*docState),
		byHTML:       make(map[*html.Node]host.Ref),
		viewport:     viewport,
		listeners:    make(map[host.Ref]map[schemas.EventType][]Listener),
		scroll:       make(map[host.Ref]schemas.Point),
		touchActions: make(map[schemas.TouchID]schemas.TouchAction),
		cursor:       schemas.CursorAuto,
	}
	v.root, err = v.buildDocument(root, geom.Rect{Width: viewport.X, Height: viewport.Y}, host.Ref{})
	if err != nil {
		return nil, err
	}
	v.focusedDoc = v.root
	return v, nil
}

// Host returns the collaborator bundle backed by v.
func (v *View) Host() host.Host {
	return host.Host{
		Tree:       v,
		Dispatcher: v,
		Focus:      v,
		Scroller:   v,
		Drag:       v,
		Editor:     v,
		Navigator:  v,
		Chrome:     v,
	}
}

func (v *View) buildDocument(src *html.Node, box geom.Rect, owner host.Ref) (host.Ref, error) {
	doc := v.nodes.Alloc(&node{kind: kindDocument, src: src, attached: true, rect: box})
	d, _ := v.nodes.Get(doc)
	d.doc = doc
	v.byHTML[src] = doc
	v.docs[doc] = &docState{root: src, owner: owner, laidOut: true}
	for c := src.FirstChild; c != nil; c = c.NextSibling {
		if err := v.build(c, doc, doc, box); err != nil {
			return host.Ref{}, err
		}
	}
	if html := v.firstElement(doc, "html"); !html.IsZero() {
		n, _ := v.nodes.Get(html)
		if s, ok := n.attr("data-scroll"); ok {
			if p, err := parsePair(s); err == nil {
				v.docs[doc].scrollMax = p
			}
		}
	}
	return doc, nil
}

var skippedTags = map[string]bool{
	"head": true, "script": true, "style": true, "template": true,
	"title": true, "meta": true, "link": true,
}

func (v *View) build(src *html.Node, parent, doc host.Ref, parentBox geom.Rect) error {
	switch src.Type {
	case html.TextNode:
		if strings.TrimSpace(src.Data) == "" {
			return nil
		}
		ref := v.nodes.Alloc(&node{kind: kindText, text: src.Data, src: src, parent: parent, doc: doc, attached: true, rect: parentBox})
		v.byHTML[src] = ref
		v.appendChild(parent, ref)
		return nil
	case html.ElementNode:
	default:
		return nil
	}

	tag := strings.ToLower(src.Data)
	if skippedTags[tag] {
		return nil
	}
	attrs := make(map[string]string, len(src.Attr))
	for _, a := range src.Attr {
		attrs[strings.ToLower(a.Key)] = a.Val
	}
	if _, hidden := attrs["hidden"]; hidden {
		return nil
	}

	box := parentBox
	if s, ok := attrs["data-rect"]; ok {
		r, err := parseRect(s)
		if err != nil {
			return fmt.Errorf("vtree: <%s data-rect=%q>: %w", tag, s, err)
		}
		box = r
	}

	ref := v.nodes.Alloc(&node{kind: kindElement, tag: tag, attrs: attrs, src: src, parent: parent, doc: doc, attached: true, rect: box})
	v.byHTML[src] = ref
	v.appendChild(parent, ref)

	if tag == "iframe" {
		content, err := html.Parse(strings.NewReader(attrs["srcdoc"]))
		if err != nil {
			return fmt.Errorf("vtree: parse iframe srcdoc: %w", err)
		}
		inner, err := v.buildDocument(content, geom.Rect{Width: box.Width, Height: box.Height}, ref)
		if err != nil {
			return err
		}
		n, _ := v.nodes.Get(ref)
		n.content = inner
		return nil
	}

	for c := src.FirstChild; c != nil; c = c.NextSibling {
		if err := v.build(c, ref, doc, box); err != nil {
			return err
		}
	}
	return nil
}

func (v *View) appendChild(parent, child host.Ref) {
	if p, ok := v.nodes.Get(parent); ok {
		p.children = append(p.children, child)
	}
}

func (v *View) firstElement(from host.Ref, tag string) host.Ref {
	n, ok := v.nodes.Get(from)
	if !ok {
		return host.Ref{}
	}
	if n.kind == kindElement && n.tag == tag {
		return from
	}
	for _, c := range n.children {
		if r := v.firstElement(c, tag); !r.IsZero() {
			return r
		}
	}
	return host.Ref{}
}

func parseRect(s string) (geom.Rect, error) {
	f := strings.Fields(s)
	if len(f) != 4 {
		return geom.Rect{}, fmt.Errorf("want 4 numbers, got %d", len(f))
	}
	var vals [4]float64
	for i, x := range f {
		n, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return geom.Rect{}, err
		}
		vals[i] = n
	}
	return geom.Rect{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}, nil
}

func parsePair(s string) (schemas.Point, error) {
	f := strings.Fields(s)
	if len(f) != 2 {
		return schemas.Point{}, fmt.Errorf("want 2 numbers, got %d", len(f))
	}
	x, err := strconv.ParseFloat(f[0], 64)
	if err != nil {
		return schemas.Point{}, err
	}
	y, err := strconv.ParseFloat(f[1], 64)
	if err != nil {
		return schemas.Point{}, err
	}
	return schemas.Point{X: x, Y: y}, nil
}

// -- host.Tree --

func (v *View) RootDocument() host.Ref { return v.root }

func (v *View) IsLaidOut(doc host.Ref) bool {
	d, ok := v.docs[doc]
	return ok && d.laidOut && v.nodes.Live(doc)
}

// SetLaidOut marks doc as laid out or not.
func (v *View) SetLaidOut(doc host.Ref, laidOut bool) {
	if d, ok := v.docs[doc]; ok {
		d.laidOut = laidOut
	}
}

func (v *View) IsAlive(r host.Ref) bool { return v.nodes.Live(r) }

func (v *View) IsAttached(r host.Ref) bool {
	n, ok := v.nodes.Get(r)
	return ok && n.attached
}

func (v *View) IsText(r host.Ref) bool {
	n, ok := v.nodes.Get(r)
	return ok && n.kind == kindText
}

func (v *View) Parent(r host.Ref) host.Ref {
	n, ok := v.nodes.Get(r)
	if !ok {
		return host.Ref{}
	}
	return n.parent
}

func (v *View) Document(r host.Ref) host.Ref {
	n, ok := v.nodes.Get(r)
	if !ok {
		return host.Ref{}
	}
	return n.doc
}

func (v *View) OwnerElement(doc host.Ref) host.Ref {
	if d, ok := v.docs[doc]; ok {
		return d.owner
	}
	return host.Ref{}
}

func (v *View) Node(r host.Ref) host.Node {
	n, ok := v.nodes.Get(r)
	if !ok {
		return nil
	}
	switch n.kind {
	case kindDocument:
		return &Document{v: v, ref: r, n: n}
	case kindText:
		return &Text{ref: r, n: n}
	}
	el := &Element{v: v, ref: r, n: n}
	switch n.tag {
	case "iframe":
		return &Frame{Element: el}
	case "embed", "object":
		return &Widget{Element: el}
	}
	return el
}

func (v *View) HitTest(doc host.Ref, p schemas.Point, radius schemas.Point) host.RawHit {
	var hit host.RawHit
	v.hitNode(doc, p, &hit)
	if radius.X > 0 || radius.Y > 0 {
		v.collect(doc, geom.RectAround(p, radius), &hit.Candidates)
	}
	if n, ok := v.nodes.Get(hit.Node); ok {
		hit.Local = p.Sub(n.rect.Origin())
	}
	return hit
}

func (v *View) hitNode(r host.Ref, p schemas.Point, hit *host.RawHit) bool {
	n, ok := v.nodes.Get(r)
	if !ok {
		return false
	}
	if n.kind != kindDocument && !n.rect.Contains(p) {
		return false
	}
	if n.kind == kindElement {
		if _, ok := n.attr("data-scrollbar"); ok {
			strip := geom.Rect{X: n.rect.Right() - controlSize, Y: n.rect.Y, Width: controlSize, Height: n.rect.Height}
			if strip.Contains(p) {
				hit.Node, hit.Scrollbar = r, r
				return true
			}
		}
		if _, ok := n.attr("data-resizer"); ok {
			corner := geom.Rect{X: n.rect.Right() - controlSize, Y: n.rect.Bottom() - controlSize, Width: controlSize, Height: controlSize}
			if corner.Contains(p) {
				hit.Node, hit.Resizer = r, true
				return true
			}
		}
	}
	// Elements paint above text, later siblings above earlier ones.
	for i := len(n.children) - 1; i >= 0; i-- {
		if c, ok := v.nodes.Get(n.children[i]); ok && c.kind == kindElement && v.hitNode(n.children[i], p, hit) {
			return true
		}
	}
	for i := len(n.children) - 1; i >= 0; i-- {
		if c, ok := v.nodes.Get(n.children[i]); ok && c.kind == kindText && c.rect.Contains(p) {
			hit.Node = n.children[i]
			return true
		}
	}
	hit.Node = r
	return true
}

func (v *View) collect(r host.Ref, area geom.Rect, out *[]host.Ref) {
	n, ok := v.nodes.Get(r)
	if !ok {
		return
	}
	for i := len(n.children) - 1; i >= 0; i-- {
		v.collect(n.children[i], area, out)
	}
	if n.kind != kindDocument && n.rect.Intersects(area) {
		*out = append(*out, r)
	}
}

func (v *View) UpdateHoverActive(doc host.Ref, t host.Ref, active, release bool) {
	d, ok := v.docs[doc]
	if !ok {
		return
	}
	d.hover = t
	switch {
	case release:
		d.active = host.Ref{}
	case active:
		d.active = t
	}
}

func (v *View) ActiveElement(doc host.Ref) host.Ref {
	if d, ok := v.docs[doc]; ok {
		return d.active
	}
	return host.Ref{}
}

// Hovered is the node under the mouse in doc.
func (v *View) Hovered(doc host.Ref) host.Ref {
	if d, ok := v.docs[doc]; ok {
		return d.hover
	}
	return host.Ref{}
}

// IsHovered reports whether r is on doc's hover chain.
func (v *View) IsHovered(r host.Ref) bool {
	d, ok := v.docs[v.Document(r)]
	if !ok {
		return false
	}
	for cur := d.hover; !cur.IsZero(); cur = v.Parent(cur) {
		if cur == r {
			return true
		}
	}
	return false
}

func (v *View) ElementByAccessKey(doc host.Ref, key string) host.Ref {
	var found host.Ref
	v.walk(doc, func(r host.Ref, n *node) bool {
		if k, ok := n.attr("accesskey"); ok && strings.EqualFold(k, key) {
			found = r
			return false
		}
		return true
	})
	return found
}

func (v *View) TopmostModal(doc host.Ref) host.Ref {
	var found host.Ref
	v.walk(doc, func(r host.Ref, n *node) bool {
		if n.tag == "dialog" {
			_, open := n.attr("open")
			_, modal := n.attr("data-modal")
			if open && modal {
				found = r
			}
		}
		return true
	})
	return found
}

// walk visits the attached subtree of r in tree order until fn returns false.
func (v *View) walk(r host.Ref, fn func(host.Ref, *node) bool) bool {
	n, ok := v.nodes.Get(r)
	if !ok {
		return true
	}
	if !fn(r, n) {
		return false
	}
	for _, c := range n.children {
		if !v.walk(c, fn) {
			return false
		}
	}
	return true
}

// -- Mutation --

// OnWillRemove registers fn to run before a node is detached.
func (v *View) OnWillRemove(fn func(host.Ref)) { v.willRemove = append(v.willRemove, fn) }

// Remove detaches r and its subtree. Refs stay alive; they just stop being
// attached.
func (v *View) Remove(r host.Ref) {
	n, ok := v.nodes.Get(r)
	if !ok || !n.attached || n.kind == kindDocument {
		return
	}
	for _, fn := range v.willRemove {
		fn(r)
	}
	// A will-remove hook may itself have removed r.
	if !n.attached {
		return
	}
	if p, ok := v.nodes.Get(n.parent); ok {
		for i, c := range p.children {
			if c == r {
				p.children = append(p.children[:i:i], p.children[i+1:]...)
				break
			}
		}
	}
	d := v.docs[n.doc]
	v.walk(r, func(cur host.Ref, cn *node) bool {
		cn.attached = false
		if d != nil {
			if d.hover == cur {
				d.hover = n.parent
			}
			if d.active == cur {
				d.active = host.Ref{}
			}
			if d.focused == cur {
				d.focused = host.Ref{}
			}
		}
		return true
	})
	n.parent = host.Ref{}
	v.logger.Debug("node removed", zap.Stringer("target", r))
}

// Destroy removes r and frees every node in its subtree, so all outstanding
// refs to them go stale.
func (v *View) Destroy(r host.Ref) {
	n, ok := v.nodes.Get(r)
	if !ok || n.kind == kindDocument {
		return
	}
	v.Remove(r)
	var doomed []host.Ref
	v.walk(r, func(cur host.Ref, cn *node) bool {
		doomed = append(doomed, cur)
		if !cn.content.IsZero() {
			v.walk(cn.content, func(inner host.Ref, _ *node) bool {
				doomed = append(doomed, inner)
				return true
			})
		}
		return true
	})
	for _, d := range doomed {
		if dn, ok := v.nodes.Get(d); ok {
			delete(v.byHTML, dn.src)
		}
		delete(v.listeners, d)
		delete(v.docs, d)
		v.nodes.Free(d)
	}
}

// AppendElement adds a new element under parent.
func (v *View) AppendElement(parent host.Ref, tag string, attrs map[string]string) (host.Ref, error) {
	p, ok := v.nodes.Get(parent)
	if !ok || p.kind == kindText {
		return host.Ref{}, fmt.Errorf("vtree: append to %s: %w", parent, host.ErrStaleTarget)
	}
	box := p.rect
	if s, ok := attrs["data-rect"]; ok {
		r, err := parseRect(s)
		if err != nil {
			return host.Ref{}, fmt.Errorf("vtree: data-rect %q: %w", s, err)
		}
		box = r
	}
	if attrs == nil {
		attrs = map[string]string{}
	}
	ref := v.nodes.Alloc(&node{kind: kindElement, tag: strings.ToLower(tag), attrs: attrs, parent: parent, doc: p.doc, attached: p.attached, rect: box})
	p.children = append(p.children, ref)
	return ref, nil
}

// SetAttr sets an attribute on an element.
func (v *View) SetAttr(r host.Ref, name, value string) {
	if n, ok := v.nodes.Get(r); ok && n.kind == kindElement {
		n.attrs[strings.ToLower(name)] = value
	}
}

// ContentDocument returns the document of an iframe element.
func (v *View) ContentDocument(r host.Ref) host.Ref {
	if n, ok := v.nodes.Get(r); ok {
		return n.content
	}
	return host.Ref{}
}

// Label names r for logs and notification dumps.
func (v *View) Label(r host.Ref) string {
	n, ok := v.nodes.Get(r)
	if !ok {
		return "stale(" + r.String() + ")"
	}
	switch n.kind {
	case kindDocument:
		if r == v.root {
			return "#document"
		}
		return "#document(" + v.Label(v.docs[r].owner) + ")"
	case kindText:
		return "#text"
	}
	if id, ok := n.attr("id"); ok && id != "" {
		return "#" + id
	}
	return n.tag
}
