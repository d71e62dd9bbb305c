// internal/browser/vtree/query.go
package vtree

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/inputcore/internal/input/host"
)

// Query evaluates an XPath expression against the root document, then each
// frame document in tree order, and returns the first match that is still
// part of the view.
func (v *View) Query(expr string) (host.Ref, error) {
	refs, err := v.QueryAll(expr)
	if err != nil {
		return host.Ref{}, err
	}
	if len(refs) == 0 {
		return host.Ref{}, fmt.Errorf("vtree: no node matches %q", expr)
	}
	return refs[0], nil
}

// QueryAll returns every live node matching expr across all documents.
func (v *View) QueryAll(expr string) ([]host.Ref, error) {
	var out []host.Ref
	for _, doc := range v.documents() {
		d := v.docs[doc]
		found, err := htmlquery.QueryAll(d.root, expr)
		if err != nil {
			return nil, fmt.Errorf("vtree: bad xpath %q: %w", expr, err)
		}
		for _, n := range found {
			if r, ok := v.byHTML[n]; ok && v.nodes.Live(r) {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

// MustQuery is Query for fixtures; it panics when nothing matches.
func (v *View) MustQuery(expr string) host.Ref {
	r, err := v.Query(expr)
	if err != nil {
		panic(err)
	}
	return r
}

// documents lists the root document followed by nested frame documents in
// tree order.
func (v *View) documents() []host.Ref {
	var out []host.Ref
	var visit func(doc host.Ref)
	visit = func(doc host.Ref) {
		out = append(out, doc)
		v.walk(doc, func(_ host.Ref, n *node) bool {
			if !n.content.IsZero() && v.nodes.Live(n.content) {
				visit(n.content)
			}
			return true
		})
	}
	visit(v.root)
	return out
}

// XPath builds a stable XPath for r, anchored at the nearest ancestor with an
// id. Nodes created with AppendElement have no source markup and yield "".
func (v *View) XPath(r host.Ref) string {
	n, ok := v.nodes.Get(r)
	if !ok || n.src == nil {
		return ""
	}
	return uniqueXPath(n.src)
}

func uniqueXPath(node *html.Node) string {
	var path []string
	for n := node; n != nil && n.Type != html.DocumentNode; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		tag := strings.ToLower(n.Data)
		if id := htmlquery.SelectAttr(n, "id"); id != "" {
			path = append(path, fmt.Sprintf(`//*[@id='%s']`, id))
			break
		}
		index := 1
		for prev := n.PrevSibling; prev != nil; prev = prev.PrevSibling {
			if prev.Type == html.ElementNode && strings.ToLower(prev.Data) == tag {
				index++
			}
		}
		path = append(path, fmt.Sprintf("%s[%d]", tag, index))
	}
	if len(path) == 0 {
		return "/"
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	xpath := strings.Join(path, "/")
	if !strings.HasPrefix(xpath, "//*[@id=") {
		xpath = "/" + xpath
	}
	return xpath
}
