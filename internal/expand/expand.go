// Package expand inlines quoted, replied-to and reposted posts as a
// depth-capped chain of citation nodes.
package expand

import (
	"post-archivist/internal/model"
)

// MaxDepth is the deepest citation level that is expanded. The post being
// rendered is level 0 and its direct reference is level 1, so for an owner
// post A quoting B quoting C quoting D quoting E, B through D are shown and
// E becomes a DepthExceeded stub.
const MaxDepth = 3

// Status tells a renderer whether a node carries a post or is a stub.
type Status int

const (
	Resolved Status = iota
	// Missing: the target is not in the fetched collection.
	Missing
	// DepthExceeded: the target lies below MaxDepth.
	DepthExceeded
	// Cycle: the target is already on the current expansion path.
	Cycle
)

func (s Status) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case Missing:
		return "missing"
	case DepthExceeded:
		return "depth-exceeded"
	case Cycle:
		return "cycle"
	default:
		return "unknown"
	}
}

// Node is one citation level. Child is nil when the cited post references
// nothing further or when Status is not Resolved.
type Node struct {
	Kind     model.RefKind
	TargetID string
	Status   Status
	Depth    int
	Post     model.Post
	Author   string
	Child    *Node
}

// Expander builds citation chains from an id-indexed collection.
type Expander struct {
	index    model.Index
	users    map[string]string
	maxDepth int
}

func New(c model.PostCollection) *Expander {
	return &Expander{index: model.NewIndex(c), users: c.Usernames(), maxDepth: MaxDepth}
}

// WithMaxDepth returns a copy capped at depth instead of MaxDepth.
func (e *Expander) WithMaxDepth(depth int) *Expander {
	cp := *e
	if depth > 0 {
		cp.maxDepth = depth
	}
	return &cp
}

// Primary returns the reference that is expanded for p: a repost target
// first, then a quoted post, then the replied-to post.
func Primary(p model.Post) (model.Reference, bool) {
	for _, k := range []model.RefKind{model.RefRepost, model.RefQuote, model.RefReply} {
		if r, ok := p.Ref(k); ok {
			return r, true
		}
	}
	return model.Reference{}, false
}

// Expand builds the chain that starts at ref's target, at depth 1.
func (e *Expander) Expand(ref model.Reference) *Node {
	return e.build(ref, 1, map[string]bool{})
}

// ExpandFrom builds the chain for ref as cited by root. root is on the path
// from the start, so a chain that leads back to it ends in a Cycle stub.
func (e *Expander) ExpandFrom(root model.Post, ref model.Reference) *Node {
	return e.build(ref, 1, map[string]bool{root.ID: true})
}

func (e *Expander) build(ref model.Reference, depth int, path map[string]bool) *Node {
	n := &Node{Kind: ref.Kind, TargetID: ref.ID, Depth: depth}
	switch {
	case depth > e.maxDepth:
		n.Status = DepthExceeded
		return n
	case path[ref.ID]:
		n.Status = Cycle
		return n
	}
	p, ok := e.index[ref.ID]
	if !ok {
		n.Status = Missing
		return n
	}
	n.Status = Resolved
	n.Post = p
	n.Author = e.Author(p.AuthorID)

	next, ok := Primary(p)
	if !ok {
		return n
	}
	path[ref.ID] = true
	n.Child = e.build(next, depth+1, path)
	delete(path, ref.ID)
	return n
}

// Author returns the username for an author id, or the id when unknown.
func (e *Expander) Author(id string) string {
	if u, ok := e.users[id]; ok && u != "" {
		return u
	}
	return id
}

// Walk calls fn for n and each descendant, outermost first.
func (n *Node) Walk(fn func(*Node)) {
	for cur := n; cur != nil; cur = cur.Child {
		fn(cur)
	}
}
