package tree

import (
	"context"
	"fmt"
	"sort"
)

// LinkedObjectHandling selects how the copy engine resolves link edges that
// reach outside the set of objects pinned by the parent mapping.
type LinkedObjectHandling int

const (
	// LinkedObjectsKeep points copied links at the original targets. Only
	// valid when copying within one model.
	LinkedObjectsKeep LinkedObjectHandling = iota
	// LinkedObjectsDiscard leaves all link fields of the copies empty, even
	// where the original link was set and the field is normally required.
	LinkedObjectsDiscard
	// LinkedObjectsCopy copies link targets recursively and points the copied
	// links at the new targets.
	LinkedObjectsCopy
)

func (h LinkedObjectHandling) String() string {
	switch h {
	case LinkedObjectsKeep:
		return "keep"
	case LinkedObjectsDiscard:
		return "discard"
	case LinkedObjectsCopy:
		return "copy"
	default:
		return fmt.Sprintf("LinkedObjectHandling(%d)", int(h))
	}
}

// CopyOptions parameterizes RecursiveCopy.
type CopyOptions struct {
	// SourceObjects are the starting points of the copy. Owned children of
	// every source are always included transitively.
	SourceObjects []*Object

	// ParentMapping maps original objects to the objects serving as the new
	// parents of their related copies. An entry for each source's parent is
	// required; use Model.Root() to map one model root to another. An object
	// mapped to itself (or to any stored object) is treated as already
	// resolved and is never copied itself, which is how shared objects are
	// pinned.
	ParentMapping map[*Object]*Object

	// LinkedObjects is the policy for link edges to objects not resolved via
	// ParentMapping.
	LinkedObjects LinkedObjectHandling
}

// CopyPair associates one original object with its newly created copy.
type CopyPair struct {
	Original *Object
	Copy     *Object
}

// CopyResult is the outcome of a RecursiveCopy: the original-to-copy pairs in
// creation order (parents before children).
type CopyResult struct {
	pairs  []CopyPair
	byPath map[ResourcePath]*Object
}

// Pairs returns the original-to-copy pairs in creation order.
func (r *CopyResult) Pairs() []CopyPair {
	return r.pairs
}

// Copied returns the copy created for the given original.
func (r *CopyResult) Copied(original *Object) (*Object, bool) {
	if original == nil || !original.IsStored() {
		return nil, false
	}
	c, ok := r.byPath[original.path]
	return c, ok
}

func (r *CopyResult) Len() int { return len(r.pairs) }

// copyNode is one scheduled object with the field snapshot taken when the
// closure was built.
type copyNode struct {
	obj   *Object
	rec   *record
	depth int
	order int
}

// RecursiveCopy duplicates the subgraph reachable from the source objects:
// owned children always follow their parent, link targets follow the
// LinkedObjects policy. Objects reachable by more than one path are copied
// exactly once, and mutually linked copies are resolved in a patch pass after
// all copies exist, so cyclic link graphs are safe.
//
// All validation (parent kinds, cross-model policy conflicts, parent mapping
// completeness) happens before the first mutating call. Execution itself is
// best-effort: when a remote call fails mid-plan, already-created copies
// remain and no partial result is returned.
func RecursiveCopy(ctx context.Context, opts CopyOptions) (*CopyResult, error) {
	if len(opts.SourceObjects) == 0 {
		return nil, ErrNoSourceObjects
	}

	// Normalize the parent mapping to resource paths. Every mapped original
	// counts as already resolved.
	replacement := make(map[ResourcePath]*Object, len(opts.ParentMapping))
	for original, target := range opts.ParentMapping {
		if original == nil || target == nil {
			return nil, fmt.Errorf("parent mapping: nil entry")
		}
		if !original.IsStored() || !target.IsStored() {
			return nil, fmt.Errorf("parent mapping: %w", ErrNotStored)
		}
		replacement[original.path] = target
	}

	for _, src := range opts.SourceObjects {
		if src == nil {
			return nil, fmt.Errorf("source objects: nil entry")
		}
		if !src.IsStored() {
			return nil, fmt.Errorf("source %s: %w", src.Name(), ErrNotStored)
		}
		if src.schema.Derived {
			return nil, fmt.Errorf("%w: %s", ErrDerivedKind, src.kind)
		}
	}

	// A "keep" copy into another model would leave the copied links dangling:
	// the original targets are not visible there. Fail before touching the
	// server.
	if opts.LinkedObjects == LinkedObjectsKeep {
		for original, target := range opts.ParentMapping {
			if original.model != target.model {
				return nil, &CrossModelLinkError{Source: original.path, Target: target.path}
			}
		}
	}

	nodes, visited, err := buildClosure(ctx, opts, replacement)
	if err != nil {
		return nil, err
	}

	// Creation order: parents strictly precede their children. A parent's
	// path is a strict prefix of its child's, so ordering by path depth (and
	// by discovery order within one depth) is sufficient and deterministic.
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].depth != nodes[j].depth {
			return nodes[i].depth < nodes[j].depth
		}
		return nodes[i].order < nodes[j].order
	})

	if err := validatePlan(nodes, visited, replacement, opts.LinkedObjects); err != nil {
		return nil, err
	}

	return executePlan(ctx, nodes, replacement, opts.LinkedObjects)
}

// buildClosure walks the object graph outward from the source objects and
// snapshots every object that must be copied. Reads go to the server; nothing
// is mutated.
func buildClosure(
	ctx context.Context,
	opts CopyOptions,
	replacement map[ResourcePath]*Object,
) ([]*copyNode, map[ResourcePath]*copyNode, error) {
	visited := make(map[ResourcePath]*copyNode)
	var nodes []*copyNode

	var visit func(o *Object) error
	visit = func(o *Object) error {
		if _, seen := visited[o.path]; seen {
			return nil
		}
		if _, resolved := replacement[o.path]; resolved {
			// Pinned by the caller: link edges point here directly, children
			// are not followed.
			return nil
		}
		if o.schema.Derived {
			// Regenerated by the server on the destination model's next
			// update.
			return nil
		}

		if err := o.Refresh(ctx); err != nil {
			return err
		}
		node := &copyNode{
			obj:   o,
			rec:   o.rec.clone(),
			depth: o.path.depth(),
			order: len(nodes),
		}
		visited[o.path] = node
		nodes = append(nodes, node)

		children, err := childObjects(ctx, o)
		if err != nil {
			return err
		}
		for _, child := range children {
			if err := visit(child); err != nil {
				return err
			}
		}

		if opts.LinkedObjects == LinkedObjectsCopy {
			for _, edge := range linkEdges(o.schema, node.rec) {
				if err := visit(edge.target); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for _, src := range opts.SourceObjects {
		if err := visit(src); err != nil {
			return nil, nil, err
		}
	}
	return nodes, visited, nil
}

// validatePlan checks the whole plan before any mutating call: every
// scheduled object must have a new parent (in the closure or in the parent
// mapping), mapped parents must be of a legal kind, and links must not end up
// crossing model boundaries.
func validatePlan(
	nodes []*copyNode,
	visited map[ResourcePath]*copyNode,
	replacement map[ResourcePath]*Object,
	handling LinkedObjectHandling,
) error {
	// Target model per scheduled object, resolved parent-first (nodes are in
	// parent-before-child order).
	targetModel := make(map[ResourcePath]*Model, len(nodes))
	for _, n := range nodes {
		parentPath := n.obj.path.Parent()
		if _, inClosure := visited[parentPath]; inClosure {
			targetModel[n.obj.path] = targetModel[parentPath]
			continue
		}
		newParent, ok := replacement[parentPath]
		if !ok {
			return fmt.Errorf("%w: %s", ErrParentNotMapped, n.obj.path)
		}
		if !n.obj.schema.allowsParent(newParent.kind) {
			return &InvalidParentError{Kind: n.obj.kind, ParentKind: newParent.kind}
		}
		targetModel[n.obj.path] = newParent.model
	}

	if handling == LinkedObjectsDiscard {
		return nil
	}

	for _, n := range nodes {
		dst := targetModel[n.obj.path]
		for _, edge := range linkEdges(n.obj.schema, n.rec) {
			if pinned, ok := replacement[edge.target.path]; ok {
				if pinned.model != dst {
					return &CrossModelLinkError{Source: n.obj.path, Target: pinned.path}
				}
				continue
			}
			if _, inClosure := visited[edge.target.path]; inClosure {
				// The target is copied into the destination model itself.
				continue
			}
			// Only reachable with the keep policy: the link stays on the
			// original target.
			if edge.target.model != dst {
				return &CrossModelLinkError{Source: n.obj.path, Target: edge.target.path}
			}
		}
	}
	return nil
}

// executePlan creates the copies in order, then patches link fields once both
// endpoints of every link exist.
func executePlan(
	ctx context.Context,
	nodes []*copyNode,
	replacement map[ResourcePath]*Object,
	handling LinkedObjectHandling,
) (*CopyResult, error) {
	result := &CopyResult{
		byPath: make(map[ResourcePath]*Object, len(nodes)),
	}

	for _, n := range nodes {
		parentPath := n.obj.path.Parent()
		newParent, ok := replacement[parentPath]
		if !ok {
			// The parent is part of this plan and was created earlier.
			newParent = result.byPath[parentPath]
		}

		copied := &Object{
			kind:   n.obj.kind,
			schema: n.obj.schema,
			rec:    scalarOnly(n.rec),
		}
		if err := copied.Store(ctx, newParent); err != nil {
			return nil, err
		}

		result.byPath[n.obj.path] = copied
		result.pairs = append(result.pairs, CopyPair{Original: n.obj, Copy: copied})
	}

	if handling == LinkedObjectsDiscard {
		return result, nil
	}

	for _, n := range nodes {
		copied := result.byPath[n.obj.path]
		if err := patchLinks(ctx, copied, n, result.byPath, replacement, handling); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// scalarOnly copies name and scalar fields of a record; link fields stay
// empty until the patch pass.
func scalarOnly(rec *record) *record {
	c := newRecord(rec.name)
	for k, v := range rec.scalars {
		c.scalars[k] = v
	}
	return c
}

// patchLinks rewrites the link fields of one copy according to the policy:
// pinned targets are redirected via the parent mapping, copied targets to
// their copies, and kept targets stay the originals.
func patchLinks(
	ctx context.Context,
	copied *Object,
	n *copyNode,
	created map[ResourcePath]*Object,
	replacement map[ResourcePath]*Object,
	handling LinkedObjectHandling,
) error {
	resolve := func(target *Object) *Object {
		if pinned, ok := replacement[target.path]; ok {
			return pinned
		}
		if handling == LinkedObjectsCopy {
			if c, ok := created[target.path]; ok {
				return c
			}
		}
		return target
	}

	for i := range n.obj.schema.Fields {
		spec := &n.obj.schema.Fields[i]
		switch spec.Type {
		case FieldLink:
			target := n.rec.links[spec.Name]
			if target == nil {
				continue
			}
			if err := copied.Set(ctx, spec.Name, resolve(target)); err != nil {
				return err
			}

		case FieldLinkList:
			targets := n.rec.linkLists[spec.Name]
			if len(targets) == 0 {
				continue
			}
			patched := make([]*Object, 0, len(targets))
			for _, target := range targets {
				patched = append(patched, resolve(target))
			}
			if err := copied.Set(ctx, spec.Name, patched); err != nil {
				return err
			}
		}
	}
	return nil
}
