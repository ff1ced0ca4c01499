package tree

import "strings"

// ResourcePath addresses one object inside a remote model instance. Paths are
// opaque to callers; two paths are comparable only within the same model
// instance.
//
// The server lays paths out as "models/<uid>" for a model root, and
// "<parent>/<collection label>/<id>" for every object below it.
type ResourcePath string

func (p ResourcePath) String() string {
	return string(p)
}

func (p ResourcePath) IsZero() bool {
	return p == ""
}

// Join appends path segments.
func (p ResourcePath) Join(parts ...string) ResourcePath {
	segments := append([]string{string(p)}, parts...)
	return ResourcePath(strings.Join(segments, "/"))
}

// Parent returns the path of the owning object, or the zero path for a model
// root.
func (p ResourcePath) Parent() ResourcePath {
	segments := strings.Split(string(p), "/")
	if len(segments) <= 2 {
		return ""
	}
	return ResourcePath(strings.Join(segments[:len(segments)-2], "/"))
}

// CollectionLabel returns the label of the collection the object lives in,
// such as "materials" or "modeling_plies".
func (p ResourcePath) CollectionLabel() string {
	segments := strings.Split(string(p), "/")
	if len(segments) < 2 {
		return ""
	}
	return segments[len(segments)-2]
}

// ModelPrefix returns the path of the model instance that owns the object.
func (p ResourcePath) ModelPrefix() ResourcePath {
	segments := strings.Split(string(p), "/")
	if len(segments) < 2 {
		return p
	}
	return ResourcePath(strings.Join(segments[:2], "/"))
}

// SameModel reports whether both paths belong to the same model instance.
func (p ResourcePath) SameModel(other ResourcePath) bool {
	return p.ModelPrefix() == other.ModelPrefix()
}

func (p ResourcePath) depth() int {
	return strings.Count(string(p), "/")
}
