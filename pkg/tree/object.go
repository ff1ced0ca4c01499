// Package tree implements the client-side object model of a remote modeling
// server.
//
// Every remote entity is represented by an Object proxy. A proxy starts out
// unstored (a local draft with in-memory field values) and becomes stored
// once Store attaches it to a parent: from then on field reads fetch from the
// server and field writes are sent immediately. The transition is one-way.
//
// The package also provides the recursive copy engine (RecursiveCopy), which
// duplicates a subgraph of stored objects within one model or across two
// models.
package tree

import (
	"context"
	"fmt"

	"github.com/plycad/plycad.go/pkg/connection"
)

// record holds the local field state of an object: the full state of an
// unstored object, and the last-seen snapshot of a stored one. Every read of
// a stored field refreshes the corresponding entry, every write writes
// through, so Clone can copy the record without touching the network.
type record struct {
	name      string
	scalars   map[string]any
	links     map[string]*Object
	linkLists map[string][]*Object
}

func newRecord(name string) *record {
	return &record{
		name:      name,
		scalars:   make(map[string]any),
		links:     make(map[string]*Object),
		linkLists: make(map[string][]*Object),
	}
}

// clone copies the record. Scalars are value-copied, link targets stay
// references to the same proxies.
func (r *record) clone() *record {
	c := newRecord(r.name)
	for k, v := range r.scalars {
		c.scalars[k] = v
	}
	for k, v := range r.links {
		c.links[k] = v
	}
	for k, v := range r.linkLists {
		c.linkLists[k] = append([]*Object(nil), v...)
	}
	return c
}

// Object is a proxy for one entity of a remote model. The zero value is not
// usable; construct unstored objects with New, and obtain stored ones from a
// Model or a Mapping.
type Object struct {
	kind   Kind
	schema *Schema

	// Set once the object is stored.
	model *Model
	path  ResourcePath
	id    string

	rec *record
}

// New constructs an unstored object of the given kind. Model roots and
// derived kinds cannot be constructed client-side.
func New(kind Kind, name string) (*Object, error) {
	schema, ok := SchemaOf(kind)
	if !ok {
		return nil, fmt.Errorf("unknown object kind %q", kind)
	}
	if kind == KindModel {
		return nil, fmt.Errorf("model roots are created by OpenModel or ImportModel")
	}
	if schema.Derived {
		return nil, fmt.Errorf("%w: %s", ErrDerivedKind, kind)
	}
	return &Object{
		kind:   kind,
		schema: schema,
		rec:    newRecord(name),
	}, nil
}

func (o *Object) Kind() Kind { return o.kind }

// ID is the server-assigned identifier, unique within the owning model.
// Empty while the object is unstored.
func (o *Object) ID() string { return o.id }

// Path is the object's resource path. Zero while unstored.
func (o *Object) Path() ResourcePath { return o.path }

// Model returns the owning model, or nil while the object is unstored.
func (o *Object) Model() *Model { return o.model }

func (o *Object) IsStored() bool { return o.model != nil }

// Name returns the object's name as last seen from the server (stored) or as
// set locally (unstored).
func (o *Object) Name() string { return o.rec.name }

// SetName renames the object. Renaming a stored object does not re-run name
// collision resolution.
func (o *Object) SetName(ctx context.Context, name string) error {
	if o.IsStored() {
		err := o.model.conn.Send(ctx, nil, connection.MethodUpdate, o.path.String(), "name", name)
		if err != nil {
			return wrapRemote(connection.MethodUpdate, err)
		}
	}
	o.rec.name = name
	return nil
}

// Get reads one field. For unstored objects the value comes from the local
// record; for stored objects it is fetched from the server. Link fields
// return *Object (nil when unset), link lists return []*Object.
func (o *Object) Get(ctx context.Context, field string) (any, error) {
	spec, ok := o.schema.Field(field)
	if !ok {
		return nil, fmt.Errorf("%w: %q on kind %q", ErrUnknownField, field, o.kind)
	}

	if !o.IsStored() {
		if spec.Derived {
			return nil, &NotAvailableError{Field: field}
		}
		switch spec.Type {
		case FieldLink:
			return o.rec.links[field], nil
		case FieldLinkList:
			return append([]*Object(nil), o.rec.linkLists[field]...), nil
		default:
			return o.rec.scalars[field], nil
		}
	}

	var raw any
	if err := o.model.conn.Send(ctx, &raw, connection.MethodGet, o.path.String(), field); err != nil {
		return nil, wrapRemoteField(connection.MethodGet, field, err)
	}

	return o.absorbField(spec, raw)
}

// absorbField decodes a wire value into the local record and returns the
// decoded value.
func (o *Object) absorbField(spec *FieldSpec, raw any) (any, error) {
	switch spec.Type {
	case FieldLink:
		if raw == nil {
			o.rec.links[spec.Name] = nil
			return (*Object)(nil), nil
		}
		rp, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("field %q: expected resource path, got %T", spec.Name, raw)
		}
		target, err := o.model.resolve(ResourcePath(rp))
		if err != nil {
			return nil, err
		}
		o.rec.links[spec.Name] = target
		return target, nil

	case FieldLinkList:
		targets, err := o.absorbLinkList(spec, raw)
		if err != nil {
			return nil, err
		}
		return append([]*Object(nil), targets...), nil

	default:
		o.rec.scalars[spec.Name] = raw
		return raw, nil
	}
}

func (o *Object) absorbLinkList(spec *FieldSpec, raw any) ([]*Object, error) {
	if raw == nil {
		o.rec.linkLists[spec.Name] = nil
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("field %q: expected resource path list, got %T", spec.Name, raw)
	}
	targets := make([]*Object, 0, len(items))
	for _, item := range items {
		rp, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("field %q: expected resource path, got %T", spec.Name, item)
		}
		target, err := o.model.resolve(ResourcePath(rp))
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	o.rec.linkLists[spec.Name] = targets
	return targets, nil
}

// Set writes one field. Unstored objects are mutated locally at zero network
// cost; writes to stored objects are sent to the server immediately. Link
// values must be *Object (or nil), link list values []*Object.
func (o *Object) Set(ctx context.Context, field string, value any) error {
	spec, ok := o.schema.Field(field)
	if !ok {
		return fmt.Errorf("%w: %q on kind %q", ErrUnknownField, field, o.kind)
	}
	if spec.Derived {
		return fmt.Errorf("%w: %q", ErrReadOnlyField, field)
	}

	switch spec.Type {
	case FieldLink:
		target, ok := value.(*Object)
		if !ok && value != nil {
			return fmt.Errorf("field %q: expected *Object, got %T", field, value)
		}
		return o.setLink(ctx, spec, target)

	case FieldLinkList:
		targets, ok := value.([]*Object)
		if !ok && value != nil {
			return fmt.Errorf("field %q: expected []*Object, got %T", field, value)
		}
		return o.setLinkList(ctx, spec, targets)

	default:
		if o.IsStored() {
			err := o.model.conn.Send(ctx, nil, connection.MethodUpdate, o.path.String(), field, value)
			if err != nil {
				return wrapRemote(connection.MethodUpdate, err)
			}
		}
		o.rec.scalars[field] = value
		return nil
	}
}

func (o *Object) setLink(ctx context.Context, spec *FieldSpec, target *Object) error {
	if target != nil && o.IsStored() {
		if err := o.checkLinkTarget(target); err != nil {
			return err
		}
	}
	if o.IsStored() {
		var encoded any
		if target != nil {
			encoded = target.path.String()
		}
		err := o.model.conn.Send(ctx, nil, connection.MethodUpdate, o.path.String(), spec.Name, encoded)
		if err != nil {
			return wrapRemote(connection.MethodUpdate, err)
		}
	}
	o.rec.links[spec.Name] = target
	return nil
}

func (o *Object) setLinkList(ctx context.Context, spec *FieldSpec, targets []*Object) error {
	if o.IsStored() {
		encoded := make([]string, 0, len(targets))
		for _, target := range targets {
			if err := o.checkLinkTarget(target); err != nil {
				return err
			}
			encoded = append(encoded, target.path.String())
		}
		err := o.model.conn.Send(ctx, nil, connection.MethodUpdate, o.path.String(), spec.Name, encoded)
		if err != nil {
			return wrapRemote(connection.MethodUpdate, err)
		}
	}
	o.rec.linkLists[spec.Name] = append([]*Object(nil), targets...)
	return nil
}

// checkLinkTarget enforces that links on stored objects stay within the
// owning model.
func (o *Object) checkLinkTarget(target *Object) error {
	if target == nil || !target.IsStored() {
		return ErrUnstoredLinkTarget
	}
	if target.model != o.model {
		return &CrossModelLinkError{Source: o.path, Target: target.path}
	}
	return nil
}

// GetLinked reads a link field, returning nil when the link is unset.
func (o *Object) GetLinked(ctx context.Context, field string) (*Object, error) {
	value, err := o.Get(ctx, field)
	if err != nil {
		return nil, err
	}
	target, ok := value.(*Object)
	if !ok {
		if value == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("field %q is not a link field", field)
	}
	return target, nil
}

// SetLinked writes a link field. Pass nil to clear the link.
func (o *Object) SetLinked(ctx context.Context, field string, target *Object) error {
	if target == nil {
		return o.Set(ctx, field, nil)
	}
	return o.Set(ctx, field, target)
}

// LinkedList returns the ordered link-list view for the given field.
func (o *Object) LinkedList(field string) (*EdgePropertyList, error) {
	spec, ok := o.schema.Field(field)
	if !ok {
		return nil, fmt.Errorf("%w: %q on kind %q", ErrUnknownField, field, o.kind)
	}
	if spec.Type != FieldLinkList {
		return nil, fmt.Errorf("field %q is not a link list", field)
	}
	return &EdgePropertyList{owner: o, spec: spec}, nil
}

// Children returns the Mapping over the child category with the given label.
func (o *Object) Children(label string) (*Mapping, error) {
	spec, ok := o.schema.Collection(label)
	if !ok {
		return nil, fmt.Errorf("kind %q has no child category %q", o.kind, label)
	}
	return &Mapping{owner: o, spec: spec}, nil
}

// Store sends the object's current field state to the server and attaches it
// to parent, transitioning it to the stored state. Valid exactly once per
// object; the parent must be stored and of a kind that may own this object.
//
// Link fields pointing at unstored targets are not sent; use RecursiveCopy or
// set them after storing both endpoints.
func (o *Object) Store(ctx context.Context, parent *Object) error {
	if o.IsStored() {
		return ErrAlreadyStored
	}
	if o.schema.Derived {
		return fmt.Errorf("%w: %s", ErrDerivedKind, o.kind)
	}
	if parent == nil || !parent.IsStored() {
		return fmt.Errorf("parent: %w", ErrNotStored)
	}
	if !o.schema.allowsParent(parent.kind) {
		return &InvalidParentError{Kind: o.kind, ParentKind: parent.kind}
	}

	props, err := o.encodeProperties(parent.model)
	if err != nil {
		return err
	}

	collectionPath := parent.path.Join(o.schema.Label)

	var info connection.ObjectInfo
	err = parent.model.conn.Send(ctx, &info, connection.MethodCreate, collectionPath.String(), o.rec.name, props)
	if err != nil {
		return wrapRemote(connection.MethodCreate, err)
	}

	o.model = parent.model
	o.path = ResourcePath(info.ResourcePath)
	o.id = info.ID
	o.rec.name = info.Name
	o.model.register(o)
	return nil
}

// encodeProperties serializes the record for a create call. Derived scalars
// are skipped; links are sent as resource paths of already-stored targets.
func (o *Object) encodeProperties(target *Model) (map[string]any, error) {
	props := make(map[string]any)
	for i := range o.schema.Fields {
		spec := &o.schema.Fields[i]
		if spec.Derived {
			continue
		}
		switch spec.Type {
		case FieldLink:
			link := o.rec.links[spec.Name]
			if link == nil || !link.IsStored() {
				continue
			}
			if link.model != target {
				return nil, &CrossModelLinkError{Source: o.path, Target: link.path}
			}
			props[spec.Name] = link.path.String()

		case FieldLinkList:
			list := o.rec.linkLists[spec.Name]
			if len(list) == 0 {
				continue
			}
			encoded := make([]string, 0, len(list))
			for _, link := range list {
				if !link.IsStored() {
					continue
				}
				if link.model != target {
					return nil, &CrossModelLinkError{Source: o.path, Target: link.path}
				}
				encoded = append(encoded, link.path.String())
			}
			if len(encoded) > 0 {
				props[spec.Name] = encoded
			}

		default:
			if value, ok := o.rec.scalars[spec.Name]; ok {
				props[spec.Name] = value
			}
		}
	}
	return props, nil
}

// Clone produces a new unstored object with a field-for-field copy of the
// current values. Link fields reference the same targets as the source, not
// copies of them. The source is unaffected.
func (o *Object) Clone() *Object {
	return &Object{
		kind:   o.kind,
		schema: o.schema,
		rec:    o.rec.clone(),
	}
}

// Refresh fetches the full field state of a stored object into the local
// record.
func (o *Object) Refresh(ctx context.Context) error {
	if !o.IsStored() {
		return ErrNotStored
	}

	var snap connection.Snapshot
	if err := o.model.conn.Send(ctx, &snap, connection.MethodProperties, o.path.String()); err != nil {
		return wrapRemote(connection.MethodProperties, err)
	}

	o.rec.name = snap.Name
	for i := range o.schema.Fields {
		spec := &o.schema.Fields[i]
		raw, ok := snap.Properties[spec.Name]
		if !ok {
			continue
		}
		if _, err := o.absorbField(spec, raw); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the remote object. The proxy keeps its identity but any
// further remote access fails.
func (o *Object) Delete(ctx context.Context) error {
	if !o.IsStored() {
		return ErrNotStored
	}
	if err := o.model.conn.Send(ctx, nil, connection.MethodDelete, o.path.String()); err != nil {
		return wrapRemote(connection.MethodDelete, err)
	}
	return nil
}

func (o *Object) String() string {
	if o.IsStored() {
		return fmt.Sprintf("<%s %q (%s)>", o.kind, o.rec.name, o.path)
	}
	return fmt.Sprintf("<%s %q (unstored)>", o.kind, o.rec.name)
}
