package tree

import (
	"context"
	"fmt"

	"github.com/plycad/plycad.go/pkg/connection"
)

// Fields carries initial field values for Mapping.Create. Link fields take
// *Object values, link lists []*Object.
type Fields map[string]any

// Mapping is the read view over one child category of a stored object, plus
// the create factory for that category. It holds no state of its own; every
// listing goes to the server and reflects the server-defined order.
type Mapping struct {
	owner *Object
	spec  CollectionSpec
}

func (m *Mapping) Label() string { return m.spec.Label }

// All lists the category's children in server order.
func (m *Mapping) All(ctx context.Context) ([]*Object, error) {
	if !m.owner.IsStored() {
		return nil, fmt.Errorf("owner: %w", ErrNotStored)
	}

	collectionPath := m.owner.path.Join(m.spec.Label)
	var infos []connection.ObjectInfo
	if err := m.owner.model.conn.Send(ctx, &infos, connection.MethodList, collectionPath.String()); err != nil {
		return nil, wrapRemote(connection.MethodList, err)
	}

	schema, _ := SchemaOf(m.spec.Kind)
	objects := make([]*Object, 0, len(infos))
	for _, info := range infos {
		objects = append(objects, m.owner.model.absorb(info, schema))
	}
	return objects, nil
}

// Names lists the children's names in server order.
func (m *Mapping) Names(ctx context.Context) ([]string, error) {
	objects, err := m.All(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(objects))
	for _, o := range objects {
		names = append(names, o.Name())
	}
	return names, nil
}

// Get returns the child with the given name.
func (m *Mapping) Get(ctx context.Context, name string) (*Object, error) {
	objects, err := m.All(ctx)
	if err != nil {
		return nil, err
	}
	for _, o := range objects {
		if o.Name() == name {
			return o, nil
		}
	}
	return nil, fmt.Errorf("%w: %q in %q", ErrNameNotFound, name, m.spec.Label)
}

// Create constructs a new child with the given name and initial fields and
// stores it under the owner in one step.
func (m *Mapping) Create(ctx context.Context, name string, fields Fields) (*Object, error) {
	o, err := New(m.spec.Kind, name)
	if err != nil {
		return nil, err
	}
	for field, value := range fields {
		if err := o.Set(ctx, field, value); err != nil {
			return nil, err
		}
	}
	if err := o.Store(ctx, m.owner); err != nil {
		return nil, err
	}
	return o, nil
}
