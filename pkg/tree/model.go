package tree

import (
	"context"
	"fmt"
	"sync"

	"github.com/plycad/plycad.go/pkg/connection"
	"github.com/plycad/plycad.go/pkg/logger"
)

// Model is the root proxy of one remote model instance, together with the
// session state shared by all proxies of that instance: the RPC channel and
// the proxy cache. Opening the same file twice yields two independent Models
// with disjoint identity spaces.
type Model struct {
	root *Object
	conn connection.Connection
	log  logger.Logger

	cacheLock sync.Mutex
	cache     map[ResourcePath]*Object
}

// OpenModel creates a fresh model instance on the server from the file at
// path and returns its root proxy.
func OpenModel(ctx context.Context, conn connection.Connection, log logger.Logger, path string) (*Model, error) {
	var info connection.ObjectInfo
	if err := conn.Send(ctx, &info, connection.MethodOpenModel, path); err != nil {
		return nil, wrapRemote(connection.MethodOpenModel, err)
	}
	return newModel(conn, log, info), nil
}

// ImportModel bulk-populates a new model instance from a file in the given
// format and returns its root proxy.
func ImportModel(ctx context.Context, conn connection.Connection, log logger.Logger, path, format string) (*Model, error) {
	var info connection.ObjectInfo
	if err := conn.Send(ctx, &info, connection.MethodImportModel, path, format); err != nil {
		return nil, wrapRemote(connection.MethodImportModel, err)
	}
	return newModel(conn, log, info), nil
}

func newModel(conn connection.Connection, log logger.Logger, info connection.ObjectInfo) *Model {
	m := &Model{
		conn:  conn,
		log:   log,
		cache: make(map[ResourcePath]*Object),
	}
	schema, _ := SchemaOf(KindModel)
	m.root = &Object{
		kind:   KindModel,
		schema: schema,
		model:  m,
		path:   ResourcePath(info.ResourcePath),
		id:     info.ID,
		rec:    newRecord(info.Name),
	}
	m.cache[m.root.path] = m.root
	return m
}

// Root returns the model's root object. It is the object to use in parent
// mappings when copying whole branches between models.
func (m *Model) Root() *Object { return m.root }

func (m *Model) Name() string { return m.root.Name() }

func (m *Model) Path() ResourcePath { return m.root.path }

// Children returns the Mapping for one of the root categories.
func (m *Model) Children(label string) (*Mapping, error) {
	return m.root.Children(label)
}

func (m *Model) Materials() *Mapping { return m.mustChildren("materials") }

func (m *Model) Fabrics() *Mapping { return m.mustChildren("fabrics") }

func (m *Model) ElementSets() *Mapping { return m.mustChildren("element_sets") }

func (m *Model) EdgeSets() *Mapping { return m.mustChildren("edge_sets") }

func (m *Model) Rosettes() *Mapping { return m.mustChildren("rosettes") }

func (m *Model) OrientedSelectionSets() *Mapping {
	return m.mustChildren("oriented_selection_sets")
}

func (m *Model) ModelingGroups() *Mapping { return m.mustChildren("modeling_groups") }

func (m *Model) mustChildren(label string) *Mapping {
	mapping, err := m.root.Children(label)
	if err != nil {
		// Root categories are fixed in the schema table; a mismatch is a
		// programming error.
		panic(err)
	}
	return mapping
}

// Update triggers a server-side recompute of the model. This regenerates
// derived objects (production plies, analysis plies) and makes computed
// fields available.
func (m *Model) Update(ctx context.Context) error {
	if err := m.conn.Send(ctx, nil, connection.MethodUpdateModel, m.root.path.String()); err != nil {
		return wrapRemote(connection.MethodUpdateModel, err)
	}
	return nil
}

// Save persists the model server-side to the given path.
func (m *Model) Save(ctx context.Context, path string) error {
	if err := m.conn.Send(ctx, nil, connection.MethodSaveModel, m.root.path.String(), path); err != nil {
		return wrapRemote(connection.MethodSaveModel, err)
	}
	return nil
}

// resolve returns the canonical proxy for a resource path, constructing a
// stored proxy when the path has not been seen before. The object's kind is
// recovered from the collection label in the path.
func (m *Model) resolve(rp ResourcePath) (*Object, error) {
	m.cacheLock.Lock()
	defer m.cacheLock.Unlock()

	if o, ok := m.cache[rp]; ok {
		return o, nil
	}

	schema, ok := schemaForLabel(rp.CollectionLabel())
	if !ok {
		return nil, fmt.Errorf("resource path %q: unknown collection label %q", rp, rp.CollectionLabel())
	}

	o := &Object{
		kind:   schema.Kind,
		schema: schema,
		model:  m,
		path:   rp,
		id:     lastSegment(rp),
		rec:    newRecord(""),
	}
	m.cache[rp] = o
	return o, nil
}

// absorb returns the canonical proxy for an ObjectInfo received from the
// server, updating the cached name and id.
func (m *Model) absorb(info connection.ObjectInfo, schema *Schema) *Object {
	m.cacheLock.Lock()
	defer m.cacheLock.Unlock()

	rp := ResourcePath(info.ResourcePath)
	if o, ok := m.cache[rp]; ok {
		o.rec.name = info.Name
		o.id = info.ID
		return o
	}
	o := &Object{
		kind:   schema.Kind,
		schema: schema,
		model:  m,
		path:   rp,
		id:     info.ID,
		rec:    newRecord(info.Name),
	}
	m.cache[rp] = o
	return o
}

func (m *Model) register(o *Object) {
	m.cacheLock.Lock()
	defer m.cacheLock.Unlock()
	m.cache[o.path] = o
}

func lastSegment(rp ResourcePath) string {
	s := rp.String()
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return s[i+1:]
		}
	}
	return s
}
