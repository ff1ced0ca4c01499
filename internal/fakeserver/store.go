package fakeserver

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/plycad/plycad.go/pkg/connection"
	"github.com/plycad/plycad.go/pkg/tree"
)

// rpcError builds a server-side RPC error.
func rpcError(code int, format string, args ...any) *connection.RPCError {
	return &connection.RPCError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// entry is one object in the authoritative store. Link fields hold resource
// path strings, link lists hold string slices.
type entry struct {
	id     string
	name   string
	kind   tree.Kind
	path   string
	parent *entry
	props  map[string]any
	// children per collection label, in creation order
	children map[string][]*entry
}

func (e *entry) info() connection.ObjectInfo {
	return connection.ObjectInfo{ID: e.id, ResourcePath: e.path, Name: e.name}
}

// modelState is one model instance. Every open_model call creates a fresh
// instance, even for the same file.
type modelState struct {
	root    *entry
	objects map[string]*entry
	updated bool
}

// Store is the in-memory model store behind the fake server.
type Store struct {
	mu     sync.Mutex
	models map[string]*modelState
}

func NewStore() *Store {
	return &Store{models: make(map[string]*modelState)}
}

func newEntry(kind tree.Kind, id, name, path string, parent *entry) *entry {
	return &entry{
		id:       id,
		name:     name,
		kind:     kind,
		path:     path,
		parent:   parent,
		props:    make(map[string]any),
		children: make(map[string][]*entry),
	}
}

// OpenModel creates a new model instance for the file at path.
func (s *Store) OpenModel(path string) (connection.ObjectInfo, *connection.RPCError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	uid := ulid.Make().String()
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if name == "" || name == "." {
		name = "model"
	}

	root := newEntry(tree.KindModel, uid, name, "models/"+uid, nil)
	s.models[uid] = &modelState{
		root:    root,
		objects: map[string]*entry{root.path: root},
	}
	return root.info(), nil
}

func (s *Store) modelFor(path string) (*modelState, *connection.RPCError) {
	segments := strings.Split(path, "/")
	if len(segments) < 2 || segments[0] != "models" {
		return nil, rpcError(connection.CodeInvalidParams, "malformed resource path %q", path)
	}
	m, ok := s.models[segments[1]]
	if !ok {
		return nil, rpcError(connection.CodeNotFound, "no model instance %q", segments[1])
	}
	return m, nil
}

func (s *Store) lookup(path string) (*modelState, *entry, *connection.RPCError) {
	m, rpcErr := s.modelFor(path)
	if rpcErr != nil {
		return nil, nil, rpcErr
	}
	e, ok := m.objects[path]
	if !ok {
		return nil, nil, rpcError(connection.CodeNotFound, "no object at %q", path)
	}
	return m, e, nil
}

// Create stores one object under the given collection path. Name collisions
// are resolved by appending a numeric suffix (".2", ".3", ...).
func (s *Store) Create(collectionPath, name string, props map[string]any) (connection.ObjectInfo, *connection.RPCError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.create(collectionPath, name, props, true)
}

func (s *Store) create(collectionPath, name string, props map[string]any, clientCall bool) (connection.ObjectInfo, *connection.RPCError) {
	segments := strings.Split(collectionPath, "/")
	if len(segments) < 3 {
		return connection.ObjectInfo{}, rpcError(connection.CodeInvalidParams, "malformed collection path %q", collectionPath)
	}
	label := segments[len(segments)-1]
	parentPath := strings.Join(segments[:len(segments)-1], "/")

	m, parent, rpcErr := s.lookup(parentPath)
	if rpcErr != nil {
		return connection.ObjectInfo{}, rpcErr
	}

	parentSchema, ok := tree.SchemaOf(parent.kind)
	if !ok {
		return connection.ObjectInfo{}, rpcError(connection.CodeServerFault, "unknown kind %q", parent.kind)
	}
	collection, ok := parentSchema.Collection(label)
	if !ok {
		return connection.ObjectInfo{}, rpcError(connection.CodeInvalidParams,
			"kind %q has no collection %q", parent.kind, label)
	}
	childSchema, _ := tree.SchemaOf(collection.Kind)
	if clientCall && childSchema.Derived {
		return connection.ObjectInfo{}, rpcError(connection.CodeInvalidParams,
			"objects of kind %q are generated by the server", collection.Kind)
	}

	if rpcErr := checkConsistency(collection.Kind, props); rpcErr != nil {
		return connection.ObjectInfo{}, rpcErr
	}

	id := ulid.Make().String()
	e := newEntry(collection.Kind, id, s.dedupeName(parent, label, name), collectionPath+"/"+id, parent)
	for k, v := range props {
		e.props[k] = v
	}

	parent.children[label] = append(parent.children[label], e)
	m.objects[e.path] = e
	return e.info(), nil
}

// dedupeName implements the server's deterministic name collision rule: the
// requested name if free, otherwise "name.2", "name.3", ... in increasing
// order.
func (s *Store) dedupeName(parent *entry, label, name string) string {
	if name == "" {
		name = "Object"
	}
	taken := make(map[string]bool)
	for _, sibling := range parent.children[label] {
		taken[sibling.name] = true
	}
	if !taken[name] {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s.%d", name, i)
		if !taken[candidate] {
			return candidate
		}
	}
}

// checkConsistency enforces the cross-field invariants the real server
// checks on store and update.
func checkConsistency(kind tree.Kind, props map[string]any) *connection.RPCError {
	if kind != tree.KindMaterial {
		return nil
	}
	density, ok := toFloat(props["density"])
	if ok && density <= 0 {
		return rpcError(connection.CodeConsistency, "inconsistent material data: density must be positive")
	}
	return nil
}

// Properties returns the full field snapshot of one object. Derived fields
// are only present once the model has been updated.
func (s *Store) Properties(path string) (connection.Snapshot, *connection.RPCError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, e, rpcErr := s.lookup(path)
	if rpcErr != nil {
		return connection.Snapshot{}, rpcErr
	}

	props := make(map[string]any, len(e.props))
	for k, v := range e.props {
		props[k] = v
	}
	return connection.Snapshot{Name: e.name, Properties: props}, nil
}

// Get reads one field.
func (s *Store) Get(path, field string) (any, *connection.RPCError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, e, rpcErr := s.lookup(path)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if field == "name" {
		return e.name, nil
	}

	schema, _ := tree.SchemaOf(e.kind)
	spec, ok := schema.Field(field)
	if !ok {
		return nil, rpcError(connection.CodeInvalidParams, "kind %q has no field %q", e.kind, field)
	}
	if spec.Derived && !m.updated {
		return nil, rpcError(connection.CodeNotAvailable,
			"field %q is computed during a model update", field)
	}
	return e.props[field], nil
}

// Update writes one field.
func (s *Store) Update(path, field string, value any) *connection.RPCError {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, e, rpcErr := s.lookup(path)
	if rpcErr != nil {
		return rpcErr
	}
	if field == "name" {
		name, ok := value.(string)
		if !ok {
			return rpcError(connection.CodeInvalidParams, "name must be a string")
		}
		e.name = name
		return nil
	}

	schema, _ := tree.SchemaOf(e.kind)
	spec, ok := schema.Field(field)
	if !ok {
		return rpcError(connection.CodeInvalidParams, "kind %q has no field %q", e.kind, field)
	}
	if spec.Derived {
		return rpcError(connection.CodeServerFault, "field %q is read-only", field)
	}

	probe := map[string]any{field: value}
	for k, v := range e.props {
		if k != field {
			probe[k] = v
		}
	}
	if rpcErr := checkConsistency(e.kind, probe); rpcErr != nil {
		return rpcErr
	}

	e.props[field] = value
	return nil
}

// List returns the children of one collection in creation order.
func (s *Store) List(collectionPath string) ([]connection.ObjectInfo, *connection.RPCError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	segments := strings.Split(collectionPath, "/")
	if len(segments) < 3 {
		return nil, rpcError(connection.CodeInvalidParams, "malformed collection path %q", collectionPath)
	}
	label := segments[len(segments)-1]
	parentPath := strings.Join(segments[:len(segments)-1], "/")

	_, parent, rpcErr := s.lookup(parentPath)
	if rpcErr != nil {
		return nil, rpcErr
	}

	infos := make([]connection.ObjectInfo, 0, len(parent.children[label]))
	for _, child := range parent.children[label] {
		infos = append(infos, child.info())
	}
	return infos, nil
}

// Delete removes one object and its subtree.
func (s *Store) Delete(path string) *connection.RPCError {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, e, rpcErr := s.lookup(path)
	if rpcErr != nil {
		return rpcErr
	}
	if e.parent == nil {
		return rpcError(connection.CodeInvalidParams, "cannot delete a model root")
	}

	label := tree.ResourcePath(path).CollectionLabel()
	siblings := e.parent.children[label]
	for i, sibling := range siblings {
		if sibling == e {
			e.parent.children[label] = append(siblings[:i:i], siblings[i+1:]...)
			break
		}
	}
	s.forget(m, e)
	return nil
}

func (s *Store) forget(m *modelState, e *entry) {
	delete(m.objects, e.path)
	for _, children := range e.children {
		for _, child := range children {
			s.forget(m, child)
		}
	}
}

// UpdateModel recomputes the model: derived fields become available and
// production/analysis plies are regenerated from the modeling plies.
func (s *Store) UpdateModel(path string) *connection.RPCError {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, root, rpcErr := s.lookup(path)
	if rpcErr != nil {
		return rpcErr
	}
	if root.kind != tree.KindModel {
		return rpcError(connection.CodeInvalidParams, "%q is not a model root", path)
	}

	for _, fabric := range root.children["fabrics"] {
		s.computeAreaWeight(m, fabric)
	}
	for _, group := range root.children["modeling_groups"] {
		for _, ply := range group.children["modeling_plies"] {
			if rpcErr := s.generateProductionPlies(m, ply); rpcErr != nil {
				return rpcErr
			}
		}
	}

	m.updated = true
	return nil
}

func (s *Store) computeAreaWeight(m *modelState, fabric *entry) {
	thickness, ok := toFloat(fabric.props["thickness"])
	if !ok {
		return
	}
	materialPath, ok := fabric.props["material"].(string)
	if !ok {
		return
	}
	material, ok := m.objects[materialPath]
	if !ok {
		return
	}
	density, ok := toFloat(material.props["density"])
	if !ok {
		return
	}
	fabric.props["area_weight"] = thickness * density
}

func (s *Store) generateProductionPlies(m *modelState, ply *entry) *connection.RPCError {
	for _, old := range ply.children["production_plies"] {
		s.forget(m, old)
	}
	ply.children["production_plies"] = nil

	layers, ok := toInt(ply.props["number_of_layers"])
	if !ok || layers < 1 {
		layers = 1
	}
	angle, _ := toFloat(ply.props["ply_angle"])

	var materialName string
	var thickness float64
	if fabricPath, ok := ply.props["ply_material"].(string); ok {
		if fabric, ok := m.objects[fabricPath]; ok {
			thickness, _ = toFloat(fabric.props["thickness"])
			if materialPath, ok := fabric.props["material"].(string); ok {
				if material, ok := m.objects[materialPath]; ok {
					materialName = material.name
				}
			}
		}
	}

	for i := int64(1); i <= layers; i++ {
		info, rpcErr := s.create(ply.path+"/production_plies", fmt.Sprintf("P%dL1", i), map[string]any{
			"angle":         angle,
			"material_name": materialName,
		}, false)
		if rpcErr != nil {
			return rpcErr
		}
		_, rpcErr = s.create(info.ResourcePath+"/analysis_plies", fmt.Sprintf("P%dL1.1", i), map[string]any{
			"thickness": thickness,
			"angle":     angle,
		}, false)
		if rpcErr != nil {
			return rpcErr
		}
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
