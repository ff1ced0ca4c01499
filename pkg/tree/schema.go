package tree

// Kind identifies the type of a tree object.
type Kind string

const (
	KindModel                Kind = "model"
	KindMaterial             Kind = "material"
	KindFabric               Kind = "fabric"
	KindElementSet           Kind = "element_set"
	KindEdgeSet              Kind = "edge_set"
	KindRosette              Kind = "rosette"
	KindOrientedSelectionSet Kind = "oriented_selection_set"
	KindModelingGroup        Kind = "modeling_group"
	KindModelingPly          Kind = "modeling_ply"
	KindProductionPly        Kind = "production_ply"
	KindAnalysisPly          Kind = "analysis_ply"
)

// FieldType distinguishes plain values from references to other objects.
type FieldType int

const (
	FieldScalar FieldType = iota
	FieldLink
	FieldLinkList
)

// FieldSpec describes one field of an object kind.
type FieldSpec struct {
	Name     string
	Type     FieldType
	Target   Kind // link target kind, set for FieldLink and FieldLinkList
	Required bool
	// Derived fields are computed by the server during a model update and
	// cannot be written by the client.
	Derived bool
}

// CollectionSpec describes one child category of an object kind.
type CollectionSpec struct {
	Label string
	Kind  Kind
}

// Schema is the static per-kind table consulted by store validation and the
// copy engine: field list, legal parent kinds, and child categories.
type Schema struct {
	Kind        Kind
	Label       string // collection label under the parent
	ParentKinds []Kind
	// Derived kinds are created by the server during a model update. They can
	// be read but never constructed, stored, or copied by the client.
	Derived  bool
	Fields   []FieldSpec
	Children []CollectionSpec
}

var schemas = []*Schema{
	{
		Kind:  KindModel,
		Label: "models",
		Fields: []FieldSpec{
			{Name: "unit_system", Type: FieldScalar},
		},
		Children: []CollectionSpec{
			{Label: "materials", Kind: KindMaterial},
			{Label: "fabrics", Kind: KindFabric},
			{Label: "element_sets", Kind: KindElementSet},
			{Label: "edge_sets", Kind: KindEdgeSet},
			{Label: "rosettes", Kind: KindRosette},
			{Label: "oriented_selection_sets", Kind: KindOrientedSelectionSet},
			{Label: "modeling_groups", Kind: KindModelingGroup},
		},
	},
	{
		Kind:        KindMaterial,
		Label:       "materials",
		ParentKinds: []Kind{KindModel},
		Fields: []FieldSpec{
			{Name: "density", Type: FieldScalar},
			{Name: "ply_type", Type: FieldScalar},
		},
	},
	{
		Kind:        KindFabric,
		Label:       "fabrics",
		ParentKinds: []Kind{KindModel},
		Fields: []FieldSpec{
			{Name: "material", Type: FieldLink, Target: KindMaterial, Required: true},
			{Name: "thickness", Type: FieldScalar},
			{Name: "area_price", Type: FieldScalar},
			{Name: "area_weight", Type: FieldScalar, Derived: true},
		},
	},
	{
		Kind:        KindElementSet,
		Label:       "element_sets",
		ParentKinds: []Kind{KindModel},
		Fields: []FieldSpec{
			{Name: "element_labels", Type: FieldScalar},
			{Name: "middle_offset", Type: FieldScalar},
		},
	},
	{
		Kind:        KindEdgeSet,
		Label:       "edge_sets",
		ParentKinds: []Kind{KindModel},
		Fields: []FieldSpec{
			{Name: "edge_set_type", Type: FieldScalar},
			{Name: "limit_angle", Type: FieldScalar},
		},
	},
	{
		Kind:        KindRosette,
		Label:       "rosettes",
		ParentKinds: []Kind{KindModel},
		Fields: []FieldSpec{
			{Name: "origin", Type: FieldScalar},
			{Name: "dir1", Type: FieldScalar},
			{Name: "dir2", Type: FieldScalar},
		},
	},
	{
		Kind:        KindOrientedSelectionSet,
		Label:       "oriented_selection_sets",
		ParentKinds: []Kind{KindModel},
		Fields: []FieldSpec{
			{Name: "element_sets", Type: FieldLinkList, Target: KindElementSet},
			{Name: "rosettes", Type: FieldLinkList, Target: KindRosette},
			{Name: "orientation_point", Type: FieldScalar},
			{Name: "orientation_direction", Type: FieldScalar},
		},
	},
	{
		Kind:        KindModelingGroup,
		Label:       "modeling_groups",
		ParentKinds: []Kind{KindModel},
		Children: []CollectionSpec{
			{Label: "modeling_plies", Kind: KindModelingPly},
		},
	},
	{
		Kind:        KindModelingPly,
		Label:       "modeling_plies",
		ParentKinds: []Kind{KindModelingGroup},
		Fields: []FieldSpec{
			{Name: "ply_material", Type: FieldLink, Target: KindFabric, Required: true},
			{Name: "oriented_selection_sets", Type: FieldLinkList, Target: KindOrientedSelectionSet},
			{Name: "ply_angle", Type: FieldScalar},
			{Name: "number_of_layers", Type: FieldScalar},
			{Name: "active", Type: FieldScalar},
		},
		Children: []CollectionSpec{
			{Label: "production_plies", Kind: KindProductionPly},
		},
	},
	{
		Kind:        KindProductionPly,
		Label:       "production_plies",
		ParentKinds: []Kind{KindModelingPly},
		Derived:     true,
		Fields: []FieldSpec{
			{Name: "angle", Type: FieldScalar, Derived: true},
			{Name: "material_name", Type: FieldScalar, Derived: true},
		},
		Children: []CollectionSpec{
			{Label: "analysis_plies", Kind: KindAnalysisPly},
		},
	},
	{
		Kind:        KindAnalysisPly,
		Label:       "analysis_plies",
		ParentKinds: []Kind{KindProductionPly},
		Derived:     true,
		Fields: []FieldSpec{
			{Name: "thickness", Type: FieldScalar, Derived: true},
			{Name: "angle", Type: FieldScalar, Derived: true},
		},
	},
}

var (
	schemaByKind  = map[Kind]*Schema{}
	schemaByLabel = map[string]*Schema{}
)

func init() {
	for _, s := range schemas {
		schemaByKind[s.Kind] = s
		schemaByLabel[s.Label] = s
	}
}

// SchemaOf returns the schema for the given kind.
func SchemaOf(kind Kind) (*Schema, bool) {
	s, ok := schemaByKind[kind]
	return s, ok
}

func schemaForLabel(label string) (*Schema, bool) {
	s, ok := schemaByLabel[label]
	return s, ok
}

// KindForLabel returns the object kind stored under the given collection
// label.
func KindForLabel(label string) (Kind, bool) {
	s, ok := schemaByLabel[label]
	if !ok {
		return "", false
	}
	return s.Kind, true
}

// Field returns the spec of the named field.
func (s *Schema) Field(name string) (*FieldSpec, bool) {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// Collection returns the child category with the given label.
func (s *Schema) Collection(label string) (CollectionSpec, bool) {
	for _, c := range s.Children {
		if c.Label == label {
			return c, true
		}
	}
	return CollectionSpec{}, false
}

func (s *Schema) allowsParent(kind Kind) bool {
	for _, k := range s.ParentKinds {
		if k == kind {
			return true
		}
	}
	return false
}
