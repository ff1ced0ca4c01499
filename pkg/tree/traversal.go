package tree

import "context"

// childObjects lists the owned, non-derived children of a stored object, in
// category order and server order within each category. Derived categories
// are skipped: their content is regenerated by the server, never copied.
func childObjects(ctx context.Context, o *Object) ([]*Object, error) {
	var out []*Object
	for _, c := range o.schema.Children {
		childSchema, ok := SchemaOf(c.Kind)
		if !ok || childSchema.Derived {
			continue
		}
		mapping := &Mapping{owner: o, spec: c}
		children, err := mapping.All(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, children...)
	}
	return out, nil
}

// linkEdge is one outgoing link of an object, taken from a record snapshot.
type linkEdge struct {
	field  string
	list   bool
	target *Object
}

// linkEdges walks a record's link fields in schema order, yielding one edge
// per non-nil target.
func linkEdges(schema *Schema, rec *record) []linkEdge {
	var edges []linkEdge
	for i := range schema.Fields {
		spec := &schema.Fields[i]
		switch spec.Type {
		case FieldLink:
			if target := rec.links[spec.Name]; target != nil {
				edges = append(edges, linkEdge{field: spec.Name, target: target})
			}
		case FieldLinkList:
			for _, target := range rec.linkLists[spec.Name] {
				if target != nil {
					edges = append(edges, linkEdge{field: spec.Name, list: true, target: target})
				}
			}
		}
	}
	return edges
}
