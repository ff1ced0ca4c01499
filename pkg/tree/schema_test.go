package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaOfCoversAllKinds(t *testing.T) {
	kinds := []Kind{
		KindModel, KindMaterial, KindFabric, KindElementSet, KindEdgeSet,
		KindRosette, KindOrientedSelectionSet, KindModelingGroup,
		KindModelingPly, KindProductionPly, KindAnalysisPly,
	}
	for _, kind := range kinds {
		s, ok := SchemaOf(kind)
		require.True(t, ok, "kind %q", kind)
		assert.Equal(t, kind, s.Kind)
	}

	_, ok := SchemaOf("bogus")
	assert.False(t, ok)
}

func TestKindForLabel(t *testing.T) {
	kind, ok := KindForLabel("materials")
	require.True(t, ok)
	assert.Equal(t, KindMaterial, kind)

	kind, ok = KindForLabel("modeling_plies")
	require.True(t, ok)
	assert.Equal(t, KindModelingPly, kind)

	_, ok = KindForLabel("bogus")
	assert.False(t, ok)
}

func TestDerivedKindsAreMarked(t *testing.T) {
	for _, kind := range []Kind{KindProductionPly, KindAnalysisPly} {
		s, ok := SchemaOf(kind)
		require.True(t, ok)
		assert.True(t, s.Derived, "kind %q", kind)
	}
	for _, kind := range []Kind{KindMaterial, KindFabric, KindModelingPly} {
		s, ok := SchemaOf(kind)
		require.True(t, ok)
		assert.False(t, s.Derived, "kind %q", kind)
	}
}

func TestSchemaFieldLookup(t *testing.T) {
	s, ok := SchemaOf(KindFabric)
	require.True(t, ok)

	material, ok := s.Field("material")
	require.True(t, ok)
	assert.Equal(t, FieldLink, material.Type)
	assert.Equal(t, KindMaterial, material.Target)
	assert.True(t, material.Required)

	areaWeight, ok := s.Field("area_weight")
	require.True(t, ok)
	assert.True(t, areaWeight.Derived)

	_, ok = s.Field("bogus")
	assert.False(t, ok)
}

func TestSchemaCollectionLookup(t *testing.T) {
	s, ok := SchemaOf(KindModel)
	require.True(t, ok)

	c, ok := s.Collection("fabrics")
	require.True(t, ok)
	assert.Equal(t, KindFabric, c.Kind)

	// Modeling plies live under modeling groups, not under the root.
	_, ok = s.Collection("modeling_plies")
	assert.False(t, ok)

	ply, ok := SchemaOf(KindModelingPly)
	require.True(t, ok)
	c, ok = ply.Collection("production_plies")
	require.True(t, ok)
	assert.Equal(t, KindProductionPly, c.Kind)
}

func TestSchemaAllowsParent(t *testing.T) {
	fabric, _ := SchemaOf(KindFabric)
	assert.True(t, fabric.allowsParent(KindModel))
	assert.False(t, fabric.allowsParent(KindMaterial))

	ply, _ := SchemaOf(KindModelingPly)
	assert.True(t, ply.allowsParent(KindModelingGroup))
	assert.False(t, ply.allowsParent(KindModel))
}
