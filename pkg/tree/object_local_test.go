package tree

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tests for the local side of the proxy life cycle: everything an unstored
// object supports without a connection.

func TestNewRejectsModelRoot(t *testing.T) {
	_, err := New(KindModel, "m")
	require.Error(t, err)
}

func TestNewRejectsDerivedKinds(t *testing.T) {
	for _, kind := range []Kind{KindProductionPly, KindAnalysisPly} {
		_, err := New(kind, "p")
		assert.ErrorIs(t, err, ErrDerivedKind, "kind %q", kind)
	}
}

func TestNewRejectsUnknownKind(t *testing.T) {
	_, err := New("bogus", "x")
	require.Error(t, err)
}

func TestUnstoredScalarRoundTrip(t *testing.T) {
	ctx := context.Background()

	fabric, err := New(KindFabric, "Carbon UD")
	require.NoError(t, err)
	assert.False(t, fabric.IsStored())
	assert.Equal(t, "Carbon UD", fabric.Name())
	assert.True(t, fabric.Path().IsZero())

	require.NoError(t, fabric.Set(ctx, "thickness", 0.25))
	value, err := fabric.Get(ctx, "thickness")
	require.NoError(t, err)
	assert.Equal(t, 0.25, value)

	// Unset fields read as nil.
	value, err = fabric.Get(ctx, "area_price")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestUnstoredUnknownField(t *testing.T) {
	ctx := context.Background()

	fabric, err := New(KindFabric, "f")
	require.NoError(t, err)

	_, err = fabric.Get(ctx, "bogus")
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.ErrorIs(t, fabric.Set(ctx, "bogus", 1), ErrUnknownField)
}

func TestUnstoredDerivedField(t *testing.T) {
	ctx := context.Background()

	fabric, err := New(KindFabric, "f")
	require.NoError(t, err)

	_, err = fabric.Get(ctx, "area_weight")
	var notAvailable *NotAvailableError
	require.ErrorAs(t, err, &notAvailable)
	assert.Equal(t, "area_weight", notAvailable.Field)

	assert.ErrorIs(t, fabric.Set(ctx, "area_weight", 1.0), ErrReadOnlyField)
}

func TestUnstoredLinkFields(t *testing.T) {
	ctx := context.Background()

	material, err := New(KindMaterial, "Steel")
	require.NoError(t, err)
	fabric, err := New(KindFabric, "f")
	require.NoError(t, err)

	// Links between unstored objects are unrestricted.
	require.NoError(t, fabric.SetLinked(ctx, "material", material))
	target, err := fabric.GetLinked(ctx, "material")
	require.NoError(t, err)
	assert.Same(t, material, target)

	require.NoError(t, fabric.SetLinked(ctx, "material", nil))
	target, err = fabric.GetLinked(ctx, "material")
	require.NoError(t, err)
	assert.Nil(t, target)
}

func TestUnstoredLinkList(t *testing.T) {
	ctx := context.Background()

	es1, err := New(KindElementSet, "es1")
	require.NoError(t, err)
	es2, err := New(KindElementSet, "es2")
	require.NoError(t, err)
	oss, err := New(KindOrientedSelectionSet, "oss")
	require.NoError(t, err)

	list, err := oss.LinkedList("element_sets")
	require.NoError(t, err)

	require.NoError(t, list.Append(ctx, es1))
	require.NoError(t, list.Append(ctx, es2))

	values, err := list.Values(ctx)
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Same(t, es1, values[0])
	assert.Same(t, es2, values[1])

	require.NoError(t, list.RemoveAt(ctx, 0))
	values, err = list.Values(ctx)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Same(t, es2, values[0])

	assert.Error(t, list.RemoveAt(ctx, 5))

	_, err = oss.LinkedList("orientation_point")
	assert.Error(t, err)
}

func TestCloneIsIndependent(t *testing.T) {
	ctx := context.Background()

	material, err := New(KindMaterial, "Steel")
	require.NoError(t, err)
	fabric, err := New(KindFabric, "Carbon UD")
	require.NoError(t, err)
	require.NoError(t, fabric.Set(ctx, "thickness", 0.25))
	require.NoError(t, fabric.SetLinked(ctx, "material", material))

	clone := fabric.Clone()
	assert.False(t, clone.IsStored())
	assert.Equal(t, "Carbon UD", clone.Name())

	// Scalars are copied, link targets are shared.
	value, err := clone.Get(ctx, "thickness")
	require.NoError(t, err)
	assert.Equal(t, 0.25, value)
	target, err := clone.GetLinked(ctx, "material")
	require.NoError(t, err)
	assert.Same(t, material, target)

	// Mutating the clone leaves the source untouched.
	require.NoError(t, clone.Set(ctx, "thickness", 0.5))
	require.NoError(t, clone.SetLinked(ctx, "material", nil))

	value, err = fabric.Get(ctx, "thickness")
	require.NoError(t, err)
	assert.Equal(t, 0.25, value)
	target, err = fabric.GetLinked(ctx, "material")
	require.NoError(t, err)
	assert.Same(t, material, target)
}

func TestStoreRequiresStoredParent(t *testing.T) {
	ctx := context.Background()

	material, err := New(KindMaterial, "Steel")
	require.NoError(t, err)

	assert.ErrorIs(t, material.Store(ctx, nil), ErrNotStored)

	parent, err := New(KindModelingGroup, "g")
	require.NoError(t, err)
	assert.ErrorIs(t, material.Store(ctx, parent), ErrNotStored)
}

func TestRefreshRequiresStoredObject(t *testing.T) {
	material, err := New(KindMaterial, "Steel")
	require.NoError(t, err)
	assert.ErrorIs(t, material.Refresh(context.Background()), ErrNotStored)
	assert.ErrorIs(t, material.Delete(context.Background()), ErrNotStored)
}

func TestLinkEdgesFollowSchemaOrder(t *testing.T) {
	ctx := context.Background()

	fabric, err := New(KindFabric, "f")
	require.NoError(t, err)
	oss1, err := New(KindOrientedSelectionSet, "oss1")
	require.NoError(t, err)
	oss2, err := New(KindOrientedSelectionSet, "oss2")
	require.NoError(t, err)

	ply, err := New(KindModelingPly, "ply")
	require.NoError(t, err)
	require.NoError(t, ply.Set(ctx, "oriented_selection_sets", []*Object{oss1, oss2}))
	require.NoError(t, ply.SetLinked(ctx, "ply_material", fabric))

	edges := linkEdges(ply.schema, ply.rec)
	require.Len(t, edges, 3)
	assert.Equal(t, "ply_material", edges[0].field)
	assert.Same(t, fabric, edges[0].target)
	assert.Equal(t, "oriented_selection_sets", edges[1].field)
	assert.Same(t, oss1, edges[1].target)
	assert.Same(t, oss2, edges[2].target)
	assert.True(t, edges[1].list)
}

func TestLinkedObjectHandlingString(t *testing.T) {
	assert.Equal(t, "keep", LinkedObjectsKeep.String())
	assert.Equal(t, "discard", LinkedObjectsDiscard.String())
	assert.Equal(t, "copy", LinkedObjectsCopy.String())
	assert.Equal(t, "LinkedObjectHandling(7)", LinkedObjectHandling(7).String())
}

func TestRecursiveCopyRejectsBadInput(t *testing.T) {
	ctx := context.Background()

	_, err := RecursiveCopy(ctx, CopyOptions{})
	assert.ErrorIs(t, err, ErrNoSourceObjects)

	unstored, err := New(KindMaterial, "Steel")
	require.NoError(t, err)
	_, err = RecursiveCopy(ctx, CopyOptions{SourceObjects: []*Object{unstored}})
	assert.ErrorIs(t, err, ErrNotStored)

	_, err = RecursiveCopy(ctx, CopyOptions{SourceObjects: []*Object{nil}})
	require.Error(t, err)
}

func TestErrorMessages(t *testing.T) {
	invalidParent := &InvalidParentError{Kind: KindFabric, ParentKind: KindMaterial}
	assert.Contains(t, invalidParent.Error(), "fabric")
	assert.Contains(t, invalidParent.Error(), "material")

	notAvailable := &NotAvailableError{Field: "area_weight"}
	assert.Contains(t, notAvailable.Error(), "area_weight")

	crossModel := &CrossModelLinkError{
		Source: "models/m1/fabrics/f",
		Target: "models/m2/materials/m",
	}
	assert.Contains(t, crossModel.Error(), "models/m1/fabrics/f")

	remote := &RemoteError{Method: "create", Err: errors.New("boom")}
	assert.Contains(t, remote.Error(), "create")
	assert.ErrorContains(t, remote, "boom")
}
