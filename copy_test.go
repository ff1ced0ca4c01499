package plycad_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	plycad "github.com/plycad/plycad.go"
	"github.com/plycad/plycad.go/internal/fakeserver"
	"github.com/plycad/plycad.go/pkg/connection"
)

func TestCopyKeepWithinModel(t *testing.T) {
	_, model := setup(t)
	l := buildLayup(t, model)
	ctx := context.Background()

	result, err := plycad.RecursiveCopy(ctx, plycad.CopyOptions{
		SourceObjects: []*plycad.Object{l.fabric},
		ParentMapping: map[*plycad.Object]*plycad.Object{model.Root(): model.Root()},
		LinkedObjects: plycad.LinkedObjectsKeep,
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Len())

	copied, ok := result.Copied(l.fabric)
	require.True(t, ok)
	assert.Same(t, result.Pairs()[0].Copy, copied)
	assert.Same(t, l.fabric, result.Pairs()[0].Original)

	// The copy got a fresh identity and a collision-suffixed name.
	assert.Equal(t, "Carbon UD.2", copied.Name())
	assert.NotEqual(t, l.fabric.Path(), copied.Path())

	thickness, err := copied.Get(ctx, "thickness")
	require.NoError(t, err)
	assert.EqualValues(t, 0.25, thickness)

	// Keep: the copy references the original material.
	target, err := copied.GetLinked(ctx, "material")
	require.NoError(t, err)
	assert.Same(t, l.material, target)
}

func TestCopySharedTargetCopiedOnce(t *testing.T) {
	_, model := setup(t)
	l := buildLayup(t, model)
	ctx := context.Background()

	glass, err := model.Fabrics().Create(ctx, "Glass UD", plycad.Fields{
		"material":  l.material,
		"thickness": 0.1,
	})
	require.NoError(t, err)

	result, err := plycad.RecursiveCopy(ctx, plycad.CopyOptions{
		SourceObjects: []*plycad.Object{l.fabric, glass},
		ParentMapping: map[*plycad.Object]*plycad.Object{model.Root(): model.Root()},
		LinkedObjects: plycad.LinkedObjectsCopy,
	})
	require.NoError(t, err)
	// Two fabrics plus the shared material, copied exactly once.
	require.Equal(t, 3, result.Len())

	materialCopy, ok := result.Copied(l.material)
	require.True(t, ok)
	assert.Equal(t, "Epoxy Carbon.2", materialCopy.Name())

	for _, original := range []*plycad.Object{l.fabric, glass} {
		fabricCopy, ok := result.Copied(original)
		require.True(t, ok)
		target, err := fabricCopy.GetLinked(ctx, "material")
		require.NoError(t, err)
		assert.Same(t, materialCopy, target)
	}
}

func TestCopyDiscardClearsLinks(t *testing.T) {
	_, model := setup(t)
	l := buildLayup(t, model)
	ctx := context.Background()

	result, err := plycad.RecursiveCopy(ctx, plycad.CopyOptions{
		SourceObjects: []*plycad.Object{l.fabric},
		ParentMapping: map[*plycad.Object]*plycad.Object{model.Root(): model.Root()},
		LinkedObjects: plycad.LinkedObjectsDiscard,
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Len())

	copied, _ := result.Copied(l.fabric)

	// The link is dropped even though the original had it set.
	target, err := copied.GetLinked(ctx, "material")
	require.NoError(t, err)
	assert.Nil(t, target)

	// Scalars survive.
	thickness, err := copied.Get(ctx, "thickness")
	require.NoError(t, err)
	assert.EqualValues(t, 0.25, thickness)
}

func TestCopyCrossModelKeepFails(t *testing.T) {
	client, model := setup(t)
	l := buildLayup(t, model)
	ctx := context.Background()

	other, err := client.OpenModel(ctx, "other.acph5")
	require.NoError(t, err)

	_, err = plycad.RecursiveCopy(ctx, plycad.CopyOptions{
		SourceObjects: []*plycad.Object{l.fabric},
		ParentMapping: map[*plycad.Object]*plycad.Object{model.Root(): other.Root()},
		LinkedObjects: plycad.LinkedObjectsKeep,
	})
	var crossModel *plycad.CrossModelLinkError
	require.ErrorAs(t, err, &crossModel)

	// Rejected before anything was created in the target model.
	for _, mapping := range []*plycad.Mapping{other.Fabrics(), other.Materials()} {
		names, err := mapping.Names(ctx)
		require.NoError(t, err)
		assert.Empty(t, names)
	}
}

func TestCopyCrossModelWithCopyPolicy(t *testing.T) {
	client, model := setup(t)
	l := buildLayup(t, model)
	ctx := context.Background()

	other, err := client.OpenModel(ctx, "other.acph5")
	require.NoError(t, err)

	result, err := plycad.RecursiveCopy(ctx, plycad.CopyOptions{
		SourceObjects: []*plycad.Object{l.fabric},
		ParentMapping: map[*plycad.Object]*plycad.Object{model.Root(): other.Root()},
		LinkedObjects: plycad.LinkedObjectsCopy,
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.Len())

	fabricCopy, _ := result.Copied(l.fabric)
	materialCopy, _ := result.Copied(l.material)

	// Both copies live in the target model, under their original names.
	assert.True(t, fabricCopy.Path().SameModel(other.Path()))
	assert.True(t, materialCopy.Path().SameModel(other.Path()))
	assert.Equal(t, "Carbon UD", fabricCopy.Name())
	assert.Equal(t, "Epoxy Carbon", materialCopy.Name())

	target, err := fabricCopy.GetLinked(ctx, "material")
	require.NoError(t, err)
	assert.Same(t, materialCopy, target)

	// The source model is untouched.
	names, err := model.Fabrics().Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Carbon UD"}, names)
}

func TestCopyPinnedSharedObject(t *testing.T) {
	_, model := setup(t)
	l := buildLayup(t, model)
	ctx := context.Background()

	result, err := plycad.RecursiveCopy(ctx, plycad.CopyOptions{
		SourceObjects: []*plycad.Object{l.fabric},
		ParentMapping: map[*plycad.Object]*plycad.Object{
			model.Root(): model.Root(),
			// Pinning the material keeps it shared instead of copied.
			l.material: l.material,
		},
		LinkedObjects: plycad.LinkedObjectsCopy,
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Len())

	_, ok := result.Copied(l.material)
	assert.False(t, ok)

	copied, _ := result.Copied(l.fabric)
	target, err := copied.GetLinked(ctx, "material")
	require.NoError(t, err)
	assert.Same(t, l.material, target)
}

func TestCopyChildCascade(t *testing.T) {
	_, model := setup(t)
	l := buildLayup(t, model)
	ctx := context.Background()

	plies, err := l.group.Children("modeling_plies")
	require.NoError(t, err)
	ply1, err := plies.Create(ctx, "Bottom", plycad.Fields{
		"ply_material": l.fabric,
		"ply_angle":    0.0,
	})
	require.NoError(t, err)
	ply2, err := plies.Create(ctx, "Top", plycad.Fields{
		"ply_material": l.fabric,
		"ply_angle":    90.0,
	})
	require.NoError(t, err)

	result, err := plycad.RecursiveCopy(ctx, plycad.CopyOptions{
		SourceObjects: []*plycad.Object{l.group},
		ParentMapping: map[*plycad.Object]*plycad.Object{model.Root(): model.Root()},
		LinkedObjects: plycad.LinkedObjectsCopy,
	})
	require.NoError(t, err)
	// Group, two plies, plus fabric and material pulled in via links.
	require.Equal(t, 5, result.Len())

	// Parents precede their children in the result.
	index := make(map[*plycad.Object]int)
	for i, pair := range result.Pairs() {
		index[pair.Original] = i
	}
	assert.Less(t, index[l.group], index[ply1])
	assert.Less(t, index[l.group], index[ply2])

	groupCopy, _ := result.Copied(l.group)
	copiedPlies, err := groupCopy.Children("modeling_plies")
	require.NoError(t, err)
	names, err := copiedPlies.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bottom", "Top"}, names)

	fabricCopy, _ := result.Copied(l.fabric)
	ply1Copy, _ := result.Copied(ply1)
	target, err := ply1Copy.GetLinked(ctx, "ply_material")
	require.NoError(t, err)
	assert.Same(t, fabricCopy, target)
}

func TestCopyParentNotMapped(t *testing.T) {
	_, model := setup(t)
	l := buildLayup(t, model)

	_, err := plycad.RecursiveCopy(context.Background(), plycad.CopyOptions{
		SourceObjects: []*plycad.Object{l.fabric},
		LinkedObjects: plycad.LinkedObjectsKeep,
	})
	assert.ErrorIs(t, err, plycad.ErrParentNotMapped)
}

func TestCopyInvalidParentInMapping(t *testing.T) {
	_, model := setup(t)
	l := buildLayup(t, model)
	ctx := context.Background()

	// Fabrics cannot live under a material.
	_, err := plycad.RecursiveCopy(ctx, plycad.CopyOptions{
		SourceObjects: []*plycad.Object{l.fabric},
		ParentMapping: map[*plycad.Object]*plycad.Object{model.Root(): l.material},
		LinkedObjects: plycad.LinkedObjectsKeep,
	})
	var invalidParent *plycad.InvalidParentError
	require.ErrorAs(t, err, &invalidParent)

	// Validation failed before any create.
	names, err := model.Fabrics().Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Carbon UD"}, names)
}

func TestCopyDerivedSourceRejected(t *testing.T) {
	_, model := setup(t)
	l := buildLayup(t, model)
	ctx := context.Background()

	plies, err := l.group.Children("modeling_plies")
	require.NoError(t, err)
	ply, err := plies.Create(ctx, "Ply.1", plycad.Fields{
		"ply_material":     l.fabric,
		"number_of_layers": 1,
	})
	require.NoError(t, err)
	require.NoError(t, model.Update(ctx))

	production, err := ply.Children("production_plies")
	require.NoError(t, err)
	generated, err := production.All(ctx)
	require.NoError(t, err)
	require.Len(t, generated, 1)

	_, err = plycad.RecursiveCopy(ctx, plycad.CopyOptions{
		SourceObjects: []*plycad.Object{generated[0]},
		ParentMapping: map[*plycad.Object]*plycad.Object{ply: ply},
		LinkedObjects: plycad.LinkedObjectsKeep,
	})
	assert.ErrorIs(t, err, plycad.ErrDerivedKind)
}

func TestCopySkipsDerivedChildren(t *testing.T) {
	_, model := setup(t)
	l := buildLayup(t, model)
	ctx := context.Background()

	plies, err := l.group.Children("modeling_plies")
	require.NoError(t, err)
	ply, err := plies.Create(ctx, "Ply.1", plycad.Fields{
		"ply_material":     l.fabric,
		"number_of_layers": 2,
	})
	require.NoError(t, err)
	require.NoError(t, model.Update(ctx))

	result, err := plycad.RecursiveCopy(ctx, plycad.CopyOptions{
		SourceObjects: []*plycad.Object{ply},
		ParentMapping: map[*plycad.Object]*plycad.Object{l.group: l.group},
		LinkedObjects: plycad.LinkedObjectsDiscard,
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Len())

	// Generated plies belong to the server; the copy starts without them.
	copied, _ := result.Copied(ply)
	production, err := copied.Children("production_plies")
	require.NoError(t, err)
	generated, err := production.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, generated)
}

func TestCopyMidPlanFailureIsBestEffort(t *testing.T) {
	srv := startServer(t)
	client := connect(t, srv)
	ctx := context.Background()

	model, err := client.OpenModel(ctx, "wing.acph5")
	require.NoError(t, err)
	group, err := model.ModelingGroups().Create(ctx, "Skin", nil)
	require.NoError(t, err)

	plies, err := group.Children("modeling_plies")
	require.NoError(t, err)
	_, err = plies.Create(ctx, "First", plycad.Fields{"ply_angle": 30.0})
	require.NoError(t, err)
	_, err = plies.Create(ctx, "Second", plycad.Fields{"ply_angle": 60.0})
	require.NoError(t, err)

	// Fail the copy of the second ply only.
	srv.AddStub(fakeserver.Stub{
		Method: connection.MethodCreate,
		Matcher: func(params []any) bool {
			return len(params) > 1 && params[1] == "Second"
		},
		Error: &connection.RPCError{Code: connection.CodeServerFault, Message: "disk full"},
	})

	_, err = plycad.RecursiveCopy(ctx, plycad.CopyOptions{
		SourceObjects: []*plycad.Object{group},
		ParentMapping: map[*plycad.Object]*plycad.Object{model.Root(): model.Root()},
		LinkedObjects: plycad.LinkedObjectsDiscard,
	})
	var remote *plycad.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.ErrorContains(t, remote, "disk full")

	// No rollback: the group copy and the first ply survive.
	groups, err := model.ModelingGroups().All(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "Skin.2", groups[1].Name())

	copiedPlies, err := groups[1].Children("modeling_plies")
	require.NoError(t, err)
	names, err := copiedPlies.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"First"}, names)
}
