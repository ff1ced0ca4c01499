package plycad_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	plycad "github.com/plycad/plycad.go"
	"github.com/plycad/plycad.go/internal/fakeserver"
)

func startServer(t *testing.T) *fakeserver.Server {
	t.Helper()

	srv := fakeserver.NewServer("127.0.0.1:0")
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Stop() })
	return srv
}

func connect(t *testing.T, srv *fakeserver.Server) *plycad.Client {
	t.Helper()

	client, err := plycad.Connect(context.Background(), srv.URL())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close(context.Background()) })
	return client
}

// setup starts a fake server and returns a connected client plus one open
// model, the common fixture of most tests here.
func setup(t *testing.T) (*plycad.Client, *plycad.Model) {
	t.Helper()

	client := connect(t, startServer(t))
	model, err := client.OpenModel(context.Background(), "wing.acph5")
	require.NoError(t, err)
	return client, model
}

// buildLayup populates a model with the typical object chain used by the copy
// tests: a material, a fabric linked to it, and a modeling group.
type layup struct {
	material *plycad.Object
	fabric   *plycad.Object
	group    *plycad.Object
}

func buildLayup(t *testing.T, model *plycad.Model) layup {
	t.Helper()
	ctx := context.Background()

	material, err := model.Materials().Create(ctx, "Epoxy Carbon", plycad.Fields{
		"density": 1500.0,
	})
	require.NoError(t, err)

	fabric, err := model.Fabrics().Create(ctx, "Carbon UD", plycad.Fields{
		"material":  material,
		"thickness": 0.25,
	})
	require.NoError(t, err)

	group, err := model.ModelingGroups().Create(ctx, "Skin", nil)
	require.NoError(t, err)

	return layup{material: material, fabric: fabric, group: group}
}
