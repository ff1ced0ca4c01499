// Package plycad is a client for the PlyCAD composites modeling server.
//
// The server owns tree-structured models (materials, fabrics, modeling
// groups, plies, ...). This package mirrors one or more of those models with
// local proxy objects: an object is either an unstored local draft, or stored
// and backed by a live remote resource, in which case field reads and writes
// go over the RPC channel transparently.
//
// A typical session connects, opens a model, and works with its collections:
//
//	client, err := plycad.Connect(ctx, "ws://localhost:52345")
//	if err != nil { ... }
//	defer client.Close(ctx)
//
//	model, err := client.OpenModel(ctx, "wing.acph5")
//	if err != nil { ... }
//
//	steel, err := model.Materials().Create(ctx, "Steel", plycad.Fields{"density": 7850.0})
//	if err != nil { ... }
//
// RecursiveCopy duplicates whole subgraphs, within one model or across two:
//
//	result, err := plycad.RecursiveCopy(ctx, plycad.CopyOptions{
//		SourceObjects: groups,
//		ParentMapping: map[*plycad.Object]*plycad.Object{src.Root(): dst.Root()},
//		LinkedObjects: plycad.LinkedObjectsCopy,
//	})
package plycad
