package plycad

import (
	"context"

	"github.com/plycad/plycad.go/pkg/tree"
)

// Re-exports of the tree object model, so that typical callers only import
// the root package.

type (
	Model                = tree.Model
	Object               = tree.Object
	Mapping              = tree.Mapping
	EdgePropertyList     = tree.EdgePropertyList
	Fields               = tree.Fields
	Kind                 = tree.Kind
	ResourcePath         = tree.ResourcePath
	CopyOptions          = tree.CopyOptions
	CopyResult           = tree.CopyResult
	CopyPair             = tree.CopyPair
	LinkedObjectHandling = tree.LinkedObjectHandling

	InvalidParentError  = tree.InvalidParentError
	NotAvailableError   = tree.NotAvailableError
	CrossModelLinkError = tree.CrossModelLinkError
	ConsistencyError    = tree.ConsistencyError
	RemoteError         = tree.RemoteError
)

const (
	LinkedObjectsKeep    = tree.LinkedObjectsKeep
	LinkedObjectsDiscard = tree.LinkedObjectsDiscard
	LinkedObjectsCopy    = tree.LinkedObjectsCopy
)

const (
	KindMaterial             = tree.KindMaterial
	KindFabric               = tree.KindFabric
	KindElementSet           = tree.KindElementSet
	KindEdgeSet              = tree.KindEdgeSet
	KindRosette              = tree.KindRosette
	KindOrientedSelectionSet = tree.KindOrientedSelectionSet
	KindModelingGroup        = tree.KindModelingGroup
	KindModelingPly          = tree.KindModelingPly
	KindProductionPly        = tree.KindProductionPly
	KindAnalysisPly          = tree.KindAnalysisPly
)

var (
	ErrAlreadyStored      = tree.ErrAlreadyStored
	ErrNotStored          = tree.ErrNotStored
	ErrUnknownField       = tree.ErrUnknownField
	ErrReadOnlyField      = tree.ErrReadOnlyField
	ErrDerivedKind        = tree.ErrDerivedKind
	ErrUnstoredLinkTarget = tree.ErrUnstoredLinkTarget
	ErrParentNotMapped    = tree.ErrParentNotMapped
	ErrNameNotFound       = tree.ErrNameNotFound
	ErrNoSourceObjects    = tree.ErrNoSourceObjects
)

// NewObject constructs an unstored object of the given kind.
func NewObject(kind Kind, name string) (*Object, error) {
	return tree.New(kind, name)
}

// RecursiveCopy copies a subgraph of stored objects according to opts. See
// tree.RecursiveCopy.
func RecursiveCopy(ctx context.Context, opts CopyOptions) (*CopyResult, error) {
	return tree.RecursiveCopy(ctx, opts)
}
