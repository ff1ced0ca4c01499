package tree

import (
	"context"
	"fmt"
)

// EdgePropertyList is the ordered view over a link-list field, such as the
// oriented selection sets referenced by a modeling ply. For unstored owners
// it operates on the in-memory record; for stored owners every mutation is a
// field write against the server.
type EdgePropertyList struct {
	owner *Object
	spec  *FieldSpec
}

func (l *EdgePropertyList) Field() string { return l.spec.Name }

// Values returns the current link targets in order.
func (l *EdgePropertyList) Values(ctx context.Context) ([]*Object, error) {
	value, err := l.owner.Get(ctx, l.spec.Name)
	if err != nil {
		return nil, err
	}
	targets, _ := value.([]*Object)
	return targets, nil
}

// Set replaces the whole list.
func (l *EdgePropertyList) Set(ctx context.Context, targets []*Object) error {
	return l.owner.Set(ctx, l.spec.Name, targets)
}

// Append adds a target at the end of the list.
func (l *EdgePropertyList) Append(ctx context.Context, target *Object) error {
	targets, err := l.Values(ctx)
	if err != nil {
		return err
	}
	return l.Set(ctx, append(targets, target))
}

// RemoveAt removes the entry at index i.
func (l *EdgePropertyList) RemoveAt(ctx context.Context, i int) error {
	targets, err := l.Values(ctx)
	if err != nil {
		return err
	}
	if i < 0 || i >= len(targets) {
		return fmt.Errorf("index %d out of range for %q (len %d)", i, l.spec.Name, len(targets))
	}
	return l.Set(ctx, append(targets[:i:i], targets[i+1:]...))
}

// Len returns the number of entries.
func (l *EdgePropertyList) Len(ctx context.Context) (int, error) {
	targets, err := l.Values(ctx)
	if err != nil {
		return 0, err
	}
	return len(targets), nil
}
