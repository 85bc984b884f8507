package probing

import (
	"github.com/sarchlab/instrument/registry"
)

// A Table is a probe namespace. It hands out shared probe instances by
// name: two acquisitions of the same name return the same probe, and the
// probe lives until every acquisition has been released.
type Table struct {
	probes *registry.Registry
}

// NewTable creates an empty probe table.
func NewTable() *Table {
	t := &Table{
		probes: registry.NewRegistry(),
	}

	return t
}

// AcquireProbe returns the probe registered under name, creating it if it
// does not exist yet. Each acquisition must be matched by a ReleaseProbe
// call.
func (t *Table) AcquireProbe(name string) *Probe {
	obj := t.probes.GetOrCreate(name, func(id string) any {
		return NewProbe(id)
	})

	return obj.(*Probe)
}

// ReleaseProbe drops one reference to the probe registered under name.
func (t *Table) ReleaseProbe(name string) {
	t.probes.Release(name)
}

// ProbeNames returns the names of all the live probes, sorted.
func (t *Table) ProbeNames() []string {
	return t.probes.IDs()
}

// PeekProbe returns the probe registered under name without taking a
// reference, or nil when the probe does not exist. Intended for
// inspection; callers that publish must acquire.
func (t *Table) PeekProbe(name string) *Probe {
	obj, ok := t.probes.Peek(name)
	if !ok {
		return nil
	}

	return obj.(*Probe)
}

// NumProbes returns the number of live probes in the table.
func (t *Table) NumProbes() int {
	return t.probes.NumEntries()
}

var defaultTable = NewTable()

// DefaultTable returns the process-wide probe table.
func DefaultTable() *Table {
	return defaultTable
}
