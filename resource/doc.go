// Package resource provides the host handle table.
//
// Handles are opaque integers given to the sandboxed component in place of
// host-owned values: GPU adapters, devices and buffers, frame buffers,
// graphics contexts and surfaces. The component never creates or destroys a
// resource directly; capability functions insert into and remove from the
// table on its behalf.
//
//	table := resource.NewTable()
//	h := table.Insert(resource.KindSurface, surface)
//
//	// Kind-checked retrieval with a Go type assertion
//	s, ok := resource.Lookup[*graphics.Surface](table, h, resource.KindSurface)
//
//	value, ok := table.Remove(h)
//
// Handle 0 is never issued, so guests can use it as "no resource". Freed
// handles are reused.
//
// Values implementing Dropper are released when removed, when the table is
// cleared and when it is closed at the end of a session. An Observer passed
// with WithObserver sees every insert and drop, which the CLI turns into a
// live-resource gauge.
package resource
