// Package core defines the shared language of the gridview system.
//
// This package contains:
//   - Column identity types (ModelIndex, VisualIndex, ColumnRef)
//   - Collaborator contracts (RemoteTable, ViewportHandle, RowAccessor)
//   - Delta events pushed by a remote table
//   - Persisted viewport state and the StateStore contract
//   - Configuration types (TargetConfig, AdapterConfig)
//
// The Golden Rule: pkg/core imports ONLY pkg/rangeset and stdlib.
// All other packages depend on core, not the reverse.
package core
