// Package types defines the entity data model, the relationship catalog and
// storage interfaces, the Filler interface, configuration, and standard
// error types for graphfill.
//
// See DESIGN.md for how the packages under internal/ implement these
// interfaces.
package types
