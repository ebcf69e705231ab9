// Package compose builds object types out of a base method set and an ordered
// list of capability bundles, and constructs instances of those types.
//
// Composition happens eagerly: every Mixin call merges bundle methods into the
// type's own method table, later bundles overwriting earlier ones on a name
// collision. Instances take a snapshot of that table when they are
// constructed, so changing a type afterwards never reaches existing
// instances and rewriting an instance's table never reaches its type.
package compose
