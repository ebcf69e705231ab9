// Package intercept rewrites an object's method table so that a hook observes
// every call before the original implementation runs.
//
// Wrap enumerates the target's own method table. For a compose.Instance that
// table is the full merged capability set of its type, copied when the
// instance was constructed; neither the type nor other instances are changed.
// Fields are never touched.
package intercept
