// Package domain defines the contracts shared by the composition and
// interception packages.
//
// This package contains pure domain logic with ZERO external dependencies outside the
// Go standard library. Objects are described by two kinds of property:
//
// - Fields: named, non-callable state owned by a single object
// - Methods: named callables that always receive their object explicitly
//
// Other packages (compose, intercept, observable, policy, etc.) implement or
// consume the interfaces defined here. The dependency direction is always:
//
//	Infrastructure → Domain (CORRECT)
//	Domain → Infrastructure (FORBIDDEN)
package domain
