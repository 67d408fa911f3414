// Package ir provides the canonical data model shared by every tagbridge package.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the model the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Type, Value and Tag are sealed interfaces; only the variants declared
//     here implement them
//   - FunctionSignature is immutable after construction; accessors return copies
//   - Generic ids inside a signature are dense (0..n-1) and index Generics()
//   - All JSON produced for hashing goes through MarshalCanonical
package ir
