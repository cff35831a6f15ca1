// Package principal resolves the actors that can hold record locks.
//
// The lock manager never compares raw input: every principal passes through an IResolver
// first, and ownership is decided on the resolved id. Two implementations exist:
//
//   - AnyResolver accepts any non-empty id.
//   - Registry only accepts registered ids. It can be loaded from a YAML file:
//
//	principals:
//	  - id: alice
//	    name: Alice Example
//	  - id: bob
//	    name: Bob Example
package principal
