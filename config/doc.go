// Package config is an observable, typed configuration store.
//
// Values are registered by name with Lookup, which returns a *Var[T] holding
// a default. Documents loaded into a Store (YAML, or an already-decoded map
// such as the one produced by viper) update every registered variable whose
// dotted name matches a path in the document. Listeners attached to a Var are
// notified on every change of value.
//
// Names are restricted to lowercase ASCII letters, digits, '.' and '_'. A
// nested document key path maps to the name formed by joining its (lowercased)
// segments with '.', so the document
//
//	fiber:
//	  stack_size: 65536
//
// updates the variable named "fiber.stack_size".
package config
