// Package examples contains runnable example programs demonstrating
// the fiber package functionality.
//
// # Examples
//
// The examples directory contains the following subdirectories:
//
//   - 01_basic_usage: Fibers resumed by hand, and a scheduler running them
//   - 02_affinity: Pinning work to a worker thread
//   - 03_shutdown: Stop, stuck pinned items, and closing suspended fibers
//
// # Running Examples
//
// Each example can be run from the examples directory:
//
//	cd fiber/examples
//	go run ./01_basic_usage/
//	go run ./02_affinity/
//	go run ./03_shutdown/
package examples
