// Package concurrency
// Author: momentics <momentics@gmail.com>
//
// Cross-thread handoff primitives shared by the reactor and its callers.
package concurrency
