// Package domain contains the core types and ports of the watermark session.
//
// Components depend on these interfaces, never on each other's concrete types.
// Snapshots are value objects: every component outside history receives them
// by value and must not mutate them.
package domain
