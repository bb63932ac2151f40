// Package storage defines the ModelCall audit store and helpers shared by
// its implementations (memory, postgres): sentinel errors, list options
// and tenant context helpers.
package storage
