//go:build cgo

package catalog

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Registers the sqlite-vec extension for every new mattn/go-sqlite3
	// connection. Safe to call once per process.
	vec.Auto()
}
