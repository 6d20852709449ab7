// Package sqlite persists design-region runs in a SQLite ledger.
//
// A run records the region geometry once; every applied design adds an
// update row holding the permittivity volume, and captured engine reads add
// snapshot rows. Array payloads are gob-encoded and gzip-compressed. The
// schema is managed by golang-migrate from migrations embedded in the binary.
package sqlite
