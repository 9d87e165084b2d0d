// Package repository holds the persistence layer for users and access
// tokens.  The sentinel errors below let the service layer distinguish
// failure scenarios without knowing which store is in use.
package repository

import "errors"

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned by user stores when the unique email
// constraint rejects an insert.  The check is made by the store itself,
// never by a prior lookup.
var ErrEmailExists = errors.New("email already exists")
