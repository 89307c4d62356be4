// Package blob is the entry point to blob storage for the rest of charsheet.
// It re-exports the core contract and selects a backend from configuration.
package blob

import "charsheet/internal/blob/core"

type (
	Driver           = core.Driver
	PutOptions       = core.PutOptions
	SignedURLOptions = core.SignedURLOptions
	Info             = core.Info
	Store            = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrUnsupported = core.ErrUnsupported
	ErrExists      = core.ErrExists
	ErrNotFound    = core.ErrNotFound
)
