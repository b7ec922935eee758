package ncmunlock

import (
	"github.com/zetetos/ncm-unlock/internal/container"
	"github.com/zetetos/ncm-unlock/internal/keybox"
	"github.com/zetetos/ncm-unlock/internal/sink"
)

// Errors returned by Decode and DecodeFile, for use with errors.Is.
var (
	ErrInvalidHeader  = container.ErrInvalidHeader
	ErrOutOfBounds    = container.ErrOutOfBounds
	ErrKeyRecovery    = container.ErrKeyRecovery
	ErrEmptyKey       = keybox.ErrEmptyKey
	ErrMetadataDecode = container.ErrMetadataDecode
	ErrOutputWrite    = sink.ErrOutputWrite
)
