package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrUnknownPreset    = errors.New("unknown preset")
	ErrPresetRequired   = errors.New("preset must be selected explicitly")
	ErrArgumentMismatch = errors.New("constructor argument mismatch")
	ErrDeployFailed     = errors.New("deployment failed")
	ErrLockHeld         = errors.New("lock already held")
)
