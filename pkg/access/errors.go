package access

import "errors"

var (
	// ErrUnknownPolicy is returned when a policy name matches neither a
	// canonical name nor a legacy alias.
	ErrUnknownPolicy = errors.New("unknown access policy")

	// ErrNotReadable is returned when reading a register or field whose
	// permission does not include read access.
	ErrNotReadable = errors.New("register not readable")

	// ErrNotWritable is returned when writing a register or field whose
	// permission does not include write access.
	ErrNotWritable = errors.New("register not writable")

	// ErrValueRange is returned when a value does not fit the target
	// register width or field mask.
	ErrValueRange = errors.New("value out of range")

	// ErrNotAttached is returned when an engine operation runs before
	// Attach or on a register outside the attached map.
	ErrNotAttached = errors.New("register not attached")

	// ErrAlreadyAttached is returned when Attach is called twice.
	ErrAlreadyAttached = errors.New("engine already attached")
)
