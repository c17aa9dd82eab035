/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package log

import "github.com/ssgreg/logf"

// Field hold data of a specific field.
type Field = logf.Field

// Field constructors.
var (
	// Error returns a Field with the "error" key.
	Error      = logf.Error
	NamedError = logf.NamedError
	String     = logf.String
	Strings    = logf.Strings
	Bytes      = logf.Bytes
	Int        = logf.Int
	Int64      = logf.Int64
	Float64    = logf.Float64
	Bool       = logf.Bool
	Duration   = logf.Duration
	Time       = logf.Time
	// Any picks the best representation for the value.
	Any = logf.Any
)
