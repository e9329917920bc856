package models

import "errors"

// ErrInvalidRecord is wrapped by every Validate failure
var ErrInvalidRecord = errors.New("invalid record")
