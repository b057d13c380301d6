package operation

import "errors"

// Registration errors: fatal misuse of RegisterHandler.
var (
	ErrHandlerAlreadyRegistered = errors.New("handler already registered for this operation")
)
