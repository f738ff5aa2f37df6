package schema

import (
	"errors"
	"fmt"
)

// RegistrationError reports malformed record metadata, detected while a
// registry is being built. It is never deferred to query time.
type RegistrationError struct {
	Model   string
	Field   string
	Message string
}

func (e *RegistrationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("register %s.%s: %s", e.Model, e.Field, e.Message)
	}
	return fmt.Sprintf("register %s: %s", e.Model, e.Message)
}

// LookupError is the panic value raised by Registry.Lookup for a field the
// registry does not know.
type LookupError struct {
	Model string
	Field FieldID
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("field %q is not registered on %s", e.Field, e.Model)
}

// IsRegistrationError reports whether err wraps a *RegistrationError.
func IsRegistrationError(err error) bool {
	var re *RegistrationError
	return errors.As(err, &re)
}
