package pipeline

import (
	"errors"
	"fmt"
)

// SchemaError reports that model output failed structural validation. It is
// retryable up to the guard's cap and always preserves the raw output that
// failed, so an exhausted item can be audited without re-invoking the model.
type SchemaError struct {
	Reason    string
	RawOutput string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema validation failed: %s", e.Reason)
}

// IsSchemaError reports whether the error chain contains a SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}
