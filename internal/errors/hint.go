package errors

// HintedError attaches a human remediation hint to an error.
type HintedError struct {
	Err  error
	hint string
}

// WithHint wraps err with a remediation hint. If err is nil, nil is returned.
func WithHint(err error, hint string) error {
	if err == nil {
		return nil
	}

	return &HintedError{Err: err, hint: hint}
}

func (err *HintedError) Error() string {
	return err.Err.Error()
}

func (err *HintedError) Unwrap() error {
	return err.Err
}

// Hint implements the hinter interface.
func (err *HintedError) Hint() string {
	return err.hint
}

// Hint returns the first remediation hint found in the error tree, or an empty string.
func Hint(err error) string {
	for _, err := range UnwrapErrors(err) {
		if hinter, ok := err.(interface{ Hint() string }); ok {
			if hint := hinter.Hint(); hint != "" {
				return hint
			}
		}
	}

	return ""
}
