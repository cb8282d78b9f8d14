package cmderr

// Wrapper distinguishing capmaster-generated errors from CLI parsing
// errors. Used to determine whether to print the usage message on error.
type CapmasterErr struct {
	Err error
}

func (e CapmasterErr) Error() string {
	return e.Err.Error()
}

// github.com/pkg/errors causer interface
func (e CapmasterErr) Cause() error {
	return e.Err
}

// github.com/pkg/errors Unwrap interface
func (e CapmasterErr) Unwrap() error {
	return e.Err
}
