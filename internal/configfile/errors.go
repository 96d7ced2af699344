package configfile

// ArgumentError reports bad input to the loader, such as a pattern that
// matches no files.
type ArgumentError struct {
	Message string
}

func (e *ArgumentError) Error() string { return e.Message }

// ParseError reports a configuration file that could not be parsed.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string { return "Failed to parse: " + e.File }

func (e *ParseError) Unwrap() error { return e.Err }
