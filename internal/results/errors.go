package results

// ConnectionHint is shown to the user when the results database is unreachable.
const ConnectionHint = "Cannot connect to resultsdb database. Make sure you are on the internal network and try again."

// ConnectionError reports that the results database could not be reached or
// authenticated against.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string { return ConnectionHint }

func (e *ConnectionError) Unwrap() error { return e.Err }
