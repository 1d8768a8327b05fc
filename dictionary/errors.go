package dictionary

import "errors"

var (
	ErrConfiguration = errors.New("configuration error")
	// ErrConstruction is the class of every error that makes New fail after configuration
	// was accepted: ErrUnsupportedMethod and ErrTypeMismatch raised while building attributes.
	ErrConstruction      = errors.New("construction error")
	ErrUnsupportedMethod = errors.New("unsupported method")
	ErrTypeMismatch      = errors.New("type mismatch")
	ErrNotFound          = errors.New("not found")
	ErrBadArguments      = errors.New("bad arguments")
	ErrSource            = errors.New("source error")
)

// Error is returned by every dictionary operation. It matches its Kind (and Class, when
// set) with errors.Is and unwraps to the underlying cause.
type Error struct {
	Dictionary string
	Kind       error
	Class      error
	Msg        string
	Err        error
}

func newError(dictionary string, kind, cause error, msg string) *Error {
	return &Error{Dictionary: dictionary, Kind: kind, Msg: msg, Err: cause}
}

func constructionError(dictionary string, kind error, msg string) *Error {
	return &Error{Dictionary: dictionary, Kind: kind, Class: ErrConstruction, Msg: msg}
}

func sourceError(dictionary string, cause error, msg string) *Error {
	var de *Error
	if errors.As(cause, &de) && errors.Is(de, ErrSource) {
		return de
	}
	return &Error{Dictionary: dictionary, Kind: ErrSource, Msg: msg, Err: cause}
}

func (e *Error) Error() string {
	s := e.Msg
	if e.Dictionary != "" {
		s = e.Dictionary + ": " + s
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Is(target error) bool {
	return target == e.Kind || (e.Class != nil && target == e.Class)
}

func (e *Error) Unwrap() error {
	return e.Err
}
