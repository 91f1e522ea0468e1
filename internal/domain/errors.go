package domain

import "errors"

var (
	// ErrMissingOption is returned when a required site option is absent.
	ErrMissingOption = errors.New("missing option")
	// ErrInvalidRecord indicates a record without a usable dateTime or with non-numeric fields.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrMixedUnits is returned when archive rows covering a query mix unit systems.
	ErrMixedUnits = errors.New("mixed unit systems")
	// ErrResponseRejected means the server answered but its body lacked the success marker.
	ErrResponseRejected = errors.New("response rejected")
	// ErrBadLogin means the server refused the configured credentials.
	ErrBadLogin = errors.New("bad login")
	// ErrStale is reported for records older than the configured staleness threshold.
	ErrStale = errors.New("record is stale")
	// ErrTooSoon is reported for records that arrive before the post interval has passed.
	ErrTooSoon = errors.New("post interval has not passed")
)
