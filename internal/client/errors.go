package client

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection covers open, ping and close failures
	ErrConnection = errors.New("connection error")

	// ErrQuery covers exec and query failures
	ErrQuery = errors.New("query error")

	// ErrClosed is returned by every operation on a closed client
	ErrClosed = fmt.Errorf("%w: client is closed", ErrConnection)

	// ErrEmptyStatement is returned for a blank statement
	ErrEmptyStatement = fmt.Errorf("%w: statement is empty", ErrQuery)
)
