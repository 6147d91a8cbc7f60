package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrUnparsablePrice  = errors.New("unparsable price")
	ErrInsufficientData = errors.New("insufficient price data")
)
