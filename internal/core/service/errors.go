package service

import "errors"

var ErrMissingAddress = errors.New("shipping address is required")
