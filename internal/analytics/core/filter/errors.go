package filter

import "errors"

var (
	ErrForbiddenField  = errors.New("forbidden filter field")
	ErrUnknownOperator = errors.New("unknown filter operator")
	ErrTypeMismatch    = errors.New("filter value type mismatch")
	ErrTreeTooDeep     = errors.New("filter tree too deep")
	ErrMalformedFilter = errors.New("malformed filter")
)
