package orders

import "errors"

var (
	ErrValidation        = errors.New("validation")         // 400
	ErrReference         = errors.New("unknown reference")  // 409
	ErrNotFound          = errors.New("not found")          // 404
	ErrForbidden         = errors.New("forbidden")          // 403
	ErrInvalidTransition = errors.New("invalid transition") // 409
	ErrPersistence       = errors.New("persistence")        // 500
)
