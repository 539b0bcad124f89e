package stylist

import "errors"

var (
	ErrProviderUnavailable = errors.New("outfit provider unavailable")
	ErrGenerationTimeout   = errors.New("outfit generation timeout")
	ErrInvalidResponse     = errors.New("outfit provider returned invalid response")
)
