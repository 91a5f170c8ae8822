package apperrors

import "errors"

// Standardized gateway and session errors
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrRejected           = errors.New("request rejected by order service")
	ErrGatewayUnavailable = errors.New("order service unavailable")
	ErrNotFound           = errors.New("not found")
	ErrInvalidItemID      = errors.New("invalid item id")
	ErrInvalidResponse    = errors.New("invalid response from order service")
	ErrStoreClosed        = errors.New("session store closed")
	ErrDispatcherFull     = errors.New("dispatcher full")
	ErrDispatcherStopped  = errors.New("dispatcher stopped")
)
