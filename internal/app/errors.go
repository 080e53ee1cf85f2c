package app

import "errors"

var (
	ErrTitleRequired      = errors.New("title is required")
	ErrContentRequired    = errors.New("content is required")
	ErrMessageRequired    = errors.New("message is required")
	ErrAIConfigMissing    = errors.New("ai settings are not configured")
	ErrAIConfigIncomplete = errors.New("api url and model are required")
	ErrUnsupportedVoice   = errors.New("unsupported voice")
)
