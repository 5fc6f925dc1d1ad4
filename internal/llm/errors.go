package llm

import "errors"

var (
	ErrMalformedReply = errors.New("llm reply is not a JSON object")
	ErrSchemaMismatch = errors.New("llm reply does not match candidate schema")
	ErrMissingAPIKey  = errors.New("llm api key is required")
)
