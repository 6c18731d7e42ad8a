package models

const (
	ErrTypeEntityNotFound = "world_entity_not_found"
	ErrTypeInvalidBody    = "world_invalid_body"
)
