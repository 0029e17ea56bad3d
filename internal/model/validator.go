package model

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// GetValidator returns the process-wide validator instance used for DTO
// struct tags. validator.Validate caches struct metadata, so sharing one
// instance is both safe and cheaper than constructing per call.
func GetValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
	})
	return validate
}
