package common

import (
	"github.com/google/uuid"
)

// NewRunID generates a unique batch run ID with the "run_" prefix
// Format: run_<uuid>
func NewRunID() string {
	return "run_" + uuid.New().String()
}
