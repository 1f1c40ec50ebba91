package bytebank

import "github.com/xraph/bytebank/types"

// Re-export common types for convenience so users don't have to import types package.

// Entity is re-exported from types package.
type Entity = types.Entity

// Megabytes is re-exported from types package.
type Megabytes = types.Megabytes

// Re-export constructors
var (
	MB        = types.MB
	NewEntity = types.NewEntity
)
