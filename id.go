package bytebank

import "github.com/xraph/bytebank/id"

// ID is the primary identifier type for all ByteBank entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
