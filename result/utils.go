package result

import (
	"encoding/base64"

	"github.com/google/uuid"
)

// newRunID returns a fresh UUID in compact base64 form, short enough to
// grep for in scan logs.
func newRunID() string {
	id := uuid.New()
	return base64.RawURLEncoding.EncodeToString(id[:])
}
