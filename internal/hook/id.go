package hook

import (
	"fmt"

	"github.com/google/uuid"
)

type timeOrderedIDs struct{}

// NewUUIDProvider issues UUIDv7 ids, so records created offline sort by creation time.
func NewUUIDProvider() IDProvider {
	return timeOrderedIDs{}
}

func (timeOrderedIDs) NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("hook: generate record id: %w", err)
	}
	return value.String(), nil
}
