// Package transfer implements the drag-transfer micro-protocol: a full item
// record serialized to JSON under a fixed custom key, written at drag start
// and read back at drop. The format is session-internal and unversioned; no
// backward compatibility is promised.
package transfer

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/discoverlab/insight-map/internal/models"
)

// ItemKey is the fixed data-channel key for serialized items
const ItemKey = "application/insight-item"

// ErrMalformedPayload is returned when a drop payload cannot be decoded.
// Drop handlers treat this as a defensive no-op, not a user-visible error.
var ErrMalformedPayload = errors.New("transfer: malformed item payload")

// EncodeItem serializes an item for the drag data channel
func EncodeItem(item *models.Item) (string, error) {
	if item == nil {
		return "", ErrMalformedPayload
	}
	data, err := json.Marshal(item)
	if err != nil {
		return "", fmt.Errorf("transfer: encode item: %w", err)
	}
	return string(data), nil
}

// DecodeItem deserializes a drop payload back into an item record. The
// result is value-equal to the encoded original.
func DecodeItem(payload string) (*models.Item, error) {
	if payload == "" {
		return nil, ErrMalformedPayload
	}
	var item models.Item
	if err := json.Unmarshal([]byte(payload), &item); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if item.ID == "" {
		return nil, ErrMalformedPayload
	}
	return &item, nil
}
