package field

import (
	"errors"
	"strings"
)

// ErrInvalidKey is returned for a key with an empty entry or field id, or one
// containing the slot separator.
var ErrInvalidKey = errors.New("entry id and field id are required and must not contain '/'")

// Key addresses one field-value slot.
type Key struct {
	EntryID string
	FieldID string
}

// NewKey builds a validated key.
func NewKey(entryID, fieldID string) (Key, error) {
	k := Key{EntryID: strings.TrimSpace(entryID), FieldID: strings.TrimSpace(fieldID)}
	if k.EntryID == "" || k.FieldID == "" ||
		strings.Contains(k.EntryID, "/") || strings.Contains(k.FieldID, "/") {
		return Key{}, ErrInvalidKey
	}
	return k, nil
}

// String returns the store slot name. NewKey keeps '/' out of both parts, so
// distinct keys never share a slot.
func (k Key) String() string {
	return "field:" + k.EntryID + "/" + k.FieldID
}
