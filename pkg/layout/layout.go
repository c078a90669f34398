/*
Package layout describes the fixed-width data blob kept in an application
account.

The blob is written as the payload right-padded with spaces to exactly
Capacity bytes. When read back, account data starts with a HeaderSize-byte
header kept by the on-chain program in front of the blob, so the payload can
never be longer than Capacity - HeaderSize bytes.
*/
package layout

import (
	"errors"
	"fmt"
	"strings"
)

// HeaderSize is the number of bytes preceding the blob in account data. The
// value matches the store program's account layout and is checked by the
// round-trip tests of the store package.
const HeaderSize = 4

// DefaultCapacity is the blob capacity used when nothing else is configured.
const DefaultCapacity = 1000

const (
	// maxTxSize is the network packet limit for a serialized transaction.
	maxTxSize = 1232
	// writeTxOverhead is the size of a write transaction without the blob:
	// one signature (65), message header (3), three account keys (97),
	// blockhash (32), instruction count (1), program index (1), instruction
	// accounts (2) and blob length prefix (2).
	writeTxOverhead = 203
)

// MaxCapacity is the largest blob that can be written with a single
// transaction.
const MaxCapacity = maxTxSize - writeTxOverhead

// padByte is used to fill the blob up to its capacity.
const padByte = ' '

var (
	// ErrPayloadTooLarge is returned when the payload doesn't fit into the blob.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrInvalidCapacity is returned for blob capacities that can't hold any
	// payload.
	ErrInvalidCapacity = errors.New("invalid blob capacity")
	// ErrShortData is returned when account data doesn't even contain a header.
	ErrShortData = errors.New("account data is shorter than the header")
)

// Blob is a fixed-capacity blob schema.
type Blob struct {
	capacity int
}

// New creates a Blob of the given capacity. Capacity must be larger than
// HeaderSize and not exceed MaxCapacity.
func New(capacity int) (Blob, error) {
	if capacity <= HeaderSize {
		return Blob{}, fmt.Errorf("%w: %d (must be greater than %d)", ErrInvalidCapacity, capacity, HeaderSize)
	}
	if capacity > MaxCapacity {
		return Blob{}, fmt.Errorf("%w: %d (at most %d fits into a write transaction)", ErrInvalidCapacity, capacity, MaxCapacity)
	}
	return Blob{capacity: capacity}, nil
}

// MustNew is like New, but panics on error.
func MustNew(capacity int) Blob {
	b, err := New(capacity)
	if err != nil {
		panic(err)
	}
	return b
}

// Capacity returns the blob width in bytes, it's also the size of the
// account allocated for it.
func (b Blob) Capacity() int {
	return b.capacity
}

// MaxPayload returns the maximum payload length accepted by Pad.
func (b Blob) MaxPayload() int {
	return b.capacity - HeaderSize
}

// Pad returns text right-padded with spaces to exactly Capacity bytes.
func (b Blob) Pad(text string) ([]byte, error) {
	if len(text) > b.MaxPayload() {
		return nil, fmt.Errorf("%w: %d bytes, at most %d allowed", ErrPayloadTooLarge, len(text), b.MaxPayload())
	}
	res := make([]byte, b.capacity)
	n := copy(res, text)
	for i := n; i < len(res); i++ {
		res[i] = padByte
	}
	return res, nil
}

// Unpad extracts text from raw account data: it skips the header, takes at
// most Capacity bytes and trims trailing whitespace.
func (b Blob) Unpad(raw []byte) (string, error) {
	if len(raw) < HeaderSize {
		return "", fmt.Errorf("%w: %d bytes", ErrShortData, len(raw))
	}
	data := raw[HeaderSize:]
	if len(data) > b.capacity {
		data = data[:b.capacity]
	}
	return strings.TrimRight(string(data), " \t\r\n\x00"), nil
}
