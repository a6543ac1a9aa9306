package fusion

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// AppID is the fixed 6-byte application tag written into bytes 0-5 of every
// UUID, matching the original's default uuid_app_id_t{'T','A','C','K',0}
// layout (renamed here since this module's tag need not match the source's).
var AppID = [6]byte{'L', 'I', 'D', 'A', 'R', 0}

// UUID is the 128-bit tracked-object identifier: bytes 0-5 the application
// tag, bytes 6-11 the creation timestamp in milliseconds (little-endian,
// truncated to 48 bits), bytes 12-15 the big-endian numeric id. It wraps
// uuid.UUID purely for its 16-byte storage and string parsing; the byte
// layout itself follows spec.md §3 and UUID.h, not RFC 4122.
type UUID struct {
	raw uuid.UUID
}

// NewUUID derives a UUID from a creation timestamp (ms since epoch) and a
// monotonic numeric id, per spec.md's UUID layout.
func NewUUID(timestampMs int64, numericID uint32) UUID {
	var u UUID
	u.update(uint64(timestampMs), numericID)
	return u
}

// DeriveUUID copies the tag and timestamp from other but substitutes a new
// numeric id, matching UUID::update(const UUID&, uint32_t).
func DeriveUUID(other UUID, numericID uint32) UUID {
	var u UUID
	copy(u.raw[:14], other.raw[:14])
	binary.BigEndian.PutUint32(u.raw[12:16], numericID)
	return u
}

func (u *UUID) update(timestampMs uint64, numericID uint32) {
	copy(u.raw[0:6], AppID[:])
	var tsBuf [8]byte
	binary.LittleEndian.PutUint64(tsBuf[:], timestampMs)
	copy(u.raw[6:12], tsBuf[:6])
	binary.BigEndian.PutUint32(u.raw[12:16], numericID)
}

// IsZero reports whether this is the zero-value UUID (never derived).
func (u UUID) IsZero() bool {
	return u.raw == uuid.UUID{}
}

// Equal reports byte-equality, per spec.md's "Equality is byte-equality."
func (u UUID) Equal(other UUID) bool {
	return u.raw == other.raw
}

// Bytes returns the 16 raw bytes.
func (u UUID) Bytes() [16]byte {
	return u.raw
}

// UUIDFromBytes builds a UUID from 16 raw bytes, e.g. as decoded off the
// wire by the packed codec.
func UUIDFromBytes(b [16]byte) UUID {
	return UUID{raw: b}
}

// String returns the canonical lowercase-hyphenated form, matching the
// original's UUID::str() (via uuid_unparse_lower).
func (u UUID) String() string {
	return u.raw.String()
}

// MarshalText implements encoding.TextMarshaler so tracked objects encode
// their uuid as the canonical string form in JSON.
func (u UUID) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *UUID) UnmarshalText(text []byte) error {
	parsed, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	u.raw = parsed
	return nil
}
