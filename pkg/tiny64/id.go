package tiny64

import (
	"errors"
	"fmt"
	"time"
)

// Bit layout of a Tiny64 value, most significant first:
// [42 bits timestamp_ms][12 bits sequence][10 bits random].
const (
	TimestampBits = 42
	SequenceBits  = 12
	RandomBits    = 10

	// MaxTimestamp is the largest representable millisecond timestamp
	// (roughly year 2109).
	MaxTimestamp = uint64(1)<<TimestampBits - 1
	// MaxSequence is the per-millisecond ID budget minus one.
	MaxSequence = uint16(1)<<SequenceBits - 1
	// MaxRandom is the largest value of the entropy field.
	MaxRandom = uint16(1)<<RandomBits - 1

	timestampShift = SequenceBits + RandomBits
	sequenceShift  = RandomBits

	// EncodedLen is the length of the text form. The 64-bit value is
	// zero-extended by two low bits to 66 bits, which is exactly 11
	// six-bit symbols with no padding characters.
	EncodedLen = 11
)

// alphabet is the URL-safe base64 symbol set ordered by ASCII value, so that
// byte-wise comparison of encoded strings matches numeric comparison of the
// underlying values.
const alphabet = "-0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz"

var (
	// ErrInvalidLength is returned by Parse for input that is not exactly
	// EncodedLen characters.
	ErrInvalidLength = errors.New("tiny64: encoded ID must be 11 characters")
	// ErrInvalidAlphabet is returned by Parse for characters outside the
	// encoding alphabet.
	ErrInvalidAlphabet = errors.New("tiny64: character outside encoding alphabet")
	// ErrInvalidPadding is returned by Parse when the two reserved low bits
	// of the final symbol are nonzero; such tokens were not produced by a
	// Tiny64 encoder.
	ErrInvalidPadding = errors.New("tiny64: nonzero padding bits in final symbol")
	// ErrTimestampRange is returned when a millisecond timestamp does not
	// fit in 42 bits. Values are rejected, never truncated.
	ErrTimestampRange = errors.New("tiny64: timestamp exceeds 42 bits")
)

var decodeMap = func() (m [256]int8) {
	for i := range m {
		m[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		m[alphabet[i]] = int8(i)
	}
	return m
}()

// ID is a 64-bit, lexically time-sortable identifier.
type ID uint64

// Make packs the three fields into an ID. It rejects a timestamp wider than
// 42 bits and masks sequence and random to their field widths.
func Make(tsMs uint64, seq, random uint16) (ID, error) {
	if tsMs > MaxTimestamp {
		return 0, fmt.Errorf("%w: %d", ErrTimestampRange, tsMs)
	}
	v := tsMs<<timestampShift |
		uint64(seq&MaxSequence)<<sequenceShift |
		uint64(random&MaxRandom)
	return ID(v), nil
}

// TimestampMs returns the embedded millisecond timestamp.
func (id ID) TimestampMs() uint64 { return uint64(id) >> timestampShift }

// Sequence returns the embedded 12-bit sequence counter.
func (id ID) Sequence() uint16 {
	return uint16(uint64(id)>>sequenceShift) & MaxSequence
}

// Random returns the embedded 10-bit entropy field.
func (id ID) Random() uint16 { return uint16(id) & MaxRandom }

// Time returns the embedded timestamp as a time.Time in UTC.
func (id ID) Time() time.Time {
	return time.UnixMilli(int64(id.TimestampMs())).UTC()
}

// Compare returns -1, 0, 1 based on numeric comparison, which equals the
// byte-wise comparison of the encoded strings.
func (id ID) Compare(other ID) int {
	switch {
	case id < other:
		return -1
	case id > other:
		return 1
	}
	return 0
}

// String returns the 11-character encoded form.
func (id ID) String() string {
	var buf [EncodedLen]byte
	v := uint64(id)
	// Final symbol carries the low 4 bits of the value followed by two
	// zero padding bits.
	buf[EncodedLen-1] = alphabet[(v&0xF)<<2]
	v >>= 4
	for i := EncodedLen - 2; i >= 0; i-- {
		buf[i] = alphabet[v&0x3F]
		v >>= 6
	}
	return string(buf[:])
}

// Parse decodes an 11-character encoded ID. Malformed input yields one of
// ErrInvalidLength, ErrInvalidAlphabet or ErrInvalidPadding; no best-effort
// value is ever returned.
func Parse(s string) (ID, error) {
	if len(s) != EncodedLen {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidLength, len(s))
	}
	var v uint64
	for i := 0; i < EncodedLen-1; i++ {
		d := decodeMap[s[i]]
		if d < 0 {
			return 0, fmt.Errorf("%w: %q at index %d", ErrInvalidAlphabet, s[i], i)
		}
		v = v<<6 | uint64(d)
	}
	last := decodeMap[s[EncodedLen-1]]
	if last < 0 {
		return 0, fmt.Errorf("%w: %q at index %d", ErrInvalidAlphabet, s[EncodedLen-1], EncodedLen-1)
	}
	if last&0x3 != 0 {
		return 0, ErrInvalidPadding
	}
	return ID(v<<4 | uint64(last)>>2), nil
}

// IsDecodeError reports whether err is one of the Parse validation errors.
func IsDecodeError(err error) bool {
	return errors.Is(err, ErrInvalidLength) ||
		errors.Is(err, ErrInvalidAlphabet) ||
		errors.Is(err, ErrInvalidPadding)
}

// Fields is the unpacked form of an ID.
type Fields struct {
	TimestampMs uint64 `json:"timestamp_ms"`
	Sequence    uint16 `json:"sequence"`
	Random      uint16 `json:"random"`
}

// Fields returns all three sub-fields of the ID.
func (id ID) Fields() Fields {
	return Fields{
		TimestampMs: id.TimestampMs(),
		Sequence:    id.Sequence(),
		Random:      id.Random(),
	}
}
