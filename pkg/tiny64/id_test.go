package tiny64

import (
	"errors"
	"sort"
	"strings"
	"testing"
	"time"
)

func TestAlphabetSortedByASCII(t *testing.T) {
	for i := 1; i < len(alphabet); i++ {
		if alphabet[i-1] >= alphabet[i] {
			t.Fatalf("alphabet not strictly increasing at %d: %q >= %q", i, alphabet[i-1], alphabet[i])
		}
	}
}

func TestEncodeLengthAndAlphabet(t *testing.T) {
	for _, v := range []uint64{0, 1, 0x123456789ABCDEF0, ^uint64(0)} {
		s := ID(v).String()
		if len(s) != EncodedLen {
			t.Fatalf("encode(%#x) length = %d, want %d", v, len(s), EncodedLen)
		}
		for i := 0; i < len(s); i++ {
			if !strings.ContainsRune(alphabet, rune(s[i])) {
				t.Fatalf("encode(%#x) produced %q outside alphabet", v, s[i])
			}
		}
	}
}

func TestRoundTrip(t *testing.T) {
	values := []uint64{
		0,
		1,
		0x3FF,              // random only
		0xFFF << 10,        // sequence only
		MaxTimestamp << 22, // timestamp only
		0x123456789ABCDEF0,
		^uint64(0),
		1000<<22 | 7<<10 | 5, // a realistic triple
	}
	for _, v := range values {
		s := ID(v).String()
		got, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", s, err)
		}
		if uint64(got) != v {
			t.Fatalf("round trip %#x -> %q -> %#x", v, s, uint64(got))
		}
	}
}

func TestEncodedOrderMatchesNumericOrder(t *testing.T) {
	values := []uint64{
		0, 1, 2, 1023, 1024, 0xFFF00, 1 << 22, 1<<22 + 1,
		1000<<22 | 1<<10, 1000<<22 | 2<<10, 1001 << 22,
		MaxTimestamp << 22, ^uint64(0),
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	for i := 1; i < len(values); i++ {
		a, b := ID(values[i-1]).String(), ID(values[i]).String()
		if !(a < b) {
			t.Fatalf("encoded order violated: %#x -> %q not < %#x -> %q",
				values[i-1], a, values[i], b)
		}
	}
}

func TestParseRejectsBadLength(t *testing.T) {
	for _, s := range []string{"", "short", "0123456789", "0123456789AB"} {
		if _, err := Parse(s); !errors.Is(err, ErrInvalidLength) {
			t.Fatalf("Parse(%q) = %v, want ErrInvalidLength", s, err)
		}
	}
}

func TestParseRejectsBadAlphabet(t *testing.T) {
	for _, s := range []string{"AAAAAAAAAA=", "AAAAA+AAAAA", "AAAAA AAAAA", "AAAAAAAAAA\x00"} {
		if _, err := Parse(s); !errors.Is(err, ErrInvalidAlphabet) {
			t.Fatalf("Parse(%q) = %v, want ErrInvalidAlphabet", s, err)
		}
	}
}

func TestParseRejectsBadPadding(t *testing.T) {
	valid := ID(0x123456789ABCDEF0).String()
	// alphabet[1] has nonzero low padding bits in the final position.
	bad := valid[:EncodedLen-1] + string(alphabet[1])
	if _, err := Parse(bad); !errors.Is(err, ErrInvalidPadding) {
		t.Fatalf("Parse(%q) = %v, want ErrInvalidPadding", bad, err)
	}
	// alphabet[4] has both padding bits zero; must decode fine.
	ok := valid[:EncodedLen-1] + string(alphabet[4])
	if _, err := Parse(ok); err != nil {
		t.Fatalf("Parse(%q) unexpected error: %v", ok, err)
	}
}

func TestIsDecodeError(t *testing.T) {
	if _, err := Parse("x"); !IsDecodeError(err) {
		t.Fatalf("expected decode error classification, got %v", err)
	}
	if IsDecodeError(ErrTimestampRange) {
		t.Fatalf("ErrTimestampRange must not classify as decode error")
	}
}

func TestMakeAndFieldExtraction(t *testing.T) {
	id, err := Make(1000, 7, 5)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	if got := uint64(id); got != 1000<<22|7<<10|5 {
		t.Fatalf("packed value = %#x", got)
	}
	f := id.Fields()
	if f.TimestampMs != 1000 || f.Sequence != 7 || f.Random != 5 {
		t.Fatalf("fields = %+v", f)
	}
	if want := time.UnixMilli(1000).UTC(); !id.Time().Equal(want) {
		t.Fatalf("Time() = %v, want %v", id.Time(), want)
	}
}

func TestMakeRejectsTimestampOverflow(t *testing.T) {
	if _, err := Make(MaxTimestamp+1, 0, 0); !errors.Is(err, ErrTimestampRange) {
		t.Fatalf("want ErrTimestampRange, got %v", err)
	}
	if _, err := Make(MaxTimestamp, MaxSequence, MaxRandom); err != nil {
		t.Fatalf("max valid triple rejected: %v", err)
	}
}

func TestCompare(t *testing.T) {
	a, b := ID(1), ID(2)
	if a.Compare(b) != -1 || b.Compare(a) != 1 || a.Compare(a) != 0 {
		t.Fatalf("Compare misbehaves")
	}
}
