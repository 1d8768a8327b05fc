package dictionary

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/uuid"
)

func TestParseType(t *testing.T) {
	cases := []struct {
		in       string
		want     Type
		nullable bool
	}{
		{"UInt64", Type{Kind: KindUInt64}, false},
		{"Nullable(Int8)", Type{Kind: KindInt8}, true},
		{"Decimal128(10)", Type{Kind: KindDecimal128, Scale: 10}, false},
		{" Nullable(Decimal32(3)) ", Type{Kind: KindDecimal32, Scale: 3}, true},
		{"UUID", Type{Kind: KindUUID}, false},
	}
	for _, c := range cases {
		got, nullable, err := ParseType(c.in)
		if err != nil {
			t.Fatalf("%s: %s", c.in, err)
		}
		if got != c.want || nullable != c.nullable {
			t.Fatalf("%s: got %s nullable=%v", c.in, got, nullable)
		}
	}

	for _, bad := range []string{"UInt128", "Decimal32(12)", "Decimal64(x)", ""} {
		if _, _, err := ParseType(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}

	// type strings round trip through String
	for _, k := range AllKinds() {
		typ := Type{Kind: k}
		if k.IsDecimal() {
			typ.Scale = 1
		}
		got, _, err := ParseType(typ.String())
		if err != nil || got != typ {
			t.Fatalf("%s did not round trip: %v %v", typ, got, err)
		}
	}
}

func TestCoerce(t *testing.T) {
	u8 := Type{Kind: KindUInt8}
	if _, err := u8.Coerce(256); err == nil {
		t.Fatal("256 fit in UInt8")
	}
	if _, err := u8.Coerce(-1); err == nil {
		t.Fatal("-1 fit in UInt8")
	}
	if v, err := u8.Coerce(json.Number("255")); err != nil || v != uint8(255) {
		t.Fatalf("got %v %v", v, err)
	}

	u64 := Type{Kind: KindUInt64}
	if v, err := u64.Coerce("18446744073709551615"); err != nil || v != uint64(18446744073709551615) {
		t.Fatalf("got %v %v", v, err)
	}
	if v, err := u64.Coerce(float64(12)); err != nil || v != uint64(12) {
		t.Fatalf("got %v %v", v, err)
	}
	if _, err := u64.Coerce(1.5); err == nil {
		t.Fatal("1.5 fit in UInt64")
	}
	// 2^64 is the first float past MaxUint64
	for _, v := range []any{float64(0x1p64), json.Number("1.8446744073709552e19"), "18446744073709551616.0"} {
		if got, err := u64.Coerce(v); err == nil {
			t.Fatalf("%v coerced to %v", v, got)
		}
	}
	if v, err := u64.Coerce(float64(0x1p63)); err != nil || v != uint64(1)<<63 {
		t.Fatalf("got %v %v", v, err)
	}

	i64 := Type{Kind: KindInt64}
	if got, err := i64.Coerce(float64(0x1p63)); err == nil {
		t.Fatalf("2^63 coerced to %v", got)
	}
	if v, err := i64.Coerce(float64(-0x1p63)); err != nil || v != int64(math.MinInt64) {
		t.Fatalf("got %v %v", v, err)
	}

	d32 := Type{Kind: KindDecimal32, Scale: 2}
	if _, err := d32.Coerce("10000000"); err == nil {
		t.Fatal("10000000 fit in Decimal32(2)")
	}

	id := uuid.New()
	if v, err := (Type{Kind: KindUUID}).Coerce([16]byte(id)); err != nil || v != id {
		t.Fatalf("got %v %v", v, err)
	}

	if _, err := (Type{Kind: KindString}).Coerce(nil); err == nil {
		t.Fatal("nil coerced")
	}
	if v, err := (Type{Kind: KindString}).Coerce(int64(-3)); err != nil || v != "-3" {
		t.Fatalf("got %v %v", v, err)
	}
}

func TestArena(t *testing.T) {
	a := &Arena{}
	r1 := a.Insert("hello")
	r2 := a.Insert("")
	r3 := a.Insert("world")
	if a.String(r1) != "hello" || a.String(r2) != "" || a.String(r3) != "world" {
		t.Fatal("arena views mismatch")
	}
	if a.Size() != 10 {
		t.Fatalf("arena size %d", a.Size())
	}
}
