package dictionary

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind is the closed set of attribute value kinds. Every switch over Kind in this package
// must list all of them; TestEveryKindMaterializes walks AllKinds to catch a missing arm.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindUInt8
	KindUInt16
	KindUInt32
	KindUInt64
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindDecimal32
	KindDecimal64
	KindDecimal128
	KindUUID
	KindString

	kindCount
)

var kindNames = [...]string{
	KindInvalid:    "Invalid",
	KindUInt8:      "UInt8",
	KindUInt16:     "UInt16",
	KindUInt32:     "UInt32",
	KindUInt64:     "UInt64",
	KindInt8:       "Int8",
	KindInt16:      "Int16",
	KindInt32:      "Int32",
	KindInt64:      "Int64",
	KindFloat32:    "Float32",
	KindFloat64:    "Float64",
	KindDecimal32:  "Decimal32",
	KindDecimal64:  "Decimal64",
	KindDecimal128: "Decimal128",
	KindUUID:       "UUID",
	KindString:     "String",
}

// AllKinds lists every valid kind in declaration order.
func AllKinds() []Kind {
	kinds := make([]Kind, 0, kindCount-1)
	for k := KindUInt8; k < kindCount; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

func (k Kind) String() string {
	if k >= kindCount {
		return fmt.Sprintf("Kind(%d)", k)
	}
	return kindNames[k]
}

func (k Kind) IsDecimal() bool {
	return k == KindDecimal32 || k == KindDecimal64 || k == KindDecimal128
}

// Precision is the number of significant decimal digits a decimal kind holds, 0 otherwise.
func (k Kind) Precision() int32 {
	switch k {
	case KindDecimal32:
		return 9
	case KindDecimal64:
		return 18
	case KindDecimal128:
		return 38
	}
	return 0
}

// Type is a Kind plus the scale for decimal kinds.
type Type struct {
	Kind  Kind
	Scale int32
}

func (t Type) String() string {
	if t.Kind.IsDecimal() {
		return fmt.Sprintf("%s(%d)", t.Kind, t.Scale)
	}
	return t.Kind.String()
}

// ParseType parses a configuration type string such as "UInt64", "Decimal64(4)" or
// "Nullable(String)".
func ParseType(s string) (t Type, nullable bool, err error) {
	s = strings.TrimSpace(s)
	if inner, ok := unwrapCall(s, "Nullable"); ok {
		t, _, err = ParseType(inner)
		return t, true, err
	}

	for k := KindDecimal32; k <= KindDecimal128; k++ {
		arg, ok := unwrapCall(s, k.String())
		if !ok {
			continue
		}
		scale, perr := strconv.ParseInt(strings.TrimSpace(arg), 10, 32)
		if perr != nil {
			return Type{}, false, fmt.Errorf("bad scale in type %q: %w", s, perr)
		}
		if scale < 0 || int32(scale) > k.Precision() {
			return Type{}, false, fmt.Errorf("scale %d out of range for %s", scale, k)
		}
		return Type{Kind: k, Scale: int32(scale)}, false, nil
	}

	for k := KindUInt8; k < kindCount; k++ {
		if k.IsDecimal() {
			continue
		}
		if s == k.String() {
			return Type{Kind: k}, false, nil
		}
	}
	return Type{}, false, fmt.Errorf("unknown type %q", s)
}

func unwrapCall(s, name string) (string, bool) {
	if !strings.HasPrefix(s, name+"(") || !strings.HasSuffix(s, ")") {
		return "", false
	}
	return s[len(name)+1 : len(s)-1], true
}

// Zero returns the zero value of the type's native representation.
func (t Type) Zero() any {
	switch t.Kind {
	case KindUInt8:
		return uint8(0)
	case KindUInt16:
		return uint16(0)
	case KindUInt32:
		return uint32(0)
	case KindUInt64:
		return uint64(0)
	case KindInt8:
		return int8(0)
	case KindInt16:
		return int16(0)
	case KindInt32:
		return int32(0)
	case KindInt64:
		return int64(0)
	case KindFloat32:
		return float32(0)
	case KindFloat64:
		return float64(0)
	case KindDecimal32, KindDecimal64, KindDecimal128:
		return decimal.Zero
	case KindUUID:
		return uuid.Nil
	case KindString:
		return ""
	}
	return nil
}

// Coerce converts a generic literal (YAML/JSON scalar, string, any Go numeric, decimal,
// UUID) into the type's native Go representation. nil is not accepted; callers decide
// what a null means.
func (t Type) Coerce(v any) (any, error) {
	v = deref(v)
	if v == nil {
		return nil, fmt.Errorf("cannot convert null to %s", t)
	}

	switch t.Kind {
	case KindUInt8:
		u, err := toUint(v, math.MaxUint8)
		return uint8(u), err
	case KindUInt16:
		u, err := toUint(v, math.MaxUint16)
		return uint16(u), err
	case KindUInt32:
		u, err := toUint(v, math.MaxUint32)
		return uint32(u), err
	case KindUInt64:
		return toUint(v, math.MaxUint64)
	case KindInt8:
		i, err := toInt(v, math.MinInt8, math.MaxInt8)
		return int8(i), err
	case KindInt16:
		i, err := toInt(v, math.MinInt16, math.MaxInt16)
		return int16(i), err
	case KindInt32:
		i, err := toInt(v, math.MinInt32, math.MaxInt32)
		return int32(i), err
	case KindInt64:
		return toInt(v, math.MinInt64, math.MaxInt64)
	case KindFloat32:
		f, err := toFloat(v)
		return float32(f), err
	case KindFloat64:
		return toFloat(v)
	case KindDecimal32, KindDecimal64, KindDecimal128:
		return t.toDecimal(v)
	case KindUUID:
		return toUUID(v)
	case KindString:
		return toString(v)
	}
	return nil, fmt.Errorf("unsupported kind %s", t.Kind)
}

func deref(v any) any {
	switch p := v.(type) {
	case *string:
		if p == nil {
			return nil
		}
		return *p
	case *int32:
		if p == nil {
			return nil
		}
		return *p
	case *int64:
		if p == nil {
			return nil
		}
		return *p
	case *float32:
		if p == nil {
			return nil
		}
		return *p
	case *float64:
		if p == nil {
			return nil
		}
		return *p
	case *bool:
		if p == nil {
			return nil
		}
		return *p
	}
	return v
}

// numeric normalizes v into exactly one of: *big.Int (integral), float64, or a parse error.
func numeric(v any) (*big.Int, float64, bool, error) {
	switch n := v.(type) {
	case int:
		return big.NewInt(int64(n)), 0, true, nil
	case int8:
		return big.NewInt(int64(n)), 0, true, nil
	case int16:
		return big.NewInt(int64(n)), 0, true, nil
	case int32:
		return big.NewInt(int64(n)), 0, true, nil
	case int64:
		return big.NewInt(n), 0, true, nil
	case uint:
		return new(big.Int).SetUint64(uint64(n)), 0, true, nil
	case uint8:
		return new(big.Int).SetUint64(uint64(n)), 0, true, nil
	case uint16:
		return new(big.Int).SetUint64(uint64(n)), 0, true, nil
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), 0, true, nil
	case uint64:
		return new(big.Int).SetUint64(n), 0, true, nil
	case float32:
		return nil, float64(n), false, nil
	case float64:
		return nil, n, false, nil
	case bool:
		if n {
			return big.NewInt(1), 0, true, nil
		}
		return big.NewInt(0), 0, true, nil
	case decimal.Decimal:
		if n.Equal(n.Truncate(0)) {
			return n.BigInt(), 0, true, nil
		}
		f, _ := n.Float64()
		return nil, f, false, nil
	case json.Number:
		return numericString(string(n))
	case string:
		return numericString(n)
	case []byte:
		return numericString(string(n))
	}
	return nil, 0, false, fmt.Errorf("cannot convert %T to a number", v)
}

func numericString(s string) (*big.Int, float64, bool, error) {
	s = strings.TrimSpace(s)
	if i, ok := new(big.Int).SetString(s, 10); ok {
		return i, 0, true, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, 0, false, fmt.Errorf("cannot parse %q as a number", s)
	}
	return nil, f, false, nil
}

func toUint(v any, max uint64) (uint64, error) {
	i, f, integral, err := numeric(v)
	if err != nil {
		return 0, err
	}
	if !integral {
		if f != math.Trunc(f) || f < 0 || f >= 0x1p64 || f > float64(max) {
			return 0, fmt.Errorf("%v is not representable as an unsigned integer up to %d", f, max)
		}
		return uint64(f), nil
	}
	if i.Sign() < 0 || !i.IsUint64() || i.Uint64() > max {
		return 0, fmt.Errorf("%s out of range [0, %d]", i, max)
	}
	return i.Uint64(), nil
}

func toInt(v any, min, max int64) (int64, error) {
	i, f, integral, err := numeric(v)
	if err != nil {
		return 0, err
	}
	if !integral {
		if f != math.Trunc(f) || f < float64(min) || f >= 0x1p63 || f > float64(max) {
			return 0, fmt.Errorf("%v is not representable as an integer in [%d, %d]", f, min, max)
		}
		return int64(f), nil
	}
	if !i.IsInt64() || i.Int64() < min || i.Int64() > max {
		return 0, fmt.Errorf("%s out of range [%d, %d]", i, min, max)
	}
	return i.Int64(), nil
}

func toFloat(v any) (float64, error) {
	i, f, integral, err := numeric(v)
	if err != nil {
		return 0, err
	}
	if integral {
		bf, _ := new(big.Float).SetInt(i).Float64()
		return bf, nil
	}
	return f, nil
}

func (t Type) toDecimal(v any) (decimal.Decimal, error) {
	var d decimal.Decimal
	switch n := v.(type) {
	case decimal.Decimal:
		d = n
	case string:
		parsed, err := decimal.NewFromString(strings.TrimSpace(n))
		if err != nil {
			return decimal.Zero, fmt.Errorf("cannot parse %q as %s: %w", n, t, err)
		}
		d = parsed
	case []byte:
		parsed, err := decimal.NewFromString(string(n))
		if err != nil {
			return decimal.Zero, fmt.Errorf("cannot parse %q as %s: %w", n, t, err)
		}
		d = parsed
	case json.Number:
		parsed, err := decimal.NewFromString(string(n))
		if err != nil {
			return decimal.Zero, fmt.Errorf("cannot parse %q as %s: %w", n, t, err)
		}
		d = parsed
	default:
		i, f, integral, err := numeric(v)
		if err != nil {
			return decimal.Zero, err
		}
		if integral {
			d = decimal.NewFromBigInt(i, 0)
		} else {
			d = decimal.NewFromFloat(f)
		}
	}

	d = d.Round(t.Scale)
	limit := decimal.New(1, t.Kind.Precision()-t.Scale)
	if d.Abs().GreaterThanOrEqual(limit) {
		return decimal.Zero, fmt.Errorf("%s does not fit in %s", d, t)
	}
	return d, nil
}

func toUUID(v any) (uuid.UUID, error) {
	switch n := v.(type) {
	case uuid.UUID:
		return n, nil
	case [16]byte:
		return uuid.UUID(n), nil
	case []byte:
		if len(n) == 16 {
			return uuid.FromBytes(n)
		}
		return uuid.ParseBytes(n)
	case string:
		return uuid.Parse(strings.TrimSpace(n))
	}
	return uuid.Nil, fmt.Errorf("cannot convert %T to UUID", v)
}

func toString(v any) (string, error) {
	switch n := v.(type) {
	case string:
		return n, nil
	case []byte:
		return string(n), nil
	case json.Number:
		return string(n), nil
	case fmt.Stringer:
		return n.String(), nil
	case bool:
		return strconv.FormatBool(n), nil
	case float32:
		return strconv.FormatFloat(float64(n), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(n, 'g', -1, 64), nil
	}
	i, _, integral, err := numeric(v)
	if err != nil || !integral {
		return "", fmt.Errorf("cannot convert %T to String", v)
	}
	return i.String(), nil
}
