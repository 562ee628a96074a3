package mailbox

import (
	"math"
	"unicode/utf16"
	"unicode/utf8"
)

// Size returns the number of payload words values would be encoded into, or
// an error if any value is unsupported.
func Size(values ...any) (int, error) {
	var n int
	for i, v := range values {
		if s, ok := v.(string); ok {
			n += 1 + codeUnits(s)
			continue
		}
		if _, err := scalar(i, v); err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

// put writes v starting at words[i], returning the next index. The value
// must have already been validated by Size.
func put(words []int32, i int, v any) int {
	if s, ok := v.(string); ok {
		start := i
		i++
		for _, r := range s {
			if r1, r2 := utf16.EncodeRune(r); r1 != utf8.RuneError {
				words[i] = int32(r1)
				words[i+1] = int32(r2)
				i += 2
			} else {
				words[i] = int32(r)
				i++
			}
		}
		words[start] = int32(i - start - 1)
		return i
	}
	w, _ := scalar(0, v)
	words[i] = w
	return i + 1
}

func codeUnits(s string) int {
	var n int
	for _, r := range s {
		if utf16.IsSurrogate(r) || r < 0x10000 {
			n++
		} else {
			n += 2
		}
	}
	return n
}

func scalar(i int, v any) (int32, error) {
	switch v := v.(type) {
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case int32:
		return v, nil
	case int8:
		return int32(v), nil
	case int16:
		return int32(v), nil
	case uint8:
		return int32(v), nil
	case uint16:
		return int32(v), nil
	case int:
		return intWord(i, v, int64(v))
	case int64:
		return intWord(i, v, v)
	case uint32:
		return intWord(i, v, int64(v))
	case uint:
		if uint64(v) > math.MaxInt32 {
			return 0, &RangeError{Value: v, Index: i}
		}
		return int32(v), nil
	case uint64:
		if v > math.MaxInt32 {
			return 0, &RangeError{Value: v, Index: i}
		}
		return int32(v), nil
	case float32:
		return floatWord(i, v, float64(v))
	case float64:
		return floatWord(i, v, v)
	default:
		return 0, &TypeError{Value: v, Index: i}
	}
}

func intWord(i int, orig any, v int64) (int32, error) {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, &RangeError{Value: orig, Index: i}
	}
	return int32(v), nil
}

// floatWord rejects fractional values rather than truncating them.
func floatWord(i int, orig any, v float64) (int32, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, &RangeError{Value: orig, Index: i}
	}
	return intWord(i, orig, int64(v))
}

// Decoder reads values from a claimed payload, in the layout written by
// [Mailbox.Encode].
type Decoder struct {
	words []int32
	pos   int
}

// NewDecoder returns a Decoder reading from the start of payload.
func NewDecoder(payload []int32) *Decoder {
	return &Decoder{words: payload}
}

// Pos returns the number of words consumed so far.
func (x *Decoder) Pos() int { return x.pos }

// Int reads a single word.
func (x *Decoder) Int() (int, error) {
	if x.pos >= len(x.words) {
		return 0, ErrDecodeOverrun
	}
	v := x.words[x.pos]
	x.pos++
	return int(v), nil
}

// Bool reads a single word, any non-zero value being true.
func (x *Decoder) Bool() (bool, error) {
	v, err := x.Int()
	return v != 0, err
}

// Str reads a length prefixed sequence of UTF-16 code units.
func (x *Decoder) Str() (string, error) {
	n, err := x.Int()
	if err != nil {
		return ``, err
	}
	if n < 0 || n > len(x.words)-x.pos {
		return ``, ErrDecodeOverrun
	}
	units := make([]uint16, n)
	for i := range units {
		units[i] = uint16(x.words[x.pos+i])
	}
	x.pos += n
	return string(utf16.Decode(units)), nil
}
