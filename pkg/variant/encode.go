package variant

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Encode writes the Array(...) text form of v. The same form is carried by
// the automation socket and accepted back by Decode.
func Encode(w io.Writer, v *Value) error {
	var sb strings.Builder
	if err := encodeValue(&sb, v); err != nil {
		return err
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// EncodeString returns the Array(...) text form of v.
func EncodeString(v *Value) (string, error) {
	var sb strings.Builder
	if err := encodeValue(&sb, v); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func encodeValue(sb *strings.Builder, v *Value) error {
	if v == nil {
		sb.WriteString("Array()")
		return nil
	}
	switch v.kind {
	case KindString:
		encodeString(sb, v.str)
		return nil
	case KindNumber:
		return encodeNumber(sb, v.num)
	case KindBool:
		if v.b {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
		return nil
	case KindList:
		sb.WriteString("Array(")
		for i, item := range v.items {
			if i > 0 {
				sb.WriteString(", ")
			}
			if err := encodeValue(sb, item); err != nil {
				return err
			}
		}
		sb.WriteString(")")
		return nil
	}
	return fmt.Errorf("variant: cannot encode kind %s", v.kind)
}

func encodeString(sb *strings.Builder, s string) {
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
}

// encodeNumber renders integral values without an exponent so object ids and
// counts stay readable; everything else uses the shortest round-trip form.
func encodeNumber(sb *strings.Builder, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("variant: cannot encode non-finite number %v", f)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		sb.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
		return nil
	}
	sb.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	return nil
}
