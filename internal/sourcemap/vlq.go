// Package sourcemap builds source-map v3 documents: VLQ-encoded
// mapping segments, the base64 alphabet they're drawn from, and the JSON
// assembly the writer emits. Per spec.md §4.7, the codec itself is pure.
package sourcemap

import "fmt"

const base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

var base64Digit [256]int8

func init() {
	for i := range base64Digit {
		base64Digit[i] = -1
	}
	for i := 0; i < len(base64Alphabet); i++ {
		base64Digit[base64Alphabet[i]] = int8(i)
	}
}

// EncodeVLQ zig-zag encodes value (sign in the low bit) and appends its
// base64 VLQ digits to dst, returning the extended slice.
func EncodeVLQ(dst []byte, value int) []byte {
	var vlq int
	if value < 0 {
		vlq = ((-value) << 1) | 1
	} else {
		vlq = value << 1
	}
	for {
		digit := vlq & 0x1f
		vlq >>= 5
		if vlq != 0 {
			digit |= 0x20
		}
		dst = append(dst, base64Alphabet[digit])
		if vlq == 0 {
			break
		}
	}
	return dst
}

// DecodeVLQ decodes one base64 VLQ value starting at src[start], returning
// the decoded value and the index just past it.
func DecodeVLQ(src []byte, start int) (int, int, error) {
	shift := 0
	var vlq int
	pos := start
	for {
		if pos >= len(src) {
			return 0, 0, fmt.Errorf("truncated VLQ at byte %d", start)
		}
		digit := base64Digit[src[pos]]
		if digit < 0 {
			return 0, 0, fmt.Errorf("invalid VLQ digit %q at byte %d", src[pos], pos)
		}
		vlq |= int(digit&0x1f) << shift
		pos++
		shift += 5
		if digit&0x20 == 0 {
			break
		}
	}
	value := vlq >> 1
	if vlq&1 != 0 {
		value = -value
	}
	return value, pos, nil
}
