package objectstream

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf16"
)

// cursor is a sequential big-endian reader over an in-memory buffer.
// It knows nothing about the protocol; it only reads fixed-width values
// and length-prefixed strings, and fails with ErrTruncatedStream when
// fewer bytes remain than requested.
type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) offset() int { return c.pos }

func (c *cursor) remaining() int { return len(c.buf) - c.pos }

func (c *cursor) readBytes(n int) ([]byte, error) {
	if n > c.remaining() {
		return nil, errAt(ErrTruncatedStream, c.pos, "need %d bytes, %d remain", n, c.remaining())
	}
	p := c.buf[c.pos : c.pos+n]
	c.pos += n
	return p, nil
}

func (c *cursor) readU8() (byte, error) {
	p, err := c.readBytes(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

// peekU8 returns the next byte without consuming it.
func (c *cursor) peekU8() (byte, error) {
	if c.remaining() < 1 {
		return 0, errAt(ErrTruncatedStream, c.pos, "need 1 byte, 0 remain")
	}
	return c.buf[c.pos], nil
}

func (c *cursor) readU16() (uint16, error) {
	p, err := c.readBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(p), nil
}

func (c *cursor) readU32() (uint32, error) {
	p, err := c.readBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(p), nil
}

func (c *cursor) readI16() (int16, error) {
	v, err := c.readU16()
	return int16(v), err
}

func (c *cursor) readI32() (int32, error) {
	v, err := c.readU32()
	return int32(v), err
}

func (c *cursor) readI64() (int64, error) {
	p, err := c.readBytes(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(p)), nil
}

func (c *cursor) readF32() (float32, error) {
	v, err := c.readU32()
	return math.Float32frombits(v), err
}

func (c *cursor) readF64() (float64, error) {
	p, err := c.readBytes(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(p)), nil
}

// readUTF reads a string prefixed with an unsigned 16-bit byte length.
func (c *cursor) readUTF() (string, error) {
	start := c.pos
	n, err := c.readU16()
	if err != nil {
		return "", err
	}
	p, err := c.readBytes(int(n))
	if err != nil {
		return "", err
	}
	s, err := decodeModifiedUTF8(p)
	if err != nil {
		return "", errAt(ErrMalformedString, start, "%v", err)
	}
	return s, nil
}

// readLongUTF reads a string prefixed with a signed 64-bit byte length,
// used by TC_LONGSTRING for strings over 64 KiB.
func (c *cursor) readLongUTF() (string, error) {
	start := c.pos
	n, err := c.readI64()
	if err != nil {
		return "", err
	}
	if n < 0 || n > int64(c.remaining()) {
		return "", errAt(ErrTruncatedStream, start, "long string length %d, %d bytes remain", n, c.remaining())
	}
	p, err := c.readBytes(int(n))
	if err != nil {
		return "", err
	}
	s, err := decodeModifiedUTF8(p)
	if err != nil {
		return "", errAt(ErrMalformedString, start, "%v", err)
	}
	return s, nil
}

// decodeModifiedUTF8 decodes Java's modified UTF-8: no 4-byte groups,
// supplementary characters appear as surrogate pairs of 3-byte groups,
// and U+0000 is encoded as 0xC0 0x80.
func decodeModifiedUTF8(p []byte) (string, error) {
	ascii := true
	for _, b := range p {
		if b == 0 || b >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return string(p), nil
	}
	units := make([]uint16, 0, len(p))
	for i := 0; i < len(p); {
		b := p[i]
		switch {
		case b&0x80 == 0:
			if b == 0 {
				return "", fmt.Errorf("bare NUL byte at index %d", i)
			}
			units = append(units, uint16(b))
			i++
		case b&0xE0 == 0xC0:
			if i+1 >= len(p) || p[i+1]&0xC0 != 0x80 {
				return "", fmt.Errorf("truncated 2-byte group at index %d", i)
			}
			units = append(units, uint16(b&0x1F)<<6|uint16(p[i+1]&0x3F))
			i += 2
		case b&0xF0 == 0xE0:
			if i+2 >= len(p) || p[i+1]&0xC0 != 0x80 || p[i+2]&0xC0 != 0x80 {
				return "", fmt.Errorf("truncated 3-byte group at index %d", i)
			}
			units = append(units, uint16(b&0x0F)<<12|uint16(p[i+1]&0x3F)<<6|uint16(p[i+2]&0x3F))
			i += 3
		default:
			return "", fmt.Errorf("invalid leading byte %#02x at index %d", b, i)
		}
	}
	return string(utf16.Decode(units)), nil
}
