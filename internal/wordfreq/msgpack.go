package wordfreq

import (
	"bufio"
	"fmt"
	"io"
	"math"
)

// maxContainerLen bounds array, map and string headers read from untrusted
// archives.
const maxContainerLen = 1 << 26

// decodeMsgpack reads one MessagePack value. Maps decode to map[string]any and
// reject non-string keys; integers decode to int64, binary to []byte.
func decodeMsgpack(r io.Reader) (any, error) {
	d := decoder{r: bufio.NewReader(r)}
	return d.value()
}

type decoder struct {
	r *bufio.Reader
}

func (d *decoder) value() (any, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch {
	case b <= 0x7f:
		return int64(b), nil
	case b >= 0xe0:
		return int64(int8(b)), nil
	case b&0xe0 == 0xa0:
		return d.str(uint64(b & 0x1f))
	case b&0xf0 == 0x90:
		return d.array(uint64(b & 0x0f))
	case b&0xf0 == 0x80:
		return d.dict(uint64(b & 0x0f))
	}

	switch b {
	case 0xc0:
		return nil, nil
	case 0xc2:
		return false, nil
	case 0xc3:
		return true, nil
	case 0xc4, 0xc5, 0xc6:
		n, err := d.uint(1 << (b - 0xc4))
		if err != nil {
			return nil, err
		}
		return d.bytes(n)
	case 0xca:
		u, err := d.uint(4)
		return float64(math.Float32frombits(uint32(u))), err
	case 0xcb:
		u, err := d.uint(8)
		return math.Float64frombits(u), err
	case 0xcc, 0xcd, 0xce, 0xcf:
		u, err := d.uint(1 << (b - 0xcc))
		return int64(u), err
	case 0xd0, 0xd1, 0xd2, 0xd3:
		size := 1 << (b - 0xd0)
		u, err := d.uint(size)
		shift := 64 - 8*size
		return int64(u<<shift) >> shift, err
	case 0xd9, 0xda, 0xdb:
		n, err := d.uint(1 << (b - 0xd9))
		if err != nil {
			return nil, err
		}
		return d.str(n)
	case 0xdc, 0xdd:
		n, err := d.uint(2 << (b - 0xdc))
		if err != nil {
			return nil, err
		}
		return d.array(n)
	case 0xde, 0xdf:
		n, err := d.uint(2 << (b - 0xde))
		if err != nil {
			return nil, err
		}
		return d.dict(n)
	}
	return nil, fmt.Errorf("unsupported msgpack type 0x%02x", b)
}

// uint reads a big-endian unsigned integer of size bytes.
func (d *decoder) uint(size int) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(d.r, buf[:size]); err != nil {
		return 0, err
	}
	var v uint64
	for _, c := range buf[:size] {
		v = v<<8 | uint64(c)
	}
	return v, nil
}

func (d *decoder) bytes(n uint64) ([]byte, error) {
	if n > maxContainerLen {
		return nil, fmt.Errorf("msgpack length %d too large", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (d *decoder) str(n uint64) (string, error) {
	buf, err := d.bytes(n)
	return string(buf), err
}

func (d *decoder) array(n uint64) ([]any, error) {
	if n > maxContainerLen {
		return nil, fmt.Errorf("msgpack array length %d too large", n)
	}
	out := make([]any, 0, min(n, 1024))
	for i := uint64(0); i < n; i++ {
		v, err := d.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (d *decoder) dict(n uint64) (map[string]any, error) {
	if n > maxContainerLen {
		return nil, fmt.Errorf("msgpack map length %d too large", n)
	}
	out := make(map[string]any, min(n, 64))
	for i := uint64(0); i < n; i++ {
		k, err := d.value()
		if err != nil {
			return nil, err
		}
		key, ok := k.(string)
		if !ok {
			return nil, fmt.Errorf("unsupported msgpack map key %T", k)
		}
		v, err := d.value()
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}
