package lvs

import (
	"encoding/binary"
	"fmt"

	"github.com/bwesterb/byteswriter"
)

// TLVType identifies a field of the wire format in spec.md §6. Every
// type this package defines is odd-numbered: per NDN TLV convention,
// odd types are "critical" (an unrecognized one must reject the whole
// decode) and even types are "non-critical" (an unrecognized one may be
// skipped), matching spec.md §4.5 ("Unknown-but-non-critical TLV types
// are tolerated on decode; unknown critical types cause rejection").
type TLVType uint64

const (
	ttVersion         TLVType = 0x61
	ttId              TLVType = 0x25 // NodeId, StartId, Parent, Destination all share this tag
	ttNamedPatternCnt TLVType = 0x69
	ttNode            TLVType = 0x63
	ttRuleName        TLVType = 0x29 // also TagSymbol's Identifier
	ttSignRef         TLVType = 0x55
	ttValueEdge       TLVType = 0x51
	ttValue           TLVType = 0x21
	ttPatternEdge     TLVType = 0x53
	ttTag             TLVType = 0x23
	ttConstraint      TLVType = 0x43
	ttConstraintOpt   TLVType = 0x41
	ttUserFnCall      TLVType = 0x31
	ttFnId            TLVType = 0x27
	ttUserFnArg       TLVType = 0x33
	ttTagSymbol       TLVType = 0x67
)

//go:generate enumer -type=TLVType

func isCritical(t TLVType) bool { return t%2 == 1 }

// writeVarNumber encodes n the way NDN encodes TLV type and length
// fields: one byte if n < 253, else a marker byte (253/254/255) followed
// by a 2/4/8-byte big-endian value.
func writeVarNumber(n uint64) []byte {
	switch {
	case n < 253:
		return []byte{byte(n)}
	case n <= 0xffff:
		b := make([]byte, 3)
		b[0] = 253
		binary.BigEndian.PutUint16(b[1:], uint16(n))
		return b
	case n <= 0xffffffff:
		b := make([]byte, 5)
		b[0] = 254
		binary.BigEndian.PutUint32(b[1:], uint32(n))
		return b
	default:
		b := make([]byte, 9)
		b[0] = 255
		binary.BigEndian.PutUint64(b[1:], n)
		return b
	}
}

func readVarNumber(buf []byte, pos int) (uint64, int, error) {
	if pos >= len(buf) {
		return 0, pos, fmt.Errorf("truncated TLV number at offset %d", pos)
	}
	marker := buf[pos]
	switch {
	case marker < 253:
		return uint64(marker), pos + 1, nil
	case marker == 253:
		if pos+3 > len(buf) {
			return 0, pos, fmt.Errorf("truncated 2-byte TLV number at offset %d", pos)
		}
		return uint64(binary.BigEndian.Uint16(buf[pos+1 : pos+3])), pos + 3, nil
	case marker == 254:
		if pos+5 > len(buf) {
			return 0, pos, fmt.Errorf("truncated 4-byte TLV number at offset %d", pos)
		}
		return uint64(binary.BigEndian.Uint32(buf[pos+1 : pos+5])), pos + 5, nil
	default:
		if pos+9 > len(buf) {
			return 0, pos, fmt.Errorf("truncated 8-byte TLV number at offset %d", pos)
		}
		return binary.BigEndian.Uint64(buf[pos+1 : pos+9]), pos + 9, nil
	}
}

// encodeTLV wraps value in a Type-Length-Value element. It writes into a
// buffer sized exactly for the result, the way container.go's
// fsSubTreeHeader writes go through a byteswriter.Writer over a
// pre-allocated slice.
func encodeTLV(t TLVType, value []byte) []byte {
	tb := writeVarNumber(uint64(t))
	lb := writeVarNumber(uint64(len(value)))
	out := make([]byte, len(tb)+len(lb)+len(value))
	w := byteswriter.NewWriter(out)
	_, _ = w.Write(tb)
	_, _ = w.Write(lb)
	_, _ = w.Write(value)
	return out
}

// encodeUint wraps v's minimal big-endian encoding (NDN nonNegativeInteger
// style: 1, 2, 4 or 8 bytes) in a TLV element of type t.
func encodeUint(t TLVType, v uint64) []byte {
	var val []byte
	switch {
	case v <= 0xff:
		val = []byte{byte(v)}
	case v <= 0xffff:
		val = make([]byte, 2)
		binary.BigEndian.PutUint16(val, uint16(v))
	case v <= 0xffffffff:
		val = make([]byte, 4)
		binary.BigEndian.PutUint32(val, uint32(v))
	default:
		val = make([]byte, 8)
		binary.BigEndian.PutUint64(val, v)
	}
	return encodeTLV(t, val)
}

func decodeUint(v []byte) (uint64, error) {
	switch len(v) {
	case 1:
		return uint64(v[0]), nil
	case 2:
		return uint64(binary.BigEndian.Uint16(v)), nil
	case 4:
		return uint64(binary.BigEndian.Uint32(v)), nil
	case 8:
		return binary.BigEndian.Uint64(v), nil
	default:
		return 0, fmt.Errorf("non-negative integer of unsupported length %d", len(v))
	}
}

// tlvElem is one decoded (type, value) pair together with the offset
// just past it, for sequential parsing.
type tlvElem struct {
	typ TLVType
	val []byte
	end int
}

// readTLV reads one TLV element starting at pos.
func readTLV(buf []byte, pos int) (tlvElem, error) {
	t, pos, err := readVarNumber(buf, pos)
	if err != nil {
		return tlvElem{}, err
	}
	l, pos, err := readVarNumber(buf, pos)
	if err != nil {
		return tlvElem{}, err
	}
	if pos+int(l) > len(buf) {
		return tlvElem{}, fmt.Errorf("truncated TLV value at offset %d (need %d bytes)", pos, l)
	}
	return tlvElem{typ: TLVType(t), val: buf[pos : pos+int(l)], end: pos + int(l)}, nil
}

// componentTLV encodes a Component as T=type L V=bytes, per spec.md §6's
// "Value = T=0x21 L NameComponent (raw TLV bytes)".
func componentTLV(c Component) []byte {
	return encodeTLV(TLVType(c.Type()), c.Bytes())
}

func decodeComponent(buf []byte) (Component, error) {
	e, err := readTLV(buf, 0)
	if err != nil {
		return nil, err
	}
	if e.end != len(buf) {
		return nil, fmt.Errorf("trailing bytes after component value")
	}
	return NewComponent(uint64(e.typ), append([]byte(nil), e.val...)), nil
}
