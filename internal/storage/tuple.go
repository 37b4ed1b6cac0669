package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/cuemby/slotdb/internal/types"
)

// Tuple encoding is self-describing: one tag byte per value followed by
// its payload. Text carries a u32-LE length prefix so decoding never has
// to guess where a value ends.
const (
	tagNull byte = iota
	tagInt
	tagText
	tagBool
)

// EncodeRow serializes a Row deterministically; decode(encode(r)) == r.
func EncodeRow(row types.Row) []byte {
	buf := make([]byte, 0, 16*len(row.Values))
	var scratch [8]byte
	binary.LittleEndian.PutUint32(scratch[:4], uint32(len(row.Values)))
	buf = append(buf, scratch[:4]...)

	for _, v := range row.Values {
		switch v.Kind() {
		case types.KindNull:
			buf = append(buf, tagNull)
		case types.KindBool:
			buf = append(buf, tagBool)
			if v.Bool() {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		case types.KindInt:
			buf = append(buf, tagInt)
			binary.LittleEndian.PutUint64(scratch[:8], uint64(v.Int()))
			buf = append(buf, scratch[:8]...)
		case types.KindText:
			buf = append(buf, tagText)
			s := v.Text()
			binary.LittleEndian.PutUint32(scratch[:4], uint32(len(s)))
			buf = append(buf, scratch[:4]...)
			buf = append(buf, s...)
		}
	}
	return buf
}

// DecodeRow is the inverse of EncodeRow.
func DecodeRow(data []byte) (types.Row, error) {
	if len(data) < 4 {
		return types.Row{}, fmt.Errorf("%w: tuple too short for column count", types.ErrStorage)
	}
	n := binary.LittleEndian.Uint32(data[:4])
	off := 4
	values := make([]types.Value, 0, n)
	for i := uint32(0); i < n; i++ {
		if off >= len(data) {
			return types.Row{}, fmt.Errorf("%w: tuple truncated at value %d", types.ErrStorage, i)
		}
		tag := data[off]
		off++
		switch tag {
		case tagNull:
			values = append(values, types.NullValue())
		case tagBool:
			if off >= len(data) {
				return types.Row{}, fmt.Errorf("%w: tuple truncated decoding bool", types.ErrStorage)
			}
			values = append(values, types.BoolValue(data[off] != 0))
			off++
		case tagInt:
			if off+8 > len(data) {
				return types.Row{}, fmt.Errorf("%w: tuple truncated decoding int", types.ErrStorage)
			}
			values = append(values, types.IntValue(int64(binary.LittleEndian.Uint64(data[off:off+8]))))
			off += 8
		case tagText:
			if off+4 > len(data) {
				return types.Row{}, fmt.Errorf("%w: tuple truncated decoding text length", types.ErrStorage)
			}
			l := binary.LittleEndian.Uint32(data[off : off+4])
			off += 4
			if off+int(l) > len(data) {
				return types.Row{}, fmt.Errorf("%w: tuple truncated decoding text body", types.ErrStorage)
			}
			values = append(values, types.TextValue(string(data[off:off+int(l)])))
			off += int(l)
		default:
			return types.Row{}, fmt.Errorf("%w: unknown tuple tag %d", types.ErrStorage, tag)
		}
	}
	return types.Row{Values: values}, nil
}
