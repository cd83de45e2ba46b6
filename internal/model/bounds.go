package model

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Bounds blobs are little-endian: uint32 rows, uint32 cols, then
// rows*cols float64 values in row-major order. cols is always 2.
const boundsHeaderSize = 8

// EncodeBounds serialises bounds for the manifests.bounds column.
// Nil bounds encode to nil (a boundless manifest).
func EncodeBounds(b Bounds) []byte {
	if b == nil {
		return nil
	}
	buf := make([]byte, boundsHeaderSize+len(b)*16)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(b)))
	binary.LittleEndian.PutUint32(buf[4:8], 2)
	off := boundsHeaderSize
	for _, row := range b {
		binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(row[0]))
		binary.LittleEndian.PutUint64(buf[off+8:], math.Float64bits(row[1]))
		off += 16
	}
	return buf
}

// DecodeBounds parses a blob written by EncodeBounds.
func DecodeBounds(data []byte) (Bounds, error) {
	if data == nil {
		return nil, nil
	}
	if len(data) < boundsHeaderSize {
		return nil, fmt.Errorf("bounds blob too short: %d bytes", len(data))
	}
	rows := binary.LittleEndian.Uint32(data[0:4])
	cols := binary.LittleEndian.Uint32(data[4:8])
	if cols != 2 {
		return nil, fmt.Errorf("bounds blob has %d columns, want 2", cols)
	}
	want := boundsHeaderSize + int(rows)*16
	if len(data) != want {
		return nil, fmt.Errorf("bounds blob is %d bytes, want %d", len(data), want)
	}
	b := make(Bounds, rows)
	r := bytes.NewReader(data[boundsHeaderSize:])
	for i := range b {
		if err := binary.Read(r, binary.LittleEndian, &b[i]); err != nil {
			return nil, fmt.Errorf("bounds row %d: %w", i, err)
		}
	}
	return b, nil
}
