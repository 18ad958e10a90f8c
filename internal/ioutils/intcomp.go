// Package ioutils provides the length-prefixed binary encodings shared by
// the checkpoint format.
package ioutils

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/ronanh/intcomp"
)

// WriteNodeIDs compresses a sorted slice of node ids and writes it to w,
// prefixed with the compressed word count. Sorted ids are near-sequential
// integers and compress very well.
func WriteNodeIDs(w io.Writer, ids []int) error {
	words := make([]uint32, len(ids))
	for i, id := range ids {
		words[i] = uint32(id)
	}
	packed := intcomp.CompressUint32(words, nil)
	if err := binary.Write(w, binary.LittleEndian, uint64(len(packed))); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, packed)
}

// ReadNodeIDs decodes a node id slice written by WriteNodeIDs.
func ReadNodeIDs(in []byte) ([]int, error) {
	if len(in) < 8 {
		return nil, errors.New("ioutils: truncated id block")
	}
	length := binary.LittleEndian.Uint64(in[:8])
	in = in[8:]
	if uint64(len(in)) < 4*length {
		return nil, errors.New("ioutils: truncated id block")
	}
	packed := make([]uint32, length)
	for i := range packed {
		packed[i] = binary.LittleEndian.Uint32(in[4*i:])
	}
	words := intcomp.UncompressUint32(packed, nil)
	ids := make([]int, len(words))
	for i, v := range words {
		ids[i] = int(v)
	}
	return ids, nil
}
