package checkpoint

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/consensys/compress/lzss"
	"github.com/fxamacker/cbor/v2"
	"github.com/icza/bitio"
	"golang.org/x/crypto/blake2b"

	"github.com/wyvern-fem/wyvern/internal/ioutils"
)

func metaToBytes(meta metadata) ([]byte, error) {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	return em.Marshal(meta)
}

func metaFromBytes(meta *metadata, in []byte) error {
	dm, err := cbor.DecOptions{
		MaxArrayElements: 2147483647,
		MaxMapPairs:      2147483647,
	}.DecMode()
	if err != nil {
		return err
	}
	if err := dm.Unmarshal(in, meta); err != nil {
		return fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return nil
}

func idsToBytes(ids []int) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(8 + 4*len(ids))
	if err := ioutils.WriteNodeIDs(&buf, ids); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func idsFromBytes(in []byte) ([]int, error) {
	ids, err := ioutils.ReadNodeIDs(in)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return ids, nil
}

// Values are stored as a nonzero bitmap followed by the nonzero scalars.
// Exact zeros are common in solution fields, unset components and
// homogenized constraints, so the bitmap pays for itself. The block is
// entropy coded when that shrinks it, kept raw otherwise.
const (
	valuesRaw  = 0
	valuesLzss = 1
)

func valuesToBytes(vals []float64) ([]byte, error) {
	var raw bytes.Buffer
	raw.Grow(8 + len(vals)/8 + 8*len(vals))
	if err := binary.Write(&raw, binary.LittleEndian, uint64(len(vals))); err != nil {
		return nil, err
	}
	bw := bitio.NewWriter(&raw)
	for _, v := range vals {
		bit := uint64(0)
		if v != 0 {
			bit = 1
		}
		if err := bw.WriteBits(bit, 1); err != nil {
			return nil, err
		}
	}
	if err := bw.Close(); err != nil {
		return nil, err
	}
	for _, v := range vals {
		if v == 0 {
			continue
		}
		if err := binary.Write(&raw, binary.LittleEndian, math.Float64bits(v)); err != nil {
			return nil, err
		}
	}

	if raw.Len() <= lzss.MaxInputSize {
		compressor, err := lzss.NewCompressor(nil, lzss.GoodCompression)
		if err != nil {
			return nil, err
		}
		c, err := compressor.Compress(raw.Bytes())
		if err != nil {
			return nil, err
		}
		if len(c) < raw.Len() {
			return append([]byte{valuesLzss}, c...), nil
		}
	}
	return append([]byte{valuesRaw}, raw.Bytes()...), nil
}

func valuesFromBytes(in []byte) ([]float64, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: empty value block", ErrFormat)
	}
	mode := in[0]
	in = in[1:]
	switch mode {
	case valuesRaw:
	case valuesLzss:
		d, err := lzss.Decompress(in, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		in = d
	default:
		return nil, fmt.Errorf("%w: unknown value encoding %d", ErrFormat, mode)
	}

	if len(in) < 8 {
		return nil, fmt.Errorf("%w: truncated value block", ErrFormat)
	}
	count := binary.LittleEndian.Uint64(in[:8])
	in = in[8:]
	if count > maxSectionLen {
		return nil, fmt.Errorf("%w: %d values", ErrFormat, count)
	}

	maskBytes := (count + 7) / 8
	if uint64(len(in)) < maskBytes {
		return nil, fmt.Errorf("%w: truncated value block", ErrFormat)
	}
	br := bitio.NewReader(bytes.NewReader(in[:maskBytes]))
	set := make([]bool, count)
	nonzero := 0
	for i := range set {
		bit, err := br.ReadBits(1)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		if bit == 1 {
			set[i] = true
			nonzero++
		}
	}
	in = in[maskBytes:]
	if uint64(len(in)) != 8*uint64(nonzero) {
		return nil, fmt.Errorf("%w: %d bytes of values for %d set bits", ErrFormat, len(in), nonzero)
	}

	vals := make([]float64, count)
	j := 0
	for i := range vals {
		if !set[i] {
			continue
		}
		vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(in[8*j:]))
		j++
	}
	return vals, nil
}

func checksum(blocks ...[]byte) []byte {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err)
	}
	for _, b := range blocks {
		h.Write(b)
	}
	return h.Sum(nil)
}
