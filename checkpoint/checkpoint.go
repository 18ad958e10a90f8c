// Package checkpoint stores finite element functions on disk and restores
// them onto compatible function spaces.
//
// A checkpoint holds the dof values of one function, either at every node of
// its space or at the nodes of a subset, together with enough of the space
// signature to refuse a reload onto an incompatible space. The layout is a
// fixed header of section lengths followed by four sections: metadata,
// node ids, values and a checksum over the first three.
package checkpoint

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/blang/semver/v4"
	"golang.org/x/sync/errgroup"

	wyvern "github.com/wyvern-fem/wyvern"
	"github.com/wyvern-fem/wyvern/fespace"
	"github.com/wyvern-fem/wyvern/field"
	"github.com/wyvern-fem/wyvern/logger"
)

var (
	// ErrFormat reports data that is not a checkpoint or is truncated.
	ErrFormat = errors.New("checkpoint: malformed data")
	// ErrChecksum reports payload corruption.
	ErrChecksum = errors.New("checkpoint: checksum mismatch")
	// ErrSpaceMismatch reports a load onto a space the checkpoint was not
	// written for.
	ErrSpaceMismatch = errors.New("checkpoint: function space mismatch")
)

const headerLen = 4 * 8

// maxSectionLen caps section sizes read from untrusted headers.
const maxSectionLen = 1 << 32

type header struct {
	// length in bytes of each section
	metaLen   uint64
	idsLen    uint64
	valuesLen uint64
	sumLen    uint64
}

func (h *header) toBytes() []byte {
	buf := make([]byte, 0, headerLen)

	buf = binary.LittleEndian.AppendUint64(buf, h.metaLen)
	buf = binary.LittleEndian.AppendUint64(buf, h.idsLen)
	buf = binary.LittleEndian.AppendUint64(buf, h.valuesLen)
	buf = binary.LittleEndian.AppendUint64(buf, h.sumLen)

	return buf
}

func (h *header) fromBytes(buf []byte) {
	h.metaLen = binary.LittleEndian.Uint64(buf[:8])
	h.idsLen = binary.LittleEndian.Uint64(buf[8:16])
	h.valuesLen = binary.LittleEndian.Uint64(buf[16:24])
	h.sumLen = binary.LittleEndian.Uint64(buf[24:32])
}

func (h *header) check() error {
	for _, l := range []uint64{h.metaLen, h.idsLen, h.valuesLen, h.sumLen} {
		if l > maxSectionLen {
			return fmt.Errorf("%w: section of %d bytes", ErrFormat, l)
		}
	}
	return nil
}

func (h *header) total() int64 {
	return int64(headerLen) + int64(h.metaLen) + int64(h.idsLen) + int64(h.valuesLen) + int64(h.sumLen)
}

// metadata travels in the first section so a checkpoint can be described
// without decoding its payload.
type metadata struct {
	Version   string
	Space     string
	NodeCount int
	ValueSize int
	Count     int
}

// Info describes a checkpoint without its payload.
type Info struct {
	Version   string // library version that wrote the checkpoint
	Space     string // signature of the function space
	NodeCount int    // nodes of the space
	ValueSize int    // scalars per node
	Count     int    // nodes stored
	Bytes     int64  // total size, header included
}

type config struct {
	subset *fespace.Subset
}

// Option configures a save.
type Option func(*config) error

// WithSubset restricts a save to the values at the nodes of sub. A load
// restores the stored nodes and leaves every other dof zero.
func WithSubset(sub *fespace.Subset) Option {
	return func(c *config) error {
		if sub == nil {
			return errors.New("checkpoint: nil subset")
		}
		c.subset = sub
		return nil
	}
}

func newConfig(opts ...Option) (config, error) {
	var cfg config
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return config{}, err
		}
	}
	return cfg, nil
}

// Save writes f to w. By default every node of the function's space is
// stored; WithSubset narrows the save to a node subset.
func Save(w io.Writer, f *field.Function, opts ...Option) error {
	log := logger.Logger()
	cfg, err := newConfig(opts...)
	if err != nil {
		return err
	}
	V := f.Space()
	if V.Mixed() {
		return errors.New("checkpoint: mixed space function, save the members separately")
	}
	if f.View() {
		return errors.New("checkpoint: function is a view, save through its root")
	}

	var ids []int
	if cfg.subset != nil {
		if !cfg.subset.Space().Equal(V) {
			return fmt.Errorf("checkpoint: subset indexes %s, function lives on %s", cfg.subset.Space(), V)
		}
		ids = cfg.subset.Indices()
	} else {
		ids = make([]int, V.NodeCount())
		for n := range ids {
			ids[n] = n
		}
	}

	vs := V.ValueSize()
	vals := make([]float64, len(ids)*vs)
	for i, n := range ids {
		for k := 0; k < vs; k++ {
			vals[i*vs+k] = f.At(n, k)
		}
	}

	meta := metadata{
		Version:   wyvern.Version.String(),
		Space:     V.String(),
		NodeCount: V.NodeCount(),
		ValueSize: vs,
		Count:     len(ids),
	}

	// encode the three data sections in parallel
	var metaB, idsB, valsB []byte
	var g errgroup.Group
	g.Go(func() error {
		var err error
		metaB, err = metaToBytes(meta)
		return err
	})
	g.Go(func() error {
		var err error
		idsB, err = idsToBytes(ids)
		return err
	})
	g.Go(func() error {
		var err error
		valsB, err = valuesToBytes(vals)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	sum := checksum(metaB, idsB, valsB)

	h := header{
		metaLen:   uint64(len(metaB)),
		idsLen:    uint64(len(idsB)),
		valuesLen: uint64(len(valsB)),
		sumLen:    uint64(len(sum)),
	}
	for _, block := range [][]byte{h.toBytes(), metaB, idsB, valsB, sum} {
		if _, err := w.Write(block); err != nil {
			return err
		}
	}

	log.Debug().Str("space", meta.Space).Int("nodes", meta.Count).
		Int64("bytes", h.total()).Msg("wrote checkpoint")
	return nil
}

// Load reads a checkpoint from r and restores it as a function on V, which
// must match the space the checkpoint was written for. The returned subset
// holds the stored node ids when the checkpoint covers only part of the
// space, and is nil for a full save.
func Load(r io.Reader, V *fespace.FunctionSpace) (*field.Function, *fespace.Subset, error) {
	log := logger.Logger()
	if V.Mixed() {
		return nil, nil, errors.New("checkpoint: mixed space, load the members separately")
	}

	var hb [headerLen]byte
	if _, err := io.ReadFull(r, hb[:]); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	h := new(header)
	h.fromBytes(hb[:])
	if err := h.check(); err != nil {
		return nil, nil, err
	}

	metaB := make([]byte, h.metaLen)
	idsB := make([]byte, h.idsLen)
	valsB := make([]byte, h.valuesLen)
	sum := make([]byte, h.sumLen)
	for _, block := range [][]byte{metaB, idsB, valsB, sum} {
		if _, err := io.ReadFull(r, block); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
	}
	if !bytes.Equal(sum, checksum(metaB, idsB, valsB)) {
		return nil, nil, ErrChecksum
	}

	var meta metadata
	if err := metaFromBytes(&meta, metaB); err != nil {
		return nil, nil, err
	}
	if err := checkVersion(meta.Version); err != nil {
		return nil, nil, err
	}
	if meta.Space != V.String() || meta.NodeCount != V.NodeCount() || meta.ValueSize != V.ValueSize() {
		return nil, nil, fmt.Errorf("%w: written for %s with %d nodes, loading onto %s with %d",
			ErrSpaceMismatch, meta.Space, meta.NodeCount, V, V.NodeCount())
	}

	// decode the payload sections in parallel
	var (
		ids  []int
		vals []float64
		g    errgroup.Group
	)
	g.Go(func() error {
		var err error
		ids, err = idsFromBytes(idsB)
		return err
	})
	g.Go(func() error {
		var err error
		vals, err = valuesFromBytes(valsB)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if len(ids) != meta.Count {
		return nil, nil, fmt.Errorf("%w: %d ids stored, metadata says %d", ErrFormat, len(ids), meta.Count)
	}
	if len(vals) != meta.Count*meta.ValueSize {
		return nil, nil, fmt.Errorf("%w: %d values stored for %d nodes", ErrFormat, len(vals), meta.Count)
	}

	f := field.New(V)
	for i, n := range ids {
		if n < 0 || n >= meta.NodeCount {
			return nil, nil, fmt.Errorf("%w: node id %d out of range", ErrFormat, n)
		}
		for k := 0; k < meta.ValueSize; k++ {
			f.SetAt(n, k, vals[i*meta.ValueSize+k])
		}
	}

	log.Debug().Str("space", meta.Space).Int("nodes", meta.Count).Msg("read checkpoint")

	if meta.Count == meta.NodeCount {
		return f, nil, nil
	}
	return f, fespace.NewSubset(V, ids), nil
}

// Inspect reads the header and metadata of a checkpoint and describes it.
// It does not verify the checksum.
func Inspect(r io.Reader) (Info, error) {
	var hb [headerLen]byte
	if _, err := io.ReadFull(r, hb[:]); err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	h := new(header)
	h.fromBytes(hb[:])
	if err := h.check(); err != nil {
		return Info{}, err
	}
	metaB := make([]byte, h.metaLen)
	if _, err := io.ReadFull(r, metaB); err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	var meta metadata
	if err := metaFromBytes(&meta, metaB); err != nil {
		return Info{}, err
	}
	return Info{
		Version:   meta.Version,
		Space:     meta.Space,
		NodeCount: meta.NodeCount,
		ValueSize: meta.ValueSize,
		Count:     meta.Count,
		Bytes:     h.total(),
	}, nil
}

// checkVersion warns when the checkpoint was written by a different library
// version. Unparsable versions are rejected.
func checkVersion(stored string) error {
	objectVersion, err := semver.Parse(stored)
	if err != nil {
		return fmt.Errorf("%w: version %q: %v", ErrFormat, stored, err)
	}
	if wyvern.Version.Compare(objectVersion) != 0 {
		log := logger.Logger()
		log.Warn().Str("binary", wyvern.Version.String()).Str("checkpoint", objectVersion.String()).
			Msg("version mismatch, no compatibility guarantees")
	}
	return nil
}
