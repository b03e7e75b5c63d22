// Package pointfile implements the on-disk point-cloud tile format the
// catalog reads and writes. A tile is a small fixed header (magic, point
// count, bounding box) followed by a zstd-compressed stream of fixed-width
// point records. The package also provides the catalog's Store collaborator
// on top of the codec.
package pointfile

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/Geethen/lidR/catalog"
)

// Ext is the file extension of point-cloud tiles.
const Ext = ".lpc"

const (
	magic      = "LPC1"
	headerSize = 4 + 8 + 4*8
	recordSize = 3*8 + 2 + 1
)

var errBadMagic = errors.New("not a point-cloud tile file")

// Header is the fixed-size tile file header.
type Header struct {
	PointCount uint64
	Bounds     catalog.Bounds
}

// ReadHeader reads just the header of a tile file.
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()
	return readHeader(f)
}

func readHeader(r io.Reader) (Header, error) {
	// Verify the magic on its own first: a foreign file too short for a
	// full header must still be rejected as not-a-tile, not as a truncated
	// read.
	var m [4]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, errBadMagic
		}
		return Header{}, fmt.Errorf("reading tile header: %w", err)
	}
	if string(m[:]) != magic {
		return Header{}, errBadMagic
	}

	buf := make([]byte, headerSize-len(m))
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, fmt.Errorf("reading tile header: %w", err)
	}
	h := Header{PointCount: binary.LittleEndian.Uint64(buf[0:8])}
	h.Bounds.XMin = math.Float64frombits(binary.LittleEndian.Uint64(buf[8:16]))
	h.Bounds.XMax = math.Float64frombits(binary.LittleEndian.Uint64(buf[16:24]))
	h.Bounds.YMin = math.Float64frombits(binary.LittleEndian.Uint64(buf[24:32]))
	h.Bounds.YMax = math.Float64frombits(binary.LittleEndian.Uint64(buf[32:40]))
	return h, nil
}

func writeHeader(w io.Writer, h Header) error {
	buf := make([]byte, headerSize)
	copy(buf[:4], magic)
	binary.LittleEndian.PutUint64(buf[4:12], h.PointCount)
	binary.LittleEndian.PutUint64(buf[12:20], math.Float64bits(h.Bounds.XMin))
	binary.LittleEndian.PutUint64(buf[20:28], math.Float64bits(h.Bounds.XMax))
	binary.LittleEndian.PutUint64(buf[28:36], math.Float64bits(h.Bounds.YMin))
	binary.LittleEndian.PutUint64(buf[36:44], math.Float64bits(h.Bounds.YMax))
	_, err := w.Write(buf)
	return err
}

// ReadTile loads every point of one tile file.
func ReadTile(path string) ([]catalog.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h, err := readHeader(f)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("opening zstd stream of %s: %w", path, err)
	}
	defer dec.Close()

	points := make([]catalog.Point, 0, h.PointCount)
	rec := make([]byte, recordSize)
	for i := uint64(0); i < h.PointCount; i++ {
		if _, err := io.ReadFull(dec, rec); err != nil {
			return nil, fmt.Errorf("reading point %d of %s: %w", i, path, err)
		}
		points = append(points, decodePoint(rec))
	}
	return points, nil
}

// WriteTile writes the points as one tile file, computing the header
// bounding box from the data. An empty batch produces a header-only file
// with a zero point count.
func WriteTile(path string, points []catalog.Point) (catalog.WriteReport, error) {
	f, err := os.Create(path)
	if err != nil {
		return catalog.WriteReport{}, err
	}
	defer f.Close()

	h := Header{PointCount: uint64(len(points)), Bounds: boundsOf(points)}
	if err := writeHeader(f, h); err != nil {
		return catalog.WriteReport{}, fmt.Errorf("writing tile header: %w", err)
	}

	bw := bufio.NewWriter(f)
	enc, err := zstd.NewWriter(bw)
	if err != nil {
		return catalog.WriteReport{}, err
	}
	rec := make([]byte, recordSize)
	for _, p := range points {
		encodePoint(rec, p)
		if _, err := enc.Write(rec); err != nil {
			enc.Close()
			return catalog.WriteReport{}, fmt.Errorf("writing point records: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		return catalog.WriteReport{}, err
	}
	if err := bw.Flush(); err != nil {
		return catalog.WriteReport{}, err
	}
	if err := f.Sync(); err != nil {
		return catalog.WriteReport{}, err
	}
	return catalog.WriteReport{Path: path, PointCount: h.PointCount}, nil
}

func decodePoint(rec []byte) catalog.Point {
	return catalog.Point{
		X:              math.Float64frombits(binary.LittleEndian.Uint64(rec[0:8])),
		Y:              math.Float64frombits(binary.LittleEndian.Uint64(rec[8:16])),
		Z:              math.Float64frombits(binary.LittleEndian.Uint64(rec[16:24])),
		Intensity:      binary.LittleEndian.Uint16(rec[24:26]),
		Classification: rec[26],
	}
}

func encodePoint(rec []byte, p catalog.Point) {
	binary.LittleEndian.PutUint64(rec[0:8], math.Float64bits(p.X))
	binary.LittleEndian.PutUint64(rec[8:16], math.Float64bits(p.Y))
	binary.LittleEndian.PutUint64(rec[16:24], math.Float64bits(p.Z))
	binary.LittleEndian.PutUint16(rec[24:26], p.Intensity)
	rec[26] = p.Classification
}

func boundsOf(points []catalog.Point) catalog.Bounds {
	if len(points) == 0 {
		return catalog.Bounds{}
	}
	b := catalog.Bounds{XMin: points[0].X, XMax: points[0].X, YMin: points[0].Y, YMax: points[0].Y}
	for _, p := range points[1:] {
		b.XMin = math.Min(b.XMin, p.X)
		b.XMax = math.Max(b.XMax, p.X)
		b.YMin = math.Min(b.YMin, p.Y)
		b.YMax = math.Max(b.YMax, p.Y)
	}
	return b
}

// Store is the plain, uncached Store implementation over the tile codec.
type Store struct{}

// NewStore returns a Store reading and writing tile files directly.
func NewStore() *Store { return &Store{} }

func (s *Store) Extension() string { return Ext }

func (s *Store) Header(path string) (catalog.TileHeader, error) {
	h, err := ReadHeader(path)
	if err != nil {
		return catalog.TileHeader{}, err
	}
	return catalog.TileHeader{PointCount: h.PointCount, Bounds: h.Bounds}, nil
}

// Read loads the given tiles in order and keeps the points passing the
// filter, merging everything into one batch.
func (s *Store) Read(ctx context.Context, paths []string, flt catalog.Filter) (*catalog.PointBatch, error) {
	batch := &catalog.PointBatch{Points: []catalog.Point{}}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		points, err := ReadTile(path)
		if err != nil {
			return nil, err
		}
		for _, p := range points {
			if flt.Keep(p.X, p.Y, p.Z, p.Classification) {
				batch.Points = append(batch.Points, p)
			}
		}
	}
	return batch, nil
}

func (s *Store) Write(ctx context.Context, path string, batch *catalog.PointBatch) (catalog.WriteReport, error) {
	if err := ctx.Err(); err != nil {
		return catalog.WriteReport{}, err
	}
	var points []catalog.Point
	if batch != nil {
		points = batch.Points
	}
	return WriteTile(path, points)
}
