// Package safetensors reads and writes the SafeTensors weight format.
//
// Layout:
//
//	[8 bytes: header size N, uint64 little-endian]
//	[N bytes: JSON header {name: {dtype, shape, data_offsets}, "__metadata__": {...}}]
//	[tensor data; offsets are relative to the end of the header]
//
// Files are memory-mapped where the platform allows it.
package safetensors

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"slices"

	"github.com/goccy/go-json"
)

// MaxHeaderSize bounds the JSON header.
const MaxHeaderSize = 100 << 20

var (
	ErrInvalidHeader    = errors.New("safetensors: invalid header")
	ErrNotFound         = errors.New("safetensors: tensor not found")
	ErrUnsupportedDType = errors.New("safetensors: unsupported dtype")
)

// DType is a SafeTensors element type.
type DType string

const (
	F16  DType = "F16"
	BF16 DType = "BF16"
	F32  DType = "F32"
	F64  DType = "F64"
)

// Size returns the element size in bytes, or 0 for unsupported types.
func (d DType) Size() int {
	switch d {
	case F16, BF16:
		return 2
	case F32:
		return 4
	case F64:
		return 8
	default:
		return 0
	}
}

// Info describes one tensor in the header.
type Info struct {
	DType       DType    `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// NumElements returns the product of the shape.
func (i Info) NumElements() int {
	n := 1
	for _, d := range i.Shape {
		n *= d
	}
	return n
}

// File is an open SafeTensors file.
type File struct {
	data     []byte
	release  func() error
	tensors  map[string]Info
	metadata map[string]string
	start    int64
}

// Open maps path and parses its header. Call Close when done.
func Open(path string) (*File, error) {
	//nolint:gosec // G304: weight paths come from the caller
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("safetensors: open: %w", err)
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("safetensors: stat: %w", err)
	}
	if stat.Size() < 8 {
		return nil, fmt.Errorf("%w: file too small (%d bytes)", ErrInvalidHeader, stat.Size())
	}

	data, release, err := mapFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("safetensors: map %s: %w", path, err)
	}

	sf, err := parse(data)
	if err != nil {
		_ = release()
		return nil, err
	}
	sf.release = release
	return sf, nil
}

// Parse reads a SafeTensors image held in memory.
func Parse(data []byte) (*File, error) {
	return parse(data)
}

func parse(data []byte) (*File, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: missing header size", ErrInvalidHeader)
	}
	size := binary.LittleEndian.Uint64(data[:8])
	if size > MaxHeaderSize || size > uint64(len(data)-8) {
		return nil, fmt.Errorf("%w: header size %d out of range", ErrInvalidHeader, size)
	}
	start := int64(8 + size) //nolint:gosec // G115: bounded by len(data)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data[8:start], &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}

	f := &File{data: data, tensors: make(map[string]Info, len(raw)), start: start}
	body := int64(len(data)) - start
	for name, msg := range raw {
		if name == "__metadata__" {
			if err := json.Unmarshal(msg, &f.metadata); err != nil {
				return nil, fmt.Errorf("%w: metadata: %w", ErrInvalidHeader, err)
			}
			continue
		}
		var info Info
		if err := json.Unmarshal(msg, &info); err != nil {
			return nil, fmt.Errorf("%w: tensor %s: %w", ErrInvalidHeader, name, err)
		}
		begin, end := info.DataOffsets[0], info.DataOffsets[1]
		if begin < 0 || end < begin || end > body {
			return nil, fmt.Errorf("%w: tensor %s offsets [%d, %d] outside %d data bytes",
				ErrInvalidHeader, name, begin, end, body)
		}
		if sz := info.DType.Size(); sz != 0 && int64(info.NumElements()*sz) != end-begin {
			return nil, fmt.Errorf("%w: tensor %s holds %d bytes, shape %v needs %d",
				ErrInvalidHeader, name, end-begin, info.Shape, info.NumElements()*sz)
		}
		f.tensors[name] = info
	}
	return f, nil
}

// Close releases the mapping.
func (f *File) Close() error {
	if f.release == nil {
		return nil
	}
	err := f.release()
	f.release = nil
	f.data = nil
	return err
}

// Names returns the tensor names in sorted order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.tensors))
	for name := range f.tensors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Info returns the header entry for name.
func (f *File) Info(name string) (Info, error) {
	info, ok := f.tensors[name]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return info, nil
}

// Metadata returns the optional "__metadata__" map.
func (f *File) Metadata() map[string]string {
	return f.metadata
}

// Bytes returns the raw data of name. The slice aliases the mapping and is
// only valid until Close.
func (f *File) Bytes(name string) ([]byte, error) {
	info, err := f.Info(name)
	if err != nil {
		return nil, err
	}
	return f.data[f.start+info.DataOffsets[0] : f.start+info.DataOffsets[1]], nil
}

// Float32 decodes name into a new float32 slice. F16, BF16 and F64 data is converted.
func (f *File) Float32(name string) ([]float32, []int, error) {
	info, err := f.Info(name)
	if err != nil {
		return nil, nil, err
	}
	raw, err := f.Bytes(name)
	if err != nil {
		return nil, nil, err
	}

	out := make([]float32, info.NumElements())
	switch info.DType {
	case F32:
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	case F64:
		for i := range out {
			out[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:])))
		}
	case F16:
		for i := range out {
			out[i] = halfToFloat32(binary.LittleEndian.Uint16(raw[i*2:]))
		}
	case BF16:
		for i := range out {
			out[i] = math.Float32frombits(uint32(binary.LittleEndian.Uint16(raw[i*2:])) << 16)
		}
	default:
		return nil, nil, fmt.Errorf("%w: %s is %s", ErrUnsupportedDType, name, info.DType)
	}
	return out, slices.Clone(info.Shape), nil
}

// halfToFloat32 converts an IEEE 754 binary16 value.
func halfToFloat32(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := uint32(h>>10) & 0x1f
	frac := uint32(h) & 0x3ff

	switch exp {
	case 0:
		if frac == 0 {
			return math.Float32frombits(sign)
		}
		// Subnormal: normalize.
		e := uint32(127 - 15 + 1)
		for frac&0x400 == 0 {
			frac <<= 1
			e--
		}
		frac &= 0x3ff
		return math.Float32frombits(sign | e<<23 | frac<<13)
	case 0x1f:
		return math.Float32frombits(sign | 0xff<<23 | frac<<13)
	default:
		return math.Float32frombits(sign | (exp+127-15)<<23 | frac<<13)
	}
}
