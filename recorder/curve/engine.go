package curve

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Magic opens every .engine file.
const Magic = "esreng"

// maxNameLen bounds the engine name read from disk.
const maxNameLen = 1 << 16

var (
	// ErrBadMagic means the file does not start with Magic.
	ErrBadMagic = errors.New("not an engine file")
	// ErrTruncated means the file ended inside a field.
	ErrTruncated = errors.New("truncated engine record")
	// ErrUnusable means the curve lacks a 0% or 100% throttle bucket.
	ErrUnusable = errors.New("engine curve is missing the 0% or 100% throttle bucket")
)

// EngineHeader is the content of a .engine file.
//
// Layout, little-endian: magic, u16 RPM count, u16 throttle count,
// f32 displacement, i32 redline, uvarint-length-prefixed UTF-8 name,
// i32 per RPM, i8 per throttle.
type EngineHeader struct {
	Name         string
	Displacement float64
	Redline      int
	RPMs         []int
	Throttles    []int
}

// WriteEngine encodes h. RPM and throttle counts must fit in 16 bits and
// every throttle in a signed byte.
func WriteEngine(w io.Writer, h EngineHeader) error {
	if len(h.RPMs) > math.MaxUint16 || len(h.Throttles) > math.MaxUint16 {
		return fmt.Errorf("grid too large: %d rpms, %d throttles", len(h.RPMs), len(h.Throttles))
	}
	var buf bytes.Buffer
	buf.WriteString(Magic)
	le := binary.LittleEndian
	_ = binary.Write(&buf, le, uint16(len(h.RPMs)))
	_ = binary.Write(&buf, le, uint16(len(h.Throttles)))
	_ = binary.Write(&buf, le, float32(h.Displacement))
	_ = binary.Write(&buf, le, int32(h.Redline))
	buf.Write(binary.AppendUvarint(nil, uint64(len(h.Name))))
	buf.WriteString(h.Name)
	for _, rpm := range h.RPMs {
		_ = binary.Write(&buf, le, int32(rpm))
	}
	for _, t := range h.Throttles {
		if t < math.MinInt8 || t > math.MaxInt8 {
			return fmt.Errorf("throttle %d does not fit the engine record", t)
		}
		_ = binary.Write(&buf, le, int8(t))
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// ReadEngine decodes a .engine record. Returns ErrBadMagic or
// ErrTruncated (wrapped) on malformed input.
func ReadEngine(r io.Reader) (EngineHeader, error) {
	var h EngineHeader
	br := bufio.NewReader(r)
	le := binary.LittleEndian

	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return h, truncated("magic", err)
	}
	if string(magic) != Magic {
		return h, fmt.Errorf("%w: magic %q", ErrBadMagic, magic)
	}

	var rpmCount, throttleCount uint16
	if err := binary.Read(br, le, &rpmCount); err != nil {
		return h, truncated("rpm count", err)
	}
	if err := binary.Read(br, le, &throttleCount); err != nil {
		return h, truncated("throttle count", err)
	}
	var displacement float32
	if err := binary.Read(br, le, &displacement); err != nil {
		return h, truncated("displacement", err)
	}
	var redline int32
	if err := binary.Read(br, le, &redline); err != nil {
		return h, truncated("redline", err)
	}
	nameLen, err := binary.ReadUvarint(br)
	if err != nil {
		return h, truncated("name length", err)
	}
	if nameLen > maxNameLen {
		return h, fmt.Errorf("%w: name length %d", ErrTruncated, nameLen)
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(br, name); err != nil {
		return h, truncated("name", err)
	}

	rpms := make([]int32, rpmCount)
	if err := binary.Read(br, le, rpms); err != nil {
		return h, truncated("rpm list", err)
	}
	throttles := make([]int8, throttleCount)
	if err := binary.Read(br, le, throttles); err != nil {
		return h, truncated("throttle list", err)
	}

	h.Name = string(name)
	h.Displacement = float64(displacement)
	h.Redline = int(redline)
	h.RPMs = make([]int, len(rpms))
	for i, v := range rpms {
		h.RPMs[i] = int(v)
	}
	h.Throttles = make([]int, len(throttles))
	for i, v := range throttles {
		h.Throttles[i] = int(v)
	}
	return h, nil
}

func truncated(field string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: reading %s", ErrTruncated, field)
	}
	return fmt.Errorf("reading %s: %w", field, err)
}
