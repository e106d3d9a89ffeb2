// Package slc reads and writes volumes in the SLC format: a short ASCII
// header followed by an icon and one optionally run-length encoded 8-bit
// plane per slice.
package slc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"gonum.org/v1/gonum/spatial/r3"

	"kneeviz/internal/models"
)

// Magic is the number every SLC file starts with
const Magic = 11111

// Compression schemes
const (
	Raw = 0
	RLE = 1
)

var (
	// ErrBadMagic is returned for input that does not start with Magic
	ErrBadMagic = errors.New("slc: bad magic number")
	// ErrUnsupported is returned for valid files using features not handled here
	ErrUnsupported = errors.New("slc: unsupported file")
	// ErrCorrupt is returned when sizes in the file are inconsistent
	ErrCorrupt = errors.New("slc: corrupt file")
)

// maxDim bounds each volume and icon dimension
const maxDim = 4096

// Header describes the volume stored in an SLC file
type Header struct {
	Width, Height, Depth int
	Bits                 int
	Spacing              r3.Vec
	Units                int
	DataOrigin           int
	DataModel            int
	Compression          int
}

// Read decodes an SLC volume. The origin of the returned volume is zero.
func Read(r io.Reader) (*models.Volume, error) {
	br := bufio.NewReader(r)

	magic, err := readInt(br)
	if err != nil {
		return nil, fmt.Errorf("slc: read magic: %w", err)
	}
	if magic != Magic {
		return nil, ErrBadMagic
	}

	var h Header
	for _, dst := range []*int{&h.Width, &h.Height, &h.Depth, &h.Bits} {
		if *dst, err = readInt(br); err != nil {
			return nil, fmt.Errorf("slc: read dimensions: %w", err)
		}
	}
	for _, dst := range []*float64{&h.Spacing.X, &h.Spacing.Y, &h.Spacing.Z} {
		if *dst, err = readFloat(br); err != nil {
			return nil, fmt.Errorf("slc: read spacing: %w", err)
		}
	}
	for _, dst := range []*int{&h.Units, &h.DataOrigin, &h.DataModel, &h.Compression} {
		if *dst, err = readInt(br); err != nil {
			return nil, fmt.Errorf("slc: read data description: %w", err)
		}
	}

	if h.Bits != 8 {
		return nil, fmt.Errorf("%w: %d bits per voxel", ErrUnsupported, h.Bits)
	}
	if h.Compression != Raw && h.Compression != RLE {
		return nil, fmt.Errorf("%w: compression %d", ErrUnsupported, h.Compression)
	}
	if h.Width <= 0 || h.Height <= 0 || h.Depth <= 0 ||
		h.Width > maxDim || h.Height > maxDim || h.Depth > maxDim {
		return nil, fmt.Errorf("%w: dimensions %dx%dx%d", ErrUnsupported, h.Width, h.Height, h.Depth)
	}

	iconW, err := readInt(br)
	if err != nil {
		return nil, fmt.Errorf("slc: read icon size: %w", err)
	}
	iconH, err := readInt(br)
	if err != nil {
		return nil, fmt.Errorf("slc: read icon size: %w", err)
	}
	if iconW < 0 || iconH < 0 || iconW > maxDim || iconH > maxDim {
		return nil, fmt.Errorf("%w: icon size %dx%d", ErrCorrupt, iconW, iconH)
	}
	if err := readMarker(br); err != nil {
		return nil, fmt.Errorf("slc: icon: %w", err)
	}
	if _, err := io.CopyN(io.Discard, br, int64(3*iconW*iconH)); err != nil {
		return nil, fmt.Errorf("slc: skip icon: %w", err)
	}

	vol := models.NewVolume(h.Width, h.Height, h.Depth)
	vol.Spacing = h.Spacing
	plane := h.Width * h.Height
	decoded := make([]byte, plane)

	for z := 0; z < h.Depth; z++ {
		size, err := readInt(br)
		if err != nil {
			return nil, fmt.Errorf("slc: slice %d size: %w", z, err)
		}
		if err := readMarker(br); err != nil {
			return nil, fmt.Errorf("slc: slice %d: %w", z, err)
		}
		// run-length slices never exceed two bytes per voxel plus the terminator
		if size < 0 || (h.Compression == Raw && size != plane) || size > 2*plane+1 {
			return nil, fmt.Errorf("%w: slice %d has %d bytes for %d voxels", ErrCorrupt, z, size, plane)
		}
		buf := make([]byte, size)
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("slc: slice %d data: %w", z, err)
		}

		switch h.Compression {
		case Raw:
			copy(decoded, buf)
		case RLE:
			if err := decodeRLE(buf, decoded); err != nil {
				return nil, fmt.Errorf("slc: slice %d: %w", z, err)
			}
		}

		off := z * plane
		for i, b := range decoded {
			vol.Data[off+i] = float64(b)
		}
	}
	return vol, nil
}

// ReadFile decodes the SLC volume stored at path
func ReadFile(path string) (*models.Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Write encodes vol as an 8-bit SLC volume. Values are rounded and clamped
// to [0, 255]. With compress set slices are run-length encoded.
func Write(w io.Writer, vol *models.Volume, compress bool) error {
	bw := bufio.NewWriter(w)

	compression := Raw
	if compress {
		compression = RLE
	}
	spacing := vol.Spacing
	if spacing == (r3.Vec{}) {
		spacing = r3.Vec{X: 1, Y: 1, Z: 1}
	}

	fmt.Fprintf(bw, "%d\n", Magic)
	fmt.Fprintf(bw, "%d %d %d 8\n", vol.Width, vol.Height, vol.Depth)
	fmt.Fprintf(bw, "%g %g %g\n", spacing.X, spacing.Y, spacing.Z)
	fmt.Fprintf(bw, "0 0 7 %d\n", compression)
	fmt.Fprintf(bw, "0 0 X")

	plane := vol.Width * vol.Height
	raw := make([]byte, plane)
	for z := 0; z < vol.Depth; z++ {
		for i := range raw {
			raw[i] = quantize(vol.Data[z*plane+i])
		}
		data := raw
		if compress {
			data = encodeRLE(raw)
		}
		fmt.Fprintf(bw, "%d X", len(data))
		if _, err := bw.Write(data); err != nil {
			return fmt.Errorf("slc: write slice %d: %w", z, err)
		}
	}
	return bw.Flush()
}

// WriteFile encodes vol to path
func WriteFile(path string, vol *models.Volume, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, vol, compress); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func quantize(v float64) byte {
	return byte(math.Max(0, math.Min(255, math.Round(v))))
}

// decodeRLE expands an SLC run-length slice into dst. A control byte with
// the high bit set is followed by that many literal bytes; otherwise it is
// followed by one byte repeated that many times. A zero count ends the slice.
func decodeRLE(src, dst []byte) error {
	in, out := 0, 0
	for in < len(src) {
		control := src[in]
		in++
		count := int(control & 0x7f)
		if count == 0 {
			break
		}
		if out+count > len(dst) {
			return fmt.Errorf("run overflows slice")
		}
		if control&0x80 != 0 {
			if in+count > len(src) {
				return io.ErrUnexpectedEOF
			}
			copy(dst[out:], src[in:in+count])
			in += count
		} else {
			if in >= len(src) {
				return io.ErrUnexpectedEOF
			}
			value := src[in]
			in++
			for i := 0; i < count; i++ {
				dst[out+i] = value
			}
		}
		out += count
	}
	if out != len(dst) {
		return fmt.Errorf("decoded %d bytes, want %d", out, len(dst))
	}
	return nil
}

// encodeRLE is the inverse of decodeRLE
func encodeRLE(src []byte) []byte {
	out := make([]byte, 0, len(src)/2)
	var literal []byte
	flushLiteral := func() {
		for len(literal) > 0 {
			n := min(len(literal), 127)
			out = append(out, byte(n)|0x80)
			out = append(out, literal[:n]...)
			literal = literal[n:]
		}
	}

	for i := 0; i < len(src); {
		run := 1
		for i+run < len(src) && src[i+run] == src[i] && run < 127 {
			run++
		}
		if run >= 3 {
			flushLiteral()
			out = append(out, byte(run), src[i])
			i += run
			continue
		}
		literal = append(literal, src[i])
		i++
	}
	flushLiteral()
	return append(out, 0)
}

func skipSpace(br *bufio.Reader) error {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return err
		}
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return br.UnreadByte()
	}
}

// readToken returns the next run of numeric characters
func readToken(br *bufio.Reader) (string, error) {
	if err := skipSpace(br); err != nil {
		return "", err
	}
	var tok []byte
	for {
		b, err := br.ReadByte()
		if err == io.EOF && len(tok) > 0 {
			break
		}
		if err != nil {
			return "", err
		}
		if (b >= '0' && b <= '9') || b == '-' || b == '+' || b == '.' || b == 'e' || b == 'E' {
			tok = append(tok, b)
			continue
		}
		if err := br.UnreadByte(); err != nil {
			return "", err
		}
		break
	}
	if len(tok) == 0 {
		return "", fmt.Errorf("expected a number")
	}
	return string(tok), nil
}

func readInt(br *bufio.Reader) (int, error) {
	tok, err := readToken(br)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(tok)
}

func readFloat(br *bufio.Reader) (float64, error) {
	tok, err := readToken(br)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(tok, 64)
}

// readMarker consumes the X that precedes binary data; the data starts on
// the very next byte
func readMarker(br *bufio.Reader) error {
	if err := skipSpace(br); err != nil {
		return err
	}
	b, err := br.ReadByte()
	if err != nil {
		return err
	}
	if b != 'X' {
		return fmt.Errorf("expected X marker, got %q", b)
	}
	return nil
}
