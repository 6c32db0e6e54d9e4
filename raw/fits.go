package raw

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

const (
	fitsRecordLen   = 80
	fitsRecordBlock = 36 // records per 2880-byte header block
)

// fitsHeader holds the keywords of the primary HDU.
type fitsHeader map[string]string

func (h fitsHeader) str(key string) string {
	return h[strings.ToUpper(key)]
}

func (h fitsHeader) int(key string) (int, bool) {
	v, ok := h[strings.ToUpper(key)]
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return i, true
}

func (h fitsHeader) float(key string, def float64) float64 {
	v, ok := h[strings.ToUpper(key)]
	if !ok {
		return def
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return d
}

// openFITS reads a one-shot-colour astro frame. BAYERPAT is reported as the
// declared CFA pattern, INSTRUME as the camera model.
func openFITS(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readFITS(f)
}

func readFITS(r io.Reader) (Source, error) {
	hdr, err := readFITSHeader(r)
	if err != nil {
		return nil, err
	}

	bitpix, _ := hdr.int("BITPIX")
	naxis, _ := hdr.int("NAXIS")
	width, _ := hdr.int("NAXIS1")
	height, _ := hdr.int("NAXIS2")
	if naxis != 2 || width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid FITS: NAXIS=%d, NAXIS1=%d, NAXIS2=%d", naxis, width, height)
	}

	bzero := hdr.float("BZERO", 0)
	bscale := hdr.float("BSCALE", 1)

	bitDepth := 16
	if bitpix == 8 {
		bitDepth = 8
	}
	grid := NewGrid(width, height, bitDepth)
	n := width * height

	physical := func(v float64) uint16 {
		return uint16(clampFloat64(v*bscale+bzero, 0, 65535))
	}

	switch bitpix {
	case 8:
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("reading 8-bit pixel data: %w", err)
		}
		for i := range grid.Pix {
			grid.Pix[i] = physical(float64(buf[i]))
		}
	case 16:
		buf := make([]byte, n*2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("reading 16-bit pixel data: %w", err)
		}
		for i := range grid.Pix {
			grid.Pix[i] = physical(float64(int16(binary.BigEndian.Uint16(buf[i*2:]))))
		}
	case 32:
		buf := make([]byte, n*4)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("reading 32-bit pixel data: %w", err)
		}
		for i := range grid.Pix {
			grid.Pix[i] = physical(float64(int32(binary.BigEndian.Uint32(buf[i*4:]))))
		}
	case -32:
		buf := make([]byte, n*4)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("reading -32 float pixel data: %w", err)
		}
		for i := range grid.Pix {
			grid.Pix[i] = physical(float64(math.Float32frombits(binary.BigEndian.Uint32(buf[i*4:]))))
		}
	default:
		return nil, fmt.Errorf("unsupported BITPIX: %d", bitpix)
	}

	info := Info{
		Format:     "fits",
		Model:      hdr.str("INSTRUME"),
		BitDepth:   bitDepth,
		CFAPattern: strings.ToUpper(strings.TrimSpace(hdr.str("BAYERPAT"))),
	}
	return NewMemSource(grid, info), nil
}

func readFITSHeader(r io.Reader) (fitsHeader, error) {
	hdr := make(fitsHeader)
	record := make([]byte, fitsRecordLen)

	for {
		for i := 0; i < fitsRecordBlock; i++ {
			if _, err := io.ReadFull(r, record); err != nil {
				return nil, fmt.Errorf("reading FITS header record: %w", err)
			}
			line := string(record)
			keyword := strings.TrimSpace(line[:8])

			if keyword == "END" {
				// rest of the block is padding
				if remaining := fitsRecordBlock - 1 - i; remaining > 0 {
					if _, err := io.CopyN(io.Discard, r, int64(remaining*fitsRecordLen)); err != nil {
						return nil, fmt.Errorf("skipping FITS header padding: %w", err)
					}
				}
				return hdr, nil
			}

			if line[8] == '=' && line[9] == ' ' {
				value := parseFitsValue(line[10:])
				if keyword != "" && value != "" {
					hdr[strings.ToUpper(keyword)] = value
				}
			}
		}
	}
}

func clampFloat64(v, lo, hi float64) float64 {
	if v < lo || math.IsNaN(v) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// parseFitsValue extracts the value field of a keyword record. Strings are
// quoted with '' as an escaped quote; the "/" comment only starts after the
// closing quote.
func parseFitsValue(field string) string {
	field = strings.TrimLeft(field, " ")
	if !strings.HasPrefix(field, "'") {
		value, _, _ := strings.Cut(field, "/")
		return strings.TrimSpace(value)
	}

	var b strings.Builder
	for i := 1; i < len(field); i++ {
		if field[i] != '\'' {
			b.WriteByte(field[i])
			continue
		}
		if i+1 < len(field) && field[i+1] == '\'' {
			b.WriteByte('\'')
			i++
			continue
		}
		break
	}
	return strings.TrimRight(b.String(), " ")
}
