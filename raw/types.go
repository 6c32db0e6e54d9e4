package raw

import "fmt"

// Version is the converter version written into the Software tag.
const Version = "0.3.1"

// Grid is an undemosaiced sensor mosaic, one sample per photosite, row-major.
type Grid struct {
	Width    int
	Height   int
	BitDepth int // significant bits per sample as reported by the decoder
	Pix      []uint16
}

// NewGrid allocates a zeroed grid.
func NewGrid(width, height, bitDepth int) *Grid {
	return &Grid{
		Width:    width,
		Height:   height,
		BitDepth: bitDepth,
		Pix:      make([]uint16, width*height),
	}
}

// At returns the sample at column x, row y.
func (g *Grid) At(x, y int) uint16 {
	return g.Pix[y*g.Width+x]
}

// Set stores the sample at column x, row y.
func (g *Grid) Set(x, y int, v uint16) {
	g.Pix[y*g.Width+x] = v
}

// Info describes the capture a Source was decoded from.
type Info struct {
	Format   string // decoder name, e.g. "tiff", "fits", "libraw"
	Make     string
	Model    string
	BitDepth int
	// CFAPattern is the colour filter layout declared by the file, e.g.
	// "RGGB". Empty when the file does not declare one.
	CFAPattern string
}

// Source is an open decode handle. The grid stays valid until Close.
type Source interface {
	Grid() *Grid
	Info() Info
	Close() error
}

// DecodeError reports a failure of the raw decoding collaborator.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("解码 %s 失败: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// memSource holds a fully decoded grid in memory.
type memSource struct {
	grid *Grid
	info Info
}

func (s *memSource) Grid() *Grid { return s.grid }
func (s *memSource) Info() Info  { return s.info }

func (s *memSource) Close() error {
	s.grid = nil
	return nil
}

// NewMemSource wraps an already decoded grid as a Source.
func NewMemSource(grid *Grid, info Info) Source {
	if info.BitDepth == 0 {
		info.BitDepth = grid.BitDepth
	}
	return &memSource{grid: grid, info: info}
}
