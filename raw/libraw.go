//go:build libraw

package raw

/*
#cgo LDFLAGS: -lraw -lstdc++ -lm
#include <stdlib.h>
#include <libraw/libraw.h>
*/
import "C"
import (
	"fmt"
	"math/bits"
	"unsafe"
)

// 相机 RAW 扩展名，交给 LibRaw 解码
var librawExtensions = []string{
	".3fr", ".arw", ".cr2", ".cr3", ".crw", ".dng", ".erf", ".iiq", ".kdc",
	".mef", ".mos", ".mrw", ".nef", ".nrw", ".orf", ".pef", ".raf", ".raw",
	".rw2", ".rwl", ".sr2", ".srf", ".srw",
}

func init() {
	for _, ext := range librawExtensions {
		openers[ext] = openLibRaw
	}
}

type librawSource struct {
	proc *C.libraw_data_t
	grid *Grid
	info Info
}

func (s *librawSource) Grid() *Grid { return s.grid }
func (s *librawSource) Info() Info  { return s.info }

// Close 释放 LibRaw 句柄，之后 Grid 不再可用
func (s *librawSource) Close() error {
	if s.proc != nil {
		C.libraw_recycle(s.proc)
		C.libraw_close(s.proc)
		s.proc = nil
	}
	s.grid = nil
	return nil
}

func librawError(code C.int) error {
	if code == C.LIBRAW_SUCCESS {
		return nil
	}
	return fmt.Errorf("libraw: %s", C.GoString(C.libraw_strerror(code)))
}

func openLibRaw(path string) (Source, error) {
	proc := C.libraw_init(0)
	if proc == nil {
		return nil, fmt.Errorf("libraw_init 失败")
	}

	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	if err := librawError(C.libraw_open_file(proc, cpath)); err != nil {
		C.libraw_close(proc)
		return nil, err
	}
	if err := librawError(C.libraw_unpack(proc)); err != nil {
		C.libraw_close(proc)
		return nil, err
	}
	if proc.rawdata.raw_image == nil {
		C.libraw_close(proc)
		return nil, fmt.Errorf("没有单通道 Bayer 数据（Foveon、线性 DNG 等不支持）")
	}

	// 只取可见区域，与 raw_image_visible 一致
	sizes := proc.sizes
	pitch := int(sizes.raw_pitch) / 2
	top, left := int(sizes.top_margin), int(sizes.left_margin)
	width, height := int(sizes.width), int(sizes.height)
	samples := unsafe.Slice((*uint16)(unsafe.Pointer(proc.rawdata.raw_image)), pitch*int(sizes.raw_height))

	grid := NewGrid(width, height, bits.Len32(uint32(proc.color.maximum)))
	for y := 0; y < height; y++ {
		start := (y+top)*pitch + left
		copy(grid.Pix[y*width:(y+1)*width], samples[start:start+width])
	}

	info := Info{
		Format:     "libraw",
		Make:       C.GoString(&proc.idata._make[0]),
		Model:      C.GoString(&proc.idata.model[0]),
		BitDepth:   grid.BitDepth,
		CFAPattern: librawPattern(proc),
	}
	return &librawSource{proc: proc, grid: grid, info: info}, nil
}

// librawPattern 读取可见区域左上角 2x2 的滤色片排列
func librawPattern(proc *C.libraw_data_t) string {
	if proc.idata.filters == 0 {
		return ""
	}
	const names = "RGBG"
	buf := make([]byte, 0, 4)
	for row := 0; row < 2; row++ {
		for col := 0; col < 2; col++ {
			c := C.libraw_COLOR(proc, C.int(row), C.int(col))
			if c < 0 || int(c) >= len(names) {
				return ""
			}
			buf = append(buf, names[c])
		}
	}
	return string(buf)
}
