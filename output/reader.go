package output

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"io"
	"math/bits"
	"os"

	"golang.org/x/image/tiff"

	"github.com/weaming/raw2mono-go/processor"
)

// 单个标签数据的上限，防止损坏文件导致巨量分配
const maxTagBytes = 16 << 20

// ReadTagSet 解析文件头和 IFD0
func ReadTagSet(r io.ReaderAt) (*TagSet, error) {
	var hdr [8]byte
	if _, err := r.ReadAt(hdr[:], 0); err != nil {
		return nil, fmt.Errorf("读取文件头失败: %w", err)
	}

	var bo binary.ByteOrder
	switch string(hdr[0:2]) {
	case "II":
		bo = binary.LittleEndian
	case "MM":
		bo = binary.BigEndian
	default:
		return nil, fmt.Errorf("无效的字节序标记 %q", hdr[0:2])
	}
	if magic := bo.Uint16(hdr[2:4]); magic != 42 {
		return nil, fmt.Errorf("无效的 TIFF 魔数 %d", magic)
	}
	ifdOffset := int64(bo.Uint32(hdr[4:8]))

	var cnt [2]byte
	if _, err := r.ReadAt(cnt[:], ifdOffset); err != nil {
		return nil, fmt.Errorf("读取 IFD0 失败: %w", err)
	}
	n := int(bo.Uint16(cnt[:]))
	entries := make([]byte, n*ifdEntryLen)
	if _, err := r.ReadAt(entries, ifdOffset+2); err != nil {
		return nil, fmt.Errorf("读取 IFD0 条目失败: %w", err)
	}

	set := NewTagSet()
	for i := 0; i < n; i++ {
		buf := entries[i*ifdEntryLen : (i+1)*ifdEntryLen]
		e := &TagEntry{
			Tag:   bo.Uint16(buf[0:2]),
			Type:  bo.Uint16(buf[2:4]),
			Count: bo.Uint32(buf[4:8]),
		}
		size := byteSizeForType(e.Type)
		if size == 0 {
			debug("ReadTagSet: 跳过未知类型 tag=%d type=%d", e.Tag, e.Type)
			continue
		}
		total := int64(e.Count) * int64(size)
		if total > maxTagBytes {
			return nil, fmt.Errorf("标签 %s 数据过大 (%d 字节)", TagName(e.Tag), total)
		}

		data := buf[8:12]
		if total > 4 {
			data = make([]byte, total)
			if _, err := r.ReadAt(data, int64(bo.Uint32(buf[8:12]))); err != nil {
				return nil, fmt.Errorf("读取标签 %s 数据失败: %w", TagName(e.Tag), err)
			}
		}
		e.Data = decodeTagData(bo, e.Type, data[:total])
		set.set(e)
	}
	return set, nil
}

// decodeTagData 把原始字节展开为 TagEntry 的 uint32 表示
func decodeTagData(bo binary.ByteOrder, typ uint16, p []byte) []uint32 {
	var out []uint32
	switch byteSizeForType(typ) {
	case 1:
		out = make([]uint32, len(p))
		for i, b := range p {
			out[i] = uint32(b)
		}
	case 2:
		out = make([]uint32, len(p)/2)
		for i := range out {
			out[i] = uint32(bo.Uint16(p[i*2:]))
		}
	default:
		out = make([]uint32, len(p)/4)
		for i := range out {
			out[i] = bo.Uint32(p[i*4:])
		}
	}
	return out
}

// ReadFile 读取文件的 IFD0
func ReadFile(path string) (*TagSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTagSet(f)
}

// ReadRaster 用 x/image/tiff 解码像素，并从 WhiteLevel / MaxSampleValue 恢复位深
// WhiteIsZero 文件在解码时已被反转，这里还原为存储值
func ReadRaster(path string) (*processor.QuantizedRaster, error) {
	tags, err := ReadFile(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := tiff.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("解码 %s 失败: %w", path, err)
	}

	b := img.Bounds()
	raster := processor.NewQuantizedRaster(b.Dx(), b.Dy(), storedBitDepth(tags))
	invert := false
	if e, ok := tags.Get(TagPhotometricInterpret); ok && e.Uint() == 0 {
		invert = true
	}

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			v := grayAt(img, b.Min.X+x, b.Min.Y+y)
			if invert {
				v = 0xffff - v
			}
			raster.Pix[y*raster.Width+x] = v
		}
	}
	return raster, nil
}

func grayAt(img image.Image, x, y int) uint16 {
	if g, ok := img.(*image.Gray16); ok {
		return g.Gray16At(x, y).Y
	}
	return color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y
}

// storedBitDepth WhiteLevel > MaxSampleValue > BitsPerSample
func storedBitDepth(tags *TagSet) uint8 {
	if e, ok := tags.Get(TagWhiteLevel); ok && e.Uint() > 0 {
		return uint8(bits.Len32(e.Uint()))
	}
	if e, ok := tags.Get(TagMaxSampleValue); ok && e.Uint() > 0 {
		return uint8(bits.Len32(e.Uint()))
	}
	if e, ok := tags.Get(TagBitsPerSample); ok {
		return uint8(e.Uint())
	}
	return storageBits
}
