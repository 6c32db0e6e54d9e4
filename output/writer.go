package output

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/weaming/raw2mono-go/processor"
	"github.com/weaming/raw2mono-go/raw"
)

// 样本总是以 16-bit 小端容器存储，有效位深由 WhiteLevel / MaxSampleValue 表达
const storageBits = 16

// 文件头后紧跟 IFD0
const ifd0Offset = 8

// tile 边长必须是 16 的倍数
const tileAlign = 16

func roundUp(n, m int) int {
	return (n + m - 1) / m * m
}

// WriteOptions 容器写入选项
type WriteOptions struct {
	Format Format
	// Photometric DNG 只支持 MinIsBlack
	Photometric Photometric
	// TileWidth/TileLength 为 0 时 DNG 写一个覆盖整幅图像的 tile
	// TIFF 只有在 TileWidth > 0 时才使用 tile
	TileWidth  int
	TileLength int
	// RowsPerStrip 为 0 时 TIFF 写单个 strip
	RowsPerStrip int
}

// WriteError 容器写入失败
type WriteError struct {
	Op   string
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("写入失败 (%s): %v", e.Op, e.Err)
	}
	return fmt.Sprintf("写入 %s 失败 (%s): %v", e.Path, e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// blockLayout strip 或 tile 的划分
type blockLayout struct {
	tiled   bool
	blockW  int
	blockH  int
	across  int
	down    int
	rasterW int
	rasterH int
}

func (l blockLayout) count() int {
	return l.across * l.down
}

func (l blockLayout) blockBytes() int {
	return l.blockW * l.blockH * storageBits / 8
}

// byteCounts 每个块的字节数，最后一个 strip 可能较短，tile 总是满尺寸（补零）
func (l blockLayout) byteCounts() []uint32 {
	counts := make([]uint32, l.count())
	for i := range counts {
		if !l.tiled && i == len(counts)-1 {
			rows := l.rasterH - i*l.blockH
			counts[i] = uint32(rows * l.rasterW * storageBits / 8)
			continue
		}
		counts[i] = uint32(l.blockBytes())
	}
	return counts
}

func newBlockLayout(raster *processor.QuantizedRaster, opts WriteOptions) (blockLayout, error) {
	w, h := raster.Width, raster.Height
	tiled := opts.Format == FormatDNG || opts.TileWidth > 0

	if !tiled {
		rows := opts.RowsPerStrip
		if rows <= 0 || rows > h {
			rows = h
		}
		return blockLayout{
			blockW: w, blockH: rows,
			across: 1, down: (h + rows - 1) / rows,
			rasterW: w, rasterH: h,
		}, nil
	}

	tw, tl := opts.TileWidth, opts.TileLength
	if tw <= 0 && tl <= 0 {
		// 单 tile 覆盖整幅图像，边长向上取整到 16 的倍数，多出部分补零
		tw, tl = roundUp(w, tileAlign), roundUp(h, tileAlign)
	} else {
		if tl <= 0 {
			tl = tw
		}
		if tw <= 0 {
			tw = tl
		}
		if tw%tileAlign != 0 || tl%tileAlign != 0 {
			return blockLayout{}, fmt.Errorf("tile 尺寸 %dx%d 必须是 %d 的倍数", tw, tl, tileAlign)
		}
	}
	return blockLayout{
		tiled:  true,
		blockW: tw, blockH: tl,
		across: (w + tw - 1) / tw, down: (h + tl - 1) / tl,
		rasterW: w, rasterH: h,
	}, nil
}

// dataSize 样本块总字节数
func (l blockLayout) dataSize() uint64 {
	var total uint64
	for i := 0; i < l.count(); i++ {
		if !l.tiled && i == l.count()-1 {
			total += uint64(l.rasterH-i*l.blockH) * uint64(l.rasterW) * storageBits / 8
			continue
		}
		total += uint64(l.blockW) * uint64(l.blockH) * storageBits / 8
	}
	return total
}

// addTags 写入布局相关标签，偏移量先用 0 占位
func (l blockLayout) addTags(tags *TagSet) {
	if l.tiled {
		tags.Delete(TagStripOffsets)
		tags.Delete(TagStripByteCounts)
		tags.Delete(TagRowsPerStrip)
		tags.SetLong(TagTileWidth, uint32(l.blockW))
		tags.SetLong(TagTileLength, uint32(l.blockH))
		tags.SetLongs(TagTileOffsets, make([]uint32, l.count()))
		tags.SetLongs(TagTileByteCounts, l.byteCounts())
		return
	}
	tags.Delete(TagTileWidth)
	tags.Delete(TagTileLength)
	tags.Delete(TagTileOffsets)
	tags.Delete(TagTileByteCounts)
	tags.SetLong(TagRowsPerStrip, uint32(l.blockH))
	tags.SetLongs(TagStripOffsets, make([]uint32, l.count()))
	tags.SetLongs(TagStripByteCounts, l.byteCounts())
}

func (l blockLayout) offsetsTag() uint16 {
	if l.tiled {
		return TagTileOffsets
	}
	return TagStripOffsets
}

// writeBlocks 按块顺序写出样本，tile 右/下边缘补零
func (l blockLayout) writeBlocks(out io.Writer, raster *processor.QuantizedRaster) error {
	row := make([]byte, l.blockW*storageBits/8)
	for by := 0; by < l.down; by++ {
		for bx := 0; bx < l.across; bx++ {
			x0, y0 := bx*l.blockW, by*l.blockH
			for y := y0; y < y0+l.blockH; y++ {
				if y >= l.rasterH {
					if !l.tiled {
						break
					}
					clear(row)
				} else {
					src := raster.Pix[y*l.rasterW:]
					for x := 0; x < l.blockW; x++ {
						var v uint16
						if x0+x < l.rasterW {
							v = src[x0+x]
						}
						binary.LittleEndian.PutUint16(row[x*2:], v)
					}
				}
				if _, err := out.Write(row); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func validateRaster(raster *processor.QuantizedRaster) error {
	if raster == nil {
		return fmt.Errorf("栅格为空")
	}
	if raster.Width <= 0 || raster.Height <= 0 {
		return fmt.Errorf("栅格尺寸为 0 (%dx%d)", raster.Width, raster.Height)
	}
	if len(raster.Pix) != raster.Width*raster.Height {
		return fmt.Errorf("样本数 %d 与尺寸 %dx%d 不符", len(raster.Pix), raster.Width, raster.Height)
	}
	return processor.ValidateBitDepth(raster.BitDepth)
}

// addBaseTags 两种容器共有的结构标签
func addBaseTags(tags *TagSet, raster *processor.QuantizedRaster, opts WriteOptions) {
	tags.SetLong(TagImageWidth, uint32(raster.Width))
	tags.SetLong(TagImageLength, uint32(raster.Height))
	tags.SetShort(TagBitsPerSample, storageBits)
	tags.SetShort(TagCompression, CompressionNone)
	tags.SetShort(TagPhotometricInterpret, opts.Photometric.Code())
	tags.SetShort(TagOrientation, OrientationTopLeft)
	tags.SetShort(TagSamplesPerPixel, 1)
	tags.SetShort(TagPlanarConfiguration, PlanarChunky)
	if !tags.Has(TagSoftware) {
		tags.SetASCII(TagSoftware, "raw2mono-go "+raw.Version)
	}
}

// buildTags 合并调用方标签和容器结构标签，结构标签优先
// 返回的集合中偏移量为 0 占位
func buildTags(raster *processor.QuantizedRaster, tags *TagSet, opts WriteOptions) (*TagSet, blockLayout, error) {
	if err := validateRaster(raster); err != nil {
		return nil, blockLayout{}, err
	}
	layout, err := newBlockLayout(raster, opts)
	if err != nil {
		return nil, blockLayout{}, err
	}

	set := tags.Clone()
	addBaseTags(set, raster, opts)

	switch opts.Format {
	case FormatDNG:
		if opts.Photometric != PhotometricMinIsBlack {
			return nil, blockLayout{}, fmt.Errorf("DNG 只支持 %s", PhotometricMinIsBlack)
		}
		addDNGTags(set, raster)
	case FormatTIFF:
		addTIFFTags(set, raster)
	default:
		return nil, blockLayout{}, fmt.Errorf("不支持的输出格式: %s", opts.Format)
	}

	layout.addTags(set)
	if err := checkFileSize(set, layout); err != nil {
		return nil, blockLayout{}, err
	}
	return set, layout, nil
}

// checkFileSize 所有偏移都是 32 位，文件必须小于 4 GiB
func checkFileSize(set *TagSet, layout blockLayout) error {
	end := uint64(NewIFDWriter(set, ifd0Offset).End()) + layout.dataSize()
	if end > math.MaxUint32 {
		return fmt.Errorf("输出 %d 字节超过 32 位偏移上限 (%dx%d)", end, layout.rasterW, layout.rasterH)
	}
	return nil
}

// Encode 把栅格编码为完整的容器字节流
//
// 布局: 文件头 | IFD0 | pointer area | 样本块
func Encode(out io.Writer, raster *processor.QuantizedRaster, tags *TagSet, opts WriteOptions) error {
	set, layout, err := buildTags(raster, tags, opts)
	if err != nil {
		return err
	}
	return encodeBuilt(out, raster, set, layout)
}

// encodeBuilt 填入真实偏移后写出，set 来自 buildTags
func encodeBuilt(out io.Writer, raster *processor.QuantizedRaster, set *TagSet, layout blockLayout) error {
	// 偏移数组的长度已经确定，IFD 大小不会因填入真实偏移而改变
	dataStart := NewIFDWriter(set, ifd0Offset).End()
	offsets := make([]uint32, layout.count())
	pos := dataStart
	for i, n := range layout.byteCounts() {
		offsets[i] = pos
		pos += n
	}
	set.SetLongs(layout.offsetsTag(), offsets)

	if err := writeTIFFHeader(out); err != nil {
		return err
	}
	if _, err := NewIFDWriter(set, ifd0Offset).WriteTo(out); err != nil {
		return err
	}
	return layout.writeBlocks(out, raster)
}

// 写入 TIFF/DNG 文件头
func writeTIFFHeader(out io.Writer) error {
	var hdr [8]byte
	hdr[0], hdr[1] = 'I', 'I' // Little Endian
	binary.LittleEndian.PutUint16(hdr[2:4], 42)
	binary.LittleEndian.PutUint32(hdr[4:8], ifd0Offset)
	_, err := out.Write(hdr[:])
	return err
}

// Write 把栅格写入 path，格式由 opts.Format 决定
// 先写临时文件再原子重命名；失败时删除 path 上已有的旧文件，
// 不会留下看似有效的输出
func Write(raster *processor.QuantizedRaster, tags *TagSet, path string, opts WriteOptions) (err error) {
	defer func() {
		if err != nil {
			removeStale(path)
		}
	}()

	if err := validateRaster(raster); err != nil {
		return &WriteError{Op: "validate", Path: path, Err: err}
	}
	set, layout, err := buildTags(raster, tags, opts)
	if err != nil {
		return &WriteError{Op: "tags", Path: path, Err: err}
	}

	return writeAtomic(path, func(w io.Writer) error {
		return encodeBuilt(w, raster, set, layout)
	})
}

// removeStale 删除上一次运行留下的普通文件
func removeStale(path string) {
	if fi, err := os.Lstat(path); err == nil && fi.Mode().IsRegular() {
		if err := os.Remove(path); err == nil {
			debug("Write: 删除旧输出 %s", path)
		}
	}
}

func writeAtomic(path string, encode func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &WriteError{Op: "create", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	bw := bufio.NewWriterSize(tmp, 1<<20)
	if err := encode(bw); err != nil {
		return &WriteError{Op: "encode", Path: path, Err: err}
	}
	if err := bw.Flush(); err != nil {
		return &WriteError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &WriteError{Op: "close", Path: path, Err: err}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return &WriteError{Op: "chmod", Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return &WriteError{Op: "rename", Path: path, Err: err}
	}
	committed = true
	return nil
}
