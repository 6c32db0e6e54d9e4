package output

import (
	"github.com/google/uuid"

	"github.com/weaming/raw2mono-go/processor"
	"github.com/weaming/raw2mono-go/raw"
)

var debug = raw.Debug

// 默认设备标识，可由调用方 TagSet 覆盖
const (
	DefaultMake  = "raw2mono-go"
	DefaultModel = "RAW2DNG Monochrome"
)

// DNG 版本
var (
	dngVersion         = []byte{1, 4, 0, 0}
	dngBackwardVersion = []byte{1, 2, 0, 0}
)

// RawDataUniqueID 的命名空间
var rawDataNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/weaming/raw2mono-go/raw-data"))

// addDNGTags DNG 需要的版本、设备与电平标签
func addDNGTags(tags *TagSet, raster *processor.QuantizedRaster) {
	tags.SetLong(TagNewSubfileType, 0) // 主图像
	tags.SetBytes(TagDNGVersion, dngVersion)
	tags.SetBytes(TagDNGBackwardVersion, dngBackwardVersion)

	mk, model := DefaultMake, DefaultModel
	if e, ok := tags.Get(TagMake); ok && e.Type == TypeASCII {
		mk = e.String()
	} else {
		tags.SetASCII(TagMake, mk)
	}
	if e, ok := tags.Get(TagModel); ok && e.Type == TypeASCII {
		model = e.String()
	} else {
		tags.SetASCII(TagModel, model)
	}
	if !tags.Has(TagUniqueCameraModel) {
		tags.SetASCII(TagUniqueCameraModel, mk+" "+model)
	}

	tags.SetLongs(TagBlackLevel, []uint32{0})
	tags.SetLongs(TagWhiteLevel, []uint32{uint32(raster.MaxValue())})

	id := RawDataUniqueID(raster)
	tags.SetBytes(TagRawDataUniqueID, id[:])
	debug("DNG: %dx%d white=%d id=%s", raster.Width, raster.Height, raster.MaxValue(), id)
}

// RawDataUniqueID 由像素内容派生，相同栅格得到相同 ID
func RawDataUniqueID(raster *processor.QuantizedRaster) uuid.UUID {
	buf := make([]byte, 0, 12+len(raster.Pix)*2)
	buf = appendUint32(buf, uint32(raster.Width))
	buf = appendUint32(buf, uint32(raster.Height))
	buf = appendUint32(buf, uint32(raster.BitDepth))
	for _, v := range raster.Pix {
		buf = append(buf, byte(v), byte(v>>8))
	}
	return uuid.NewSHA1(rawDataNamespace, buf)
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// WriteRawContainer 写入单通道 DNG
func WriteRawContainer(raster *processor.QuantizedRaster, tags *TagSet, path string, opts WriteOptions) error {
	opts.Format = FormatDNG
	opts.Photometric = PhotometricMinIsBlack
	return Write(raster, tags, path, opts)
}
