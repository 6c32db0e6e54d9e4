package output

import (
	"fmt"
	"path/filepath"
	"strings"
)

// TIFF 标签
const (
	TagNewSubfileType       = 254
	TagImageWidth           = 256
	TagImageLength          = 257
	TagBitsPerSample        = 258
	TagCompression          = 259
	TagPhotometricInterpret = 262
	TagImageDescription     = 270
	TagMake                 = 271
	TagModel                = 272
	TagStripOffsets         = 273
	TagOrientation          = 274
	TagSamplesPerPixel      = 277
	TagRowsPerStrip         = 278
	TagStripByteCounts      = 279
	TagMaxSampleValue       = 281
	TagXResolution          = 282
	TagYResolution          = 283
	TagPlanarConfiguration  = 284
	TagResolutionUnit       = 296
	TagSoftware             = 305
	TagDateTime             = 306
	TagArtist               = 315
	TagTileWidth            = 322
	TagTileLength           = 323
	TagTileOffsets          = 324
	TagTileByteCounts       = 325
	TagSampleFormat         = 339
	TagCopyright            = 33432
)

// DNG 标签
const (
	TagDNGVersion         = 50706
	TagDNGBackwardVersion = 50707
	TagUniqueCameraModel  = 50708
	TagBlackLevel         = 50714
	TagWhiteLevel         = 50717
	TagRawDataUniqueID    = 50781
)

// TIFF 数据类型
const (
	TypeByte      = 1
	TypeASCII     = 2
	TypeShort     = 3
	TypeLong      = 4
	TypeRational  = 5
	TypeSByte     = 6
	TypeUndefined = 7
	TypeSShort    = 8
	TypeSLong     = 9
	TypeSRational = 10
	TypeFloat     = 11
	TypeDouble    = 12
)

const (
	CompressionNone      = 1
	OrientationTopLeft   = 1
	PlanarChunky         = 1
	ResolutionUnitInch   = 2
	SampleFormatUnsigned = 1
)

var tagNames = map[uint16]string{
	TagNewSubfileType:       "NewSubfileType",
	TagImageWidth:           "ImageWidth",
	TagImageLength:          "ImageLength",
	TagBitsPerSample:        "BitsPerSample",
	TagCompression:          "Compression",
	TagPhotometricInterpret: "PhotometricInterpretation",
	TagImageDescription:     "ImageDescription",
	TagMake:                 "Make",
	TagModel:                "Model",
	TagStripOffsets:         "StripOffsets",
	TagOrientation:          "Orientation",
	TagSamplesPerPixel:      "SamplesPerPixel",
	TagRowsPerStrip:         "RowsPerStrip",
	TagStripByteCounts:      "StripByteCounts",
	TagMaxSampleValue:       "MaxSampleValue",
	TagXResolution:          "XResolution",
	TagYResolution:          "YResolution",
	TagPlanarConfiguration:  "PlanarConfiguration",
	TagResolutionUnit:       "ResolutionUnit",
	TagSoftware:             "Software",
	TagDateTime:             "DateTime",
	TagArtist:               "Artist",
	TagTileWidth:            "TileWidth",
	TagTileLength:           "TileLength",
	TagTileOffsets:          "TileOffsets",
	TagTileByteCounts:       "TileByteCounts",
	TagSampleFormat:         "SampleFormat",
	TagCopyright:            "Copyright",
	TagDNGVersion:           "DNGVersion",
	TagDNGBackwardVersion:   "DNGBackwardVersion",
	TagUniqueCameraModel:    "UniqueCameraModel",
	TagBlackLevel:           "BlackLevel",
	TagWhiteLevel:           "WhiteLevel",
	TagRawDataUniqueID:      "RawDataUniqueID",
}

// TagName 返回标签名，未知标签返回十六进制编号
func TagName(tag uint16) string {
	if name, ok := tagNames[tag]; ok {
		return name
	}
	return fmt.Sprintf("Tag0x%04X", tag)
}

// Photometric 单通道的光度解释
type Photometric int

const (
	PhotometricMinIsBlack Photometric = iota // BlackIsZero, TIFF 值 1
	PhotometricMinIsWhite                    // WhiteIsZero, TIFF 值 0
)

// Code 返回 PhotometricInterpretation 标签值
func (p Photometric) Code() uint16 {
	if p == PhotometricMinIsWhite {
		return 0
	}
	return 1
}

func (p Photometric) String() string {
	if p == PhotometricMinIsWhite {
		return "miniswhite"
	}
	return "minisblack"
}

// ParsePhotometric 解析 "minisblack" / "miniswhite"
func ParsePhotometric(s string) (Photometric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "minisblack", "blackiszero":
		return PhotometricMinIsBlack, nil
	case "miniswhite", "whiteiszero":
		return PhotometricMinIsWhite, nil
	default:
		return PhotometricMinIsBlack, fmt.Errorf("不支持的光度解释 %q (可用: minisblack, miniswhite)", s)
	}
}

// Format 输出容器
type Format int

const (
	// FormatDNG 结构化 RAW 容器
	FormatDNG Format = iota
	// FormatTIFF 通用 TIFF 容器
	FormatTIFF
)

func (f Format) String() string {
	switch f {
	case FormatDNG:
		return "dng"
	case FormatTIFF:
		return "tiff"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat 解析 "dng" / "tiff" / "tif"
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "dng":
		return FormatDNG, nil
	case "tif", "tiff":
		return FormatTIFF, nil
	default:
		return FormatDNG, fmt.Errorf("不支持的输出格式: %s", s)
	}
}

// FormatFromPath 根据扩展名确定输出格式
func FormatFromPath(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return FormatDNG, fmt.Errorf("无法从 %q 判断输出格式", path)
	}
	return ParseFormat(ext)
}
