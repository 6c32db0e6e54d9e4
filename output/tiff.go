package output

import (
	"github.com/weaming/raw2mono-go/processor"
)

// addTIFFTags 基线 TIFF 的附加标签
// 宽高和位深都来自栅格本身，只有光度解释需要调用方显式指定
func addTIFFTags(tags *TagSet, raster *processor.QuantizedRaster) {
	tags.SetShort(TagMaxSampleValue, raster.MaxValue())
	tags.SetShort(TagSampleFormat, SampleFormatUnsigned)
	if !tags.Has(TagXResolution) {
		tags.SetRational(TagXResolution, 72, 1)
	}
	if !tags.Has(TagYResolution) {
		tags.SetRational(TagYResolution, 72, 1)
	}
	if !tags.Has(TagResolutionUnit) {
		tags.SetShort(TagResolutionUnit, ResolutionUnitInch)
	}
}

// WriteGenericContainer 写入单通道 TIFF
func WriteGenericContainer(raster *processor.QuantizedRaster, photometric Photometric, path string, opts WriteOptions) error {
	opts.Format = FormatTIFF
	opts.Photometric = photometric
	return Write(raster, nil, path, opts)
}
