package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTags(t *testing.T, w, h int, bitDepth uint8, tags *TagSet, opts WriteOptions) *TagSet {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, testRaster(w, h, bitDepth), tags, opts))
	set, err := ReadTagSet(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	return set
}

func TestDNGTags(t *testing.T) {
	t.Parallel()

	set := encodeTags(t, 10, 6, 14, nil, WriteOptions{Format: FormatDNG})
	value := func(tag uint16) uint32 {
		e, ok := set.Get(tag)
		require.True(t, ok, TagName(tag))
		return e.Uint()
	}

	assert.Equal(t, uint32(0), value(TagNewSubfileType))
	assert.Equal(t, uint32(10), value(TagImageWidth))
	assert.Equal(t, uint32(6), value(TagImageLength))
	assert.Equal(t, uint32(16), value(TagBitsPerSample))
	assert.Equal(t, uint32(1), value(TagCompression))
	assert.Equal(t, uint32(1), value(TagPhotometricInterpret))
	assert.Equal(t, uint32(1), value(TagOrientation))
	assert.Equal(t, uint32(1), value(TagSamplesPerPixel))
	assert.Equal(t, uint32(1), value(TagPlanarConfiguration))
	assert.Equal(t, uint32(16), value(TagTileWidth))
	assert.Equal(t, uint32(16), value(TagTileLength))
	assert.Equal(t, uint32(16*16*2), value(TagTileByteCounts))
	assert.Equal(t, uint32(0), value(TagBlackLevel))
	assert.Equal(t, uint32(16383), value(TagWhiteLevel))

	dv, _ := set.Get(TagDNGVersion)
	assert.Equal(t, []byte{1, 4, 0, 0}, dv.Bytes())
	bv, _ := set.Get(TagDNGBackwardVersion)
	assert.Equal(t, []byte{1, 2, 0, 0}, bv.Bytes())

	mk, _ := set.Get(TagMake)
	md, _ := set.Get(TagModel)
	ucm, _ := set.Get(TagUniqueCameraModel)
	assert.Equal(t, DefaultMake, mk.String())
	assert.Equal(t, DefaultModel, md.String())
	assert.Equal(t, DefaultMake+" "+DefaultModel, ucm.String())

	sw, ok := set.Get(TagSoftware)
	require.True(t, ok)
	assert.Contains(t, sw.String(), "raw2mono-go")

	id, ok := set.Get(TagRawDataUniqueID)
	require.True(t, ok)
	assert.Len(t, id.Bytes(), 16)

	for _, tag := range []uint16{TagStripOffsets, TagStripByteCounts, TagRowsPerStrip, TagMaxSampleValue} {
		assert.False(t, set.Has(tag), TagName(tag))
	}
}

func TestDNGTags_CallerMakeModel(t *testing.T) {
	t.Parallel()

	caller := NewTagSet()
	caller.SetASCII(TagMake, "Canon")
	caller.SetASCII(TagModel, "EOS R5")
	set := encodeTags(t, 4, 4, 16, caller, WriteOptions{})

	ucm, ok := set.Get(TagUniqueCameraModel)
	require.True(t, ok)
	assert.Equal(t, "Canon EOS R5", ucm.String())
}

func TestTIFFTags(t *testing.T) {
	t.Parallel()

	set := encodeTags(t, 12, 10, 10, nil, WriteOptions{Format: FormatTIFF, RowsPerStrip: 4})
	value := func(tag uint16) uint32 {
		e, ok := set.Get(tag)
		require.True(t, ok, TagName(tag))
		return e.Uint()
	}

	assert.Equal(t, uint32(1023), value(TagMaxSampleValue))
	assert.Equal(t, uint32(1), value(TagSampleFormat))
	assert.Equal(t, uint32(2), value(TagResolutionUnit))
	assert.Equal(t, uint32(4), value(TagRowsPerStrip))
	assert.Equal(t, uint32(1), value(TagPhotometricInterpret))

	xr, _ := set.Get(TagXResolution)
	assert.Equal(t, []uint32{72, 1}, xr.Data)

	counts, _ := set.Get(TagStripByteCounts)
	assert.Equal(t, []uint32{12 * 4 * 2, 12 * 4 * 2, 12 * 2 * 2}, counts.Data)
	offsets, _ := set.Get(TagStripOffsets)
	require.Len(t, offsets.Data, 3)
	assert.Equal(t, offsets.Data[0]+counts.Data[0], offsets.Data[1])

	for _, tag := range []uint16{TagDNGVersion, TagWhiteLevel, TagTileOffsets, TagNewSubfileType} {
		assert.False(t, set.Has(tag), TagName(tag))
	}

	mw := encodeTags(t, 4, 4, 16, nil, WriteOptions{Format: FormatTIFF, Photometric: PhotometricMinIsWhite})
	pi, _ := mw.Get(TagPhotometricInterpret)
	assert.Equal(t, uint32(0), pi.Uint())
}

func TestRawDataUniqueID(t *testing.T) {
	t.Parallel()

	a := testRaster(8, 8, 16)
	b := testRaster(8, 8, 16)
	assert.Equal(t, RawDataUniqueID(a), RawDataUniqueID(b))

	b.Pix[5]++
	assert.NotEqual(t, RawDataUniqueID(a), RawDataUniqueID(b))

	c := testRaster(8, 8, 16)
	c.BitDepth = 15
	assert.NotEqual(t, RawDataUniqueID(a), RawDataUniqueID(c))
}

func TestTagSet(t *testing.T) {
	t.Parallel()

	s := NewTagSet()
	s.SetShort(TagOrientation, 3)
	s.SetShort(TagOrientation, 1)
	s.SetLong(TagImageWidth, 5)
	s.SetASCII(TagMake, "X")

	assert.Equal(t, 3, s.Len())
	e, _ := s.Get(TagOrientation)
	assert.Equal(t, uint32(1), e.Uint())

	m, _ := s.Get(TagMake)
	assert.Equal(t, uint32(2), m.Count) // NUL terminated
	assert.Equal(t, "X", m.String())

	entries := s.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, TagImageWidth, int(entries[0].Tag))
	assert.Equal(t, TagMake, int(entries[1].Tag))
	assert.Equal(t, TagOrientation, int(entries[2].Tag))

	c := s.Clone()
	c.Delete(TagMake)
	assert.True(t, s.Has(TagMake))
	assert.False(t, c.Has(TagMake))

	var nilSet *TagSet
	assert.Equal(t, 0, nilSet.Len())
	assert.Equal(t, 0, nilSet.Clone().Len())
}

func TestReadTagSet_BigEndian(t *testing.T) {
	t.Parallel()

	b := []byte{
		'M', 'M', 0, 42, 0, 0, 0, 8,
		0, 2, // two entries
		0x01, 0x00, 0, 3, 0, 0, 0, 1, 0x00, 0x10, 0, 0, // ImageWidth SHORT 16
		0x01, 0x01, 0, 4, 0, 0, 0, 1, 0, 0, 0x01, 0x02, // ImageLength LONG 258
		0, 0, 0, 0,
	}
	set, err := ReadTagSet(bytes.NewReader(b))
	require.NoError(t, err)
	w, _ := set.Get(TagImageWidth)
	h, _ := set.Get(TagImageLength)
	assert.Equal(t, uint32(16), w.Uint())
	assert.Equal(t, uint32(258), h.Uint())

	_, err = ReadTagSet(bytes.NewReader([]byte("XX\x00\x2a\x00\x00\x00\x08")))
	assert.Error(t, err)
	_, err = ReadTagSet(bytes.NewReader([]byte("II\x2b\x00\x08\x00\x00\x00")))
	assert.Error(t, err)
}

func TestTagName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "WhiteLevel", TagName(TagWhiteLevel))
	assert.Equal(t, "Tag0xABCD", TagName(0xabcd))
}

func TestParsePhotometric(t *testing.T) {
	t.Parallel()

	p, err := ParsePhotometric("minisblack")
	require.NoError(t, err)
	assert.Equal(t, uint16(1), p.Code())
	p, err = ParsePhotometric("MinIsWhite")
	require.NoError(t, err)
	assert.Equal(t, uint16(0), p.Code())
	_, err = ParsePhotometric("rgb")
	assert.Error(t, err)
}
