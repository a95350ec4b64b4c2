package jpc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// streamBuilder assembles codestream bytes for tests.
type streamBuilder struct {
	buf bytes.Buffer
}

func (b *streamBuilder) u8(v uint8)      { b.buf.WriteByte(v) }
func (b *streamBuilder) u16(v uint16)    { b.buf.WriteByte(byte(v >> 8)); b.buf.WriteByte(byte(v)) }
func (b *streamBuilder) u32(v uint32)    { b.u16(uint16(v >> 16)); b.u16(uint16(v)) }
func (b *streamBuilder) raw(p []byte)    { b.buf.Write(p) }
func (b *streamBuilder) marker(m Marker) { b.u16(uint16(m)) }

// segment writes a marker, its length field (payload + 2) and the
// payload.
func (b *streamBuilder) segment(m Marker, payload []byte) {
	b.marker(m)
	b.u16(uint16(len(payload) + 2))
	b.raw(payload)
}

func (b *streamBuilder) bytes() []byte { return b.buf.Bytes() }

// sizPayload builds a SIZ payload for identical square-sampled
// components.
func sizPayload(w, h uint32, components int, ssiz uint8) []byte {
	var p streamBuilder
	p.u16(0) // Rsiz
	p.u32(w) // Xsiz
	p.u32(h) // Ysiz
	p.u32(0) // XOsiz
	p.u32(0) // YOsiz
	p.u32(w) // XTsiz
	p.u32(h) // YTsiz
	p.u32(0) // XTOsiz
	p.u32(0) // YTOsiz
	p.u16(uint16(components))
	for i := 0; i < components; i++ {
		p.u8(ssiz)
		p.u8(1)
		p.u8(1)
	}
	return p.bytes()
}

// codPayload builds a COD payload without precinct overrides.
func codPayload(scod uint8, progression ProgressionOrder, layers uint16, mct, levels uint8) []byte {
	var p streamBuilder
	p.u8(scod)
	p.u8(uint8(progression))
	p.u16(layers)
	p.u8(mct)
	p.u8(levels)
	p.u8(4) // xcb: 64 wide
	p.u8(4) // ycb: 64 high
	p.u8(0) // no code-block style flags
	p.u8(uint8(TransformationReversible))
	return p.bytes()
}

// qcdPayload builds a reversible (style 0) QCD payload.
func qcdPayload(guardBits uint8, levels int) []byte {
	var p streamBuilder
	p.u8(guardBits << 5)
	for i := 0; i < 3*levels+1; i++ {
		p.u8(uint8(i+9) << 3)
	}
	return p.bytes()
}

func sotPayload(tile uint16, psot uint32, part, parts uint8) []byte {
	var p streamBuilder
	p.u16(tile)
	p.u32(psot)
	p.u8(part)
	p.u8(parts)
	return p.bytes()
}

const testComment = "Created by OpenJPEG version 2.5.0"

// buildSimpleCodestream mirrors a single-tile OpenJPEG lossless
// encode: SOC, SIZ, COD, QCD, COM, one tile-part, EOC.
func buildSimpleCodestream(body []byte) []byte {
	var b streamBuilder
	b.marker(MarkerSOC)
	b.segment(MarkerSIZ, sizPayload(64, 128, 3, 15))
	b.segment(MarkerCOD, codPayload(0, ProgressionLRCP, 1, 1, 5))
	b.segment(MarkerQCD, qcdPayload(2, 5))
	var com streamBuilder
	com.u16(uint16(CommentLatin))
	com.raw([]byte(testComment))
	b.segment(MarkerCOM, com.bytes())
	b.segment(MarkerSOT, sotPayload(0, 0, 0, 1))
	b.marker(MarkerSOD)
	b.raw(body)
	b.marker(MarkerEOC)
	return b.bytes()
}

func TestDecodeSimpleCodestream(t *testing.T) {
	body := []byte{0x10, 0x20, 0x30, 0x40}
	data := buildSimpleCodestream(body)
	cs, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, int64(0), cs.Offset)
	assert.Equal(t, int64(len(data)), cs.Size)

	siz := cs.Header.SIZ
	require.NotNil(t, siz)
	assert.Equal(t, int64(4), siz.Offset())
	assert.Equal(t, uint16(47), siz.Length())
	assert.Equal(t, uint16(0), siz.Rsiz)
	assert.Equal(t, uint32(64), siz.XSiz)
	assert.Equal(t, uint32(128), siz.YSiz)
	assert.Equal(t, uint32(64), siz.XTsiz)
	assert.Equal(t, uint32(128), siz.YTsiz)
	assert.Equal(t, uint16(3), siz.Csiz())
	assert.Equal(t, 1, siz.NumTiles())
	for i, c := range siz.Components {
		assert.Equal(t, uint8(16), c.Precision(), "component %d", i)
		assert.False(t, c.Signed(), "component %d", i)
		assert.Equal(t, uint8(1), c.XRsiz)
		assert.Equal(t, uint8(1), c.YRsiz)
	}

	cod := cs.Header.COD
	require.NotNil(t, cod)
	assert.Equal(t, uint8(0), cod.Scod)
	assert.False(t, cod.UsesSOP())
	assert.False(t, cod.UsesEPH())
	assert.Equal(t, ProgressionLRCP, cod.Progression)
	assert.Equal(t, "LRCP", cod.Progression.String())
	assert.Equal(t, uint16(1), cod.NumLayers)
	assert.Equal(t, MCTMultiple, cod.MCT)
	assert.Equal(t, uint8(5), cod.Style.DecompositionLevels)
	assert.Equal(t, 64, cod.Style.CodeBlockWidth())
	assert.Equal(t, 64, cod.Style.CodeBlockHeight())
	assert.Equal(t, TransformationReversible, cod.Style.Transformation)
	assert.Nil(t, cod.Style.Precincts)
	assert.False(t, cod.Style.CodeBlockStyle.SelectiveBypass())
	assert.False(t, cod.Style.CodeBlockStyle.SegmentationSymbols())

	qcd := cs.Header.QCD
	require.NotNil(t, qcd)
	assert.Equal(t, QuantizationNone, qcd.Style)
	assert.Equal(t, uint8(2), qcd.GuardBits)
	require.Len(t, qcd.Steps, 16)
	assert.Equal(t, uint8(9), qcd.Steps[0].Exponent)

	require.Len(t, cs.Header.COMs, 1)
	com := cs.Header.COMs[0]
	assert.Equal(t, CommentLatin, com.Registration)
	assert.Equal(t, testComment, com.Text())

	require.Len(t, cs.Tiles, 1)
	tile := cs.Tiles[0]
	assert.Equal(t, uint16(0), tile.Header.SOT.TileIndex)
	assert.Equal(t, uint32(0), tile.Header.SOT.TilePartLength)
	assert.Equal(t, uint8(1), tile.Header.SOT.NumTileParts)
	assert.Equal(t, body, tile.Body)
}

func TestDecodeSOPAndEPH(t *testing.T) {
	// Scod=6: SOP and EPH both enabled; PCRL progression; TLM present.
	var b streamBuilder
	b.marker(MarkerSOC)
	b.segment(MarkerSIZ, sizPayload(64, 64, 1, 7))
	b.segment(MarkerCOD, codPayload(codingStyleSOP|codingStyleEPH, ProgressionPCRL, 1, 0, 5))
	b.segment(MarkerQCD, qcdPayload(1, 5))
	var tlm streamBuilder
	tlm.u8(0)    // Ztlm
	tlm.u8(0x60) // ST=2, SP=1: 2-byte tile index, 4-byte lengths
	tlm.u16(0)
	tlm.u32(123)
	b.segment(MarkerTLM, tlm.bytes())
	var com streamBuilder
	com.u16(uint16(CommentLatin))
	com.raw([]byte("test data for rust JPEG 2000"))
	b.segment(MarkerCOM, com.bytes())
	b.segment(MarkerSOT, sotPayload(0, 0, 0, 1))
	b.marker(MarkerSOD)
	// SOP with its fixed 4-byte trailer, packet data, EPH, more data.
	b.marker(MarkerSOP)
	b.u16(4) // Lsop
	b.u16(0) // Nsop
	b.raw([]byte{0xAA, 0xBB})
	b.marker(MarkerEPH)
	b.raw([]byte{0xCC})
	b.marker(MarkerEOC)

	cs, err := Decode(bytes.NewReader(b.bytes()))
	require.NoError(t, err)

	assert.Equal(t, ProgressionPCRL, cs.Header.COD.Progression)
	assert.True(t, cs.Header.COD.UsesSOP())
	assert.True(t, cs.Header.COD.UsesEPH())

	require.NotNil(t, cs.Header.TLM)
	require.Len(t, cs.Header.TLM.Entries, 1)
	assert.Equal(t, uint32(123), cs.Header.TLM.Entries[0].Ptlm)

	require.Len(t, cs.Header.COMs, 1)
	assert.Equal(t, "test data for rust JPEG 2000", cs.Header.COMs[0].Text())

	require.Len(t, cs.Tiles, 1)
	tile := cs.Tiles[0]
	assert.Equal(t, 1, tile.SOPCount)
	assert.Equal(t, 1, tile.EPHCount)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, tile.Body)
}

func TestDecodeMultipleTileParts(t *testing.T) {
	var b streamBuilder
	b.marker(MarkerSOC)
	b.segment(MarkerSIZ, sizPayload(64, 64, 1, 7))
	b.segment(MarkerCOD, codPayload(0, ProgressionLRCP, 1, 0, 2))
	b.segment(MarkerQCD, qcdPayload(1, 2))
	b.segment(MarkerSOT, sotPayload(0, 0, 0, 2))
	b.marker(MarkerSOD)
	b.raw([]byte{0x01})
	b.segment(MarkerSOT, sotPayload(0, 0, 1, 2))
	b.marker(MarkerSOD)
	b.raw([]byte{0x02})
	b.marker(MarkerEOC)

	cs, err := Decode(bytes.NewReader(b.bytes()))
	require.NoError(t, err)
	require.Len(t, cs.Tiles, 2)
	assert.Equal(t, uint8(0), cs.Tiles[0].Header.SOT.TilePartIndex)
	assert.Equal(t, uint8(1), cs.Tiles[1].Header.SOT.TilePartIndex)
	assert.Equal(t, []byte{0x01}, cs.Tiles[0].Body)
	assert.Equal(t, []byte{0x02}, cs.Tiles[1].Body)
}

func TestDecodeStuffedBytesStayData(t *testing.T) {
	// 0xFF followed by < 0x90 inside the bit-stream is coded data.
	body := []byte{0xFF, 0x8F, 0x00, 0xFF, 0x00}
	data := buildSimpleCodestream(body)
	cs, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, body, cs.Tiles[0].Body)
}

func TestDecodeCOCAndQCC(t *testing.T) {
	var coc streamBuilder
	coc.u8(1)                              // component
	coc.u8(0)                              // Scoc
	coc.raw(codPayload(0, 0, 1, 0, 3)[5:]) // reuse the SPcod tail: NL=3
	var qcc streamBuilder
	qcc.u8(1)      // component
	qcc.u8(1 << 5) // one guard bit, style 0
	for i := 0; i < 3*3+1; i++ {
		qcc.u8(8 << 3)
	}

	var b streamBuilder
	b.marker(MarkerSOC)
	b.segment(MarkerSIZ, sizPayload(64, 64, 2, 7))
	b.segment(MarkerCOD, codPayload(0, ProgressionLRCP, 1, 0, 5))
	b.segment(MarkerCOC, coc.bytes())
	b.segment(MarkerQCD, qcdPayload(1, 5))
	b.segment(MarkerQCC, qcc.bytes())
	b.segment(MarkerSOT, sotPayload(0, 0, 0, 1))
	b.marker(MarkerSOD)
	b.marker(MarkerEOC)

	cs, err := Decode(bytes.NewReader(b.bytes()))
	require.NoError(t, err)

	require.Len(t, cs.Header.COCs, 1)
	assert.Equal(t, uint16(1), cs.Header.COCs[0].Component)
	assert.Equal(t, uint8(3), cs.Header.COCs[0].Style.DecompositionLevels)
	require.NotNil(t, cs.Header.COCFor(1))
	assert.Nil(t, cs.Header.COCFor(0))

	// The QCC for component 1 sizes itself from that component's COC.
	require.Len(t, cs.Header.QCCs, 1)
	assert.Equal(t, uint16(1), cs.Header.QCCs[0].Component)
	assert.Len(t, cs.Header.QCCs[0].Steps, 10)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func() []byte
		check func(t *testing.T, err error)
	}{
		{
			name: "missing SOC",
			build: func() []byte {
				var b streamBuilder
				b.segment(MarkerSIZ, sizPayload(64, 64, 1, 7))
				return b.bytes()
			},
			check: func(t *testing.T, err error) {
				var e *MarkerMissingError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, MarkerSOC, e.Marker)
			},
		},
		{
			name: "missing SIZ",
			build: func() []byte {
				var b streamBuilder
				b.marker(MarkerSOC)
				b.segment(MarkerCOD, codPayload(0, 0, 1, 0, 5))
				return b.bytes()
			},
			check: func(t *testing.T, err error) {
				var e *MarkerMissingError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, MarkerSIZ, e.Marker)
			},
		},
		{
			name: "missing QCD before first tile",
			build: func() []byte {
				var b streamBuilder
				b.marker(MarkerSOC)
				b.segment(MarkerSIZ, sizPayload(64, 64, 1, 7))
				b.segment(MarkerCOD, codPayload(0, 0, 1, 0, 5))
				b.segment(MarkerSOT, sotPayload(0, 0, 0, 1))
				return b.bytes()
			},
			check: func(t *testing.T, err error) {
				var e *MarkerMissingError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, MarkerQCD, e.Marker)
			},
		},
		{
			name: "QCD ahead of COD",
			build: func() []byte {
				var b streamBuilder
				b.marker(MarkerSOC)
				b.segment(MarkerSIZ, sizPayload(64, 64, 1, 7))
				b.segment(MarkerQCD, qcdPayload(1, 5))
				return b.bytes()
			},
			check: func(t *testing.T, err error) {
				var e *MarkerUnexpectedError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, MarkerQCD, e.Marker)
			},
		},
		{
			name: "duplicate COD",
			build: func() []byte {
				var b streamBuilder
				b.marker(MarkerSOC)
				b.segment(MarkerSIZ, sizPayload(64, 64, 1, 7))
				b.segment(MarkerCOD, codPayload(0, 0, 1, 0, 5))
				b.segment(MarkerCOD, codPayload(0, 0, 1, 0, 5))
				return b.bytes()
			},
			check: func(t *testing.T, err error) {
				var e *MarkerUnexpectedError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, MarkerCOD, e.Marker)
			},
		},
		{
			name: "second COC for one component",
			build: func() []byte {
				var coc streamBuilder
				coc.u8(0)
				coc.u8(0)
				coc.raw(codPayload(0, 0, 1, 0, 3)[5:])
				var b streamBuilder
				b.marker(MarkerSOC)
				b.segment(MarkerSIZ, sizPayload(64, 64, 1, 7))
				b.segment(MarkerCOD, codPayload(0, 0, 1, 0, 5))
				b.segment(MarkerCOC, coc.bytes())
				b.segment(MarkerCOC, coc.bytes())
				return b.bytes()
			},
			check: func(t *testing.T, err error) {
				var e *MarkerUnexpectedError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, MarkerCOC, e.Marker)
			},
		},
		{
			name: "tile grid offset overflow",
			build: func() []byte {
				var p streamBuilder
				p.u16(0)
				p.u32(64)
				p.u32(64)
				p.u32(0) // XOsiz
				p.u32(0)
				p.u32(64)
				p.u32(64)
				p.u32(8) // XTOsiz > XOsiz
				p.u32(0)
				p.u16(1)
				p.u8(7)
				p.u8(1)
				p.u8(1)
				var b streamBuilder
				b.marker(MarkerSOC)
				b.segment(MarkerSIZ, p.bytes())
				return b.bytes()
			},
			check: func(t *testing.T, err error) {
				var e *TileGridOffsetOverflowError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, uint32(8), e.XTOsiz)
			},
		},
		{
			name: "tile size overflow",
			build: func() []byte {
				var p streamBuilder
				p.u16(0)
				p.u32(64)
				p.u32(64)
				p.u32(16) // XOsiz
				p.u32(0)
				p.u32(8) // XTsiz: 8+8 <= 16
				p.u32(64)
				p.u32(8) // XTOsiz
				p.u32(0)
				p.u16(1)
				p.u8(7)
				p.u8(1)
				p.u8(1)
				var b streamBuilder
				b.marker(MarkerSOC)
				b.segment(MarkerSIZ, p.bytes())
				return b.bytes()
			},
			check: func(t *testing.T, err error) {
				var e *TileSizeOverflowError
				require.ErrorAs(t, err, &e)
			},
		},
		{
			name: "SOP without coding style permission",
			build: func() []byte {
				var b streamBuilder
				b.marker(MarkerSOC)
				b.segment(MarkerSIZ, sizPayload(64, 64, 1, 7))
				b.segment(MarkerCOD, codPayload(0, 0, 1, 0, 5))
				b.segment(MarkerQCD, qcdPayload(1, 5))
				b.segment(MarkerSOT, sotPayload(0, 0, 0, 1))
				b.marker(MarkerSOD)
				b.marker(MarkerSOP)
				b.u16(4)
				b.u16(0)
				b.marker(MarkerEOC)
				return b.bytes()
			},
			check: func(t *testing.T, err error) {
				var e *MarkerUnexpectedError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, MarkerSOP, e.Marker)
			},
		},
		{
			name: "EPH without coding style permission",
			build: func() []byte {
				var b streamBuilder
				b.marker(MarkerSOC)
				b.segment(MarkerSIZ, sizPayload(64, 64, 1, 7))
				b.segment(MarkerCOD, codPayload(0, 0, 1, 0, 5))
				b.segment(MarkerQCD, qcdPayload(1, 5))
				b.segment(MarkerSOT, sotPayload(0, 0, 0, 1))
				b.marker(MarkerSOD)
				b.marker(MarkerEPH)
				b.marker(MarkerEOC)
				return b.bytes()
			},
			check: func(t *testing.T, err error) {
				var e *MarkerUnexpectedError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, MarkerEPH, e.Marker)
			},
		},
		{
			name: "EPH alongside packed packet headers",
			build: func() []byte {
				var ppt streamBuilder
				ppt.u8(0)
				ppt.raw([]byte{0x00})
				var b streamBuilder
				b.marker(MarkerSOC)
				b.segment(MarkerSIZ, sizPayload(64, 64, 1, 7))
				b.segment(MarkerCOD, codPayload(codingStyleEPH, 0, 1, 0, 5))
				b.segment(MarkerQCD, qcdPayload(1, 5))
				b.segment(MarkerSOT, sotPayload(0, 0, 0, 1))
				b.segment(MarkerPPT, ppt.bytes())
				b.marker(MarkerSOD)
				b.marker(MarkerEPH)
				b.marker(MarkerEOC)
				return b.bytes()
			},
			check: func(t *testing.T, err error) {
				var e *MarkerUnexpectedError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, MarkerEPH, e.Marker)
			},
		},
		{
			name: "PPT after PPM",
			build: func() []byte {
				var ppm streamBuilder
				ppm.u8(0)
				ppm.raw([]byte{0x00, 0x00, 0x00, 0x00})
				var ppt streamBuilder
				ppt.u8(0)
				var b streamBuilder
				b.marker(MarkerSOC)
				b.segment(MarkerSIZ, sizPayload(64, 64, 1, 7))
				b.segment(MarkerCOD, codPayload(0, 0, 1, 0, 5))
				b.segment(MarkerQCD, qcdPayload(1, 5))
				b.segment(MarkerPPM, ppm.bytes())
				b.segment(MarkerSOT, sotPayload(0, 0, 0, 1))
				b.segment(MarkerPPT, ppt.bytes())
				return b.bytes()
			},
			check: func(t *testing.T, err error) {
				var e *MarkerUnexpectedError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, MarkerPPT, e.Marker)
			},
		},
		{
			name: "SIZ in tile-part header",
			build: func() []byte {
				var b streamBuilder
				b.marker(MarkerSOC)
				b.segment(MarkerSIZ, sizPayload(64, 64, 1, 7))
				b.segment(MarkerCOD, codPayload(0, 0, 1, 0, 5))
				b.segment(MarkerQCD, qcdPayload(1, 5))
				b.segment(MarkerSOT, sotPayload(0, 0, 0, 1))
				b.segment(MarkerSIZ, sizPayload(64, 64, 1, 7))
				return b.bytes()
			},
			check: func(t *testing.T, err error) {
				var e *MarkerUnexpectedError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, MarkerSIZ, e.Marker)
			},
		},
		{
			name: "COC component out of range",
			build: func() []byte {
				var coc streamBuilder
				coc.u8(5) // only 1 component
				coc.u8(0)
				coc.raw(codPayload(0, 0, 1, 0, 3)[5:])
				var b streamBuilder
				b.marker(MarkerSOC)
				b.segment(MarkerSIZ, sizPayload(64, 64, 1, 7))
				b.segment(MarkerCOD, codPayload(0, 0, 1, 0, 5))
				b.segment(MarkerCOC, coc.bytes())
				return b.bytes()
			},
			check: func(t *testing.T, err error) {
				var e *MarkerDataError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, MarkerCOC, e.Marker)
			},
		},
		{
			name: "code-block exponents out of range",
			build: func() []byte {
				var cod streamBuilder
				cod.u8(0)
				cod.u8(0)
				cod.u16(1)
				cod.u8(0)
				cod.u8(5)
				cod.u8(8) // xcb+2 = 10
				cod.u8(8) // ycb+2 = 10: sum 20 > 12
				cod.u8(0)
				cod.u8(1)
				var b streamBuilder
				b.marker(MarkerSOC)
				b.segment(MarkerSIZ, sizPayload(64, 64, 1, 7))
				b.segment(MarkerCOD, cod.bytes())
				return b.bytes()
			},
			check: func(t *testing.T, err error) {
				var e *MarkerDataError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, MarkerCOD, e.Marker)
			},
		},
		{
			name: "bad SOT length",
			build: func() []byte {
				var b streamBuilder
				b.marker(MarkerSOC)
				b.segment(MarkerSIZ, sizPayload(64, 64, 1, 7))
				b.segment(MarkerCOD, codPayload(0, 0, 1, 0, 5))
				b.segment(MarkerQCD, qcdPayload(1, 5))
				b.segment(MarkerSOT, sotPayload(0, 0, 0, 1)[:6])
				return b.bytes()
			},
			check: func(t *testing.T, err error) {
				var e *MarkerDataError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, MarkerSOT, e.Marker)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(tt.build()))
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestDecodeWithPrecinctSizes(t *testing.T) {
	var cod streamBuilder
	cod.u8(codingStylePrecincts)
	cod.u8(uint8(ProgressionRLCP))
	cod.u16(1)
	cod.u8(0)
	cod.u8(2) // NL=2: three precinct bytes follow
	cod.u8(4)
	cod.u8(4)
	cod.u8(0)
	cod.u8(uint8(TransformationIrreversible))
	cod.u8(0x57) // PPx=7, PPy=5
	cod.u8(0x88)
	cod.u8(0xFF)

	// Irreversible 9-7 pairs with expounded quantization: 2 bytes per
	// subband.
	var qcd streamBuilder
	qcd.u8(2<<5 | uint8(QuantizationScalarExpounded))
	for i := 0; i < 3*2+1; i++ {
		qcd.u16(uint16(12)<<11 | 0x123)
	}

	var b streamBuilder
	b.marker(MarkerSOC)
	b.segment(MarkerSIZ, sizPayload(64, 64, 1, 7))
	b.segment(MarkerCOD, cod.bytes())
	b.segment(MarkerQCD, qcd.bytes())
	b.segment(MarkerSOT, sotPayload(0, 0, 0, 1))
	b.marker(MarkerSOD)
	b.marker(MarkerEOC)

	cs, err := Decode(bytes.NewReader(b.bytes()))
	require.NoError(t, err)

	style := cs.Header.COD.Style
	require.Len(t, style.Precincts, 3)
	assert.Equal(t, uint8(7), style.Precincts[0].PPx())
	assert.Equal(t, uint8(5), style.Precincts[0].PPy())
	assert.Equal(t, uint8(8), style.Precincts[1].PPx())
	assert.Equal(t, uint8(15), style.Precincts[2].PPy())

	qcdSeg := cs.Header.QCD
	assert.Equal(t, QuantizationScalarExpounded, qcdSeg.Style)
	require.Len(t, qcdSeg.Steps, 7)
	assert.Equal(t, uint8(12), qcdSeg.Steps[0].Exponent)
	assert.Equal(t, uint16(0x123), qcdSeg.Steps[0].Mantissa)
}

func TestDecodeScalarDerivedQCD(t *testing.T) {
	var qcd streamBuilder
	qcd.u8(1<<5 | uint8(QuantizationScalarDerived))
	qcd.u16(uint16(10)<<11 | 0x055)

	var b streamBuilder
	b.marker(MarkerSOC)
	b.segment(MarkerSIZ, sizPayload(64, 64, 1, 7))
	b.segment(MarkerCOD, codPayload(0, 0, 1, 0, 5))
	b.segment(MarkerQCD, qcd.bytes())
	b.segment(MarkerSOT, sotPayload(0, 0, 0, 1))
	b.marker(MarkerSOD)
	b.marker(MarkerEOC)

	cs, err := Decode(bytes.NewReader(b.bytes()))
	require.NoError(t, err)
	require.Len(t, cs.Header.QCD.Steps, 1)
	assert.Equal(t, uint8(10), cs.Header.QCD.Steps[0].Exponent)
	assert.Equal(t, uint16(0x055), cs.Header.QCD.Steps[0].Mantissa)
}

func TestDecodeTileOverrides(t *testing.T) {
	// A tile-part COD with fewer levels governs the tile QCD's subband
	// count.
	var b streamBuilder
	b.marker(MarkerSOC)
	b.segment(MarkerSIZ, sizPayload(64, 64, 1, 7))
	b.segment(MarkerCOD, codPayload(0, 0, 1, 0, 5))
	b.segment(MarkerQCD, qcdPayload(1, 5))
	b.segment(MarkerSOT, sotPayload(0, 0, 0, 1))
	b.segment(MarkerCOD, codPayload(0, 0, 1, 0, 1))
	b.segment(MarkerQCD, qcdPayload(1, 1))
	b.marker(MarkerSOD)
	b.marker(MarkerEOC)

	cs, err := Decode(bytes.NewReader(b.bytes()))
	require.NoError(t, err)
	tile := cs.Tiles[0]
	require.NotNil(t, tile.Header.COD)
	assert.Equal(t, uint8(1), tile.Header.COD.Style.DecompositionLevels)
	require.NotNil(t, tile.Header.QCD)
	assert.Len(t, tile.Header.QCD.Steps, 4)
}
