package jpxml

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildCodestream assembles a minimal single-tile codestream.
func buildCodestream() []byte {
	var b bytes.Buffer
	u16 := func(v uint16) { binary.Write(&b, binary.BigEndian, v) }
	u32 := func(v uint32) { binary.Write(&b, binary.BigEndian, v) }

	u16(0xFF4F) // SOC

	u16(0xFF51) // SIZ
	u16(41)
	u16(0)  // Rsiz
	u32(64) // Xsiz
	u32(64) // Ysiz
	u32(0)
	u32(0)
	u32(64) // XTsiz
	u32(64) // YTsiz
	u32(0)
	u32(0)
	u16(1)         // Csiz
	b.WriteByte(7) // 8-bit unsigned
	b.WriteByte(1)
	b.WriteByte(1)

	u16(0xFF52) // COD
	u16(12)
	b.WriteByte(0) // Scod
	b.WriteByte(0) // LRCP
	u16(1)         // layers
	b.WriteByte(0) // no MCT
	b.WriteByte(2) // NL
	b.WriteByte(4)
	b.WriteByte(4)
	b.WriteByte(0)
	b.WriteByte(1) // reversible

	u16(0xFF5C) // QCD
	u16(10)
	b.WriteByte(1 << 5) // one guard bit, style 0
	for i := 0; i < 7; i++ {
		b.WriteByte(9 << 3)
	}

	u16(0xFF64) // COM
	u16(9)
	u16(1) // Latin
	b.WriteString("hello")

	u16(0xFF90) // SOT
	u16(10)
	u16(0)
	u32(0)
	b.WriteByte(0)
	b.WriteByte(1)
	u16(0xFF93) // SOD
	b.Write([]byte{0x12, 0x34})
	u16(0xFFD9) // EOC

	return b.Bytes()
}

// buildJP2 wraps the codestream in a minimal container.
func buildJP2(codestream []byte) []byte {
	var b bytes.Buffer
	box := func(typ string, payload []byte) {
		binary.Write(&b, binary.BigEndian, uint32(len(payload)+8))
		b.WriteString(typ)
		b.Write(payload)
	}

	box("jP  ", []byte{0x0D, 0x0A, 0x87, 0x0A})

	var ftyp bytes.Buffer
	ftyp.WriteString("jp2 ")
	ftyp.Write([]byte{0, 0, 0, 0})
	ftyp.WriteString("jp2 ")
	box("ftyp", ftyp.Bytes())

	ihdr := make([]byte, 14)
	binary.BigEndian.PutUint32(ihdr[0:4], 64)
	binary.BigEndian.PutUint32(ihdr[4:8], 64)
	binary.BigEndian.PutUint16(ihdr[8:10], 1)
	ihdr[10] = 7
	ihdr[11] = 7

	colr := make([]byte, 7)
	colr[0] = 1
	binary.BigEndian.PutUint32(colr[3:7], 17)

	var jp2h bytes.Buffer
	binary.Write(&jp2h, binary.BigEndian, uint32(len(ihdr)+8))
	jp2h.WriteString("ihdr")
	jp2h.Write(ihdr)
	binary.Write(&jp2h, binary.BigEndian, uint32(len(colr)+8))
	jp2h.WriteString("colr")
	jp2h.Write(colr)
	box("jp2h", jp2h.Bytes())

	box("xml ", []byte("<meta/>"))
	box("jp2c", codestream)
	return b.Bytes()
}

func TestParseRepresentation(t *testing.T) {
	for _, s := range []string{"skeleton", "fat-skeleton", "fat"} {
		rep, err := ParseRepresentation(s)
		require.NoError(t, err)
		assert.Equal(t, s, rep.String())
	}
	_, err := ParseRepresentation("chunky")
	assert.Error(t, err)
}

func TestEncodeJP2Skeleton(t *testing.T) {
	data := buildJP2(buildCodestream())

	var out strings.Builder
	err := EncodeJP2(&out, bytes.NewReader(data), Skeleton, "test.jp2")
	require.NoError(t, err)
	doc := out.String()

	assert.True(t, strings.HasPrefix(doc, "<?xml version=\"1.0\"?>\n"))
	assert.Contains(t, doc, `<xjp:jpxml xmlns:xjp="http://www.jpeg.org/jpxml/1.0"`)
	assert.Contains(t, doc, `name="test.jp2"`)
	assert.Contains(t, doc, "<xjp:jP__ type=\"box\"")
	assert.Contains(t, doc, "<xjp:ftyp type=\"box\"")
	assert.Contains(t, doc, "<xjp:jp2h type=\"box\"")
	assert.Contains(t, doc, "<xjp:ihdr type=\"box\"")
	assert.Contains(t, doc, "<xjp:_xml_ type=\"box\"")
	assert.Contains(t, doc, "<xjp:jp2c type=\"box\"")
	assert.Contains(t, doc, "<xjp:SIZ type=\"marker\"")
	assert.Contains(t, doc, "<xjp:COD type=\"marker\"")
	assert.Contains(t, doc, "<xjp:QCD type=\"marker\"")
	assert.Contains(t, doc, "</xjp:jpxml>\n")

	// Skeleton: structure only, no property text nodes.
	assert.NotContains(t, doc, "<xjp:height")
	assert.NotContains(t, doc, "<xjp:Xsiz")
	assert.NotContains(t, doc, "hello")
}

func TestEncodeJP2FatSkeleton(t *testing.T) {
	data := buildJP2(buildCodestream())

	var out strings.Builder
	err := EncodeJP2(&out, bytes.NewReader(data), FatSkeleton, "test.jp2")
	require.NoError(t, err)
	doc := out.String()

	assert.Contains(t, doc, "<xjp:height type=\"integer\" length=\"4\">64</xjp:height>")
	assert.Contains(t, doc, "<xjp:brand length=\"4\" type=\"fourcc\">jp2 </xjp:brand>")
	assert.Contains(t, doc, "<xjp:colour length=\"4\" type=\"integer\">17</xjp:colour>")
	assert.Contains(t, doc, "<xjp:Xsiz>64</xjp:Xsiz>")
	assert.Contains(t, doc, "<xjp:Csiz>1</xjp:Csiz>")
	assert.Contains(t, doc, "<xjp:progression>LRCP</xjp:progression>")
	assert.Contains(t, doc, "<xjp:wavelet>Reversible</xjp:wavelet>")
	assert.Contains(t, doc, "<![CDATA[hello]]>")
	assert.Contains(t, doc, "<![CDATA[<meta/>]]>")

	// No binary payloads below fat.
	assert.NotContains(t, doc, "base64")
}

func TestEncodeJP2Fat(t *testing.T) {
	data := buildJP2(buildCodestream())

	var out strings.Builder
	err := EncodeJP2(&out, bytes.NewReader(data), Fat, "test.jp2")
	require.NoError(t, err)
	doc := out.String()

	// The two tile body bytes, base64 encoded.
	assert.Contains(t, doc, "type=\"base64\">EjQ=</xjp:data>")
}

func TestEncodeJPC(t *testing.T) {
	var out strings.Builder
	err := EncodeJPC(&out, bytes.NewReader(buildCodestream()), FatSkeleton)
	require.NoError(t, err)
	doc := out.String()

	assert.Contains(t, doc, "<xjp:jp2c type=\"box\">")
	assert.Contains(t, doc, "<xjp:SIZ type=\"marker\" length=\"41\" offset=\"4\">")
	assert.Contains(t, doc, "<xjp:Isot>0</xjp:Isot>")
	assert.Contains(t, doc, "<xjp:Rcom>1</xjp:Rcom>")
}

func TestEncodeJP2BadInput(t *testing.T) {
	var out strings.Builder
	err := EncodeJP2(&out, bytes.NewReader([]byte("not a jp2")), Skeleton, "x")
	assert.Error(t, err)
}
