// Package jpxml serializes decoded JPEG 2000 structures to JPXML, the
// XML mirror of the on-disk box and marker-segment structure defined
// by ISO/IEC 15444-2 Annex N. Box 4CC codes become element names with
// spaces mapped to underscores ("jP  " -> "jP__", "res " -> "res_");
// the XML box is the exception and is written as "_xml_".
package jpxml

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/jpfielding/jpeg2000.go/pkg/jp2"
	"github.com/jpfielding/jpeg2000.go/pkg/jpc"
)

// Representation selects how much of the image property data the
// document carries.
type Representation int

const (
	// Skeleton expresses only the structure of the image: container
	// elements with length/offset attributes, no text nodes.
	Skeleton Representation = iota
	// FatSkeleton adds property values as text nodes but no binary
	// payloads.
	FatSkeleton
	// Fat adds the binary payloads, hex or base64 encoded.
	Fat
)

func (r Representation) String() string {
	switch r {
	case Skeleton:
		return "skeleton"
	case FatSkeleton:
		return "fat-skeleton"
	case Fat:
		return "fat"
	}
	return "unknown"
}

// ParseRepresentation maps the CLI spelling to a Representation.
func ParseRepresentation(s string) (Representation, error) {
	switch s {
	case "skeleton":
		return Skeleton, nil
	case "fat-skeleton":
		return FatSkeleton, nil
	case "fat":
		return Fat, nil
	}
	return 0, fmt.Errorf("invalid representation %q", s)
}

// EncodeJP2 decodes the JP2 container from r and writes its JPXML
// document. Each contiguous codestream is decoded in turn from its
// recorded offset.
func EncodeJP2(w io.Writer, r io.ReadSeeker, rep Representation, name string) error {
	file, err := jp2.Decode(r)
	if err != nil {
		return err
	}

	e := &encoder{w: w, rep: rep}
	e.printf("<?xml version=\"1.0\"?>\n")
	e.printf(`<xjp:jpxml xmlns:xjp="http://www.jpeg.org/jpxml/1.0" xmlns:xs="http://www.w3.org/2001/XMLSchema"`)
	if name != "" {
		e.printf(" length=\"%d\" name=\"%s\"", file.Size, name)
	}
	e.printf(">\n")

	e.signatureBox(file.Signature)
	e.fileTypeBox(file.FileType)
	e.headerBox(file.Header)
	if file.IPR != nil {
		e.iprBox(file.IPR)
	}
	for _, xb := range file.XML {
		e.xmlBox(xb)
	}
	for _, ub := range file.UUID {
		e.uuidBox(ub)
	}
	for _, info := range file.UUIDInfos {
		e.uuidInfoBox(info)
	}

	for _, box := range file.Codestreams {
		if _, err := r.Seek(box.Offset(), io.SeekStart); err != nil {
			return err
		}
		cs, err := jpc.Decode(r)
		if err != nil {
			return err
		}
		e.codestream(cs, box)
	}

	e.printf("</xjp:jpxml>\n")
	return e.err
}

// EncodeJPC decodes a raw codestream from r and writes its JPXML
// document.
func EncodeJPC(w io.Writer, r io.ReadSeeker, rep Representation) error {
	cs, err := jpc.Decode(r)
	if err != nil {
		return err
	}

	e := &encoder{w: w, rep: rep}
	e.printf("<?xml version=\"1.0\"?>\n")
	e.printf("<xjp:jpxml xmlns:xjp=\"http://www.jpeg.org/jpxml/1.0\" xmlns:xs=\"http://www.w3.org/2001/XMLSchema\">\n")
	e.codestream(cs, nil)
	e.printf("</xjp:jpxml>\n")
	return e.err
}

// encoder accumulates the first write error so the per-box methods
// stay linear.
type encoder struct {
	w   io.Writer
	rep Representation
	err error
}

func (e *encoder) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

// values reports whether property text nodes are emitted.
func (e *encoder) values() bool { return e.rep != Skeleton }

// payloads reports whether binary payload data is emitted.
func (e *encoder) payloads() bool { return e.rep == Fat }

func (e *encoder) openBox(indent string, elem string, b jp2.Box) {
	e.printf("%s<xjp:%s type=\"box\" length=\"%d\" offset=\"%d\">\n",
		indent, elem, b.Length(), b.Offset())
}

func (e *encoder) closeBox(indent, elem string) {
	e.printf("%s</xjp:%s>\n", indent, elem)
}

func (e *encoder) signatureBox(b *jp2.SignatureBox) {
	e.openBox("  ", "jP__", b)
	if e.values() {
		sig := b.Signature()
		e.printf("    <xjp:signature length=\"4\" type=\"hexbyte\">%s</xjp:signature>\n",
			hex.EncodeToString(sig[:]))
	}
	e.closeBox("  ", "jP__")
}

func (e *encoder) fileTypeBox(b *jp2.FileTypeBox) {
	e.openBox("  ", "ftyp", b)
	if e.values() {
		e.printf("    <xjp:brand length=\"4\" type=\"fourcc\">%s</xjp:brand>\n", b.Brand)
		e.printf("    <xjp:version length=\"4\" type=\"integer\">%d</xjp:version>\n", b.MinorVersion)
		for _, c := range b.Compatibility {
			e.printf("    <xjp:compatibility length=\"4\" type=\"fourcc\">%s</xjp:compatibility>\n", c)
		}
	}
	e.closeBox("  ", "ftyp")
}

func (e *encoder) headerBox(b *jp2.HeaderBox) {
	e.openBox("  ", "jp2h", b)
	e.imageHeaderBox(b.ImageHeader)
	if b.BitsPerComponent != nil {
		e.bitsPerComponentBox(b.BitsPerComponent)
	}
	for _, colr := range b.ColourSpecs {
		e.colourSpecificationBox(colr)
	}
	if b.Palette != nil {
		e.paletteBox(b.Palette)
	}
	if b.ComponentMapping != nil {
		e.componentMappingBox(b.ComponentMapping)
	}
	if b.ChannelDef != nil {
		e.channelDefinitionBox(b.ChannelDef)
	}
	if b.Resolution != nil {
		e.resolutionBox(b.Resolution)
	}
	e.closeBox("  ", "jp2h")
}

func (e *encoder) imageHeaderBox(b *jp2.ImageHeaderBox) {
	e.openBox("    ", "ihdr", b)
	if e.values() {
		e.printf("      <xjp:height type=\"integer\" length=\"4\">%d</xjp:height>\n", b.Height)
		e.printf("      <xjp:width type=\"integer\" length=\"4\">%d</xjp:width>\n", b.Width)
		e.printf("      <xjp:num_components type=\"integer\" length=\"2\">%d</xjp:num_components>\n", b.NumComponents)
		e.printf("      <xjp:depth type=\"integer\" length=\"1\">%d</xjp:depth>\n", b.BPC)
		e.printf("      <xjp:compression type=\"integer\" length=\"1\">%d</xjp:compression>\n", b.Compression)
		e.printf("      <xjp:colour_unknown type=\"integer\" length=\"1\">%d</xjp:colour_unknown>\n", b.ColourspaceUnknown)
		e.printf("      <xjp:ipr type=\"integer\" length=\"1\">%d</xjp:ipr>\n", b.IPR)
	}
	e.closeBox("    ", "ihdr")
}

func (e *encoder) bitsPerComponentBox(b *jp2.BitsPerComponentBox) {
	e.openBox("    ", "bpcc", b)
	if e.values() {
		for _, d := range b.BitDepths() {
			e.printf("      <xjp:depth length=\"1\" type=\"integer\">%d</xjp:depth>\n", d.Depth)
		}
	}
	e.closeBox("    ", "bpcc")
}

func (e *encoder) colourSpecificationBox(b *jp2.ColourSpecificationBox) {
	e.openBox("    ", "colr", b)
	if e.values() {
		e.printf("      <xjp:method length=\"1\" type=\"integer\">%d</xjp:method>\n", uint8(b.Method))
		e.printf("      <xjp:precedence length=\"1\" type=\"integer\">%d</xjp:precedence>\n", b.Precedence)
		e.printf("      <xjp:approx length=\"1\" type=\"integer\">%d</xjp:approx>\n", b.Approximation)
		if b.Method == jp2.MethodEnumerated {
			e.printf("      <xjp:colour length=\"4\" type=\"integer\">%d</xjp:colour>\n", b.EnumeratedColourSpace)
		}
	}
	if e.payloads() && len(b.ICCProfile) > 0 {
		e.printf("      <xjp:profile length=\"%d\" type=\"hexbyte\">%s</xjp:profile>\n",
			len(b.ICCProfile), hex.EncodeToString(b.ICCProfile))
	}
	e.closeBox("    ", "colr")
}

func (e *encoder) paletteBox(b *jp2.PaletteBox) {
	e.openBox("    ", "pclr", b)
	if e.values() {
		e.printf("      <xjp:num_entries length=\"2\" type=\"integer\">%d</xjp:num_entries>\n", b.NumEntries)
		e.printf("      <xjp:num_components length=\"1\" type=\"integer\">%d</xjp:num_components>\n", len(b.Columns))
		for _, col := range b.Columns {
			e.printf("      <xjp:depth length=\"1\" type=\"integer\">%d</xjp:depth>\n", col.BitDepth.Depth)
			if e.payloads() {
				e.printf("      <xjp:data type=\"integer\">")
				for j, v := range col.Values {
					if j > 0 {
						e.printf(" ")
					}
					e.printf("%d", v)
				}
				e.printf("</xjp:data>\n")
			}
		}
	}
	e.closeBox("    ", "pclr")
}

func (e *encoder) componentMappingBox(b *jp2.ComponentMappingBox) {
	e.openBox("    ", "cmap", b)
	if e.values() {
		for _, m := range b.Mappings {
			e.printf("      <xjp:mapc type=\"xjp:mapc\">\n")
			e.printf("        <xjp:component length=\"2\" type=\"integer\">%d</xjp:component>\n", m.Component)
			e.printf("        <xjp:mtype length=\"1\" type=\"integer\">%d</xjp:mtype>\n", uint8(m.MappingType))
			e.printf("        <xjp:palette length=\"1\" type=\"integer\">%d</xjp:palette>\n", m.PaletteColumn)
			e.printf("      </xjp:mapc>\n")
		}
	}
	e.closeBox("    ", "cmap")
}

func (e *encoder) channelDefinitionBox(b *jp2.ChannelDefinitionBox) {
	e.openBox("    ", "cdef", b)
	if e.values() {
		e.printf("      <xjp:num_entries length=\"2\" type=\"integer\">%d</xjp:num_entries>\n", len(b.Channels))
		for _, ch := range b.Channels {
			e.printf("      <xjp:index length=\"2\" type=\"integer\">%d</xjp:index>\n", ch.Index)
			e.printf("      <xjp:type length=\"2\" type=\"integer\">%d</xjp:type>\n", uint16(ch.Typ))
			e.printf("      <xjp:assoc length=\"2\" type=\"integer\">%d</xjp:assoc>\n", ch.Association)
		}
	}
	e.closeBox("    ", "cdef")
}

func (e *encoder) resolutionBox(b *jp2.ResolutionBox) {
	e.openBox("    ", "res_", b)
	if b.Capture != nil {
		e.resolution("resc", b.Capture)
	}
	if b.Display != nil {
		e.resolution("resd", b.Display)
	}
	e.closeBox("    ", "res_")
}

func (e *encoder) resolution(elem string, b *jp2.Resolution) {
	e.openBox("      ", elem, b)
	if e.values() {
		e.printf("        <xjp:vert_num length=\"2\" type=\"integer\">%d</xjp:vert_num>\n", b.VNum)
		e.printf("        <xjp:vert_den length=\"2\" type=\"integer\">%d</xjp:vert_den>\n", b.VDen)
		e.printf("        <xjp:hori_num length=\"2\" type=\"integer\">%d</xjp:hori_num>\n", b.HNum)
		e.printf("        <xjp:hori_den length=\"2\" type=\"integer\">%d</xjp:hori_den>\n", b.HDen)
		e.printf("        <xjp:vert_exp length=\"1\" type=\"integer\">%d</xjp:vert_exp>\n", b.VExp)
		e.printf("        <xjp:hori_exp length=\"1\" type=\"integer\">%d</xjp:hori_exp>\n", b.HExp)
	}
	e.closeBox("      ", elem)
}

func (e *encoder) iprBox(b *jp2.IPRBox) {
	e.openBox("  ", "jp2i", b)
	if e.payloads() {
		e.printf("    <xjp:data length=\"%d\" type=\"hexbyte\">%s</xjp:data>\n",
			len(b.Data), hex.EncodeToString(b.Data))
	}
	e.closeBox("  ", "jp2i")
}

func (e *encoder) xmlBox(b *jp2.XMLBox) {
	e.openBox("  ", "_xml_", b)
	if e.values() {
		text := b.Text()
		e.printf("    <xjp:text length=\"%d\" type=\"string\">\n", len(text))
		e.printf("    <![CDATA[%s]]>\n", text)
		e.printf("    </xjp:text>\n")
	}
	e.closeBox("  ", "_xml_")
}

func (e *encoder) uuidBox(b *jp2.UUIDBox) {
	e.openBox("  ", "uuid", b)
	if e.values() {
		e.printf("    <xjp:id length=\"16\" type=\"uuid\">%s</xjp:id>\n", b.UUID)
	}
	if e.payloads() {
		e.printf("    <xjp:data length=\"%d\" type=\"hexbyte\">%s</xjp:data>\n",
			len(b.Data), hex.EncodeToString(b.Data))
	}
	e.closeBox("  ", "uuid")
}

func (e *encoder) uuidInfoBox(b *jp2.UUIDInfoBox) {
	e.openBox("  ", "uinf", b)
	if b.List != nil {
		e.openBox("    ", "ulst", b.List)
		if e.values() {
			for _, id := range b.List.IDs {
				e.printf("      <xjp:id length=\"16\" type=\"uuid\">%s</xjp:id>\n", id)
			}
		}
		e.closeBox("    ", "ulst")
	}
	if b.URL != nil {
		e.openBox("    ", "url_", b.URL)
		if e.values() {
			e.printf("      <xjp:version length=\"1\" type=\"integer\">%d</xjp:version>\n", b.URL.Version)
			e.printf("      <xjp:location type=\"string\">%s</xjp:location>\n", b.URL.Location)
		}
		e.closeBox("    ", "url_")
	}
	e.closeBox("  ", "uinf")
}

func (e *encoder) codestream(cs *jpc.Codestream, box *jp2.CodestreamBox) {
	if box != nil {
		e.openBox("  ", "jp2c", box)
	} else {
		e.printf("  <xjp:jp2c type=\"box\">\n")
	}

	e.siz(cs.Header.SIZ)
	e.cod(cs.Header.COD)
	for _, coc := range cs.Header.COCs {
		e.coc(coc)
	}
	e.qcd(cs.Header.QCD)
	for _, qcc := range cs.Header.QCCs {
		e.qcc(qcc)
	}
	for _, rgn := range cs.Header.RGNs {
		e.rgn(rgn)
	}
	if cs.Header.POC != nil {
		e.poc(cs.Header.POC)
	}
	if cs.Header.TLM != nil {
		e.tlm(cs.Header.TLM)
	}
	if cs.Header.CRG != nil {
		e.crg(cs.Header.CRG)
	}
	for _, com := range cs.Header.COMs {
		e.com(com)
	}
	for _, tile := range cs.Tiles {
		e.tile(tile)
	}

	e.closeBox("  ", "jp2c")
}

func (e *encoder) openMarker(elem string, offset int64, length uint16) {
	e.printf("    <xjp:%s type=\"marker\" length=\"%d\" offset=\"%d\">\n", elem, length, offset)
}

func (e *encoder) siz(s *jpc.SIZ) {
	e.openMarker("SIZ", s.Offset(), s.Length())
	if e.values() {
		e.printf("      <xjp:Rsiz>%d</xjp:Rsiz>\n", s.Rsiz)
		e.printf("      <xjp:Xsiz>%d</xjp:Xsiz>\n", s.XSiz)
		e.printf("      <xjp:Ysiz>%d</xjp:Ysiz>\n", s.YSiz)
		e.printf("      <xjp:XOsiz>%d</xjp:XOsiz>\n", s.XOsiz)
		e.printf("      <xjp:YOsiz>%d</xjp:YOsiz>\n", s.YOsiz)
		e.printf("      <xjp:XTsiz>%d</xjp:XTsiz>\n", s.XTsiz)
		e.printf("      <xjp:YTsiz>%d</xjp:YTsiz>\n", s.YTsiz)
		e.printf("      <xjp:XTOsiz>%d</xjp:XTOsiz>\n", s.XTOsiz)
		e.printf("      <xjp:YTOsiz>%d</xjp:YTOsiz>\n", s.YTOsiz)
		e.printf("      <xjp:Csiz>%d</xjp:Csiz>\n", s.Csiz())
		for _, c := range s.Components {
			e.printf("      <xjp:Ssiz>%d</xjp:Ssiz>\n", c.Ssiz)
			e.printf("      <xjp:XRsiz>%d</xjp:XRsiz>\n", c.XRsiz)
			e.printf("      <xjp:YRsiz>%d</xjp:YRsiz>\n", c.YRsiz)
		}
	}
	e.printf("    </xjp:SIZ>\n")
}

func (e *encoder) codingStyle(p *jpc.CodingStyleParameters) {
	e.printf("        <xjp:num_levels>%d</xjp:num_levels>\n", p.DecompositionLevels)
	e.printf("        <xjp:xcb>%d</xjp:xcb>\n", p.CodeBlockWidth())
	e.printf("        <xjp:ycb>%d</xjp:ycb>\n", p.CodeBlockHeight())
	e.printf("        <xjp:style>%d</xjp:style>\n", uint8(p.CodeBlockStyle))
	e.printf("        <xjp:wavelet>%s</xjp:wavelet>\n", p.Transformation)
	for _, ps := range p.Precincts {
		e.printf("        <xjp:ppx>%d</xjp:ppx>\n", ps.PPx())
		e.printf("        <xjp:ppy>%d</xjp:ppy>\n", ps.PPy())
	}
}

func (e *encoder) cod(c *jpc.COD) {
	e.openMarker("COD", c.Offset(), c.Length())
	if e.values() {
		e.printf("      <xjp:Scod>%d</xjp:Scod>\n", c.Scod)
		e.printf("      <xjp:SGcod>\n")
		e.printf("        <xjp:progression>%s</xjp:progression>\n", c.Progression)
		e.printf("        <xjp:num_layers>%d</xjp:num_layers>\n", c.NumLayers)
		e.printf("        <xjp:colour_conv>%s</xjp:colour_conv>\n", c.MCT)
		e.printf("      </xjp:SGcod>\n")
		e.printf("      <xjp:SPcod>\n")
		e.codingStyle(&c.Style)
		e.printf("      </xjp:SPcod>\n")
	}
	e.printf("    </xjp:COD>\n")
}

func (e *encoder) coc(c *jpc.COC) {
	e.openMarker("COC", c.Offset(), c.Length())
	if e.values() {
		e.printf("      <xjp:Ccoc>%d</xjp:Ccoc>\n", c.Component)
		e.printf("      <xjp:Scoc>%d</xjp:Scoc>\n", c.Scoc)
		e.printf("      <xjp:SPcoc>\n")
		e.codingStyle(&c.Style)
		e.printf("      </xjp:SPcoc>\n")
	}
	e.printf("    </xjp:COC>\n")
}

func (e *encoder) quantization(style jpc.QuantizationStyle, sqcd uint8, steps []jpc.StepSize) {
	e.printf("      <xjp:Sqcd>%d</xjp:Sqcd>\n", sqcd)
	for _, s := range steps {
		if style == jpc.QuantizationNone {
			e.printf("      <xjp:SPqcd>%d</xjp:SPqcd>\n", s.Exponent)
		} else {
			e.printf("      <xjp:SPqcd>%d</xjp:SPqcd>\n", uint16(s.Exponent)<<11|s.Mantissa)
		}
	}
}

func (e *encoder) qcd(q *jpc.QCD) {
	e.openMarker("QCD", q.Offset(), q.Length())
	if e.values() {
		e.quantization(q.Style, q.Sqcd, q.Steps)
	}
	e.printf("    </xjp:QCD>\n")
}

func (e *encoder) qcc(q *jpc.QCC) {
	e.openMarker("QCC", q.Offset(), q.Length())
	if e.values() {
		e.printf("      <xjp:Cqcc>%d</xjp:Cqcc>\n", q.Component)
		e.quantization(q.Style, q.Sqcd, q.Steps)
	}
	e.printf("    </xjp:QCC>\n")
}

func (e *encoder) rgn(g *jpc.RGN) {
	e.openMarker("RGN", g.Offset(), g.Length())
	if e.values() {
		e.printf("      <xjp:Crgn>%d</xjp:Crgn>\n", g.Component)
		e.printf("      <xjp:Srgn>%d</xjp:Srgn>\n", g.Srgn)
		e.printf("      <xjp:SPrgn>%d</xjp:SPrgn>\n", g.SPrgn)
	}
	e.printf("    </xjp:RGN>\n")
}

func (e *encoder) poc(p *jpc.POC) {
	e.openMarker("POC", p.Offset(), p.Length())
	if e.values() {
		for _, ch := range p.Changes {
			e.printf("      <xjp:RSpoc>%d</xjp:RSpoc>\n", ch.RSpoc)
			e.printf("      <xjp:CSpoc>%d</xjp:CSpoc>\n", ch.CSpoc)
			e.printf("      <xjp:LYEpoc>%d</xjp:LYEpoc>\n", ch.LYEpoc)
			e.printf("      <xjp:REpoc>%d</xjp:REpoc>\n", ch.REpoc)
			e.printf("      <xjp:CEpoc>%d</xjp:CEpoc>\n", ch.CEpoc)
			e.printf("      <xjp:Ppoc>%s</xjp:Ppoc>\n", ch.Ppoc)
		}
	}
	e.printf("    </xjp:POC>\n")
}

func (e *encoder) tlm(t *jpc.TLM) {
	e.openMarker("TLM", t.Offset(), t.Length())
	if e.values() {
		e.printf("      <xjp:Ztlm>%d</xjp:Ztlm>\n", t.Ztlm)
		e.printf("      <xjp:Stlm>%d</xjp:Stlm>\n", t.Stlm)
		for _, entry := range t.Entries {
			e.printf("      <xjp:Ttlm>%d</xjp:Ttlm>\n", entry.Ttlm)
			e.printf("      <xjp:Ptlm>%d</xjp:Ptlm>\n", entry.Ptlm)
		}
	}
	e.printf("    </xjp:TLM>\n")
}

func (e *encoder) crg(c *jpc.CRG) {
	e.openMarker("CRG", c.Offset(), c.Length())
	if e.values() {
		for _, o := range c.Offsets {
			e.printf("      <xjp:Xcrg>%d</xjp:Xcrg>\n", o.Xcrg)
			e.printf("      <xjp:Ycrg>%d</xjp:Ycrg>\n", o.Ycrg)
		}
	}
	e.printf("    </xjp:CRG>\n")
}

func (e *encoder) com(c *jpc.COM) {
	e.openMarker("COM", c.Offset(), c.Length())
	if e.values() {
		e.printf("      <xjp:Rcom>%d</xjp:Rcom>\n", uint16(c.Registration))
		if c.Registration == jpc.CommentLatin {
			e.printf("      <xjp:comment type=\"string\"><![CDATA[%s]]></xjp:comment>\n", c.Text())
		} else if e.payloads() {
			e.printf("      <xjp:comment type=\"hexbyte\">%s</xjp:comment>\n", hex.EncodeToString(c.Data))
		}
	}
	e.printf("    </xjp:COM>\n")
}

func (e *encoder) tile(t *jpc.Tile) {
	sot := &t.Header.SOT
	e.openMarker("SOT", sot.Offset(), sot.Length())
	if e.values() {
		e.printf("      <xjp:Isot>%d</xjp:Isot>\n", sot.TileIndex)
		e.printf("      <xjp:Psot>%d</xjp:Psot>\n", sot.TilePartLength)
		e.printf("      <xjp:TPsot>%d</xjp:TPsot>\n", sot.TilePartIndex)
		e.printf("      <xjp:TNsot>%d</xjp:TNsot>\n", sot.NumTileParts)
	}
	if t.Header.COD != nil {
		e.cod(t.Header.COD)
	}
	for _, coc := range t.Header.COCs {
		e.coc(coc)
	}
	if t.Header.QCD != nil {
		e.qcd(t.Header.QCD)
	}
	for _, qcc := range t.Header.QCCs {
		e.qcc(qcc)
	}
	for _, rgn := range t.Header.RGNs {
		e.rgn(rgn)
	}
	if t.Header.POC != nil {
		e.poc(t.Header.POC)
	}
	for _, com := range t.Header.COMs {
		e.com(com)
	}
	if e.payloads() {
		e.printf("      <xjp:data length=\"%d\" offset=\"%d\" type=\"base64\">%s</xjp:data>\n",
			len(t.Body), t.BodyOffset, base64.StdEncoding.EncodeToString(t.Body))
	}
	e.printf("    </xjp:SOT>\n")
}
