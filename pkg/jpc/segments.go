package jpc

import (
	"encoding/binary"
	"fmt"
	"io"
)

func position(r io.Seeker) int64 {
	offset, _ := r.Seek(0, io.SeekCurrent)
	return offset
}

func readU8(r io.Reader) (uint8, error) {
	var b [1]byte
	_, err := io.ReadFull(r, b[:])
	return b[0], err
}

func readU16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// segmentInfo records where a marker segment sits in the stream:
// Offset is the first byte of the length field, Length the L value
// measured from that byte per A.4.2.
type segmentInfo struct {
	offset int64
	length uint16
}

func (s segmentInfo) Offset() int64  { return s.offset }
func (s segmentInfo) Length() uint16 { return s.length }

// readSegmentInfo consumes the 2-byte length prefix of a marker
// segment.
func readSegmentInfo(r io.ReadSeeker, m Marker) (segmentInfo, error) {
	info := segmentInfo{offset: position(r)}
	length, err := readU16(r)
	if err != nil {
		return info, segTruncated(err, m)
	}
	if length < 2 {
		return info, &MarkerDataError{Marker: m, Description: fmt.Sprintf("segment length %d too short", length)}
	}
	info.length = length
	return info, nil
}

func segTruncated(err error, m Marker) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return &MarkerDataError{Marker: m, Description: "truncated segment"}
	}
	return fmt.Errorf("reading %s segment: %w", m, err)
}

// ComponentSampling is one SIZ per-component record: sample precision
// plus sub-sampling factors on the reference grid.
type ComponentSampling struct {
	Ssiz  uint8 // sign bit + precision-1
	XRsiz uint8
	YRsiz uint8
}

// Precision is the component bit depth including the sign bit.
func (c ComponentSampling) Precision() uint8 { return c.Ssiz&0x7F + 1 }

// Signed reports whether samples are signed.
func (c ComponentSampling) Signed() bool { return c.Ssiz&0x80 != 0 }

// SIZ is the image and tile size marker segment (A.5.1): reference
// grid and tile geometry plus per-component precision and sampling.
type SIZ struct {
	segmentInfo
	Rsiz       uint16 // decoder capabilities
	XSiz       uint32 // reference grid width
	YSiz       uint32 // reference grid height
	XOsiz      uint32 // image area horizontal offset
	YOsiz      uint32 // image area vertical offset
	XTsiz      uint32 // tile width
	YTsiz      uint32 // tile height
	XTOsiz     uint32 // tile grid horizontal offset
	YTOsiz     uint32 // tile grid vertical offset
	Components []ComponentSampling
}

// Csiz is the number of components.
func (s *SIZ) Csiz() uint16 { return uint16(len(s.Components)) }

// NumXTiles returns the number of tiles horizontally.
func (s *SIZ) NumXTiles() int {
	return int((s.XSiz - s.XTOsiz + s.XTsiz - 1) / s.XTsiz)
}

// NumYTiles returns the number of tiles vertically.
func (s *SIZ) NumYTiles() int {
	return int((s.YSiz - s.YTOsiz + s.YTsiz - 1) / s.YTsiz)
}

// NumTiles returns the total number of tiles.
func (s *SIZ) NumTiles() int { return s.NumXTiles() * s.NumYTiles() }

func parseSIZ(r io.ReadSeeker) (*SIZ, error) {
	info, err := readSegmentInfo(r, MarkerSIZ)
	if err != nil {
		return nil, err
	}
	s := &SIZ{segmentInfo: info}

	fields := []*uint32{&s.XSiz, &s.YSiz, &s.XOsiz, &s.YOsiz, &s.XTsiz, &s.YTsiz, &s.XTOsiz, &s.YTOsiz}
	if s.Rsiz, err = readU16(r); err != nil {
		return nil, segTruncated(err, MarkerSIZ)
	}
	for _, f := range fields {
		if *f, err = readU32(r); err != nil {
			return nil, segTruncated(err, MarkerSIZ)
		}
	}
	csiz, err := readU16(r)
	if err != nil {
		return nil, segTruncated(err, MarkerSIZ)
	}
	if info.length != 38+3*csiz {
		return nil, &MarkerDataError{
			Marker:      MarkerSIZ,
			Description: fmt.Sprintf("length %d does not match %d components", info.length, csiz),
		}
	}
	if s.XTsiz == 0 || s.YTsiz == 0 {
		return nil, &MarkerDataError{Marker: MarkerSIZ, Description: "zero tile size"}
	}

	s.Components = make([]ComponentSampling, csiz)
	for i := range s.Components {
		var raw [3]byte
		if _, err := io.ReadFull(r, raw[:]); err != nil {
			return nil, segTruncated(err, MarkerSIZ)
		}
		s.Components[i] = ComponentSampling{Ssiz: raw[0], XRsiz: raw[1], YRsiz: raw[2]}
	}

	if s.XTOsiz > s.XOsiz || s.YTOsiz > s.YOsiz {
		return nil, &TileGridOffsetOverflowError{
			XTOsiz: s.XTOsiz, YTOsiz: s.YTOsiz, XOsiz: s.XOsiz, YOsiz: s.YOsiz,
		}
	}
	if s.XTsiz+s.XTOsiz <= s.XOsiz || s.YTsiz+s.YTOsiz <= s.YOsiz {
		return nil, &TileSizeOverflowError{
			XTsiz: s.XTsiz, YTsiz: s.YTsiz, XTOsiz: s.XTOsiz, YTOsiz: s.YTOsiz,
			XOsiz: s.XOsiz, YOsiz: s.YOsiz,
		}
	}
	return s, nil
}

// ProgressionOrder selects the packet ordering (Table A.16).
type ProgressionOrder uint8

const (
	ProgressionLRCP ProgressionOrder = 0 // Layer-Resolution-Component-Position
	ProgressionRLCP ProgressionOrder = 1 // Resolution-Layer-Component-Position
	ProgressionRPCL ProgressionOrder = 2 // Resolution-Position-Component-Layer
	ProgressionPCRL ProgressionOrder = 3 // Position-Component-Resolution-Layer
	ProgressionCPRL ProgressionOrder = 4 // Component-Position-Resolution-Layer
)

func (p ProgressionOrder) String() string {
	switch p {
	case ProgressionLRCP:
		return "LRCP"
	case ProgressionRLCP:
		return "RLCP"
	case ProgressionRPCL:
		return "RPCL"
	case ProgressionPCRL:
		return "PCRL"
	case ProgressionCPRL:
		return "CPRL"
	}
	return "Reserved"
}

// MultipleComponentTransform signals component decorrelation (Table A.17).
type MultipleComponentTransform uint8

const (
	MCTNone     MultipleComponentTransform = 0
	MCTMultiple MultipleComponentTransform = 1
)

func (m MultipleComponentTransform) String() string {
	switch m {
	case MCTNone:
		return "None"
	case MCTMultiple:
		return "Multiple"
	}
	return "Reserved"
}

// TransformationFilter is the wavelet filter (Table A.20).
type TransformationFilter uint8

const (
	TransformationIrreversible TransformationFilter = 0 // 9-7 irreversible
	TransformationReversible   TransformationFilter = 1 // 5-3 reversible
)

func (t TransformationFilter) String() string {
	switch t {
	case TransformationIrreversible:
		return "Irreversible"
	case TransformationReversible:
		return "Reversible"
	}
	return "Reserved"
}

// Scod / Scoc coding style flags (Table A.13).
const (
	codingStylePrecincts uint8 = 0x01
	codingStyleSOP       uint8 = 0x02
	codingStyleEPH       uint8 = 0x04
)

// CodeBlockStyle is the SPcod style flag byte; each bit is an
// independent coding-pass attribute (Table A.19).
type CodeBlockStyle uint8

func (s CodeBlockStyle) SelectiveBypass() bool        { return s&0x01 != 0 }
func (s CodeBlockStyle) ResetContext() bool           { return s&0x02 != 0 }
func (s CodeBlockStyle) TerminateEachPass() bool      { return s&0x04 != 0 }
func (s CodeBlockStyle) VerticallyCausal() bool       { return s&0x08 != 0 }
func (s CodeBlockStyle) PredictableTermination() bool { return s&0x10 != 0 }
func (s CodeBlockStyle) SegmentationSymbols() bool    { return s&0x20 != 0 }

// PrecinctSize packs the precinct exponents: PPx in the 4 LSBs, PPy in
// the 4 MSBs.
type PrecinctSize uint8

func (p PrecinctSize) PPx() uint8 { return uint8(p) & 0x0F }
func (p PrecinctSize) PPy() uint8 { return uint8(p) >> 4 }

// CodingStyleParameters is the SPcod/SPcoc block shared by COD and COC.
type CodingStyleParameters struct {
	DecompositionLevels uint8 // NL, 0-32
	CodeBlockWidthExp   uint8 // xcb offset; effective width 2^(xcb+2)
	CodeBlockHeightExp  uint8 // ycb offset; effective height 2^(ycb+2)
	CodeBlockStyle      CodeBlockStyle
	Transformation      TransformationFilter
	// Precincts holds NL+1 size bytes when user-defined precincts are
	// signalled, nil otherwise (implying PPx = PPy = 15).
	Precincts []PrecinctSize
}

// CodeBlockWidth is the effective code-block width.
func (p *CodingStyleParameters) CodeBlockWidth() int {
	return 1 << (p.CodeBlockWidthExp&0x0F + 2)
}

// CodeBlockHeight is the effective code-block height.
func (p *CodingStyleParameters) CodeBlockHeight() int {
	return 1 << (p.CodeBlockHeightExp&0x0F + 2)
}

// NumSubbands is the subband count the quantization segments size
// themselves against: 3*NL + 1.
func (p *CodingStyleParameters) NumSubbands() int {
	return 3*int(p.DecompositionLevels) + 1
}

func parseCodingStyleParameters(r io.ReadSeeker, m Marker, withPrecincts bool) (CodingStyleParameters, error) {
	var p CodingStyleParameters
	var raw [5]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return p, segTruncated(err, m)
	}
	p.DecompositionLevels = raw[0]
	p.CodeBlockWidthExp = raw[1]
	p.CodeBlockHeightExp = raw[2]
	p.CodeBlockStyle = CodeBlockStyle(raw[3])
	p.Transformation = TransformationFilter(raw[4])

	if p.DecompositionLevels > 32 {
		return p, &MarkerDataError{Marker: m, Description: fmt.Sprintf("decomposition levels %d out of range", p.DecompositionLevels)}
	}
	xcb := p.CodeBlockWidthExp&0x0F + 2
	ycb := p.CodeBlockHeightExp&0x0F + 2
	if xcb > 10 || ycb > 10 || xcb+ycb > 12 {
		return p, &MarkerDataError{Marker: m, Description: fmt.Sprintf("code-block size %dx%d out of range", xcb, ycb)}
	}

	if withPrecincts {
		p.Precincts = make([]PrecinctSize, int(p.DecompositionLevels)+1)
		for i := range p.Precincts {
			b, err := readU8(r)
			if err != nil {
				return p, segTruncated(err, m)
			}
			p.Precincts[i] = PrecinctSize(b)
		}
	}
	return p, nil
}

// COD is the coding style default marker segment (A.6.1).
type COD struct {
	segmentInfo
	Scod        uint8
	Progression ProgressionOrder
	NumLayers   uint16
	MCT         MultipleComponentTransform
	Style       CodingStyleParameters
}

// UserPrecincts reports Scod bit 0: user-defined precinct sizes.
func (c *COD) UserPrecincts() bool { return c.Scod&codingStylePrecincts != 0 }

// UsesSOP reports Scod bit 1: SOP marker segments may be present.
func (c *COD) UsesSOP() bool { return c.Scod&codingStyleSOP != 0 }

// UsesEPH reports Scod bit 2: EPH markers may be present.
func (c *COD) UsesEPH() bool { return c.Scod&codingStyleEPH != 0 }

func parseCOD(r io.ReadSeeker) (*COD, error) {
	info, err := readSegmentInfo(r, MarkerCOD)
	if err != nil {
		return nil, err
	}
	c := &COD{segmentInfo: info}
	var raw [5]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return nil, segTruncated(err, MarkerCOD)
	}
	c.Scod = raw[0]
	c.Progression = ProgressionOrder(raw[1])
	c.NumLayers = uint16(raw[2])<<8 | uint16(raw[3])
	c.MCT = MultipleComponentTransform(raw[4])
	if c.NumLayers == 0 {
		return nil, &MarkerDataError{Marker: MarkerCOD, Description: "zero layers"}
	}
	if c.Style, err = parseCodingStyleParameters(r, MarkerCOD, c.UserPrecincts()); err != nil {
		return nil, err
	}
	return c, nil
}

// COC is the coding style component marker segment (A.6.2). The
// component index is one byte when Csiz < 257, two bytes otherwise.
type COC struct {
	segmentInfo
	Component uint16
	Scoc      uint8
	Style     CodingStyleParameters
}

// UserPrecincts reports Scoc bit 0.
func (c *COC) UserPrecincts() bool { return c.Scoc&codingStylePrecincts != 0 }

func readComponentIndex(r io.ReadSeeker, m Marker, csiz uint16) (uint16, error) {
	if csiz < 257 {
		b, err := readU8(r)
		if err != nil {
			return 0, segTruncated(err, m)
		}
		return uint16(b), nil
	}
	c, err := readU16(r)
	if err != nil {
		return 0, segTruncated(err, m)
	}
	return c, nil
}

func parseCOC(r io.ReadSeeker, csiz uint16) (*COC, error) {
	info, err := readSegmentInfo(r, MarkerCOC)
	if err != nil {
		return nil, err
	}
	c := &COC{segmentInfo: info}
	if c.Component, err = readComponentIndex(r, MarkerCOC, csiz); err != nil {
		return nil, err
	}
	if c.Component >= csiz {
		return nil, &MarkerDataError{Marker: MarkerCOC, Description: fmt.Sprintf("component %d out of range", c.Component)}
	}
	if c.Scoc, err = readU8(r); err != nil {
		return nil, segTruncated(err, MarkerCOC)
	}
	if c.Style, err = parseCodingStyleParameters(r, MarkerCOC, c.UserPrecincts()); err != nil {
		return nil, err
	}
	return c, nil
}

// QuantizationStyle is the low 5 bits of Sqcd/Sqcc (Table A.28).
type QuantizationStyle uint8

const (
	QuantizationNone            QuantizationStyle = 0
	QuantizationScalarDerived   QuantizationStyle = 1
	QuantizationScalarExpounded QuantizationStyle = 2
)

func (q QuantizationStyle) String() string {
	switch q {
	case QuantizationNone:
		return "No"
	case QuantizationScalarDerived:
		return "ScalarDerived"
	case QuantizationScalarExpounded:
		return "ScalarExpounded"
	}
	return "Reserved"
}

// StepSize is one subband quantization value. For the reversible style
// only the exponent is meaningful.
type StepSize struct {
	Exponent uint8  // 5 bits
	Mantissa uint16 // 11 bits, zero for reversible
}

// quantization is the shared Sqcd/Sqcc payload.
type quantization struct {
	Sqcd      uint8
	Style     QuantizationStyle
	GuardBits uint8
	Steps     []StepSize
}

// parseQuantization reads the style byte and the per-subband values.
// The subband count is not transmitted; it derives from the governing
// COD/COC decomposition levels, which is why those segments must
// already have been parsed.
func parseQuantization(r io.ReadSeeker, m Marker, remaining int, numSubbands int) (quantization, error) {
	var q quantization
	sqcd, err := readU8(r)
	if err != nil {
		return q, segTruncated(err, m)
	}
	q.Sqcd = sqcd
	q.Style = QuantizationStyle(sqcd & 0x1F)
	q.GuardBits = sqcd >> 5
	remaining--

	switch q.Style {
	case QuantizationNone:
		if remaining != numSubbands {
			return q, &MarkerDataError{Marker: m, Description: fmt.Sprintf("%d step bytes for %d subbands", remaining, numSubbands)}
		}
		for i := 0; i < numSubbands; i++ {
			b, err := readU8(r)
			if err != nil {
				return q, segTruncated(err, m)
			}
			q.Steps = append(q.Steps, StepSize{Exponent: b >> 3})
		}
	case QuantizationScalarDerived:
		if remaining != 2 {
			return q, &MarkerDataError{Marker: m, Description: fmt.Sprintf("%d step bytes for derived quantization", remaining)}
		}
		v, err := readU16(r)
		if err != nil {
			return q, segTruncated(err, m)
		}
		q.Steps = []StepSize{{Exponent: uint8(v >> 11), Mantissa: v & 0x07FF}}
	case QuantizationScalarExpounded:
		if remaining != 2*numSubbands {
			return q, &MarkerDataError{Marker: m, Description: fmt.Sprintf("%d step bytes for %d subbands", remaining, numSubbands)}
		}
		for i := 0; i < numSubbands; i++ {
			v, err := readU16(r)
			if err != nil {
				return q, segTruncated(err, m)
			}
			q.Steps = append(q.Steps, StepSize{Exponent: uint8(v >> 11), Mantissa: v & 0x07FF})
		}
	default:
		return q, &MarkerDataError{Marker: m, Description: fmt.Sprintf("reserved quantization style %d", q.Style)}
	}
	return q, nil
}

// QCD is the quantization default marker segment (A.6.4).
type QCD struct {
	segmentInfo
	quantization
}

func parseQCD(r io.ReadSeeker, numSubbands int) (*QCD, error) {
	info, err := readSegmentInfo(r, MarkerQCD)
	if err != nil {
		return nil, err
	}
	q, err := parseQuantization(r, MarkerQCD, int(info.length)-2, numSubbands)
	if err != nil {
		return nil, err
	}
	return &QCD{segmentInfo: info, quantization: q}, nil
}

// QCC is the per-component quantization marker segment (A.6.5).
type QCC struct {
	segmentInfo
	Component uint16
	quantization
}

func parseQCC(r io.ReadSeeker, csiz uint16, numSubbands func(component uint16) int) (*QCC, error) {
	info, err := readSegmentInfo(r, MarkerQCC)
	if err != nil {
		return nil, err
	}
	c := &QCC{segmentInfo: info}
	if c.Component, err = readComponentIndex(r, MarkerQCC, csiz); err != nil {
		return nil, err
	}
	if c.Component >= csiz {
		return nil, &MarkerDataError{Marker: MarkerQCC, Description: fmt.Sprintf("component %d out of range", c.Component)}
	}
	indexLen := 1
	if csiz >= 257 {
		indexLen = 2
	}
	q, err := parseQuantization(r, MarkerQCC, int(info.length)-2-indexLen, numSubbands(c.Component))
	if err != nil {
		return nil, err
	}
	c.quantization = q
	return c, nil
}

// RGN is the region-of-interest marker segment (A.6.3).
type RGN struct {
	segmentInfo
	Component uint16
	Srgn      uint8 // ROI style; 0 = implicit
	SPrgn     uint8 // implicit ROI shift
}

func parseRGN(r io.ReadSeeker, csiz uint16) (*RGN, error) {
	info, err := readSegmentInfo(r, MarkerRGN)
	if err != nil {
		return nil, err
	}
	g := &RGN{segmentInfo: info}
	if g.Component, err = readComponentIndex(r, MarkerRGN, csiz); err != nil {
		return nil, err
	}
	if g.Component >= csiz {
		return nil, &MarkerDataError{Marker: MarkerRGN, Description: fmt.Sprintf("component %d out of range", g.Component)}
	}
	if g.Srgn, err = readU8(r); err != nil {
		return nil, segTruncated(err, MarkerRGN)
	}
	if g.SPrgn, err = readU8(r); err != nil {
		return nil, segTruncated(err, MarkerRGN)
	}
	return g, nil
}

// ProgressionChange is one POC entry.
type ProgressionChange struct {
	RSpoc  uint8  // resolution level start
	CSpoc  uint16 // component start
	LYEpoc uint16 // layer end
	REpoc  uint8  // resolution level end
	CEpoc  uint16 // component end
	Ppoc   ProgressionOrder
}

// POC is the progression order change marker segment (A.6.6).
type POC struct {
	segmentInfo
	Changes []ProgressionChange
}

func parsePOC(r io.ReadSeeker, csiz uint16) (*POC, error) {
	info, err := readSegmentInfo(r, MarkerPOC)
	if err != nil {
		return nil, err
	}
	p := &POC{segmentInfo: info}
	entry := 7
	if csiz >= 257 {
		entry = 9
	}
	remaining := int(info.length) - 2
	if remaining <= 0 || remaining%entry != 0 {
		return nil, &MarkerDataError{Marker: MarkerPOC, Description: fmt.Sprintf("length %d does not frame whole entries", info.length)}
	}
	for n := remaining / entry; n > 0; n-- {
		var ch ProgressionChange
		if ch.RSpoc, err = readU8(r); err != nil {
			return nil, segTruncated(err, MarkerPOC)
		}
		if ch.CSpoc, err = readComponentIndex(r, MarkerPOC, csiz); err != nil {
			return nil, err
		}
		if ch.LYEpoc, err = readU16(r); err != nil {
			return nil, segTruncated(err, MarkerPOC)
		}
		if ch.REpoc, err = readU8(r); err != nil {
			return nil, segTruncated(err, MarkerPOC)
		}
		if ch.CEpoc, err = readComponentIndex(r, MarkerPOC, csiz); err != nil {
			return nil, err
		}
		ppoc, err := readU8(r)
		if err != nil {
			return nil, segTruncated(err, MarkerPOC)
		}
		ch.Ppoc = ProgressionOrder(ppoc)
		p.Changes = append(p.Changes, ch)
	}
	return p, nil
}

// TLMEntry is one tile-part length record.
type TLMEntry struct {
	Ttlm uint16 // tile index; 0 when ST signals none
	Ptlm uint32 // tile-part length
}

// TLM is the tile-part lengths marker segment (A.7.1).
type TLM struct {
	segmentInfo
	Ztlm    uint8 // index of this segment among TLMs
	Stlm    uint8 // size flags: ST in bits 4-5, SP in bit 6
	Entries []TLMEntry
}

func parseTLM(r io.ReadSeeker) (*TLM, error) {
	info, err := readSegmentInfo(r, MarkerTLM)
	if err != nil {
		return nil, err
	}
	t := &TLM{segmentInfo: info}
	if t.Ztlm, err = readU8(r); err != nil {
		return nil, segTruncated(err, MarkerTLM)
	}
	if t.Stlm, err = readU8(r); err != nil {
		return nil, segTruncated(err, MarkerTLM)
	}
	st := int(t.Stlm >> 4 & 0x03)
	sp := 2
	if t.Stlm&0x40 != 0 {
		sp = 4
	}
	if st > 2 {
		return nil, &MarkerDataError{Marker: MarkerTLM, Description: "reserved ST value"}
	}
	entry := st + sp
	remaining := int(info.length) - 4
	if remaining%entry != 0 {
		return nil, &MarkerDataError{Marker: MarkerTLM, Description: fmt.Sprintf("length %d does not frame whole entries", info.length)}
	}
	for n := remaining / entry; n > 0; n-- {
		var e TLMEntry
		switch st {
		case 1:
			b, err := readU8(r)
			if err != nil {
				return nil, segTruncated(err, MarkerTLM)
			}
			e.Ttlm = uint16(b)
		case 2:
			if e.Ttlm, err = readU16(r); err != nil {
				return nil, segTruncated(err, MarkerTLM)
			}
		}
		if sp == 2 {
			v, err := readU16(r)
			if err != nil {
				return nil, segTruncated(err, MarkerTLM)
			}
			e.Ptlm = uint32(v)
		} else {
			if e.Ptlm, err = readU32(r); err != nil {
				return nil, segTruncated(err, MarkerTLM)
			}
		}
		t.Entries = append(t.Entries, e)
	}
	return t, nil
}

// PLM is the main-header packet length marker segment (A.7.2). The
// packet length list is kept raw; interpreting it requires the packet
// iterator the pixel path would bring.
type PLM struct {
	segmentInfo
	Zplm uint8
	Data []byte
}

// PLT is the tile-part analogue of PLM (A.7.3).
type PLT struct {
	segmentInfo
	Zplt uint8
	Data []byte
}

func parsePLM(r io.ReadSeeker) (*PLM, error) {
	info, err := readSegmentInfo(r, MarkerPLM)
	if err != nil {
		return nil, err
	}
	z, data, err := parseIndexedBlob(r, MarkerPLM, info)
	if err != nil {
		return nil, err
	}
	return &PLM{segmentInfo: info, Zplm: z, Data: data}, nil
}

func parsePLT(r io.ReadSeeker) (*PLT, error) {
	info, err := readSegmentInfo(r, MarkerPLT)
	if err != nil {
		return nil, err
	}
	z, data, err := parseIndexedBlob(r, MarkerPLT, info)
	if err != nil {
		return nil, err
	}
	return &PLT{segmentInfo: info, Zplt: z, Data: data}, nil
}

// PPM is the main-header packed packet headers marker segment (A.7.4).
type PPM struct {
	segmentInfo
	Zppm uint8
	Data []byte
}

// PPT is the tile-part packed packet headers marker segment (A.7.5).
type PPT struct {
	segmentInfo
	Zppt uint8
	Data []byte
}

func parsePPM(r io.ReadSeeker) (*PPM, error) {
	info, err := readSegmentInfo(r, MarkerPPM)
	if err != nil {
		return nil, err
	}
	z, data, err := parseIndexedBlob(r, MarkerPPM, info)
	if err != nil {
		return nil, err
	}
	return &PPM{segmentInfo: info, Zppm: z, Data: data}, nil
}

func parsePPT(r io.ReadSeeker) (*PPT, error) {
	info, err := readSegmentInfo(r, MarkerPPT)
	if err != nil {
		return nil, err
	}
	z, data, err := parseIndexedBlob(r, MarkerPPT, info)
	if err != nil {
		return nil, err
	}
	return &PPT{segmentInfo: info, Zppt: z, Data: data}, nil
}

// parseIndexedBlob reads the Z index byte plus the remaining payload
// shared by the PLM/PLT/PPM/PPT family.
func parseIndexedBlob(r io.ReadSeeker, m Marker, info segmentInfo) (uint8, []byte, error) {
	z, err := readU8(r)
	if err != nil {
		return 0, nil, segTruncated(err, m)
	}
	data := make([]byte, int(info.length)-3)
	if _, err := io.ReadFull(r, data); err != nil {
		return 0, nil, segTruncated(err, m)
	}
	return z, data, nil
}

// CRGOffset is one component registration offset pair in units of
// 1/65536 of a grid point.
type CRGOffset struct {
	Xcrg uint16
	Ycrg uint16
}

// CRG is the component registration marker segment (A.9.1).
type CRG struct {
	segmentInfo
	Offsets []CRGOffset
}

func parseCRG(r io.ReadSeeker, csiz uint16) (*CRG, error) {
	info, err := readSegmentInfo(r, MarkerCRG)
	if err != nil {
		return nil, err
	}
	if int(info.length) != 2+4*int(csiz) {
		return nil, &MarkerDataError{Marker: MarkerCRG, Description: fmt.Sprintf("length %d does not match %d components", info.length, csiz)}
	}
	c := &CRG{segmentInfo: info}
	for i := uint16(0); i < csiz; i++ {
		var o CRGOffset
		if o.Xcrg, err = readU16(r); err != nil {
			return nil, segTruncated(err, MarkerCRG)
		}
		if o.Ycrg, err = readU16(r); err != nil {
			return nil, segTruncated(err, MarkerCRG)
		}
		c.Offsets = append(c.Offsets, o)
	}
	return c, nil
}

// CommentRegistration is the COM Rcom value.
type CommentRegistration uint16

const (
	CommentBinary CommentRegistration = 0 // general use, binary values
	CommentLatin  CommentRegistration = 1 // general use, IS 8859-15 (Latin)
)

func (c CommentRegistration) String() string {
	switch c {
	case CommentBinary:
		return "Binary"
	case CommentLatin:
		return "Latin"
	}
	return "Reserved"
}

// COM carries unstructured comment data in a main or tile-part header
// (A.9.2).
type COM struct {
	segmentInfo
	Registration CommentRegistration
	Data         []byte
}

// Text returns the comment body as a string; meaningful for Latin
// registration.
func (c *COM) Text() string { return string(c.Data) }

func parseCOM(r io.ReadSeeker) (*COM, error) {
	info, err := readSegmentInfo(r, MarkerCOM)
	if err != nil {
		return nil, err
	}
	c := &COM{segmentInfo: info}
	rcom, err := readU16(r)
	if err != nil {
		return nil, segTruncated(err, MarkerCOM)
	}
	c.Registration = CommentRegistration(rcom)
	c.Data = make([]byte, int(info.length)-4)
	if _, err := io.ReadFull(r, c.Data); err != nil {
		return nil, segTruncated(err, MarkerCOM)
	}
	return c, nil
}

// SOT opens a tile-part header (A.4.2).
type SOT struct {
	segmentInfo
	TileIndex uint16
	// TilePartLength counts from the first byte of the SOT marker to
	// the end of the tile-part data; zero means "to EOC" and is only
	// allowed on the last tile-part.
	TilePartLength uint32
	TilePartIndex  uint8
	NumTileParts   uint8 // zero when not specified
}

func parseSOT(r io.ReadSeeker) (*SOT, error) {
	info, err := readSegmentInfo(r, MarkerSOT)
	if err != nil {
		return nil, err
	}
	if info.length != 10 {
		return nil, &MarkerDataError{Marker: MarkerSOT, Description: fmt.Sprintf("length %d, want 10", info.length)}
	}
	s := &SOT{segmentInfo: info}
	if s.TileIndex, err = readU16(r); err != nil {
		return nil, segTruncated(err, MarkerSOT)
	}
	if s.TilePartLength, err = readU32(r); err != nil {
		return nil, segTruncated(err, MarkerSOT)
	}
	if s.TilePartIndex, err = readU8(r); err != nil {
		return nil, segTruncated(err, MarkerSOT)
	}
	if s.NumTileParts, err = readU8(r); err != nil {
		return nil, segTruncated(err, MarkerSOT)
	}
	return s, nil
}
