package jp2

import (
	"bytes"
	"io"

	"github.com/google/uuid"

	"github.com/jpfielding/jpeg2000.go/pkg/icc"
)

// Box is the surface every box variant shares: its fourcc, payload
// length and payload offset within the file.
type Box interface {
	Identifier() Type
	Length() uint64
	Offset() int64
}

// boxInfo carries the common header fields; every box embeds it.
type boxInfo struct {
	typ    Type
	length uint64
	offset int64
}

func (b boxInfo) Identifier() Type { return b.typ }
func (b boxInfo) Length() uint64   { return b.length }
func (b boxInfo) Offset() int64    { return b.offset }

func newBoxInfo(typ Type, h BoxHeader, offset int64) boxInfo {
	return boxInfo{typ: typ, length: h.Length, offset: offset}
}

// signatureMagic is the fixed Signature box payload:
// <CR><LF><0x87><LF>. The CR-LF catches transfers that alter newline
// sequences, the high bit of 0x87 catches transfers that clear bit 7,
// and the final LF checks the inverse CR-LF translation.
var signatureMagic = [4]byte{0x0D, 0x0A, 0x87, 0x0A}

// SignatureBox is the fixed 12-byte box that identifies a JP2 file. It
// shall be the first box in the file.
type SignatureBox struct {
	boxInfo
}

// Signature returns the 4-byte magic payload.
func (b *SignatureBox) Signature() [4]byte { return signatureMagic }

func parseSignatureBox(r io.ReadSeeker, h BoxHeader) (*SignatureBox, error) {
	b := &SignatureBox{boxInfo: newBoxInfo(TypeSignature, h, position(r))}
	if h.Length != 4 {
		return nil, &BoxMalformedError{Type: TypeSignature, Offset: b.offset}
	}
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, truncated(err, TypeSignature, b.offset)
	}
	if magic != signatureMagic {
		return nil, &InvalidSignatureError{Signature: magic, Offset: position(r)}
	}
	return b, nil
}

// Brand values for the File Type box.
const (
	BrandJP2 Type = 0x6A703220 // "jp2 "
	BrandJPX Type = 0x6A707820 // "jpx " - part 2, not supported
)

// FileTypeBox declares the standard that defines the file plus the
// list of standards the file is compatible with. It shall immediately
// follow the Signature box.
type FileTypeBox struct {
	boxInfo
	Brand         Type
	MinorVersion  uint32
	Compatibility []Type
}

// CompatibilityList returns the compatibility codes as strings.
func (b *FileTypeBox) CompatibilityList() []string {
	list := make([]string, len(b.Compatibility))
	for i, c := range b.Compatibility {
		list[i] = c.String()
	}
	return list
}

func parseFileTypeBox(r io.ReadSeeker, h BoxHeader) (*FileTypeBox, error) {
	b := &FileTypeBox{boxInfo: newBoxInfo(TypeFileType, h, position(r))}
	if h.Length < 8 || h.Length%4 != 0 {
		return nil, &BoxMalformedError{Type: TypeFileType, Offset: b.offset}
	}
	brand, err := readU32(r)
	if err != nil {
		return nil, truncated(err, TypeFileType, b.offset)
	}
	b.Brand = Type(brand)
	if b.Brand == BrandJPX {
		return nil, &UnsupportedError{}
	}
	if b.Brand != BrandJP2 {
		var raw [4]byte
		raw[0], raw[1], raw[2], raw[3] = byte(brand>>24), byte(brand>>16), byte(brand>>8), byte(brand)
		return nil, &InvalidBrandError{Brand: raw, Offset: position(r)}
	}
	if b.MinorVersion, err = readU32(r); err != nil {
		return nil, truncated(err, TypeFileType, b.offset)
	}

	// The number of CL fields is determined by the box length.
	for n := (h.Length - 8) / 4; n > 0; n-- {
		code, err := readU32(r)
		if err != nil {
			return nil, truncated(err, TypeFileType, b.offset)
		}
		b.Compatibility = append(b.Compatibility, Type(code))
	}
	for _, c := range b.Compatibility {
		if c == BrandJP2 {
			return b, nil
		}
	}
	return nil, &NotCompatibleError{CompatibilityList: b.CompatibilityList()}
}

// BitDepth is one decoded bits-per-component byte: depth counts the
// sign bit when Signed is set.
type BitDepth struct {
	Depth  uint8
	Signed bool
}

func bitDepthFromByte(b uint8) BitDepth {
	return BitDepth{Depth: b&0x7F + 1, Signed: b&0x80 != 0}
}

// BPCVaries is the ihdr BPC sentinel: components vary in bit depth and
// a Bits Per Component box carries the per-component values.
const BPCVaries uint8 = 255

const compressionWavelet uint8 = 7

// ImageHeaderBox is the fixed 14-byte payload opening every JP2 Header
// box: image size, component count and depth, compression type.
type ImageHeaderBox struct {
	boxInfo
	Height             uint32
	Width              uint32
	NumComponents      uint16
	BPC                uint8 // raw byte; BPCVaries means see bpcc
	Compression        uint8 // shall be 7 (wavelet)
	ColourspaceUnknown uint8
	IPR                uint8
}

// BitDepth decodes the BPC byte. Meaningless when BPC == BPCVaries.
func (b *ImageHeaderBox) BitDepth() BitDepth { return bitDepthFromByte(b.BPC) }

func parseImageHeaderBox(r io.ReadSeeker, h BoxHeader) (*ImageHeaderBox, error) {
	b := &ImageHeaderBox{boxInfo: newBoxInfo(TypeImageHeader, h, position(r))}
	if h.Length != 14 {
		return nil, &BoxMalformedError{Type: TypeImageHeader, Offset: b.offset}
	}
	payload, err := readBytes(r, 14)
	if err != nil {
		return nil, truncated(err, TypeImageHeader, b.offset)
	}
	b.Height = uint32(payload[0])<<24 | uint32(payload[1])<<16 | uint32(payload[2])<<8 | uint32(payload[3])
	b.Width = uint32(payload[4])<<24 | uint32(payload[5])<<16 | uint32(payload[6])<<8 | uint32(payload[7])
	b.NumComponents = uint16(payload[8])<<8 | uint16(payload[9])
	b.BPC = payload[10]
	b.Compression = payload[11]
	b.ColourspaceUnknown = payload[12]
	b.IPR = payload[13]
	if b.Compression != compressionWavelet {
		return nil, &BoxMalformedError{Type: TypeImageHeader, Offset: b.offset}
	}
	return b, nil
}

// BitsPerComponentBox carries one bit-depth byte per component. It is
// present iff the ihdr BPC byte is the varies sentinel.
type BitsPerComponentBox struct {
	boxInfo
	Raw []uint8
}

// BitDepths decodes every per-component byte.
func (b *BitsPerComponentBox) BitDepths() []BitDepth {
	depths := make([]BitDepth, len(b.Raw))
	for i, raw := range b.Raw {
		depths[i] = bitDepthFromByte(raw)
	}
	return depths
}

func parseBitsPerComponentBox(r io.ReadSeeker, h BoxHeader, numComponents uint16) (*BitsPerComponentBox, error) {
	b := &BitsPerComponentBox{boxInfo: newBoxInfo(TypeBitsPerComp, h, position(r))}
	if h.Length != uint64(numComponents) {
		return nil, &BoxMalformedError{Type: TypeBitsPerComp, Offset: b.offset}
	}
	raw, err := readBytes(r, h.Length)
	if err != nil {
		return nil, truncated(err, TypeBitsPerComp, b.offset)
	}
	b.Raw = raw
	return b, nil
}

// Method is the colour specification method.
type Method uint8

const (
	MethodEnumerated    Method = 1
	MethodRestrictedICC Method = 2
)

func (m Method) String() string {
	switch m {
	case MethodEnumerated:
		return "EnumeratedColourSpace"
	case MethodRestrictedICC:
		return "RestrictedICCProfile"
	}
	return "Reserved"
}

// Enumerated colourspace codes (Annex I table I-10 subset).
const (
	ColourSpaceSRGB      uint32 = 16
	ColourSpaceGreyscale uint32 = 17
	ColourSpaceSYCC      uint32 = 18
)

// ColourSpecificationBox defines one method by which an application
// can interpret the colourspace of the decompressed image. At least
// one is required inside the JP2 Header box; a conforming reader uses
// the first.
type ColourSpecificationBox struct {
	boxInfo
	Method        Method
	Precedence    int8  // reserved, shall be 0, value ignored
	Approximation uint8 // reserved, shall be 0, value ignored
	// EnumeratedColourSpace is valid when Method == MethodEnumerated.
	EnumeratedColourSpace uint32
	// ICCProfile is the raw restricted profile when Method ==
	// MethodRestrictedICC.
	ICCProfile []byte
}

// Profile parses the embedded restricted ICC profile framing.
func (b *ColourSpecificationBox) Profile() (*icc.Profile, error) {
	return icc.Decode(bytes.NewReader(b.ICCProfile))
}

func parseColourSpecificationBox(r io.ReadSeeker, h BoxHeader, log logger) (*ColourSpecificationBox, error) {
	b := &ColourSpecificationBox{boxInfo: newBoxInfo(TypeColourSpec, h, position(r))}
	if h.Length < 3 {
		return nil, &BoxMalformedError{Type: TypeColourSpec, Offset: b.offset}
	}
	head, err := readBytes(r, 3)
	if err != nil {
		return nil, truncated(err, TypeColourSpec, b.offset)
	}
	b.Method = Method(head[0])
	b.Precedence = int8(head[1])
	b.Approximation = head[2]
	if b.Precedence != 0 {
		log.Warn("unexpected colr precedence", "precedence", b.Precedence)
	}
	if b.Approximation != 0 {
		log.Warn("unexpected colr approximation", "approximation", b.Approximation)
	}

	switch b.Method {
	case MethodEnumerated:
		if h.Length < 7 {
			return nil, &BoxMalformedError{Type: TypeColourSpec, Offset: b.offset}
		}
		if b.EnumeratedColourSpace, err = readU32(r); err != nil {
			return nil, truncated(err, TypeColourSpec, b.offset)
		}
		if h.Length > 7 {
			if _, err := r.Seek(int64(h.Length-7), io.SeekCurrent); err != nil {
				return nil, err
			}
		}
	case MethodRestrictedICC:
		if b.ICCProfile, err = readBytes(r, h.Length-3); err != nil {
			return nil, truncated(err, TypeColourSpec, b.offset)
		}
	default:
		// Reserved methods: skip the remaining fields, the whole box
		// is ignored by conforming readers.
		log.Warn("reserved colr method", "method", uint8(b.Method))
		if _, err := r.Seek(int64(h.Length-3), io.SeekCurrent); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// PaletteColumn is one generated component of the palette: its bit
// depth and one value per palette entry. Values are stored in the low
// bits of their byte-padded fields.
type PaletteColumn struct {
	BitDepth BitDepth
	Values   []uint32
}

// PaletteBox converts a single decoded component into multiple
// generated components via table lookup.
type PaletteBox struct {
	boxInfo
	NumEntries uint16
	Columns    []PaletteColumn
}

func parsePaletteBox(r io.ReadSeeker, h BoxHeader) (*PaletteBox, error) {
	b := &PaletteBox{boxInfo: newBoxInfo(TypePalette, h, position(r))}
	if h.Length < 3 {
		return nil, &BoxMalformedError{Type: TypePalette, Offset: b.offset}
	}
	ne, err := readU16(r)
	if err != nil {
		return nil, truncated(err, TypePalette, b.offset)
	}
	if ne < 1 || ne > 1024 {
		return nil, &BoxMalformedError{Type: TypePalette, Offset: b.offset}
	}
	b.NumEntries = ne
	npc, err := readU8(r)
	if err != nil {
		return nil, truncated(err, TypePalette, b.offset)
	}

	b.Columns = make([]PaletteColumn, npc)
	widths := make([]int, npc)
	for i := range b.Columns {
		raw, err := readU8(r)
		if err != nil {
			return nil, truncated(err, TypePalette, b.offset)
		}
		b.Columns[i].BitDepth = bitDepthFromByte(raw)
		b.Columns[i].Values = make([]uint32, ne)
		widths[i] = (int(b.Columns[i].BitDepth.Depth) + 7) / 8
	}

	// C_ji values in entry-major order, each padded to a whole number
	// of bytes with the value in the low-order bits.
	for j := 0; j < int(ne); j++ {
		for i := 0; i < int(npc); i++ {
			var v uint32
			for k := 0; k < widths[i]; k++ {
				octet, err := readU8(r)
				if err != nil {
					return nil, truncated(err, TypePalette, b.offset)
				}
				v = v<<8 | uint32(octet)
			}
			b.Columns[i].Values[j] = v
		}
	}
	return b, nil
}

// MappingType tells how a channel is generated from a codestream
// component.
type MappingType uint8

const (
	MappingDirect  MappingType = 1
	MappingPalette MappingType = 2
)

func (m MappingType) String() string {
	switch m {
	case MappingDirect:
		return "Direct"
	case MappingPalette:
		return "Palette"
	}
	return "Reserved"
}

// ComponentMapping is one (CMP, MTYP, PCOL) triple.
type ComponentMapping struct {
	Component     uint16
	MappingType   MappingType
	PaletteColumn uint8
}

// ComponentMappingBox defines how image channels are produced from the
// actual codestream components, directly or through the palette. Its
// cardinality derives from the box length.
type ComponentMappingBox struct {
	boxInfo
	Mappings []ComponentMapping
}

func parseComponentMappingBox(r io.ReadSeeker, h BoxHeader) (*ComponentMappingBox, error) {
	b := &ComponentMappingBox{boxInfo: newBoxInfo(TypeCompMapping, h, position(r))}
	if h.Length%4 != 0 {
		return nil, &BoxMalformedError{Type: TypeCompMapping, Offset: b.offset}
	}
	for read := uint64(0); read < h.Length; read += 4 {
		raw, err := readBytes(r, 4)
		if err != nil {
			return nil, truncated(err, TypeCompMapping, b.offset)
		}
		b.Mappings = append(b.Mappings, ComponentMapping{
			Component:     uint16(raw[0])<<8 | uint16(raw[1]),
			MappingType:   MappingType(raw[2]),
			PaletteColumn: raw[3],
		})
	}
	return b, nil
}

// ChannelType is the meaning of a channel's samples.
type ChannelType uint16

const (
	ChannelColour               ChannelType = 0
	ChannelOpacity              ChannelType = 1
	ChannelPremultipliedOpacity ChannelType = 2
	ChannelUnspecified          ChannelType = 0xFFFF
)

func (t ChannelType) String() string {
	switch t {
	case ChannelColour:
		return "ColourImageData"
	case ChannelOpacity:
		return "Opacity"
	case ChannelPremultipliedOpacity:
		return "PremultipliedOpacity"
	case ChannelUnspecified:
		return "Unspecified"
	}
	return "Reserved"
}

// Channel is one channel description: index, type and colour
// association.
type Channel struct {
	Index       uint16
	Typ         ChannelType
	Association uint16
}

// ChannelDefinitionBox specifies the meaning of the samples in each
// channel of the image.
type ChannelDefinitionBox struct {
	boxInfo
	Channels []Channel
}

func parseChannelDefinitionBox(r io.ReadSeeker, h BoxHeader) (*ChannelDefinitionBox, error) {
	b := &ChannelDefinitionBox{boxInfo: newBoxInfo(TypeChannelDef, h, position(r))}
	n, err := readU16(r)
	if err != nil {
		return nil, truncated(err, TypeChannelDef, b.offset)
	}
	if h.Length != 2+uint64(n)*6 {
		return nil, &BoxMalformedError{Type: TypeChannelDef, Offset: b.offset}
	}
	b.Channels = make([]Channel, n)
	for i := range b.Channels {
		raw, err := readBytes(r, 6)
		if err != nil {
			return nil, truncated(err, TypeChannelDef, b.offset)
		}
		b.Channels[i] = Channel{
			Index:       uint16(raw[0])<<8 | uint16(raw[1]),
			Typ:         ChannelType(uint16(raw[2])<<8 | uint16(raw[3])),
			Association: uint16(raw[4])<<8 | uint16(raw[5]),
		}
	}
	return b, nil
}

// Resolution is one capture or display grid resolution: numerator,
// denominator and decimal exponent per axis, in grid points per metre.
type Resolution struct {
	boxInfo
	VNum uint16
	VDen uint16
	HNum uint16
	HDen uint16
	VExp int8
	HExp int8
}

// Vertical returns VNum/VDen x 10^VExp.
func (b *Resolution) Vertical() float64 {
	return float64(b.VNum) / float64(b.VDen) * pow10(b.VExp)
}

// Horizontal returns HNum/HDen x 10^HExp.
func (b *Resolution) Horizontal() float64 {
	return float64(b.HNum) / float64(b.HDen) * pow10(b.HExp)
}

func pow10(exp int8) float64 {
	v := 1.0
	for i := int8(0); i < exp; i++ {
		v *= 10
	}
	for i := exp; i < 0; i++ {
		v /= 10
	}
	return v
}

func parseResolution(r io.ReadSeeker, typ Type, h BoxHeader) (*Resolution, error) {
	b := &Resolution{boxInfo: newBoxInfo(typ, h, position(r))}
	if h.Length != 10 {
		return nil, &BoxMalformedError{Type: typ, Offset: b.offset}
	}
	raw, err := readBytes(r, 10)
	if err != nil {
		return nil, truncated(err, typ, b.offset)
	}
	b.VNum = uint16(raw[0])<<8 | uint16(raw[1])
	b.VDen = uint16(raw[2])<<8 | uint16(raw[3])
	b.HNum = uint16(raw[4])<<8 | uint16(raw[5])
	b.HDen = uint16(raw[6])<<8 | uint16(raw[7])
	b.VExp = int8(raw[8])
	b.HExp = int8(raw[9])
	return b, nil
}

// ResolutionBox is the 'res ' super-box: a capture resolution, a
// default display resolution, or both.
type ResolutionBox struct {
	boxInfo
	Capture *Resolution
	Display *Resolution
}

// CodestreamBox records where a contiguous codestream lives in the
// file; the payload itself is not read here but handed to the jpc
// package by the caller.
type CodestreamBox struct {
	boxInfo
}

// IPRBox carries intellectual property rights information; its format
// is reserved for ISO.
type IPRBox struct {
	boxInfo
	Data []byte
}

// XMLBox carries vendor-specific XML metadata.
type XMLBox struct {
	boxInfo
	Data []byte
}

// Text returns the XML body as a string.
func (b *XMLBox) Text() string { return string(b.Data) }

// UUIDBox carries vendor-specific binary data keyed by a 16-byte UUID.
type UUIDBox struct {
	boxInfo
	UUID uuid.UUID
	Data []byte
}

func parseUUIDBox(r io.ReadSeeker, h BoxHeader) (*UUIDBox, error) {
	b := &UUIDBox{boxInfo: newBoxInfo(TypeUUID, h, position(r))}
	if h.Length < 16 {
		return nil, &BoxMalformedError{Type: TypeUUID, Offset: b.offset}
	}
	raw, err := readBytes(r, 16)
	if err != nil {
		return nil, truncated(err, TypeUUID, b.offset)
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return nil, &BoxMalformedError{Type: TypeUUID, Offset: b.offset}
	}
	b.UUID = id
	if b.Data, err = readBytes(r, h.Length-16); err != nil {
		return nil, truncated(err, TypeUUID, b.offset)
	}
	return b, nil
}

// UUIDListBox lists the UUIDs described by the enclosing UUID Info
// super-box.
type UUIDListBox struct {
	boxInfo
	IDs []uuid.UUID
}

func parseUUIDListBox(r io.ReadSeeker, h BoxHeader) (*UUIDListBox, error) {
	b := &UUIDListBox{boxInfo: newBoxInfo(TypeUUIDList, h, position(r))}
	n, err := readU16(r)
	if err != nil {
		return nil, truncated(err, TypeUUIDList, b.offset)
	}
	if h.Length != 2+uint64(n)*16 {
		return nil, &BoxMalformedError{Type: TypeUUIDList, Offset: b.offset}
	}
	for ; n > 0; n-- {
		raw, err := readBytes(r, 16)
		if err != nil {
			return nil, truncated(err, TypeUUIDList, b.offset)
		}
		id, err := uuid.FromBytes(raw)
		if err != nil {
			return nil, &BoxMalformedError{Type: TypeUUIDList, Offset: b.offset}
		}
		b.IDs = append(b.IDs, id)
	}
	return b, nil
}

// DataEntryURLBox holds a URL where more information about the UUIDs
// in the same UUID Info super-box can be acquired.
type DataEntryURLBox struct {
	boxInfo
	Version  uint8
	Flags    [3]byte
	Location string
}

func parseDataEntryURLBox(r io.ReadSeeker, h BoxHeader) (*DataEntryURLBox, error) {
	b := &DataEntryURLBox{boxInfo: newBoxInfo(TypeURL, h, position(r))}
	if h.Length < 4 {
		return nil, &BoxMalformedError{Type: TypeURL, Offset: b.offset}
	}
	raw, err := readBytes(r, h.Length)
	if err != nil {
		return nil, truncated(err, TypeURL, b.offset)
	}
	b.Version = raw[0]
	copy(b.Flags[:], raw[1:4])
	// LOC is a null terminated UTF-8 string.
	b.Location = string(bytes.TrimRight(raw[4:], "\x00"))
	return b, nil
}

// UUIDInfoBox is the 'uinf' super-box aggregating one UUID List box
// and one Data Entry URL box.
type UUIDInfoBox struct {
	boxInfo
	List *UUIDListBox
	URL  *DataEntryURLBox
}

// HeaderBox is the 'jp2h' super-box: generic information about the
// file such as component count, colourspace and grid resolution.
type HeaderBox struct {
	boxInfo
	ImageHeader      *ImageHeaderBox
	BitsPerComponent *BitsPerComponentBox
	ColourSpecs      []*ColourSpecificationBox
	Palette          *PaletteBox
	ComponentMapping *ComponentMappingBox
	ChannelDef       *ChannelDefinitionBox
	Resolution       *ResolutionBox
}
