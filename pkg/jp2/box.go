// Package jp2 decodes the JPEG 2000 (ISO/IEC 15444-1 / ITU-T T.800)
// JP2 file format: a sequence of length-and-type framed boxes wrapping
// one or more codestreams plus image metadata.
package jp2

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Type is a 4-byte box type code (fourcc).
type Type uint32

// Box type codes (ISO/IEC 15444-1 Annex I).
const (
	TypeSignature   Type = 0x6A502020 // "jP  " - JPEG 2000 signature box
	TypeFileType    Type = 0x66747970 // "ftyp" - File type box
	TypeHeader      Type = 0x6A703268 // "jp2h" - JP2 header super-box
	TypeImageHeader Type = 0x69686472 // "ihdr" - Image header box
	TypeBitsPerComp Type = 0x62706363 // "bpcc" - Bits per component box
	TypeColourSpec  Type = 0x636F6C72 // "colr" - Colour specification box
	TypePalette     Type = 0x70636C72 // "pclr" - Palette box
	TypeCompMapping Type = 0x636D6170 // "cmap" - Component mapping box
	TypeChannelDef  Type = 0x63646566 // "cdef" - Channel definition box
	TypeResolution  Type = 0x72657320 // "res " - Resolution super-box
	TypeCaptureRes  Type = 0x72657363 // "resc" - Capture resolution box
	TypeDisplayRes  Type = 0x72657364 // "resd" - Default display resolution box
	TypeCodestream  Type = 0x6A703263 // "jp2c" - Contiguous codestream box
	TypeIPR         Type = 0x6A703269 // "jp2i" - Intellectual property box
	TypeXML         Type = 0x786D6C20 // "xml " - XML box
	TypeUUID        Type = 0x75756964 // "uuid" - UUID box
	TypeUUIDInfo    Type = 0x75696E66 // "uinf" - UUID info super-box
	TypeUUIDList    Type = 0x756C7374 // "ulst" - UUID list box
	TypeURL         Type = 0x75726C20 // "url " - Data entry URL box
)

// String returns the 4-character type code.
func (t Type) String() string {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(t))
	return string(b)
}

// BoxHeader is the framing of one box: its type, the payload length
// (excluding the header bytes consumed) and the size of the header
// itself (8, or 16 with the extended length field).
type BoxHeader struct {
	Type       Type
	Length     uint64
	HeaderSize uint8
	// ToEOF is set when LBox was 0: the payload extends to the end of
	// the file and Length is not meaningful until the caller measures
	// the remainder.
	ToEOF bool
}

// ReadBoxHeader reads the next box header at the current position.
//
// Returns io.EOF when the input ends cleanly at a box boundary and
// io.ErrUnexpectedEOF when it ends mid-header.
func ReadBoxHeader(r io.ReadSeeker) (BoxHeader, error) {
	var h BoxHeader
	var raw [8]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return h, io.ErrUnexpectedEOF
		}
		return h, err
	}

	length := uint64(binary.BigEndian.Uint32(raw[0:4]))
	h.Type = Type(binary.BigEndian.Uint32(raw[4:8]))
	h.HeaderSize = 8

	switch {
	case length == 0:
		// Payload runs to the end of the file; the caller computes the
		// remainder by seeking to the end.
		h.ToEOF = true
	case length == 1:
		var ext [8]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			if err == io.EOF {
				return h, io.ErrUnexpectedEOF
			}
			return h, err
		}
		xl := binary.BigEndian.Uint64(ext[:])
		if xl < 16 {
			offset, _ := r.Seek(0, io.SeekCurrent)
			return h, &BoxMalformedError{Type: h.Type, Offset: offset}
		}
		h.Length = xl - 16
		h.HeaderSize = 16
	case length <= 7:
		// The values 2-7 are reserved for ISO use.
		offset, _ := r.Seek(0, io.SeekCurrent)
		return h, &BoxMalformedError{Type: h.Type, Offset: offset}
	default:
		h.Length = length - 8
	}

	return h, nil
}

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

func readBytes(r io.Reader, n uint64) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// truncated maps a short read inside a box payload to BoxMalformed.
func truncated(err error, typ Type, offset int64) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return &BoxMalformedError{Type: typ, Offset: offset}
	}
	return fmt.Errorf("reading %q box: %w", typ.String(), err)
}
