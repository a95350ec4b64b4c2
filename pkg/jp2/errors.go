package jp2

import (
	"fmt"
	"strings"
)

// InvalidSignatureError reports a Signature box whose payload is not the
// 0x0D0A870A magic.
type InvalidSignatureError struct {
	Signature [4]byte
	Offset    int64
}

func (e *InvalidSignatureError) Error() string {
	return fmt.Sprintf("invalid signature % X at offset %d", e.Signature[:], e.Offset)
}

// InvalidBrandError reports a File Type box brand other than 'jp2 '.
type InvalidBrandError struct {
	Brand  [4]byte
	Offset int64
}

func (e *InvalidBrandError) Error() string {
	return fmt.Sprintf("invalid brand %q at offset %d", string(e.Brand[:]), e.Offset)
}

// UnsupportedError reports a 'jpx ' brand: only JPEG 2000 part-1
// (ISO 15444-1 / T.800) files are supported.
type UnsupportedError struct{}

func (e *UnsupportedError) Error() string {
	return "only JPEG 2000 part-1 (ISO 15444-1 / T.800) is supported"
}

// NotCompatibleError reports a compatibility list without 'jp2 '.
type NotCompatibleError struct {
	CompatibilityList []string
}

func (e *NotCompatibleError) Error() string {
	return fmt.Sprintf("'jp2 ' not found in compatibility list '%s'",
		strings.Join(e.CompatibilityList, ", "))
}

// BoxMissingError reports a required box (or required parent box) that
// was not seen when needed.
type BoxMissingError struct {
	Type Type
}

func (e *BoxMissingError) Error() string {
	return fmt.Sprintf("box type %q missing", e.Type.String())
}

// BoxDuplicateError reports a box that may appear at most once
// appearing a second time.
type BoxDuplicateError struct {
	Type   Type
	Offset int64
}

func (e *BoxDuplicateError) Error() string {
	return fmt.Sprintf("unexpected duplicate box type %q at offset %d", e.Type.String(), e.Offset)
}

// BoxUnexpectedError reports a box at a position where it is not
// allowed, e.g. a 'jp2c' before the JP2 Header box.
type BoxUnexpectedError struct {
	Type   Type
	Offset int64
}

func (e *BoxUnexpectedError) Error() string {
	return fmt.Sprintf("unexpected box type %q at offset %d", e.Type.String(), e.Offset)
}

// BoxMalformedError reports a reserved length, truncated payload or a
// violated internal invariant.
type BoxMalformedError struct {
	Type   Type
	Offset int64
}

func (e *BoxMalformedError) Error() string {
	return fmt.Sprintf("malformed box type %q at offset %d", e.Type.String(), e.Offset)
}
