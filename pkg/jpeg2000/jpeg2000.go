// Package jpeg2000 is the decoder façade: it dispatches between the
// JP2 container parser and the raw codestream parser and ties a
// container's codestream boxes to their decoded codestreams.
package jpeg2000

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jpfielding/jpeg2000.go/pkg/jp2"
	"github.com/jpfielding/jpeg2000.go/pkg/jpc"
)

// UnsupportedExtensionError reports a path whose extension names no
// known JPEG 2000 format.
type UnsupportedExtensionError struct {
	Extension string
}

func (e *UnsupportedExtensionError) Error() string {
	return fmt.Sprintf("unsupported extension %q", e.Extension)
}

// DecodeJP2 decodes a JP2 container from r, leaving the reader
// positioned past the end of the file.
func DecodeJP2(r io.ReadSeeker) (*jp2.File, error) {
	return jp2.Decode(r)
}

// DecodeJPC decodes a raw codestream from r, leaving the reader
// positioned past EOC.
func DecodeJPC(r io.ReadSeeker) (*jpc.Codestream, error) {
	return jpc.Decode(r)
}

// IsJP2Path reports whether path names a JP2 container by extension.
func IsJP2Path(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".jp2")
}

// IsJPCPath reports whether path names a raw codestream by extension.
func IsJPCPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpc", ".j2c", ".j2k":
		return true
	}
	return false
}

// DecodePath opens and fully decodes the file at path: the container
// and every contiguous codestream for .jp2, the bare codestream for
// .jpc/.j2c/.j2k.
func DecodePath(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	switch {
	case IsJP2Path(path):
		file, err := jp2.Decode(f)
		if err != nil {
			return fmt.Errorf("decoding jp2 container: %w", err)
		}
		for _, box := range file.Codestreams {
			if _, err := f.Seek(box.Offset(), io.SeekStart); err != nil {
				return err
			}
			if _, err := jpc.Decode(f); err != nil {
				return fmt.Errorf("decoding jpc codestream: %w", err)
			}
		}
		return nil
	case IsJPCPath(path):
		if _, err := jpc.Decode(f); err != nil {
			return fmt.Errorf("decoding jpc codestream: %w", err)
		}
		return nil
	}
	return &UnsupportedExtensionError{Extension: filepath.Ext(path)}
}
