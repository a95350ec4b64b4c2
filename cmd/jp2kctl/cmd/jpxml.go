package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jpfielding/jpeg2000.go/pkg/jpeg2000"
	"github.com/jpfielding/jpeg2000.go/pkg/jpxml"
)

// NewJPXMLCmd mirrors a container or codestream to a JPXML document on
// stdout.
func NewJPXMLCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jpxml <path>",
		Short: "encode a .jp2/.jpc file to a JPXML document (stdout)",
		Long: `encode a .jp2 container or .jpc codestream file to a JPXML document.

skeleton      structure only, no text nodes
fat-skeleton  image properties, excluding codestream chunk data
fat           whole image data on text nodes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repFlag, _ := cmd.Flags().GetString("representation")
			rep, err := jpxml.ParseRepresentation(repFlag)
			if err != nil {
				return err
			}

			path := args[0]
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			switch {
			case jpeg2000.IsJP2Path(path):
				return jpxml.EncodeJP2(os.Stdout, f, rep, filepath.Base(path))
			case jpeg2000.IsJPCPath(path):
				return jpxml.EncodeJPC(os.Stdout, f, rep)
			}
			return fmt.Errorf("%s: %w", path,
				&jpeg2000.UnsupportedExtensionError{Extension: filepath.Ext(path)})
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("representation", "r", "skeleton", "JPXML representation (skeleton|fat-skeleton|fat)")
	return cmd
}
