package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpfielding/jpeg2000.go/pkg/jpeg2000"
)

// NewDecodeCmd parses a container or codestream and reports only
// whether it conforms.
func NewDecodeCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode <path>",
		Short: "decode a .jp2 container or .jpc codestream file",
		Long:  "parse the box structure and every codestream header, exiting non-zero on the first structural violation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := jpeg2000.DecodePath(args[0]); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			return nil
		},
	}
	return cmd
}
