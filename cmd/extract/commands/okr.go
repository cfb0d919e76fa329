package commands

import (
	"fmt"

	"github.com/discoverlab/insight-map/internal/okr"
	"github.com/spf13/cobra"
)

// NewOKRCmd creates the okr command
func NewOKRCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "okr",
		Short: "OKR file helpers",
	}

	cmd.AddCommand(newOKRValidateCmd())
	return cmd
}

func newOKRValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate an OKR definitions file",
		Long:  "Parse an OKR YAML file and report the objectives it defines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			okrs, err := okr.Load(args[0])
			if err != nil {
				return fmt.Errorf("invalid OKR file: %w", err)
			}

			fmt.Printf("OK: %d objectives\n", len(okrs))
			for _, o := range okrs {
				fmt.Printf("  %s  %s (%d key results)\n", o.ID, o.Objective, len(o.KeyResults))
			}
			return nil
		},
	}
}
