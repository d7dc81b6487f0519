package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zzenonn/zdeliver/internal/checksum"
)

var checksumCmd = &cobra.Command{
	Use:   "checksum [file...]",
	Short: "Print cksum-compatible checksum lines for local files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var failed int
		for _, path := range args {
			record, err := checksum.File(path)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				failed++
				continue
			}
			fmt.Printf("%d %d %s\n", record.Checksum, record.Size, path)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files could not be checksummed", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checksumCmd)
}
