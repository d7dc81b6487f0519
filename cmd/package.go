package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zzenonn/zdeliver/internal/packager"
)

var packageCmd = &cobra.Command{
	Use:   "package",
	Short: "Package a product without delivering it",
	RunE: func(cmd *cobra.Command, args []string) error {
		productName, _ := cmd.Flags().GetString("product-name")

		artifact, err := packager.New(packager.WithQuiet(cfg.Quiet)).Package(
			cmd.Context(),
			stringFlagOr(cmd, "work-directory", cfg.WorkDirectory),
			stringFlagOr(cmd, "package-directory", cfg.PackageDirectory),
			productName,
		)
		if err != nil {
			return err
		}

		fmt.Printf("Package:  %s\n", artifact.Path)
		fmt.Printf("Checksum: %s\n", artifact.ChecksumPath)
		fmt.Println(artifact.Checksum)
		return nil
	},
}

func init() {
	packageCmd.Flags().String("work-directory", "", "Directory holding the product files (default work_directory)")
	packageCmd.Flags().String("package-directory", "", "Directory the package is built in (default package_directory)")
	packageCmd.Flags().String("product-name", "", "Name of the product")
	packageCmd.MarkFlagRequired("product-name")
	rootCmd.AddCommand(packageCmd)
}
