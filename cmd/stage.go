package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zzenonn/zdeliver/internal/staging"
)

var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Create a scene processing directory and stage its input archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		orderID, _ := cmd.Flags().GetString("order-id")
		scene, _ := cmd.Flags().GetString("scene")
		sourceHost, _ := cmd.Flags().GetString("source-host")
		sourceDirectory, _ := cmd.Flags().GetString("source-directory")

		dir, err := staging.InitializeProcessingDirectory(stringFlagOr(cmd, "work-directory", cfg.WorkDirectory), orderID, scene)
		if err != nil {
			return err
		}

		if sourceDirectory != "" {
			client, err := newTransportClient(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			staged, err := staging.StageInput(cmd.Context(), client, sourceHost, sourceDirectory, scene, dir)
			if err != nil {
				return err
			}
			fmt.Printf("Staged:  %s\n", staged)
		}

		fmt.Printf("Scene:   %s\n", dir.Scene)
		fmt.Printf("Stage:   %s\n", dir.Stage)
		fmt.Printf("Work:    %s\n", dir.Work)
		fmt.Printf("Output:  %s\n", dir.Output)
		return nil
	},
}

func init() {
	stageCmd.Flags().String("work-directory", "", "Base directory for order processing (default work_directory)")
	stageCmd.Flags().String("order-id", "", "Order identifier")
	stageCmd.Flags().String("scene", "", "Scene identifier")
	stageCmd.Flags().String("source-host", "localhost", "Host holding <scene>.tar.gz")
	stageCmd.Flags().String("source-directory", "", "Directory holding <scene>.tar.gz; nothing is staged when empty")
	stageCmd.MarkFlagRequired("order-id")
	stageCmd.MarkFlagRequired("scene")
	rootCmd.AddCommand(stageCmd)
}
