package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zzenonn/zdeliver/internal/delivery"
	"github.com/zzenonn/zdeliver/internal/packager"
	"github.com/zzenonn/zdeliver/internal/placement"
	"github.com/zzenonn/zdeliver/internal/repository/db"
	"github.com/zzenonn/zdeliver/internal/transport"
)

var deliverCmd = &cobra.Command{
	Use:   "deliver",
	Short: "Package a product and deliver it to a destination host",
	Long: "Packages the work directory into <product-name>.tar.gz with a .cksum sidecar, " +
		"transfers both to the destination host and verifies the remote checksum. " +
		"When no destination host is given one is chosen from cache_hosts.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		productName, _ := cmd.Flags().GetString("product-name")
		destinationDirectory, _ := cmd.Flags().GetString("destination-directory")
		destinationHost, _ := cmd.Flags().GetString("destination-host")
		extractStatistics, _ := cmd.Flags().GetBool("extract-statistics")

		req := delivery.Request{
			SourceDirectory:      stringFlagOr(cmd, "work-directory", cfg.WorkDirectory),
			PackageDirectory:     stringFlagOr(cmd, "package-directory", cfg.PackageDirectory),
			ProductName:          productName,
			DestinationHost:      destinationHost,
			DestinationDirectory: destinationDirectory,
			MaxAttempts:          cfg.MaxAttempts,
			Backoff:              cfg.Backoff,
			ExtractStatistics:    extractStatistics,
		}
		if cmd.Flags().Changed("max-attempts") {
			req.MaxAttempts, _ = cmd.Flags().GetInt("max-attempts")
		}
		if cmd.Flags().Changed("backoff") {
			req.Backoff, _ = cmd.Flags().GetDuration("backoff")
		}

		if req.DestinationHost == "" {
			host, err := placeProduct(productName)
			if err != nil {
				return err
			}
			req.DestinationHost = host
		}

		client, err := newTransportClient(ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		opts := []delivery.Option{
			delivery.WithMaxAttempts(cfg.MaxAttempts),
			delivery.WithBackoff(cfg.Backoff),
		}
		if cfg.RecordDeliveries {
			dynamoDb, err := newDatabase(ctx)
			if err != nil {
				return err
			}
			opts = append(opts, delivery.WithRecorder(db.NewRecordRepository(dynamoDb.Client, cfg.DynamoDBTable)))
		}

		coordinator := delivery.NewCoordinator(packager.New(packager.WithQuiet(cfg.Quiet)), client, opts...)
		record, err := coordinator.Deliver(ctx, req)
		if err != nil {
			log.WithFields(log.Fields{
				"product": productName,
				"host":    req.DestinationHost,
				"phase":   record.FailedPhase,
			}).Error("Delivery failed")
			return err
		}

		fmt.Printf("Delivered %s to %s:%s (%s)\n", productName, record.DestinationHost, record.DestinationPath, record.Checksum)
		return nil
	},
}

// placeProduct picks a destination from the configured cache hosts.
func placeProduct(productName string) (string, error) {
	if len(cfg.CacheHosts) == 0 {
		return "", fmt.Errorf("no destination host given and no cache_hosts configured")
	}
	placer, err := placement.NewRoundRobinPlacerFromHosts(cfg.CacheHosts)
	if err != nil {
		return "", err
	}
	host, err := placement.PlaceProduct(placer, productName)
	if err != nil {
		return "", err
	}
	log.Infof("Placed %s on cache host %s", productName, host)
	return host, nil
}

func newTransportClient(ctx context.Context) (*transport.Client, error) {
	sshSettings, err := cfg.SSHSettings(ctx)
	if err != nil {
		return nil, err
	}
	factory := transport.NewTransportFactory(sshSettings, cfg.AWSConfig, cfg.GCSClient, cfg.Quiet)
	return transport.NewClient(transport.NewRegistry(factory)), nil
}

func stringFlagOr(cmd *cobra.Command, name, fallback string) string {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	return fallback
}

func init() {
	deliverCmd.Flags().String("work-directory", "", "Directory holding the product files (default work_directory)")
	deliverCmd.Flags().String("package-directory", "", "Directory the package is built in (default package_directory)")
	deliverCmd.Flags().String("product-name", "", "Name of the product; the package is <product-name>.tar.gz")
	deliverCmd.Flags().String("destination-host", "", "Destination: localhost, [user@]host[:port], s3://bucket/prefix or gs://bucket/prefix")
	deliverCmd.Flags().String("destination-directory", "", "Directory on the destination host")
	deliverCmd.Flags().Int("max-attempts", 3, "Attempts per phase (default max_attempts)")
	deliverCmd.Flags().Duration("backoff", 0, "Delay between attempts (default backoff)")
	deliverCmd.Flags().Bool("extract-statistics", false, "Extract the stats directory of the package at the destination")
	deliverCmd.MarkFlagRequired("product-name")
	deliverCmd.MarkFlagRequired("destination-directory")
	rootCmd.AddCommand(deliverCmd)
}
