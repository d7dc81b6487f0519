package main

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zzenonn/zdeliver/internal/config"
	"github.com/zzenonn/zdeliver/internal/logging"
	"github.com/zzenonn/zdeliver/internal/repository/db"
	"github.com/zzenonn/zdeliver/internal/repository/migrate"
)

var (
	cfg        *config.Config
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "zdeliver",
	Short: "Package, distribute and verify science product deliveries",
	Long: "zdeliver packages a product directory into a tarball, distributes it to a " +
		"destination host and verifies the delivered bytes by checksum.",
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)
	cobra.OnFinalize(func() {
		if cfg != nil {
			cfg.Close()
		}
	})
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the delivery record table",
	Run: func(cmd *cobra.Command, args []string) {
		dynamoDb, err := newDatabase(cmd.Context())
		if err != nil {
			fmt.Printf("Failed to connect to the database: %v\n", err)
			return
		}

		m := &migrate.CreateDeliveryRecordTable{Table: cfg.DynamoDBTable}
		if err := m.Up(cmd.Context(), dynamoDb.Client); err != nil {
			fmt.Printf("Failed to create table %s: %v\n", m.TableName(), err)
			return
		}

		fmt.Printf("Delivery record table %s created successfully\n", m.TableName())
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Drop the delivery record table",
	Run: func(cmd *cobra.Command, args []string) {
		dynamoDb, err := newDatabase(cmd.Context())
		if err != nil {
			fmt.Printf("Failed to connect to the database: %v\n", err)
			return
		}

		m := &migrate.CreateDeliveryRecordTable{Table: cfg.DynamoDBTable}
		if err := m.Down(cmd.Context(), dynamoDb.Client); err != nil {
			fmt.Printf("Failed to drop table %s: %v\n", m.TableName(), err)
			return
		}

		fmt.Printf("Delivery record table %s dropped successfully\n", m.TableName())
	},
}

func newDatabase(ctx context.Context) (*db.DynamoDb, error) {
	awsCfg, err := cfg.AWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	return db.NewDatabase(awsCfg)
}

func initConfig() {
	var err error
	cfg, err = config.LoadConfig(configPath, rootCmd)
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	logging.InitLogger(cfg)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ./config.yaml or ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log_level", "info", "Log level: trace, debug, info, warn or error")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress progress bars")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(downCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
