package cmd

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/sensorhub/onboarding/internal/core"
	"github.com/sensorhub/onboarding/internal/server"
	"github.com/sensorhub/onboarding/pkg/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the onboarding API server",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := core.Config{
			Addr:              viper.GetString("addr"),
			Region:            viper.GetString("region"),
			LedgerBackend:     viper.GetString("ledger_backend"),
			LedgerTable:       viper.GetString("ledger_table"),
			BadgerDir:         viper.GetString("badger_dir"),
			AdapterBackend:    viper.GetString("adapter_backend"),
			CertificateBucket: viper.GetString("certificate_bucket"),
			RootTopic:         viper.GetString("root_topic"),
			JWTSecret:         viper.GetString("jwt_secret"),
			LogDir:            viper.GetString("log_dir"),
			Debug:             viper.GetBool("debug"),
		}

		logger, err := util.DefaultLogger(cfg.Debug, cfg.LogDir)
		if err != nil {
			log.Fatalf("failed to initialize logger: %v", err)
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c, err := core.New(ctx, cfg, logger)
		if err != nil {
			log.Fatalf("failed to initialize service core: %v", err)
		}
		defer c.Close()

		logger.Info("starting onboarding server")

		if err = server.Run(ctx, c, c.Config().Addr); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "HTTP listen address")
	serveCmd.Flags().String("ledger-backend", "memory", "ledger backend: dynamodb, badger or memory")
	serveCmd.Flags().String("adapter-backend", "memory", "adapter backend: awsiot or memory")

	viper.BindPFlag("addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("ledger_backend", serveCmd.Flags().Lookup("ledger-backend"))
	viper.BindPFlag("adapter_backend", serveCmd.Flags().Lookup("adapter-backend"))
}
