package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/aqlanhadi/kisht/api"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  `Serves customers, payments, pending installments and statement imports over HTTP until interrupted.`,
	Run: func(cmd *cobra.Command, args []string) {
		logProgress()

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		l, closeStore, err := openLedger(ctx)
		if err != nil {
			fail(err, "open ledger")
		}
		defer closeStore()

		if err := l.EnsureUser(ctx); err != nil {
			log.WithError(err).Warn("failed to record user activity")
		}

		apiConfig := api.DefaultConfig()
		apiConfig.Port = ":" + port
		server := api.New(apiConfig, l)

		if err := server.Start(ctx); err != nil {
			log.WithError(err).Error("server error")
			exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "8080", "port to listen on")
}
