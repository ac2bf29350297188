package cmd

import (
	"os"

	"github.com/aqlanhadi/kisht/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile      string
	verbose      bool
	outputJSON   bool
	storeBackend string

	cfg    *config.Config
	cfgErr error

	rootCmd = &cobra.Command{
		Use:   "kisht",
		Short: "Installment ledger and UPI statement reconciliation",
		Long: `kisht keeps a lender's customers, their daily installments and payments,
and reconciles bank statement exports against linked UPI IDs.`,
		SilenceUsage: true,
	}
)

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initLogging)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default is ./.kisht.yaml, then ~/.kisht.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().StringVar(&storeBackend, "store", "", "document store backend: firestore, postgres or memory")
}

func initLogging() {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.WarnLevel)
	}
}

// logProgress raises logging to Info on stdout for long-running commands
func logProgress() {
	log.SetOutput(os.Stdout)
	if !verbose {
		log.SetLevel(log.InfoLevel)
	}
}

func initConfig() {
	cfg, cfgErr = config.Load(cfgFile)
	if cfgErr != nil {
		return
	}
	if storeBackend != "" {
		cfg.Store.Backend = storeBackend
	}
}
