package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/straja-ai/adaware/internal/logger"
)

var (
	configPath string
	envFile    string

	rootCmd = &cobra.Command{
		Use:   "adaware",
		Short: "Ad risk and trust scoring engine",
		Long: `AdAware fuses OCR, vision, NLP, catalog and domain signals about an ad
into a risk profile, a final verdict and a user-facing explanation.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					logger.Log.Warnf("no env file at %s, using environment variables", envFile)
				}
				return
			}
			_ = godotenv.Load()
		},
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "adaware.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env when present)")
	rootCmd.AddCommand(serveCmd, analyzeCmd, hashKeyCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
