package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clusterops/aerohealth/pkg/logger"
)

func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "aerohealth",
		Short:        "Aerospike collectinfo health-check backend",
		Long:         `Ingests collectinfo bundles, runs asadm diagnostics against them, and turns the output into structured health reports.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cobra.OnInitialize(initConfig)

	cmd.AddCommand(ServeCmd())
	cmd.AddCommand(ReportCmd())
	cmd.AddCommand(VersionCmd())

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	viper.BindPFlags(cmd.PersistentFlags())
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	logger.InitKlogFlags(cmd.PersistentFlags())

	return cmd
}

func InitAndExecute() {
	if err := RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("AEROHEALTH")
	viper.AutomaticEnv()
}
