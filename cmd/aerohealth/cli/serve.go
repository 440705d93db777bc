package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"

	"github.com/clusterops/aerohealth/pkg/asadm"
	"github.com/clusterops/aerohealth/pkg/constants"
	"github.com/clusterops/aerohealth/pkg/logger"
	"github.com/clusterops/aerohealth/pkg/oracle"
	"github.com/clusterops/aerohealth/pkg/server"
	"github.com/clusterops/aerohealth/pkg/store"
)

func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the health-check HTTP backend",
		Long:  `Run the health-check HTTP backend. The result store connection is required; the extraction oracle and the asadm binary are probed but optional.`,
		PreRun: func(cmd *cobra.Command, args []string) {
			v := viper.GetViper()
			v.BindPFlags(cmd.Flags())
			logger.SetupLogger(v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(viper.GetViper())
		},
	}

	cmd.Flags().String("addr", ":8000", "address to listen on")
	cmd.Flags().String("aerospike-host", "127.0.0.1", "result store host")
	cmd.Flags().Int("aerospike-port", 3000, "result store port")
	cmd.Flags().String("aerospike-namespace", constants.StoreNamespace, "result store namespace")
	cmd.Flags().String("gemini-api-key", "", "extraction oracle API key (falls back to GEMINI_API_KEY)")
	cmd.Flags().String("asadm-binary", constants.DEFAULT_ASADM_BINARY, "path to the asadm binary")
	cmd.Flags().Int("workers", constants.DEFAULT_WORKERS, "concurrent per-file pipelines per batch")
	cmd.Flags().String("scratch-dir", "", "root for per-upload scratch directories (default: system temp)")
	cmd.Flags().String("logs-dir", constants.LogsDirName, "directory for the backend log file")
	cmd.Flags().StringSlice("cors-origins", nil, "allowed CORS origins (default: local frontend dev servers)")

	viper.BindPFlags(cmd.Flags())

	return cmd
}

func runServe(v *viper.Viper) error {
	logPath, err := logger.SetupFileLogging(v.GetString("logs-dir"), constants.BackendLogFile)
	if err != nil {
		return err
	}
	klog.Infof("logging to %s", logPath)

	st, err := store.New(
		v.GetString("aerospike-host"),
		v.GetInt("aerospike-port"),
		v.GetString("aerospike-namespace"),
	)
	if err != nil {
		return err
	}
	defer st.Close()

	runner := asadm.NewRunner(v.GetString("asadm-binary"), constants.DEFAULT_COMMAND_TIMEOUT)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if version, err := runner.Version(ctx); err != nil {
		klog.Warningf("asadm probe failed, uploads will fall back to bundled report text: %v", err)
	} else {
		klog.Infof("using %s", version)
	}

	apiKey := v.GetString("gemini-api-key")
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	gen := oracle.NewClient(oracle.DefaultConfig(apiKey))
	if !gen.Configured() {
		klog.Warning("extraction oracle not configured, using deterministic fallback extraction only")
	}

	srv := server.New(server.Options{
		Addr:        v.GetString("addr"),
		Store:       st,
		Runner:      runner,
		Oracle:      gen,
		ScratchRoot: v.GetString("scratch-dir"),
		LogsDir:     v.GetString("logs-dir"),
		Workers:     v.GetInt("workers"),
		Origins:     v.GetStringSlice("cors-origins"),
	})

	return srv.Serve(ctx)
}
