package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/oauth2"

	kintobridge "github.com/opengovern/kinto-bridge"
	"github.com/opengovern/kinto-bridge/adapters"
)

const (
	Version = "0.3.0"
)

var (
	client *kintobridge.Client
	logger hclog.Logger

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "kinto-bridge",
		Short: "resilient client for Kinto servers",
		Long: fmt.Sprintf(`kinto-bridge (v%s)

A client for Kinto HTTP servers with request deadlines, server backoff
signals, bounded retries on overload and point-in-time collection
snapshots computed from the history log.`, Version),
		SilenceUsage:      true,
		PersistentPreRunE: setupClient,
		PersistentPostRun: writeMetrics,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of kinto-bridge",
		// no client needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kinto-bridge v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.AddCommand(requestCmd)
	RootCmd.AddCommand(infoCmd)
	RootCmd.AddCommand(totalCmd)
	RootCmd.AddCommand(snapshotCmd)
	RootCmd.AddCommand(versionCmd)

	flags := RootCmd.PersistentFlags()
	flags.String("remote", "http://localhost:8888/v1", "Root URL of the Kinto server")
	flags.Duration("timeout", 0, "Deadline of each attempt (0 disables it)")
	flags.Int("retry", 0, "Retries allowed when the server is overloaded")
	flags.String("token", "", "Bearer token sent in the Authorization header")
	flags.StringArray("header", nil, "Extra header sent with every request, as \"Name: value\"")
	flags.String("log-level", "warn", "Log level (trace, debug, info, warn, error)")
	flags.String("config", "", "Path to an HCL configuration file")
	flags.Bool("metrics", false, "Print request metrics in Prometheus format to stderr on exit")
}

// setupClient builds the client shared by every subcommand from flags,
// environment and the optional config file.
func setupClient(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	var fileHeaders map[string]string
	if path := viper.GetString("config"); path != "" {
		cfg, err := loadFileConfig(path)
		if err != nil {
			return err
		}
		fileHeaders = cfg.Headers
	}

	logger = hclog.New(&hclog.LoggerOptions{
		Name:   "kinto-bridge",
		Level:  hclog.LevelFromString(viper.GetString("log-level")),
		Output: os.Stderr,
	})

	headers := http.Header{}
	for name, value := range fileHeaders {
		headers.Set(name, value)
	}
	pairs, err := cmd.Flags().GetStringArray("header")
	if err != nil {
		return err
	}
	flagHeaders, err := parseHeaders(pairs)
	if err != nil {
		return err
	}
	for name, values := range flagHeaders {
		headers[name] = values
	}

	transportCfg := adapters.HTTPTransportConfig{}
	if token := viper.GetString("token"); token != "" {
		transportCfg.TokenSource = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	}

	client, err = kintobridge.NewClient(kintobridge.ClientConfig{
		Remote:    viper.GetString("remote"),
		Headers:   headers,
		Timeout:   viper.GetDuration("timeout"),
		Retry:     viper.GetInt("retry"),
		Transport: adapters.NewHTTPTransport(transportCfg),
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	client.Events().On(kintobridge.SignalBackoff, func(payload any) {
		if deadline, ok := payload.(int64); ok && deadline > 0 {
			logger.Info("server asked clients to back off", "until", time.UnixMilli(deadline))
		}
	})
	client.Events().On(kintobridge.SignalDeprecated, func(payload any) {
		if alert, ok := payload.(kintobridge.Alert); ok {
			fmt.Fprintf(os.Stderr, "warning: %s (%s)\n", alert.Message, alert.URL)
		}
	})
	return nil
}

func writeMetrics(*cobra.Command, []string) {
	if viper.GetBool("metrics") {
		metrics.WritePrometheus(os.Stderr, false)
	}
}
