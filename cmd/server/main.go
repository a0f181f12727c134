package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	whisperlive "github.com/cherrries/WhisperLive"
	"github.com/cherrries/WhisperLive/providers"
	"github.com/cherrries/WhisperLive/providers/deepgram"
	"github.com/cherrries/WhisperLive/providers/echo"
	"github.com/cherrries/WhisperLive/providers/google"
)

var logger *log.Logger

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.Flags().String("addr", ":9090", "Listen address")
	rootCmd.Flags().String("backend", "echo", "Transcription backend: echo, deepgram or google")
	rootCmd.Flags().String("deepgram-api-key", "", "Deepgram API key")
	rootCmd.Flags().String("deepgram-model", "", "Deepgram model name")
	rootCmd.Flags().String("detect-language", "en", "Language reported to auto-detecting clients")
	rootCmd.Flags().Float64("detect-prob", 0.99, "Confidence reported with the detected language")
	rootCmd.Flags().Int("max-clients", 0, "Concurrent session limit (0 uses the default)")
	rootCmd.Flags().Duration("max-connection-time", 0, "Session lifetime limit (0 uses the default)")
	rootCmd.Flags().Bool("debug", false, "Enable debug logging")

	viper.BindPFlag("addr", rootCmd.Flags().Lookup("addr"))
	viper.BindPFlag("backend", rootCmd.Flags().Lookup("backend"))
	viper.BindPFlag("deepgram_api_key", rootCmd.Flags().Lookup("deepgram-api-key"))
	viper.BindPFlag("deepgram_model", rootCmd.Flags().Lookup("deepgram-model"))
	viper.BindPFlag("detect_language", rootCmd.Flags().Lookup("detect-language"))
	viper.BindPFlag("detect_prob", rootCmd.Flags().Lookup("detect-prob"))
	viper.BindPFlag("max_clients", rootCmd.Flags().Lookup("max-clients"))
	viper.BindPFlag("max_connection_time", rootCmd.Flags().Lookup("max-connection-time"))
	viper.BindPFlag("debug", rootCmd.Flags().Lookup("debug"))
}

func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()
	viper.ReadInConfig()

	logger = log.New(os.Stderr)
	if viper.GetBool("debug") {
		logger.SetLevel(log.DebugLevel)
	}
}

var rootCmd = &cobra.Command{
	Use:   "whisperlive-server",
	Short: "Serve the streaming transcription protocol over websockets",
	RunE:  runServer,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newProvider builds the configured transcription backend. Google
// credentials come from the usual application default credentials chain.
func newProvider(ctx context.Context) (providers.Provider, error) {
	switch backend := viper.GetString("backend"); backend {
	case "echo":
		return echo.NewProvider(nil, 2*time.Second), nil
	case "deepgram":
		apiKey := viper.GetString("deepgram_api_key")
		if apiKey == "" {
			return nil, errors.New("deepgram backend requires an API key")
		}
		return deepgram.NewProvider(apiKey, viper.GetString("deepgram_model")), nil
	case "google":
		client, err := speech.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create speech client: %w", err)
		}
		return google.NewProvider(client), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := newProvider(ctx)
	if err != nil {
		return err
	}

	server := whisperlive.NewServer(provider,
		whisperlive.WithAddr(viper.GetString("addr")),
		whisperlive.WithServerLogger(logger),
		whisperlive.WithDetectedLanguage(viper.GetString("detect_language"), viper.GetFloat64("detect_prob")),
		whisperlive.WithCapacity(viper.GetInt("max_clients")),
		whisperlive.WithMaxConnectionTime(viper.GetDuration("max_connection_time")),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if err := server.Stop(); err != nil {
		return err
	}
	return <-errCh
}
