package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	whisperlive "github.com/cherrries/WhisperLive"
)

var logger *log.Logger

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.Flags().String("server", "ws://localhost:9090", "Transcription server URL")
	rootCmd.Flags().String("model", "small", "Whisper model to request")
	rootCmd.Flags().String("language", "", "ISO 639-1 language code (empty auto-detects)")
	rootCmd.Flags().Bool("translate", false, "Translate to English instead of transcribing")
	rootCmd.Flags().Bool("no-vad", false, "Disable server-side voice activity detection")
	rootCmd.Flags().String("file", "", "Transcribe a mono 16-bit WAV file instead of the microphone")
	rootCmd.Flags().String("output", "", "Append finished transcript lines to a file")
	rootCmd.Flags().String("output-srt", "", "Write finished segments as SubRip subtitles")
	rootCmd.Flags().Bool("plain", false, "Print transcript lines instead of the caption overlay")
	rootCmd.Flags().Bool("debug", false, "Enable debug logging")

	viper.BindPFlag("server", rootCmd.Flags().Lookup("server"))
	viper.BindPFlag("model", rootCmd.Flags().Lookup("model"))
	viper.BindPFlag("language", rootCmd.Flags().Lookup("language"))
	viper.BindPFlag("translate", rootCmd.Flags().Lookup("translate"))
	viper.BindPFlag("no_vad", rootCmd.Flags().Lookup("no-vad"))
	viper.BindPFlag("file", rootCmd.Flags().Lookup("file"))
	viper.BindPFlag("output", rootCmd.Flags().Lookup("output"))
	viper.BindPFlag("output_srt", rootCmd.Flags().Lookup("output-srt"))
	viper.BindPFlag("plain", rootCmd.Flags().Lookup("plain"))
	viper.BindPFlag("debug", rootCmd.Flags().Lookup("debug"))
}

func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("whisperlive")
	viper.AutomaticEnv()
	viper.ReadInConfig()

	logger = log.New(os.Stderr)
	if viper.GetBool("debug") {
		logger.SetLevel(log.DebugLevel)
	}
}

var rootCmd = &cobra.Command{
	Use:   "whisperlive-client",
	Short: "Stream microphone audio to a transcription server and show live captions",
	RunE:  runClient,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func sessionConfig() whisperlive.SessionConfig {
	task := whisperlive.TaskTranscribe
	if viper.GetBool("translate") {
		task = whisperlive.TaskTranslate
	}
	return whisperlive.SessionConfig{
		Language: viper.GetString("language"),
		Task:     task,
		Model:    viper.GetString("model"),
		UseVAD:   !viper.GetBool("no_vad"),
	}
}

func runClient(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// File transcription is a batch job; captions belong to live capture.
	if viper.GetBool("plain") || viper.GetString("file") != "" {
		return runPlain(ctx, sessionConfig(), viper.GetString("server"), viper.GetString("output"))
	}
	return runOverlay(ctx, sessionConfig(), viper.GetString("server"))
}

// runPlain prints one timestamped line per finished segment, skipping
// near-duplicates of recently printed text.
func runPlain(ctx context.Context, cfg whisperlive.SessionConfig, endpoint, outputPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var out *bufio.Writer
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = bufio.NewWriter(f)
		defer out.Flush()
	}

	// The capture source opens before anything touches the network: with
	// nothing to stream there is no reason to dial.
	src, fromFile, err := openSource()
	if err != nil {
		return err
	}
	defer src.Close()

	var srt *srtWriter
	if srtPath := viper.GetString("output_srt"); srtPath != "" {
		srt, err = newSRTWriter(srtPath)
		if err != nil {
			return err
		}
		defer srt.Close()
	}

	recent := NewRecentLines(16)
	session := whisperlive.NewSession(cfg,
		whisperlive.WithLogger(logger),
		whisperlive.WithSegmentHandler(func(segments []whisperlive.Segment) {
			for _, seg := range segments {
				if !seg.Completed {
					continue
				}
				text := strings.TrimSpace(seg.Text)
				if text == "" || recent.Seen(text) {
					continue
				}
				recent.Add(text)
				line := fmt.Sprintf("[%s - %s] %s\n", seg.Start, seg.End, text)
				fmt.Print(line)
				if out != nil {
					out.WriteString(line)
				}
				if srt != nil {
					if err := srt.WriteSegment(seg); err != nil {
						logger.Warn("srt write failed", "error", err)
					}
				}
			}
		}))

	if err := session.Start(ctx, endpoint); err != nil {
		return err
	}
	defer session.Stop()

	go func() {
		defer cancel()
		for ev := range session.Events() {
			logEvent(ev)
		}
	}()

	go func() {
		if err := streamAudio(ctx, src, session, fromFile); err != nil {
			logger.Error("audio capture stopped", "error", err)
			cancel()
			return
		}
		if fromFile {
			// The file is drained; give the server a moment to flush
			// trailing segments before shutting down.
			select {
			case <-time.After(3 * time.Second):
			case <-ctx.Done():
			}
			cancel()
		}
	}()

	if fromFile {
		fmt.Printf("Transcribing %s...\n", viper.GetString("file"))
	} else {
		fmt.Println("Recording... Press Ctrl+C to stop.")
	}
	<-ctx.Done()
	return nil
}

func logEvent(ev whisperlive.Event) {
	switch ev.Kind {
	case whisperlive.EventReady:
		logger.Info("server ready", "backend", ev.Backend)
	case whisperlive.EventLanguageDetected:
		logger.Info("language detected", "language", ev.Language, "prob", ev.LanguageProb)
	case whisperlive.EventServerBusy:
		logger.Error("server busy", "message", ev.Message)
	case whisperlive.EventDisconnected:
		logger.Info("disconnected", "reason", ev.Message)
	case whisperlive.EventDiagnostic:
		logger.Warn("diagnostic", "message", ev.Message)
	}
}
