package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/discoverlab/insight-map/internal/config"
	"github.com/discoverlab/insight-map/internal/logger"
	"github.com/discoverlab/insight-map/internal/services/ai"
	"github.com/discoverlab/insight-map/internal/validation"
	"github.com/spf13/cobra"
)

// NewRunCmd creates the run command
func NewRunCmd() *cobra.Command {
	var file string
	var debug bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a transcript extraction",
		Long:  "Send a transcript through the extraction gateway and print the resulting items and relations as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			var raw []byte
			if file == "" || file == "-" {
				raw, err = io.ReadAll(os.Stdin)
			} else {
				raw, err = os.ReadFile(file)
			}
			if err != nil {
				return fmt.Errorf("failed to read transcript: %w", err)
			}

			transcript := validation.SanitizeText(string(raw))
			if transcript == "" {
				return fmt.Errorf("transcript is empty")
			}

			zapLogger, err := logger.NewDevelopmentLogger(debug)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer func() {
				_ = zapLogger.Sync()
			}()

			provider, err := ai.NewOpenAIProviderWithLogger(cfg.OpenAIKey, cfg.AIBaseURL, cfg.AIModel, zapLogger, debug)
			if err != nil {
				return fmt.Errorf("failed to create extraction provider: %w", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
			defer cancel()

			result, err := provider.ExtractTranscript(ctx, transcript)
			if err != nil {
				return fmt.Errorf("extraction failed: %w", err)
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode result: %w", err)
			}
			fmt.Println(string(out))

			fmt.Fprintf(os.Stderr, "\n%d items, %d relations\n", len(result.Items), len(result.Relations))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Transcript file to read ('-' or empty for stdin)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Log raw LLM requests and responses")

	return cmd
}
