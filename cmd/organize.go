package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mlindner/mailsort/internal/category"
	"github.com/mlindner/mailsort/internal/gmail"
	"github.com/mlindner/mailsort/internal/pipeline"
	"github.com/mlindner/mailsort/internal/trigger"
)

func newOrganizeCmd() *cobra.Command {
	var (
		account      string
		maxCount     int64
		categories   string
		customPrompt string
	)

	cmd := &cobra.Command{
		Use:   "organize",
		Short: "Classify unread Gmail messages and label them by category",
		Long: `Fetch the unread messages in your Gmail inbox, classify each one into a
category using an OpenAI model, and apply the matching Gmail label.

Messages whose classification fails are reported and left unchanged; the
remaining messages are still processed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if account == "" {
				account = viper.GetString(cfgAccount)
			}

			classifier, err := newClassifier()
			if err != nil {
				return fmt.Errorf("failed to create classifier: %w", err)
			}
			if classifier == nil {
				return fmt.Errorf("no classifier configured. Set OPENAI_API_KEY to enable classification")
			}

			client, err := gmail.NewClientForAccount(ctx, account)
			if err != nil {
				return fmt.Errorf("failed to create Gmail client for account %s: %w", account, err)
			}

			runCfg, err := runConfigFromViper()
			if err != nil {
				return err
			}

			orchestrator, err := pipeline.New(pipeline.Config{
				Mailbox:       client,
				Classifier:    classifier,
				MaxTextLength: runCfg.MaxTextLength,
				LabelNames:    runCfg.LabelNames,
			})
			if err != nil {
				return fmt.Errorf("failed to create pipeline: %w", err)
			}

			// Flags override config defaults; unset flags fall through to the
			// runner's defaults.
			opts := pipeline.Options{
				MaxCount:     maxCount,
				Instructions: customPrompt,
			}
			if categories != "" {
				allowed, err := category.ParseList(categories)
				if err != nil {
					return err
				}
				opts.Allowed = allowed
			}

			runner := trigger.NewRunner(orchestrator, runCfg.DefaultOptions)
			report, err := runner.Run(ctx, opts)
			if report != nil {
				fmt.Println(report.String())
				fmt.Println(report.Summary())
			}
			if err != nil {
				return fmt.Errorf("organize run failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Google account name to use (default: from config or 'default')")
	cmd.Flags().Int64Var(&maxCount, "max-count", 0, "Maximum number of unread messages to process (default: from config or 100)")
	cmd.Flags().StringVar(&categories, "categories", "", "Comma-separated categories to restrict classification to (e.g. Work,Personal)")
	cmd.Flags().StringVar(&customPrompt, "prompt", "", "Custom instructions for the classification prompt")

	return cmd
}
