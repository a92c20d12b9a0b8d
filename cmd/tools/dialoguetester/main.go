// dialoguetester drives the dialogue pipeline from a terminal, without the
// HTTP server. It reads the same environment as the server.
//
//	dialoguetester seed
//	dialoguetester say --session demo "I feel a bit lonely today"
//	dialoguetester history --session demo
//	dialoguetester metrics
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/echomind/backend/internal/app"
	"github.com/zhouzirui/echomind/backend/internal/auth"
	"github.com/zhouzirui/echomind/backend/internal/config"
)

type options struct {
	user    string
	session string
	verbose bool
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "dialoguetester",
		Short:        "Run utterances through the EchoMind dialogue pipeline",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.user, "user", "u", "cli", "user id the commands act as")
	root.PersistentFlags().StringVarP(&opts.session, "session", "s", "cli-session", "conversation session id")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level to stderr")

	root.AddCommand(
		&cobra.Command{
			Use:   "seed",
			Short: "Seed default intent rules and the emotion model",
			Args:  cobra.NoArgs,
			RunE: opts.withApp(func(cmd *cobra.Command, _ []string, a *app.App) error {
				seeded, err := a.Dialogue.InitializeDefaults(cmd.Context())
				if err != nil {
					return err
				}
				if seeded {
					fmt.Fprintln(cmd.OutOrStdout(), "seeded default intents and emotion model")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "defaults already present")
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "say <text>",
			Short: "Process one utterance and print the result",
			Args:  cobra.MinimumNArgs(1),
			RunE: opts.withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
				result, err := a.Dialogue.ProcessVoiceInput(cmd.Context(), strings.Join(args, " "), opts.session)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			}),
		},
		&cobra.Command{
			Use:   "history",
			Short: "Print the stored conversation for the session",
			Args:  cobra.NoArgs,
			RunE: opts.withApp(func(cmd *cobra.Command, _ []string, a *app.App) error {
				conv, err := a.Dialogue.GetConversationHistory(cmd.Context(), opts.session)
				if err != nil {
					return err
				}
				if conv == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "no conversation for session %q\n", opts.session)
					return nil
				}
				return printJSON(cmd.OutOrStdout(), conv)
			}),
		},
		&cobra.Command{
			Use:   "metrics",
			Short: "Print the performance summary for the user",
			Args:  cobra.NoArgs,
			RunE: opts.withApp(func(cmd *cobra.Command, _ []string, a *app.App) error {
				summary, err := a.Metrics.GetPerformanceMetrics(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), summary)
			}),
		},
	)

	return root
}

// withApp opens the application for one command and closes it afterwards.
func (o *options) withApp(fn func(*cobra.Command, []string, *app.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := o.open(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, args, a)
	}
}

func (o *options) open(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := zap.NewNop()
	if o.verbose {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
		if logger, err = cfg.Log.NewLogger(); err != nil {
			return nil, err
		}
	}

	return app.New(ctx, cfg, logger, auth.Static(o.user))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
