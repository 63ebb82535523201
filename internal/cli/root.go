// Package cli implements lpgenctl, a command line client for the
// landing page job API.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

type options struct {
	server  string
	timeout time.Duration
	client  *Client
}

// NewRootCmd builds the lpgenctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "lpgenctl",
		Short:         "Submit and track landing page generation jobs.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.server == "" {
				opts.server = os.Getenv("LPGEN_SERVER")
			}
			if opts.server == "" {
				opts.server = "http://localhost:8000"
			}
			opts.client = NewClient(opts.server, opts.timeout)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.server, "server", "", "API base URL (default $LPGEN_SERVER or http://localhost:8000)")
	root.PersistentFlags().DurationVar(&opts.timeout, "http-timeout", 30*time.Second, "Per-request HTTP timeout")

	root.AddCommand(
		newGenerateCmd(opts),
		newStatusCmd(opts),
		newListCmd(opts),
		newRetryCmd(opts),
		newDownloadCmd(opts),
		newWaitCmd(opts),
	)
	return root
}

func Execute() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
