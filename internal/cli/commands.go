package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"lpgen/internal/jobs"
	"lpgen/internal/model"
)

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func printJob(w io.Writer, j jobs.Job) {
	fmt.Fprintf(w, "%s  %-10s  %5.1f%%  step=%q", j.ID, j.Status, j.Progress, j.CurrentStep)
	if j.Error != "" {
		fmt.Fprintf(w, "  err=%q", j.Error)
	}
	fmt.Fprintln(w)
}

func newGenerateCmd(opts *options) *cobra.Command {
	var (
		brief    model.Brief
		file     string
		wait     bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Submit a brief and print the new job id",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(data, &brief); err != nil {
					return fmt.Errorf("parse %s: %w", file, err)
				}
			}
			id, err := opts.client.Generate(cmd.Context(), brief)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			if !wait {
				return nil
			}
			return waitAndReport(cmd, opts, id, interval)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "JSON brief file (flags are ignored when set)")
	f.StringVar(&brief.ServiceName, "service-name", "", "Service name")
	f.StringVar(&brief.ServiceType, "service-type", "", "Service category")
	f.StringVar(&brief.TargetAudience, "audience", "", "Target audience")
	f.StringVar(&brief.Features, "features", "", "Comma separated features")
	f.StringVar(&brief.Testimonials, "testimonials", "", "Testimonials")
	f.StringVar(&brief.CompanyName, "company", "", "Company name")
	f.BoolVar(&wait, "wait", false, "Wait for the job to finish")
	f.DurationVar(&interval, "interval", time.Second, "Poll interval with --wait")
	return cmd
}

func newStatusCmd(opts *options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a job's status and progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := opts.client.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), job)
			}
			printJob(cmd.OutOrStdout(), job)
			for _, s := range job.Steps {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-14s %s\n", s.ID, s.Status)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "JSON output")
	return cmd
}

func newListCmd(opts *options) *cobra.Command {
	var (
		asJSON bool
		status string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := opts.client.List(cmd.Context())
			if err != nil {
				return err
			}
			out := all[:0]
			for _, j := range all {
				if status == "" || string(j.Status) == status {
					out = append(out, j)
				}
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), out)
			}
			for _, j := range out {
				printJob(cmd.OutOrStdout(), j)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "JSON output")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (pending|processing|completed|error)")
	return cmd
}

func newRetryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Start a new job from an earlier job's brief",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := opts.client.Retry(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func newDownloadCmd(opts *options) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "download <job-id>",
		Short: "Save a completed job's zip bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if output == "" {
				output = "lp-" + id + ".zip"
			}
			tmp := output + ".part"
			f, err := os.Create(tmp)
			if err != nil {
				return err
			}
			n, err := opts.client.Download(cmd.Context(), id, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				os.Remove(tmp)
				return err
			}
			if err := os.Rename(tmp, output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%d bytes)\n", output, n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (default lp-<job-id>.zip)")
	return cmd
}

func newWaitCmd(opts *options) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "wait <job-id>",
		Short: "Poll a job until it completes or fails",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return waitAndReport(cmd, opts, args[0], interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Poll interval")
	return cmd
}

func waitAndReport(cmd *cobra.Command, opts *options, id string, interval time.Duration) error {
	job, err := opts.client.Wait(cmd.Context(), id, interval, func(j jobs.Job) {
		printJob(cmd.OutOrStdout(), j)
	})
	if err != nil {
		return err
	}
	if job.Status == jobs.StatusError {
		return fmt.Errorf("job %s failed: %s", job.ID, job.Error)
	}
	return nil
}
