package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/g3/tornado/internal/adapters/notify"
	"github.com/g3/tornado/internal/app"
	"github.com/spf13/cobra"
)

// newImportCommand groups bulk imports.
func newImportCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import tasks or a full snapshot",
	}
	cmd.AddCommand(newImportCSVCommand(flags), newImportSnapshotCommand(flags))
	return cmd
}

func newImportCSVCommand(flags *rootFlags) *cobra.Command {
	var projectID, inPath string
	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Create tasks in a project from a legacy tracker CSV",
		Long: `Columns: description, owners, cadence_days, next_step, gates, last_movement_at.
Owners and gates are ";" separated. A gate is "name" or "name:owner",
prefixed with "[x] " when already completed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, closeIn, err := openInput(cmd, inPath)
			if err != nil {
				return err
			}
			defer closeIn()
			return withActor(cmd, flags, func(ctx context.Context, s *session) error {
				report, err := s.svc.ImportTasksCSV(ctx, s.actor, projectID, in)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, row := range report.Rows {
					switch {
					case row.Err != "":
						fmt.Fprintf(out, "line %d: error: %s\n", row.Line, row.Err)
					case len(row.Warnings) > 0:
						fmt.Fprintf(out, "line %d: %s: %s\n", row.Line, row.TaskID, strings.Join(row.Warnings, "; "))
					}
				}
				fmt.Fprintf(out, "created %d tasks, %d failed\n", report.Created, report.Failed)
				s.logger.Info("csv import complete", "project_id", projectID, "created", report.Created, "failed", report.Failed)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "target project id")
	cmd.Flags().StringVar(&inPath, "in", "-", "CSV file, or - for stdin")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func newImportSnapshotCommand(flags *rootFlags) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Upsert a JSON snapshot written by export (admin only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, closeIn, err := openInput(cmd, inPath)
			if err != nil {
				return err
			}
			defer closeIn()
			var snap app.Snapshot
			if err := json.NewDecoder(in).Decode(&snap); err != nil {
				return fmt.Errorf("decode snapshot: %w", err)
			}
			return withActor(cmd, flags, func(ctx context.Context, s *session) error {
				if err := s.svc.ImportSnapshot(ctx, s.actor, snap); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d projects, %d contacts, %d tasks\n", len(snap.Projects), len(snap.Contacts), len(snap.Tasks))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "snapshot file, or - for stdin")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

// newExportCommand writes a snapshot of every record.
func newExportCommand(flags *rootFlags) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a JSON snapshot of every record (admin only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withActor(cmd, flags, func(ctx context.Context, s *session) error {
				snap, err := s.svc.ExportSnapshot(ctx, s.actor)
				if err != nil {
					return err
				}
				if outPath == "" || outPath == "-" {
					return writeJSON(cmd.OutOrStdout(), snap)
				}
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				if err := writeJSON(f, snap); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("close export file: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d tasks to %s\n", len(snap.Tasks), outPath)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file, or - for stdout")
	return cmd
}

// newDigestCommand sends (or previews) follow-up digests once.
func newDigestCommand(flags *rootFlags) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Send follow-up digests for stale tasks",
		Long: `Groups stale tasks by owner and sends one digest per owner with an email.
Digests are published to NATS when notify.enabled is set, otherwise logged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd, flags)
			if err != nil {
				return err
			}
			defer func() {
				_ = s.Close()
			}()
			notifier, err := s.notifier()
			if err != nil {
				return err
			}
			s.start(app.WithNotifier(notifier))
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if dryRun {
				digests, skipped, err := s.svc.BuildDigests(ctx)
				if err != nil {
					return err
				}
				for _, d := range digests {
					fmt.Fprintf(out, "%s <%s>: %d stale tasks\n", d.ContactName, d.Email, len(d.Items))
				}
				fmt.Fprintf(out, "%d digests, %d owners skipped\n", len(digests), skipped)
				return nil
			}
			run, err := s.svc.SendDigests(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "sent %d of %d digests, %d owners skipped\n", run.Sent, run.Digests, run.Skipped)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list digests without sending")
	return cmd
}

// notifier dials NATS when configured and falls back to the log.
func (s *session) notifier() (app.Notifier, error) {
	if !s.cfg.Notify.Enabled {
		return notify.NewLogNotifier(s.logger.Component("digest")), nil
	}
	n, err := notify.DialNATS(s.cfg.Notify.NATSURL, s.cfg.Notify.Subject, s.logger.Component("nats"))
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, func() error {
		n.Close()
		return nil
	})
	return n, nil
}

// openInput opens path for reading; "-" reads the command's stdin.
func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, func() { _ = f.Close() }, nil
}
