package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/g3/tornado/internal/adapters/server/common"
	"github.com/g3/tornado/internal/tui"
	"github.com/spf13/cobra"
)

// newIssuesCommand lists dashboard issues or opens the TUI.
func newIssuesCommand(flags *rootFlags) *cobra.Command {
	var all, useTUI, asJSON bool
	cmd := &cobra.Command{
		Use:   "issues",
		Short: "Show the issues dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withActor(cmd, flags, func(ctx context.Context, s *session) error {
				if useTUI {
					return runIssuesTUI(ctx, s, all)
				}
				issues, err := s.tracker.ListIssues(ctx, all)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), issues)
				}
				rows := make([][]string, 0, len(issues))
				for _, issue := range issues {
					rows = append(rows, []string{
						strings.ToUpper(issue.Severity),
						issue.TaskID,
						issue.ProjectName,
						clip(issue.TaskDescription, 48),
						issue.Summary,
					})
				}
				return writeTable(cmd.OutOrStdout(), "no issues", []string{"SEVERITY", "TASK", "PROJECT", "DESCRIPTION", "SUMMARY"}, rows)
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "every task in the system (admin only)")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "open the interactive dashboard")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func runIssuesTUI(ctx context.Context, s *session, all bool) error {
	opts := []tui.Option{tui.WithAllScope(all), tui.WithClipboard(copyToClipboard)}
	s.logger.SetConsoleEnabled(false)
	defer s.logger.SetConsoleEnabled(true)
	if _, err := programFactory(tui.NewModel(ctx, s.tracker, opts...)).Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}

// newTasksCommand lists visible tasks.
func newTasksCommand(flags *rootFlags) *cobra.Command {
	var (
		in     common.ListTasksRequest
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List tasks visible to you",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withActor(cmd, flags, func(ctx context.Context, s *session) error {
				tasks, err := s.tracker.ListTasks(ctx, in)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), tasks)
				}
				rows := make([][]string, 0, len(tasks))
				for _, task := range tasks {
					owners := make([]string, 0, len(task.Owners))
					for _, owner := range task.Owners {
						owners = append(owners, owner.Name)
					}
					rows = append(rows, []string{
						task.ID,
						task.ProjectName,
						clip(task.Description, 48),
						joinOr(owners, "-"),
						strconv.Itoa(task.DaysSinceMovement),
						taskState(task),
					})
				}
				return writeTable(cmd.OutOrStdout(), "no tasks", []string{"ID", "PROJECT", "DESCRIPTION", "OWNERS", "DAYS", "STATE"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&in.ProjectID, "project", "", "only tasks in this project")
	cmd.Flags().BoolVar(&in.IncludeClosed, "closed", false, "include closed tasks")
	cmd.Flags().BoolVar(&in.StaleOnly, "stale", false, "only stale tasks")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// taskState summarizes status, gate, and staleness in one cell.
func taskState(task common.Task) string {
	parts := []string{task.Status}
	if task.ActiveGate != nil {
		waiting := "gated: " + task.ActiveGate.Name
		if task.ActiveGate.OwnerName != "" {
			waiting += " (" + task.ActiveGate.OwnerName + ")"
		}
		parts = append(parts, waiting)
	}
	if task.IsStale {
		parts = append(parts, "stale")
	}
	return strings.Join(parts, ", ")
}

// newTaskCommand groups single-task writes.
func newTaskCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Create and update tasks",
	}
	cmd.AddCommand(
		newTaskAddCommand(flags),
		newTaskNoteCommand(flags),
		newTaskGateCommand(flags),
		newTaskCloseCommand(flags),
	)
	return cmd
}

func newTaskAddCommand(flags *rootFlags) *cobra.Command {
	var (
		in    common.CreateTaskRequest
		gates []string
	)
	cmd := &cobra.Command{
		Use:   "add DESCRIPTION",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Description = args[0]
			for _, raw := range gates {
				in.Gates = append(in.Gates, parseGateFlag(raw))
			}
			return withActor(cmd, flags, func(ctx context.Context, s *session) error {
				task, err := s.tracker.CreateTask(ctx, in)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "created task %s in %s\n", task.ID, task.ProjectName)
				for _, gate := range task.Gates {
					fmt.Fprintf(out, "  gate %s %s\n", gate.ID, gate.Name)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.ProjectID, "project", "", "project id")
	cmd.Flags().StringVar(&in.NextStep, "next", "", "next step")
	cmd.Flags().IntVar(&in.CadenceDays, "cadence", 0, "follow-up cadence in days (0 uses the default)")
	cmd.Flags().StringSliceVar(&in.OwnerIDs, "owner", nil, "owner contact id (repeatable)")
	cmd.Flags().StringArrayVar(&gates, "gate", nil, "gate as NAME or NAME=CONTACT_ID, in order (repeatable)")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

// parseGateFlag splits NAME=CONTACT_ID.
func parseGateFlag(raw string) common.GateRequest {
	name, owner, _ := strings.Cut(raw, "=")
	return common.GateRequest{
		Name:           strings.TrimSpace(name),
		OwnerContactID: strings.TrimSpace(owner),
	}
}

func newTaskNoteCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "note TASK_ID BODY...",
		Short: "Add a note to a task",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd, flags, func(ctx context.Context, s *session) error {
				note, err := s.tracker.AddNote(ctx, args[0], common.NoteRequest{Body: strings.Join(args[1:], " ")})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added note %s to %s\n", note.ID, note.TaskID)
				return nil
			})
		},
	}
}

func newTaskGateCommand(flags *rootFlags) *cobra.Command {
	var add string
	cmd := &cobra.Command{
		Use:   "gate TASK_ID [GATE_ID]",
		Short: "Complete a gate, or append one with --add",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if add == "" && len(args) != 2 {
				return fmt.Errorf("gate id is required unless --add is set")
			}
			return withActor(cmd, flags, func(ctx context.Context, s *session) error {
				var (
					task common.Task
					err  error
				)
				if add != "" {
					task, err = s.tracker.AddGate(ctx, args[0], parseGateFlag(add))
				} else {
					task, err = s.tracker.CompleteGate(ctx, args[0], args[1])
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", task.ID, taskState(task))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&add, "add", "", "append a gate as NAME or NAME=CONTACT_ID")
	return cmd
}

func newTaskCloseCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "close TASK_ID",
		Short: "Close a task, or request closure when you are not an admin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd, flags, func(ctx context.Context, s *session) error {
				task, err := s.tracker.CloseTask(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", task.ID, task.Status)
				return nil
			})
		},
	}
}

// newContactsCommand lists visible contacts.
func newContactsCommand(flags *rootFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "List contacts visible to you",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withActor(cmd, flags, func(ctx context.Context, s *session) error {
				contacts, err := s.tracker.ListContacts(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), contacts)
				}
				rows := make([][]string, 0, len(contacts))
				for _, c := range contacts {
					var marks []string
					if c.IsVendor {
						marks = append(marks, "vendor")
					}
					if c.IsPrivate {
						marks = append(marks, "private")
					}
					if c.Voided {
						marks = append(marks, "voided")
					}
					rows = append(rows, []string{c.ID, c.Name, c.Email, joinOr(c.Affiliations, "-"), joinOr(marks, "")})
				}
				return writeTable(cmd.OutOrStdout(), "no contacts", []string{"ID", "NAME", "EMAIL", "COMPANIES", "FLAGS"}, rows)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// newContactCommand groups contact writes.
func newContactCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contact",
		Short: "Create and merge contacts",
	}
	cmd.AddCommand(newContactAddCommand(flags), newContactMergeCommand(flags))
	return cmd
}

func newContactAddCommand(flags *rootFlags) *cobra.Command {
	var in common.CreateContactRequest
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Name = args[0]
			return withActor(cmd, flags, func(ctx context.Context, s *session) error {
				contact, err := s.tracker.CreateContact(ctx, in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created contact %s (%s)\n", contact.ID, contact.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Email, "email", "", "email address")
	cmd.Flags().StringVar(&in.Phone, "phone", "", "phone number")
	cmd.Flags().StringSliceVar(&in.Affiliations, "company", nil, "affiliated company id (repeatable)")
	cmd.Flags().BoolVar(&in.IsVendor, "vendor", false, "contact is a vendor")
	cmd.Flags().BoolVar(&in.IsPrivate, "private", false, "only you can see the contact")
	return cmd
}

func newContactMergeCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "merge SOURCE_ID TARGET_ID",
		Short: "Merge SOURCE into TARGET and delete SOURCE",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd, flags, func(ctx context.Context, s *session) error {
				res, err := s.tracker.MergeContacts(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "merged into %s: %d tasks, %d users relinked\n", res.Target.ID, res.TasksUpdated, res.UsersRelinked)
				return nil
			})
		},
	}
}

// newProjectsCommand lists visible projects.
func newProjectsCommand(flags *rootFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List projects visible to you",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withActor(cmd, flags, func(ctx context.Context, s *session) error {
				projects, err := s.tracker.ListProjects(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), projects)
				}
				rows := make([][]string, 0, len(projects))
				for _, p := range projects {
					rows = append(rows, []string{p.ID, p.Slug, p.Name, p.Visibility, joinOr(p.Affiliations, "-")})
				}
				return writeTable(cmd.OutOrStdout(), "no projects", []string{"ID", "SLUG", "NAME", "VISIBILITY", "COMPANIES"}, rows)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// newProjectCommand groups project writes.
func newProjectCommand(flags *rootFlags) *cobra.Command {
	var in common.CreateProjectRequest
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Name = args[0]
			return withActor(cmd, flags, func(ctx context.Context, s *session) error {
				project, err := s.tracker.CreateProject(ctx, in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created project %s (%s)\n", project.ID, project.Slug)
				return nil
			})
		},
	}
	add.Flags().StringVar(&in.Description, "description", "", "project description")
	add.Flags().StringVar(&in.Visibility, "visibility", "", "shared, personal, or one_on_one")
	add.Flags().StringSliceVar(&in.Affiliations, "company", nil, "company id (repeatable)")
	add.Flags().StringVar(&in.SharedContactID, "with", "", "contact id for one_on_one projects")

	cmd := &cobra.Command{
		Use:   "project",
		Short: "Create projects",
	}
	cmd.AddCommand(add)
	return cmd
}
