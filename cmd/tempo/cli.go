package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/tempo/internal/app"
	"github.com/hpungsan/tempo/internal/errors"
	"github.com/hpungsan/tempo/internal/lists"
	"github.com/hpungsan/tempo/internal/schedule"
	"github.com/hpungsan/tempo/internal/timer"
	"github.com/hpungsan/tempo/internal/web"
)

// maxStdinBytes bounds text read from stdin.
const maxStdinBytes = 1 << 20

// newCLIApp creates the CLI application with all commands.
func newCLIApp(a *app.App) *cli.App {
	cliApp := &cli.App{
		Name:    "tempo",
		Usage:   "Work/break timer, calendar and task list",
		Version: Version,
		Commands: []*cli.Command{
			taskCmd(a),
			noteCmd(a),
			eventCmd(a),
			timerCmd(a),
			exportCmd(a),
			importCmd(a),
			statusCmd(a),
			serveCmd(a),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	cliApp.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return cliApp
}

// taskCmd creates the task command group.
func taskCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "task",
		Usage: "Manage the task list",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Add a pending task",
				ArgsUsage: "<text>",
				Action: func(c *cli.Context) error {
					var task lists.Task
					err := a.Do(c.Context, func(ctx context.Context) error {
						var err error
						task, err = a.Lists.AddTask(ctx, strings.Join(c.Args().Slice(), " "))
						return err
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, task)
				},
			},
			{
				Name:  "list",
				Usage: "List tasks",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "filter", Aliases: []string{"f"}, Value: "all", Usage: "all|completed|pending"},
				},
				Action: func(c *cli.Context) error {
					filter, err := lists.ParseFilter(c.String("filter"))
					if err != nil {
						return outputError(err)
					}
					var tasks []lists.Task
					if err := a.Do(c.Context, func(context.Context) error {
						tasks = a.Lists.Tasks(filter)
						return nil
					}); err != nil {
						return outputError(err)
					}
					if tasks == nil {
						tasks = []lists.Task{}
					}
					return outputJSON(c, tasks)
				},
			},
			{
				Name:      "toggle",
				Usage:     "Flip a task between pending and completed",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := parseID(c)
					if err != nil {
						return outputError(err)
					}
					var task lists.Task
					err = a.Do(c.Context, func(ctx context.Context) error {
						var ok bool
						if task, ok = a.Lists.ToggleTask(ctx, id); !ok {
							return errors.NewNotFound("task", id)
						}
						return nil
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, task)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a task",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					return deleteByID(c, a, a.Lists.DeleteTask)
				},
			},
			{
				Name:  "export",
				Usage: "Print uncompleted tasks one per line, or write them to a file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (.txt)"},
				},
				Action: func(c *cli.Context) error {
					if c.IsSet("path") {
						out, err := a.ExportTasksFile(c.Context, c.String("path"))
						if err != nil {
							return outputError(err)
						}
						return outputJSON(c, out)
					}
					var text string
					if err := a.Do(c.Context, func(context.Context) error {
						text = a.Lists.ExportUncompleted()
						return nil
					}); err != nil {
						return outputError(err)
					}
					if text != "" {
						fmt.Fprintln(c.App.Writer, text)
					}
					return nil
				},
			},
			{
				Name:  "import",
				Usage: "Append one pending task per non-blank line (reads stdin unless --path is given)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Import file path (.txt)"},
				},
				Action: func(c *cli.Context) error {
					var (
						added []lists.Task
						err   error
					)
					if c.IsSet("path") {
						added, err = a.ImportTasksFile(c.Context, c.String("path"))
					} else {
						if !stdinHasData() {
							return outputError(errors.NewValidation("task text must be piped via stdin or given with --path"))
						}
						var text string
						if text, err = readStdin(maxStdinBytes); err != nil {
							return outputError(err)
						}
						err = a.Do(c.Context, func(ctx context.Context) error {
							added = a.Lists.ImportTasks(ctx, text)
							return nil
						})
					}
					if err != nil {
						return outputError(err)
					}
					if added == nil {
						added = []lists.Task{}
					}
					return outputJSON(c, map[string]any{"imported": len(added), "tasks": added})
				},
			},
		},
	}
}

// noteCmd creates the note command group.
func noteCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "note",
		Usage: "Manage notes",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Add a note (reads stdin when no text is given)",
				ArgsUsage: "[text]",
				Action: func(c *cli.Context) error {
					content := strings.Join(c.Args().Slice(), " ")
					if content == "" && stdinHasData() {
						var err error
						if content, err = readStdin(maxStdinBytes); err != nil {
							return outputError(err)
						}
					}
					var note lists.Note
					err := a.Do(c.Context, func(ctx context.Context) error {
						var err error
						note, err = a.Lists.AddNote(ctx, content)
						return err
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, lists.ToNoteRecords([]lists.Note{note})[0])
				},
			},
			{
				Name:  "list",
				Usage: "List notes",
				Action: func(c *cli.Context) error {
					var notes []lists.NoteRecord
					if err := a.Do(c.Context, func(context.Context) error {
						notes = lists.ToNoteRecords(a.Lists.Notes())
						return nil
					}); err != nil {
						return outputError(err)
					}
					return outputJSON(c, notes)
				},
			},
			{
				Name:      "show",
				Usage:     "Print a note's content",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := parseID(c)
					if err != nil {
						return outputError(err)
					}
					var note lists.Note
					err = a.Do(c.Context, func(context.Context) error {
						var ok bool
						if note, ok = a.Lists.Note(id); !ok {
							return errors.NewNotFound("note", id)
						}
						return nil
					})
					if err != nil {
						return outputError(err)
					}
					fmt.Fprintln(c.App.Writer, note.Content)
					return nil
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a note",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					return deleteByID(c, a, a.Lists.DeleteNote)
				},
			},
		},
	}
}

// eventCmd creates the event command group.
func eventCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "event",
		Usage: "Manage calendar events",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create an event; overlapping events are rejected",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Required: true, Usage: "Event title"},
					&cli.TimestampFlag{Name: "start", Aliases: []string{"s"}, Layout: time.RFC3339, Required: true, Usage: "Start time (RFC 3339)"},
					&cli.TimestampFlag{Name: "end", Aliases: []string{"e"}, Layout: time.RFC3339, Required: true, Usage: "End time (RFC 3339)"},
					&cli.StringFlag{Name: "note", Aliases: []string{"n"}, Usage: "Optional note"},
				},
				Action: func(c *cli.Context) error {
					var note *string
					if c.IsSet("note") {
						n := c.String("note")
						note = &n
					}
					var event schedule.Event
					err := a.Do(c.Context, func(ctx context.Context) error {
						var err error
						event, err = a.Schedule.CreateEvent(ctx, c.String("title"), *c.Timestamp("start"), *c.Timestamp("end"), note)
						return err
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, schedule.ToRecords([]schedule.Event{event})[0])
				},
			},
			{
				Name:  "list",
				Usage: "List events, optionally only those intersecting [from, to)",
				Flags: []cli.Flag{
					&cli.TimestampFlag{Name: "from", Layout: time.RFC3339, Usage: "Window start (RFC 3339)"},
					&cli.TimestampFlag{Name: "to", Layout: time.RFC3339, Usage: "Window end (RFC 3339)"},
				},
				Action: func(c *cli.Context) error {
					if c.IsSet("from") != c.IsSet("to") {
						return outputError(errors.NewValidation("--from and --to must be given together"))
					}
					var events []schedule.Record
					if err := a.Do(c.Context, func(context.Context) error {
						if c.IsSet("from") {
							events = schedule.ToRecords(a.Schedule.EventsBetween(*c.Timestamp("from"), *c.Timestamp("to")))
						} else {
							events = schedule.ToRecords(a.Schedule.Events())
						}
						return nil
					}); err != nil {
						return outputError(err)
					}
					return outputJSON(c, events)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete an event",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					return deleteByID(c, a, a.Schedule.DeleteEvent)
				},
			},
		},
	}
}

// timerCmd creates the timer command group.
func timerCmd(a *app.App) *cli.Command {
	action := func(cmds ...timer.Command) cli.ActionFunc {
		return func(c *cli.Context) error {
			return runTimer(c, a, cmds...)
		}
	}
	return &cli.Command{
		Name:  "timer",
		Usage: "Control the work/break timer",
		Subcommands: []*cli.Command{
			{Name: "status", Usage: "Show the timer", Action: action(timer.TickNow{})},
			{Name: "start", Usage: "Start counting down", Action: action(timer.Start{})},
			{Name: "stop", Usage: "Pause the countdown", Action: action(timer.TickNow{}, timer.Stop{})},
			{Name: "reset", Usage: "Stop and rewind to a full work phase", Action: action(timer.Reset{})},
			{
				Name:  "config",
				Usage: "Change phase lengths",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "work", Aliases: []string{"w"}, Usage: "Work minutes"},
					&cli.IntFlag{Name: "break", Aliases: []string{"b"}, Usage: "Break minutes"},
				},
				Action: func(c *cli.Context) error {
					var cmds []timer.Command
					if c.IsSet("work") {
						cmds = append(cmds, timer.SetWorkMinutes{N: c.Int("work")})
					}
					if c.IsSet("break") {
						cmds = append(cmds, timer.SetBreakMinutes{N: c.Int("break")})
					}
					if len(cmds) == 0 {
						return outputError(errors.NewValidation("provide --work and/or --break"))
					}
					return runTimer(c, a, cmds...)
				},
			},
			{
				Name:  "watch",
				Usage: "Print the countdown every second until interrupted",
				Action: func(c *cli.Context) error {
					return watchTimer(c, a)
				},
			},
		},
	}
}

func runTimer(c *cli.Context, a *app.App, cmds ...timer.Command) error {
	var status timer.Status
	err := a.Do(c.Context, func(ctx context.Context) error {
		for _, cmd := range cmds {
			if err := a.Timer.Apply(ctx, cmd); err != nil {
				return err
			}
		}
		status = a.Timer.State().Status()
		return nil
	})
	if err != nil {
		return outputError(err)
	}
	return outputJSON(c, status)
}

// watchTimer prints the display on each second and a line per phase change.
func watchTimer(c *cli.Context, a *app.App) error {
	events := a.Timer.Subscribe(8)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	show := func() error {
		var st timer.State
		if err := a.Do(c.Context, func(ctx context.Context) error {
			a.Timer.Tick(ctx)
			st = a.Timer.State()
			return nil
		}); err != nil {
			return err
		}
		state := "stopped"
		if st.Running {
			state = "running"
		}
		fmt.Fprintf(c.App.Writer, "%s %s (%s)\n", st.Phase, st.Display(), state)
		return nil
	}

	if err := show(); err != nil {
		return outputError(err)
	}
	for {
		select {
		case <-c.Context.Done():
			return nil
		case ev := <-events:
			if ev.Type == timer.EventPhaseChange {
				fmt.Fprintf(c.App.Writer, "phase change: %s -> %s\n", ev.From, ev.State.Phase)
			}
		case <-ticker.C:
			if err := show(); err != nil {
				if stderrors.Is(err, context.Canceled) {
					return nil
				}
				return outputError(err)
			}
		}
	}
}

// exportCmd creates the whole-state export command.
func exportCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export tasks, events and notes to a JSON file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.tempo/exports/tempo-<timestamp>.json)"},
		},
		Action: func(c *cli.Context) error {
			out, err := a.ExportFile(c.Context, c.String("path"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, out)
		},
	}
}

// importCmd creates the whole-state import command.
func importCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Replace tasks, events and notes with the contents of an export file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Import file path (.json)"},
		},
		Action: func(c *cli.Context) error {
			out, err := a.ImportFile(c.Context, c.String("path"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, out)
		},
	}
}

// statusCmd creates the storage status command.
func statusCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show where state is stored, snapshot revisions and the last write error",
		Action: func(c *cli.Context) error {
			out, err := a.Status(c.Context)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, out)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the web UI and JSON API on localhost",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Aliases: []string{"a"}, Usage: "Listen address (default from config)"},
		},
		Action: func(c *cli.Context) error {
			addr := c.String("addr")
			if addr == "" {
				addr = a.Config().ListenAddr
			}

			events := a.Timer.Subscribe(8)
			go logPhaseChanges(c.Context, events)

			if err := web.Run(c.Context, web.NewServer(a, Version, addr)); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

func logPhaseChanges(ctx context.Context, events <-chan timer.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if ev.Type == timer.EventPhaseChange {
				log.Printf("timer: %s -> %s (%d transitions)", ev.From, ev.State.Phase, ev.Transitions)
			}
		}
	}
}

// Helper functions

func deleteByID(c *cli.Context, a *app.App, remove func(context.Context, int64) bool) error {
	id, err := parseID(c)
	if err != nil {
		return outputError(err)
	}
	var deleted bool
	if err := a.Do(c.Context, func(ctx context.Context) error {
		deleted = remove(ctx, id)
		return nil
	}); err != nil {
		return outputError(err)
	}
	return outputJSON(c, map[string]any{"id": id, "deleted": deleted})
}

// parseID reads the first positional argument as a positive id.
func parseID(c *cli.Context) (int64, error) {
	if c.NArg() == 0 {
		return 0, errors.NewValidation("id is required")
	}
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewValidation(fmt.Sprintf("id must be a positive integer (got %q)", c.Args().First()))
	}
	return id, nil
}

// outputJSON marshals result to the app's writer as JSON.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var tErr *errors.TempoError
	if stderrors.As(err, &tErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", tErr.Code, tErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads at most limit bytes from stdin.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if int64(len(data)) > limit {
		return "", errors.NewValidation(fmt.Sprintf("stdin exceeds %d bytes", limit))
	}
	return string(data), nil
}
