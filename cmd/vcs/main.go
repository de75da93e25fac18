// cmd/vcs/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"vcs/internal/archive"
	"vcs/internal/config"
	vcserr "vcs/internal/errors"
	"vcs/internal/logging"
	"vcs/internal/repo"
	"vcs/internal/workdir"
	shared "vcs/shared/types"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfg    = config.Default()
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "vcs",
	Short: "vcs is a local version control system",
	Long: `vcs keeps commits, branches and a staging zone for the working tree
it is run in, backed by a deduplicated content store.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.FromEnv()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		l, err := logging.NewConsole(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		logger = l.Logger
		return nil
	},
}

func init() {
	var initCmd = &cobra.Command{
		Use:   "init",
		Short: "Create a repository in the current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}
			author, _ := cmd.Flags().GetString("author")
			if author == "" {
				author = os.Getenv("USER")
			}

			r, err := repo.Create(dir, author, repo.Options{Config: cfg, Logger: logger})
			if err != nil {
				return fmt.Errorf("initializing repository: %w", err)
			}
			defer r.Close()

			fmt.Println("Initialized empty repository in", r.Dir())
			return nil
		},
	}
	initCmd.Flags().StringP("author", "a", "", "Author recorded on commits (defaults to $USER)")

	var userCmd = &cobra.Command{
		Use:   "user [name]",
		Short: "Show or change the commit author",
		Args:  cobra.MaximumNArgs(1),
		RunE: withRepo(func(r *repo.Repository, args []string) error {
			if len(args) == 1 {
				return r.SetUserName(args[0])
			}
			name, err := r.UserName()
			if err != nil {
				return err
			}
			fmt.Println(name)
			return nil
		}),
	}

	var addCmd = &cobra.Command{
		Use:   "add [paths...]",
		Short: "Stage files",
		Long:  `Stages the specified paths. Use '.' to stage the whole tree.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: withRepo(func(r *repo.Repository, args []string) error {
			paths, err := logicalPaths(r, args)
			if err != nil {
				return err
			}
			return r.Add(paths...)
		}),
	}

	var rmCmd = &cobra.Command{
		Use:   "rm [paths...]",
		Short: "Unstage files and delete them from the working tree",
		Args:  cobra.MinimumNArgs(1),
		RunE: withRepo(func(r *repo.Repository, args []string) error {
			paths, err := logicalPaths(r, args)
			if err != nil {
				return err
			}
			return r.Remove(paths...)
		}),
	}

	var statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show staged, unstaged and untracked changes",
		RunE: withRepo(func(r *repo.Repository, args []string) error {
			status, err := r.Status()
			if err != nil {
				return err
			}
			printStatus(status)
			return nil
		}),
	}

	var commitCmd = &cobra.Command{
		Use:   "commit",
		Short: "Record the staging zone as a new commit",
		RunE: func(cmd *cobra.Command, args []string) error {
			message, _ := cmd.Flags().GetString("message")
			return runWithRepo(func(r *repo.Repository) error {
				c, err := r.Commit(message)
				if err != nil {
					return err
				}
				fmt.Printf("[%s %d] %s\n", c.Branch, c.Number, c.Message)
				return nil
			})
		},
	}
	commitCmd.Flags().StringP("message", "m", "", "Commit message")
	commitCmd.MarkFlagRequired("message")

	var resetCmd = &cobra.Command{
		Use:   "reset [paths...]",
		Short: "Restore files to their state in the current commit",
		Args:  cobra.MinimumNArgs(1),
		RunE: withRepo(func(r *repo.Repository, args []string) error {
			paths, err := logicalPaths(r, args)
			if err != nil {
				return err
			}
			for _, p := range paths {
				if err := r.Reset(p); err != nil {
					return err
				}
			}
			return nil
		}),
	}

	var logCmd = &cobra.Command{
		Use:   "log",
		Short: "Show the commits of the current branch",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			return runWithRepo(func(r *repo.Repository) error {
				var entries []repo.LogEntry
				var err error
				if all {
					entries, err = r.History()
				} else {
					entries, err = r.Log()
				}
				if err != nil {
					return err
				}
				printLog(entries)
				return nil
			})
		},
	}
	logCmd.Flags().Bool("all", false, "Follow parents back to the root commit")

	var checkoutCmd = &cobra.Command{
		Use:   "checkout <branch|commit>",
		Short: "Switch to a branch head or to a commit number",
		Args:  cobra.ExactArgs(1),
		RunE: withRepo(func(r *repo.Repository, args []string) error {
			if n, err := strconv.Atoi(args[0]); err == nil {
				return r.CheckoutCommit(n)
			}
			return r.CheckoutBranch(args[0])
		}),
	}

	var branchCmd = &cobra.Command{
		Use:   "branch [name]",
		Short: "List branches, or create one at the current commit",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			del, _ := cmd.Flags().GetString("delete")
			return runWithRepo(func(r *repo.Repository) error {
				switch {
				case del != "":
					return r.DeleteBranch(del)
				case len(args) == 1:
					_, err := r.NewBranch(args[0])
					return err
				}
				return printBranches(r)
			})
		},
	}
	branchCmd.Flags().StringP("delete", "d", "", "Delete the named branch and its commits")

	var mergeCmd = &cobra.Command{
		Use:   "merge <branch>",
		Short: "Merge a branch head into the current branch",
		Args:  cobra.ExactArgs(1),
		RunE: withRepo(func(r *repo.Repository, args []string) error {
			c, err := r.Merge(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("[%s %d] %s\n", c.Branch, c.Number, c.Message)
			return nil
		}),
	}

	var cleanCmd = &cobra.Command{
		Use:   "clean",
		Short: "Delete untracked files",
		RunE: withRepo(func(r *repo.Repository, args []string) error {
			removed, err := r.Clean()
			for _, p := range removed {
				fmt.Println("removed", p)
			}
			return err
		}),
	}

	var ignoreCmd = &cobra.Command{
		Use:   "ignore [paths...]",
		Short: "Add paths to the ignore file",
		Args:  cobra.MinimumNArgs(1),
		RunE: withRepo(func(r *repo.Repository, args []string) error {
			paths, err := logicalPaths(r, args)
			if err != nil {
				return err
			}
			for _, p := range paths {
				if err := r.Ignore(p); err != nil {
					return err
				}
			}
			return nil
		}),
	}

	var diffCmd = &cobra.Command{
		Use:   "diff <path>",
		Short: "Show changes between the current commit and the working file",
		Args:  cobra.ExactArgs(1),
		RunE: withRepo(func(r *repo.Repository, args []string) error {
			paths, err := logicalPaths(r, args)
			if err != nil {
				return err
			}
			res, err := r.Diff(paths[0])
			if err != nil {
				return err
			}
			printColoredDiff(res.Format("a/"+paths[0], "b/"+paths[0]))
			return nil
		}),
	}

	var archiveCmd = &cobra.Command{
		Use:   "archive <commit>",
		Short: "Export a commit as a .tar.zst archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			list, _ := cmd.Flags().GetBool("list")
			if list {
				return listArchive(args[0])
			}

			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid commit number %q", args[0])
			}
			if output == "" {
				output = fmt.Sprintf("commit-%d.tar.zst", n)
			}
			return runWithRepo(func(r *repo.Repository) error {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating archive: %w", err)
				}
				if err := r.Archive(n, f); err != nil {
					f.Close()
					os.Remove(output)
					return err
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("closing archive: %w", err)
				}
				fmt.Println("Wrote", output)
				return nil
			})
		},
	}
	archiveCmd.Flags().StringP("output", "o", "", "Archive file (defaults to commit-<n>.tar.zst)")
	archiveCmd.Flags().Bool("list", false, "List the entries of an existing archive file instead")

	var journalCmd = &cobra.Command{
		Use:   "journal",
		Short: "Show the operations applied to the repository",
		RunE: withRepo(func(r *repo.Repository, args []string) error {
			entries, err := r.Journal()
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%s %s  %-13s %s@%d %s\n",
					e.ID,
					e.Time.Format(time.RFC3339),
					e.Op,
					e.Branch,
					e.Commit,
					e.Message,
				)
			}
			return nil
		}),
	}

	var journalShowCmd = &cobra.Command{
		Use:   "show <id>",
		Short: "Show one recorded operation",
		Args:  cobra.ExactArgs(1),
		RunE: withRepo(func(r *repo.Repository, args []string) error {
			e, err := r.JournalEntry(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("id:      %s\n", e.ID)
			fmt.Printf("time:    %s\n", e.Time.Format(time.RFC3339))
			fmt.Printf("op:      %s\n", e.Op)
			fmt.Printf("branch:  %s\n", e.Branch)
			fmt.Printf("commit:  %d\n", e.Commit)
			if e.Author != "" {
				fmt.Printf("author:  %s\n", e.Author)
			}
			if e.Message != "" {
				fmt.Printf("message: %s\n", e.Message)
			}
			return nil
		}),
	}
	journalCmd.AddCommand(journalShowCmd)

	var watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Print working tree changes as they happen",
		RunE: withRepo(func(r *repo.Repository, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Println("Watching", r.Root())
			return r.WorkingDirectory().Watch(ctx, func(e workdir.Event) {
				fmt.Printf("%-7s %s\n", e.Type, e.Path)
			})
		}),
	}

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(checkoutCmd)
	rootCmd.AddCommand(branchCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(ignoreCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(watchCmd)
}

// openRepo opens the repository enclosing the current directory.
func openRepo() (*repo.Repository, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting current directory: %w", err)
	}
	root, err := repo.FindRoot(cwd)
	if err != nil {
		return nil, err
	}
	return repo.Open(root, repo.Options{Config: cfg, Logger: logger})
}

func runWithRepo(fn func(r *repo.Repository) error) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	defer r.Close()
	return fn(r)
}

func withRepo(fn func(r *repo.Repository, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return runWithRepo(func(r *repo.Repository) error {
			return fn(r, args)
		})
	}
}

func logicalPaths(r *repo.Repository, args []string) ([]string, error) {
	paths := make([]string, 0, len(args))
	for _, arg := range args {
		p, err := r.WorkingDirectory().Rel(arg)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func printStatus(status *shared.Status) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	if status.Detached {
		fmt.Printf("On branch %s at commit %d %s\n", status.Branch, status.Commit, yellow("(not at head)"))
	} else {
		fmt.Printf("On branch %s at commit %d\n", status.Branch, status.Commit)
	}
	if status.Clean() {
		fmt.Println("Nothing to commit, working tree clean")
		return
	}

	section := func(title string, changes []shared.Change, paint func(a ...interface{}) string) {
		if len(changes) == 0 {
			return
		}
		fmt.Printf("\n%s:\n", title)
		for _, c := range changes {
			fmt.Printf("  %s\n", paint(fmt.Sprintf("%-10s %s", string(c.Type)+":", c.Path)))
		}
	}
	section("Staged changes", status.Staged, green)
	section("Unstaged changes", status.Unstaged, red)
	section("Untracked files", status.Untracked, red)
}

func printLog(entries []repo.LogEntry) {
	yellow := color.New(color.FgYellow).SprintFunc()
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		fmt.Printf("%s %s\n", yellow(fmt.Sprintf("commit %d", e.Number)), color.CyanString("(%s)", e.Branch))
		fmt.Printf("Author: %s\nDate:   %s\n\n", e.Author, e.Created.Format(time.RFC1123))
		for _, line := range strings.Split(e.Message, "\n") {
			fmt.Printf("    %s\n", line)
		}
		fmt.Println()
	}
}

func printBranches(r *repo.Repository) error {
	names, err := r.Branches()
	if err != nil {
		return err
	}
	current, err := r.CurrentBranchName()
	if err != nil {
		return err
	}
	for _, name := range names {
		if name == current {
			color.Green("* %s", name)
			continue
		}
		fmt.Printf("  %s\n", name)
	}
	return nil
}

func listArchive(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	files, err := archive.Read(f)
	if err != nil {
		return err
	}
	for _, file := range files {
		fmt.Printf("%8d  %s\n", len(file.Data), file.Path)
	}
	return nil
}

func printColoredDiff(diff string) {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	header := color.New(color.FgCyan)

	for _, line := range strings.Split(strings.TrimSuffix(diff, "\n"), "\n") {
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			color.New(color.Bold).Println(line)
		case strings.HasPrefix(line, "@@"):
			header.Println(line)
		case strings.HasPrefix(line, "+"):
			added.Println(line)
		case strings.HasPrefix(line, "-"):
			removed.Println(line)
		default:
			fmt.Println(line)
		}
	}
}

func main() {
	err := rootCmd.Execute()
	logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		if vcserr.IsFatal(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
