package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/mgrep/internal/config"
	"github.com/dshills/mgrep/internal/indexer"
	"github.com/dshills/mgrep/internal/logging"
	"github.com/dshills/mgrep/internal/mcp"
	"github.com/dshills/mgrep/internal/searcher"
	"github.com/dshills/mgrep/internal/storage"
	"github.com/dshills/mgrep/internal/watcher"
)

// globalOptions are the persistent flags plus the state PersistentPreRunE
// derives from them
type globalOptions struct {
	configPath string
	userID     string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "mgrep",
		Short: "Multi-user semantic search over code, documents and images",
		Long: `mgrep indexes source code, documents and images into per-user,
per-project collections and answers natural language queries over them.
Run "mgrep serve" to expose the same operations as MCP tools on stdio.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $MGREP_CONFIG or ~/.mgrep/config.toml)")
	root.PersistentFlags().StringVarP(&opts.userID, "user", "u", "", "user id to act as (overrides user_id)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newServeCmd(opts),
		newIndexCmd(opts),
		newSearchCmd(opts),
		newCleanCmd(opts),
		newRecreateCmd(opts),
		newWatchCmd(opts),
		newVersionCmd(),
	)

	return root
}

// load reads configuration and builds the logger. Logs always go to stderr;
// stdout is reserved for command output and MCP traffic.
func (o *globalOptions) load(cmd *cobra.Command) error {
	if cmd.Name() == "version" {
		return nil
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.userID != "" {
		cfg.UserID = o.userID
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	o.cfg = cfg
	o.logger = logger
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			opts.logger.Info("mgrep MCP server starting",
				"version", version,
				"build_mode", storage.BuildMode,
				"driver", storage.DriverName,
				"backend", opts.cfg.Store.Backend,
				"collection", opts.cfg.Store.Collection,
			)

			a, err := newApp(ctx, opts.cfg, opts.logger, true)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			server, err := mcp.NewServer(mcp.Deps{
				Indexer:   a.indexer,
				Searcher:  a.searcher,
				Lifecycle: a.lifecycle,
				UserID:    opts.cfg.UserID,
				Logger:    opts.logger,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			err = server.Serve(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("server error: %w", err)
			}
			opts.logger.Info("server stopped")
			return nil
		},
	}
}

func newIndexCmd(opts *globalOptions) *cobra.Command {
	var (
		project       string
		storeAs       string
		includeVendor bool
		workers       int
	)

	cmd := &cobra.Command{
		Use:   "index <file|dir>",
		Short: "Index a file or a directory tree",
		Long: `Index replaces everything previously indexed for each file it touches.
Files are routed by extension to the code, document or image pipeline.
Directories are walked recursively, skipping hidden directories and,
unless --include-vendor is given, vendor/ and node_modules/.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			path := args[0]
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			if project == "" {
				project = defaultProject(path, info.IsDir())
			}

			a, err := newApp(ctx, opts.cfg, opts.logger, true)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			out := cmd.OutOrStdout()

			if info.IsDir() {
				if workers <= 0 {
					workers = opts.cfg.Index.Workers
				}
				stats, err := a.indexer.IndexDirectory(ctx, opts.cfg.UserID, project, path, &indexer.Config{
					Workers:       workers,
					IncludeVendor: includeVendor,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Indexed %d files (%d skipped, %d failed), %d chunks in %s\n",
					stats.FilesIndexed, stats.FilesSkipped, stats.FilesFailed, stats.ChunksCreated, stats.Duration.Round(time.Millisecond))
				for _, msg := range stats.ErrorMessages {
					fmt.Fprintln(out, "  "+msg)
				}
				return nil
			}

			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if storeAs == "" {
				storeAs = indexer.StoredPath(path)
			}
			result, err := a.indexer.IndexFile(ctx, opts.cfg.UserID, project, storeAs, content)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Indexed %s as %s: %d chunks (%d replaced)\n",
				result.FilePath, result.ContentType, result.ChunksIndexed, result.Purged)
			return nil
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "project name (default: directory name)")
	cmd.Flags().StringVar(&storeAs, "as", "", "file path to store a single file under (default: path relative to the working directory)")
	cmd.Flags().BoolVar(&includeVendor, "include-vendor", false, "index vendor/ and node_modules/")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "concurrent workers for directories (default: index.workers)")
	return cmd
}

// defaultProject names a project after the indexed directory, or after the
// directory holding an indexed file
func defaultProject(path string, isDir bool) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if !isDir {
		abs = filepath.Dir(abs)
	}
	return filepath.Base(abs)
}

func newSearchCmd(opts *globalOptions) *cobra.Command {
	var (
		project string
		topK    int
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed content",
		Long: `Search ranks the user's chunks by cosine similarity to the query. When
vector retrieval fails the store's keyword search answers instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			a, err := newApp(ctx, opts.cfg, opts.logger, true)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			resp, err := a.searcher.Search(ctx, searcher.Request{
				UserID:      opts.cfg.UserID,
				Query:       args[0],
				ProjectName: project,
				TopK:        topK,
			})
			if err != nil {
				return err
			}

			if asJSON {
				return outputSearchJSON(cmd, resp)
			}
			outputSearchText(cmd, resp)
			return nil
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "restrict to one project")
	cmd.Flags().IntVarP(&topK, "limit", "n", 0, "maximum number of results (default: search.default_top_k)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")
	return cmd
}

func outputSearchJSON(cmd *cobra.Command, resp *searcher.Response) error {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func outputSearchText(cmd *cobra.Command, resp *searcher.Response) {
	out := cmd.OutOrStdout()
	if len(resp.Results) == 0 {
		fmt.Fprintln(out, "No results found.")
		return
	}

	if resp.FallbackReason != "" {
		fmt.Fprintf(out, "(keyword results: %s)\n", resp.FallbackReason)
	}
	for _, r := range resp.Results {
		doc := r.Document
		location := doc.FilePath
		if doc.LineStart != nil && doc.LineEnd != nil {
			location = fmt.Sprintf("%s:%d-%d", doc.FilePath, *doc.LineStart+1, *doc.LineEnd+1)
		}
		fmt.Fprintf(out, "[%d] %s/%s (%.3f)\n", r.Rank, doc.ProjectName, location, r.Score)
		if doc.FunctionName != nil {
			fmt.Fprintf(out, "    %s\n", *doc.FunctionName)
		} else if doc.ClassName != nil {
			fmt.Fprintf(out, "    %s\n", *doc.ClassName)
		}
	}
}

func newCleanCmd(opts *globalOptions) *cobra.Command {
	var (
		project string
		all     bool
	)

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete indexed documents",
		Long: `Clean deletes the current user's documents, optionally only those of
one project. With --all every document of every user is deleted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, opts.cfg, opts.logger, true)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			userID := opts.cfg.UserID
			if all {
				userID = ""
			}
			result, err := a.lifecycle.Clean(ctx, userID, project, all)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d documents\n", result.Deleted)
			return nil
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "only delete this project's documents")
	cmd.Flags().BoolVar(&all, "all", false, "delete every document of every user")
	return cmd
}

func newRecreateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recreate",
		Short: "Drop and recreate the collection for the configured embedder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, opts.cfg, opts.logger, false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.lifecycle.Recreate(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recreated collection %s (dimension %d)\n",
				a.lifecycle.Collection(), a.embedder.Dimension())
			return nil
		},
	}
}

func newWatchCmd(opts *globalOptions) *cobra.Command {
	var (
		project       string
		includeVendor bool
		skipInitial   bool
	)

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Index a directory and keep it indexed as files change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			root := args[0]
			if project == "" {
				project = defaultProject(root, true)
			}

			a, err := newApp(ctx, opts.cfg, opts.logger, true)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if !skipInitial {
				stats, err := a.indexer.IndexDirectory(ctx, opts.cfg.UserID, project, root, &indexer.Config{
					Workers:       opts.cfg.Index.Workers,
					IncludeVendor: includeVendor,
				})
				if err != nil {
					return err
				}
				opts.logger.Info("initial index complete",
					"files", stats.FilesIndexed, "skipped", stats.FilesSkipped,
					"failed", stats.FilesFailed, "chunks", stats.ChunksCreated)
			}

			w, err := watcher.New(a.indexer, watcher.Config{
				UserID:        opts.cfg.UserID,
				ProjectName:   project,
				Root:          root,
				IncludeVendor: includeVendor,
			}, opts.logger)
			if err != nil {
				return err
			}
			return w.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "project name (default: directory name)")
	cmd.Flags().BoolVar(&includeVendor, "include-vendor", false, "index vendor/ and node_modules/")
	cmd.Flags().BoolVar(&skipInitial, "no-initial", false, "skip the initial full index")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mgrep %s\n", version)
			fmt.Fprintf(out, "Build Time: %s\n", buildTime)
			fmt.Fprintf(out, "Build Mode: %s\n", storage.BuildMode)
			fmt.Fprintf(out, "SQLite Driver: %s\n", storage.DriverName)
		},
	}
}
