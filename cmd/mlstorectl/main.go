package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/michael-freling/ml-artifact-store/internal/config"
	"github.com/michael-freling/ml-artifact-store/internal/db"
	"github.com/michael-freling/ml-artifact-store/internal/export"
	"github.com/michael-freling/ml-artifact-store/internal/import_files"
	"github.com/michael-freling/ml-artifact-store/internal/intercept"
	"github.com/michael-freling/ml-artifact-store/internal/store"
	"github.com/michael-freling/ml-artifact-store/internal/vfs"
	"github.com/michael-freling/ml-artifact-store/internal/xlog"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	runner := &commandRunner{}
	err := newRootCommand(runner).ExecuteContext(ctx)
	runner.close()
	stop()
	if err != nil {
		os.Exit(1)
	}
	os.Exit(0)
}

type app struct {
	conf    config.Config
	logger  *slog.Logger
	engine  *store.Engine
	adapter *vfs.Adapter

	fileSystem intercept.FileSystem

	closers []io.Closer
}

func newApp(ctx context.Context, configPath string, console io.Writer) (*app, error) {
	conf, err := config.ReadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("config.ReadConfig: %w", err)
	}
	if _, err := config.NewService(conf); err != nil {
		return nil, fmt.Errorf("config.NewService: %w", err)
	}

	logger, logFile, err := xlog.New(conf, console)
	if err != nil {
		return nil, fmt.Errorf("xlog.New: %w", err)
	}
	dbClient, err := db.FromConfig(conf, logger)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("db.FromConfig: %w", err)
	}

	engine := store.NewEngine(logger, conf, dbClient)
	if err := engine.Initialize(ctx); err != nil {
		dbClient.Close()
		logFile.Close()
		return nil, fmt.Errorf("engine.Initialize: %w", err)
	}
	adapter := vfs.NewAdapter(logger, conf, engine)

	return &app{
		conf:       conf,
		logger:     logger,
		engine:     engine,
		adapter:    adapter,
		fileSystem: intercept.NewRouter(logger, adapter, adapter.Parser(), intercept.OSPrimitives()),
		closers:    []io.Closer{dbClient, logFile},
	}, nil
}

func (a *app) Close() {
	for _, closer := range a.closers {
		closer.Close()
	}
}

// commandRunner owns the app built for a command.
// cobra skips post-run hooks when a command fails, so the app is closed after Execute returns.
type commandRunner struct {
	current *app
}

func (runner *commandRunner) close() {
	if runner.current == nil {
		return
	}
	runner.current.Close()
	runner.current = nil
}

// virtualPath accepts both "<root>/<bucket>/<name>" and "<bucket>/<name>"
func (a *app) virtualPath(arg string) string {
	if a.adapter.Parser().IsVirtual(arg) {
		return arg
	}
	return path.Join(a.conf.Storage.Root, filepath.ToSlash(arg))
}

func newRootCommand(runner *commandRunner) *cobra.Command {
	var configPath string

	rootCommand := &cobra.Command{
		Use:          "mlstorectl",
		Short:        "Manage files of an ML artifact store in a relational database",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			runner.current = a
			return nil
		},
	}
	rootCommand.PersistentFlags().StringVar(&configPath, "config", "", "path to the configuration file")
	getApp := func() *app {
		return runner.current
	}

	rootCommand.AddCommand(
		newInitCommand(getApp),
		newListCommand(getApp),
		newCatCommand(getApp),
		newPutCommand(getApp),
		newRemoveCommand(getApp),
		newClearCommand(getApp),
		newMkdirCommand(getApp),
		newStatCommand(getApp),
		newExportCommand(getApp),
		newImportCommand(getApp),
	)
	return rootCommand
}

func newInitCommand(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create tables, a root directory and buckets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			buckets, err := a.engine.ListDirectories(cmd.Context(), a.engine.RootName())
			if err != nil {
				return fmt.Errorf("engine.ListDirectories: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "initialized %s with buckets: %v\n", a.engine.RootName(), buckets)
			return nil
		},
	}
}

func newListCommand(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ls [bucket]",
		Short: "List buckets, or files in a bucket",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			ctx := cmd.Context()

			var names []string
			var err error
			if len(args) == 0 {
				names, err = a.engine.ListDirectories(ctx, a.engine.RootName())
			} else {
				names, err = a.fileSystem.ListDir(ctx, a.virtualPath(args[0]))
			}
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newCatCommand(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cat <bucket>/<name>",
		Short: "Print the content of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			file, err := a.fileSystem.Open(cmd.Context(), a.virtualPath(args[0]))
			if err != nil {
				return err
			}
			defer file.Close()

			if _, err := io.Copy(cmd.OutOrStdout(), file); err != nil {
				return fmt.Errorf("io.Copy: %w", err)
			}
			return nil
		},
	}
}

func newPutCommand(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "put <local file> <bucket>[/<name>]",
		Short: "Save a local file, replacing a file with the same name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			ctx := cmd.Context()
			sourceFilePath := args[0]
			destination := a.virtualPath(args[1])
			if parsed, _ := a.adapter.Parser().Parse(destination); parsed.IsBucket() {
				destination = path.Join(destination, filepath.Base(sourceFilePath))
			}

			source, err := os.Open(sourceFilePath)
			if err != nil {
				return fmt.Errorf("os.Open: %w", err)
			}
			defer source.Close()

			file, err := a.fileSystem.Create(ctx, destination)
			if err != nil {
				return err
			}
			if _, err := io.Copy(file, source); err != nil {
				file.Close()
				return fmt.Errorf("io.Copy: %w", err)
			}
			if err := file.Close(); err != nil {
				return err
			}
			a.logger.InfoContext(ctx, "Saved a file", "source", sourceFilePath, "destination", destination)
			return nil
		},
	}
}

func newRemoveCommand(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <bucket>/<name>...",
		Short: "Remove files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			for _, arg := range args {
				if err := a.fileSystem.Remove(cmd.Context(), a.virtualPath(arg)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newClearCommand(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <bucket>",
		Short: "Remove all files in a bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			return a.fileSystem.RemoveAll(cmd.Context(), a.virtualPath(args[0]))
		},
	}
}

func newMkdirCommand(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <bucket>",
		Short: "Create a bucket under the root directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			return a.fileSystem.MkdirAll(cmd.Context(), a.virtualPath(args[0]), 0755)
		},
	}
}

func newStatCommand(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stat <bucket>/<name>",
		Short: "Show the size and timestamps of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			parsed, _ := a.adapter.Parser().Parse(a.virtualPath(args[0]))
			if !parsed.HasName() {
				return fmt.Errorf("%w: %s", vfs.ErrMalformedPath, args[0])
			}

			info, err := a.engine.Stat(cmd.Context(), parsed.Name, parsed.Bucket)
			if err != nil {
				return err
			}
			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(writer, "name\t%s\n", info.Name)
			fmt.Fprintf(writer, "bucket\t%s\n", info.Directory)
			fmt.Fprintf(writer, "size\t%d\n", info.Size)
			fmt.Fprintf(writer, "content type\t%s\n", info.ContentType)
			fmt.Fprintf(writer, "created at\t%s\n", info.CreatedAt.Format(time.RFC3339))
			fmt.Fprintf(writer, "updated at\t%s\n", info.UpdatedAt.Format(time.RFC3339))
			return writer.Flush()
		},
	}
}

func newExportCommand(getApp func() *app) *cobra.Command {
	var toS3 bool
	command := &cobra.Command{
		Use:   "export <bucket> <destination>",
		Short: "Export files of a bucket into a local directory, or a prefix of an S3 bucket",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			ctx := cmd.Context()
			bucket, destination := args[0], args[1]

			var sink export.Sink = export.NewLocalSink(destination)
			if toS3 {
				client, err := export.NewS3Client(ctx, a.conf.S3)
				if err != nil {
					return fmt.Errorf("export.NewS3Client: %w", err)
				}
				sink = export.NewS3Sink(client, a.conf.S3.Bucket, path.Join(a.conf.S3.Prefix, destination))
			}

			exporter := export.NewBucketExporter(a.logger, a.engine, export.BucketExporterOptions{})
			allMetadata, err := exporter.Export(ctx, bucket, sink)
			if err != nil {
				return fmt.Errorf("exporter.Export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d files to %s\n", len(allMetadata), sink)
			return nil
		},
	}
	command.Flags().BoolVar(&toS3, "s3", false, "export into the S3 bucket in the configuration")
	return command
}

func newImportCommand(getApp func() *app) *cobra.Command {
	var replace bool
	command := &cobra.Command{
		Use:   "import <bucket> <path>...",
		Short: "Import local files, or files directly under local directories",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			ctx := cmd.Context()
			bucket, paths := args[0], args[1:]

			progressNotifier := import_files.NewProgressNotifier()
			done := make(chan struct{})
			go progressNotifier.Run(done, time.Second, func(completed int, failed int) {
				a.logger.InfoContext(ctx, "Importing files", "completed", completed, "failed", failed)
			})

			importer := import_files.NewBatchFileImporter(a.logger, a.engine)
			importedFiles, err := importer.ImportFiles(ctx, bucket, paths, replace, progressNotifier)
			close(done)
			for _, importedFile := range importedFiles {
				fmt.Fprintf(cmd.OutOrStdout(), "imported %s\n", importedFile.SourceFilePath)
			}
			if err != nil {
				return fmt.Errorf("importer.ImportFiles: %w", err)
			}
			return nil
		},
	}
	command.Flags().BoolVar(&replace, "replace", false, "replace files with the same names")
	return command
}
