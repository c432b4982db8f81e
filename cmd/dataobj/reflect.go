package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/hatlonely/dataobj/cfg"
	"github.com/hatlonely/dataobj/database"
	"github.com/hatlonely/dataobj/log"
	"github.com/hatlonely/dataobj/log/logger"
	"github.com/hatlonely/dataobj/ref"
	"github.com/hatlonely/dataobj/reflector"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// ReflectOptions reflect 命令的配置文件
//
//	database:
//	  type: SQL
//	  options: {driver: mysql, dsn: "user:pass@tcp(localhost:3306)/test"}
//	reflector:
//	  package: models
//	tables:
//	  folder: Folder
type ReflectOptions struct {
	Database  ref.TypeOptions   `cfg:"database"`
	Logger    *ref.TypeOptions  `cfg:"logger"`
	Reflector reflector.Options `cfg:"reflector"`
	// Tables 表名 -> 模型名，模型名为空时由表名转换
	Tables map[string]string `cfg:"tables"`
	Output string            `cfg:"output"`
}

type reflectFlags struct {
	config string
	tables []string
	model  string
	pkg    string
	output string
	watch  bool
}

func newReflectCmd() *cobra.Command {
	flags := &reflectFlags{}
	cmd := &cobra.Command{
		Use:   "reflect",
		Short: "Generate model registrations from mysql tables",
		Example: `  dataobj reflect --config db.yaml --table folder --model Folder
  dataobj reflect --config db.yaml --table folder --table folder_item:Item -o models/models.go`,
		RunE: func(cmd *cobra.Command, args []string) error {
			options, err := loadReflectOptions(flags)
			if err != nil {
				return err
			}
			if !flags.watch {
				return runReflect(cmd.Context(), options, cmd.OutOrStdout())
			}
			return watchReflect(cmd, flags, options)
		},
	}

	cmd.Flags().StringVarP(&flags.config, "config", "c", "", "config file, json/yaml/toml/ini")
	cmd.Flags().StringArrayVarP(&flags.tables, "table", "t", nil, "table to reflect, table or table:Model")
	cmd.Flags().StringVarP(&flags.model, "model", "m", "", "model name of a single table")
	cmd.Flags().StringVarP(&flags.pkg, "package", "p", "", "package name of generated source")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output file, stdout if empty")
	cmd.Flags().BoolVarP(&flags.watch, "watch", "w", false, "regenerate when config changes")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

// loadReflectOptions 命令行参数覆盖配置文件
func loadReflectOptions(flags *reflectFlags) (*ReflectOptions, error) {
	options := &ReflectOptions{}
	if err := cfg.Load(flags.config, options); err != nil {
		return nil, errors.WithMessage(err, "load config failed")
	}

	if len(flags.tables) != 0 {
		options.Tables = map[string]string{}
		for _, t := range flags.tables {
			table, model, _ := strings.Cut(t, ":")
			options.Tables[strings.TrimSpace(table)] = strings.TrimSpace(model)
		}
	}
	if flags.model != "" {
		if len(options.Tables) != 1 {
			return nil, errors.New("--model requires exactly one table")
		}
		for table := range options.Tables {
			options.Tables[table] = flags.model
		}
	}
	if flags.pkg != "" {
		options.Reflector.Package = flags.pkg
	}
	if flags.output != "" {
		options.Output = flags.output
	}
	if len(options.Tables) == 0 {
		return nil, errors.New("no table to reflect")
	}
	return options, nil
}

func runReflect(ctx context.Context, options *ReflectOptions, stdout io.Writer) error {
	var l logger.Logger = log.Default()
	if options.Logger != nil {
		var err error
		if l, err = log.NewLoggerWithOptions(options.Logger); err != nil {
			return errors.WithMessage(err, "create logger failed")
		}
	}

	db, err := database.NewDBWithOptions(&options.Database)
	if err != nil {
		return errors.WithMessage(err, "create database failed")
	}
	if c, ok := db.(io.Closer); ok {
		defer c.Close()
	}

	r := reflector.NewMySQLTableReflector(db, &options.Reflector)
	r.SetLogger(l)
	src, err := r.Source(ctx, options.Tables)
	if err != nil {
		return err
	}

	if options.Output == "" {
		_, err := io.WriteString(stdout, src)
		return errors.Wrap(err, "write source failed")
	}
	if err := os.WriteFile(options.Output, []byte(src), 0644); err != nil {
		return errors.Wrapf(err, "write %s failed", options.Output)
	}
	l.InfoContext(ctx, "generated", "output", options.Output, "tables", len(options.Tables))
	return nil
}

// watchReflect 先生成一次，配置文件变化时重新加载并生成，直到收到中断信号
func watchReflect(cmd *cobra.Command, flags *reflectFlags, options *ReflectOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if err := runReflect(ctx, options, cmd.OutOrStdout()); err != nil {
		return err
	}

	w, err := cfg.NewWatcher(flags.config)
	if err != nil {
		return err
	}
	defer w.Close()
	w.OnChange(func() error {
		options, err := loadReflectOptions(flags)
		if err != nil {
			return err
		}
		return runReflect(ctx, options, cmd.OutOrStdout())
	})
	w.Start()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-w.Errors():
			log.Default().ErrorContext(ctx, "reflect failed", "error", err)
		}
	}
}
