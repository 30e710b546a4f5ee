package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"escritos/internal/app"
	"escritos/internal/artifacts"
	"escritos/internal/docx"
	"escritos/internal/escritos"
	"escritos/internal/output"
	"escritos/internal/schema"
	"escritos/internal/tui"
	u "escritos/internal/utils"
)

func main() {
	if err := execute(os.Args[1:]); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func execute(args []string) error {
	root := newRootCmd()
	root.SetArgs(args)
	return root.Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "escritos",
		Short: "Generador de Escritos PJUD",
		Long: `Genera escritos judiciales a partir de plantillas .docx.
Cada escrito se guarda como .docx y .pdf en <output>/<rit|nombre|escrito>/.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	addPersistentFlags(root)
	root.AddCommand(serveCmd(), generateCmd(), typesCmd())
	return root
}

func initConfig() {
	viper.SetEnvPrefix("ESCRITOS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags(root *cobra.Command) {
	root.PersistentFlags().String("config", "", "config file (default $CONFIG_PATH or config.yaml)")
	root.PersistentFlags().String("templates", "", "directory with the .docx templates")
	root.PersistentFlags().String("output", "", "output root (default ~/Documents/EscritosPJUD)")
	root.PersistentFlags().String("schemas", "", "YAML file replacing the built-in document types")
	root.PersistentFlags().Bool("json", false, "output JSON")
	for _, name := range []string{"config", "templates", "output", "schemas", "json"} {
		_ = viper.BindPFlag(name, root.PersistentFlags().Lookup(name))
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web form and JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	cmd.Flags().String("port", "", "listen port, e.g. :8501")
	_ = viper.BindPFlag("port", cmd.Flags().Lookup("port"))
	return cmd
}

func generateCmd() *cobra.Command {
	var docType string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Fill in an escrito from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			gen, err := newGenerator(cfg, nil)
			if err != nil {
				return err
			}
			s := &tui.Session{Generator: gen, Driver: tui.NewSurveyDriver(), Out: cmd.OutOrStdout()}
			_, err = s.Run(cmd.Context(), docType)
			if errors.Is(err, tui.ErrAborted) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&docType, "tipo", "", "document type; asked for when empty")
	return cmd
}

func typesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the document types and their fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			reg, err := loadRegistry(cfg)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(reg.All())
			}
			tui.PrintTypes(cmd.OutOrStdout(), reg)
			return nil
		},
	}
}

// loadConfig reads the YAML config and applies flag and ESCRITOS_* env
// overrides, then configures the logger.
func loadConfig() u.Config {
	path := viper.GetString("config")
	if path == "" {
		path = u.ConfigPath()
	}
	cfg := u.LoadFrom(path)

	if v := viper.GetString("templates"); v != "" {
		cfg.Templates.Dir = v
	}
	if v := viper.GetString("output"); v != "" {
		cfg.Output.Root = v
	}
	if v := viper.GetString("schemas"); v != "" {
		cfg.Schemas.File = v
	}
	if v := viper.GetString("port"); v != "" {
		cfg.Server.Port = v
	}
	u.AppConfig = cfg

	u.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)
	return cfg
}

func loadRegistry(cfg u.Config) (*schema.Registry, error) {
	if cfg.Schemas.File == "" {
		return schema.Default(), nil
	}
	return schema.LoadFile(cfg.Schemas.File)
}

func newGenerator(cfg u.Config, store *artifacts.Store) (*escritos.Generator, error) {
	reg, err := loadRegistry(cfg)
	if err != nil {
		return nil, err
	}
	return escritos.New(reg, docx.NewRenderer(cfg.Templates.Dir), output.NewWriter(cfg.Output.Root), store), nil
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := loadConfig()

	var rdb *redis.Client
	if cfg.Cache.RedisHost != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.ArtifactsDB,
		})
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	store := artifacts.Connect(pingCtx, rdb, cfg.Artifacts.TTL)
	cancel()
	defer store.Close()

	gen, err := newGenerator(cfg, store)
	if err != nil {
		return err
	}

	idleConnsClosed := make(chan struct{})
	u.LoadTokensFromMap(cfg.Auth.Tokens)
	if path := configFile(); path != "" {
		go u.RefreshTokensPeriodically(path, time.Minute, idleConnsClosed)
	}

	app := app.SetupApp(cfg, gen)
	u.Info("Serving escritos", "addr", cfg.Server.Host+cfg.Server.Port, "templates", cfg.Templates.Dir, "output", cfg.Output.Root)

	startServer(app, cfg, idleConnsClosed)
	<-idleConnsClosed
	return nil
}

// configFile returns the config path when the file exists.
func configFile() string {
	path := viper.GetString("config")
	if path == "" {
		path = u.ConfigPath()
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// startServer starts the Fiber app and listens for shutdown signals
func startServer(app *fiber.App, cfg u.Config, idleConnsClosed chan struct{}) {
	go func() {
		if err := app.Listen(cfg.Server.Host + cfg.Server.Port); err != nil {
			u.Error("Server error", "error", err)
		}
	}()

	// Listen for OS termination signals
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	<-sigint
	signal.Stop(sigint)

	u.Warn("Shutdown signal received, closing server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		u.Error("Server forced to shutdown", "error", err)
	}

	close(idleConnsClosed)
	u.Info("Server stopped cleanly")
}
