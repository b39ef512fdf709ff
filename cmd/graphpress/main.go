package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hanpama/graphpress/internal/auth"
	"github.com/hanpama/graphpress/internal/config"
	"github.com/hanpama/graphpress/internal/eventbus"
	"github.com/hanpama/graphpress/internal/graph"
	"github.com/hanpama/graphpress/internal/language"
	"github.com/hanpama/graphpress/internal/logging"
	"github.com/hanpama/graphpress/internal/metrics"
	"github.com/hanpama/graphpress/internal/otel"
	"github.com/hanpama/graphpress/internal/schema"
	"github.com/hanpama/graphpress/internal/server"
	"github.com/hanpama/graphpress/internal/store"
)

const rootUsage = `graphpress: GraphQL API for users, posts and comments on Postgres

USAGE:
  graphpress <command> [flags]

COMMANDS:
  serve            Run the HTTP GraphQL server
  print-schema     Print the executable GraphQL schema
  migrate          Create the database tables
  help             Show help for any command
`

const serveUsage = `serve FLAGS:
  -server.addr <addr>              HTTP listen address (default: :$PORT or :3000)
  -server.pretty                   Pretty-print JSON responses
  -server.timeout <duration>       Per-request timeout (default: $REQUEST_TIMEOUT or 30s)
  -server.max-body <bytes>         Request body limit (default: $MAX_BODY_BYTES or 1MiB)
  -graphql.introspection <bool>    Enable GraphQL introspection (default: $INTROSPECTION or true)
  -graphql.query-cache <n>         Parsed query cache entries, 0 disables (default: 256)
  -db.url <url>                    Postgres URL (default: $DATABASE_URL)
  -db.migrate                      Create missing tables before serving
  -otel.endpoint <addr>            OTLP collector endpoint
  -otel.service <name>             OpenTelemetry service name (default: graphpress)
JWT_SECRET must be set.
`

const printSchemaUsage = `print-schema FLAGS:
  -out <file>    Write the schema to file (default: stdout)
`

const migrateUsage = `migrate FLAGS:
  -db.url <url>  Postgres URL (default: $DATABASE_URL)
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		logging.NewLogger().WithError(err).Fatal("graphpress failed")
	}
}

func run(args []string, stdout io.Writer) error {
	global := flag.NewFlagSet("graphpress", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer))
	if err := global.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "serve":
		return cmdServe(cmdArgs)
	case "print-schema":
		return cmdPrintSchema(cmdArgs, stdout)
	case "migrate":
		return cmdMigrate(cmdArgs)
	case "help":
		return cmdHelp(cmdArgs, stdout)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Fprint(stdout, serveUsage)
	case "print-schema":
		fmt.Fprint(stdout, printSchemaUsage)
	case "migrate":
		fmt.Fprint(stdout, migrateUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

func cmdServe(args []string) error {
	logger := logging.NewLoggerWithService("graphpress")
	config.LoadEnv(logger)
	cfg := config.Load()

	addr := ":" + cfg.Port
	pretty := false
	migrate := false
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&addr, "server.addr", addr, "HTTP listen address")
	fs.BoolVar(&pretty, "server.pretty", pretty, "Pretty-print JSON responses")
	fs.DurationVar(&cfg.RequestTimeout, "server.timeout", cfg.RequestTimeout, "Per-request timeout")
	fs.Int64Var(&cfg.MaxBodyBytes, "server.max-body", cfg.MaxBodyBytes, "Request body limit")
	fs.BoolVar(&cfg.Introspection, "graphql.introspection", cfg.Introspection, "Enable GraphQL introspection")
	fs.IntVar(&cfg.QueryCacheSize, "graphql.query-cache", cfg.QueryCacheSize, "Parsed query cache entries")
	fs.StringVar(&cfg.DatabaseURL, "db.url", cfg.DatabaseURL, "Postgres URL")
	fs.BoolVar(&migrate, "db.migrate", migrate, "Create missing tables before serving")
	fs.StringVar(&cfg.OTelEndpoint, "otel.endpoint", cfg.OTelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&cfg.OTelService, "otel.service", cfg.OTelService, "OpenTelemetry service name")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return err
	}
	if cfg.JWTSecret == "" {
		fmt.Fprint(os.Stderr, serveUsage)
		return fmt.Errorf("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()
	if migrate {
		if err := st.Migrate(ctx); err != nil {
			return err
		}
	}

	bus := eventbus.New()
	eventbus.Use(bus)
	m := metrics.New()
	defer m.Subscribe(bus)()
	shutdown, err := otel.Setup(cfg.OTelEndpoint, cfg.OTelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	sch, err := graph.Schema()
	if err != nil {
		return err
	}
	vs, err := language.LoadSchema("schema.graphql", graph.SDL())
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}

	svc := graph.NewService(st, auth.NewSigner(cfg.JWTSecret, cfg.JWTTTL), logger)
	sopts := []server.Option{
		server.WithLogger(logger),
		server.WithValidation(vs),
		server.WithIntrospection(cfg.Introspection),
		server.WithQueryCacheSize(cfg.QueryCacheSize),
		server.WithMaxBodyBytes(cfg.MaxBodyBytes),
	}
	if pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if cfg.RequestTimeout > 0 {
		sopts = append(sopts, server.WithTimeout(cfg.RequestTimeout))
	}
	h, err := server.New(svc.Runtime, sch, sopts...)
	if err != nil {
		return fmt.Errorf("server init: %w", err)
	}

	srv := &http.Server{
		Addr: addr,
		Handler: server.NewRouter(h, server.RouterConfig{
			AllowedOrigins: cfg.AllowedOrigins,
			Metrics:        m.Handler(),
			Health:         st.Ping,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.WithField("addr", addr).Info("GraphQL server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func cmdPrintSchema(args []string, stdout io.Writer) error {
	outFile := ""
	fs := flag.NewFlagSet("print-schema", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&outFile, "out", outFile, "Write the schema to file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, printSchemaUsage)
		return err
	}

	sch, err := graph.Schema()
	if err != nil {
		return err
	}
	sdl := schema.Render(sch)
	if outFile == "" {
		fmt.Fprint(stdout, sdl)
		return nil
	}
	return os.WriteFile(outFile, []byte(sdl), 0644)
}

func cmdMigrate(args []string) error {
	logger := logging.NewLoggerWithService("graphpress")
	config.LoadEnv(logger)
	cfg := config.Load()

	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&cfg.DatabaseURL, "db.url", cfg.DatabaseURL, "Postgres URL")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, migrateUsage)
		return err
	}

	ctx := context.Background()
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("tables created")
	return nil
}

func openStore(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*store.Store, error) {
	return store.Open(ctx, store.Config{
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	}, logger)
}
