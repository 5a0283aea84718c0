package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/flatload/internal/config"
	"github.com/JonMunkholm/flatload/internal/export"
	"github.com/JonMunkholm/flatload/internal/loader"
	"github.com/JonMunkholm/flatload/internal/profile"
	"github.com/JonMunkholm/flatload/internal/shell"
	"github.com/JonMunkholm/flatload/internal/web"
)

func runPreview(ctx context.Context, cfg *config.Config, args []string) error {
	pf := newParserFlags("preview")
	limit := pf.fs.Int("n", 20, "rows to show")
	asJSON := pf.fs.Bool("json", false, "print rows as JSON arrays")
	pos, err := pf.parse(args, "FILE")
	if err != nil {
		return err
	}

	p, _, err := pf.open(cfg, pos[0])
	if err != nil {
		return err
	}
	defer p.Dispose()

	var rows [][]string
	for len(rows) < *limit {
		ok, err := p.Read()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		rows = append(rows, p.Fields())
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		for _, row := range rows {
			if err := enc.Encode(row); err != nil {
				return err
			}
		}
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if p.HeaderFound() {
		fmt.Fprintln(tw, strings.Join(p.ColumnNames(), "\t"))
	}
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func runLoad(ctx context.Context, cfg *config.Config, args []string) error {
	pf := newParserFlags("load")
	pos, err := pf.parse(args, "TABLE", "FILE")
	if err != nil {
		return err
	}

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	p, src, err := pf.open(cfg, pos[1])
	if err != nil {
		return err
	}
	defer p.Dispose()

	ctx, cancel := context.WithTimeout(ctx, cfg.Load.Timeout)
	defer cancel()

	ld := loader.New(pool, loader.Options{
		Schema:        cfg.Load.Schema,
		BatchSize:     cfg.Load.BatchSize,
		MaxConcurrent: 1,
		MaxWait:       cfg.Load.MaxWaitTime,
	})
	result, err := ld.Load(ctx, pos[0], p, func(pr loader.Progress) {
		slog.Info("load progress", "phase", pr.Phase, "rows", pr.Rows, "percent", src.Progress())
	})
	if err != nil {
		return err
	}

	fmt.Printf("loaded %d rows into %s.%s (load_id %s) in %s\n",
		result.Rows, cfg.Load.Schema, result.Table, result.LoadID, result.Duration.Round(time.Millisecond))
	return nil
}

func runExport(ctx context.Context, cfg *config.Config, args []string) error {
	pf := newParserFlags("export")
	batch := pf.fs.Int("batch", export.DefaultBatchSize, "rows per record batch")
	pos, err := pf.parse(args, "FILE", "OUT.parquet")
	if err != nil {
		return err
	}

	p, _, err := pf.open(cfg, pos[0])
	if err != nil {
		return err
	}
	defer p.Dispose()

	out, err := os.Create(pos[1])
	if err != nil {
		return err
	}
	defer out.Close()

	opts := export.DefaultOptions()
	opts.BatchSize = *batch
	n, err := export.WriteParquet(ctx, out, p, opts)
	if err != nil {
		os.Remove(pos[1])
		return err
	}
	slog.Info("export complete", "rows", n, "file", pos[1])
	return nil
}

func runProfile(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: flatload profile save|show ...", errUsage)
	}

	switch args[0] {
	case "save":
		pf := newParserFlags("profile save")
		pos, err := pf.parse(args[1:], "OUT.yaml")
		if err != nil {
			return err
		}
		pcfg, err := pf.config(cfg)
		if err != nil {
			return err
		}
		return profile.SaveFile(pos[0], pcfg)

	case "show":
		if len(args) != 2 {
			return fmt.Errorf("%w: flatload profile show PROFILE.yaml", errUsage)
		}
		pcfg, err := profile.LoadFile(args[1])
		if err != nil {
			return err
		}
		return profile.Save(os.Stdout, pcfg)

	default:
		return fmt.Errorf("%w: unknown profile command %q", errUsage, args[0])
	}
}

func runServe(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", cfg.Server.Addr(), "listen address")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	var ld *loader.Loader
	if cfg.Database.URL != "" {
		pool, err := openPool(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		ld = loader.New(pool, loader.Options{
			Schema:        cfg.Load.Schema,
			BatchSize:     cfg.Load.BatchSize,
			MaxConcurrent: cfg.Load.MaxConcurrent,
			MaxWait:       cfg.Load.MaxWaitTime,
		})
	} else {
		slog.Warn("DATABASE_URL not set; load endpoints are disabled")
	}

	server := web.NewServer(cfg, ld)

	go func() {
		<-ctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(*addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("server stopped")
	return nil
}

func runShell(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: flatload shell", errUsage)
	}
	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	return shell.New(pool, os.Stdin, os.Stdout).Run(ctx)
}

// openPool connects to PostgreSQL with the configured pool settings.
func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}
	return pool, nil
}
