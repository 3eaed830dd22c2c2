// Package main is the lanpaste daemon entrypoint: a single "serve"
// command that bootstraps the git repository, acquires the daemon lock
// and starts the HTTP server. Grounded on the teacher's cmd/main.go:
// same go-flags parsing, same lgr logger setup, same signal-driven
// graceful shutdown, generalized from go-pb's web/db/auth option groups
// to the single serve command spec.md §6 describes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/zhengpenghou/lanpaste/internal/admission"
	"github.com/zhengpenghou/lanpaste/internal/apikeys"
	"github.com/zhengpenghou/lanpaste/internal/config"
	"github.com/zhengpenghou/lanpaste/internal/httpapi"
	"github.com/zhengpenghou/lanpaste/internal/idempotency"
	"github.com/zhengpenghou/lanpaste/internal/lock"
	"github.com/zhengpenghou/lanpaste/internal/ratelimit"
	"github.com/zhengpenghou/lanpaste/internal/store"
)

var version = `¯\_(ツ)_/¯`

func main() {
	fmt.Printf("lanpaste %s\n", version)

	var opts config.Options
	p := flags.NewParser(&opts, flags.PrintErrors|flags.PassDoubleDash|flags.HelpFlag)
	if _, err := p.Parse(); err != nil {
		if fe, ok := err.(*flags.Error); !ok || fe.Type != flags.ErrHelp {
			fmt.Printf("[ERROR] cli error: %v\n", err)
		}
		os.Exit(2)
	}

	log := setupLog(opts.Debug)

	if err := run(log, opts); err != nil {
		log.Logf("ERROR %v", err)
		os.Exit(1)
	}
}

func run(log *lgr.Logger, opts config.Options) error {
	paths := store.PathsFromBase(opts.Dir)
	if err := os.MkdirAll(paths.Run, 0o755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}

	daemonLock, err := lock.Acquire(paths.Run + string(os.PathSeparator) + "daemon.lock")
	if err != nil {
		return fmt.Errorf("acquire daemon lock: %w", err)
	}
	defer daemonLock.Release()

	st, err := store.Open(store.Options{
		BaseDir:  opts.Dir,
		Identity: store.Identity{Name: opts.GitAuthorName, Email: opts.GitAuthorEmail},
		Push:     opts.PushMode(),
		Remote:   opts.Remote,
	})
	if err != nil {
		return fmt.Errorf("open repository store: %w", err)
	}

	keys, err := apikeys.Load(opts.APIKeysFile)
	if err != nil {
		return fmt.Errorf("load api keys file: %w", err)
	}

	limiter := ratelimit.New()
	for _, entry := range keys.Entries() {
		limiter.Configure(apikeys.PrincipalID(entry), entry.MaxRequestsPerMinute)
	}

	allowCIDR, err := admission.ParseCIDRList(opts.AllowCIDR)
	if err != nil {
		return fmt.Errorf("parse --allow-cidr: %w", err)
	}

	gate := &admission.Gate{
		AllowCIDR: allowCIDR,
		Token:     opts.Token,
		Keys:      keys,
		Limiter:   limiter,
	}

	idem, err := idempotency.New(idempotency.MinEntries)
	if err != nil {
		return fmt.Errorf("create idempotency cache: %w", err)
	}

	server, err := httpapi.New(log, st, gate, idem, httpapi.ServerOptions{
		Addr:         opts.Bind,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
		LogMode:      opts.LogMode,
		MaxBytes:     opts.MaxBytes,
	})
	if err != nil {
		return fmt.Errorf("build http server: %w", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	errc := make(chan error, 1)

	go func() {
		log.Logf("INFO listening on %s", opts.Bind)
		errc <- server.ListenAndServe()
	}()

	select {
	case <-quit:
		log.Logf("INFO shutting down ...")
	case err := <-errc:
		log.Logf("ERROR startup failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Logf("INFO server forced to shutdown: %v", err)
	} else {
		log.Logf("INFO server is down")
	}
	return nil
}

func setupLog(dbg bool) *lgr.Logger {
	if dbg {
		return lgr.New(lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces)
	}
	return lgr.New()
}
