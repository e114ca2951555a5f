// Command protogate runs the HTTP to bus gateway.
//
// Usage:
//
//	protogate [-config App.yaml]
//	protogate token -issuer iam.example.org -secret $SECRET -account 12345.example.org
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/drblury/protogate/internal/runtime"
	"github.com/drblury/protogate/internal/runtime/auth"
	"github.com/drblury/protogate/internal/runtime/config"
	"github.com/drblury/protogate/internal/runtime/identity"
	"github.com/drblury/protogate/internal/runtime/logging"
)

var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) > 0 && args[0] == "token" {
		return runToken(args[1:], stdout)
	}
	return runServe(ctx, args, stdout)
}

func runServe(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("protogate", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultPath, "path to the YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(stdout, cfg.Logging.Format, cfg.Logging.Level)
	if err != nil {
		return err
	}
	logger.Info("Starting protogate", logging.LogFields{"version": version, "config_path": *configPath})

	svc, err := runtime.TryNewService(ctx, cfg, logger, runtime.ServiceDependencies{})
	if err != nil {
		return err
	}

	if err := svc.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("protogate stopped", nil)
	return nil
}

// runToken prints an HS256 bearer token for local testing.
func runToken(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	issuer := fs.String("issuer", "", "token issuer, as configured under authn")
	secret := fs.String("secret", "", "HS256 shared secret of the issuer")
	account := fs.String("account", "", "caller account, label.audience")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *issuer == "" || *secret == "" {
		return errors.New("token: -issuer and -secret are required")
	}
	id, err := identity.ParseAccountID(*account)
	if err != nil {
		return fmt.Errorf("token: -account: %w", err)
	}

	token, err := auth.SignHS256([]byte(*secret), *issuer, id, *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, token)
	return err
}
