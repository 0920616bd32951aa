package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/cofrapauth/internal/cli"
	"github.com/dmitrijs2005/cofrapauth/internal/logging"
	"github.com/dmitrijs2005/cofrapauth/internal/server"
	"github.com/dmitrijs2005/cofrapauth/internal/server/config"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		if !errors.Is(err, cli.ErrRejected) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	global, command := cli.SplitArgs(args)

	if !cli.NeedsCore(command) {
		return cli.NewApp(nil, nil, nil, 0, os.Stdin, os.Stdout).Run(ctx, command)
	}

	cfg, err := config.LoadConfig(global)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogBackend, cfg.LogLevel, "console")
	if err != nil {
		return err
	}
	if z, ok := logger.(*logging.ZapLogger); ok {
		defer func() { _ = z.Sync() }()
	}

	core, err := server.NewCore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer core.Close()

	app := cli.NewApp(core.Provisioning, core.Enrollment, core.Authenticator, cfg.QRCodeSize, os.Stdin, os.Stdout)
	return app.Run(ctx, command)
}
