// Command authd serves the authcore HTTP API and carries the operational
// subcommands around it.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrEthical07/authcore/cmd/authd/internal/commands"
	"github.com/alecthomas/kong"
)

var (
	version = "dev"
	cli     struct {
		Dev     bool             `help:"Enable dev mode: console logs, ephemeral key, embedded redis." env:"AUTHCORE_DEV"`
		Config  string           `help:"Path to a config file." type:"path" env:"AUTHCORE_CONFIG"`
		Version kong.VersionFlag `help:"Print version."`

		Serve        commands.ServeCmd        `cmd:"" default:"1" help:"Start the HTTP API."`
		Migrate      commands.MigrateCmd      `cmd:"" help:"Apply database migrations."`
		HashPassword commands.HashPasswordCmd `cmd:"" help:"Print an Argon2id hash for seeding users."`
		GenTOTP      commands.GenTOTPCmd      `cmd:"" name:"gen-totp" help:"Generate a TOTP secret or print the current code for one."`
		Loadtest     commands.LoadtestCmd     `cmd:"" help:"Measure authenticate and refresh throughput."`
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("authd"),
		kong.Description("Session authentication and admission control."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Dev: cli.Dev, Config: cli.Config, Version: version})
	cmd.FatalIfErrorf(err)
}
