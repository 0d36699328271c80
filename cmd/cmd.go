package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/webitel/im-realtime-client/config"
	"github.com/webitel/im-realtime-client/internal/adapter/api"
	"github.com/webitel/im-realtime-client/internal/adapter/store"
	"github.com/webitel/im-realtime-client/internal/domain/model"
)

const (
	ServiceName      = "im-realtime-client"
	ServiceNamespace = "webitel"
)

var (
	version        = "0.0.0"
	commit         = "hash"
	commitDate     = time.Now().String()
	branch         = "branch"
	buildTimestamp = ""
)

func Run() error {
	app := &cli.App{
		Name:    ServiceName,
		Usage:   "Realtime event channel client for passenger and merchant apps",
		Version: fmt.Sprintf("%s (%s@%s, %s %s)", version, branch, commit, commitDate, buildTimestamp),
		Commands: []*cli.Command{
			agentCmd(),
			identityCmd(),
			rideCmd(),
		},
	}

	return app.Run(os.Args)
}

func agentCmd() *cli.Command {
	return &cli.Command{
		Name:    "agent",
		Aliases: []string{"a"},
		Usage:   "Hold the role connection and serve the local control surface",
		// Everything after the command name is handed to config.LoadConfig.
		SkipFlagParsing: true,
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.Args().Slice())
			if err != nil {
				return err
			}
			app := NewApp(cfg)

			if err := app.Start(c.Context); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			slog.Info("Shutting down...")
			return app.Stop(context.Background())
		},
	}
}

var configFileFlag = &cli.StringFlag{
	Name:  "config_file",
	Usage: "Path to the configuration file",
}

// loadConfig resolves the configuration for one-shot commands.
func loadConfig(c *cli.Context) (*config.Config, *slog.Logger, error) {
	var args []string
	if path := c.String(configFileFlag.Name); path != "" {
		args = append(args, "--config_file", path)
	}
	cfg, err := config.LoadConfig(args)
	if err != nil {
		return nil, nil, err
	}
	return cfg, newLogger(cfg.Log), nil
}

func withIdentityStore(c *cli.Context, fn func(*store.IdentityStore) error) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	kv, err := store.New(cfg.Store, logger)
	if err != nil {
		return err
	}
	defer kv.Close()
	return fn(store.NewIdentityStore(kv))
}

func identityCmd() *cli.Command {
	return &cli.Command{
		Name:  "identity",
		Usage: "Manage the principal kept in the secure store",
		Flags: []cli.Flag{configFileFlag},
		Subcommands: []*cli.Command{
			{
				Name:  "set",
				Usage: "Save the principal announced by whoami",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "role", Required: true, Usage: "passenger or merchant"},
					&cli.StringFlag{Name: "principal-id", Required: true},
					&cli.StringFlag{Name: "business-id"},
				},
				Action: func(c *cli.Context) error {
					role, err := model.ParseRole(c.String("role"))
					if err != nil {
						return err
					}
					id := model.Identity{
						Role:        role,
						PrincipalID: c.String("principal-id"),
						BusinessID:  c.String("business-id"),
					}
					return withIdentityStore(c, func(s *store.IdentityStore) error {
						return s.Save(c.Context, id)
					})
				},
			},
			{
				Name:  "show",
				Usage: "Print the saved principal",
				Action: func(c *cli.Context) error {
					return withIdentityStore(c, func(s *store.IdentityStore) error {
						id, err := s.Load(c.Context)
						if errors.Is(err, store.ErrNotFound) {
							return cli.Exit("no identity saved", 1)
						}
						if err != nil {
							return err
						}
						return printJSON(c, id)
					})
				},
			},
			{
				Name:  "clear",
				Usage: "Forget the saved principal",
				Action: func(c *cli.Context) error {
					return withIdentityStore(c, func(s *store.IdentityStore) error {
						return s.Clear(c.Context)
					})
				},
			},
		},
	}
}

func rideCmd() *cli.Command {
	return &cli.Command{
		Name:  "ride",
		Usage: "Query the ride API",
		Flags: []cli.Flag{configFileFlag},
		Subcommands: []*cli.Command{
			{
				Name:  "current",
				Usage: "Print the passenger's active ride",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "passenger-id", Required: true},
				},
				Action: func(c *cli.Context) error {
					cfg, logger, err := loadConfig(c)
					if err != nil {
						return err
					}
					client, err := api.New(cfg.API, logger)
					if err != nil {
						return err
					}
					defer client.Close()

					ride, err := client.CurrentRide(c.Context, c.String("passenger-id"))
					if errors.Is(err, api.ErrNoCurrentRide) {
						return cli.Exit("no current ride", 1)
					}
					if err != nil {
						return err
					}
					return printJSON(c, ride.Raw)
				},
			},
		},
	}
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
