package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"github.com/tazhate/calbridge/config"
	"github.com/tazhate/calbridge/internal/api"
	"github.com/tazhate/calbridge/internal/bot"
	"github.com/tazhate/calbridge/internal/clients/google"
	"github.com/tazhate/calbridge/internal/pluginerr"
	"github.com/tazhate/calbridge/internal/prompt"
	"github.com/tazhate/calbridge/internal/scheduler"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "calbridge",
		Usage: "Calendar and reminders commands over HTTP, Telegram and MCP.",
		Commands: []*cli.Command{
			serveCommand(),
			callCommand(),
			commandsCommand(),
			googleAuthCommand(),
			resetPermissionsCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("calbridge failed", "error", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, setupLogger(cfg.LogLevel), nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API, the Telegram bot and the alarm scheduler.",
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()

			var (
				tgBot     *bot.Bot
				presenter prompt.Presenter
			)
			if cfg.TelegramEnabled() {
				tgBot, err = bot.New(cfg.TelegramToken, bot.Options{
					OwnerID:      cfg.OwnerTelegramID,
					CalendarURL:  cfg.CalendarWebURL,
					RemindersURL: cfg.RemindersWebURL,
					Location:     cfg.Timezone,
					Logger:       logger,
				})
				if err != nil {
					return fmt.Errorf("init bot: %w", err)
				}
				presenter = tgBot
			} else {
				logger.Info("telegram disabled, prompts are unavailable")
			}

			a, err := newApp(ctx, cfg, logger, presenter)
			if err != nil {
				return err
			}
			defer a.Close()

			srvCfg := api.Config{
				Addr:     ":" + cfg.ServerPort,
				Username: cfg.APIUsername,
				Password: cfg.APIPassword,
			}
			if tgBot != nil {
				tgBot.SetCaller(a.dispatcher)
				if cfg.WebhookURL != "" {
					srvCfg.Webhook = tgBot.WebhookHandler()
				}
			}
			if !cfg.APIAuthEnabled() {
				logger.Warn("API_USERNAME/API_PASSWORD not set, the HTTP API is unauthenticated")
			}
			server := api.New(a.dispatcher, srvCfg, logger)

			errCh := make(chan error, 2)
			go func() {
				if err := server.Start(ctx); err != nil {
					errCh <- fmt.Errorf("http server: %w", err)
				}
			}()

			if tgBot != nil {
				if cfg.WebhookURL != "" {
					if err := tgBot.SetupWebhook(cfg.WebhookURL); err != nil {
						return fmt.Errorf("setup webhook: %w", err)
					}
				} else {
					go func() {
						if err := tgBot.Poll(ctx); err != nil {
							errCh <- fmt.Errorf("telegram polling: %w", err)
						}
					}()
				}
			}

			var sched *scheduler.Scheduler
			if cfg.Backend == config.BackendSQLite && tgBot != nil {
				sched = scheduler.New(a.db, cfg.Timezone, logger)
				sched.SetNotifier(tgBot)
				go func() {
					if err := sched.Start(ctx); err != nil {
						logger.Error("scheduler", "error", err)
					}
				}()
			}

			logger.Info("calbridge started", "backend", cfg.Backend, "port", cfg.ServerPort)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			var runErr error
			select {
			case <-sigCh:
			case runErr = <-errCh:
			}

			logger.Info("shutting down")
			cancel()
			if sched != nil {
				sched.Stop()
			}
			if tgBot != nil {
				tgBot.CancelAll()
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := server.Stop(shutdownCtx); err != nil {
				logger.Error("stop http server", "error", err)
			}

			logger.Info("calbridge stopped")
			return runErr
		},
	}
}

func callCommand() *cli.Command {
	return &cli.Command{
		Name:      "call",
		Usage:     "Run one command in-process and print its JSON result.",
		ArgsUsage: "<command> [options-json]",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.Exit("usage: calbridge call <command> [options-json]", 2)
			}
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(c.Context, cfg, logger, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			options, err := parseOptions(c.Args().Get(1))
			if err != nil {
				pe := pluginerr.New(pluginerr.InvalidKey, c.Args().First(), "options")
				writeJSON(os.Stdout, pe.Payload())
				return cli.Exit("", 1)
			}

			out, err := a.dispatcher.Call(c.Context, c.Args().First(), options)
			if err != nil {
				writeJSON(os.Stdout, pluginerr.FromError(err, c.Args().First()).Payload())
				return cli.Exit("", 1)
			}
			return writeJSON(os.Stdout, out)
		},
	}
}

// parseOptions decodes the options object; an empty argument is {}.
func parseOptions(raw string) (map[string]any, error) {
	options := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return options, nil
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&options); err != nil {
		return nil, err
	}
	if options == nil {
		return nil, errors.New("options must be an object")
	}
	return options, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func commandsCommand() *cli.Command {
	return &cli.Command{
		Name:  "commands",
		Usage: "Print the commands the configured backend supports.",
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(c.Context, cfg, logger, nil)
			if err != nil {
				return err
			}
			defer a.Close()
			return writeJSON(os.Stdout, a.dispatcher.Catalog())
		},
	}
}

func googleAuthCommand() *cli.Command {
	return &cli.Command{
		Name:  "google-auth",
		Usage: "Authorize a Google account and save its API token.",
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			logger.Info("starting google authentication flow")

			oauthCfg, err := google.OAuthConfig(cfg.GoogleCredentialsFile)
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := oauthCfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			authCode, _ := bufio.NewReader(os.Stdin).ReadString('\n')
			authCode = strings.TrimSpace(authCode)
			if authCode == "" {
				return errors.New("no authorization code given")
			}

			token, err := oauthCfg.Exchange(c.Context, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}
			if err := google.SaveToken(cfg.GoogleTokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("saved google token", "file", cfg.GoogleTokenFile)
			return nil
		},
	}
}

func resetPermissionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "reset-permissions",
		Usage: "Forget every stored grant and refusal.",
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(c.Context, cfg, logger, nil)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.db.ResetPermissions(c.Context); err != nil {
				return fmt.Errorf("reset permissions: %w", err)
			}
			logger.Info("permissions reset")
			return nil
		},
	}
}
