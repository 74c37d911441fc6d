package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/user/project-bot/internal/bot"
	"github.com/user/project-bot/internal/commands"
	"github.com/user/project-bot/internal/httpclient"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bot and serve Telegram updates until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.TelegramToken == "" {
			return errors.New("TELEGRAM_BOT_TOKEN is required")
		}

		manager, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer manager.Close()

		b, err := bot.New(cfg.TelegramToken, commands.ManagerStores(manager), bot.Options{
			HTTP: httpclient.Config{
				Timeout:          cfg.HTTP.Timeout,
				RetryCount:       cfg.HTTP.RetryCount,
				RetryWaitTime:    cfg.HTTP.RetryWaitTime,
				MaxRetryWaitTime: cfg.HTTP.MaxRetryWaitTime,
			},
			Invites: commands.InviteDefaults{
				TTL:     cfg.Invites.TTL,
				MaxUses: cfg.Invites.MaxUses,
			},
			Logger: logger,
		})
		if err != nil {
			return err
		}

		if err := b.Start(); err != nil {
			return err
		}

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		logger.Info("shutting down bot")
		b.Stop()
		logger.Info("bot stopped")
		return nil
	},
}
