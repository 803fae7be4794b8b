package main

import (
	"context"

	"github.com/mrlobot/discord-bot/pkg/database"
	"github.com/mrlobot/discord-bot/pkg/discord"
	fxmodules "github.com/mrlobot/discord-bot/pkg/fx"
	"github.com/mrlobot/discord-bot/pkg/logger"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.NopLogger,
		fx.Invoke(runBot),
	).Run()
}

func runBot(lc fx.Lifecycle, bot *discord.Bot, db *gorm.DB) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := bot.Start(); err != nil {
				logger.Error("Failed to start Discord bot: %v", err)
				return err
			}
			logger.Info("Bot is running. Press CTRL-C to exit")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down bot...")
			if err := bot.Stop(); err != nil {
				logger.Error("Error stopping bot: %v", err)
			}
			if err := database.Close(db); err != nil {
				logger.Warn("Error closing database connection: %v", err)
			}
			return nil
		},
	})
}
