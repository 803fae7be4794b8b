package fx

import (
	"github.com/mrlobot/discord-bot/pkg/config"
	"github.com/mrlobot/discord-bot/pkg/database"
	"github.com/mrlobot/discord-bot/pkg/discord"
	"github.com/mrlobot/discord-bot/pkg/jobs"
	"github.com/mrlobot/discord-bot/pkg/logger"
	"github.com/mrlobot/discord-bot/pkg/registry"
	"github.com/mrlobot/discord-bot/pkg/repositories"
	"github.com/mrlobot/discord-bot/pkg/services"
	"github.com/mrlobot/discord-bot/pkg/storage"
	"github.com/mrlobot/discord-bot/pkg/swgoh"
	"github.com/mrlobot/discord-bot/pkg/units"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func SetLogLevel(cfg *config.Config) {
	logger.SetLevel(cfg.LogLevel)
}

func ProvideDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, err
	}
	return db, nil
}

func ProvideSwgohClient(cfg *config.Config) *swgoh.Client {
	return swgoh.NewClient(cfg.SwgohAPIURL, cfg.HTTPTimeout)
}

func ProvideStorageClient(cfg *config.Config) *storage.Client {
	return storage.NewClient(cfg.StorageEndpoint, cfg.HTTPTimeout)
}

func ProvideRegistry(store *storage.Client) *registry.Cache {
	return registry.New(store)
}

func ProvideCatalog() *units.Catalog {
	return &units.Catalog{}
}

func ProvideSheetService(
	catalog *units.Catalog,
	guilds *registry.Cache,
	stats *swgoh.Client,
	store *storage.Client,
	runs *repositories.ReportRunRepository,
) *services.SheetService {
	return services.NewSheetService(catalog, guilds, stats, store, runs)
}

func ProvideJobManager(cfg *config.Config, sheets *services.SheetService) *jobs.Manager {
	return jobs.NewManager(
		jobs.NewCatalogRefreshJob(sheets, cfg.RefreshInterval, cfg.HTTPTimeout),
		jobs.NewReportCleanupJob(cfg.ReportDir, cfg.ReportRetention),
	)
}

func ProvideHandlers(cfg *config.Config, sheets *services.SheetService) *discord.Handlers {
	return discord.NewHandlers(sheets, cfg.ReportDir, cfg.Version)
}

func ProvideBot(cfg *config.Config, manager *jobs.Manager, handlers *discord.Handlers) (*discord.Bot, error) {
	bot, err := discord.New(cfg.DiscordToken, cfg.DiscordGuildID, manager)
	if err != nil {
		return nil, err
	}

	for _, cmd := range handlers.Commands() {
		bot.RegisterCommand(cmd)
	}
	bot.OnReady(handlers.LoadCatalog)

	return bot, nil
}

var Module = fx.Options(
	fx.Provide(config.Load),
	fx.Invoke(SetLogLevel),
	fx.Provide(ProvideDatabase),
	// repos
	fx.Provide(repositories.NewReportRunRepository),
	// api clients
	fx.Provide(ProvideSwgohClient),
	fx.Provide(ProvideStorageClient),
	fx.Provide(ProvideRegistry),
	// svc
	fx.Provide(ProvideCatalog),
	fx.Provide(ProvideSheetService),
	fx.Provide(ProvideJobManager),
	// discord
	fx.Provide(ProvideHandlers),
	fx.Provide(ProvideBot),
)
