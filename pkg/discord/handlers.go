package discord

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/mrlobot/discord-bot/pkg/ascii"
	"github.com/mrlobot/discord-bot/pkg/errs"
	"github.com/mrlobot/discord-bot/pkg/logger"
	"github.com/mrlobot/discord-bot/pkg/report"
	"github.com/mrlobot/discord-bot/pkg/services"
)

const (
	commandTimeout  = 30 * time.Second
	historyLimit    = 10
	errNotInGuild   = "❌ This command must be used in a server"
	sheetOptionName = "sheet"
)

// Handlers builds the slash commands on top of the sheet service.
type Handlers struct {
	sheets    *services.SheetService
	reportDir string
	version   string
	commands  []*Command
}

func NewHandlers(sheets *services.SheetService, reportDir, version string) *Handlers {
	return &Handlers{
		sheets:    sheets,
		reportDir: reportDir,
		version:   version,
	}
}

// Commands returns every slash command, in help order.
func (h *Handlers) Commands() []*Command {
	if h.commands == nil {
		h.commands = []*Command{
			PingCommand(),
			h.versionCommand(),
			h.helpCommand(),
			h.configCommand(),
			h.unitsCommand(),
			h.sheetAddCommand(),
			h.sheetDeleteCommand(),
			h.sheetShowCommand(),
			h.sheetReportCommand(),
			h.historyCommand(),
		}
	}
	return h.commands
}

// LoadCatalog builds the unit index the first time the bot is ready.
func (h *Handlers) LoadCatalog() {
	if h.sheets.CatalogLoaded() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if _, err := h.sheets.RefreshCatalog(ctx); err != nil {
		logger.Error("Failed to load unit catalog: %v", err)
	}
}

func options(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	opts := i.ApplicationCommandData().Options
	optionMap := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, opt := range opts {
		optionMap[opt.Name] = opt
	}
	return optionMap
}

func stringOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if opt, ok := opts[name]; ok {
		return opt.StringValue()
	}
	return ""
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string, ephemeral bool) error {
	data := &discordgo.InteractionResponseData{Content: content}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
}

func deferResponse(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
}

func edit(s *discordgo.Session, i *discordgo.InteractionCreate, content string, embeds []*discordgo.MessageEmbed) error {
	chunks := chunkEmbeds(embeds)

	var first []*discordgo.MessageEmbed
	if len(chunks) > 0 {
		first = chunks[0]
	}
	if content == "" && len(first) == 0 {
		content = "✅"
	}

	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
		Embeds:  &first,
	}); err != nil {
		return err
	}

	for _, chunk := range chunks[min(1, len(chunks)):] {
		if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{Embeds: chunk}); err != nil {
			return err
		}
	}
	return nil
}

// fail is the single place where a command failure is logged and shown.
func fail(s *discordgo.Session, i *discordgo.InteractionCreate, command string, err error) error {
	logger.Error("Command %s failed in server %s: %v", command, i.GuildID, err)

	content := "❌ " + errs.UserMessage(err)
	_, editErr := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	})
	return editErr
}

// deferred runs fn after acknowledging the interaction, for commands that
// call remote services.
func deferred(command string, fn func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error) CommandHandler {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) error {
		if i.GuildID == "" {
			return respond(s, i, errNotInGuild, true)
		}
		if err := deferResponse(s, i); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		if err := fn(ctx, s, i); err != nil {
			return fail(s, i, command, err)
		}
		return nil
	}
}

func PingCommand() *Command {
	return &Command{
		Name:        "ping",
		Description: "Responds with Pong!",
		Handler:     handlePing,
	}
}

func handlePing(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	logger.Debug("Ping command received")
	return respond(s, i, "🏓 Pong!", false)
}

func (h *Handlers) versionCommand() *Command {
	return &Command{
		Name:        "version",
		Description: "Shows the running Mr.Lobot version",
		Handler: func(s *discordgo.Session, i *discordgo.InteractionCreate) error {
			return respond(s, i, fmt.Sprintf("**Mr.Lobot** version **%s**", h.version), false)
		},
	}
}

func (h *Handlers) helpCommand() *Command {
	return &Command{
		Name:        "help",
		Description: "Lists every Mr.Lobot command",
		Handler: func(s *discordgo.Session, i *discordgo.InteractionCreate) error {
			return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseChannelMessageWithSource,
				Data: &discordgo.InteractionResponseData{
					Embeds: []*discordgo.MessageEmbed{renderHelp(h.Commands())},
					Flags:  discordgo.MessageFlagsEphemeral,
				},
			})
		},
	}
}

func (h *Handlers) configCommand() *Command {
	return &Command{
		Name:        "config",
		Description: "Stores a config option for this server",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "option",
				Description: "Option to store",
				Required:    true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "guild", Value: "guild"},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "value",
				Description: "Option value, the swgoh.gg guild id for guild",
				Required:    true,
			},
		},
		Handler: deferred("config", func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error {
			opts := options(i)
			option := stringOption(opts, "option")

			name, err := h.sheets.RegisterGuild(ctx, i.GuildID, option, stringOption(opts, "value"))
			if err != nil {
				return err
			}

			logger.Info("Server %s registered guild %s", i.GuildID, name)
			return edit(s, i, fmt.Sprintf("**Mr.Lobot** has successfully stored the config option: %s : %s", option, name), nil)
		}),
	}
}

func (h *Handlers) unitsCommand() *Command {
	return &Command{
		Name:        "units",
		Description: "Lists the known units and their aliases",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "start",
				Description: "Only units whose name starts with this text",
				Required:    false,
			},
		},
		Handler: deferred("units", func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error {
			start := stringOption(options(i), "start")

			list, err := h.sheets.ListUnits(start)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				return edit(s, i, fmt.Sprintf("**Mr.Lobot** did not find any units starting with **%s**", start), nil)
			}

			tables := ascii.BuildUnitsTables(list, ascii.UnitsPerTable)
			if err := edit(s, i, codeBlock(tables[0]), nil); err != nil {
				return err
			}
			for _, table := range tables[1:] {
				if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{Content: codeBlock(table)}); err != nil {
					return err
				}
			}
			return nil
		}),
	}
}

func (h *Handlers) sheetOption(description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:         discordgo.ApplicationCommandOptionString,
		Name:         sheetOptionName,
		Description:  description,
		Required:     true,
		Autocomplete: true,
	}
}

func (h *Handlers) sheetAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) ([]*discordgo.ApplicationCommandOptionChoice, error) {
	if i.GuildID == "" {
		return []*discordgo.ApplicationCommandOptionChoice{}, nil
	}

	var focused string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Focused && opt.Name == sheetOptionName {
			focused = opt.StringValue()
			break
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	names, err := h.sheets.SheetNames(ctx, i.GuildID, focused)
	if err != nil {
		return nil, err
	}
	return stringChoices(names), nil
}

func (h *Handlers) sheetAddCommand() *Command {
	return &Command{
		Name:        "sheet-add",
		Description: "Adds units to a spreadsheet, creating it if needed",
		Options: []*discordgo.ApplicationCommandOption{
			h.sheetOption("Spreadsheet name"),
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "chars",
				Description: "Comma separated unit names or aliases",
				Required:    true,
			},
		},
		Handler: deferred("sheet-add", func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error {
			opts := options(i)

			outcome, err := h.sheets.AddToSheet(ctx, i.GuildID, stringOption(opts, sheetOptionName), stringOption(opts, "chars"))
			if err != nil {
				return err
			}

			content, embeds := renderAdd(outcome)
			return edit(s, i, content, embeds)
		}),
		AutocompleteHandler: h.sheetAutocomplete,
	}
}

func (h *Handlers) sheetDeleteCommand() *Command {
	return &Command{
		Name:        "sheet-delete",
		Description: "Removes units from a spreadsheet, or the whole spreadsheet without chars",
		Options: []*discordgo.ApplicationCommandOption{
			h.sheetOption("Spreadsheet name"),
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "chars",
				Description: "Comma separated units to remove; leave empty to delete the spreadsheet",
				Required:    false,
			},
		},
		Handler: deferred("sheet-delete", func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error {
			opts := options(i)

			outcome, err := h.sheets.RemoveFromSheet(ctx, i.GuildID, stringOption(opts, sheetOptionName), stringOption(opts, "chars"))
			if err != nil {
				return err
			}

			content, embeds := renderRemove(outcome)
			return edit(s, i, content, embeds)
		}),
		AutocompleteHandler: h.sheetAutocomplete,
	}
}

func (h *Handlers) sheetShowCommand() *Command {
	return &Command{
		Name:        "sheet-show",
		Description: "Shows the spreadsheets whose name starts with a text",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "start",
				Description: "Name prefix, * for every spreadsheet",
				Required:    true,
			},
		},
		Handler: deferred("sheet-show", func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error {
			start := stringOption(options(i), "start")

			views, err := h.sheets.ShowSheets(ctx, i.GuildID, start)
			if err != nil {
				return err
			}

			content, embeds := renderSheets(start, views)
			return edit(s, i, content, embeds)
		}),
	}
}

func (h *Handlers) sheetReportCommand() *Command {
	return &Command{
		Name:        "sheet-report",
		Description: "Builds a CSV report per stat for the units of a spreadsheet",
		Options: []*discordgo.ApplicationCommandOption{
			h.sheetOption("Spreadsheet name"),
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "stats",
				Description: "Comma separated stats: power (pg), relic",
				Required:    true,
			},
		},
		Handler: deferred("sheet-report", func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error {
			opts := options(i)
			sheet := stringOption(opts, sheetOptionName)

			outcome, err := h.sheets.ReportSheet(ctx, i.GuildID, sheet, stringOption(opts, "stats"))
			if err != nil {
				if outcome != nil && len(outcome.Invalid) > 0 {
					return edit(s, i, "**Mr.Lobot** did not locate any stat to report", []*discordgo.MessageEmbed{invalidStatsEmbed(outcome.Invalid)})
				}
				return err
			}

			var embeds []*discordgo.MessageEmbed
			if len(outcome.Invalid) > 0 {
				embeds = append(embeds, invalidStatsEmbed(outcome.Invalid))
			}
			content := fmt.Sprintf("**Mr.Lobot** built the spreadsheet **%s** for %d players", outcome.Sheet, outcome.Players)
			if err := edit(s, i, content, embeds); err != nil {
				return err
			}

			return h.sendReportFiles(s, i, outcome)
		}),
		AutocompleteHandler: h.sheetAutocomplete,
	}
}

// sendReportFiles posts one CSV per table and removes the files afterwards.
func (h *Handlers) sendReportFiles(s *discordgo.Session, i *discordgo.InteractionCreate, outcome *services.ReportOutcome) error {
	files, err := report.ExportFiles(h.reportDir, outcome.GuildID, outcome.Sheet, outcome.Tables)
	if err != nil {
		return err
	}
	defer report.RemoveFiles(files)

	for _, f := range files {
		if err := sendFile(s, i, outcome.Sheet, f); err != nil {
			return err
		}
	}
	return nil
}

func sendFile(s *discordgo.Session, i *discordgo.InteractionCreate, sheet string, f report.ExportedFile) error {
	file, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("failed to open report file: %w", err)
	}
	defer file.Close()

	_, err = s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: fmt.Sprintf("Spreadsheet %s for %s", sheet, f.Kind.Label()),
		Files: []*discordgo.File{
			{
				Name:        filepath.Base(f.Path),
				ContentType: "text/csv",
				Reader:      file,
			},
		},
	})
	return err
}

func (h *Handlers) historyCommand() *Command {
	return &Command{
		Name:        "report-history",
		Description: "Shows the latest reports built for this server's guild",
		Handler: deferred("report-history", func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error {
			runs, err := h.sheets.History(ctx, i.GuildID, historyLimit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				return edit(s, i, "**Mr.Lobot** has not built any report for your guild yet", nil)
			}

			content := fmt.Sprintf("Last %d reports for guild **%s**\n%s", len(runs), runs[0].GuildID,
				codeBlock(strings.TrimRight(ascii.BuildHistoryTable(runs), "\n")+"\n"))
			return edit(s, i, content, nil)
		}),
	}
}
