package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/mrlobot/discord-bot/pkg/logger"
)

type CommandHandler func(s *discordgo.Session, i *discordgo.InteractionCreate) error
type AutocompleteHandler func(s *discordgo.Session, i *discordgo.InteractionCreate) ([]*discordgo.ApplicationCommandOptionChoice, error)

type Command struct {
	Name                string
	Description         string
	Options             []*discordgo.ApplicationCommandOption
	Handler             CommandHandler
	AutocompleteHandler AutocompleteHandler
}

func (b *Bot) RegisterCommand(cmd *Command) {
	b.commands = append(b.commands, cmd)
}

func (b *Bot) Commands() []*Command {
	return b.commands
}

func (b *Bot) registerCommands() error {
	logger.Info("Registering %d commands...", len(b.commands))

	for _, cmd := range b.commands {
		appCmd := &discordgo.ApplicationCommand{
			Name:        cmd.Name,
			Description: cmd.Description,
			Options:     cmd.Options,
		}

		if _, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, b.guildID, appCmd); err != nil {
			return fmt.Errorf("failed to register command %s: %w", cmd.Name, err)
		}
		logger.Debug("Registered command: %s (scope %q)", cmd.Name, b.guildID)
	}

	return nil
}

func (b *Bot) removeCommands() error {
	logger.Info("Removing registered commands...")

	commands, err := b.session.ApplicationCommands(b.session.State.User.ID, b.guildID)
	if err != nil {
		return fmt.Errorf("failed to fetch commands: %w", err)
	}

	for _, cmd := range commands {
		if err := b.session.ApplicationCommandDelete(b.session.State.User.ID, b.guildID, cmd.ID); err != nil {
			logger.Warn("Failed to delete command %s: %v", cmd.Name, err)
		}
	}

	return nil
}
