package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/mrlobot/discord-bot/pkg/jobs"
	"github.com/mrlobot/discord-bot/pkg/logger"
)

type Bot struct {
	session    *discordgo.Session
	commands   []*Command
	guildID    string
	jobManager *jobs.Manager
	readyHooks []func()
}

func New(token, guildID string, jobManager *jobs.Manager) (*Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("discord bot token is required")
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds

	bot := &Bot{
		session:    session,
		commands:   make([]*Command, 0),
		guildID:    guildID,
		jobManager: jobManager,
	}

	return bot, nil
}

// OnReady registers fn to run, in its own goroutine, on every ready event.
func (b *Bot) OnReady(fn func()) {
	b.readyHooks = append(b.readyHooks, fn)
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.handleInteractionCreate)

	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		logger.Success("Discord bot logged in as: %v#%v", s.State.User.Username, s.State.User.Discriminator)
		for _, fn := range b.readyHooks {
			go fn()
		}
	})

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	if err := b.registerCommands(); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	if b.jobManager != nil {
		b.jobManager.Start()
	}

	logger.Success("Discord bot is now running")
	return nil
}

func (b *Bot) Stop() error {
	if b.jobManager != nil {
		b.jobManager.Stop()
	}

	if err := b.removeCommands(); err != nil {
		logger.Error("Error removing commands: %v", err)
	}

	return b.session.Close()
}

func (b *Bot) findCommand(name string) *Command {
	for _, cmd := range b.commands {
		if cmd.Name == name {
			return cmd
		}
	}
	return nil
}

func (b *Bot) handleInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		cmd := b.findCommand(i.ApplicationCommandData().Name)
		if cmd == nil {
			return
		}

		if err := cmd.Handler(s, i); err != nil {
			logger.Error("Error handling command %s: %v", cmd.Name, err)
		}

	case discordgo.InteractionApplicationCommandAutocomplete:
		cmd := b.findCommand(i.ApplicationCommandData().Name)
		if cmd == nil || cmd.AutocompleteHandler == nil {
			return
		}

		choices, err := cmd.AutocompleteHandler(s, i)
		if err != nil {
			logger.Debug("Autocomplete for %s failed: %v", cmd.Name, err)
			choices = []*discordgo.ApplicationCommandOptionChoice{}
		}

		err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionApplicationCommandAutocompleteResult,
			Data: &discordgo.InteractionResponseData{
				Choices: choices,
			},
		})
		if err != nil {
			logger.Debug("Failed to send autocomplete for %s: %v", cmd.Name, err)
		}
	}
}
