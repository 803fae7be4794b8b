package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/mrlobot/discord-bot/pkg/ascii"
	"github.com/mrlobot/discord-bot/pkg/report"
	"github.com/mrlobot/discord-bot/pkg/services"
)

const (
	colorError   = 0xff0000
	colorSuccess = 0x00ff00
	colorInfo    = 0x5865F2

	// Discord rejects more embeds or choices than these per message.
	maxEmbeds  = 10
	maxChoices = 25
)

func quoteList(items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "> " + item
	}
	return strings.Join(lines, "\n")
}

func codeBlock(s string) string {
	return "```\n" + s + "```"
}

func unmatchedEmbed(unmatched []string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "**Mr.Lobot** didn't find the following chars",
		Color: colorError,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "PRY char name", Value: quoteList(unmatched)},
		},
	}
}

// renderAdd returns the message content and embeds for a sheet-add outcome.
func renderAdd(o *services.AddOutcome) (string, []*discordgo.MessageEmbed) {
	var embeds []*discordgo.MessageEmbed
	if len(o.Unmatched) > 0 {
		embeds = append(embeds, unmatchedEmbed(o.Unmatched))
	}

	if !o.Modified {
		return "**Mr.Lobot** did not modify any spreadsheet", embeds
	}

	title := fmt.Sprintf("**Mr.Lobot Spreadsheet** %s modified units:", o.Sheet)
	if o.IsNew {
		title = fmt.Sprintf("New **Mr.Lobot Spreadsheet** %s added with:", o.Sheet)
	}

	embed := &discordgo.MessageEmbed{Title: title, Color: colorSuccess}
	if len(o.Added) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Chars added", Value: quoteList(o.Added)})
	}
	if len(o.Repeated) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Chars already stored", Value: quoteList(o.Repeated)})
	}

	return "", append(embeds, embed)
}

func renderRemove(o *services.RemoveOutcome) (string, []*discordgo.MessageEmbed) {
	var embeds []*discordgo.MessageEmbed
	if len(o.Unmatched) > 0 {
		embeds = append(embeds, unmatchedEmbed(o.Unmatched))
	}

	switch {
	case o.SheetRemoved:
		return fmt.Sprintf("**Mr.Lobot** successfully deleted the spreadsheet **%s**", o.Sheet), embeds
	case o.Modified:
		embed := &discordgo.MessageEmbed{
			Title: fmt.Sprintf("**Mr.Lobot Spreadsheet** %s modified units:", o.Sheet),
			Color: colorSuccess,
		}
		if len(o.Removed) > 0 {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Chars removed", Value: quoteList(o.Removed)})
		}
		if len(o.Left) > 0 {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Chars left in the spreadsheet", Value: quoteList(o.Left)})
		}
		return "", append(embeds, embed)
	default:
		return fmt.Sprintf("**Mr.Lobot** did not modify the spreadsheet **%s**", o.Sheet), embeds
	}
}

func renderSheets(prefix string, views []services.SheetView) (string, []*discordgo.MessageEmbed) {
	if len(views) == 0 {
		return fmt.Sprintf("**Mr.Lobot** didn't find any spreadsheet for your guild starting with **%s**\n"+
			"Try another query or use the **/sheet-add** command to add a sheet", prefix), nil
	}

	embeds := make([]*discordgo.MessageEmbed, 0, len(views))
	for _, v := range views {
		embeds = append(embeds, &discordgo.MessageEmbed{
			Title:       fmt.Sprintf("Sheet: %s", v.Name),
			Description: codeBlock(ascii.BuildSheetTable(v.Units)),
			Color:       colorInfo,
		})
	}

	return fmt.Sprintf("**Mr.Lobot** found the following stored sheet(s) for your guild starting with **%s**", prefix), embeds
}

// invalidStatsEmbed lists the rejected stats next to the supported ones.
func invalidStatsEmbed(invalid []string) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "Not available options",
		Description: fmt.Sprintf("**Mr.Lobot** cannot find the option(s): **%s**\nValid options are:", strings.Join(invalid, " ")),
		Color:       colorError,
	}
	for _, k := range report.SupportedKinds() {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  k.String(),
			Value: fmt.Sprintf("**%s**", k.Label()),
		})
	}
	return embed
}

func renderHelp(commands []*Command) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "Mr.Lobot commands",
		Description: "Unit lists are comma separated, e.g. `vader, han solo, jedi`.",
		Color:       colorInfo,
	}
	for _, cmd := range commands {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "/" + cmd.Name,
			Value: cmd.Description,
		})
	}
	return embed
}

// chunkEmbeds splits embeds into groups a single message can carry.
func chunkEmbeds(embeds []*discordgo.MessageEmbed) [][]*discordgo.MessageEmbed {
	var chunks [][]*discordgo.MessageEmbed
	for start := 0; start < len(embeds); start += maxEmbeds {
		chunks = append(chunks, embeds[start:min(start+maxEmbeds, len(embeds))])
	}
	return chunks
}

func stringChoices(values []string) []*discordgo.ApplicationCommandOptionChoice {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, min(len(values), maxChoices))
	for _, v := range values {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: v, Value: v})
		if len(choices) >= maxChoices {
			break
		}
	}
	return choices
}
