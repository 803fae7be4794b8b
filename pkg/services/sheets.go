package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/mrlobot/discord-bot/pkg/database"
	"github.com/mrlobot/discord-bot/pkg/errs"
	"github.com/mrlobot/discord-bot/pkg/logger"
	"github.com/mrlobot/discord-bot/pkg/report"
	"github.com/mrlobot/discord-bot/pkg/storage"
	"github.com/mrlobot/discord-bot/pkg/swgoh"
	"github.com/mrlobot/discord-bot/pkg/units"
	"golang.org/x/sync/errgroup"
)

// AllSheets is the show prefix that lists every sheet of a guild.
const AllSheets = "*"

type StatsProvider interface {
	Characters(ctx context.Context) ([]swgoh.Character, error)
	GuildInfo(ctx context.Context, guildID string) (*swgoh.GuildData, error)
	GuildPlayers(ctx context.Context, guildID string) ([]report.PlayerRoster, error)
}

type SheetStore interface {
	RegisterGuild(ctx context.Context, serverID, guildID string) error
	AddToSpreadsheet(ctx context.Context, sheet, guildID string, chars []int) (*storage.AddResult, error)
	RemoveFromSpreadsheet(ctx context.Context, sheet, guildID string, chars []int) (*storage.RemoveResult, error)
	Spreadsheet(ctx context.Context, guildID, sheet string) (*storage.Sheet, error)
	Spreadsheets(ctx context.Context, guildID, prefix string) ([]storage.Sheet, error)
}

type GuildLookup interface {
	Lookup(ctx context.Context, serverID string) (string, error)
}

type RunStore interface {
	Create(ctx context.Context, run *database.ReportRun) error
	RecentByGuild(ctx context.Context, guildID string, limit int) ([]database.ReportRun, error)
}

// SheetService owns the unit catalog and every flow that touches a guild
// spreadsheet. One instance lives for the whole process.
type SheetService struct {
	catalog *units.Catalog
	guilds  GuildLookup
	stats   StatsProvider
	store   SheetStore
	runs    RunStore
}

func NewSheetService(catalog *units.Catalog, guilds GuildLookup, stats StatsProvider, store SheetStore, runs RunStore) *SheetService {
	return &SheetService{
		catalog: catalog,
		guilds:  guilds,
		stats:   stats,
		store:   store,
		runs:    runs,
	}
}

type ConfigOption int

const (
	OptionGuild ConfigOption = iota + 1
)

func ParseConfigOption(raw string) (ConfigOption, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "guild":
		return OptionGuild, nil
	default:
		return 0, &errs.ValidationError{Field: "config option", Value: raw}
	}
}

type AddOutcome struct {
	Sheet     string
	IsNew     bool
	Added     []string
	Repeated  []string
	Unmatched []string
	Modified  bool
}

type RemoveOutcome struct {
	Sheet        string
	SheetRemoved bool
	Removed      []string
	Left         []string
	Unmatched    []string
	Modified     bool
	Message      string
}

type SheetView struct {
	Name  string
	Units []string
}

type ReportOutcome struct {
	Sheet   string
	GuildID string
	Tables  []report.Table
	Invalid []string
	Players int
}

// RefreshCatalog downloads the unit catalog and publishes a new alias index.
func (s *SheetService) RefreshCatalog(ctx context.Context) (*units.Index, error) {
	chars, err := s.stats.Characters(ctx)
	if err != nil {
		return nil, &errs.CatalogFetchError{Err: err}
	}

	idx := units.BuildIndex(swgoh.RawUnits(chars))
	for _, w := range idx.Warnings() {
		logger.Warn("Unit catalog: %s", w)
	}

	s.catalog.Store(idx)
	logger.Success("Unit catalog loaded: %d units, %d aliases", idx.Len(), idx.Aliases())

	return idx, nil
}

func (s *SheetService) CatalogLoaded() bool {
	_, err := s.catalog.Load()
	return err == nil
}

// RegisterGuild stores a config option for the server. The only option is
// "guild": the guild must exist on the stats provider, its name is returned.
func (s *SheetService) RegisterGuild(ctx context.Context, serverID, option, value string) (string, error) {
	opt, err := ParseConfigOption(option)
	if err != nil {
		return "", err
	}

	switch opt {
	case OptionGuild:
		guildID := strings.TrimSpace(value)
		if guildID == "" {
			return "", &errs.ValidationError{Field: "guild id", Value: value}
		}

		guild, err := s.stats.GuildInfo(ctx, guildID)
		if err != nil {
			return "", err
		}
		if err := s.store.RegisterGuild(ctx, serverID, guildID); err != nil {
			return "", err
		}
		return guild.Name, nil
	}

	return "", &errs.ValidationError{Field: "config option", Value: option}
}

func (s *SheetService) ListUnits(prefix string) ([]units.UnitRecord, error) {
	idx, err := s.catalog.Load()
	if err != nil {
		return nil, err
	}
	return idx.WithPrefix(prefix), nil
}

// resolve splits the user list, normalizes every token and looks it up.
// Unmatched tokens are reported as the user typed them.
func resolve(idx *units.Index, raw string) units.Resolution {
	parts := units.SplitTokens(raw)
	normalized := make([]string, len(parts))
	typed := make(map[string]string, len(parts))

	for i, part := range parts {
		n := strings.Join(units.Tokens(part), " ")
		normalized[i] = n
		if _, ok := typed[n]; !ok {
			typed[n] = strings.TrimSpace(part)
		}
	}

	res := idx.Resolve(normalized)
	for i, token := range res.Unmatched {
		res.Unmatched[i] = typed[token]
	}
	return res
}

func sheetName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", &errs.ValidationError{Field: "sheet name", Value: raw}
	}
	return name, nil
}

func (s *SheetService) AddToSheet(ctx context.Context, serverID, sheet, rawChars string) (*AddOutcome, error) {
	sheet, err := sheetName(sheet)
	if err != nil {
		return nil, err
	}
	idx, err := s.catalog.Load()
	if err != nil {
		return nil, err
	}
	guildID, err := s.guilds.Lookup(ctx, serverID)
	if err != nil {
		return nil, err
	}

	res := resolve(idx, rawChars)
	outcome := &AddOutcome{Sheet: sheet, Unmatched: res.Unmatched}
	if len(res.IDs) == 0 {
		return outcome, nil
	}

	result, err := s.store.AddToSpreadsheet(ctx, sheet, guildID, res.IDs)
	if err != nil {
		return nil, err
	}

	outcome.Modified = true
	outcome.IsNew = result.IsNew
	outcome.Added = idx.Names(result.Added)
	outcome.Repeated = idx.Names(result.Repeated)
	return outcome, nil
}

// RemoveFromSheet removes units from a sheet. An empty list deletes the whole
// sheet. Otherwise storage.NoopUnitID is appended so that a list where
// nothing resolved never turns into a full delete.
func (s *SheetService) RemoveFromSheet(ctx context.Context, serverID, sheet, rawChars string) (*RemoveOutcome, error) {
	sheet, err := sheetName(sheet)
	if err != nil {
		return nil, err
	}
	idx, err := s.catalog.Load()
	if err != nil {
		return nil, err
	}
	guildID, err := s.guilds.Lookup(ctx, serverID)
	if err != nil {
		return nil, err
	}

	outcome := &RemoveOutcome{Sheet: sheet}

	var chars []int
	if strings.TrimSpace(rawChars) != "" {
		res := resolve(idx, rawChars)
		outcome.Unmatched = res.Unmatched
		outcome.Modified = len(res.IDs) > 0
		chars = append(append(chars, res.IDs...), storage.NoopUnitID)
	}

	result, err := s.store.RemoveFromSpreadsheet(ctx, sheet, guildID, chars)
	if err != nil {
		return nil, err
	}

	outcome.SheetRemoved = result.SheetRemoved
	outcome.Removed = idx.Names(result.Deleted)
	outcome.Left = idx.Names(result.Left)
	outcome.Message = result.Message
	return outcome, nil
}

// ShowSheets lists the guild sheets starting with prefix; AllSheets lists all.
func (s *SheetService) ShowSheets(ctx context.Context, serverID, prefix string) ([]SheetView, error) {
	idx, err := s.catalog.Load()
	if err != nil {
		return nil, err
	}
	guildID, err := s.guilds.Lookup(ctx, serverID)
	if err != nil {
		return nil, err
	}

	prefix = strings.TrimSpace(prefix)
	if prefix == AllSheets {
		prefix = ""
	}

	sheets, err := s.store.Spreadsheets(ctx, guildID, prefix)
	if err != nil {
		return nil, err
	}

	views := make([]SheetView, 0, len(sheets))
	for _, sh := range sheets {
		views = append(views, SheetView{Name: sh.Name, Units: idx.Names(sh.IDs())})
	}
	return views, nil
}

func (s *SheetService) SheetNames(ctx context.Context, serverID, prefix string) ([]string, error) {
	guildID, err := s.guilds.Lookup(ctx, serverID)
	if err != nil {
		return nil, err
	}

	sheets, err := s.store.Spreadsheets(ctx, guildID, strings.TrimSpace(prefix))
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(sheets))
	for _, sh := range sheets {
		names = append(names, sh.Name)
	}
	return names, nil
}

// ReportSheet builds one table per requested stat for the units of a sheet.
// Unknown stats are returned in Invalid; a ValidationError is returned when
// no stat is left. The sheet and the guild rosters are fetched concurrently.
func (s *SheetService) ReportSheet(ctx context.Context, serverID, sheet, rawStats string) (*ReportOutcome, error) {
	sheet, err := sheetName(sheet)
	if err != nil {
		return nil, err
	}

	kinds, invalid := report.ParseStatKinds(rawStats)
	if len(kinds) == 0 {
		return &ReportOutcome{Sheet: sheet, Invalid: invalid}, &errs.ValidationError{Field: "stat", Value: strings.TrimSpace(rawStats)}
	}

	idx, err := s.catalog.Load()
	if err != nil {
		return nil, err
	}
	guildID, err := s.guilds.Lookup(ctx, serverID)
	if err != nil {
		return nil, err
	}

	var (
		stored  *storage.Sheet
		players []report.PlayerRoster
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stored, err = s.store.Spreadsheet(gctx, guildID, sheet)
		return err
	})
	g.Go(func() error {
		var err error
		players, err = s.stats.GuildPlayers(gctx, guildID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tables := report.Aggregate(idx, players, stored.IDs(), kinds)

	s.record(ctx, serverID, guildID, sheet, kinds, stored.IDs(), len(players))

	return &ReportOutcome{
		Sheet:   sheet,
		GuildID: guildID,
		Tables:  tables,
		Invalid: invalid,
		Players: len(players),
	}, nil
}

// record stores the report in the history. A failed write never fails the
// report itself.
func (s *SheetService) record(ctx context.Context, serverID, guildID, sheet string, kinds []report.StatKind, ids []int, players int) {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}

	run, err := database.NewReportRun(serverID, guildID, sheet, names, ids, players)
	if err == nil {
		err = s.runs.Create(ctx, run)
	}
	if err != nil {
		logger.Warn("Failed to record report history for guild %s: %v", guildID, err)
	}
}

func (s *SheetService) History(ctx context.Context, serverID string, limit int) ([]database.ReportRun, error) {
	guildID, err := s.guilds.Lookup(ctx, serverID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	runs, err := s.runs.RecentByGuild(ctx, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load report history: %w", err)
	}
	return runs, nil
}
