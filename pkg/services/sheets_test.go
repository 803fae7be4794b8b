package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mrlobot/discord-bot/pkg/database"
	"github.com/mrlobot/discord-bot/pkg/errs"
	"github.com/mrlobot/discord-bot/pkg/report"
	"github.com/mrlobot/discord-bot/pkg/storage"
	"github.com/mrlobot/discord-bot/pkg/swgoh"
	"github.com/mrlobot/discord-bot/pkg/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStats struct {
	chars    []swgoh.Character
	charsErr error
	guild    *swgoh.GuildData
	guildErr error
	players  []report.PlayerRoster
}

func (f *fakeStats) Characters(ctx context.Context) ([]swgoh.Character, error) {
	return f.chars, f.charsErr
}

func (f *fakeStats) GuildInfo(ctx context.Context, guildID string) (*swgoh.GuildData, error) {
	return f.guild, f.guildErr
}

func (f *fakeStats) GuildPlayers(ctx context.Context, guildID string) ([]report.PlayerRoster, error) {
	return f.players, nil
}

type removeCall struct {
	sheet string
	guild string
	chars []int
}

type fakeStore struct {
	mu         sync.Mutex
	registered map[string]string
	registerFn func() error
	added      [][]int
	addResult  *storage.AddResult
	removed    []removeCall
	remove     *storage.RemoveResult
	sheet      *storage.Sheet
	sheetErr   error
	sheets     []storage.Sheet
	prefixes   []string
}

func (f *fakeStore) RegisterGuild(ctx context.Context, serverID, guildID string) error {
	if f.registerFn != nil {
		if err := f.registerFn(); err != nil {
			return err
		}
	}
	if f.registered == nil {
		f.registered = make(map[string]string)
	}
	f.registered[serverID] = guildID
	return nil
}

func (f *fakeStore) AddToSpreadsheet(ctx context.Context, sheet, guildID string, chars []int) (*storage.AddResult, error) {
	f.added = append(f.added, chars)
	return f.addResult, nil
}

func (f *fakeStore) RemoveFromSpreadsheet(ctx context.Context, sheet, guildID string, chars []int) (*storage.RemoveResult, error) {
	f.removed = append(f.removed, removeCall{sheet: sheet, guild: guildID, chars: chars})
	return f.remove, nil
}

func (f *fakeStore) Spreadsheet(ctx context.Context, guildID, sheet string) (*storage.Sheet, error) {
	return f.sheet, f.sheetErr
}

func (f *fakeStore) Spreadsheets(ctx context.Context, guildID, prefix string) ([]storage.Sheet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefixes = append(f.prefixes, prefix)
	return f.sheets, nil
}

type fakeGuilds map[string]string

func (f fakeGuilds) Lookup(ctx context.Context, serverID string) (string, error) {
	guild, ok := f[serverID]
	if !ok {
		return "", errs.ErrNotRegistered
	}
	return guild, nil
}

type fakeRuns struct {
	created []*database.ReportRun
	err     error
}

func (f *fakeRuns) Create(ctx context.Context, run *database.ReportRun) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, run)
	return nil
}

func (f *fakeRuns) RecentByGuild(ctx context.Context, guildID string, limit int) ([]database.ReportRun, error) {
	var out []database.ReportRun
	for _, r := range f.created {
		if r.GuildID == guildID && len(out) < limit {
			out = append(out, *r)
		}
	}
	return out, nil
}

func ids(v ...int) *storage.IDList {
	l := storage.IDList(v)
	return &l
}

var catalogChars = []swgoh.Character{
	{PK: 1, Name: "Luke Skywalker", BaseID: "LUKE"},
	{PK: 2, Name: "Luke Skywalker (Jedi)", BaseID: "LUKEJ"},
	{PK: 3, Name: "Han Solo", BaseID: "HANSOLO"},
	{PK: 4, Name: "Darth Vader", BaseID: "VADER"},
}

type fixture struct {
	service *SheetService
	stats   *fakeStats
	store   *fakeStore
	runs    *fakeRuns
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		stats: &fakeStats{chars: catalogChars},
		store: &fakeStore{},
		runs:  &fakeRuns{},
	}
	f.service = NewSheetService(&units.Catalog{}, fakeGuilds{"srv": "69571"}, f.stats, f.store, f.runs)

	_, err := f.service.RefreshCatalog(context.Background())
	require.NoError(t, err)
	return f
}

func TestRefreshCatalogFailure(t *testing.T) {
	stats := &fakeStats{charsErr: &errs.TransportError{Endpoint: "characters", Status: 503}}
	service := NewSheetService(&units.Catalog{}, fakeGuilds{}, stats, &fakeStore{}, &fakeRuns{})

	_, err := service.RefreshCatalog(context.Background())
	var fetch *errs.CatalogFetchError
	require.ErrorAs(t, err, &fetch)

	_, err = service.ListUnits("")
	assert.ErrorIs(t, err, errs.ErrCatalogNotReady)
	assert.False(t, service.CatalogLoaded())
}

func TestRegisterGuild(t *testing.T) {
	f := newFixture(t)
	f.stats.guild = &swgoh.GuildData{ID: "69571", Name: "Lobot Corp"}

	name, err := f.service.RegisterGuild(context.Background(), "srv2", "guild", " 69571 ")
	require.NoError(t, err)
	assert.Equal(t, "Lobot Corp", name)
	assert.Equal(t, "69571", f.store.registered["srv2"])
}

func TestRegisterGuildRejectsUnknownOption(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.RegisterGuild(context.Background(), "srv2", "prefix", "!")
	var validation *errs.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "**prefix** is not a valid config option", errs.UserMessage(err))
	assert.Empty(t, f.store.registered)
}

func TestRegisterGuildMissingGuild(t *testing.T) {
	f := newFixture(t)
	f.stats.guildErr = &errs.RemoteError{Kind: errs.KindNotFound, UserMessage: "not found"}

	_, err := f.service.RegisterGuild(context.Background(), "srv2", "guild", "1")
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
	assert.Empty(t, f.store.registered)
}

func TestRegisterGuildDuplicate(t *testing.T) {
	f := newFixture(t)
	f.stats.guild = &swgoh.GuildData{Name: "Lobot Corp"}
	f.store.registerFn = func() error {
		return &errs.RemoteError{Kind: errs.KindDuplicateRegistration, UserMessage: "dup"}
	}

	_, err := f.service.RegisterGuild(context.Background(), "srv", "guild", "69571")
	assert.True(t, errs.IsKind(err, errs.KindDuplicateRegistration))
}

func TestListUnits(t *testing.T) {
	f := newFixture(t)

	list, err := f.service.ListUnits("luke")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Luke Skywalker", list[0].Name)
	assert.Equal(t, "Luke Skywalker (Jedi)", list[1].Name)
}

func TestAddToSheet(t *testing.T) {
	f := newFixture(t)
	f.store.addResult = &storage.AddResult{Added: storage.IDList{4}, Repeated: storage.IDList{3}, IsNew: false}

	outcome, err := f.service.AddToSheet(context.Background(), "srv", "tw", "Vader, han, Yoda, vader")
	require.NoError(t, err)

	require.Len(t, f.store.added, 1)
	assert.Equal(t, []int{4, 3}, f.store.added[0])
	assert.True(t, outcome.Modified)
	assert.Equal(t, []string{"Darth Vader"}, outcome.Added)
	assert.Equal(t, []string{"Han Solo"}, outcome.Repeated)
	assert.Equal(t, []string{"Yoda"}, outcome.Unmatched)
}

func TestAddToSheetNothingMatched(t *testing.T) {
	f := newFixture(t)

	outcome, err := f.service.AddToSheet(context.Background(), "srv", "tw", "Yoda, Ahsoka")
	require.NoError(t, err)
	assert.False(t, outcome.Modified)
	assert.Equal(t, []string{"Yoda", "Ahsoka"}, outcome.Unmatched)
	assert.Empty(t, f.store.added, "no remote call without matched units")
}

func TestAddToSheetNotRegistered(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.AddToSheet(context.Background(), "unknown", "tw", "vader")
	assert.ErrorIs(t, err, errs.ErrNotRegistered)
}

func TestRemoveFromSheet(t *testing.T) {
	t.Run("empty list deletes the whole sheet", func(t *testing.T) {
		f := newFixture(t)
		f.store.remove = &storage.RemoveResult{Deleted: storage.IDList{3, 4}, SheetRemoved: true}

		outcome, err := f.service.RemoveFromSheet(context.Background(), "srv", "tw", "  ")
		require.NoError(t, err)
		require.Len(t, f.store.removed, 1)
		assert.Empty(t, f.store.removed[0].chars)
		assert.True(t, outcome.SheetRemoved)
	})

	t.Run("matched units carry the sentinel", func(t *testing.T) {
		f := newFixture(t)
		f.store.remove = &storage.RemoveResult{Deleted: storage.IDList{4}, Left: storage.IDList{3}}

		outcome, err := f.service.RemoveFromSheet(context.Background(), "srv", "tw", "vader")
		require.NoError(t, err)
		assert.Equal(t, []int{4, storage.NoopUnitID}, f.store.removed[0].chars)
		assert.True(t, outcome.Modified)
		assert.Equal(t, []string{"Darth Vader"}, outcome.Removed)
		assert.Equal(t, []string{"Han Solo"}, outcome.Left)
	})

	t.Run("nothing matched never deletes the sheet", func(t *testing.T) {
		f := newFixture(t)
		f.store.remove = &storage.RemoveResult{Left: storage.IDList{3}}

		outcome, err := f.service.RemoveFromSheet(context.Background(), "srv", "tw", "yoda")
		require.NoError(t, err)
		assert.Equal(t, []int{storage.NoopUnitID}, f.store.removed[0].chars)
		assert.False(t, outcome.Modified)
		assert.Equal(t, []string{"yoda"}, outcome.Unmatched)
	})
}

func TestShowSheets(t *testing.T) {
	f := newFixture(t)
	f.store.sheets = []storage.Sheet{
		{Name: "tw-def", CharIDs: ids(4, 3)},
		{Name: "tw-off", CharIDs: ids(1, 99)},
	}

	views, err := f.service.ShowSheets(context.Background(), "srv", AllSheets)
	require.NoError(t, err)
	assert.Equal(t, []string{""}, f.store.prefixes)
	assert.Equal(t, []SheetView{
		{Name: "tw-def", Units: []string{"Darth Vader", "Han Solo"}},
		{Name: "tw-off", Units: []string{"Luke Skywalker"}},
	}, views)

	names, err := f.service.SheetNames(context.Background(), "srv", "tw")
	require.NoError(t, err)
	assert.Equal(t, []string{"tw-def", "tw-off"}, names)
	assert.Equal(t, "tw", f.store.prefixes[1])
}

func TestReportSheet(t *testing.T) {
	f := newFixture(t)
	relic := 7
	f.store.sheet = &storage.Sheet{Name: "tw", CharIDs: ids(4, 1)}
	f.stats.players = []report.PlayerRoster{
		{Data: report.PlayerData{Name: "Amy"}, Units: []report.RosterUnit{
			{Data: report.UnitStats{BaseID: "VADER", Power: 31000.7, RelicTier: &relic}},
		}},
		{Data: report.PlayerData{Name: "Bob"}},
	}

	outcome, err := f.service.ReportSheet(context.Background(), "srv", "tw", "pg, relic, speed")
	require.NoError(t, err)
	assert.Equal(t, []string{"speed"}, outcome.Invalid)
	assert.Equal(t, 2, outcome.Players)
	require.Len(t, outcome.Tables, 2)

	power := outcome.Tables[0]
	assert.Equal(t, []string{report.PlayerColumn, "Darth Vader", "Luke Skywalker"}, power.Columns)
	assert.Equal(t, []int64{31000, 0}, power.Rows[0].Values)
	assert.Equal(t, []int64{0, 0}, power.Rows[1].Values)
	assert.Equal(t, []int64{5, 0}, outcome.Tables[1].Rows[0].Values)

	require.Len(t, f.runs.created, 1)
	run := f.runs.created[0]
	assert.Equal(t, "69571", run.GuildID)
	assert.Equal(t, []string{"power", "relic"}, run.Kinds())
	assert.Equal(t, []int{4, 1}, run.Units())

	history, err := f.service.History(context.Background(), "srv", 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestReportSheetNoValidStats(t *testing.T) {
	f := newFixture(t)

	outcome, err := f.service.ReportSheet(context.Background(), "srv", "tw", "speed, health")
	var validation *errs.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, []string{"speed", "health"}, outcome.Invalid)
	assert.Empty(t, f.runs.created)
}

func TestReportSheetMissingSheet(t *testing.T) {
	f := newFixture(t)
	f.store.sheetErr = &errs.RemoteError{Kind: errs.KindNotFound, UserMessage: "missing"}

	_, err := f.service.ReportSheet(context.Background(), "srv", "tw", "relic")
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
	assert.Empty(t, f.runs.created)
}

func TestReportSheetHistoryFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.store.sheet = &storage.Sheet{Name: "tw", CharIDs: ids(3)}
	f.runs.err = errors.New("database is gone")

	outcome, err := f.service.ReportSheet(context.Background(), "srv", "tw", "power")
	require.NoError(t, err)
	assert.Len(t, outcome.Tables, 1)
}
