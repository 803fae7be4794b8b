package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mrlobot/discord-bot/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	query  string
	body   map[string]interface{}
}

func newTestClient(t *testing.T, status int, response string) (*Client, *recorded) {
	t.Helper()

	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.query = r.URL.RawQuery

		body, _ := io.ReadAll(r.Body)
		if len(body) > 0 {
			_ = json.Unmarshal(body, &rec.body)
		}

		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)

	return NewClient(srv.URL+"/", 2*time.Second), rec
}

func TestRegisterGuild(t *testing.T) {
	client, rec := newTestClient(t, http.StatusOK, `{"ok": 1}`)

	require.NoError(t, client.RegisterGuild(context.Background(), "628798768355082260", "69571"))
	assert.Equal(t, http.MethodPut, rec.method)
	assert.Equal(t, "/register", rec.path)
	assert.Equal(t, map[string]interface{}{"server": "628798768355082260", "guild": "69571"}, rec.body)
}

func TestRegisterGuildErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		response string
		kind     errs.RemoteKind
		message  string
	}{
		{
			name:     "duplicate registration",
			status:   http.StatusOK,
			response: `{"errorType": "ConditionalCheckFailedException", "errorMessage": "The conditional request failed"}`,
			kind:     errs.KindDuplicateRegistration,
			message:  "**Mr.Lobot** cannot add more than one guild per server.",
		},
		{
			name:     "other remote error",
			status:   http.StatusOK,
			response: `{"errorType": "ValidationException", "errorMessage": "bad key"}`,
			kind:     errs.KindOther,
			message:  "**Mr.Lobot** cannot register this guild.",
		},
		{
			name:     "not ok uses service message",
			status:   http.StatusOK,
			response: `{"ok": false, "message": "Guild already taken"}`,
			kind:     errs.KindOther,
			message:  "Guild already taken",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, tt.status, tt.response)

			err := client.RegisterGuild(context.Background(), "1", "2")
			var remote *errs.RemoteError
			require.ErrorAs(t, err, &remote)
			assert.Equal(t, tt.kind, remote.Kind)
			assert.Equal(t, tt.message, remote.UserMessage)
		})
	}
}

func TestTransportError(t *testing.T) {
	client, _ := newTestClient(t, http.StatusBadGateway, `oops`)

	_, err := client.GuildServers(context.Background(), "1")
	var transport *errs.TransportError
	require.ErrorAs(t, err, &transport)
	assert.Equal(t, http.StatusBadGateway, transport.Status)
}

func TestGuildServers(t *testing.T) {
	client, rec := newTestClient(t, http.StatusOK, `{"ok": true, "content": {"items": [
		{"srvr": "1", "guild": "100"}, {"srvr": "2", "guild": "200"}]}}`)

	items, err := client.GuildServers(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "/srvrs/1", rec.path)
	assert.Equal(t, []ServerGuild{{Server: "1", Guild: "100"}, {Server: "2", Guild: "200"}}, items)
}

func TestAddToSpreadsheet(t *testing.T) {
	client, rec := newTestClient(t, http.StatusOK, `{"ok": 1, "content": {"new": [1, "2"], "old": [3], "is_new": false}}`)

	result, err := client.AddToSpreadsheet(context.Background(), "tw", "69571", []int{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, rec.method)
	assert.Equal(t, "/spreadsheet/tw", rec.path)
	assert.Equal(t, "69571", rec.body["guild"])
	assert.Equal(t, []interface{}{1.0, 2.0, 3.0}, rec.body["chars"])
	assert.Equal(t, IDList{1, 2}, result.Added)
	assert.Equal(t, IDList{3}, result.Repeated)
	assert.False(t, result.IsNew)
}

func TestRemoveFromSpreadsheet(t *testing.T) {
	t.Run("empty list omits chars and deletes the sheet", func(t *testing.T) {
		client, rec := newTestClient(t, http.StatusOK, `{"ok": true, "message": "Sheet removed",
			"content": {"deleted": [1, 2], "left": [], "sheet_removed": true}}`)

		result, err := client.RemoveFromSpreadsheet(context.Background(), "tw", "69571", nil)
		require.NoError(t, err)
		assert.Equal(t, http.MethodDelete, rec.method)
		_, hasChars := rec.body["chars"]
		assert.False(t, hasChars)
		assert.True(t, result.SheetRemoved)
		assert.Equal(t, "Sheet removed", result.Message)
	})

	t.Run("sentinel keeps chars present", func(t *testing.T) {
		client, rec := newTestClient(t, http.StatusOK, `{"ok": true, "message": "",
			"content": {"deleted": [], "left": [1, 2], "sheet_removed": false}}`)

		result, err := client.RemoveFromSpreadsheet(context.Background(), "tw", "69571", []int{NoopUnitID})
		require.NoError(t, err)
		assert.Equal(t, []interface{}{-1.0}, rec.body["chars"])
		assert.False(t, result.SheetRemoved)
		assert.Equal(t, IDList{1, 2}, result.Left)
	})

	t.Run("missing sheet", func(t *testing.T) {
		client, _ := newTestClient(t, http.StatusOK, `{"ok": false, "message": "no sheet", "content": {}}`)

		_, err := client.RemoveFromSpreadsheet(context.Background(), "tw", "69571", nil)
		assert.True(t, errs.IsKind(err, errs.KindNotFound))
		assert.Contains(t, errs.UserMessage(err), "did not find the spreadsheet **tw**")
	})
}

func TestSpreadsheet(t *testing.T) {
	client, rec := newTestClient(t, http.StatusOK, `{"ok": true, "content": {"sheet": {"sheet": "tw", "char_ids": ["10", "20"]}}}`)

	sheet, err := client.Spreadsheet(context.Background(), "69571", "tw")
	require.NoError(t, err)
	assert.Equal(t, "/spreadsheet/tw/69571", rec.path)
	assert.Equal(t, []int{10, 20}, sheet.IDs())

	client, _ = newTestClient(t, http.StatusOK, `{"ok": true, "content": {"sheet": {}}}`)
	_, err = client.Spreadsheet(context.Background(), "69571", "tw")
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}

func TestSpreadsheets(t *testing.T) {
	client, rec := newTestClient(t, http.StatusOK, `{"ok": true, "content": {"sheets": [
		{"sheet": "tw-def", "char_ids": [1]}, {"sheet": "tw-off", "char_ids": [2, 3]}]}}`)

	sheets, err := client.Spreadsheets(context.Background(), "69571", "tw")
	require.NoError(t, err)
	assert.Equal(t, "/spreadsheets/69571", rec.path)
	assert.Equal(t, "start=tw", rec.query)
	require.Len(t, sheets, 2)
	assert.Equal(t, "tw-off", sheets[1].Name)
	assert.Equal(t, []int{2, 3}, sheets[1].IDs())
}
