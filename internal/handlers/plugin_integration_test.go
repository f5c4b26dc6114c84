package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/snippets/internal/handlers/testutil"
	"github.com/charlesng35/snippets/internal/models"
	"github.com/charlesng35/snippets/internal/services"
)

type widgetData struct {
	Version  string `json:"version"`
	Selector string `json:"selector"`
	Label    string `json:"label"`
	Default  string `json:"default"`
	Snippets []struct {
		ID     string  `json:"id"`
		UserID *string `json:"user_id"`
		Name   string  `json:"name"`
		Value  string  `json:"value"`
	} `json:"snippets"`
}

func decodeWidget(t *testing.T, body []byte) widgetData {
	t.Helper()
	var data widgetData
	require.NoError(t, json.Unmarshal(body, &data), string(body))
	return data
}

func TestPluginHandler_DataSubstitutesPlaceholders(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	reporter := env.CreateUser(models.AccessReporter)
	handler := env.CreateUser(models.AccessDeveloper)
	token := env.Token(reporter)

	project, err := env.Services.Projects.Create(ctx, services.CreateProjectInput{Name: "Widgets"})
	require.NoError(t, err)
	bug, err := env.Services.Bugs.Create(ctx, services.CreateBugInput{
		ProjectID:  project.ID,
		ReporterID: reporter.ID,
		HandlerID:  &handler.ID,
		Summary:    "Broken <button>",
	})
	require.NoError(t, err)

	_, err = env.Services.Snippets.Create(ctx, services.CreateSnippetInput{
		UserID: &reporter.ID,
		Name:   "mine",
		Value:  "Hi {handler}, from {user}",
	})
	require.NoError(t, err)
	_, err = env.Services.Snippets.Create(ctx, services.CreateSnippetInput{
		Name:  "global",
		Value: "Bug {bug} in {project}: {summary}",
	})
	require.NoError(t, err)

	resp := env.Request(http.MethodGet, "/api/plugins/snippets/data/"+strconv.FormatUint(uint64(bug.ID), 10), nil, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	data := decodeWidget(t, resp.Body.Bytes())
	require.Equal(t, services.SnippetsVersion, data.Version)
	require.Equal(t, "textarea[name='bugnote_text']", data.Selector)
	require.Equal(t, "Snippets:", data.Label)
	require.Len(t, data.Snippets, 2)

	require.Equal(t, "global", data.Snippets[0].Name)
	require.Nil(t, data.Snippets[0].UserID)
	require.Equal(t, "Bug "+strconv.FormatUint(uint64(bug.ID), 10)+" in Widgets: Broken &lt;button&gt;", data.Snippets[0].Value)
	require.Equal(t, "Hi "+handler.Username+", from "+reporter.Username, data.Snippets[1].Value)

	raw := env.Request(http.MethodGet, "/api/plugins/snippets/data/"+strconv.FormatUint(uint64(bug.ID), 10)+"?target=raw", nil, token)
	require.Equal(t, http.StatusOK, raw.Code)
	require.Contains(t, decodeWidget(t, raw.Body.Bytes()).Snippets[0].Value, "Broken <button>")

	noBug := env.Request(http.MethodGet, "/api/plugins/snippets/data", nil, token)
	require.Equal(t, http.StatusOK, noBug.Code)
	require.Equal(t, "Bug {bug} in {project}: {summary}", decodeWidget(t, noBug.Body.Bytes()).Snippets[0].Value)

	missing := env.Request(http.MethodGet, "/api/plugins/snippets/data/999999", nil, token)
	require.Equal(t, http.StatusNotFound, missing.Code)

	badTarget := env.Request(http.MethodGet, "/api/plugins/snippets/data?target=pdf", nil, token)
	require.Equal(t, http.StatusBadRequest, badTarget.Code)
}

func TestPluginHandler_DataHonoursThresholds(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	viewer := env.CreateUser(models.AccessViewer)
	_, err := env.Services.Snippets.Create(ctx, services.CreateSnippetInput{UserID: &viewer.ID, Name: "legacy", Value: "old"})
	require.NoError(t, err)
	_, err = env.Services.Snippets.Create(ctx, services.CreateSnippetInput{Name: "global", Value: "shared"})
	require.NoError(t, err)

	resp := env.Request(http.MethodGet, "/api/plugins/snippets/data", nil, env.Token(viewer))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Empty(t, decodeWidget(t, resp.Body.Bytes()).Snippets)

	root := env.CreateRootUser()
	update := env.Request(http.MethodPut, "/api/plugins/snippets/config", map[string]any{
		"use_global_threshold": "viewer",
	}, env.Token(root))
	require.Equal(t, http.StatusOK, update.Code, update.Body.String())

	resp = env.Request(http.MethodGet, "/api/plugins/snippets/data", nil, env.Token(viewer))
	require.Equal(t, http.StatusOK, resp.Code)
	data := decodeWidget(t, resp.Body.Bytes())
	require.Len(t, data.Snippets, 1)
	require.Equal(t, "global", data.Snippets[0].Name)
}

func TestPluginHandler_HelpAndMenu(t *testing.T) {
	env := testutil.NewEnv(t)
	reporter := env.CreateUser(models.AccessReporter)
	admin := env.CreateUser(models.AccessAdministrator)

	help := env.Request(http.MethodGet, "/api/plugins/snippets/help?lang=fr", nil, env.Token(reporter))
	require.Equal(t, http.StatusOK, help.Code)
	var helpBody map[string]string
	require.NoError(t, json.Unmarshal(help.Body.Bytes(), &helpBody))
	require.Equal(t, "Variables des extraits", helpBody["title"])
	require.Contains(t, helpBody["text"], "{reporter}")

	type menu struct {
		Account []struct {
			Title string `json:"title"`
			URL   string `json:"url"`
		} `json:"account"`
		Manage []struct {
			URL string `json:"url"`
		} `json:"manage"`
	}

	resp := env.Request(http.MethodGet, "/api/plugins/snippets/menu", nil, env.Token(reporter))
	require.Equal(t, http.StatusOK, resp.Code)
	var reporterMenu menu
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &reporterMenu)
	require.Len(t, reporterMenu.Account, 1)
	require.Equal(t, "/api/snippets", reporterMenu.Account[0].URL)
	require.Empty(t, reporterMenu.Manage)

	resp = env.Request(http.MethodGet, "/api/plugins/snippets/menu", nil, env.Token(admin))
	require.Equal(t, http.StatusOK, resp.Code)
	var adminMenu menu
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &adminMenu)
	require.Len(t, adminMenu.Account, 2)
	require.Len(t, adminMenu.Manage, 1)
	require.Equal(t, "/api/snippets?global=1", adminMenu.Manage[0].URL)
}

func TestPluginHandler_ConfigLifecycle(t *testing.T) {
	env := testutil.NewEnv(t)
	reporter := env.CreateUser(models.AccessReporter)
	root := env.CreateRootUser()
	token := env.Token(root)

	denied := env.Request(http.MethodGet, "/api/plugins/snippets/config", nil, env.Token(reporter))
	require.Equal(t, http.StatusForbidden, denied.Code)

	type configBody struct {
		Settings services.SnippetSettings `json:"settings"`
		Defaults services.SnippetSettings `json:"defaults"`
		Selector string                   `json:"selector"`
	}

	update := env.Request(http.MethodPut, "/api/plugins/snippets/config", map[string]any{
		"edit_own_threshold": "developer",
		"textarea_names":     []string{"bugnote_text", "description"},
	}, token)
	require.Equal(t, http.StatusOK, update.Code, update.Body.String())
	var updated configBody
	testutil.DecodeInto(t, testutil.DecodeResponse(t, update).Data, &updated)
	require.Equal(t, models.AccessDeveloper, updated.Settings.EditOwnThreshold)
	require.Equal(t, "textarea[name='bugnote_text'],textarea[name='description']", updated.Selector)

	// reporters fall below the raised threshold
	resp := env.Request(http.MethodPost, "/api/snippets", map[string]any{"name": "n", "value": "v"}, env.Token(reporter))
	require.Equal(t, http.StatusForbidden, resp.Code)

	reset := env.Request(http.MethodDelete, "/api/plugins/snippets/config", nil, token)
	require.Equal(t, http.StatusOK, reset.Code)
	var restored configBody
	testutil.DecodeInto(t, testutil.DecodeResponse(t, reset).Data, &restored)
	require.Equal(t, restored.Defaults, restored.Settings)
	require.Equal(t, models.AccessReporter, restored.Settings.EditOwnThreshold)
}
