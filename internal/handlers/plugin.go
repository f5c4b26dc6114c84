package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/snippets/internal/i18n"
	"github.com/charlesng35/snippets/internal/models"
	"github.com/charlesng35/snippets/internal/services"
	"github.com/charlesng35/snippets/pkg/errors"
	"github.com/charlesng35/snippets/pkg/response"
)

const (
	mySnippetsPath     = "/api/snippets"
	globalSnippetsPath = "/api/snippets?global=1"
)

// PluginHandler serves the endpoints consumed by the snippet insertion widget
// and the plugin configuration page.
type PluginHandler struct {
	snippets *services.SnippetService
	settings *services.SnippetSettingsService
	access   *services.SnippetAccess
	users    *services.UserService
	bugs     *services.BugService
	catalog  *i18n.Catalog
}

func NewPluginHandler(
	snippets *services.SnippetService,
	settings *services.SnippetSettingsService,
	access *services.SnippetAccess,
	users *services.UserService,
	bugs *services.BugService,
	catalog *i18n.Catalog,
) *PluginHandler {
	return &PluginHandler{
		snippets: snippets,
		settings: settings,
		access:   access,
		users:    users,
		bugs:     bugs,
		catalog:  catalog,
	}
}

type helpPayload struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type widgetSnippet struct {
	ID     string  `json:"id"`
	UserID *string `json:"user_id"`
	Type   int     `json:"type"`
	Name   string  `json:"name"`
	Value  string  `json:"value"`
}

type dataPayload struct {
	Version  string          `json:"version"`
	Selector string          `json:"selector"`
	Label    string          `json:"label"`
	Default  string          `json:"default"`
	Snippets []widgetSnippet `json:"snippets"`
}

type menuLink struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type menuPayload struct {
	Account []menuLink `json:"account"`
	Manage  []menuLink `json:"manage"`
}

type updateSettingsRequest struct {
	EditGlobalThreshold *models.AccessLevel `json:"edit_global_threshold"`
	UseGlobalThreshold  *models.AccessLevel `json:"use_global_threshold"`
	EditOwnThreshold    *models.AccessLevel `json:"edit_own_threshold"`
	TextareaNames       []string            `json:"textarea_names" validate:"omitempty,max=32,dive,max=64"`
}

// GET /api/plugins/snippets/help
// The widget reads the bare object, not the response envelope.
func (h *PluginHandler) Help(c *gin.Context) {
	loc := localizer(c, h.catalog)
	c.JSON(http.StatusOK, helpPayload{
		Title: loc.T(i18n.KeyPatternTitle),
		Text:  loc.T(i18n.KeyPatternHelp, services.Placeholders...),
	})
}

// GET /api/plugins/snippets/data[/:bug_id]
// Private snippets are only included when the caller may edit their own;
// globals when they may use them. Bug id 0 means no bug.
func (h *PluginHandler) Data(c *gin.Context) {
	ctx := requestContext(c)

	bugID, err := parseBugID(c.Param("bug_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	target, err := services.ParseCleanTarget(c.Query("target"))
	if err != nil {
		response.Error(c, errors.NewBadRequest(err.Error()))
		return
	}

	user, err := currentUser(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}
	settings, err := h.settings.Get(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	caps, err := h.access.CapabilitiesWith(ctx, user, settings)
	if err != nil {
		response.Error(c, err)
		return
	}

	cctx := services.CleanContext{Username: user.Username}
	if bugID > 0 {
		details, err := h.bugs.Details(ctx, bugID)
		if err != nil {
			response.Error(c, err)
			return
		}
		cctx.Bug = details
	}

	userID := ""
	if caps.EditOwn {
		userID = user.ID
	}
	visible, err := h.snippets.LoadByTypeUser(ctx, models.SnippetTypeText, userID, caps.UseGlobal)
	if err != nil {
		response.Error(c, err)
		return
	}

	cleaned := services.Clean(visible, target, cctx)
	entries := make([]widgetSnippet, len(cleaned))
	for i, snippet := range cleaned {
		entries[i] = widgetSnippet{
			ID:     snippet.ID,
			UserID: snippet.UserID,
			Type:   snippet.Type,
			Name:   snippet.Name,
			Value:  snippet.Value,
		}
	}

	loc := localizer(c, h.catalog)
	c.JSON(http.StatusOK, dataPayload{
		Version:  services.SnippetsVersion,
		Selector: settings.Selector(),
		Label:    loc.T(i18n.KeySelectLabel),
		Default:  loc.T(i18n.KeySelectDefault),
		Snippets: entries,
	})
}

// GET /api/plugins/snippets/menu
func (h *PluginHandler) Menu(c *gin.Context) {
	user, err := currentUser(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}
	caps, err := h.access.Capabilities(requestContext(c), user)
	if err != nil {
		response.Error(c, err)
		return
	}

	loc := localizer(c, h.catalog)
	menu := menuPayload{Account: []menuLink{}, Manage: []menuLink{}}
	global := menuLink{Title: loc.T(i18n.KeyListGlobalTitle), URL: globalSnippetsPath}
	if caps.EditOwn {
		menu.Account = append(menu.Account, menuLink{Title: loc.T(i18n.KeyListTitle), URL: mySnippetsPath})
	}
	if caps.EditGlobal {
		menu.Account = append(menu.Account, global)
		menu.Manage = append(menu.Manage, global)
	}

	response.Success(c, http.StatusOK, menu)
}

// GET /api/plugins/snippets/config
func (h *PluginHandler) GetConfig(c *gin.Context) {
	settings, err := h.settings.Get(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, configPayload(settings, h.settings.Defaults()))
}

// PUT /api/plugins/snippets/config
func (h *PluginHandler) UpdateConfig(c *gin.Context) {
	var body updateSettingsRequest
	if !bindAndValidate(c, &body) {
		return
	}
	settings, err := h.settings.Update(requestContext(c), services.UpdateSnippetSettingsInput{
		EditGlobalThreshold: body.EditGlobalThreshold,
		UseGlobalThreshold:  body.UseGlobalThreshold,
		EditOwnThreshold:    body.EditOwnThreshold,
		TextareaNames:       body.TextareaNames,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, configPayload(settings, h.settings.Defaults()))
}

// DELETE /api/plugins/snippets/config restores the configured defaults.
func (h *PluginHandler) ResetConfig(c *gin.Context) {
	settings, err := h.settings.Reset(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, configPayload(settings, h.settings.Defaults()))
}

func configPayload(settings, defaults services.SnippetSettings) gin.H {
	return gin.H{
		"settings": settings,
		"defaults": defaults,
		"selector": settings.Selector(),
		"levels":   append(models.AccessLevels(), models.AccessNobody),
	}
}
