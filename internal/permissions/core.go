package permissions

import "github.com/charlesng35/snippets/internal/models"

// Snippet permission identifiers. Their thresholds are usually overridden at
// runtime by the snippet settings.
const (
	SnippetsEditOwn    = "snippets.edit_own"
	SnippetsUseGlobal  = "snippets.use_global"
	SnippetsEditGlobal = "snippets.edit_global"
)

func init() {
	perms := []*Permission{
		{
			ID:          "user.view",
			Module:      "core",
			Threshold:   models.AccessAdministrator,
			Description: "View user accounts",
		},
		{
			ID:          "user.manage",
			Module:      "core",
			DependsOn:   []string{"user.view"},
			Threshold:   models.AccessAdministrator,
			Description: "Create, update and delete user accounts",
		},
		{
			ID:          "project.view",
			Module:      "core",
			Threshold:   models.AccessViewer,
			Description: "View projects",
		},
		{
			ID:          "project.create",
			Module:      "core",
			DependsOn:   []string{"project.view"},
			Threshold:   models.AccessDeveloper,
			Description: "Create projects",
		},
		{
			ID:          "bug.view",
			Module:      "core",
			Threshold:   models.AccessViewer,
			Description: "View bugs",
		},
		{
			ID:          "bug.create",
			Module:      "core",
			DependsOn:   []string{"bug.view"},
			Threshold:   models.AccessDeveloper,
			Description: "Create bugs",
		},
		{
			ID:          "audit.view",
			Module:      "core",
			Threshold:   models.AccessAdministrator,
			Description: "View audit logs",
		},
		{
			ID:          "security.audit",
			Module:      "core",
			Threshold:   models.AccessAdministrator,
			Description: "Run the configuration security audit",
		},
		{
			ID:          SnippetsEditOwn,
			Module:      "snippets",
			Threshold:   models.AccessReporter,
			Description: "Create and edit personal snippets",
		},
		{
			ID:          SnippetsUseGlobal,
			Module:      "snippets",
			Threshold:   models.AccessReporter,
			Description: "Insert global snippets",
		},
		{
			ID:          SnippetsEditGlobal,
			Module:      "snippets",
			Threshold:   models.AccessAdministrator,
			Description: "Manage global snippets and snippet settings",
		},
	}

	for _, perm := range perms {
		if err := Register(perm); err != nil {
			panic(err)
		}
	}
}
