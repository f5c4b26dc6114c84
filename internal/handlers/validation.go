package handlers

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/snippets/pkg/errors"
	"github.com/charlesng35/snippets/pkg/response"
	appValidator "github.com/charlesng35/snippets/pkg/validator"
)

// bindAndValidate binds the JSON body into dest and runs the struct rules.
// On failure the error response is already written and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, validationError(err))
		return false
	}

	return true
}

// validationError maps validator failures onto per-field messages keyed by
// the JSON field name.
func validationError(err error) *appErrors.AppError {
	var ve appValidator.ValidationErrors
	if !stderrors.As(err, &ve) || len(ve) == 0 {
		return appErrors.NewBadRequest("invalid request payload")
	}

	fields := make(map[string]string, len(ve))
	for _, failure := range ve {
		if _, seen := fields[failure.Field]; seen {
			continue
		}
		fields[failure.Field] = fieldMessage(failure)
	}
	return appErrors.NewValidation(fields)
}

func fieldMessage(failure appValidator.ValidationError) string {
	field := prettifyFieldName(failure.Field)
	switch failure.Tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, failure.Param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, failure.Param)
	case "uuid4":
		return fmt.Sprintf("%s must be a valid UUID", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, strings.ReplaceAll(failure.Param, " ", ", "))
	case "notblank":
		return fmt.Sprintf("%s must not be empty", field)
	case "gte", "lte":
		return fmt.Sprintf("%s is out of range (%s %s)", field, failure.Tag, failure.Param)
	}
	if failure.Param != "" {
		return fmt.Sprintf("%s failed validation: %s=%s", field, failure.Tag, failure.Param)
	}
	return fmt.Sprintf("%s failed validation: %s", field, failure.Tag)
}

func prettifyFieldName(name string) string {
	if name == "" {
		return "field"
	}
	name = strings.ReplaceAll(name, "_", " ")
	return strings.ToLower(name)
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

const maxPerPage = 200

// pagination reads page/per_page query parameters.
func pagination(c *gin.Context, defaultPerPage int) (int, int) {
	page := parseIntQuery(c, "page", 1)
	if page < 1 {
		page = 1
	}
	per := parseIntQuery(c, "per_page", defaultPerPage)
	if per < 1 {
		per = defaultPerPage
	}
	if per > maxPerPage {
		per = maxPerPage
	}
	return page, per
}

func parseBoolQuery(c *gin.Context, key string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(c.Query(key)))
	return err == nil && value
}
