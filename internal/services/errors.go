package services

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/charlesng35/snippets/pkg/errors"
)

var (
	// ErrSnippetNotFound indicates the requested snippet does not exist.
	ErrSnippetNotFound = apperrors.New("snippets.not_found", "Snippet not found", http.StatusNotFound)
	// ErrSnippetNameEmpty rejects snippets whose name is blank.
	ErrSnippetNameEmpty = apperrors.New("snippets.name_empty", "Snippet name must not be empty", http.StatusBadRequest)
	// ErrSnippetValueEmpty rejects snippets whose text is blank.
	ErrSnippetValueEmpty = apperrors.New("snippets.value_empty", "Snippet text must not be empty", http.StatusBadRequest)
	// ErrSnippetNameTooLong rejects names longer than the column allows.
	ErrSnippetNameTooLong = apperrors.New("snippets.name_too_long", "Snippet name is too long", http.StatusBadRequest)
	// ErrSnippetTypeInvalid rejects unknown snippet types.
	ErrSnippetTypeInvalid = apperrors.New("snippets.type_invalid", "Unsupported snippet type", http.StatusBadRequest)

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	// ErrRootUserImmutable ensures the root account cannot be deactivated or deleted.
	ErrRootUserImmutable = apperrors.New("USER_ROOT_IMMUTABLE", "Root user cannot perform this operation", http.StatusBadRequest)
	// ErrUserExists reports a username or email collision.
	ErrUserExists = apperrors.New("USER_EXISTS", "Username or email already exists", http.StatusConflict)

	// ErrProjectNotFound indicates the requested project does not exist.
	ErrProjectNotFound = apperrors.New("PROJECT_NOT_FOUND", "Project not found", http.StatusNotFound)
	// ErrBugNotFound indicates the requested bug does not exist.
	ErrBugNotFound = apperrors.New("BUG_NOT_FOUND", "Bug not found", http.StatusNotFound)

	// ErrAlreadyInitialized rejects a second setup run.
	ErrAlreadyInitialized = apperrors.New("ALREADY_INITIALIZED", "System already initialized", http.StatusConflict)
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint") ||
		strings.Contains(lower, "duplicate")
}
