package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/charlesng35/snippets/internal/cache"
	"github.com/charlesng35/snippets/internal/database"
	"github.com/charlesng35/snippets/internal/models"
	"github.com/charlesng35/snippets/pkg/logger"
	"github.com/charlesng35/snippets/pkg/metrics"
)

// SnippetsVersion is reported to the insertion widget by the data endpoint.
const SnippetsVersion = "2.3.0"

const (
	// generation counters outlive every cached visible set
	snippetGenerationTTL = 30 * 24 * time.Hour
	globalGenerationKey  = "snippets:gen:global"
)

// SnippetOwner selects either the global pseudo-owner or one user.
type SnippetOwner struct {
	UserID string
	Global bool
}

// GlobalOwner selects global snippets.
func GlobalOwner() SnippetOwner { return SnippetOwner{Global: true} }

// UserOwner selects the private snippets of userID.
func UserOwner(userID string) SnippetOwner { return SnippetOwner{UserID: strings.TrimSpace(userID)} }

func (o SnippetOwner) valid() bool { return o.Global || o.UserID != "" }

func (o SnippetOwner) scope(db *gorm.DB) *gorm.DB {
	if o.Global {
		return db.Where("user_id IS NULL")
	}
	return db.Where("user_id = ?", o.UserID)
}

// CreateSnippetInput captures the fields of a new snippet. A nil or blank
// UserID creates a global snippet.
type CreateSnippetInput struct {
	UserID *string
	Type   int
	Name   string
	Value  string
}

// UpdateSnippetInput describes mutable snippet fields. A nil pointer indicates
// no change. Ownership and type cannot be changed.
type UpdateSnippetInput struct {
	Name  *string
	Value *string
}

// ListSnippetsOptions controls the management listing.
type ListSnippetsOptions struct {
	Owner    SnippetOwner
	Page     int
	PageSize int
}

// SnippetService manages snippet records and the cached visible sets
// returned to the insertion widget.
type SnippetService struct {
	db       *gorm.DB
	audit    *AuditService
	cache    cache.Store
	cacheTTL time.Duration
	group    singleflight.Group
	log      *zap.Logger
}

// SnippetServiceOption customises a SnippetService.
type SnippetServiceOption func(*SnippetService)

// WithSnippetCache caches visible snippet sets in store for ttl.
func WithSnippetCache(store cache.Store, ttl time.Duration) SnippetServiceOption {
	return func(s *SnippetService) {
		if store != nil && ttl > 0 {
			s.cache = store
			s.cacheTTL = ttl
		}
	}
}

// WithSnippetAudit records snippet mutations.
func WithSnippetAudit(audit *AuditService) SnippetServiceOption {
	return func(s *SnippetService) {
		s.audit = audit
	}
}

// NewSnippetService constructs a snippet service once a database handle is supplied.
func NewSnippetService(db *gorm.DB, opts ...SnippetServiceOption) (*SnippetService, error) {
	if db == nil {
		return nil, errors.New("snippet service: db is required")
	}
	svc := &SnippetService{db: db, log: logger.WithModule("snippets")}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

func validateSnippetFields(name, value string) error {
	if strings.TrimSpace(name) == "" {
		return ErrSnippetNameEmpty
	}
	if strings.TrimSpace(value) == "" {
		return ErrSnippetValueEmpty
	}
	if utf8.RuneCountInString(name) > models.SnippetNameMaxLength {
		return ErrSnippetNameTooLong
	}
	return nil
}

// Create persists a new snippet.
func (s *SnippetService) Create(ctx context.Context, input CreateSnippetInput) (*models.Snippet, error) {
	ctx = ensureContext(ctx)

	snippet, err := newSnippet(input)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&snippet).Error; err != nil {
		return nil, fmt.Errorf("snippet service: create: %w", err)
	}

	s.invalidate(ctx, &snippet)
	metrics.SnippetOperations.WithLabelValues("create").Inc()
	recordAudit(s.audit, ctx, AuditEntry{
		Action:   "snippet.create",
		Resource: snippet.ID,
		Result:   "success",
		Metadata: snippetAuditMetadata(&snippet),
	})
	return &snippet, nil
}

// CreateMany validates every input before writing any, then stores them in
// one transaction. Either all snippets are created or none.
func (s *SnippetService) CreateMany(ctx context.Context, inputs []CreateSnippetInput) ([]models.Snippet, error) {
	ctx = ensureContext(ctx)

	snippets := make([]models.Snippet, len(inputs))
	for i, input := range inputs {
		snippet, err := newSnippet(input)
		if err != nil {
			return nil, fmt.Errorf("snippet %d (%q): %w", i+1, input.Name, err)
		}
		snippets[i] = snippet
	}
	if len(snippets) == 0 {
		return snippets, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&snippets).Error
	})
	if err != nil {
		return nil, fmt.Errorf("snippet service: create many: %w", err)
	}

	for i := range snippets {
		s.invalidate(ctx, &snippets[i])
	}
	metrics.SnippetOperations.WithLabelValues("create").Add(float64(len(snippets)))
	recordAudit(s.audit, ctx, AuditEntry{
		Action:   "snippet.import",
		Resource: "snippets",
		Result:   AuditSuccess,
		Metadata: map[string]any{"count": len(snippets)},
	})
	return snippets, nil
}

func newSnippet(input CreateSnippetInput) (models.Snippet, error) {
	name := strings.TrimSpace(input.Name)
	if err := validateSnippetFields(name, input.Value); err != nil {
		return models.Snippet{}, err
	}
	if input.Type != models.SnippetTypeText {
		return models.Snippet{}, ErrSnippetTypeInvalid
	}
	return models.Snippet{
		UserID: trimmedPtr(input.UserID),
		Type:   input.Type,
		Name:   name,
		Value:  input.Value,
	}, nil
}

// Get loads a snippet by id.
func (s *SnippetService) Get(ctx context.Context, id string) (*models.Snippet, error) {
	ctx = ensureContext(ctx)

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrSnippetNotFound
	}

	var snippet models.Snippet
	err := s.db.WithContext(ctx).First(&snippet, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSnippetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("snippet service: get: %w", err)
	}
	return &snippet, nil
}

// LoadByID returns the snippets among ids that belong to owner. Ids owned by
// someone else are silently skipped.
func (s *SnippetService) LoadByID(ctx context.Context, ids []string, owner SnippetOwner) ([]models.Snippet, error) {
	ctx = ensureContext(ctx)

	ids = normaliseIDs(ids)
	if len(ids) == 0 || !owner.valid() {
		return []models.Snippet{}, nil
	}

	var snippets []models.Snippet
	query := owner.scope(s.db.WithContext(ctx).Model(&models.Snippet{})).Where("id IN ?", ids)
	if err := query.Order("LOWER(name) ASC").Order("id ASC").Find(&snippets).Error; err != nil {
		return nil, fmt.Errorf("snippet service: load by id: %w", err)
	}
	return snippets, nil
}

// LoadByTypeUser returns the snippets of type visible to userID: the user's
// own snippets plus, when includeGlobal is set, the global ones. An empty
// userID selects only global snippets.
func (s *SnippetService) LoadByTypeUser(ctx context.Context, snippetType int, userID string, includeGlobal bool) ([]models.Snippet, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)

	if userID == "" && !includeGlobal {
		return []models.Snippet{}, nil
	}
	if s.cache == nil {
		return s.queryVisible(ctx, snippetType, userID, includeGlobal)
	}

	key, err := s.visibleKey(ctx, snippetType, userID, includeGlobal)
	if err != nil {
		metrics.SnippetCache.WithLabelValues("error").Inc()
		s.log.Warn("snippet cache unavailable", zap.Error(err))
		return s.queryVisible(ctx, snippetType, userID, includeGlobal)
	}

	if raw, ok, err := s.cache.Get(ctx, key); err != nil {
		metrics.SnippetCache.WithLabelValues("error").Inc()
		s.log.Warn("snippet cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		var cached []models.Snippet
		if err := json.Unmarshal(raw, &cached); err == nil {
			metrics.SnippetCache.WithLabelValues("hit").Inc()
			return cached, nil
		}
		metrics.SnippetCache.WithLabelValues("error").Inc()
	} else {
		metrics.SnippetCache.WithLabelValues("miss").Inc()
	}

	result, err, _ := s.group.Do(key, func() (any, error) {
		snippets, err := s.queryVisible(ctx, snippetType, userID, includeGlobal)
		if err != nil {
			return nil, err
		}
		if encoded, err := json.Marshal(snippets); err == nil {
			if err := s.cache.Set(ctx, key, encoded, s.cacheTTL); err != nil {
				s.log.Warn("snippet cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
		return snippets, nil
	})
	if err != nil {
		return nil, err
	}

	shared := result.([]models.Snippet)
	return append([]models.Snippet(nil), shared...), nil
}

func (s *SnippetService) queryVisible(ctx context.Context, snippetType int, userID string, includeGlobal bool) ([]models.Snippet, error) {
	query := s.db.WithContext(ctx).Model(&models.Snippet{}).Where("type = ?", snippetType)
	switch {
	case userID != "" && includeGlobal:
		query = query.Where("(user_id = ? OR user_id IS NULL)", userID)
	case userID != "":
		query = query.Where("user_id = ?", userID)
	default:
		query = query.Where("user_id IS NULL")
	}

	snippets := []models.Snippet{}
	if err := query.Order("LOWER(name) ASC").Order("id ASC").Find(&snippets).Error; err != nil {
		return nil, fmt.Errorf("snippet service: load visible: %w", err)
	}
	return snippets, nil
}

// Update changes the name and/or value of a snippet.
func (s *SnippetService) Update(ctx context.Context, id string, input UpdateSnippetInput) (*models.Snippet, error) {
	ctx = ensureContext(ctx)

	snippet, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	name, value := snippet.Name, snippet.Value
	if input.Name != nil {
		name = strings.TrimSpace(*input.Name)
		if name != snippet.Name {
			updates["name"] = name
		}
	}
	if input.Value != nil {
		value = *input.Value
		if value != snippet.Value {
			updates["value"] = value
		}
	}
	if err := validateSnippetFields(name, value); err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return snippet, nil
	}

	if err := s.db.WithContext(ctx).Model(snippet).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("snippet service: update: %w", err)
	}
	snippet.Name, snippet.Value = name, value

	s.invalidate(ctx, snippet)
	metrics.SnippetOperations.WithLabelValues("update").Inc()

	fields := make([]string, 0, len(updates))
	for field := range updates {
		fields = append(fields, field)
	}
	metadata := snippetAuditMetadata(snippet)
	metadata["fields"] = fields
	recordAudit(s.audit, ctx, AuditEntry{
		Action:   "snippet.update",
		Resource: snippet.ID,
		Result:   "success",
		Metadata: metadata,
	})
	return snippet, nil
}

// Delete removes a snippet by identifier.
func (s *SnippetService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	snippet, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&models.Snippet{}, "id = ?", snippet.ID).Error; err != nil {
		return fmt.Errorf("snippet service: delete: %w", err)
	}

	s.invalidate(ctx, snippet)
	metrics.SnippetOperations.WithLabelValues("delete").Inc()
	recordAudit(s.audit, ctx, AuditEntry{
		Action:   "snippet.delete",
		Resource: snippet.ID,
		Result:   "success",
		Metadata: snippetAuditMetadata(snippet),
	})
	return nil
}

// DeleteByID removes the snippets among ids that belong to owner and returns
// the ids actually deleted.
func (s *SnippetService) DeleteByID(ctx context.Context, ids []string, owner SnippetOwner) ([]string, error) {
	ctx = ensureContext(ctx)

	snippets, err := s.LoadByID(ctx, ids, owner)
	if err != nil {
		return nil, err
	}
	if len(snippets) == 0 {
		return []string{}, nil
	}

	deleted := make([]string, 0, len(snippets))
	for _, snippet := range snippets {
		deleted = append(deleted, snippet.ID)
	}

	query := owner.scope(s.db.WithContext(ctx)).Where("id IN ?", deleted)
	if err := query.Delete(&models.Snippet{}).Error; err != nil {
		return nil, fmt.Errorf("snippet service: bulk delete: %w", err)
	}

	s.invalidateOwner(ctx, owner)
	metrics.SnippetOperations.WithLabelValues("delete").Add(float64(len(deleted)))
	recordAudit(s.audit, ctx, AuditEntry{
		Action:   "snippet.bulk_delete",
		Resource: ownerResource(owner),
		Result:   "success",
		Metadata: map[string]any{"ids": deleted},
	})
	return deleted, nil
}

// DeleteByUserID removes every private snippet of userID. It backs the
// account deletion cascade.
func (s *SnippetService) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, nil
	}

	removed, err := deleteOwnedBy(s.db.WithContext(ctx), userID)
	if err != nil {
		return 0, err
	}
	s.invalidateOwner(ctx, UserOwner(userID))
	return removed, nil
}

func deleteOwnedBy(db *gorm.DB, userID string) (int64, error) {
	result := db.Where("user_id = ?", userID).Delete(&models.Snippet{})
	if result.Error != nil {
		return 0, fmt.Errorf("snippet service: delete by user: %w", result.Error)
	}
	metrics.SnippetOperations.WithLabelValues("cascade").Add(float64(result.RowsAffected))
	return result.RowsAffected, nil
}

// DeleteOrphans removes private snippets whose owner no longer exists.
func (s *SnippetService) DeleteOrphans(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	removed, err := database.DeleteOrphanSnippets(s.db.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("snippet service: delete orphans: %w", err)
	}
	if removed > 0 {
		metrics.SnippetOperations.WithLabelValues("orphans").Add(float64(removed))
		s.log.Info("removed orphaned snippets", zap.Int64("count", removed))
	}
	return removed, nil
}

// List returns one page of the owner's snippets ordered by name.
func (s *SnippetService) List(ctx context.Context, opts ListSnippetsOptions) ([]models.Snippet, int64, error) {
	ctx = ensureContext(ctx)
	if !opts.Owner.valid() {
		return []models.Snippet{}, 0, nil
	}
	page, perPage := pageBounds(opts.Page, opts.PageSize)

	query := opts.Owner.scope(s.db.WithContext(ctx).Model(&models.Snippet{}))

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("snippet service: count: %w", err)
	}

	snippets := []models.Snippet{}
	if err := query.
		Order("LOWER(name) ASC").
		Order("id ASC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&snippets).Error; err != nil {
		return nil, 0, fmt.Errorf("snippet service: list: %w", err)
	}
	return snippets, total, nil
}

func (s *SnippetService) visibleKey(ctx context.Context, snippetType int, userID string, includeGlobal bool) (string, error) {
	globalGen, err := s.generation(ctx, globalGenerationKey)
	if err != nil {
		return "", err
	}
	var userGen int64
	if userID != "" {
		if userGen, err = s.generation(ctx, userGenerationKey(userID)); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("snippets:visible:%d:%s:%t:g%d:u%d", snippetType, userID, includeGlobal, globalGen, userGen), nil
}

func (s *SnippetService) generation(ctx context.Context, key string) (int64, error) {
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil || !ok {
		return 0, err
	}
	gen, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("snippet cache: bad generation %q: %w", raw, err)
	}
	return gen, nil
}

func (s *SnippetService) invalidate(ctx context.Context, snippet *models.Snippet) {
	if snippet.IsGlobal() {
		s.invalidateOwner(ctx, GlobalOwner())
		return
	}
	s.invalidateOwner(ctx, UserOwner(*snippet.UserID))
}

// invalidateOwner bumps the generation counter so previously cached visible
// sets for that owner are no longer addressed.
func (s *SnippetService) invalidateOwner(ctx context.Context, owner SnippetOwner) {
	if s.cache == nil || !owner.valid() {
		return
	}
	key := globalGenerationKey
	if !owner.Global {
		key = userGenerationKey(owner.UserID)
	}
	if _, _, err := s.cache.IncrementWithTTL(ctx, key, snippetGenerationTTL); err != nil {
		s.log.Warn("snippet cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}

func userGenerationKey(userID string) string {
	return "snippets:gen:user:" + userID
}

func ownerResource(owner SnippetOwner) string {
	if owner.Global {
		return "global"
	}
	return owner.UserID
}

func snippetAuditMetadata(snippet *models.Snippet) map[string]any {
	metadata := map[string]any{
		"name":   snippet.Name,
		"type":   snippet.Type,
		"global": snippet.IsGlobal(),
	}
	if !snippet.IsGlobal() {
		metadata["owner_id"] = *snippet.UserID
	}
	return metadata
}
