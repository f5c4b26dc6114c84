package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBaseModelBeforeCreateGeneratesID(t *testing.T) {
	var base BaseModel
	require.NoError(t, base.BeforeCreate(nil))
	require.NotEmpty(t, base.ID)

	existing := BaseModel{ID: "fixed"}
	require.NoError(t, existing.BeforeCreate(nil))
	require.Equal(t, "fixed", existing.ID)
}

func TestSessionAndAuditBeforeCreate(t *testing.T) {
	s := &Session{}
	require.NoError(t, s.BeforeCreate(nil))
	require.NotEmpty(t, s.ID)

	a := &AuditLog{}
	require.NoError(t, a.BeforeCreate(nil))
	require.NotEmpty(t, a.ID)
}

func TestParseAccessLevel(t *testing.T) {
	cases := map[string]AccessLevel{
		"viewer":        AccessViewer,
		"REPORTER":      AccessReporter,
		" developer ":   AccessDeveloper,
		"administrator": AccessAdministrator,
		"70":            AccessManager,
		"33":            AccessLevel(33),
	}
	for input, want := range cases {
		got, err := ParseAccessLevel(input)
		require.NoError(t, err, input)
		require.Equal(t, want, got, input)
	}

	for _, bad := range []string{"", "wizard", "-5"} {
		_, err := ParseAccessLevel(bad)
		require.Error(t, err, bad)
	}
}

func TestAccessLevelJSON(t *testing.T) {
	data, err := json.Marshal(AccessManager)
	require.NoError(t, err)
	require.JSONEq(t, `"manager"`, string(data))

	data, err = json.Marshal(AccessLevel(33))
	require.NoError(t, err)
	require.JSONEq(t, `33`, string(data))

	var level AccessLevel
	require.NoError(t, json.Unmarshal([]byte(`"updater"`), &level))
	require.Equal(t, AccessUpdater, level)
	require.NoError(t, json.Unmarshal([]byte(`90`), &level))
	require.Equal(t, AccessAdministrator, level)
	require.Error(t, json.Unmarshal([]byte(`true`), &level))
}

func TestUserEffectiveAccessLevel(t *testing.T) {
	require.Equal(t, AccessNone, (*User)(nil).EffectiveAccessLevel())
	require.Equal(t, AccessReporter, (&User{AccessLevel: AccessReporter}).EffectiveAccessLevel())
	require.Equal(t, AccessAdministrator, (&User{AccessLevel: AccessViewer, IsRoot: true}).EffectiveAccessLevel())
	require.True(t, AccessManager.Satisfies(AccessDeveloper))
	require.False(t, AccessReporter.Satisfies(AccessAdministrator))
}

func TestUserDisplayName(t *testing.T) {
	require.Equal(t, "alice", (&User{Username: "alice"}).DisplayName())
	require.Equal(t, "Alice Doe", (&User{Username: "alice", RealName: "Alice Doe"}).DisplayName())
}

func TestSnippetOwnership(t *testing.T) {
	owner := "user-1"
	private := Snippet{UserID: &owner}
	require.False(t, private.IsGlobal())
	require.True(t, private.OwnedBy("user-1"))
	require.False(t, private.OwnedBy("user-2"))

	empty := ""
	require.True(t, (&Snippet{}).IsGlobal())
	require.True(t, (&Snippet{UserID: &empty}).IsGlobal())
	require.False(t, (&Snippet{}).OwnedBy(""))
}

func TestSessionActive(t *testing.T) {
	now := time.Now()
	s := Session{ExpiresAt: now.Add(time.Minute)}
	require.True(t, s.Active(now))

	revoked := now
	s.RevokedAt = &revoked
	require.False(t, s.Active(now))

	require.False(t, (&Session{ExpiresAt: now.Add(-time.Second)}).Active(now))
}

func TestCacheEntryExpired(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.False(t, (&CacheEntry{}).Expired(now))
	require.False(t, (&CacheEntry{ExpiresAt: now.Add(time.Second)}).Expired(now))
	require.True(t, (&CacheEntry{ExpiresAt: now}).Expired(now))
	require.True(t, (&CacheEntry{ExpiresAt: now.Add(-time.Minute)}).Expired(now))
}

func TestAccessNobodyIsNeverSatisfied(t *testing.T) {
	for _, level := range append(AccessLevels(), AccessNone, AccessNobody, AccessLevel(500)) {
		require.False(t, level.Satisfies(AccessNobody), level.String())
		require.False(t, level.Satisfies(AccessNobody+1), level.String())
	}
	require.True(t, AccessNone.Satisfies(AccessNone))

	level, err := ParseAccessLevel("NOBODY")
	require.NoError(t, err)
	require.Equal(t, AccessNobody, level)

	require.True(t, AccessAdministrator.Assignable())
	require.True(t, AccessNone.Assignable())
	require.False(t, AccessNobody.Assignable())
	require.False(t, AccessLevel(-1).Assignable())
}
