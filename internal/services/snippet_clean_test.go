package services

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/snippets/internal/models"
)

func cleanFixture() []models.Snippet {
	owner := "user-1"
	return []models.Snippet{
		{BaseModel: models.BaseModel{ID: "s1"}, UserID: &owner, Name: "Ack <b>", Value: "Hi {reporter},\nthanks from {user} on #{bug} ({project}: {summary}) -> {handler} {unknown}"},
		{BaseModel: models.BaseModel{ID: "s2"}, Name: "Plain", Value: "no placeholders & more"},
	}
}

func testBug() *BugDetails {
	return &BugDetails{ID: 42, Reporter: "rita", Handler: "hank", Project: "Core", Summary: "Crash <on> save"}
}

func TestCleanRawSubstitutesPlaceholders(t *testing.T) {
	input := cleanFixture()
	got := Clean(input, CleanTargetRaw, CleanContext{Username: "alice", Bug: testBug()})

	want := cleanFixture()
	want[0].Value = "Hi rita,\nthanks from alice on #42 (Core: Crash <on> save) -> hank {unknown}"

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected cleaned snippets (-want +got):\n%s", diff)
	}
	require.Equal(t, cleanFixture(), input, "input must not be modified")
	require.NotSame(t, input[0].UserID, got[0].UserID)
}

func TestCleanWithoutBugLeavesBugPlaceholders(t *testing.T) {
	got := Clean(cleanFixture(), CleanTargetRaw, CleanContext{Username: "alice"})
	require.Equal(t, "Hi {reporter},\nthanks from alice on #{bug} ({project}: {summary}) -> {handler} {unknown}", got[0].Value)
}

func TestCleanFormEscapes(t *testing.T) {
	got := Clean(cleanFixture(), CleanTargetForm, CleanContext{Username: "<alice>", Bug: testBug()})

	require.Equal(t, "Ack &lt;b&gt;", got[0].Name)
	require.Equal(t, "Hi rita,\nthanks from &lt;alice&gt; on #42 (Core: Crash &lt;on&gt; save) -&gt; hank {unknown}", got[0].Value)
	require.Equal(t, "no placeholders &amp; more", got[1].Value)
}

func TestCleanViewRendersLineBreaks(t *testing.T) {
	snippets := []models.Snippet{{Name: "multi", Value: "one\r\ntwo\nthree <x>"}}
	got := Clean(snippets, CleanTargetView, CleanContext{})
	require.Equal(t, "one<br />\ntwo<br />\nthree &lt;x&gt;", got[0].Value)
}

func TestCleanEmptyInput(t *testing.T) {
	require.Empty(t, Clean(nil, CleanTargetForm, CleanContext{}))
}

func TestParseCleanTarget(t *testing.T) {
	for input, want := range map[string]CleanTarget{"": CleanTargetForm, "FORM": CleanTargetForm, " view ": CleanTargetView, "raw": CleanTargetRaw} {
		got, err := ParseCleanTarget(input)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := ParseCleanTarget("html")
	require.Error(t, err)
}
