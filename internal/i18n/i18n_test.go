package i18n

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCatalogDefaultsToEnglish(t *testing.T) {
	cat, err := New("")
	require.NoError(t, err)

	loc := cat.For()
	require.Equal(t, "en", loc.Locale())
	require.Equal(t, "My Snippets", loc.T(KeyListTitle))
	require.Equal(t, "-- Insert snippet --", loc.T(KeySelectDefault))
}

func TestCatalogResolvesAcceptLanguage(t *testing.T) {
	cat, err := New("en")
	require.NoError(t, err)

	loc := cat.For("", "de-CH,de;q=0.9,en;q=0.8")
	require.Equal(t, "de", loc.Locale())
	require.Equal(t, "Globale Textbausteine", loc.T(KeyListGlobalTitle))

	loc = cat.For("fr")
	require.Equal(t, "fr", loc.Locale())
	require.Equal(t, "Mes extraits", loc.T(KeyListTitle))
}

func TestCatalogFallsBack(t *testing.T) {
	cat, err := New("de")
	require.NoError(t, err)

	loc := cat.For("ja-JP", "*")
	require.Equal(t, "de", loc.Locale())
	require.Equal(t, "unknown_key", loc.T("unknown_key"))
}

func TestCatalogRejectsUnsupportedDefault(t *testing.T) {
	_, err := New("xx")
	require.Error(t, err)
}

func TestEveryLocaleHasEveryKey(t *testing.T) {
	for tag, messages := range catalog {
		require.Len(t, messages, len(catalog["en"]), tag)
		for key := range catalog["en"] {
			require.NotEmpty(t, messages[key], "%s missing %s", tag, key)
		}
	}
}

func TestPatternHelpFillsPlaceholders(t *testing.T) {
	cat, err := New("en")
	require.NoError(t, err)

	tokens := []string{"{user}", "{reporter}", "{handler}", "{project}", "{bug}", "{summary}"}
	for tag := range catalog {
		text := cat.For(tag).T(KeyPatternHelp, tokens...)
		require.NotEqual(t, KeyPatternHelp, text, tag)
		for _, token := range tokens {
			require.Contains(t, text, token, tag)
		}
		require.NotContains(t, text, "{0}", tag)
	}
}

func TestCatalogOrdersByQuality(t *testing.T) {
	cat, err := New("en")
	require.NoError(t, err)

	require.Equal(t, "de", cat.For("fr;q=0.1, de;q=0.9").Locale())
	require.Equal(t, "fr", cat.For("ja, fr-CA;q=0.5, de;q=0.2").Locale())
	require.Equal(t, "en", cat.For("not a language tag;;").Locale())
}
