// Package i18n holds the translated strings used by the snippet endpoints.
package i18n

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/locales"
	"github.com/go-playground/locales/de"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/fr"
	ut "github.com/go-playground/universal-translator"
	"golang.org/x/text/language"
)

// Message keys.
const (
	KeyName            = "name"
	KeyDescription     = "description"
	KeyPatternTitle    = "pattern_title"
	// KeyPatternHelp takes the placeholder tokens as parameters, in the
	// order user, reporter, handler, project, bug, summary.
	KeyPatternHelp     = "pattern_help"
	KeySelectLabel     = "select_label"
	KeySelectDefault   = "select_default"
	KeyListTitle       = "list_title"
	KeyListGlobalTitle = "list_global_title"
	KeyErrorNameEmpty  = "error_name_empty"
	KeyErrorValueEmpty = "error_value_empty"
)

// DefaultLocale is used when no requested locale is available.
const DefaultLocale = "en"

var catalog = map[string]map[string]string{
	"en": {
		KeyName:            "Snippets",
		KeyDescription:     "Reusable text snippets for bug notes",
		KeyPatternTitle:    "Snippet placeholders",
		KeyPatternHelp:     "The following placeholders are replaced when a snippet is inserted: {0} your username, {1} the bug reporter, {2} the assigned handler, {3} the project name, {4} the bug id, {5} the bug summary.",
		KeySelectLabel:     "Snippets:",
		KeySelectDefault:   "-- Insert snippet --",
		KeyListTitle:       "My Snippets",
		KeyListGlobalTitle: "Global Snippets",
		KeyErrorNameEmpty:  "Snippet name must not be empty.",
		KeyErrorValueEmpty: "Snippet text must not be empty.",
	},
	"de": {
		KeyName:            "Textbausteine",
		KeyDescription:     "Wiederverwendbare Textbausteine für Notizen",
		KeyPatternTitle:    "Platzhalter",
		KeyPatternHelp:     "Folgende Platzhalter werden beim Einfügen ersetzt: {0} Ihr Benutzername, {1} der Melder, {2} der Bearbeiter, {3} der Projektname, {4} die Eintragsnummer, {5} die Zusammenfassung.",
		KeySelectLabel:     "Textbausteine:",
		KeySelectDefault:   "-- Textbaustein einfügen --",
		KeyListTitle:       "Meine Textbausteine",
		KeyListGlobalTitle: "Globale Textbausteine",
		KeyErrorNameEmpty:  "Der Name darf nicht leer sein.",
		KeyErrorValueEmpty: "Der Text darf nicht leer sein.",
	},
	"fr": {
		KeyName:            "Extraits",
		KeyDescription:     "Extraits de texte réutilisables pour les notes",
		KeyPatternTitle:    "Variables des extraits",
		KeyPatternHelp:     "Les variables suivantes sont remplacées à l'insertion : {0} votre nom d'utilisateur, {1} le rapporteur, {2} le responsable, {3} le nom du projet, {4} le numéro du bogue, {5} le résumé.",
		KeySelectLabel:     "Extraits :",
		KeySelectDefault:   "-- Insérer un extrait --",
		KeyListTitle:       "Mes extraits",
		KeyListGlobalTitle: "Extraits globaux",
		KeyErrorNameEmpty:  "Le nom ne doit pas être vide.",
		KeyErrorValueEmpty: "Le texte ne doit pas être vide.",
	},
}

// Catalog resolves message keys for a set of supported locales.
type Catalog struct {
	uni      *ut.UniversalTranslator
	fallback string
}

// New builds the catalog. defaultLocale must be one of the bundled locales;
// an empty value selects DefaultLocale.
func New(defaultLocale string) (*Catalog, error) {
	defaultLocale = strings.ToLower(strings.TrimSpace(defaultLocale))
	if defaultLocale == "" {
		defaultLocale = DefaultLocale
	}

	supported := map[string]locales.Translator{
		"en": en.New(),
		"de": de.New(),
		"fr": fr.New(),
	}
	fallback, ok := supported[defaultLocale]
	if !ok {
		return nil, fmt.Errorf("i18n: unsupported default locale %q", defaultLocale)
	}

	all := make([]locales.Translator, 0, len(supported))
	for _, tag := range sortedKeys(supported) {
		all = append(all, supported[tag])
	}
	uni := ut.New(fallback, all...)

	for tag, messages := range catalog {
		trans, found := uni.GetTranslator(tag)
		if !found {
			return nil, fmt.Errorf("i18n: translator for %s not registered", tag)
		}
		for key, text := range messages {
			if err := trans.Add(key, text, false); err != nil {
				return nil, fmt.Errorf("i18n: add %s/%s: %w", tag, key, err)
			}
		}
	}

	if err := uni.VerifyTranslations(); err != nil {
		return nil, fmt.Errorf("i18n: verify: %w", err)
	}
	return &Catalog{uni: uni, fallback: defaultLocale}, nil
}

// Localizer translates keys for one resolved locale.
type Localizer struct {
	locale string
	trans  ut.Translator
	base   ut.Translator
}

// For picks the first supported locale among the candidates. Candidates may
// be region tags ("de-CH") or raw Accept-Language values.
func (c *Catalog) For(candidates ...string) *Localizer {
	base, _ := c.uni.GetTranslator(c.fallback)

	for _, tag := range expandCandidates(candidates) {
		if trans, found := c.uni.GetTranslator(tag); found {
			return &Localizer{locale: tag, trans: trans, base: base}
		}
	}
	return &Localizer{locale: c.fallback, trans: base, base: base}
}

// Locale reports the resolved locale tag.
func (l *Localizer) Locale() string {
	return l.locale
}

// T returns the translation of key with params filled into its {0}, {1}...
// slots. Keys missing in the locale fall back to the default locale and
// finally to the key itself.
func (l *Localizer) T(key string, params ...string) string {
	if text, err := l.trans.T(key, params...); err == nil && text != "" {
		return text
	}
	if text, err := l.base.T(key, params...); err == nil && text != "" {
		return text
	}
	return key
}

// expandCandidates parses Accept-Language style lists, highest quality
// first, and adds the base language after each regional tag. Values that
// do not parse are skipped.
func expandCandidates(values []string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(tag string) {
		if tag == "" || tag == "und" {
			return
		}
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}

	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			continue
		}
		tags, _, err := language.ParseAcceptLanguage(value)
		if err != nil {
			continue
		}
		for _, tag := range tags {
			if tag == language.Und {
				continue
			}
			add(strings.ToLower(strings.ReplaceAll(tag.String(), "-", "_")))
			if base, conf := tag.Base(); conf == language.Exact {
				add(base.String())
			}
		}
	}
	return out
}

func sortedKeys(m map[string]locales.Translator) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
