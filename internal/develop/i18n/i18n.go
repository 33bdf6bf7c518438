// Package i18n resolves display-name locales for catalog items.
package i18n

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Locale keys used in the item catalog.
const (
	ZhCN = "zh_cn"
	JaJP = "ja_jp"
	EnUS = "en_us"
)

// DefaultLocale is used when a language cannot be matched.
const DefaultLocale = ZhCN

var (
	supportedTags = []language.Tag{
		language.SimplifiedChinese,
		language.Japanese,
		language.AmericanEnglish,
	}
	supportedLocales = []string{ZhCN, JaJP, EnUS}
	matcher          = language.NewMatcher(supportedTags)
)

// Locale maps a language preference to a catalog locale key. It accepts
// BCP 47 tags ("ja", "en-GB"), Accept-Language lists and the catalog keys
// themselves ("ja_jp").
func Locale(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return DefaultLocale
	}
	tags, _, err := language.ParseAcceptLanguage(strings.ReplaceAll(lang, "_", "-"))
	if err != nil || len(tags) == 0 {
		return DefaultLocale
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No || idx < 0 || idx >= len(supportedLocales) {
		return DefaultLocale
	}
	return supportedLocales[idx]
}

// fallbackOrder is tried after the requested locale.
var fallbackOrder = []string{ZhCN, JaJP, EnUS}

// ItemName picks the display name of an item for a locale key, falling
// back through the other catalog locales and finally to a generic label.
func ItemName(names map[string]string, id int, locale string) string {
	if name := strings.TrimSpace(names[locale]); name != "" {
		return name
	}
	for _, key := range fallbackOrder {
		if name := strings.TrimSpace(names[key]); name != "" {
			return name
		}
	}
	return fmt.Sprintf("item %d", id)
}
