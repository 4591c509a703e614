package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

//go:embed locales/*.json
var localesFS embed.FS

var (
	translations = make(map[string]map[string]string)
	loadOnce     sync.Once
	loadErr      error
)

var DefaultLang = "en"

var languages = []string{"en", "es"}

// LoadTranslations parses the embedded catalogs. It is safe to call more
// than once; T and DetectLanguage call it on first use.
func LoadTranslations() error {
	loadOnce.Do(func() {
		for _, lang := range languages {
			data, err := localesFS.ReadFile(fmt.Sprintf("locales/%s.json", lang))
			if err != nil {
				loadErr = err
				return
			}
			var t map[string]string
			if err := json.Unmarshal(data, &t); err != nil {
				loadErr = fmt.Errorf("parsing %s catalog: %w", lang, err)
				return
			}
			translations[lang] = t
		}
	})
	return loadErr
}

func T(lang, key string) string {
	LoadTranslations()
	if t, ok := translations[lang]; ok {
		if val, ok := t[key]; ok {
			return val
		}
	}
	// Fallback to English
	if lang != DefaultLang {
		return T(DefaultLang, key)
	}
	return key
}

func DetectLanguage(r *http.Request) string {
	LoadTranslations()
	accept := r.Header.Get("Accept-Language")
	if accept != "" {
		// e.g. es-MX, es;q=0.9, en;q=0.8
		for _, part := range strings.Split(accept, ",") {
			lang := strings.TrimSpace(strings.Split(part, ";")[0])
			if len(lang) >= 2 {
				lang = strings.ToLower(lang[:2])
				if _, ok := translations[lang]; ok {
					return lang
				}
			}
		}
	}
	return DefaultLang
}
