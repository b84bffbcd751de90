// Package locale loads the display strings shown alongside transfer
// snapshots. Catalogs are embedded YAML files, one per language.
package locale

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Message keys used by the engine and the CLI.
const (
	KeyTitle          = "title"
	KeyDescription    = "desc"
	KeyDownloadLabel  = "downloadLabel"
	KeyUploadLabel    = "uploadLabel"
	KeySizeLabel      = "sizeLabel"
	KeyThreadLabel    = "threadLabel"
	KeyTotalProgress  = "totalProgressLabel"
	KeyTotalSpeed     = "totalSpeedLabel"
	KeyStart          = "startButton"
	KeyStop           = "stopButton"
	KeyModeDownload   = "modeDownload"
	KeyModeUpload     = "modeUpload"
	KeyModeJoiner     = "modeJoiner"
	KeyCompletion     = "completionMessage"
	KeySlowNetwork    = "slowNetworkWarning"
	KeyInvalidSize    = "invalidSizeError"
	KeyNoDirection    = "noDirectionError"
	KeyNoWorkers      = "noWorkersError"
	KeyDownloadError  = "downloadError"
	KeyUploadError    = "uploadError"
	KeyStoppedMessage = "stoppedMessage"
)

//go:embed langs/*.yaml
var langs embed.FS

var (
	supported = []language.Tag{language.English, language.Korean}
	files     = []string{"en", "ko"}
	matcher   = language.NewMatcher(supported)
)

// Catalog maps message keys to strings in one language. Missing keys fall
// back to English, then to the key itself.
type Catalog struct {
	Tag      language.Tag
	messages map[string]string
	fallback map[string]string
}

// Load returns the catalog best matching lang, e.g. "ko", "ko-KR" or
// "ko_KR.UTF-8". An empty or unknown lang selects English.
func Load(lang string) (*Catalog, error) {
	_, idx := language.MatchStrings(matcher, normalize(lang))

	fallback, err := read(files[0])
	if err != nil {
		return nil, err
	}
	if idx == 0 {
		return &Catalog{Tag: supported[0], messages: fallback, fallback: fallback}, nil
	}

	messages, err := read(files[idx])
	if err != nil {
		return nil, err
	}
	return &Catalog{Tag: supported[idx], messages: messages, fallback: fallback}, nil
}

// Default returns the English catalog.
func Default() *Catalog {
	c, err := Load("en")
	if err != nil {
		// The catalog is embedded; failing to parse it is a build defect.
		panic(err)
	}
	return c
}

// Detect returns the language from the LC_ALL, LC_MESSAGES or LANG
// environment variables, in that order.
func Detect() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(key); v != "" && v != "C" && v != "POSIX" {
			return v
		}
	}
	return ""
}

// Text returns the message for key.
func (c *Catalog) Text(key string) string {
	if v, ok := c.messages[key]; ok {
		return v
	}
	if v, ok := c.fallback[key]; ok {
		return v
	}
	return key
}

// Format returns the message for key with each {name} replaced by args[name].
func (c *Catalog) Format(key string, args map[string]string) string {
	s := c.Text(key)
	for name, value := range args {
		s = strings.ReplaceAll(s, "{"+name+"}", value)
	}
	return s
}

func read(name string) (map[string]string, error) {
	data, err := langs.ReadFile("langs/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("locale: read %s: %w", name, err)
	}
	var m map[string]string
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("locale: parse %s: %w", name, err)
	}
	return m, nil
}

// normalize turns POSIX locale names into BCP 47 ("ko_KR.UTF-8" -> "ko-KR").
func normalize(lang string) string {
	if i := strings.IndexAny(lang, ".@"); i >= 0 {
		lang = lang[:i]
	}
	return strings.ReplaceAll(lang, "_", "-")
}
