package schedule

import (
	_ "embed"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed timezones.yaml
var timezonesYAML []byte

// DefaultTimezone is used when a schedule does not name one.
const DefaultTimezone = "UTC"

type timezoneTable struct {
	Aliases map[string]string `yaml:"aliases"`
}

var (
	aliasOnce sync.Once
	aliases   map[string]string
)

func loadAliases() map[string]string {
	aliasOnce.Do(func() {
		var t timezoneTable
		if err := yaml.Unmarshal(timezonesYAML, &t); err != nil {
			slog.Error("timezone alias table unreadable", "err", err)
			t.Aliases = map[string]string{}
		}
		aliases = t.Aliases
	})
	return aliases
}

// NormalizeTimezone maps legacy and alias zone names onto their canonical
// IANA name. Unknown names are returned unchanged; the remote scheduler is
// the one that rejects zones it does not recognize.
func NormalizeTimezone(tz string) string {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return DefaultTimezone
	}
	if canonical, ok := loadAliases()[tz]; ok {
		return canonical
	}
	return tz
}

// loadLocation normalizes tz and resolves it against the local tz database.
func loadLocation(tz string) (string, *time.Location, error) {
	name := NormalizeTimezone(tz)
	loc, err := time.LoadLocation(name)
	if err != nil {
		return name, nil, err
	}
	return name, loc, nil
}
