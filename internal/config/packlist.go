package config

import "strings"

// Grammar selectors accepted in meta_type.
const (
	MetaText        = "text"
	MetaJS          = "js"
	metaQueryPrefix = "query:"
)

// Record key names accepted in json_keys.
const (
	KeyBotName    = "bot_name"
	KeyPackNumber = "packnumber"
	KeySize       = "size"
	KeyFilename   = "filename"
)

// Packlist describes one watched bot catalogue.
type Packlist struct {
	// URL serves the packlist over HTTP. When empty the list is requested
	// from the bot itself.
	URL                    string            `toml:"url"`
	Current                string            `toml:"current"`
	Trusted                []string          `toml:"trusted"`
	RefreshInterval        int               `toml:"refresh_interval"`
	MaxConcurrentDownloads int               `toml:"max_concurrent_downloads"`
	LastPack               int               `toml:"last_pack"`
	MetaType               []string          `toml:"meta_type"`
	JSONKeys               map[string]string `toml:"json_keys"`
}

// GrammarKind reports which line grammar the packlist uses.
func (p Packlist) GrammarKind() string {
	for _, entry := range p.MetaType {
		if strings.EqualFold(strings.TrimSpace(entry), MetaJS) {
			return MetaJS
		}
	}
	return MetaText
}

// QueryTemplate returns the query string template from a "query:" meta entry.
func (p Packlist) QueryTemplate() (string, bool) {
	for _, entry := range p.MetaType {
		trimmed := strings.TrimSpace(entry)
		if len(trimmed) > len(metaQueryPrefix) && strings.EqualFold(trimmed[:len(metaQueryPrefix)], metaQueryPrefix) {
			return trimmed[len(metaQueryPrefix):], true
		}
	}
	return "", false
}

// UsesHTTP reports whether the packlist is fetched from a URL.
func (p Packlist) UsesHTTP() bool {
	return strings.TrimSpace(p.URL) != ""
}
