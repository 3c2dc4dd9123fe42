// Package config loads anecdote configuration files. A config file names
// the sites to fetch and their selector rules; the core never reads config
// itself, it receives constructed Site descriptors.
package config

import (
	"github.com/lazercorn/anecdote"
	"github.com/spf13/viper"
)

// Defaults applied when the config file omits a value.
const (
	DefaultTimeoutSeconds = 10
	DefaultRPS            = 1.0
)

// Config is the top-level application configuration.
type Config struct {
	// UserAgent identifies the fetcher to source sites. Empty means the
	// transport's default.
	UserAgent string `mapstructure:"user_agent"`

	// TimeoutSeconds is the per-request timeout.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`

	// RequestsPerSecond limits requests per host. Zero disables limiting.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`

	Sites []SiteConfig `mapstructure:"sites"`
}

// SiteConfig is the file representation of one site descriptor.
type SiteConfig struct {
	ID           string       `mapstructure:"id"`
	Name         string       `mapstructure:"name"`
	URLTemplate  string       `mapstructure:"url_template"`
	ListSelector string       `mapstructure:"list_selector"`
	ItemsPerPage int          `mapstructure:"items_per_page"`
	Content      FieldConfig  `mapstructure:"content"`
	URL          FieldConfig  `mapstructure:"url"`
	Rich         *RichConfig  `mapstructure:"rich"`
	PageToken    *FieldConfig `mapstructure:"page_token"`
}

// FieldConfig is the file representation of a field extraction rule.
type FieldConfig struct {
	Selector string          `mapstructure:"selector"`
	Attr     string          `mapstructure:"attr"`
	Prefix   string          `mapstructure:"prefix"`
	Replace  []ReplaceConfig `mapstructure:"replace"`
	UsePrev  bool            `mapstructure:"use_prev"`
}

// ReplaceConfig is one literal text substitution.
type ReplaceConfig struct {
	Old string `mapstructure:"old"`
	New string `mapstructure:"new"`
}

// RichConfig is the file representation of a rich content rule.
type RichConfig struct {
	FieldConfig `mapstructure:",squash"`
	Kind        string `mapstructure:"kind"`
}

// Load reads and validates a config file (YAML, JSON or TOML, by
// extension). Returns ECONFIG if the file cannot be read or a site
// descriptor is invalid.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("timeout_seconds", DefaultTimeoutSeconds)
	v.SetDefault("requests_per_second", DefaultRPS)

	if err := v.ReadInConfig(); err != nil {
		return nil, anecdote.Errorf(anecdote.ECONFIG, "read config %q: %v", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, anecdote.Errorf(anecdote.ECONFIG, "unmarshal config %q: %v", path, err)
	}

	for _, sc := range cfg.Sites {
		if err := sc.Site().Validate(); err != nil {
			return nil, anecdote.Errorf(anecdote.ECONFIG, "config %q: site %q: %s", path, sc.ID, anecdote.ErrorMessage(err))
		}
	}

	return &cfg, nil
}

// Site converts the file representation into a domain descriptor.
func (sc SiteConfig) Site() *anecdote.Site {
	site := &anecdote.Site{
		ID:           sc.ID,
		Name:         sc.Name,
		URLTemplate:  sc.URLTemplate,
		ListSelector: sc.ListSelector,
		ItemsPerPage: sc.ItemsPerPage,
		ContentRule:  sc.Content.rule(),
		URLRule:      sc.URL.rule(),
	}
	if sc.Rich != nil {
		site.RichRule = &anecdote.RichRule{
			FieldRule: *sc.Rich.FieldConfig.rule(),
			Kind:      anecdote.RichKind(sc.Rich.Kind),
		}
	}
	if sc.PageToken != nil {
		site.TokenRule = sc.PageToken.rule()
	}
	return site
}

// SiteDescriptors converts every configured site.
func (c *Config) SiteDescriptors() []*anecdote.Site {
	sites := make([]*anecdote.Site, 0, len(c.Sites))
	for _, sc := range c.Sites {
		sites = append(sites, sc.Site())
	}
	return sites
}

// FindSite returns the descriptor for a site ID, or nil when the config
// does not name it.
func (c *Config) FindSite(id string) *anecdote.Site {
	for _, sc := range c.Sites {
		if sc.ID == id {
			return sc.Site()
		}
	}
	return nil
}

func (fc FieldConfig) rule() *anecdote.FieldRule {
	rule := &anecdote.FieldRule{
		Selector: fc.Selector,
		Attr:     fc.Attr,
		Prefix:   fc.Prefix,
		UsePrev:  fc.UsePrev,
	}
	for _, r := range fc.Replace {
		rule.Replacements = append(rule.Replacements, anecdote.Replacement{Old: r.Old, New: r.New})
	}
	return rule
}
