// Package cli loads relation descriptors for the adjacency command.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/coregx/adjacency"
)

// Config is the content of a relation file (adjacency.yaml).
type Config struct {
	Dialect  string         `mapstructure:"dialect"`
	HopLimit int            `mapstructure:"hop_limit"`
	Relation RelationConfig `mapstructure:"relation"`
}

// RelationConfig describes one relation.
type RelationConfig struct {
	Links       []LinkConfig  `mapstructure:"links"`
	WithSelf    bool          `mapstructure:"with_self"`
	MaxDepth    int           `mapstructure:"max_depth"`
	Tracking    string        `mapstructure:"tracking"`
	OnCycle     string        `mapstructure:"on_cycle"`
	Existence   string        `mapstructure:"existence"`
	WithTrashed bool          `mapstructure:"with_trashed"`
	OrderBy     []string      `mapstructure:"order_by"`
	Limit       int64         `mapstructure:"limit"`
	Scopes      []ScopeConfig `mapstructure:"scopes"`
}

// LinkConfig is one link of a relation chain. Kind is descendants,
// ancestors or has_many.
type LinkConfig struct {
	Kind       string `mapstructure:"kind"`
	Table      string `mapstructure:"table"`
	Key        string `mapstructure:"key"`
	ParentKey  string `mapstructure:"parent_key"`
	ForeignKey string `mapstructure:"foreign_key"`
	LocalKey   string `mapstructure:"local_key"`
	SoftDelete string `mapstructure:"soft_delete"`
}

// ScopeConfig is one intermediate scope. Exactly one of Column, SoftDeletes
// or Raw is set.
type ScopeConfig struct {
	Name        string        `mapstructure:"name"`
	Column      string        `mapstructure:"column"`
	Operator    string        `mapstructure:"operator"`
	Value       interface{}   `mapstructure:"value"`
	SoftDeletes string        `mapstructure:"soft_deletes"`
	Raw         string        `mapstructure:"raw"`
	Args        []interface{} `mapstructure:"args"`
}

// LoadConfig loads path with precedence env > config file > defaults.
// Environment variables use the ADJACENCY_ prefix (ADJACENCY_DIALECT).
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("ADJACENCY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dialect", "postgres")
	v.SetDefault("hop_limit", 0)
	v.SetDefault("relation.tracking", "path")
	v.SetDefault("relation.on_cycle", "tolerate")
	v.SetDefault("relation.existence", "auto")
	v.SetDefault("relation.limit", -1)
}

// Build builds the configured relation for dialect. An empty dialect uses
// the configured one.
func (c *Config) Build(dialect string) (adjacency.Relation, error) {
	if dialect == "" {
		dialect = c.Dialect
	}
	d, ok := adjacency.LookupDialect(dialect)
	if !ok {
		return adjacency.Relation{}, fmt.Errorf("%w: %s", adjacency.ErrUnsupportedDialect, dialect)
	}

	rc := c.Relation
	links := make([]adjacency.Link, 0, len(rc.Links))
	for i, lc := range rc.Links {
		l, err := lc.link()
		if err != nil {
			return adjacency.Relation{}, fmt.Errorf("links[%d]: %w", i, err)
		}
		links = append(links, l)
	}

	tracking, err := adjacency.ParsePathTracking(rc.Tracking)
	if err != nil {
		return adjacency.Relation{}, err
	}
	policy, err := adjacency.ParseCyclePolicy(rc.OnCycle)
	if err != nil {
		return adjacency.Relation{}, err
	}
	existence, err := adjacency.ParseExistenceMode(rc.Existence)
	if err != nil {
		return adjacency.Relation{}, err
	}

	rel := adjacency.NewRelation(d, links...).
		MaxDepth(rc.MaxDepth).
		HopLimit(c.HopLimit).
		Tracking(tracking).
		OnCycle(policy).
		Existence(existence).
		Limit(rc.Limit)
	if rc.WithSelf {
		rel = rel.WithSelf()
	}
	if rc.WithTrashed {
		rel = rel.WithTrashedDescendants()
	}
	if len(rc.OrderBy) > 0 {
		rel = rel.OrderBy(rc.OrderBy...)
	}

	for i, sc := range rc.Scopes {
		scope, err := sc.scope()
		if err != nil {
			return adjacency.Relation{}, fmt.Errorf("scopes[%d]: %w", i, err)
		}
		rel = rel.WithIntermediateScope(sc.Name, scope)
	}

	return rel, rel.Err()
}

func (lc LinkConfig) link() (adjacency.Link, error) {
	tree := adjacency.Tree{Table: lc.Table, Key: lc.Key, ParentKey: lc.ParentKey, SoftDelete: lc.SoftDelete}

	switch lc.Kind {
	case "descendants":
		return adjacency.DescendantsOf(tree), nil
	case "ancestors":
		return adjacency.AncestorsOf(tree), nil
	case "has_many":
		l := adjacency.HasMany(lc.Table, lc.ForeignKey, lc.LocalKey)
		if lc.Key != "" {
			l = l.WithKey(lc.Key)
		}
		if lc.SoftDelete != "" {
			l = l.WithSoftDelete(lc.SoftDelete)
		}
		return l, nil
	}
	return adjacency.Link{}, fmt.Errorf("unknown link kind %q", lc.Kind)
}

func (sc ScopeConfig) scope() (adjacency.Scope, error) {
	set := 0
	for _, s := range []string{sc.Column, sc.SoftDeletes, sc.Raw} {
		if s != "" {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("scope needs exactly one of column, soft_deletes or raw")
	}

	switch {
	case sc.Column != "":
		op := sc.Operator
		if op == "" {
			op = "="
		}
		return adjacency.Compare(sc.Column, op, sc.Value), nil
	case sc.SoftDeletes != "":
		return adjacency.SoftDeletes(sc.SoftDeletes), nil
	}
	return adjacency.Raw(sc.Raw, sc.Args...), nil
}
