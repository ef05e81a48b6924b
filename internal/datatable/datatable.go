// Package datatable loads the tables that drive generation: level
// replacement rows, tag filter rows and actor generation rows.
package datatable

import (
	"fmt"
	"os"
	"strings"

	"github.com/lawnchairsociety/levelforge/internal/fault"
	"github.com/lawnchairsociety/levelforge/internal/levelpath"
	"github.com/lawnchairsociety/levelforge/internal/randsel"
	"gopkg.in/yaml.v3"
)

// ErrEmptyTable is returned when an operation needs rows of a kind the
// table does not have.
var ErrEmptyTable = fmt.Errorf("%w: data table has no rows", fault.ErrConfiguration)

// Entry is one weighted choice in a row.
type Entry struct {
	Item   string `yaml:"item"`
	Weight int    `yaml:"weight"`
}

// LevelRow maps a source room to weighted replacement rooms.
type LevelRow struct {
	Key          string  `yaml:"key"`
	Source       string  `yaml:"source"`
	BuildWeight  *int    `yaml:"build_weight,omitempty"`
	Replacements []Entry `yaml:"replacements"`
}

// TagRow keeps Count actors carrying Tag and hides the rest.
type TagRow struct {
	Key   string `yaml:"key"`
	Tag   string `yaml:"tag"`
	Count int    `yaml:"count"`
}

// ActorRow replaces every actor of Class with a weighted pick of classes.
type ActorRow struct {
	Key          string  `yaml:"key"`
	Class        string  `yaml:"class"`
	Replacements []Entry `yaml:"replacements"`
}

// Table is a loaded data table. Row order is the order in the file.
type Table struct {
	Name   string     `yaml:"name"`
	Levels []LevelRow `yaml:"levels"`
	Tags   []TagRow   `yaml:"tag_filters"`
	Actors []ActorRow `yaml:"actors"`
}

// LoadFile reads and validates a table from a YAML file.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read data table: %v", fault.ErrConfiguration, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if t.Name == "" {
		t.Name = path
	}
	return t, nil
}

// Parse decodes and validates a table.
func Parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: failed to parse data table: %v", fault.ErrConfiguration, err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks every row for malformed fields. Zero-sum weights are not
// malformed; they are reported per row when the row is used.
func (t *Table) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: no data table", fault.ErrConfiguration)
	}
	for i, r := range t.Levels {
		if strings.TrimSpace(r.Source) == "" {
			return malformed("levels", i, r.Key, "missing source")
		}
		if r.BuildWeight != nil && *r.BuildWeight < 0 {
			return malformed("levels", i, r.Key, "negative build_weight")
		}
		if err := validateEntries(r.Replacements); err != nil {
			return malformed("levels", i, r.Key, err.Error())
		}
	}
	for i, r := range t.Tags {
		if strings.TrimSpace(r.Tag) == "" {
			return malformed("tag_filters", i, r.Key, "missing tag")
		}
		if r.Count < 0 {
			return malformed("tag_filters", i, r.Key, "negative count")
		}
	}
	for i, r := range t.Actors {
		if strings.TrimSpace(r.Class) == "" {
			return malformed("actors", i, r.Key, "missing class")
		}
		if err := validateEntries(r.Replacements); err != nil {
			return malformed("actors", i, r.Key, err.Error())
		}
	}
	return nil
}

func validateEntries(entries []Entry) error {
	for _, e := range entries {
		if strings.TrimSpace(e.Item) == "" {
			return fmt.Errorf("replacement without item")
		}
		if e.Weight < 0 {
			return fmt.Errorf("negative weight for %s", e.Item)
		}
	}
	return nil
}

func malformed(section string, index int, key, reason string) error {
	if key == "" {
		key = fmt.Sprintf("#%d", index)
	}
	return fmt.Errorf("%w: %s row %s: %s", fault.ErrConfiguration, section, key, reason)
}

// Label names the row for messages.
func (r LevelRow) Label() string {
	if r.Key != "" {
		return r.Key
	}
	return r.Source
}

// Weight is the row's build weight; rows without one weigh 1.
func (r LevelRow) Weight() int {
	if r.BuildWeight == nil {
		return 1
	}
	return *r.BuildWeight
}

// Matches reports whether the row's source is the same room as path.
func (r LevelRow) Matches(path string) bool {
	return levelpath.Same(r.Source, path)
}

// Choices returns the replacement rooms as a weighted set in file order.
func (r LevelRow) Choices() randsel.WeightedSet[string] {
	return entriesToSet(r.Replacements, levelpath.Normalize)
}

// Label names the row for messages.
func (r ActorRow) Label() string {
	if r.Key != "" {
		return r.Key
	}
	return r.Class
}

// Choices returns the replacement classes as a weighted set in file order.
func (r ActorRow) Choices() randsel.WeightedSet[string] {
	return entriesToSet(r.Replacements, strings.TrimSpace)
}

// Label names the row for messages.
func (r TagRow) Label() string {
	if r.Key != "" {
		return r.Key
	}
	return r.Tag
}

func entriesToSet(entries []Entry, clean func(string) string) randsel.WeightedSet[string] {
	var set randsel.WeightedSet[string]
	for _, e := range entries {
		// Weights were validated on load.
		_ = set.Add(clean(e.Item), e.Weight)
	}
	return set
}

// LevelRowFor returns the first row whose source is the same room as path.
func (t *Table) LevelRowFor(path string) (LevelRow, bool) {
	for _, r := range t.Levels {
		if r.Matches(path) {
			return r, true
		}
	}
	return LevelRow{}, false
}

// BuildChoices returns the source rooms weighted by build weight.
func (t *Table) BuildChoices() randsel.WeightedSet[string] {
	var set randsel.WeightedSet[string]
	for _, r := range t.Levels {
		_ = set.Add(levelpath.Normalize(r.Source), r.Weight())
	}
	return set
}
