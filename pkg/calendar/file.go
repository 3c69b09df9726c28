package calendar

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/golang-sql/civil"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Config is the serialized form of a Calendar, shared by calendar files and the HTTP API.
// OffWeekdays uses 0 (Sunday) through 6 (Saturday); a missing list selects the defaults.
type Config struct {
	Holidays    []string `json:"holidays" yaml:"holidays" toml:"holidays" validate:"dive,datetime=2006-01-02"`
	OffWeekdays []int    `json:"offWeekdays,omitempty" yaml:"offWeekdays" toml:"offWeekdays" validate:"omitempty,dive,min=0,max=6"`
}

func (c Config) Validate() error {
	return validate.Struct(c)
}

// Build validates the config and returns the calendar it describes.
func (c Config) Build() (*Calendar, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid calendar: %w", err)
	}
	holidays := make([]civil.Date, 0, len(c.Holidays))
	for _, h := range c.Holidays {
		d, err := ParseISO(strings.TrimSpace(h))
		if err != nil {
			return nil, err
		}
		holidays = append(holidays, d)
	}
	var off []time.Weekday
	if c.OffWeekdays != nil {
		off = make([]time.Weekday, 0, len(c.OffWeekdays))
		for _, wd := range c.OffWeekdays {
			off = append(off, time.Weekday(wd))
		}
	}
	return New(holidays, off), nil
}

// Config returns the serializable form of c.
func (c *Calendar) Config() Config {
	cfg := Config{Holidays: []string{}, OffWeekdays: []int{}}
	for _, h := range c.Holidays() {
		cfg.Holidays = append(cfg.Holidays, h.String())
	}
	for _, wd := range c.OffWeekdays() {
		cfg.OffWeekdays = append(cfg.OffWeekdays, int(wd))
	}
	return cfg
}

// LoadFile reads a calendar from a YAML, JSON or TOML file chosen by extension.
func LoadFile(path string) (*Calendar, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read calendar %s", path)
	}
	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return nil, fmt.Errorf("unsupported calendar file extension %q (expected .yaml, .yml, .json or .toml)", ext)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode calendar %s", path)
	}
	return cfg.Build()
}
