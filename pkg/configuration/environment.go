package configuration

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/iota-uz/utils/fs"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/3chihiro/evm-tool/pkg/calendar"
	"github.com/3chihiro/evm-tool/pkg/logging"
)

const Production = "production"

var DefaultEnvFiles = []string{".env", ".env.local"}

var validate = validator.New()

// LoadEnv loads the env files that exist. Files missing from the working
// directory are looked up next to the nearest go.mod above it.
func LoadEnv(envFiles []string) (int, error) {
	root := moduleRoot()
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		switch {
		case fs.FileExists(file):
			existing = append(existing, file)
		case root != "" && !filepath.IsAbs(file) && fs.FileExists(filepath.Join(root, file)):
			existing = append(existing, filepath.Join(root, file))
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

func moduleRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if fs.FileExists(filepath.Join(dir, "go.mod")) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

type ImportOptions struct {
	UnknownDeps  string `env:"EVM_UNKNOWN_DEPS" envDefault:"error" validate:"oneof=error warn"`
	ErrorPreview int    `env:"EVM_ERROR_PREVIEW" envDefault:"10" validate:"min=0"`
}

type CalendarOptions struct {
	File        string   `env:"EVM_CALENDAR_FILE"`
	OffWeekdays []int    `env:"EVM_OFF_WEEKDAYS" envDefault:"0,6" envSeparator:"," validate:"dive,min=0,max=6"`
	Holidays    []string `env:"EVM_HOLIDAYS" envSeparator:"," validate:"dive,datetime=2006-01-02"`
}

type EditorOptions struct {
	PxPerDay          float64 `env:"EVM_PX_PER_DAY" envDefault:"24" validate:"gt=0"`
	LinkedShifts      bool    `env:"EVM_LINKED_SHIFTS" envDefault:"false"`
	ActualFollowsPlan bool    `env:"EVM_ACTUAL_FOLLOWS_PLAN" envDefault:"false"`
	HistoryLimit      int     `env:"EVM_HISTORY_LIMIT" envDefault:"100" validate:"min=0"`
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
}

// RateLimitOptions caps API requests per client IP. Off by default since the
// server normally has a single local client.
type RateLimitOptions struct {
	Enabled   bool `env:"RATE_LIMIT_ENABLED" envDefault:"false"`
	GlobalRPS int  `env:"RATE_LIMIT_GLOBAL_RPS" envDefault:"100" validate:"min=1,max=1000000"`
}

type Configuration struct {
	Import     ImportOptions
	Calendar   CalendarOptions
	Editor     EditorOptions
	Prometheus PrometheusOptions
	RateLimit  RateLimitOptions

	ServerPort       int           `env:"PORT" envDefault:"3200" validate:"min=1,max=65535"`
	AllowedOrigins   []string      `env:"EVM_ALLOWED_ORIGINS" envSeparator:","`
	GoAppEnvironment string        `env:"GO_APP_ENV" envDefault:"development"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
	SocketAddress    string        `env:"-"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"error"`
	LogPath          string        `env:"LOG_PATH"`

	logFile io.Closer
	logger  *logrus.Logger
}

// Load reads envFiles, then the process environment, and validates the result.
func Load(envFiles []string) (*Configuration, error) {
	c := &Configuration{}
	if err := c.load(envFiles); err != nil {
		c.Unload()
		return nil, err
	}
	return c, nil
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

// BuildCalendar loads EVM_CALENDAR_FILE when set; otherwise the calendar is
// built from EVM_HOLIDAYS and EVM_OFF_WEEKDAYS.
func (c *Configuration) BuildCalendar() (*calendar.Calendar, error) {
	if c.Calendar.File != "" {
		return calendar.LoadFile(c.Calendar.File)
	}
	holidays := make([]string, 0, len(c.Calendar.Holidays))
	for _, h := range c.Calendar.Holidays {
		if h = strings.TrimSpace(h); h != "" {
			holidays = append(holidays, h)
		}
	}
	off := c.Calendar.OffWeekdays
	if off == nil {
		off = []int{}
	}
	return calendar.Config{Holidays: holidays, OffWeekdays: off}.Build()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 && len(envFiles) > 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}

	c.Import.UnknownDeps = strings.ToLower(strings.TrimSpace(c.Import.UnknownDeps))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	if c.LogPath != "" {
		f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
		if err != nil {
			return err
		}
		c.logFile = f
		c.logger = logger
	} else {
		c.logger = logging.ConsoleLogger(c.LogrusLogLevel())
	}

	if c.GoAppEnvironment == Production {
		c.SocketAddress = fmt.Sprintf(":%d", c.ServerPort)
	} else {
		c.SocketAddress = fmt.Sprintf("localhost:%d", c.ServerPort)
	}
	return nil
}

// Unload closes the log file, if any.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}
