package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	xdgAppName = "taskwall"
	configFile = "config.json"
)

type Order string

const (
	OrderNormal   Order = "normal"
	OrderReversed Order = "reversed"
)

type IconPosition string

const (
	IconLeft        IconPosition = "left"
	IconRight       IconPosition = "right"
	IconInlineLeft  IconPosition = "inline_left"
	IconInlineRight IconPosition = "inline_right"
)

// Inline reports whether the glyph is drawn inside the title cell rather than in its own column.
func (p IconPosition) Inline() bool {
	return p == IconInlineLeft || p == IconInlineRight
}

// PointsRight reports whether a bullet at this position should point right.
func (p IconPosition) PointsRight() bool {
	return p == IconRight || p == IconInlineRight
}

type FadeStyle string

const (
	// FadeLegacy sets a single container opacity from the historical formula.
	FadeLegacy FadeStyle = "legacy"
	// FadeLinear fades each row in the tail linearly instead.
	FadeLinear FadeStyle = "linear"
)

type SourceKind string

const (
	SourceFile        SourceKind = "file"
	SourceTaskwarrior SourceKind = "taskwarrior"
	SourceOrgmode     SourceKind = "orgmode"
	SourceSQLite      SourceKind = "sqlite"
	SourceGoogle      SourceKind = "google"
)

var (
	ErrInvalidOrder        = errors.New("invalid order")
	ErrInvalidIconPosition = errors.New("invalid icon position")
	ErrInvalidFadeStyle    = errors.New("invalid fade style")
	ErrUnknownSource       = errors.New("unknown source kind")
)

// Widget holds the display options of the task table.
type Widget struct {
	MaximumEntries int          `json:"maximumEntries" toml:"maximumEntries"`
	Order          Order        `json:"order" toml:"order"`
	Lists          []string     `json:"lists" toml:"lists"`
	Interval       int          `json:"interval" toml:"interval"` // seconds between backend refreshes
	Fade           bool         `json:"fade" toml:"fade"`
	FadePoint      float64      `json:"fadePoint" toml:"fadePoint"`
	FadeStyle      FadeStyle    `json:"fadeStyle" toml:"fadeStyle"`
	ShowDeadline   bool         `json:"showDeadline" toml:"showDeadline"`
	ShowAssignee   bool         `json:"showAssignee" toml:"showAssignee"`
	ShowBullets    bool         `json:"showBullets" toml:"showBullets"`
	IconPosition   IconPosition `json:"iconPosition" toml:"iconPosition"`
	Spaced         bool         `json:"spaced" toml:"spaced"`
}

// Fading reports whether any fade applies.
func (w Widget) Fading() bool {
	return w.Fade && w.FadePoint < 1
}

type Source struct {
	Kind       SourceKind `json:"kind" toml:"kind"`
	File       string     `json:"file,omitempty" toml:"file,omitempty"`
	OrgFiles   []string   `json:"orgFiles,omitempty" toml:"orgFiles,omitempty"`
	Database   string     `json:"database,omitempty" toml:"database,omitempty"`
	TaskFilter []string   `json:"taskFilter,omitempty" toml:"taskFilter,omitempty"`
}

type Server struct {
	Addr        string `json:"addr" toml:"addr"`
	RenderDelay int    `json:"renderDelay" toml:"renderDelay"` // milliseconds

	// Stylesheet is the font-awesome CSS linked from the dashboard page.
	// Point it at a local copy for offline dashboards; empty links nothing.
	Stylesheet string `json:"stylesheet" toml:"stylesheet"`
}

// DefaultStylesheet is the font-awesome 4 build the table glyphs use.
const DefaultStylesheet = "https://cdnjs.cloudflare.com/ajax/libs/font-awesome/4.7.0/css/font-awesome.min.css"

type Logging struct {
	Level string `json:"level" toml:"level"`
}

type Config struct {
	Widget  Widget  `json:"widget" toml:"widget"`
	Source  Source  `json:"source" toml:"source"`
	Server  Server  `json:"server" toml:"server"`
	Logging Logging `json:"logging" toml:"logging"`
}

// DefaultWidget returns the display options used when nothing is configured.
func DefaultWidget() Widget {
	return Widget{
		MaximumEntries: 10,
		Order:          OrderNormal,
		Lists:          []string{"inbox"},
		Interval:       60,
		Fade:           true,
		FadePoint:      0.25,
		FadeStyle:      FadeLegacy,
		ShowDeadline:   true,
		ShowAssignee:   true,
		ShowBullets:    false,
		IconPosition:   IconLeft,
		Spaced:         false,
	}
}

func Default() Config {
	return Config{
		Widget: DefaultWidget(),
		Source: Source{Kind: SourceFile},
		Server: Server{
			Addr:        "127.0.0.1:8080",
			RenderDelay: 3000,
			Stylesheet:  DefaultStylesheet,
		},
		Logging: Logging{Level: "info"},
	}
}

// Normalize clamps numeric options and validates enumerated ones. It is
// applied once at load time so renderers can trust the values.
func (w *Widget) Normalize() error {
	if w.MaximumEntries < 0 {
		w.MaximumEntries = 0
	}
	if w.Interval <= 0 {
		w.Interval = 60
	}
	if w.FadePoint < 0 {
		w.FadePoint = 0
	}

	w.Order = Order(strings.ToLower(strings.TrimSpace(string(w.Order))))
	switch w.Order {
	case "":
		w.Order = OrderNormal
	case OrderNormal, OrderReversed:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOrder, w.Order)
	}

	w.IconPosition = IconPosition(strings.ToLower(strings.TrimSpace(string(w.IconPosition))))
	switch w.IconPosition {
	case "":
		w.IconPosition = IconLeft
	case IconLeft, IconRight, IconInlineLeft, IconInlineRight:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidIconPosition, w.IconPosition)
	}

	w.FadeStyle = FadeStyle(strings.ToLower(strings.TrimSpace(string(w.FadeStyle))))
	switch w.FadeStyle {
	case "":
		w.FadeStyle = FadeLegacy
	case FadeLegacy, FadeLinear:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFadeStyle, w.FadeStyle)
	}

	lists := make([]string, 0, len(w.Lists))
	for _, name := range w.Lists {
		name = strings.TrimSpace(name)
		if name != "" {
			lists = append(lists, name)
		}
	}
	w.Lists = lists
	return nil
}

func (c *Config) Normalize() error {
	if err := c.Widget.Normalize(); err != nil {
		return err
	}

	c.Source.Kind = SourceKind(strings.ToLower(strings.TrimSpace(string(c.Source.Kind))))
	switch c.Source.Kind {
	case "":
		c.Source.Kind = SourceFile
	case SourceFile, SourceTaskwarrior, SourceOrgmode, SourceSQLite, SourceGoogle:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSource, c.Source.Kind)
	}

	if strings.TrimSpace(c.Server.Addr) == "" {
		c.Server.Addr = "127.0.0.1:8080"
	}
	if c.Server.RenderDelay < 0 {
		c.Server.RenderDelay = 0
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	return nil
}

func GetConfigPath() (string, error) {
	xdgHome, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(xdgHome, ".config", xdgAppName, configFile), nil
}

// Load reads the config at path, or the default location when path is
// empty. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, err
	}

	if len(bytes.TrimSpace(content)) > 0 {
		if strings.EqualFold(filepath.Ext(path), ".toml") {
			if err := toml.Unmarshal(content, &cfg); err != nil {
				return nil, fmt.Errorf("failed to decode toml config: %w", err)
			}
		} else if err := json.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
	}

	if err := cfg.Normalize(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes cfg to path, or the default location when path is empty. A
// .toml path is written as TOML, anything else as indented JSON.
func Save(path string, cfg *Config) error {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file for writing: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return toml.NewEncoder(f).Encode(cfg)
	}
	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(cfg)
}
