package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/wenjun-hu/chat-archive/internal/segment"
)

type Config struct {
	ArchiveRoot string `toml:"archive_root"`
	DBPath      string `toml:"db_path"`

	AnchorStyle    string `toml:"anchor_style"` // classic | custom | both
	AnchorTemplate string `toml:"anchor_template"`
	Grouping       string `toml:"grouping"` // day | window | merge

	EmitFrontmatter bool `toml:"emit_frontmatter"`
	EmitTopicIndex  bool `toml:"emit_topic_index"`
	Segmentation    bool `toml:"segmentation"`

	GapHours int      `toml:"gap_hours"`
	Triggers []string `toml:"triggers"`
}

func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ArchiveRoot:     filepath.Join(home, "chat-archive"),
		DBPath:          filepath.Join(home, ".config", "chatarc", "catalog.db"),
		AnchorStyle:     "classic",
		Grouping:        "day",
		EmitFrontmatter: true,
		EmitTopicIndex:  true,
		Segmentation:    true,
		GapHours:        4,
		Triggers:        segment.DefaultTriggers(),
	}

	cfgPath := filepath.Join(home, ".config", "chatarc", "config.toml")
	if _, err := os.Stat(cfgPath); err == nil {
		if _, err := toml.DecodeFile(cfgPath, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
	}

	cfg.ArchiveRoot = expandHome(cfg.ArchiveRoot, home)
	cfg.DBPath = expandHome(cfg.DBPath, home)

	return cfg, nil
}

func expandHome(path, home string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return path
}
