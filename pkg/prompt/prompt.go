package prompt

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"LayoutGolang/pkg/vision"
)

const defaultScene = "Edit the input image to reduce occupied area while preserving recognizability and topology."

// Config is the generation prompt configuration, normally loaded from
// config/prompt.toml. Fields left empty in the file fall back to defaults.
type Config struct {
	Model       string `toml:"model"`
	Scene       string `toml:"scene"`
	AspectRatio string `toml:"aspect_ratio"`
	Constraints string `toml:"constraints"`
}

func Default() Config {
	return Config{
		Model:       "flux-kontext-pro",
		Scene:       defaultScene,
		AspectRatio: "1:1",
	}
}

// Load reads a prompt config file. A missing file is not an error; the
// defaults carry the pipeline on their own.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logrus.Info(fmt.Sprintf("Prompt config %s not found, using defaults", path))
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}

	var loaded Config
	if err := toml.Unmarshal(data, &loaded); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if loaded.Model != "" {
		cfg.Model = loaded.Model
	}
	if loaded.Scene != "" {
		cfg.Scene = loaded.Scene
	}
	if loaded.AspectRatio != "" {
		cfg.AspectRatio = loaded.AspectRatio
	}
	cfg.Constraints = loaded.Constraints
	return cfg, nil
}

// Compose renders the final prompt text: the scene, then one line naming the
// detected blocks, then any fixed constraints and per-run layout notes.
func (c Config) Compose(subjects []vision.Subject, description string) string {
	var b strings.Builder
	b.WriteString(c.Scene)

	if len(subjects) > 0 {
		parts := make([]string, 0, len(subjects))
		for _, s := range subjects {
			parts = append(parts, s.String())
		}
		b.WriteString("\nSubjects: ")
		b.WriteString(strings.Join(parts, ", "))
	}
	if c.Constraints != "" {
		b.WriteString("\n")
		b.WriteString(c.Constraints)
	}
	if description != "" {
		b.WriteString("\nLayout notes: ")
		b.WriteString(description)
	}
	return b.String()
}
