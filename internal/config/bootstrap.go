package config

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadEnv reads .env files into the process environment without overriding
// variables that are already set. Missing files are fine.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return err
		}
	}
	return nil
}

// EnsureUserConfig returns the user's config path inside dataDir, creating it
// from defaultPath, or from Defaults when that file is missing.
func EnsureUserConfig(dataDir string, defaultPath string) (string, error) {
	userPath := filepath.Join(dataDir, "config.yml")

	_, err := os.Stat(userPath)
	if err == nil {
		return userPath, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	src, err := os.Open(defaultPath)
	if errors.Is(err, os.ErrNotExist) {
		b, err := yaml.Marshal(Defaults())
		if err != nil {
			return "", err
		}
		return userPath, os.WriteFile(userPath, b, 0o644)
	}
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.Create(userPath)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return userPath, nil
}

// OverlayKeywords replaces the classifier keyword lists with those found in
// path. Lists missing from the file keep their current value.
func OverlayKeywords(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		// a missing keywords file should not kill startup
		return nil
	}

	var kf struct {
		Keywords struct {
			OA        []string `yaml:"oa"`
			Rejection []string `yaml:"rejection"`
			Status    []string `yaml:"status"`
		} `yaml:"keywords"`
	}
	if err := yaml.Unmarshal(b, &kf); err != nil {
		return err
	}
	k := &cfg.Classifier.Keywords
	if len(kf.Keywords.OA) > 0 {
		k.OA = kf.Keywords.OA
	}
	if len(kf.Keywords.Rejection) > 0 {
		k.Rejection = kf.Keywords.Rejection
	}
	if len(kf.Keywords.Status) > 0 {
		k.Status = kf.Keywords.Status
	}
	return nil
}
