package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const savedHeader = "# jobmail engine config; edited through PUT /config or by hand\n"

// SaveAtomic validates cfg and replaces path with it. The previous file is
// kept as path+".bak"; a crash mid-write leaves the old file intact.
func SaveAtomic(path string, cfg Config) error {
	if _, vr := NormalizeAndValidate(cfg); !vr.OK() {
		return fmt.Errorf("config validation failed:\n- %s", strings.Join(vr.Errors, "\n- "))
	}

	var buf bytes.Buffer
	buf.WriteString(savedHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil {
		bak := path + ".bak"
		_ = os.Remove(bak)
		if err := os.Rename(path, bak); err != nil {
			return fmt.Errorf("backup config: %w", err)
		}
	}
	return os.Rename(tmp.Name(), path)
}
