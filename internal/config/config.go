// Package config layers command defaults, an optional YAML file and command
// line flags, in that order of precedence.
package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// FileFlag names the flag holding the YAML config path.
const FileFlag = "config"

// Load unmarshals defaults, then the file named by the config flag when set,
// then every flag explicitly given on the command line into out. Keys are
// the flag names; out's fields carry matching koanf tags.
func Load(flags *pflag.FlagSet, defaults map[string]any, out any) error {
	k := koanf.New(".")

	err := k.Load(confmap.Provider(defaults, "."), nil)
	if err != nil {
		return fmt.Errorf("load defaults: %w", err)
	}

	if path, _ := flags.GetString(FileFlag); path != "" {
		err = k.Load(file.Provider(path), yaml.Parser())
		if err != nil {
			return fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	err = k.Load(posflag.Provider(flags, ".", k), nil)
	if err != nil {
		return fmt.Errorf("load flags: %w", err)
	}

	err = k.Unmarshal("", out)
	if err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	return nil
}
