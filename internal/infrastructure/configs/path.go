package configs

import (
	"flag"
	"io"
	"os"

	"github.com/hilthontt/huddle/internal/infrastructure/env"
)

var candidatePaths = []string{
	"./config.yaml",
	"./config.yml",
	"./tmp/config.yaml",
	"/etc/huddle/config.yaml",
	"/app/config.yaml",
}

// DetermineConfigPath resolves the config file from --config, HUDDLE_CONFIG or
// the well-known locations. An empty result means defaults and env only.
func DetermineConfigPath(args []string) string {
	var configPath string

	fs := flag.NewFlagSet("huddle", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&configPath, "config", "", "path to config file")
	_ = fs.Parse(args)

	if configPath == "" {
		configPath = env.GetString("HUDDLE_CONFIG", "")
	}

	if configPath == "" {
		for _, p := range candidatePaths {
			if _, err := os.Stat(p); err == nil {
				configPath = p
				break
			}
		}
	}

	return configPath
}
