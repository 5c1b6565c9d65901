package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/hembot/hembot/src/config"
)

// CLI represents the main CLI structure
type CLI struct {
	APIKey   string `env:"GEMINI_API_KEY" help:"Gemini API key"`
	Config   string `short:"c" help:"Path to a config file" type:"path"`
	LogLevel string `default:"info" help:"Log level (debug, info, warn, error)"`

	Chat   ChatCmd   `cmd:"" default:"1" help:"Interactive shopping chat in the terminal (default)"`
	Serve  ServeCmd  `cmd:"" help:"Run the web chat server"`
	Ingest IngestCmd `cmd:"" help:"Index scraped products into the catalog"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("hembot"),
		kong.Description("Conversational furniture shopping assistant"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	err := ctx.Run(&cli)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig builds the effective configuration: files, environment, then
// CLI flags on top.
func loadConfig(cli *CLI) (*config.Config, error) {
	precedence := config.GetConfigPaths()
	if cli.Config != "" {
		precedence.LocalConfig = cli.Config
	}
	cfg, err := config.NewLoader(precedence).Load()
	if err != nil {
		return nil, err
	}
	if cli.APIKey != "" {
		cfg.Gemini.APIKey = cli.APIKey
	}
	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	return cfg, nil
}
