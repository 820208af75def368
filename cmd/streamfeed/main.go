// streamfeed resolves a streaming service, holds a logged-in connection to
// it and prints or records the frames it delivers.
//
// Usage:
//
//	streamfeed resolve --config configs/streamfeed.yaml
//	streamfeed stream --config configs/streamfeed.yaml [--verbose]
//	streamfeed version
package main

import (
	"fmt"
	"os"

	"github.com/leaanthony/clir"
	"github.com/rotisserie/eris"

	"github.com/rickgao/streamfeed/internal/version"
)

const defaultConfigPath = "configs/streamfeed.example.yaml"

func main() {
	cli := clir.NewCli("streamfeed", "Realtime stream feed client", version.Version)

	var resolveConfig string
	resolveCmd := cli.NewSubCommand("resolve", "Resolve the configured service and list its endpoints")
	resolveCmd.StringFlag("config", "path to config file", &resolveConfig)
	resolveCmd.Action(func() error {
		return runResolve(configPath(resolveConfig), os.Stdout)
	})

	var streamConfig string
	var verbose bool
	streamCmd := cli.NewSubCommand("stream", "Connect and stream messages until interrupted")
	streamCmd.StringFlag("config", "path to config file", &streamConfig)
	streamCmd.BoolFlag("verbose", "print every message payload", &verbose)
	streamCmd.Action(func() error {
		return runStream(configPath(streamConfig), verbose, os.Stdout)
	})

	versionCmd := cli.NewSubCommand("version", "Print build information")
	versionCmd.Action(func() error {
		fmt.Println(version.String())
		return nil
	})

	if err := cli.Run(); err != nil {
		fmt.Fprintln(os.Stderr, eris.ToString(err, true))
		os.Exit(1)
	}
}

func configPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("STREAMFEED_CONFIG"); env != "" {
		return env
	}
	return defaultConfigPath
}
