package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/malonaz/multichat/cli"
	"github.com/malonaz/multichat/internal/configuration"
	"github.com/malonaz/multichat/server"
)

const (
	configFilepath    = "~/.config/multichat/config.json"
	configFilepathEnv = "MULTICHAT_CONFIG"
)

var rootCmd = &cobra.Command{
	Use:           "multichat",
	Short:         "Multi-model chat server and terminal client",
	Version:       "1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	path := configFilepath
	if override, ok := os.LookupEnv(configFilepathEnv); ok {
		path = override
	}
	config, err := configuration.Parse(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parsing configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.AddCommand(server.NewServeCmd(config))
	rootCmd.AddCommand(cli.NewChatCmd(config))
	rootCmd.AddCommand(cli.NewRegisterCmd(config))
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
