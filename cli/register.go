package cli

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/malonaz/multichat/client"
	"github.com/malonaz/multichat/internal/cli"
	"github.com/malonaz/multichat/internal/configuration"
	"github.com/malonaz/multichat/internal/logging"
)

// NewRegisterCmd instantiates and returns the register command.
func NewRegisterCmd(config *configuration.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Create an account and store its session",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logging.New(&logging.Opts{Level: config.Logging.Level, Format: config.Logging.Format})
			if err != nil {
				return errors.Wrap(err, "instantiating logger")
			}
			api := client.NewAPI(config.Client.ServerURL, &http.Client{Timeout: config.Timeout()})
			auth := client.NewAuthController(api, client.NewSessionFile(config.Client.SessionFile), "", log)
			username, password, err := cli.AskCredentials()
			if err != nil {
				return err
			}
			user, err := auth.Register(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			cli.System("registered %s, api key: %s", user.Username, user.APIKey)
			return nil
		},
	}
}
