package cmd

import (
	"os"

	"github.com/shawn/slack-gpt-tenancy/internal/cli/api"
	"github.com/spf13/cobra"
)

var (
	version   string
	commit    string
	buildDate string

	// Global flags
	serverURL    string
	adminToken   string
	outputFormat string
	noColor      bool
)

func newRootCmd(client api.Client) *cobra.Command {
	root := &cobra.Command{
		Use:   "gptctl",
		Short: "Slack GPT tenancy admin CLI",
		Long: `gptctl manages the per-workspace OpenAI configuration stored by the
multi-tenant Slack GPT service.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&serverURL, "server", getEnvOrDefault("GPTCTL_SERVER", "http://localhost:3000"), "Server base URL")
	root.PersistentFlags().StringVar(&adminToken, "token", os.Getenv("GPTCTL_ADMIN_TOKEN"), "Admin API bearer token")
	root.PersistentFlags().StringVar(&outputFormat, "output", "table", "Output format: json|table")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	root.AddCommand(newTenantCmd(client))
	root.AddCommand(newVersionCmd())
	return root
}

func Execute() error {
	client := api.NewHTTPClient()
	root := newRootCmd(client)
	root.PersistentPreRun = func(*cobra.Command, []string) {
		client.Configure(serverURL, adminToken)
	}
	return root.Execute()
}

func SetVersion(v, c, d string) {
	version = v
	commit = c
	buildDate = d
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
