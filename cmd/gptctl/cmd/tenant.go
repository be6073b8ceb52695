package cmd

import (
	stdcontext "context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shawn/slack-gpt-tenancy/internal/cli/api"
	"github.com/shawn/slack-gpt-tenancy/internal/cli/output"
	"github.com/spf13/cobra"
)

const requestTimeout = 30 * time.Second

func newTenantCmd(client api.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenant model configuration",
		Long:  `Get, set, and delete the OpenAI API key and model stored for a Slack workspace.`,
	}

	cmd.AddCommand(newTenantGetCmd(client))
	cmd.AddCommand(newTenantSetCmd(client))
	cmd.AddCommand(newTenantDeleteCmd(client))

	return cmd
}

func printConfig(cmd *cobra.Command, cfg *api.TenantConfig) error {
	if outputFormat == "json" {
		jsonStr, err := output.FormatJSON(cfg)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), jsonStr)
		return nil
	}
	temp := ""
	if cfg.Temperature != nil {
		temp = strconv.FormatFloat(*cfg.Temperature, 'g', -1, 64)
	}
	model := cfg.Model
	if model == "" {
		model = "(server default)"
	}
	return output.FprintFields(cmd.OutOrStdout(), []output.Field{
		{Name: "Tenant ID", Value: cfg.TenantID},
		{Name: "API Key", Value: cfg.APIKey},
		{Name: "Model", Value: model},
		{Name: "Temperature", Value: temp},
	})
}

func newTenantGetCmd(client api.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "get <tenant-id>",
		Short: "Show a tenant's stored configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID := args[0]

			ctx, cancel := stdcontext.WithTimeout(stdcontext.Background(), requestTimeout)
			defer cancel()

			cfg, err := client.GetConfig(ctx, tenantID)
			if err != nil {
				styler := output.NewStyler(noColor)
				if errors.Is(err, api.ErrNotFound) {
					styler.FprintWarn(cmd.ErrOrStderr(), fmt.Sprintf("Tenant '%s' has no stored configuration", tenantID))
					return err
				}
				styler.FprintError(cmd.ErrOrStderr(), fmt.Sprintf("Failed to get config: %v", err))
				return err
			}
			return printConfig(cmd, cfg)
		},
	}
}

func newTenantSetCmd(client api.Client) *cobra.Command {
	var (
		apiKey      string
		model       string
		temperature float64
	)
	cmd := &cobra.Command{
		Use:   "set <tenant-id>",
		Short: "Validate and store a tenant's API key and model",
		Long: `Validate an OpenAI API key (and model) against OpenAI and store it for
the workspace. --temperature is stored only when given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID := args[0]
			styler := output.NewStyler(noColor)

			req := &api.SetConfigRequest{APIKey: apiKey, Model: model}
			if cmd.Flags().Changed("temperature") {
				t := temperature
				req.Temperature = &t
			}

			styler.FprintInfo(cmd.OutOrStdout(), fmt.Sprintf("Validating and saving config for '%s'...", tenantID))

			ctx, cancel := stdcontext.WithTimeout(stdcontext.Background(), requestTimeout)
			defer cancel()

			cfg, err := client.SetConfig(ctx, tenantID, req)
			if err != nil {
				styler.FprintError(cmd.ErrOrStderr(), fmt.Sprintf("Failed to set config: %v", err))
				return err
			}
			styler.FprintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Config for '%s' saved", tenantID))
			return printConfig(cmd, cfg)
		},
	}
	cmd.Flags().StringVar(&apiKey, "api-key", "", "OpenAI API key (required)")
	cmd.Flags().StringVar(&model, "model", "", "OpenAI model, e.g. gpt-4")
	cmd.Flags().Float64Var(&temperature, "temperature", 1, "Sampling temperature (0-2)")
	_ = cmd.MarkFlagRequired("api-key")
	return cmd
}

func newTenantDeleteCmd(client api.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <tenant-id>",
		Short: "Delete a tenant's stored configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID := args[0]
			styler := output.NewStyler(noColor)
			styler.FprintInfo(cmd.OutOrStdout(), fmt.Sprintf("Deleting config for '%s'...", tenantID))

			ctx, cancel := stdcontext.WithTimeout(stdcontext.Background(), requestTimeout)
			defer cancel()

			if err := client.DeleteConfig(ctx, tenantID); err != nil {
				styler.FprintError(cmd.ErrOrStderr(), fmt.Sprintf("Failed to delete config: %v", err))
				return err
			}
			styler.FprintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Config for '%s' deleted", tenantID))
			return nil
		},
	}
}
