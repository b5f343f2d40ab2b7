package main

import (
	"os"

	"github.com/ai8future/perplexity-mcp/internal/cli"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "perplexity-cli",
		Short: "Perplexity MCP CLI - query a running server from the terminal",
		Long:  "Command-line tool to test and debug a Perplexity MCP server without an MCP client.",
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("url", "u", "", "Server URL (default: http://localhost:8001 or PERPLEXITY_MCP_URL)")
	rootCmd.PersistentFlags().StringP("token", "t", "", "Bearer token (default: MCP_BEARER_TOKEN)")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	// Create client factory
	clientFactory := func(cmd *cobra.Command) *cli.Client {
		url, _ := cmd.Flags().GetString("url")
		if url == "" {
			url = os.Getenv("PERPLEXITY_MCP_URL")
		}
		if url == "" {
			url = "http://localhost:8001"
		}
		token, _ := cmd.Flags().GetString("token")
		if token == "" {
			token = os.Getenv("MCP_BEARER_TOKEN")
		}
		return cli.NewClient(url, token)
	}

	// Add commands
	rootCmd.AddCommand(cli.HealthCmd(clientFactory))
	rootCmd.AddCommand(cli.ToolsCmd(clientFactory))
	rootCmd.AddCommand(cli.SearchCmd(clientFactory))
	rootCmd.AddCommand(cli.AskCmd(clientFactory))
	rootCmd.AddCommand(cli.ResearchCmd(clientFactory))
	rootCmd.AddCommand(cli.ReasonCmd(clientFactory))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
