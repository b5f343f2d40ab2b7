package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

type ClientFactory func(cmd *cobra.Command) *Client

func HealthCmd(cf ClientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check if the server is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := cf(cmd)
			health, err := client.Health()
			if err != nil {
				fmt.Printf("%s Connection failed: %v\n", red("✗"), err)
				return err
			}

			fmt.Printf("%s %s %s (%s)\n",
				green("✓"),
				health.Server,
				health.Version,
				health.Status)
			return nil
		},
	}
}

func ToolsCmd(cf ClientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools the server advertises",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := cf(cmd)
			asJSON, _ := cmd.Flags().GetBool("json")

			tools, err := client.ListTools()
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(tools)
			}

			if len(tools) == 0 {
				fmt.Println("No tools advertised")
				return nil
			}

			PrintToolTable(tools)
			return nil
		},
	}
}

func SearchCmd(cf ClientFactory) *cobra.Command {
	return toolCmd(cf, "search", "perplexity_search",
		"Quick web search with citations")
}

func AskCmd(cf ClientFactory) *cobra.Command {
	return toolCmd(cf, "ask", "perplexity_ask",
		"Conversational answer grounded in web sources")
}

func ResearchCmd(cf ClientFactory) *cobra.Command {
	return toolCmd(cf, "research", "perplexity_research",
		"Deep multi-source research (can take minutes)")
}

func ReasonCmd(cf ClientFactory) *cobra.Command {
	return toolCmd(cf, "reason", "perplexity_reason",
		"Multi-step reasoning over web sources")
}

// toolCmd builds one subcommand per search tool. All four share the same
// shape: one query argument in, an answer plus sources out.
func toolCmd(cf ClientFactory, use, toolName, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [query...]",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := cf(cmd)
			asJSON, _ := cmd.Flags().GetBool("json")

			query := strings.Join(args, " ")
			result, err := client.CallTool(toolName, query)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			PrintToolResult(result)
			return nil
		},
	}
}
