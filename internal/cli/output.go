package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

var (
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
	cyan  = color.New(color.FgCyan).SprintFunc()
	bold  = color.New(color.Bold).SprintFunc()
)

func TruncateString(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func PrintToolTable(tools []ToolInfo) {
	fmt.Printf("%-22s  %s\n", "TOOL", "DESCRIPTION")
	fmt.Println(strings.Repeat("-", 80))
	for _, tool := range tools {
		fmt.Printf("%-22s  %s\n", tool.Name, TruncateString(tool.Description, 56))
	}
}

func PrintToolResult(result *ToolResult) {
	fmt.Println(result.Answer)

	if len(result.Sources) == 0 {
		return
	}
	fmt.Println()
	fmt.Printf("%s\n", bold("Sources:"))
	for i, src := range result.Sources {
		if src.Title != "" && src.Title != src.URL {
			fmt.Printf("  %d. %s\n     %s\n", i+1, src.Title, cyan(src.URL))
		} else {
			fmt.Printf("  %d. %s\n", i+1, cyan(src.URL))
		}
	}
}
