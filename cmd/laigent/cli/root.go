package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// globals holds the persistent flags shared by every command.
type globals struct {
	verbose     bool
	ciMode      bool
	provider    string
	vectorStore string
	envFile     string
	agentsPath  string
}

// NewRootCmd builds the command tree. Each call returns independent flag state.
func NewRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "laigent",
		Short: "Prompt and remember with configured LLM agents",
		Long: `laigent runs named agents that combine a system prompt, a model and a
vector store. Agents can be prompted, chained, and asked to store and recall
content by semantic similarity.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "Enable verbose logging")
	pf.BoolVar(&g.ciMode, "ci", false, "CI mode: JSON output, non-interactive")
	pf.StringVarP(&g.provider, "provider", "p", "", "Model provider (openai, ollama, gemini, anthropic, cli, plugin, stub)")
	pf.StringVar(&g.vectorStore, "vector-store", "", "Vector store (pinecone, chromem, sqlite)")
	pf.StringVar(&g.envFile, "env-file", "", "Env file to read settings from (default .env)")
	pf.StringVar(&g.agentsPath, "agents", "agents.yaml", "Agent definitions (.yaml or .json)")

	root.AddCommand(
		newPromptCmd(g),
		newMemoryCmd(g),
		newExecCmd(g),
		newPipeCmd(g),
		newChatCmd(g),
		newAgentsCmd(g),
		newConfigCmd(g),
	)
	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
