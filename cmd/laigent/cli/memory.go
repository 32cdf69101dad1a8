package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/laigent/internal/agent"
	"github.com/felixgeelhaar/laigent/internal/chunker"
	"github.com/spf13/cobra"
)

func newMemoryCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Store, search and forget agent memories",
	}
	cmd.AddCommand(
		newMemorySaveCmd(g),
		newMemorySearchCmd(g),
		newMemoryForgetCmd(g),
		newMemoryClearCmd(g),
	)
	return cmd
}

func newMemorySaveCmd(g *globals) *cobra.Command {
	var (
		agentName   string
		contentType string
		meta        map[string]string
	)

	cmd := &cobra.Command{
		Use:   "save [file|-]",
		Short: "Chunk, embed and store a file (or stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, g)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			a, err := s.agent(ctx, g, agentName, true)
			if err != nil {
				return err
			}

			content, err := readContent(cmd, a, args[0])
			if err != nil {
				return err
			}
			if contentType == "" {
				contentType = inferContentType(args[0])
			}
			ct, err := chunker.ParseContentType(contentType)
			if err != nil {
				return err
			}

			ids, err := a.SaveInMemory(ctx, content, ct, meta)
			if err != nil {
				return err
			}
			s.out.Status(fmt.Sprintf("Stored %d chunks: %s", len(ids), strings.Join(ids, ", ")))
			return nil
		},
	}

	cmd.Flags().StringVar(&agentName, "agent", "", "Agent whose memory is used")
	cmd.Flags().StringVarP(&contentType, "type", "t", "", "Content type: text, markdown or json (default from extension)")
	cmd.Flags().StringToStringVar(&meta, "meta", nil, "Metadata as key=value")
	_ = cmd.MarkFlagRequired("agent")
	return cmd
}

func readContent(cmd *cobra.Command, a *agent.Agent, src string) (string, error) {
	if src == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	return a.ReadFile(src)
}

func inferContentType(src string) string {
	switch strings.ToLower(filepath.Ext(src)) {
	case ".md", ".markdown":
		return string(chunker.Markdown)
	case ".json":
		return string(chunker.JSON)
	default:
		return string(chunker.Text)
	}
}

func newMemorySearchCmd(g *globals) *cobra.Command {
	var (
		agentName string
		limit     int
		filter    map[string]string
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Find the memories most similar to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, g)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			a, err := s.agent(ctx, g, agentName, true)
			if err != nil {
				return err
			}

			mems, err := a.SearchMemory(ctx, strings.Join(args, " "), limit, filter)
			if err != nil {
				return err
			}
			s.out.Memories(mems)
			return nil
		},
	}

	cmd.Flags().StringVar(&agentName, "agent", "", "Agent whose memory is searched")
	cmd.Flags().IntVarP(&limit, "limit", "n", agent.DefaultSearchLimit, "Maximum number of results")
	cmd.Flags().StringToStringVar(&filter, "filter", nil, "Exact metadata match as key=value")
	_ = cmd.MarkFlagRequired("agent")
	return cmd
}

func newMemoryForgetCmd(g *globals) *cobra.Command {
	var agentName string

	cmd := &cobra.Command{
		Use:   "forget [id...]",
		Short: "Delete memories by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, g)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			a, err := s.agent(ctx, g, agentName, true)
			if err != nil {
				return err
			}
			if err := a.ForgetMemories(ctx, args); err != nil {
				return err
			}
			s.out.Status(fmt.Sprintf("Forgot %d memories", len(args)))
			return nil
		},
	}

	cmd.Flags().StringVar(&agentName, "agent", "", "Agent whose memory is changed")
	_ = cmd.MarkFlagRequired("agent")
	return cmd
}

func newMemoryClearCmd(g *globals) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every record in the configured index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear the whole index without --yes")
			}

			s, err := openSession(cmd, g)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.requireBackends(); err != nil {
				return err
			}

			ctx := cmd.Context()
			vs, err := s.deps.Store(agent.Config{Name: "memory-clear"}, s.sys)
			if err != nil {
				return err
			}
			if err := vs.Connect(ctx, s.sys.IndexName); err != nil {
				return err
			}
			if err := vs.DeleteAll(ctx); err != nil {
				return err
			}
			s.out.Status(fmt.Sprintf("Cleared index %s (%s)", s.sys.IndexName, vs.Name()))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm clearing the index")
	return cmd
}
