package cli

import (
	"strings"

	"github.com/felixgeelhaar/laigent/internal/agent"
	"github.com/spf13/cobra"
)

func newPromptCmd(g *globals) *cobra.Command {
	var (
		agentName string
		outPath   string
	)

	cmd := &cobra.Command{
		Use:   "prompt [text]",
		Short: "Prompt one agent and print its reply",
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

			reply, err := a.Prompt(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			s.out.Reply(a, reply)

			if outPath == "" {
				return nil
			}
			if reply.Format == agent.JSON {
				return a.WriteJSON(outPath, reply.JSON)
			}
			return a.WriteFile(outPath, reply.Text)
		},
	}

	cmd.Flags().StringVar(&agentName, "agent", "", "Agent to prompt")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Also write the reply to this file")
	_ = cmd.MarkFlagRequired("agent")
	return cmd
}
