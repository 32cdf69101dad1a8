package cli

import (
	"context"

	"github.com/felixgeelhaar/laigent/internal/ui/tui"
	"github.com/spf13/cobra"
)

func newChatCmd(g *globals) *cobra.Command {
	var agentName string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat with one agent",
		Args:  cobra.NoArgs,
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

			respond := func(ctx context.Context, text string) (string, error) {
				reply, err := a.Prompt(ctx, text)
				if err != nil {
					return "", err
				}
				return reply.String(), nil
			}
			return tui.Run(ctx, a.Name(), a.Color().Hex(), respond)
		},
	}

	cmd.Flags().StringVar(&agentName, "agent", "", "Agent to chat with")
	_ = cmd.MarkFlagRequired("agent")
	return cmd
}
