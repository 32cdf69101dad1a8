package cli

import (
	"github.com/spf13/cobra"
)

func newAgentsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List the configured agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, g)
			if err != nil {
				return err
			}
			defer s.Close()

			sys, err := s.agents(cmd.Context(), g, false)
			if err != nil {
				return err
			}
			s.out.Agents(sys.Agents())
			return nil
		},
	}
}
