package cli

import (
	"strings"

	"github.com/felixgeelhaar/laigent/internal/orchestrate"
	"github.com/spf13/cobra"
)

func newPipeCmd(g *globals) *cobra.Command {
	var (
		steps    []string
		remember bool
	)

	cmd := &cobra.Command{
		Use:   "pipe [text]",
		Short: "Feed text through a chain of agents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, g)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			sys, err := s.agents(ctx, g, true)
			if err != nil {
				return err
			}
			if len(steps) == 0 {
				steps = sys.Names()
			}
			chain, err := orchestrate.StepsFromSystem(sys, steps, remember)
			if err != nil {
				return err
			}

			p := orchestrate.New(s.obs, s.palette, s.bus, chain...)
			results, err := p.Run(ctx, strings.Join(args, " "))
			for i, r := range results {
				s.out.Reply(chain[i].Agent, r.Reply)
			}
			return err
		},
	}

	cmd.Flags().StringSliceVar(&steps, "steps", nil, "Agent names in order (default: every agent in file order)")
	cmd.Flags().BoolVar(&remember, "remember", false, "Store each reply in the replying agent's memory")
	return cmd
}
