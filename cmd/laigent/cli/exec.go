package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newExecCmd(g *globals) *cobra.Command {
	var agentName string

	cmd := &cobra.Command{
		Use:   "exec [command]",
		Short: "Run a shell command through an agent's action layer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, g)
			if err != nil {
				return err
			}
			defer s.Close()

			a, err := s.agent(cmd.Context(), g, agentName, false)
			if err != nil {
				return err
			}

			out, err := a.ExecuteCommand(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&agentName, "agent", "", "Agent that runs the command")
	_ = cmd.MarkFlagRequired("agent")
	return cmd
}
