package command

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/soquetic/soquetic-go/pkg/soquetic"
)

var listenCmd = &cobra.Command{
	Use:   "listen <event>...",
	Short: "Print RT:<event> broadcasts until interrupted",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		out := cmd.OutOrStdout()
		name := color.New(color.FgCyan).SprintFunc()
		for _, event := range args {
			event := event
			err := s.client.SubscribeRealTimeEvent(event, func(d soquetic.Data) {
				fmt.Fprintf(out, "%s %s %s\n", time.Now().Format(time.TimeOnly), name(event), d)
			})
			if err != nil {
				return err
			}
		}
		color.New(color.FgGreen).Fprintf(cmd.ErrOrStderr(), "listening on %s, Ctrl+C to stop\n", s.cfg.Endpoint())

		states, stop := s.client.States()
		defer stop()
		for {
			select {
			case <-cmd.Context().Done():
				return nil
			case sc, ok := <-states:
				if !ok {
					return nil
				}
				printState(cmd, sc)
				if sc.Final {
					if sc.Err != nil {
						return sc.Err
					}
					return fmt.Errorf("connection closed by server")
				}
			}
		}
	},
}

func printState(cmd *cobra.Command, sc soquetic.StateChange) {
	if sc.Err != nil {
		color.New(color.FgYellow).Fprintf(cmd.ErrOrStderr(), "%s: %v\n", sc.State, sc.Err)
		return
	}
	color.New(color.FgHiBlack).Fprintf(cmd.ErrOrStderr(), "%s\n", sc.State)
}

func init() {
	rootCmd.AddCommand(listenCmd)
}
