package command

import (
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Send GET:<type> and print the response data",
	Long: `Send a GET request event and print the data of the response.

The path is an event name with an optional query string, for example
  soquetic get "users?active=true"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		ctx, cancel := s.requestContext(cmd)
		defer cancel()
		data, err := s.client.Get(ctx, args[0])
		if err != nil {
			return err
		}
		printData(cmd.OutOrStdout(), data)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
