package command

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var postCmd = &cobra.Command{
	Use:   "post <path> [json]",
	Short: "Send POST:<type> with a JSON body and print the response data",
	Example: `  soquetic post users '{"name":"ana"}'
  soquetic post "users/disable?id=7"`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var body any
		if len(args) == 2 {
			if !json.Valid([]byte(args[1])) {
				return fmt.Errorf("body is not valid JSON: %s", args[1])
			}
			body = json.RawMessage(args[1])
		}

		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		ctx, cancel := s.requestContext(cmd)
		defer cancel()
		data, err := s.client.Post(ctx, args[0], body)
		if err != nil {
			return err
		}
		printData(cmd.OutOrStdout(), data)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(postCmd)
}
