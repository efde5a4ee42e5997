package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var lookupDetailed bool

var lookupCmd = &cobra.Command{
	Use:   "lookup <company name>",
	Short: "Look up a company and enrich its profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Service.RunLookup(ctx, args[0], lookupDetailed)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	lookupCmd.Flags().BoolVar(&lookupDetailed, "detailed", false, "run the detailed enrichment agent")
	rootCmd.AddCommand(lookupCmd)
}
