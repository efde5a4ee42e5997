package main

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/funding-advisor/internal/model"
)

var adviseDemo bool

var adviseCmd = &cobra.Command{
	Use:   "advise <company-id>",
	Short: "Generate a funding recommendation report for a company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		companyID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Wrapf(err, "invalid company id %q", args[0])
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var report *model.InvestorReport
		if adviseDemo {
			report, err = env.Service.SeedDemoReport(ctx, companyID)
		} else {
			report, err = env.Service.GenerateReport(ctx, companyID)
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	adviseCmd.Flags().BoolVar(&adviseDemo, "demo", false, "seed a canned demo report instead of calling the advisory model")
	rootCmd.AddCommand(adviseCmd)
}
