package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/funding-advisor/internal/advisor"
)

var migrateSeedDemo bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return err
		}
		zap.L().Info("migrations applied", zap.String("driver", cfg.Store.Driver))

		if migrateSeedDemo {
			svc := advisor.NewService(st, nil, nil)
			if err := svc.SeedDemoTemplates(ctx); err != nil {
				return err
			}
			zap.L().Info("demo recommendation templates seeded")
		}

		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateSeedDemo, "seed-demo", false, "also seed demo recommendation templates")
	rootCmd.AddCommand(migrateCmd)
}
