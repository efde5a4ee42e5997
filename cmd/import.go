package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/funding-advisor/internal/fetcher"
)

var (
	importConcurrency int
	importCharset     string
	importDetailed    bool
)

var importCmd = &cobra.Command{
	Use:   "import <path|url>",
	Short: "Bulk-import companies from a CSV or XLSX list and run lookups",
	Long:  "Reads a company-name list from a local file, an http(s) URL, or an ftp URL, and runs a lookup for each name with bounded concurrency.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		charset := importCharset
		if charset == "" {
			charset = cfg.Import.Charset
		}
		names, err := fetcher.NewSource().Names(ctx, args[0], charset)
		if err != nil {
			return err
		}
		zap.L().Info("import list loaded",
			zap.String("source", args[0]),
			zap.Int("companies", len(names)),
		)

		concurrency := importConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Import.Concurrency
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for _, name := range names {
			g.Go(func() error {
				res, err := env.Service.RunLookup(gctx, name, importDetailed)
				if err != nil {
					zap.L().Error("import lookup failed",
						zap.String("company", name),
						zap.Error(err),
					)
					return err
				}
				zap.L().Info("imported company",
					zap.String("company", name),
					zap.Int64("company_id", res.CompanyID),
					zap.Bool("created", res.Created),
				)
				return nil
			})
		}
		return g.Wait()
	},
}

func init() {
	importCmd.Flags().IntVar(&importConcurrency, "concurrency", 0, "parallel lookups (default from config)")
	importCmd.Flags().StringVar(&importCharset, "charset", "", "source text encoding for CSV input (default UTF-8)")
	importCmd.Flags().BoolVar(&importDetailed, "detailed", false, "run the detailed enrichment agent for each company")
	rootCmd.AddCommand(importCmd)
}
