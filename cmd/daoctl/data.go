package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/config"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/dao"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/logger"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/query"
)

// withDao opens a DAO for the duration of fn.
func withDao(ctx context.Context, opts *options, fn func(dao.IDao) error) (err error) {
	cfg, err := config.Load(opts.configPath, config.DefaultEnvPrefix)
	if err != nil {
		return err
	}
	log, err := logger.NewLogger("local", opts.logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	d, err := dao.New(cfg, dao.WithLogger(log))
	if err != nil {
		return err
	}
	if err := d.Init(ctx); err != nil {
		return err
	}
	defer func() {
		if closeErr := d.Close(ctx); closeErr != nil {
			log.Warn("failed to close dao", zap.Error(closeErr))
			if err == nil {
				err = closeErr
			}
		}
	}()
	return fn(d)
}

func newGetManyCmd(opts *options) *cobra.Command {
	var (
		filter   string
		sortSpec string
		page     int64
		pageSize int64
	)
	cmd := &cobra.Command{
		Use:   "get-many <model>",
		Short: "Print the records of a model matching a filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := decodeFilter(filter)
			if err != nil {
				return err
			}
			var sort any
			if sortSpec != "" {
				if sort, err = query.DecodeSort(sortSpec); err != nil {
					return err
				}
			}
			var window *dao.Page
			if cmd.Flags().Changed("page") || cmd.Flags().Changed("page-size") {
				window = &dao.Page{Number: page, Size: pageSize}
			}
			return withDao(cmd.Context(), opts, func(d dao.IDao) error {
				records, err := d.GetMany(cmd.Context(), args[0], filters, sort, window)
				if err != nil {
					return err
				}
				if records == nil {
					records = []dao.Record{}
				}
				return render(cmd.OutOrStdout(), opts.output, records)
			})
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "filter expression as a JSON object")
	cmd.Flags().StringVar(&sortSpec, "sort", "", `sort as "name,-age", a JSON object or a JSON array of pairs`)
	cmd.Flags().Int64Var(&page, "page", 1, "1-indexed page number")
	cmd.Flags().Int64Var(&pageSize, "page-size", 20, "records per page")
	return cmd
}

func newCountCmd(opts *options) *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "count <model>",
		Short: "Count the records of a model matching a filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := decodeFilter(filter)
			if err != nil {
				return err
			}
			return withDao(cmd.Context(), opts, func(d dao.IDao) error {
				n, err := d.Count(cmd.Context(), args[0], filters)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), opts.output, map[string]int64{"count": n})
			})
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "filter expression as a JSON object")
	return cmd
}
