package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/infrastructure/mongostore"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/infrastructure/sqlstore"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/query"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/storage"
)

func newFilterCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Validate and compile filter expressions",
	}
	cmd.AddCommand(newFilterValidateCmd(opts), newFilterCompileCmd(opts))
	return cmd
}

func newFilterValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <json>",
		Short: "Check a filter expression and print it back",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := decodeFilter(args[0])
			if err != nil {
				return err
			}
			validated, err := query.Validate(filters)
			if err != nil {
				return err
			}
			if validated == nil {
				validated = map[string]any{}
			}
			return render(cmd.OutOrStdout(), opts.output, validated)
		},
	}
}

func newFilterCompileCmd(opts *options) *cobra.Command {
	var engine string
	cmd := &cobra.Command{
		Use:   "compile <json>",
		Short: "Compile a filter expression into a predicate tree or an engine query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := decodeFilter(args[0])
			if err != nil {
				return err
			}
			pred, err := query.Compile(filters)
			if err != nil {
				return err
			}
			compiled, err := compileFor(engine, pred)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, compiled)
		},
	}
	cmd.Flags().StringVar(&engine, "engine", "tree", "target: tree, postgres, sqlite or mongodb")
	return cmd
}

func compileFor(engine string, pred query.IPredicate) (any, error) {
	switch engine {
	case "tree":
		return query.PredicateToDict(pred)
	case "postgres":
		return compileSQL(sqlstore.PostgresDialect{}, pred)
	case "sqlite":
		return compileSQL(sqlstore.SQLiteDialect{}, pred)
	case "mongodb":
		doc, err := mongostore.NewPredicateCompiler().Compile(pred)
		if err != nil {
			return nil, err
		}
		data, err := bson.MarshalExtJSON(doc, false, false)
		if err != nil {
			return nil, err
		}
		return storage.DecodeJSON(data)
	}
	return nil, fmt.Errorf("unsupported engine %q", engine)
}

func compileSQL(dialect sqlstore.Dialect, pred query.IPredicate) (any, error) {
	where, params, err := sqlstore.NewPredicateCompiler(dialect).Compile(pred)
	if err != nil {
		return nil, err
	}
	if params == nil {
		params = []any{}
	}
	return map[string]any{"where": where, "params": params}, nil
}
