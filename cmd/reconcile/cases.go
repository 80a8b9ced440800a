package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"roombook/internal/domains/reconciliation/model"
	"roombook/internal/domains/reconciliation/model/dto"
	"roombook/shared/constant"
	gDto "roombook/shared/dto"
	"roombook/shared/validator"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reconciliation cases",
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, _ := cmd.Flags().GetString("status")
			page, _ := cmd.Flags().GetInt("page")
			limit, _ := cmd.Flags().GetInt("limit")

			filter := dto.ListFilter{Status: status}
			if err := validator.ValidateStruct(&filter); err != nil {
				return err //nolint:wrapcheck
			}

			kit, err := toolkit()
			if err != nil {
				return err
			}

			params := gDto.QueryParams{Page: page, Limit: limit, SortBy: constant.FieldCreatedAt, SortDir: gDto.SortDirAsc}

			res, err := kit.Reconciliation.GetAll(operatorContext(cmd), params, filter.ToFilterGroup())
			if err != nil {
				return fmt.Errorf("failed to list cases: %w", err)
			}

			writer := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(writer, "ID\tSTATUS\tREASON\tBOOKING\tREFERENCE\tAMOUNT\tATTEMPTS\tCREATED")

			for _, rec := range res.Reconciliations {
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%d %s\t%d\t%s\n",
					rec.ID, rec.Status, rec.Reason, rec.BookingID, rec.PaymentReference,
					rec.Amount, rec.Currency, rec.Attempts, rec.CreatedAt)
			}

			fmt.Fprintf(writer, "\n%d case(s), page %d of %d\n", res.TotalData, page, res.TotalPage)

			return writer.Flush() //nolint:wrapcheck
		},
	}

	cmd.Flags().String("status", model.StatusPendingManual, "Filter by status, empty for all")
	cmd.Flags().Int("page", constant.DefaultValuePage, "Page")
	cmd.Flags().Int("limit", constant.DefaultValueLimit, "Cases per page")

	return cmd
}

func showCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show a case, or its archived case file with --file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kit, err := toolkit()
			if err != nil {
				return err
			}

			if file, _ := cmd.Flags().GetBool("file"); file {
				data, err := kit.Reconciliation.CaseFile(operatorContext(cmd), args[0])
				if err != nil {
					return fmt.Errorf("failed to download case file: %w", err)
				}

				_, err = os.Stdout.Write(append(data, '\n'))

				return err //nolint:wrapcheck
			}

			rec, err := kit.Reconciliation.Get(operatorContext(cmd), args[0])
			if err != nil {
				return fmt.Errorf("failed to get case: %w", err)
			}

			return printJSON(rec)
		},
	}

	cmd.Flags().Bool("file", false, "Print the archived case file instead of the stored row")

	return cmd
}

func retryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id]",
		Short: "Attempt the reversal of a PENDING_MANUAL case again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kit, err := toolkit()
			if err != nil {
				return err
			}

			rec, err := kit.Reconciliation.Retry(operatorContext(cmd), args[0])
			if err != nil {
				return fmt.Errorf("failed to retry case: %w", err)
			}

			return printJSON(rec)
		},
	}
}

func resolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve [id]",
		Short: "Close a PENDING_MANUAL case that was settled outside the service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			note, _ := cmd.Flags().GetString("note")

			req := dto.ResolveRequest{Note: note}
			if err := validator.ValidateStruct(&req); err != nil {
				return err //nolint:wrapcheck
			}

			kit, err := toolkit()
			if err != nil {
				return err
			}

			rec, err := kit.Reconciliation.Resolve(operatorContext(cmd), args[0], req)
			if err != nil {
				return fmt.Errorf("failed to resolve case: %w", err)
			}

			return printJSON(rec)
		},
	}

	cmd.Flags().String("note", "", "How the payment was settled")

	if err := cmd.MarkFlagRequired("note"); err != nil {
		panic(err)
	}

	return cmd
}

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Retry the oldest PENDING_MANUAL cases once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			batch, _ := cmd.Flags().GetInt("batch")

			kit, err := toolkit()
			if err != nil {
				return err
			}

			res, err := kit.Reconciliation.RetryPending(operatorContext(cmd), batch)
			if err != nil {
				return fmt.Errorf("failed to sweep cases: %w", err)
			}

			return printJSON(res)
		},
	}

	cmd.Flags().Int("batch", 0, "Cases per sweep, 0 for the configured size")

	return cmd
}

func operatorContext(cmd *cobra.Command) context.Context {
	operator, _ := cmd.Flags().GetString("operator")
	if operator == constant.Empty {
		operator = os.Getenv("USER")
	}

	if operator == constant.Empty {
		operator = constant.ContextSystem
	}

	return context.WithValue(cmd.Context(), constant.ContextKeyOperator, operator)
}

func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	return encoder.Encode(value) //nolint:wrapcheck
}
