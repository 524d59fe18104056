// Package commands holds the CLI subcommands registered on the app's root
// command.
package commands

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/pocketbase/pocketbase/core"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"tenderestimate/services"
)

// NewRecalcCommand returns `recalc [tenderId...]`, which re-derives and stores
// every item total and position cache of the given tenders, or of all
// tenders with --all.
func NewRecalcCommand(app core.App, policy services.MarkupPolicy) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "recalc [tenderId...]",
		Short: "Recalculate stored quantities and totals of tenders",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := args
			if all {
				records, err := app.FindAllRecords(services.CollectionTenders)
				if err != nil {
					return fmt.Errorf("list tenders: %w", err)
				}
				ids = ids[:0:0]
				for _, r := range records {
					ids = append(ids, r.Id)
				}
			}
			if len(ids) == 0 {
				return errors.New("pass at least one tender id or --all")
			}

			est := services.NewEstimator(services.NewRecordStore(app), nil, policy)
			failed := 0
			for _, id := range ids {
				if _, err := app.FindRecordById(services.CollectionTenders, id); err != nil {
					if errors.Is(err, sql.ErrNoRows) {
						return fmt.Errorf("tender %s not found", id)
					}
					return err
				}

				result, err := est.Recalc(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("recalc tender %s: %w", id, err)
				}
				for _, f := range result.Failures {
					log.Warn().Err(f.Err).Str("tender_id", id).Str("item_id", f.ItemID).Msg("recalc: line not priced")
				}
				for _, w := range result.Warnings {
					log.Warn().Str("tender_id", id).Str("link_id", w.LinkID).Msg("recalc: dangling link")
				}
				failed += len(result.Failures)

				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s positions, %s items, %s updated, %d failed\n",
					id,
					humanize.Comma(int64(result.Positions)),
					humanize.Comma(int64(result.Items)),
					humanize.Comma(int64(result.Updated)),
					len(result.Failures))
			}
			if failed > 0 {
				return fmt.Errorf("%d lines could not be priced", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "recalculate every tender")
	return cmd
}
