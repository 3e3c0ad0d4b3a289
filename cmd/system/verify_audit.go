package system

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Alijeyrad/simorq_booking/internal/repo"
	"github.com/Alijeyrad/simorq_booking/internal/repo/pgstore"
	"github.com/Alijeyrad/simorq_booking/internal/service/audit"
	"github.com/Alijeyrad/simorq_booking/pkg/apperr"
	"github.com/Alijeyrad/simorq_booking/pkg/database"
	"github.com/Alijeyrad/simorq_booking/pkg/logs"
)

func NewVerifyAuditCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "verify-audit",
		Short: "Verify the hash chain of the audit log",
		Long: `Verify the audit log hash chain.

Without --file the stored chain is loaded from the booking database and
verified from its genesis entry. With --file a JSON array of exported entries
is verified, anchored on the first entry. Exits non-zero when the chain is
broken.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var report *audit.Report

			if file != "" {
				raw, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read %q: %w", file, err)
				}
				var entries []*repo.AuditLogEntry
				if err := json.Unmarshal(raw, &entries); err != nil {
					return fmt.Errorf("failed to decode %q: %w", file, err)
				}
				report = audit.Verify(entries)
			} else {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				ctx, cancel := timeoutContext(cfg)
				defer cancel()

				db, err := database.OpenFromCentral(cfg.Database)
				if err != nil {
					return fmt.Errorf("failed to open database: %w", err)
				}
				store := pgstore.New(db)
				defer store.Close()

				chain := audit.NewChain(store, logs.New(cfg))
				defer chain.Close()

				report, err = chain.VerifyStored(ctx)
				if err != nil && !errors.Is(err, apperr.ErrIntegrity) {
					return err
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}

			if !report.Valid {
				slog.Error("audit chain broken", "first_break_index", *report.FirstBreakIndex)
				return audit.ErrChainBroken
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Verify exported entries from a JSON file instead of the database")

	return cmd
}
