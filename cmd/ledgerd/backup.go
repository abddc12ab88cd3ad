package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmynk/physioledger/internal/snapshot"
	"github.com/mmynk/physioledger/internal/storage"
)

// scopeFlag selects the ledger of one account, or the guest ledger.
type scopeFlag struct {
	user string
}

func (f *scopeFlag) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.user, "user", "", "Account ID whose ledger to use (default: guest)")
}

func (f *scopeFlag) scope() string {
	return storage.ScopeFor(f.user)
}

func newExportCommand() *cobra.Command {
	var scope scopeFlag
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a ledger backup as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStack(cfg, logger, nil)
			if err != nil {
				return err
			}
			defer st.Close(context.Background())

			store, err := st.registry.Get(cmd.Context(), scope.scope())
			if err != nil {
				return fmt.Errorf("failed to open ledger: %w", err)
			}
			doc := snapshot.Export(store, time.Now())

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			if err := snapshot.Encode(w, doc); err != nil {
				return err
			}
			logger.Info("Ledger exported", "scope", store.Scope(), "records", doc.Stats().Total())
			return nil
		},
	}
	scope.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default: stdout)")
	return cmd
}

func newImportCommand() *cobra.Command {
	var scope scopeFlag
	var mode string

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Load a ledger backup, replacing or merging with the current ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := snapshot.ParseMode(mode)
			if err != nil {
				return err
			}
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", args[0], err)
				}
				defer f.Close()
				r = f
			}
			doc, err := snapshot.Decode(r)
			if err != nil {
				return err
			}

			st, err := openStack(cfg, logger, nil)
			if err != nil {
				return err
			}
			return importInto(cmd, st, scope.scope(), doc, m)
		},
	}
	scope.register(cmd)
	cmd.Flags().StringVar(&mode, "mode", string(snapshot.Merge), "Import mode: replace or merge")
	return cmd
}

func newPullCommand() *cobra.Command {
	var scope scopeFlag

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Merge the replica's copy of a ledger into the local one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			syncer, closeReplica, err := openReplica(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer closeReplica()
			if syncer == nil {
				return errors.New("replica.mongo_uri is not configured")
			}

			doc, err := syncer.Pull(cmd.Context(), scope.scope())
			if err != nil {
				return err
			}
			st, err := openStack(cfg, logger, nil)
			if err != nil {
				return err
			}
			return importInto(cmd, st, scope.scope(), doc, snapshot.Merge)
		},
	}
	scope.register(cmd)
	return cmd
}

// importInto imports doc into scope and closes the stack.
func importInto(cmd *cobra.Command, st *stack, scope string, doc *snapshot.Document, mode snapshot.Mode) (err error) {
	defer func() {
		err = errors.Join(err, st.Close(context.Background()))
	}()

	store, err := st.registry.Get(cmd.Context(), scope)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	res, err := snapshot.Import(cmd.Context(), store, doc, mode)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d imported, %d skipped\n", mode, res.Imported, res.Skipped)
	return nil
}
