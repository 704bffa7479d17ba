package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"weighttrack/internal/app"
)

// withStore opens the configured store for the duration of fn.
func (c *cli) withStore(ctx context.Context, fn func(*store) error) error {
	st, err := openStore(ctx, c.cfg.DatabaseURL, c.log)
	if err != nil {
		return err
	}
	defer func() { _ = st.close() }()
	return fn(st)
}

func (c *cli) transfer(st *store) *app.TransferService {
	entries := app.NewEntryService(st.entries, nil, c.log)
	return app.NewTransferService(st.entries, entries, nil, c.log)
}

func (c *cli) exportCommand() *cobra.Command {
	var email, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a user's entries as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return c.withStore(ctx, func(st *store) error {
				u, err := st.userByEmail(ctx, email)
				if err != nil {
					return err
				}
				return writeOutput(out, cmd.OutOrStdout(), func(w io.Writer) error {
					return c.transfer(st).Export(ctx, u.ID, w)
				})
			})
		},
	}
	cmd.Flags().StringVar(&email, "user", "", "account email")
	cmd.Flags().StringVar(&out, "out", "", "output file (default stdout)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (c *cli) importCommand() *cobra.Command {
	var email, in string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load entries for a user from a CSV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			data, err := os.ReadFile(in)
			if err != nil {
				return err
			}
			return c.withStore(ctx, func(st *store) error {
				u, err := st.userByEmail(ctx, email)
				if err != nil {
					return err
				}
				res, err := c.transfer(st).Import(ctx, u.ID, string(data))
				var failed *app.ImportFailedError
				if errors.As(err, &failed) {
					printImportResult(cmd.ErrOrStderr(), failed.Result)
					return err
				}
				if err != nil {
					return err
				}
				printImportResult(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "user", "", "account email")
	cmd.Flags().StringVar(&in, "in", "", "CSV file to import")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func (c *cli) backupCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a full backup of the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return c.withStore(ctx, func(st *store) error {
				if out == "" {
					out = st.backup.BackupFilename()
				}
				if err := writeOutput(out, cmd.OutOrStdout(), func(w io.Writer) error {
					return st.backup.Backup(ctx, w)
				}); err != nil {
					return err
				}
				c.log.Infow("backup written", "file", out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output file (default: a timestamped name in the working directory)")
	return cmd
}

// writeOutput runs fn against path, or against stdout when path is empty or
// "-". A partially written file is removed on failure.
func writeOutput(path string, stdout io.Writer, fn func(io.Writer) error) error {
	if path == "" || path == "-" {
		return fn(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

func printImportResult(w io.Writer, res *app.ImportResult) {
	fmt.Fprintf(w, "imported %d, skipped %d\n", res.Imported, res.Skipped)
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  line %d: %s\n", e.Line, e.Message)
	}
}
