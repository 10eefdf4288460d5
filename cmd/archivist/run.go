package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/newthinker/archivist/internal/app"
	"github.com/newthinker/archivist/internal/config"
	"github.com/newthinker/archivist/internal/coordinator"
	"github.com/newthinker/archivist/internal/core"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var archiveCmd = &cobra.Command{
	Use:   "archive <object-id>",
	Short: "Move an object to the archive tier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd.Context(), core.OperationArchive, args[0])
	},
}

var unarchiveCmd = &cobra.Command{
	Use:   "unarchive <object-id>",
	Short: "Move an object back to the active tier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd.Context(), core.OperationUnarchive, args[0])
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <object-id>",
	Short: "Compare an object's tracked status with its physical tier",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

var (
	resourceKind string
	locationHint string
	action       string
)

var errInconsistent = errors.New("tracked status does not match storage")

func init() {
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(unarchiveCmd)
	rootCmd.AddCommand(verifyCmd)

	for _, c := range []*cobra.Command{archiveCmd, unarchiveCmd} {
		c.Flags().StringVar(&resourceKind, "resource-kind", core.ResourceKindFile, "resource kind of the object")
		c.Flags().StringVar(&locationHint, "location", "", "file path or object key, used when the tracker has none")
		c.Flags().StringVar(&action, "action", "", "request action, checked against router.accepted_actions")
	}
}

func runOperation(ctx context.Context, op core.Operation, objectID string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	if ctx == nil {
		ctx = context.Background()
	}

	return withApp(log, func(a *app.App, _ *config.Config) error {
		res, err := a.Submit(ctx, core.OperationRequest{
			ObjectID:     objectID,
			ResourceKind: resourceKind,
			Operation:    op,
			LocationHint: locationHint,
			Action:       action,
		})
		if err != nil {
			var opErr *coordinator.OpError
			if errors.As(err, &opErr) && opErr.ReconciliationRequired() {
				fmt.Fprintf(os.Stderr, "storage changed but status was not reported; run `archivist verify %s` after fixing the tracker\n", objectID)
			}
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Object:\t%s\n", res.ObjectID)
		fmt.Fprintf(w, "Operation:\t%s\n", res.Operation)
		fmt.Fprintf(w, "Outcome:\t%s\n", res.Outcome)
		if res.Status != "" {
			fmt.Fprintf(w, "Status:\t%s\n", res.Status)
		}
		if res.Locator != "" {
			fmt.Fprintf(w, "Locator:\t%s\n", res.Locator)
		}
		w.Flush()

		log.Debug("operation completed", zap.String("record_id", res.RecordID))
		return nil
	})
}

func runVerify(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	return withApp(log, func(a *app.App, _ *config.Config) error {
		rep, err := a.Coordinator().Verify(ctx, args[0])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Object:\t%s\n", rep.ObjectID)
		fmt.Fprintf(w, "Backend:\t%s\n", rep.Backend)
		fmt.Fprintf(w, "Locator:\t%s\n", rep.Locator)
		fmt.Fprintf(w, "Tracked:\t%s\n", rep.Tracked)
		fmt.Fprintf(w, "Physical:\t%s\n", rep.Physical)
		fmt.Fprintf(w, "Consistent:\t%t\n", rep.Consistent)
		w.Flush()

		if !rep.Consistent {
			return errInconsistent
		}
		return nil
	})
}
