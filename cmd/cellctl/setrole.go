package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/ryanbastic/go-cellgrid/internal/cell"
	"github.com/ryanbastic/go-cellgrid/internal/cellstore"
	"github.com/ryanbastic/go-cellgrid/internal/workflow"
	"github.com/spf13/cobra"
)

// operatorError prints as the operator-facing message and unwraps to the
// cause.
type operatorError struct {
	err error
}

func (e *operatorError) Error() string { return workflow.UserMessage(e.err) }
func (e *operatorError) Unwrap() error { return e.err }

func newSetRoleCmd(a *app) *cobra.Command {
	var (
		reason    string
		warehouse string
		yes       bool
	)
	cmd := &cobra.Command{
		Use:   "set-role CELL_ID ROLE",
		Short: "Change the role of one cell",
		Long: `set-role shows the change, including a warning when the cell holds stock,
and asks for confirmation before submitting it. Administrator token required.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid cell id: %w", err)
			}
			newRole := cell.Role(strings.ToUpper(strings.TrimSpace(args[1])))
			wid, err := optionalWarehouse(warehouse)
			if err != nil {
				return err
			}
			p, err := a.principal()
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd)
			defer cancel()

			store := cellstore.NewMemoryStore()
			if err := loadWarehouse(ctx, a, store, wid); err != nil {
				return err
			}
			wf := workflow.New(a.client, store, p, a.catalog(cmd), a.logger)

			if _, err := wf.Open(id); err != nil {
				return &operatorError{err}
			}
			conf, err := wf.SelectRole(newRole, reason)
			if err != nil {
				return &operatorError{err}
			}

			out := cmd.OutOrStdout()
			printConfirmation(out, conf)
			if !yes {
				ok, err := confirm(cmd.InOrStdin(), out, "Apply this change?")
				if err != nil {
					return err
				}
				if !ok {
					_ = wf.Cancel()
					_ = wf.Close()
					fmt.Fprintln(out, "Cancelled.")
					return nil
				}
			}

			updated, err := wf.Confirm(ctx)
			if err != nil {
				return &operatorError{err}
			}
			if a.structured() {
				return printOutput(out, a.cfg.Output, updated)
			}
			fmt.Fprintf(out, "Cell %s is now %s.\n", cellLabel(updated), updated.EffectiveRole())
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Why the role changes (required)")
	cmd.Flags().StringVar(&warehouse, "warehouse", "", "Load only this warehouse")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func newBulkSetRoleCmd(a *app) *cobra.Command {
	var (
		warehouse string
		from      string
		to        string
		reason    string
		yes       bool
	)
	cmd := &cobra.Command{
		Use:   "bulk-set-role",
		Short: "Change every cell of one role in a warehouse to another role",
		Long: `bulk-set-role submits one change per cell. Each cell succeeds or fails on
its own; passages are skipped. Administrator token required.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			wid, err := uuid.Parse(warehouse)
			if err != nil {
				return fmt.Errorf("invalid --warehouse: %w", err)
			}
			fromRole, err := cell.ParseRole(from)
			if err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
			toRole := cell.Role(strings.ToUpper(strings.TrimSpace(to)))
			p, err := a.principal()
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd)
			defer cancel()

			store := cellstore.NewMemoryStore()
			if err := loadWarehouse(ctx, a, store, &wid); err != nil {
				return err
			}
			view := store.GetCells()

			targets, occupied := 0, 0
			for _, c := range view {
				if c.IsPassage || c.EffectiveRole() != fromRole {
					continue
				}
				targets++
				if c.Occupied() {
					occupied++
				}
			}
			out := cmd.OutOrStdout()
			if targets == 0 {
				fmt.Fprintf(out, "No %s cells in this warehouse.\n", fromRole)
				return nil
			}

			fmt.Fprintf(out, "Change %d cells from %s to %s\n", targets, fromRole, toRole)
			fmt.Fprintf(out, "Reason: %s\n", strings.TrimSpace(reason))
			if occupied > 0 {
				fmt.Fprintf(out, "Warning: %d of these cells hold stock; the role change does not move it\n", occupied)
			}
			if !yes {
				ok, err := confirm(cmd.InOrStdin(), out, "Apply these changes?")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, "Cancelled.")
					return nil
				}
			}

			wf := workflow.New(a.client, store, p, a.catalog(cmd), a.logger)
			result, err := wf.BulkChange(ctx, view, fromRole, toRole, reason)
			if err != nil {
				return &operatorError{err}
			}
			if err := printBulkResult(out, a, result); err != nil {
				return err
			}
			if result.Failed > 0 {
				return fmt.Errorf("%d of %d changes failed", result.Failed, result.Failed+result.Succeeded)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&warehouse, "warehouse", "", "Warehouse ID")
	cmd.Flags().StringVar(&from, "from", "", "Current role of the cells to change")
	cmd.Flags().StringVar(&to, "to", "", "New role")
	cmd.Flags().StringVar(&reason, "reason", "", "Why the roles change (required)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	for _, f := range []string{"warehouse", "from", "to"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

type bulkOutcomeView struct {
	CellID uuid.UUID `json:"cell_id"`
	Cell   string    `json:"cell"`
	OK     bool      `json:"ok"`
	Error  string    `json:"error,omitempty"`
}

type bulkResultView struct {
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Skipped   int               `json:"skipped"`
	Outcomes  []bulkOutcomeView `json:"outcomes"`
}

func printBulkResult(w io.Writer, a *app, result workflow.BulkResult) error {
	view := bulkResultView{
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Skipped:   result.Skipped,
		Outcomes:  make([]bulkOutcomeView, 0, len(result.Outcomes)),
	}
	rows := make([][]string, 0, len(result.Outcomes))
	for _, o := range result.Outcomes {
		v := bulkOutcomeView{
			CellID: o.CellID,
			Cell:   fmt.Sprintf("%s-%02d-%d", o.Coord.Row, o.Coord.Bay, o.Coord.Position),
			OK:     o.OK(),
		}
		status := "changed"
		if !o.OK() {
			v.Error = workflow.UserMessage(o.Err)
			status = v.Error
		}
		view.Outcomes = append(view.Outcomes, v)
		rows = append(rows, []string{v.Cell, status})
	}

	if a.structured() {
		return printOutput(w, a.cfg.Output, view)
	}
	if err := printTable(w, []string{"Cell", "Result"}, rows); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Changed: %d  Failed: %d  Skipped: %d\n", view.Succeeded, view.Failed, view.Skipped)
	return err
}

func printConfirmation(w io.Writer, conf workflow.Confirmation) {
	fmt.Fprintf(w, "Change cell %s from %s to %s\n", cellLabel(conf.Cell), conf.OldRole, conf.NewRole)
	fmt.Fprintf(w, "Reason: %s\n", conf.Reason)
	if conf.Warning != "" {
		fmt.Fprintf(w, "Warning: %s\n", conf.Warning)
	}
}

// confirm asks a yes/no question; anything but y or yes is a no.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read answer: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func cellLabel(c cell.Cell) string {
	return fmt.Sprintf("%s-%02d-%d", c.Row, c.Bay, c.Position)
}
