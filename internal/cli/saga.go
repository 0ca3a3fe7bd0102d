package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Sagaflow/internal/domain"
)

const timeLayout = time.RFC3339

// NewListCmd создаёт команду вывода незавершённых саг.
func NewListCmd(envFn EnvFunc, outputFn func() *Output) *cobra.Command {
	var limit int
	var staleFor time.Duration

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List unfinished sagas",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := envFn(cmd.Context())
			if err != nil {
				return err
			}
			out := outputFn()

			records, err := env.Store.ListUnfinished(cmd.Context(), time.Now().Add(-staleFor), limit)
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "STATUS", "CURRENT_STEP", "UPDATED"}
			rows := make([][]string, len(records))
			for i, r := range records {
				rows[i] = []string{r.ID, r.Name, r.Status.String(), r.CurrentStep, r.UpdatedAt.Format(timeLayout)}
			}

			out.Print(headers, rows, records)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of results")
	cmd.Flags().DurationVar(&staleFor, "stale-for", 0, "Only sagas not updated for this long")

	return cmd
}

// NewShowCmd создаёт команду просмотра записи саги.
func NewShowCmd(envFn EnvFunc, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show SAGA_ID",
		Short: "Show saga record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := envFn(cmd.Context())
			if err != nil {
				return err
			}

			rec, err := env.Store.Load(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("load saga %s: %w", args[0], err)
			}

			printRecord(outputFn(), rec)
			return nil
		},
	}
}

// NewResumeCmd создаёт команду ручного продолжения саги.
func NewResumeCmd(envFn EnvFunc, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "resume SAGA_ID",
		Short: "Resume an interrupted or failed saga",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := envFn(cmd.Context())
			if err != nil {
				return err
			}
			out := outputFn()

			stored, err := env.Store.Load(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("load saga %s: %w", args[0], err)
			}
			r, err := env.resumer(stored.Name)
			if err != nil {
				return err
			}

			rec, err := r.Resume(cmd.Context(), args[0])
			if rec != nil {
				printRecord(out, rec)
			}
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Saga %s is %s", rec.ID, rec.Status))
			return nil
		},
	}
}

func printRecord(out *Output, rec *domain.Record) {
	view := newRecordView(rec)
	if out.JSONMode() {
		out.JSON(view)
		return
	}

	completedAt := "-"
	if rec.CompletedAt != nil {
		completedAt = rec.CompletedAt.Format(timeLayout)
	}

	pairs := [][2]string{
		{"ID", rec.ID},
		{"Name", rec.Name},
		{"Status", rec.Status.String()},
		{"Current step", orDash(rec.CurrentStep)},
		{"Started", rec.StartedAt.Format(timeLayout)},
		{"Completed", completedAt},
		{"Updated", rec.UpdatedAt.Format(timeLayout)},
		{"Error", orDash(rec.Error)},
	}
	if ec := view.Context; ec != nil {
		pairs = append(pairs,
			[2]string{"Correlation ID", orDash(ec.CorrelationID)},
			[2]string{"Completed steps", orDash(strings.Join(ec.CompletedSteps, ", "))},
			[2]string{"Compensated steps", orDash(strings.Join(ec.CompensatedSteps, ", "))},
		)
	}
	out.KeyValue(pairs)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
