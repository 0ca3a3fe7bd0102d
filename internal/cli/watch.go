package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaiso/Sagaflow/internal/domain"
)

// NewWatchCmd создаёт команду потокового вывода событий саг.
func NewWatchCmd(envFn EnvFunc, outputFn func() *Output) *cobra.Command {
	var sagaName string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream saga lifecycle events",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := envFn(cmd.Context())
			if err != nil {
				return err
			}
			if env.Subscribe == nil {
				return fmt.Errorf("event stream: %w", ErrNotConfigured)
			}
			out := outputFn()

			if !out.JSONMode() {
				out.Line("%-20s  %-36s  %-32s  %s", "TIME", "SAGA_ID", "EVENT", "STEP")
			}

			err = env.Subscribe(cmd.Context(), sagaName, func(ev domain.Event) error {
				printEvent(out, ev)
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&sagaName, "saga", "", "Only events of this saga definition")

	return cmd
}

func printEvent(out *Output, ev domain.Event) {
	if out.JSONMode() {
		out.JSON(ev)
		return
	}

	line := fmt.Sprintf("%-20s  %-36s  %-32s  %s",
		ev.OccurredAt.Format(timeLayout), ev.SagaID, ev.Type, orDash(ev.Step))
	if ev.Error != "" {
		line += "  error=" + ev.Error
	}
	out.Line("%s", line)
}
