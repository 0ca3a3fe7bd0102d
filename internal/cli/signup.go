package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaiso/Sagaflow/internal/saga"
	"github.com/shaiso/Sagaflow/internal/workflows"
)

// NewSignupCmd создаёт команду запуска саги регистрации.
// Сага выполняется в процессе CLI.
func NewSignupCmd(envFn EnvFunc, outputFn func() *Output) *cobra.Command {
	var req workflows.SignupRequest
	var correlationID string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Run the signup saga",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := req.Validate(); err != nil {
				return err
			}

			env, err := envFn(cmd.Context())
			if err != nil {
				return err
			}
			if env.Signup == nil {
				return fmt.Errorf("signup saga: %w", ErrNotConfigured)
			}
			out := outputFn()

			rec, err := env.Signup.Execute(cmd.Context(), req, &saga.Seed{CorrelationID: correlationID})
			if rec != nil {
				printRecord(out, rec)
			}
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Signup saga %s completed", rec.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "User email (required)")
	cmd.Flags().StringVar(&req.Name, "name", "", "Display name (required)")
	cmd.Flags().StringVar(&correlationID, "correlation-id", "", "Correlation ID (generated if empty)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}
