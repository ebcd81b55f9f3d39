package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newRunCmd(load loader) *cobra.Command {
	var failOnError bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one health-check run and print its report as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			rep, err := a.runner.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(rep); err != nil {
				return err
			}
			if rep.Error != "" {
				return errors.New(rep.Error)
			}
			if failOnError && rep.Summary.Failure > 0 {
				return fmt.Errorf("%d of %d targets failed", rep.Summary.Failure, rep.Summary.Total)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&failOnError, "fail-on-error", false, "exit non-zero when any target fails")
	return cmd
}
