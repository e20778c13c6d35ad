package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/together/internal/profile"
)

// clock is replaced in tests.
var clock = time.Now

func newDaysCmd() *cobra.Command {
	var profilePath string

	cmd := &cobra.Command{
		Use:   "days",
		Short: "Print the day counter and the next milestone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := profile.NewLoader(profilePath).Load()
			if err != nil {
				return err
			}
			cal, err := p.Calendar(clock)
			if err != nil {
				return err
			}

			m := cal.NextMilestone()
			out := cmd.OutOrStdout()
			if names := p.Names(); names != "" {
				fmt.Fprintf(out, "%s\n", names)
			}
			fmt.Fprintf(out, "Day %d together (since %s)\n", cal.DaysTogether(true), cal.FormatDate(cal.Start()))
			fmt.Fprintf(out, "Next: %s, in %d days\n", m.Label, m.DaysRemaining)
			return nil
		},
	}
	cmd.Flags().StringVar(&profilePath, "profile", os.Getenv("TOGETHER_PROFILE_FILE"), "profile YAML file (defaults apply when empty)")
	return cmd
}
