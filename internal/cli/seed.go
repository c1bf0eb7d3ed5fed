package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ashureev/classmate/internal/catalog"
)

func newSeedCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load subjects, topics and quizzes from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := catalog.Load(args[0])
			if err != nil {
				return err
			}

			repo, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			defer closeStore(repo)

			sum, err := catalog.Apply(cmd.Context(), repo, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d subjects, %d topics, %d bites, %d quizzes, %d questions.\n",
				sum.Subjects, sum.Topics, sum.Bites, sum.Quizzes, sum.Questions)
			return nil
		},
	}
}
