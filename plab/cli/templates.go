package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newTemplatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List prompt templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			for _, t := range a.store.Templates() {
				scope := "universal"
				if len(t.ApplicableOccupations) > 0 {
					scope = strings.Join(t.ApplicableOccupations, ", ")
				}
				fmt.Printf("%s  [%s]\n%s\n\n", t.ID, scope, indent(t.Pattern))
			}
			return nil
		},
	}
}

func indent(s string) string {
	return "    " + strings.ReplaceAll(s, "\n", "\n    ")
}
