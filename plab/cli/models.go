package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models available on the Ollama endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			models, err := a.provider.Models(cmd.Context())
			if err != nil {
				return err
			}
			if len(models) == 0 {
				fmt.Println("No models installed. Pull one with 'ollama pull <model>'.")
				return nil
			}
			for _, m := range models {
				fmt.Println(m)
			}
			return nil
		},
	}
}
