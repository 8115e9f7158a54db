package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"personalab/plab/persona"
)

func newPersonaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "persona",
		Short: "Manage personas",
	}
	cmd.AddCommand(newPersonaListCmd(), newPersonaNewCmd(), newPersonaRemoveCmd())
	return cmd
}

func newPersonaListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all personas",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			personas := a.personas.List()
			if len(personas) == 0 {
				fmt.Println("No personas yet. Create one with: persona-lab persona new <occupation>")
				return nil
			}
			for _, p := range personas {
				fmt.Printf("%s  %s, %d-year-old %s %s (model: %s)\n",
					p.ID, p.Name, p.Age, p.Nationality, p.Occupation, p.Model)
			}
			return nil
		},
	}
}

func newPersonaNewCmd() *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "new <occupation>",
		Short: "Generate a new persona with the given occupation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			settings := a.personas.Settings()
			if model == "" {
				model = settings.DefaultModel
			}
			if model == "" {
				model = a.cfg.Chat.DefaultModel
			}
			if model == "" {
				models, err := a.provider.Models(cmd.Context())
				if err != nil || len(models) == 0 {
					return fmt.Errorf("no model available; install one with 'ollama pull <model>' or set chat.default_model")
				}
				model = models[0]
			}

			generator := persona.NewGenerator(a.provider, a.logger)
			p, err := generator.Generate(cmd.Context(), args[0], model,
				settings.DefaultTemperature, settings.DefaultMaxTokens)
			if err != nil {
				return err
			}
			if err := a.personas.Add(p); err != nil {
				return err
			}
			fmt.Printf("Created %s, the %s! (%s)\n", p.Name, p.Occupation, p.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "model to generate the persona with")
	return cmd
}

func newPersonaRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a persona",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.personas.Remove(args[0]); err != nil {
				return err
			}
			fmt.Println("Removed", args[0])
			return nil
		},
	}
}
