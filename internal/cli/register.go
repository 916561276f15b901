package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/popgate/popgate/internal/engine"
	"github.com/popgate/popgate/internal/frequency"
	"github.com/popgate/popgate/internal/manifest"
	"github.com/popgate/popgate/internal/store"
)

func init() {
	rootCmd.AddCommand(newRegisterCmd())
}

func newRegisterCmd() *cobra.Command {
	var (
		kind        string
		priority    int
		urlEquals   string
		urlContains string
		urlPattern  string
		triggerName string
		threshold   int
		freqMax     int
		freqPer     string
		content     []string
		file        string
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "register [id]",
		Short: "Register an experience (or a whole manifest file)",
		Long: `Register an experience definition. Registering an existing id overwrites
it (last write wins) while keeping its original registration slot.

Examples:
  popgate register spring-sale --kind banner --url-contains /products --max 1 --per session
  popgate register exit-offer --kind modal --trigger exit-intent --content "headline=Wait!"
  popgate register scroll-cta --kind inline --trigger scroll-depth --threshold 50 --priority 5
  popgate register --file experiences.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" {
				if len(args) > 0 {
					return fmt.Errorf("use an id OR --file, not both")
				}
				return registerFile(file)
			}
			if len(args) == 0 {
				return fmt.Errorf("need an experience id (or --file)")
			}
			id := args[0]

			if interactive {
				var err error
				if kind, err = promptKind(); err != nil {
					return err
				}
				if freqMax > 0 {
					if freqPer, err = promptWindow(); err != nil {
						return err
					}
				}
			}

			if !engine.ValidKind(engine.Kind(kind)) {
				return fmt.Errorf("unknown kind %q (want banner, modal, inline or tooltip)", kind)
			}

			exp := store.Experience{
				ID:       id,
				Kind:     kind,
				Priority: priority,
			}
			if urlEquals != "" || urlContains != "" || urlPattern != "" {
				exp.Targeting.URL = &engine.URLRule{
					Equals:   urlEquals,
					Contains: urlContains,
					Pattern:  urlPattern,
				}
			}
			if triggerName != "" {
				rule := &engine.TriggerRule{Name: triggerName}
				if cmd.Flags().Changed("threshold") {
					if triggerName != engine.TriggerScrollDepth {
						return fmt.Errorf("--threshold only applies to the %s trigger", engine.TriggerScrollDepth)
					}
					t := threshold
					rule.Threshold = &t
				}
				exp.Targeting.Trigger = rule
			}
			if freqMax > 0 {
				window, err := frequency.ParseWindow(freqPer)
				if err != nil {
					return err
				}
				exp.Frequency = &engine.Frequency{Max: freqMax, Per: window}
			}
			bag, err := parseKeyValues(content)
			if err != nil {
				return err
			}
			exp.Content = bag

			return withStore(func(s *store.SQLiteStore) error {
				if err := s.UpsertExperience(context.Background(), &exp); err != nil {
					return err
				}
				fmt.Printf("Registered experience '%s' (%s, priority %d)\n", exp.ID, exp.Kind, exp.Priority)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "banner", "experience kind (banner, modal, inline, tooltip)")
	cmd.Flags().IntVar(&priority, "priority", 0, "evaluation priority (higher wins in multi-match)")
	cmd.Flags().StringVar(&urlEquals, "url-equals", "", "match URLs exactly")
	cmd.Flags().StringVar(&urlContains, "url-contains", "", "match URLs containing a substring")
	cmd.Flags().StringVar(&urlPattern, "url-pattern", "", "match URLs against a regular expression")
	cmd.Flags().StringVar(&triggerName, "trigger", "", "required display trigger (exit-intent, scroll-depth, time-delay, page-visits)")
	cmd.Flags().IntVar(&threshold, "threshold", 0, "exact scroll-depth threshold the trigger must have crossed")
	cmd.Flags().IntVar(&freqMax, "max", 0, "frequency cap (0 = uncapped)")
	cmd.Flags().StringVar(&freqPer, "per", "session", "frequency window (session, day, week)")
	cmd.Flags().StringArrayVar(&content, "content", nil, "content key=value (repeatable, opaque to the engine)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "register every experience from a YAML manifest")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "prompt for kind and frequency window")

	return cmd
}

func registerFile(path string) error {
	exps, err := manifest.Load(path)
	if err != nil {
		return err
	}
	return withStore(func(s *store.SQLiteStore) error {
		ctx := context.Background()
		for _, exp := range exps {
			row := store.Experience{
				ID:        exp.ID,
				Kind:      string(exp.Kind),
				Priority:  exp.Priority,
				Targeting: exp.Targeting,
				Content:   exp.Content,
				Frequency: exp.Frequency,
			}
			if err := s.UpsertExperience(ctx, &row); err != nil {
				return fmt.Errorf("failed to register %q: %w", exp.ID, err)
			}
		}
		fmt.Printf("Registered %d experiences from %s\n", len(exps), path)
		return nil
	})
}

func promptKind() (string, error) {
	prompt := promptui.Select{
		Label: "Experience kind",
		Items: []string{"banner", "modal", "inline", "tooltip"},
		Size:  4,
	}
	_, kind, err := prompt.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			os.Exit(0)
		}
		return "", err
	}
	return kind, nil
}

func promptWindow() (string, error) {
	prompt := promptui.Select{
		Label: "Frequency window",
		Items: []string{"session", "day", "week"},
		Size:  3,
	}
	_, window, err := prompt.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			os.Exit(0)
		}
		return "", err
	}
	return window, nil
}
