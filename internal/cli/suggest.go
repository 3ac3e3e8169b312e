package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mesapos/backend/internal/domain"
)

func newSuggestCommand(opts *RootOptions) *cobra.Command {
	var prompts int

	cmd := &cobra.Command{
		Use:   "suggest ITEM...",
		Short: "Suggest one more item for a ticket",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, out, err := opts.session(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.Service.Suggest(cmd.Context(), domain.SuggestionRequest{Items: args, PromptCount: prompts})
			if err != nil {
				return WrapExitError(ExitFailure, "suggest", err)
			}
			return out.print(resp, func(w io.Writer) {
				if resp.Suggestion == nil {
					fmt.Fprintln(w, "no suggestion")
					return
				}
				s := resp.Suggestion
				fmt.Fprintf(w, "%s (%s, %s) %s %.0f%%\n", s.Name, s.Category, money(s.Price), s.ReasonCode, s.Confidence*100)
			})
		},
	}
	cmd.Flags().IntVar(&prompts, "prompts", 0, "times a suggestion was already shown for this ticket")

	return cmd
}
