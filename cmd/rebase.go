package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alantheprice/nextedit/pkg/rebase"
	"github.com/alantheprice/nextedit/pkg/stredit"
	"github.com/alantheprice/nextedit/pkg/utils"
)

// replacementDoc is the on-disk shape of one StringReplacement: start/end
// offsets into the scenario's snapshot plus the replacement text.
type replacementDoc struct {
	Start   int    `json:"start"`
	End     int    `json:"end"`
	NewText string `json:"newText"`
}

func (d replacementDoc) toReplacement() stredit.StringReplacement {
	return stredit.NewStringReplacement(stredit.NewOffsetRange(d.Start, d.End), d.NewText)
}

// rebaseScenario is the JSON scenario format consumed by `nextedit rebase`:
// a snapshot, the assistant's suggested edits against it, the user edits
// applied since, and the resolution mode to run.
type rebaseScenario struct {
	Snapshot      string           `json:"snapshot"`
	OriginalEdits []replacementDoc `json:"originalEdits"`
	UserEdits     []replacementDoc `json:"userEdits"`
	EditWindow    *struct {
		Start int `json:"start"`
		End   int `json:"end"`
	} `json:"editWindow,omitempty"`
	Selection []struct {
		Start int `json:"start"`
		End   int `json:"end"`
	} `json:"selection,omitempty"`
	Mode string `json:"mode"`
}

var rebaseOutputJSON bool

var rebaseCmd = &cobra.Command{
	Use:   "rebase <scenario.json>",
	Short: "Rebase a suggested edit across a concurrent user edit",
	Long: `rebase reads a JSON scenario describing a document snapshot, an
assistant-suggested edit against it, and a concurrent user edit, then runs
the three-way rebase and prints the outcome.`,
	Args: cobra.ExactArgs(1),
	RunE: runRebase,
}

func init() {
	rebaseCmd.Flags().BoolVar(&rebaseOutputJSON, "json", false, "print the outcome as JSON")
}

func runRebase(cmd *cobra.Command, args []string) error {
	log := utils.NewLogger(utils.LoggerConfig{Component: "cmd.rebase"})

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read scenario: %w", err)
	}

	var scenario rebaseScenario
	if err := json.Unmarshal(raw, &scenario); err != nil {
		return fmt.Errorf("parse scenario: %w", err)
	}

	originalEdits := make([]stredit.StringReplacement, len(scenario.OriginalEdits))
	for i, d := range scenario.OriginalEdits {
		originalEdits[i] = d.toReplacement()
	}
	userReps := make([]stredit.StringReplacement, len(scenario.UserEdits))
	for i, d := range scenario.UserEdits {
		userReps[i] = d.toReplacement()
	}
	userEdit := stredit.New(userReps...)
	currentDoc := userEdit.Apply(scenario.Snapshot)

	var editWindow *stredit.OffsetRange
	if scenario.EditWindow != nil {
		w := stredit.NewOffsetRange(scenario.EditWindow.Start, scenario.EditWindow.End)
		editWindow = &w
	}
	selection := make([]stredit.OffsetRange, len(scenario.Selection))
	for i, s := range scenario.Selection {
		selection[i] = stredit.NewOffsetRange(s.Start, s.End)
	}

	mode := rebase.Strict
	if scenario.Mode == "lenient" {
		mode = rebase.Lenient
	}

	log.Info("running rebase scenario", "mode", mode.String(), "originalEdits", len(originalEdits), "userEdits", len(userReps))

	rb := rebase.New(rebase.DefaultOptions(), nil, log)
	outcome := rb.Rebase(rebase.Request{
		Snapshot:         scenario.Snapshot,
		EditWindow:       editWindow,
		OriginalEdits:    originalEdits,
		UserEditSince:    userEdit,
		CurrentDoc:       currentDoc,
		CurrentSelection: selection,
		Mode:             mode,
	})

	return printOutcome(cmd, outcome)
}

func printOutcome(cmd *cobra.Command, outcome rebase.Outcome) error {
	if rebaseOutputJSON {
		type jsonEdit struct {
			Index   int    `json:"index"`
			Start   int    `json:"start"`
			End     int    `json:"end"`
			NewText string `json:"newText"`
		}
		payload := struct {
			Kind  string     `json:"kind"`
			Edits []jsonEdit `json:"edits"`
		}{Kind: outcomeKindName(outcome.Kind)}
		for _, e := range outcome.Edits {
			payload.Edits = append(payload.Edits, jsonEdit{
				Index:   e.Index,
				Start:   e.Edit.ReplaceRange.Start,
				End:     e.Edit.ReplaceRange.EndExclusive,
				NewText: e.Edit.NewText,
			})
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "outcome: %s\n", outcomeKindName(outcome.Kind))
	for _, e := range outcome.Edits {
		fmt.Fprintf(cmd.OutOrStdout(), "  [%d] %s -> %q\n", e.Index, e.Edit.ReplaceRange, e.Edit.NewText)
	}
	return nil
}

func outcomeKindName(k rebase.OutcomeKind) string {
	switch k {
	case rebase.OutcomeOK:
		return "ok"
	case rebase.OutcomeOutsideEditWindow:
		return "outsideEditWindow"
	case rebase.OutcomeRebaseFailed:
		return "rebaseFailed"
	case rebase.OutcomeInconsistentEdits:
		return "inconsistentEdits"
	default:
		return "error"
	}
}
