package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alantheprice/nextedit/pkg/nextedit"
	"github.com/alantheprice/nextedit/pkg/stredit"
	"github.com/alantheprice/nextedit/pkg/utils"
)

// sessionStep is one step of a scripted document session fed to `nextedit
// serve`. Exactly one of Suggest/Edit/Lookup/Reject should be set.
type sessionStep struct {
	// Suggest records a suggestion against Snapshot.
	Suggest *struct {
		Snapshot string           `json:"snapshot"`
		Edits    []replacementDoc `json:"edits"`
	} `json:"suggest,omitempty"`

	// Edit applies a user edit to the current document.
	Edit *struct {
		Replacements []replacementDoc `json:"replacements"`
	} `json:"edit,omitempty"`

	// Lookup queries the cache at the current document state.
	Lookup *struct {
		Selection []struct {
			Start int `json:"start"`
			End   int `json:"end"`
		} `json:"selection,omitempty"`
	} `json:"lookup,omitempty"`

	// Reject marks the entries of RequestID as rejected; an empty RequestID
	// means the request of the most recent Suggest step.
	Reject *struct {
		RequestID string `json:"requestId"`
	} `json:"reject,omitempty"`
}

type sessionScript struct {
	DocID string        `json:"docId"`
	Steps []sessionStep `json:"steps"`
}

var serveCmd = &cobra.Command{
	Use:   "serve <session.json>",
	Short: "Drive the next-edit cache through a scripted document session",
	Long: `serve replays a sequence of suggest/edit/lookup/reject steps against
one document through the shared next-edit cache, printing the outcome of
each lookup. It is a harness for exercising the cache pipeline end to end,
not a long-running server.`,
	Args: cobra.ExactArgs(1),
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	log := utils.NewLogger(utils.LoggerConfig{Component: "cmd.serve"})

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}
	var script sessionScript
	if err := json.Unmarshal(raw, &script); err != nil {
		return fmt.Errorf("parse session: %w", err)
	}

	cache := nextedit.New(nextedit.DefaultConfig(), nil, log)
	cache.OnEvict = func(e *nextedit.CachedEdit) {
		log.Info("evicted cache entry", "docId", e.DocID)
	}

	var currentDoc string
	var lastRequestID string
	out := cmd.OutOrStdout()

	for i, step := range script.Steps {
		switch {
		case step.Suggest != nil:
			currentDoc = step.Suggest.Snapshot
			edits := make([]stredit.StringReplacement, len(step.Suggest.Edits))
			for j, d := range step.Suggest.Edits {
				edits[j] = d.toReplacement()
			}
			requestID := fmt.Sprintf("req-%d", i)
			lastRequestID = requestID
			userEditSince := stredit.Empty
			cache.SetKthNextEdit(script.DocID, currentDoc, nil, edits, 0, nil, &userEditSince,
				nextedit.RequestHandle{HeaderRequestID: requestID})
			fmt.Fprintf(out, "step %d: suggested %d edit(s) (request %s)\n", i, len(edits), requestID)

		case step.Edit != nil:
			reps := make([]stredit.StringReplacement, len(step.Edit.Replacements))
			for j, d := range step.Edit.Replacements {
				reps[j] = d.toReplacement()
			}
			delta := stredit.New(reps...)
			currentDoc = delta.Apply(currentDoc)
			cache.DocumentChanged(script.DocID, currentDoc, delta)
			fmt.Fprintf(out, "step %d: user edit applied, document is now %q\n", i, currentDoc)

		case step.Lookup != nil:
			selection := make([]stredit.OffsetRange, len(step.Lookup.Selection))
			for j, s := range step.Lookup.Selection {
				selection[j] = stredit.NewOffsetRange(s.Start, s.End)
			}
			result, ok := cache.LookupNextEdit(script.DocID, currentDoc, selection)
			if !ok {
				fmt.Fprintf(out, "step %d: lookup miss\n", i)
				continue
			}
			if result.Edits == nil {
				fmt.Fprintf(out, "step %d: lookup hit (direct, %d original edit(s))\n", i, len(result.Entry.OriginalEdits))
			} else {
				fmt.Fprintf(out, "step %d: lookup hit (rebased, %d edit(s))\n", i, len(result.Edits))
				for _, e := range result.Edits {
					fmt.Fprintf(out, "  [%d] %s -> %q\n", e.Index, e.Edit.ReplaceRange, e.Edit.NewText)
				}
			}

		case step.Reject != nil:
			id := step.Reject.RequestID
			if id == "" {
				id = lastRequestID
			}
			cache.RejectedNextEdit(id)
			fmt.Fprintf(out, "step %d: rejected request %s\n", i, id)
		}
	}

	stats := cache.StatsSnapshot()
	fmt.Fprintf(out, "stats: hits=%d misses=%d rebaseAttempts=%d rebaseHits=%d evictions=%d\n",
		stats.Hits, stats.Misses, stats.RebaseAttempts, stats.RebaseHits, stats.Evictions)
	return nil
}
