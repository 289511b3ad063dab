package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/M-Shameel-375/skill-verse-sub001/internal/matching"
)

var matchRequestID string

// fs is swapped for an in-memory filesystem in tests.
var fs = afero.NewOsFs()

var matchCmd = &cobra.Command{
	Use:   "match <snapshot.json>",
	Short: "Rank candidate offers for a request from a pool snapshot",
	Long: `Match loads a JSON pool snapshot (open offers and requests) from a file
and prints the ranked candidate offers for one request, without touching the
live pool or creating any session.

The snapshot file has the shape:

  {
    "offers":   [ {"id": "...", "userId": "...", "skillName": "...", ...} ],
    "requests": [ {"id": "...", "userId": "...", "skillName": "...", ...} ]
  }`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMatch(cmd, args[0], matchRequestID)
	},
}

func init() {
	matchCmd.Flags().StringVarP(&matchRequestID, "request", "r", "", "ID of the request to match (required)")
	matchCmd.MarkFlagRequired("request")
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, path, requestID string) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}

	var snap matching.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parsing snapshot: %w", err)
	}

	for _, req := range snap.Requests {
		if req.ID != requestID {
			continue
		}

		candidates := matching.FindCandidates(req, snap)
		if len(candidates) == 0 {
			cmd.Printf("no qualifying offers for request %s (%s)\n", req.ID, req.SkillName)
			return nil
		}

		cmd.Printf("%d candidate(s) for request %s (%s, proficiency >= %d):\n",
			len(candidates), req.ID, req.SkillName, req.DesiredProficiency)
		for i, c := range candidates {
			mutual := ""
			if c.Mutual {
				mutual = "  [mutual]"
			}
			cmd.Printf("%2d. offer %s by %s  proficiency=%d  overlap=%s%s\n",
				i+1, c.Offer.ID, c.Offer.UserID, c.Offer.ProficiencyLevel,
				c.Overlap.Round(time.Minute), mutual)
		}
		return nil
	}

	return fmt.Errorf("request %s not found in snapshot", requestID)
}
