package render

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/user/gules/internal/state"
	"github.com/user/gules/internal/syncer"
	"github.com/user/gules/internal/types"
)

// Stats writes a cache usage summary.
func Stats(w io.Writer, st state.Stats, now time.Time) {
	fmt.Fprintf(w, "%s %s\n", color.New(color.Bold).Sprint("Cache:"), st.Dir)
	fmt.Fprintf(w, "Sessions:   %d / %d\n", st.SessionCount, st.MaxSessions)
	fmt.Fprintf(w, "Activities: %d\n", st.TotalActivities)
	fmt.Fprintf(w, "Size:       %s\n", humanBytes(st.TotalBytes))
	if len(st.Sessions) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, s := range st.Sessions {
		more := ""
		if s.NextPageToken != "" {
			more = color.YellowString(" (more pages)")
		}
		fmt.Fprintf(w, "  %s  %5d activities  %8s  synced %s%s\n",
			pad(string(s.SessionID), 24), s.Activities, humanBytes(s.Bytes), Since(s.LastSyncedAt, now), more)
	}
}

// SyncResult writes a one-line summary of a sync.
func SyncResult(w io.Writer, id types.SessionID, res syncer.Result, err error) {
	line := fmt.Sprintf("%s: %d new, %d total, %d page(s)", id, res.RecordsAdded, res.TotalRecords, res.PagesFetched)
	if res.Divergent > 0 {
		line += color.YellowString(", %d divergent", res.Divergent)
	}
	if err != nil {
		fmt.Fprintf(w, "%s %s\n", line, color.RedString("(incomplete: %v)", err))
		return
	}
	if !res.Complete {
		line += color.YellowString(" (more pages remain)")
	}
	fmt.Fprintln(w, line)
}

// Sessions writes one line per remote session.
func Sessions(w io.Writer, sessions []*types.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions found")
		return
	}
	for _, s := range sessions {
		label := pad(s.State.DisplayName(), 22)
		switch {
		case s.State == types.StateFailed:
			label = red(label)
		case s.State.Terminal():
			label = green(label)
		default:
			label = cyan(label)
		}
		fmt.Fprintf(w, "%s  %s  %s\n", pad(string(s.ID), 24), label, truncate(s.Title, 60))
	}
}

// Session writes the details of one remote session.
func Session(w io.Writer, s *types.Session) {
	fmt.Fprintf(w, "%s %s\n", color.New(color.Bold).Sprint("Session"), s.ID)
	fmt.Fprintf(w, "Title:   %s\n", s.Title)
	fmt.Fprintf(w, "State:   %s\n", s.State.DisplayName())
	if s.SourceContext != nil {
		fmt.Fprintf(w, "Source:  %s\n", s.SourceContext.Source)
	}
	if s.CreateTime != "" {
		fmt.Fprintf(w, "Created: %s\n", s.CreateTime)
	}
	if s.URL != "" {
		fmt.Fprintf(w, "URL:     %s\n", s.URL)
	}
	for _, o := range s.Outputs {
		if o.PullRequest != nil {
			fmt.Fprintf(w, "PR:      %s (%s)\n", o.PullRequest.URL, o.PullRequest.Title)
		}
	}
}

// History writes one line per recorded sync run, oldest first.
func History(w io.Writer, recs []*state.SyncRecord, now time.Time) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No sync runs recorded")
		return
	}
	for _, r := range recs {
		mode := "resume"
		if r.Force {
			mode = "full"
		}
		line := fmt.Sprintf("#%-4d %-10s %-6s %3d new %5d total %3d page(s)",
			r.Seq, Since(r.At, now), mode, r.Added, r.Total, r.Pages)
		switch {
		case r.Error != "":
			line += " " + red("failed: "+r.Error)
		case !r.Complete:
			line += " " + faint("more pages remain")
		}
		fmt.Fprintln(w, line)
		for _, d := range r.Divergences {
			fmt.Fprintf(w, "      divergent %s stored %.12s fetched %.12s\n", d.ActivityID, d.StoredDigest, d.FetchedDigest)
		}
	}
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
