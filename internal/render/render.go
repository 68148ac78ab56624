// Package render formats activities, sessions and cache stats for the
// terminal.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/user/gules/internal/activity"
)

// Format selects how activities are written.
type Format string

const (
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatTable   Format = "table"
	FormatFull    Format = "full"
	FormatContent Format = "content"
)

var (
	faint = color.New(color.FgHiBlack).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
	green = color.New(color.FgGreen).SprintFunc()
	cyan  = color.New(color.FgCyan).SprintFunc()
)

// Formats lists every supported format.
var Formats = []Format{FormatJSON, FormatYAML, FormatTable, FormatFull, FormatContent}

func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return "", fmt.Errorf("unknown format %q (valid: %s)", s, strings.Join(names, ", "))
}

// Activities writes acts to w in format f.
func Activities(w io.Writer, acts []*activity.Activity, f Format) error {
	switch f {
	case FormatJSON:
		return writeJSON(w, acts)
	case FormatYAML:
		return writeYAML(w, acts)
	case FormatTable:
		return writeTable(w, acts)
	case FormatFull:
		return writeFull(w, acts)
	case FormatContent:
		return writeContent(w, acts)
	}
	return fmt.Errorf("unknown format %q", f)
}

func payloads(acts []*activity.Activity) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(acts))
	for _, a := range acts {
		p, err := a.Payload()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func writeJSON(w io.Writer, acts []*activity.Activity) error {
	ps, err := payloads(acts)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(ps)
}

func writeYAML(w io.Writer, acts []*activity.Activity) error {
	ps, err := payloads(acts)
	if err != nil {
		return err
	}
	docs := make([]any, 0, len(ps))
	for _, p := range ps {
		var v any
		if err := json.Unmarshal(p, &v); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		docs = append(docs, v)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(docs); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

func timestamp(a *activity.Activity) string {
	if a.CreatedAt.IsZero() {
		return a.CreateTime.Or(activity.Missing)
	}
	return a.CreatedAt.Local().Format("2006-01-02 15:04:05")
}

// kindColor picks a color per activity kind.
func kindColor(a *activity.Activity) *color.Color {
	switch a.Kind.(type) {
	case activity.AgentMessage:
		return color.New(color.FgCyan)
	case activity.UserMessage:
		return color.New(color.FgGreen)
	case activity.PlanGenerated, activity.PlanApproved:
		return color.New(color.FgMagenta)
	case activity.ProgressUpdate:
		return color.New(color.FgBlue)
	case activity.SessionCompleted:
		return color.New(color.FgGreen, color.Bold)
	case activity.SessionFailed:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.FgYellow)
	}
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func pad(s string, n int) string {
	if l := len([]rune(s)); l < n {
		return s + strings.Repeat(" ", n-l)
	}
	return s
}

func writeTable(w io.Writer, acts []*activity.Activity) error {
	if len(acts) == 0 {
		_, err := fmt.Fprintln(w, "No activities found")
		return err
	}
	header := color.New(color.Bold)
	fmt.Fprintf(w, "%s %s %s %s\n",
		header.Sprint(pad("TIME", 19)), header.Sprint(pad("TYPE", 26)),
		header.Sprint(pad("FROM", 8)), header.Sprint("SUMMARY"))
	for _, a := range acts {
		summary, ok := a.Content()
		if !ok {
			summary = a.Description.Or("")
		}
		fmt.Fprintf(w, "%s %s %s %s\n",
			faint(pad(timestamp(a), 19)),
			kindColor(a).Sprint(pad(truncate(a.Title(), 26), 26)),
			pad(string(a.Role()), 8),
			truncate(summary, 80))
	}
	return nil
}

func writeFull(w io.Writer, acts []*activity.Activity) error {
	if len(acts) == 0 {
		_, err := fmt.Fprintln(w, "No activities found")
		return err
	}
	for i, a := range acts {
		if i > 0 {
			fmt.Fprintln(w, strings.Repeat("─", 60))
		}
		fmt.Fprintf(w, "%s  %s  %s\n", kindColor(a).Sprint(a.Title()), faint(timestamp(a)), faint(string(a.Key())))
		fmt.Fprintf(w, "From: %s\n", a.Originator.String())
		if a.Description.Valid && a.Description.Value != "" {
			fmt.Fprintf(w, "Description: %s\n", a.Description.Value)
		}
		writeKindDetail(w, a)
		for _, art := range a.Artifacts {
			writeArtifact(w, art)
		}
		if len(a.Drift) > 0 {
			fmt.Fprintf(w, "%s %s\n", color.YellowString("Unexpected fields:"), strings.Join(a.Drift, ", "))
		}
	}
	return nil
}

func writeKindDetail(w io.Writer, a *activity.Activity) {
	switch k := a.Kind.(type) {
	case activity.AgentMessage:
		fmt.Fprintf(w, "\n%s\n", k.Message.String())
	case activity.UserMessage:
		fmt.Fprintf(w, "\n%s\n", k.Message.String())
	case activity.PlanGenerated:
		if k.Plan == nil {
			return
		}
		fmt.Fprintf(w, "Plan %s\n", k.Plan.ID.String())
		for i, s := range k.Plan.Steps {
			n := i + 1
			if s.Index != nil {
				n = *s.Index + 1
			}
			fmt.Fprintf(w, "  %d. %s\n", n, s.Title.String())
			if s.Description.Valid && s.Description.Value != "" {
				fmt.Fprintf(w, "     %s\n", s.Description.Value)
			}
		}
	case activity.PlanApproved:
		fmt.Fprintf(w, "Approved plan %s\n", k.PlanID.String())
	case activity.ProgressUpdate:
		fmt.Fprintf(w, "%s\n", k.Title.String())
		if k.Description.Valid && k.Description.Value != "" {
			fmt.Fprintf(w, "%s\n", k.Description.Value)
		}
	case activity.SessionFailed:
		fmt.Fprintf(w, "%s %s\n", color.RedString("Reason:"), k.Reason.String())
	case activity.Unknown:
		fmt.Fprintf(w, "%s\n", string(k.Raw))
	}
}

func writeArtifact(w io.Writer, art activity.Artifact) {
	if b := art.BashOutput; b != nil {
		exit := activity.Missing
		if b.ExitCode != nil {
			exit = fmt.Sprint(*b.ExitCode)
		}
		status := green("exit " + exit)
		if b.ExitCode != nil && *b.ExitCode != 0 {
			status = red("exit " + exit)
		}
		fmt.Fprintf(w, "$ %s  (%s)\n", b.Command.String(), status)
		if b.Output.Valid && b.Output.Value != "" {
			fmt.Fprintf(w, "%s\n", strings.TrimRight(b.Output.Value, "\n"))
		}
	}
	if cs := art.ChangeSet; cs != nil {
		fmt.Fprintf(w, "Change set: %s\n", cs.Source.String())
		if gp := cs.GitPatch; gp != nil {
			if gp.SuggestedCommitMessage.Valid {
				fmt.Fprintf(w, "  Commit message: %s\n", gp.SuggestedCommitMessage.Value)
			}
			if gp.UnidiffPatch.Valid {
				fmt.Fprintf(w, "  Patch: %d lines\n", strings.Count(gp.UnidiffPatch.Value, "\n")+1)
			}
		}
	}
	if m := art.Media; m != nil {
		fmt.Fprintf(w, "Media: %s (%d bytes base64)\n", m.MimeType.String(), len(m.Data.Value))
	}
}

func writeContent(w io.Writer, acts []*activity.Activity) error {
	for _, a := range acts {
		if text, ok := a.Content(); ok {
			if _, err := fmt.Fprintln(w, text); err != nil {
				return err
			}
		}
	}
	return nil
}

// Since formats how long ago t was, e.g. "5m ago".
func Since(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
