package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/m5trevino/peacock-mem/internal/files"
	"github.com/m5trevino/peacock-mem/internal/importer"
	"github.com/m5trevino/peacock-mem/internal/search"
)

const previewWidth = 120

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("46")).
		Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func field(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "  %s %s\n", labelStyle.Render(label+":"), valueStyle.Render(fmt.Sprint(value)))
}

func renderFileResult(w io.Writer, r importer.FileResult) {
	if r.Err != nil {
		fmt.Fprintf(w, "%s %s: %v\n", failStyle.Render("✗"), r.Path, r.Err)
		return
	}
	fmt.Fprintf(w, "%s %s %s\n", okStyle.Render("✓"), r.Path, dimStyle.Render("("+r.Format.String()+")"))
	switch r.Format {
	case importer.ClaudeProjects:
		field(w, "projects", r.ProjectsCreated)
		field(w, "documents", r.DocumentsCreated)
	default:
		field(w, "conversations", r.ConversationsSeen)
		field(w, "messages", r.MessagesSeen)
	}
	field(w, "written", r.Written)
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  %s %s\n", warnStyle.Render("!"), f.Error())
	}
}

func renderBatch(w io.Writer, s importer.BatchSummary) {
	fmt.Fprintln(w, headerStyle.Render("IMPORT"))
	for _, r := range s.Files {
		renderFileResult(w, r)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %d of %d files\n", sectionStyle.Render("Imported"), s.Succeeded, len(s.Files))
	field(w, "written", s.Totals.Written)
	if s.Totals.ItemFailures > 0 {
		field(w, "item failures", s.Totals.ItemFailures)
	}
	if len(s.Failed) > 0 {
		fmt.Fprintln(w, sectionStyle.Render("Failed"))
		for _, f := range s.Failed {
			fmt.Fprintf(w, "  %s %s: %s\n", failStyle.Render("✗"), f.Path, f.Error)
		}
	}
}

func renderAnalysis(w io.Writer, path string, a importer.Analysis) {
	fmt.Fprintln(w, headerStyle.Render("ANALYZE"))
	field(w, "file", path)
	field(w, "format", a.Format)
	field(w, "root", a.Root)
	if len(a.Keys) > 0 {
		field(w, "keys", strings.Join(a.Keys, ", "))
	}
	if a.Root == "array" {
		field(w, "length", a.Length)
		if len(a.ItemKeys) > 0 {
			field(w, "item keys", strings.Join(a.ItemKeys, ", "))
		}
	}
	for _, s := range a.Suggestions {
		fmt.Fprintf(w, "  %s %s\n", warnStyle.Render("?"), s)
	}
}

func renderReport(w io.Writer, rep files.Report) {
	for _, a := range rep.Added {
		fmt.Fprintf(w, "%s %s %s\n", okStyle.Render("✓"), a.Path,
			dimStyle.Render(fmt.Sprintf("→ %s (%s, %d lines)", a.Collection, a.Language, a.Lines)))
	}
	for _, f := range rep.Failed {
		fmt.Fprintf(w, "%s %s: %s\n", failStyle.Render("✗"), f.Path, f.Error)
	}
	summary := fmt.Sprintf("%d added, %d failed", len(rep.Added), len(rep.Failed))
	if rep.Skipped > 0 {
		summary += fmt.Sprintf(", %d skipped", rep.Skipped)
	}
	fmt.Fprintln(w, sectionStyle.Render(summary))
}

func renderSearch(w io.Writer, query string, results []search.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintf(w, "%s no results for %q\n", warnStyle.Render("!"), query)
		return
	}
	fmt.Fprintf(w, "%s %s\n", headerStyle.Render("SEARCH"), dimStyle.Render(fmt.Sprintf("%d results for %q", len(results), query)))
	for i, r := range results {
		fmt.Fprintf(w, "%s %s %s\n",
			valueStyle.Render(fmt.Sprintf("%d.", i+1)),
			labelStyle.Render(r.Collection+"/"+r.ID),
			dimStyle.Render(fmt.Sprintf("%.2f", r.Relevance)))
		fmt.Fprintf(w, "   %s\n", search.Preview(r.Document, previewWidth))
	}
}

func renderItems(w io.Writer, category search.Category, items []search.Item) {
	fmt.Fprintf(w, "%s %s\n", headerStyle.Render(strings.ToUpper(string(category))), dimStyle.Render(fmt.Sprintf("%d items", len(items))))
	for _, it := range items {
		if it.Project != nil {
			renderProjectLine(w, *it.Project)
			continue
		}
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render(it.Collection+"/"+it.ID), dimStyle.Render(it.Metadata["file_path"]))
		fmt.Fprintf(w, "   %s\n", search.Preview(it.Preview, previewWidth))
	}
}

func renderProjectLine(w io.Writer, p search.ProjectSummary) {
	fmt.Fprintf(w, "%s %s\n", valueStyle.Render(p.Name), dimStyle.Render(fmt.Sprintf("%d items", p.ItemCount)))
	if p.Description != "" {
		fmt.Fprintf(w, "   %s\n", p.Description)
	}
}

func renderProjects(w io.Writer, projects []search.ProjectSummary) {
	if len(projects) == 0 {
		fmt.Fprintln(w, dimStyle.Render("no projects"))
		return
	}
	fmt.Fprintln(w, headerStyle.Render("PROJECTS"))
	for _, p := range projects {
		renderProjectLine(w, p)
	}
}

func renderProjectContents(w io.Writer, pc search.ProjectContents) {
	fmt.Fprintf(w, "%s %s\n", headerStyle.Render(pc.ProjectName), dimStyle.Render(fmt.Sprintf("%d items", pc.Count)))
	for _, it := range pc.Items {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render(it.ID), dimStyle.Render(it.Metadata["file_path"]))
		fmt.Fprintf(w, "   %s\n", search.Preview(it.Preview, previewWidth))
	}
}

func renderRecent(w io.Writer, items []search.RecentItem) {
	if len(items) == 0 {
		fmt.Fprintln(w, dimStyle.Render("nothing recent"))
		return
	}
	fmt.Fprintln(w, headerStyle.Render("RECENT"))
	for _, it := range items {
		fmt.Fprintf(w, "%s %s\n", dimStyle.Render(it.When.Format("2006-01-02 15:04")), labelStyle.Render(it.Collection+"/"+it.ID))
		fmt.Fprintf(w, "   %s\n", search.Preview(it.Preview, previewWidth))
	}
}

func renderStats(w io.Writer, s search.Stats) {
	fmt.Fprintln(w, headerStyle.Render("PEACOCK MEMORY"))
	field(w, "collections", s.TotalCollections)
	field(w, "projects", s.Projects)
	field(w, "documents", s.TotalDocuments)
	fmt.Fprintln(w, sectionStyle.Render("By type"))
	field(w, "codebase", s.ByType.Codebase)
	field(w, "conversations", s.ByType.Conversations)
	field(w, "ideas", s.ByType.Ideas)
	field(w, "brainstorm", s.ByType.Brainstorm)
	field(w, "notes", s.ByType.Notes)
	field(w, "manpages", s.ByType.Manpages)
}

func renderCategories(w io.Writer, s search.Stats) {
	counts := map[search.Category]int{
		search.Codebase:      s.ByType.Codebase,
		search.Conversations: s.ByType.Conversations,
		search.Ideas:         s.ByType.Ideas,
		search.Brainstorm:    s.ByType.Brainstorm,
		search.Notes:         s.ByType.Notes,
		search.Manpages:      s.ByType.Manpages,
		search.Projects:      s.Projects,
	}
	fmt.Fprintln(w, headerStyle.Render("TYPES"))
	for _, c := range search.Categories {
		field(w, string(c), counts[c])
	}
}
