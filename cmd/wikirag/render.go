package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fyrsmithlabs/wikirag/internal/chunker"
	"github.com/fyrsmithlabs/wikirag/internal/rag"
)

var (
	// Section title style - bold bright cyan
	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45")).
			Width(12)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
)

// previewRunes caps how much of each document is printed.
const previewRunes = 240

func field(label string, value any) string {
	return labelStyle.Render(label) + valueStyle.Render(fmt.Sprint(value))
}

func renderReport(r *rag.IngestReport) string {
	rows := []string{
		field("Article", r.Title),
		field("URL", r.URL),
		field("Words", r.Words),
		field("Chunks", r.Chunks),
		field("Batches", r.Batches),
		field("Embeddings", r.Embeddings),
		field("Dimension", r.Dimension),
		field("Collection", r.Collection),
		field("Elapsed", r.Elapsed.Round(1e6)),
		dimStyle.Render("run " + r.RunID),
	}
	return sectionStyle.Render("Ingest") + "\n" +
		containerStyle.Render(strings.Join(rows, "\n")) + "\n"
}

// renderAnswer prints the Response, Citations and Documents sections.
func renderAnswer(a *rag.Answer) string {
	var b strings.Builder

	b.WriteString(sectionStyle.Render("Response") + "\n")
	b.WriteString(a.Text + "\n")

	b.WriteString(sectionStyle.Render("Citations") + "\n")
	if len(a.Citations) == 0 {
		b.WriteString(dimStyle.Render("none") + "\n")
	}
	for _, c := range a.Citations {
		fmt.Fprintf(&b, "%s %q %s\n",
			dimStyle.Render(fmt.Sprintf("[%d:%d]", c.Start, c.End)),
			c.Text,
			labelStyle.UnsetWidth().Render(strings.Join(c.DocumentIDs, ", ")))
	}

	b.WriteString(sectionStyle.Render("Documents") + "\n")
	if len(a.Documents) == 0 {
		b.WriteString(dimStyle.Render("none") + "\n")
	}
	for _, d := range a.Documents {
		fmt.Fprintf(&b, "%s %s\n", valueStyle.Render(d.ID), preview(d.Text))
	}

	b.WriteString(dimStyle.Render(fmt.Sprintf("\n%d chunks retrieved in %s", len(a.Retrieved), a.Elapsed.Round(1e6))) + "\n")
	return b.String()
}

func renderChunkStats(file string, cfg chunker.Config, s chunker.Stats) string {
	rows := []string{
		field("File", file),
		field("Size", cfg.Size),
		field("Overlap", cfg.Overlap),
		field("Chunks", s.Chunks),
		field("Runes", s.Runes),
		field("Shortest", s.MinRunes),
		field("Longest", s.MaxRunes),
	}
	return sectionStyle.Render("Chunking") + "\n" +
		containerStyle.Render(strings.Join(rows, "\n")) + "\n"
}

func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= previewRunes {
		return text
	}
	return string(r[:previewRunes]) + "…"
}
