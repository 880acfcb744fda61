package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/imagespy/inspect/image"
	"github.com/imagespy/inspect/layer"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("220"))
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("81")).
			Width(14)
	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))
	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

func printField(w io.Writer, label, value string) {
	if value == "" {
		return
	}

	fmt.Fprintln(w, labelStyle.Render(label)+valueStyle.Render(value))
}

func printList(w io.Writer, label string, values []string) {
	for i, v := range values {
		if i > 0 {
			label = ""
		}

		fmt.Fprintln(w, labelStyle.Render(label)+valueStyle.Render(v))
	}
}

func printImage(w io.Writer, name string, m *image.Manifest, c *image.Config) {
	fmt.Fprintln(w, titleStyle.Render(name))
	printField(w, "Created", c.Created)
	printField(w, "Author", c.Author)
	printField(w, "Platform", c.OS.String()+"/"+c.Architecture.String())
	printField(w, "User", c.Config.User)
	printField(w, "WorkingDir", c.Config.WorkingDir)
	printField(w, "Entrypoint", strings.Join(c.Config.Entrypoint, " "))
	printField(w, "Cmd", strings.Join(c.Config.Cmd, " "))
	printList(w, "Env", c.Config.Env)
	printList(w, "ExposedPorts", sortedKeys(c.Config.ExposedPorts))
	printList(w, "Volumes", sortedKeys(c.Config.Volumes))
	labels := []string{}
	for k, v := range c.Config.Labels {
		labels = append(labels, k+"="+v)
	}

	sort.Strings(labels)
	printList(w, "Labels", labels)

	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Layers (%d, %d bytes)", len(m.Layers), m.TotalSize())))
	history := c.NonEmptyHistory()
	for i, l := range m.Layers {
		line := fmt.Sprintf("%s %10d", l.Digest, l.Size)
		if i < len(history) && history[i].CreatedBy != "" {
			line += "  " + history[i].CreatedBy
		}

		fmt.Fprintln(w, labelStyle.Render(fmt.Sprintf("%d", i))+valueStyle.Render(line))
	}
}

func printCatalog(w io.Writer, c layer.Catalog) {
	for _, e := range c {
		fmt.Fprintln(w, kindStyle.Render(fmt.Sprintf("%-18s", e.Kind))+entryLine(e.FullPath, e))
	}

	printCatalogSummary(w, c)
}

func printTree(w io.Writer, c layer.Catalog) {
	layer.NewIndex(c).Walk(func(e layer.Entry, depth int) {
		fmt.Fprintln(w, kindStyle.Render(fmt.Sprintf("%-18s", e.Kind))+entryLine(strings.Repeat("  ", depth)+e.Name, e))
	})

	printCatalogSummary(w, c)
}

func printCatalogSummary(w io.Writer, c layer.Catalog) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf(
		"%d entries: %d files, %d directories, %d symlinks, %d other",
		len(c),
		c.Count(layer.RegularFile{}),
		c.Count(layer.Directory{}),
		c.Count(layer.Symlink{}),
		c.Count(layer.Unsupported{}),
	)))
}

func entryLine(text string, e layer.Entry) string {
	if s, ok := e.Kind.(layer.Symlink); ok {
		return valueStyle.Render(text + " -> " + s.Target)
	}

	return valueStyle.Render(text)
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)
	return keys
}
