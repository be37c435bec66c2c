package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"
)

// outputWriter is used for printing output, can be overridden in tests
var outputWriter io.Writer = os.Stdout

// setOutputWriter sets the output writer (used for testing)
func setOutputWriter(w io.Writer) {
	outputWriter = w
}

// resetOutputWriter resets output to stdout (used for testing)
func resetOutputWriter() {
	outputWriter = os.Stdout
}

var (
	headerStyle  = color.New(color.FgLightWhite, color.OpBold)
	sectionStyle = color.New(color.FgCyan, color.OpBold)
	okStyle      = color.New(color.FgGreen)
	failStyle    = color.New(color.FgRed, color.OpBold)
	dimStyle     = color.New(color.FgGray)
)

// printHeader prints a formatted header
func printHeader(format string, args ...interface{}) {
	title := fmt.Sprintf(format, args...)
	width := visualWidth(title) + 4
	fmt.Fprintln(outputWriter, strings.Repeat("=", width))
	fmt.Fprintf(outputWriter, "  %s\n", headerStyle.Sprint(title))
	fmt.Fprintln(outputWriter, strings.Repeat("=", width))
}

// printSection prints a section header
func printSection(title string) {
	fmt.Fprintln(outputWriter, sectionStyle.Sprintf("[%s]", title))
	fmt.Fprintln(outputWriter, strings.Repeat("-", visualWidth(title)+2))
}

// okMark and failMark prefix result lines.
func okMark() string   { return okStyle.Sprint("✅") }
func failMark() string { return failStyle.Sprint("❌") }

// visualWidth returns the terminal width of s, ignoring color codes.
func visualWidth(s string) int {
	return runewidth.StringWidth(color.ClearCode(s))
}

// padRight pads s with spaces to the given terminal width.
func padRight(s string, width int) string {
	if w := visualWidth(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

// printTable prints rows as aligned columns under a header row.
func printTable(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = visualWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && visualWidth(cell) > widths[i] {
				widths[i] = visualWidth(cell)
			}
		}
	}

	line := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			if i == len(cells)-1 {
				parts[i] = cell
				continue
			}
			parts[i] = padRight(cell, widths[i])
		}
		fmt.Fprintf(outputWriter, "  %s\n", strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	line(headers)
	sep := make([]string, len(headers))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	line(sep)
	for _, row := range rows {
		line(row)
	}
}

// printSideBySide prints two blocks of text side by side
// padding is the minimum spaces between the two columns
func printSideBySide(leftContent string, rightLines []string, padding int) {
	leftLines := strings.Split(strings.TrimRight(leftContent, "\n"), "\n")

	leftWidth := 0
	for _, line := range leftLines {
		if w := visualWidth(line); w > leftWidth {
			leftWidth = w
		}
	}

	rows := len(leftLines)
	if len(rightLines) > rows {
		rows = len(rightLines)
	}

	for i := 0; i < rows; i++ {
		left, right := "", ""
		if i < len(leftLines) {
			left = leftLines[i]
		}
		if i < len(rightLines) {
			right = rightLines[i]
		}
		if right == "" {
			fmt.Fprintln(outputWriter, strings.TrimRight(left, " "))
			continue
		}
		fmt.Fprintln(outputWriter, padRight(left, leftWidth+padding)+right)
	}
}
