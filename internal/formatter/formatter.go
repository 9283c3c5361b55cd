// package formatter renders rankings and provider listings as CSV, Markdown, JSON or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shibest/mycelius/internal/services"
	"github.com/shibest/mycelius/internal/shared"
	"github.com/shibest/mycelius/internal/similarity"
)

// Format is an output format name.
type Format string

const (
	FormatText     Format = "text"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// Formats lists the accepted format names.
var Formats = []Format{FormatText, FormatCSV, FormatMarkdown, FormatJSON}

// ParseFormat accepts a format name, with "md" as an alias for markdown. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// Extension returns the file extension for f.
func (f Format) Extension() string {
	switch f {
	case FormatCSV:
		return ".csv"
	case FormatMarkdown:
		return ".md"
	case FormatJSON:
		return ".json"
	default:
		return ".txt"
	}
}

// Table is a titled grid of string cells. Data is the structured value behind the rows, used for JSON.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	Data    any
}

// Render encodes table in format.
func Render(format Format, table *Table) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(table)
	case FormatMarkdown:
		return ExportToMarkdown(table)
	case FormatJSON:
		return ExportToJSON(table)
	default:
		return ExportToText(table)
	}
}

// ExportToCSV writes the headers then one record per row.
func ExportToCSV(table *Table) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(table.Headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, row := range table.Rows {
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders a heading and a pipe table.
func ExportToMarkdown(table *Table) ([]byte, error) {
	var buf bytes.Buffer

	if table.Title != "" {
		fmt.Fprintf(&buf, "# %s\n\n", table.Title)
	}
	fmt.Fprintf(&buf, "**Items**: %d\n\n", len(table.Rows))

	if len(table.Headers) == 0 {
		return buf.Bytes(), nil
	}

	fmt.Fprintf(&buf, "| %s |\n", strings.Join(escapeCells(table.Headers), " | "))
	buf.WriteString("|")
	for range table.Headers {
		buf.WriteString(" --- |")
	}
	buf.WriteString("\n")

	for _, row := range table.Rows {
		fmt.Fprintf(&buf, "| %s |\n", strings.Join(escapeCells(row), " | "))
	}

	return buf.Bytes(), nil
}

// ExportToText renders the title and one numbered line per row.
func ExportToText(table *Table) ([]byte, error) {
	var buf bytes.Buffer

	if table.Title != "" {
		fmt.Fprintf(&buf, "%s\n", table.Title)
	}
	fmt.Fprintf(&buf, "Items: %d\n\n", len(table.Rows))

	for i, row := range table.Rows {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, strings.Join(nonEmpty(row), " - "))
	}

	return buf.Bytes(), nil
}

// ExportToJSON encodes table.Data, falling back to header-keyed objects when Data is nil.
func ExportToJSON(table *Table) ([]byte, error) {
	if table.Data != nil {
		return shared.MarshalJSON(table.Data, true)
	}

	records := make([]map[string]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		rec := make(map[string]string, len(table.Headers))
		for i, h := range table.Headers {
			if i < len(row) {
				rec[h] = row[i]
			}
		}
		records = append(records, rec)
	}
	return shared.MarshalJSON(records, true)
}

// WriteExport renders table and writes it to path, adding the format's extension when path has none.
func WriteExport(format Format, table *Table, path string) (string, error) {
	data, err := Render(format, table)
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", format, err)
	}

	if filepath.Ext(path) == "" {
		path += format.Extension()
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

// RankingsTable lists candidates by similarity score.
func RankingsTable(rankings []similarity.Ranking) *Table {
	t := &Table{Title: "Similarity", Headers: []string{"Rank", "Username", "Score"}, Data: rankings}
	for _, r := range rankings {
		t.Rows = append(t.Rows, []string{strconv.Itoa(r.Rank), r.Username, strconv.Itoa(r.Score)})
	}
	return t
}

// ArtistsTable lists Spotify artists with their genres.
func ArtistsTable(artists []services.SpotifyArtist) *Table {
	t := &Table{Title: "Top Artists", Headers: []string{"Name", "Genres", "Popularity"}, Data: artists}
	for _, a := range artists {
		t.Rows = append(t.Rows, []string{a.Name, strings.Join(a.Genres, ", "), strconv.Itoa(a.Popularity)})
	}
	return t
}

// TracksTable lists Spotify tracks.
func TracksTable(tracks []services.SpotifyTrack) *Table {
	t := &Table{Title: "Top Tracks", Headers: []string{"Title", "Artist", "Album", "Duration"}, Data: tracks}
	for _, tr := range tracks {
		t.Rows = append(t.Rows, []string{
			tr.Name,
			strings.Join(tr.ArtistNames(), ", "),
			tr.Album.Name,
			FormatDuration(tr.DurationMS / 1000),
		})
	}
	return t
}

// WatchlistTable lists Trakt watchlist shows followed by movies.
func WatchlistTable(w *services.TraktWatchlist) *Table {
	t := &Table{Title: "Watchlist", Headers: []string{"Type", "Title", "Year"}, Data: w}
	for _, items := range [][]services.TraktWatchlistItem{w.Shows, w.Movies} {
		for _, item := range items {
			year := ""
			if y := item.Year(); y > 0 {
				year = strconv.Itoa(y)
			}
			t.Rows = append(t.Rows, []string{item.Type, item.Title(), year})
		}
	}
	return t
}

// GamesTable lists Steam games with total playtime.
func GamesTable(games []services.SteamGame) *Table {
	t := &Table{Title: "Steam Games", Headers: []string{"AppID", "Name", "Playtime"}, Data: games}
	for _, g := range games {
		t.Rows = append(t.Rows, []string{strconv.Itoa(g.AppID), g.Name, FormatPlaytime(g.PlaytimeForever)})
	}
	return t
}

// FormatDuration renders seconds as m:ss.
func FormatDuration(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// FormatPlaytime renders minutes as hours with one decimal.
func FormatPlaytime(minutes int) string {
	return fmt.Sprintf("%.1fh", float64(minutes)/60)
}

func escapeCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.ReplaceAll(c, "|", `\|`)
	}
	return out
}

func nonEmpty(cells []string) []string {
	out := make([]string, 0, len(cells))
	for _, c := range cells {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}
