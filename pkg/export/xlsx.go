// Package export writes recommendation reports to files.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/s166harth/lastfm-recommender/internal/store"
)

const sheetName = "Recommendations"

var headers = []string{
	"Rank", "Song", "Artist", "Album",
	"Plays", "Days", "Artist Plays", "Album Plays", "Score",
}

// WriteXLSX writes the ranked recommendation list to an XLSX workbook.
func WriteXLSX(path string, recs []store.Recommendation) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDDDDD"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, h)
	}
	f.SetRowStyle(sheetName, 1, 1, headerStyle)

	for i := range recs {
		r := &recs[i]
		row := i + 2
		values := []any{
			r.Position, r.Song, r.Artist, r.Album,
			r.PlayCount, r.UniqueDays, r.ArtistPlays, r.AlbumPlays, r.Score,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(sheetName, cell, v)
		}
	}

	f.SetColWidth(sheetName, "B", "D", 32)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save xlsx %s: %w", path, err)
	}
	return nil
}
