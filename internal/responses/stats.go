package responses

import (
	"context"
	"errors"
	"math"

	"github.com/coughcrowd/backend/internal/audio"
	"gorm.io/gorm"
)

// Stats is a percentage breakdown of selections. Percentages round half up
// and are all zero when no responses exist.
type Stats struct {
	Total            int64 `json:"totalResponses"`
	CoughCount       int64 `json:"coughCount"`
	ThroatClearCount int64 `json:"throatClearCount"`
	OtherCount       int64 `json:"otherCount"`
	CoughPct         int   `json:"coughPercentage"`
	ThroatClearPct   int   `json:"throatClearPercentage"`
	OtherPct         int   `json:"otherPercentage"`
}

// SnippetStats attaches snippet identity to its breakdown.
type SnippetStats struct {
	SnippetID    string `json:"snippetId"`
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Stats
}

type selectionCount struct {
	Selection Selection
	Total     int64
}

// StatsForSnippet recomputes the breakdown for one existing snippet.
func (l *Ledger) StatsForSnippet(ctx context.Context, snippetID string) (SnippetStats, error) {
	var result SnippetStats
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var snippet audio.Snippet
		if err := tx.Where("id = ?", snippetID).Take(&snippet).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return audio.ErrSnippetNotFound
			}
			return err
		}
		stats, err := selectionBreakdown(tx.Model(&Response{}).Where("snippet_id = ?", snippetID))
		if err != nil {
			return err
		}
		result = SnippetStats{
			SnippetID:    snippet.ID,
			Filename:     snippet.Filename,
			OriginalName: snippet.OriginalName,
			Stats:        stats,
		}
		return nil
	})
	if err != nil {
		return SnippetStats{}, err
	}
	return result, nil
}

// StatsForAllSnippets recomputes the breakdown for every existing snippet,
// newest upload first. Responses whose snippet was deleted are excluded here
// but still count toward Overall.
func (l *Ledger) StatsForAllSnippets(ctx context.Context) ([]SnippetStats, error) {
	var results []SnippetStats
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var snippets []audio.Snippet
		if err := tx.Order("uploaded_at DESC").Find(&snippets).Error; err != nil {
			return err
		}

		var counts []struct {
			SnippetID string
			Selection Selection
			Total     int64
		}
		if err := tx.Model(&Response{}).
			Select("snippet_id, selection, COUNT(*) AS total").
			Group("snippet_id, selection").
			Scan(&counts).Error; err != nil {
			return err
		}

		bySnippet := make(map[string][]selectionCount, len(counts))
		for _, row := range counts {
			bySnippet[row.SnippetID] = append(bySnippet[row.SnippetID], selectionCount{Selection: row.Selection, Total: row.Total})
		}

		results = make([]SnippetStats, 0, len(snippets))
		for _, snippet := range snippets {
			results = append(results, SnippetStats{
				SnippetID:    snippet.ID,
				Filename:     snippet.Filename,
				OriginalName: snippet.OriginalName,
				Stats:        statsFromCounts(bySnippet[snippet.ID]),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Overall recomputes the breakdown across the entire ledger.
func (l *Ledger) Overall(ctx context.Context) (Stats, error) {
	return selectionBreakdown(l.db.WithContext(ctx).Model(&Response{}))
}

func selectionBreakdown(query *gorm.DB) (Stats, error) {
	var counts []selectionCount
	if err := query.
		Select("selection, COUNT(*) AS total").
		Group("selection").
		Scan(&counts).Error; err != nil {
		return Stats{}, err
	}
	return statsFromCounts(counts), nil
}

func statsFromCounts(counts []selectionCount) Stats {
	stats := Stats{}
	for _, row := range counts {
		switch row.Selection {
		case SelectionCough:
			stats.CoughCount = row.Total
		case SelectionThroatClear:
			stats.ThroatClearCount = row.Total
		case SelectionOther:
			stats.OtherCount = row.Total
		}
		stats.Total += row.Total
	}
	stats.CoughPct = percentage(stats.CoughCount, stats.Total)
	stats.ThroatClearPct = percentage(stats.ThroatClearCount, stats.Total)
	stats.OtherPct = percentage(stats.OtherCount, stats.Total)
	return stats
}

// percentage rounds half up; counts are non-negative so half away from zero
// is the same thing.
func percentage(count, total int64) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(count) / float64(total) * 100))
}
