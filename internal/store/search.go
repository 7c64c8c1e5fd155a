package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// relevanceTerm scores one query term: the number of occurrences of the
// term in the span text, normalized by term length so long terms are not
// over-weighted.
const relevanceTerm = `(CASE WHEN length(?) > 0 THEN ` +
	`(length(lower(r.text)) - length(replace(lower(r.text), ?, ''))) / length(?) ` +
	`ELSE 0 END)`

// Search runs a text search over recognized spans. Fuzzy queries split on
// whitespace, require every term as a case-insensitive substring, and rank
// by summed per-term relevance; exact queries match the whole text.
// Results order by relevance (fuzzy only), then newest screenshot, then
// newest span.
func (s *Store) Search(ctx context.Context, opts SearchOptions) ([]SearchHit, error) {
	ctx = ensureContext(ctx)

	var (
		clauses         []string
		params          []any
		relevanceParams []any
		relevanceExpr   string
	)

	if opts.Query != "" {
		if opts.Fuzzy {
			terms := strings.Fields(opts.Query)
			if len(terms) > 0 {
				exprs := make([]string, len(terms))
				for i, term := range terms {
					norm := strings.ToLower(term)
					clauses = append(clauses, `lower(r.text) LIKE ?`)
					params = append(params, "%"+norm+"%")
					exprs[i] = relevanceTerm
					relevanceParams = append(relevanceParams, norm, norm, norm)
				}
				relevanceExpr = strings.Join(exprs, " + ")
			} else {
				clauses = append(clauses, `1=1`)
			}
		} else {
			clauses = append(clauses, `r.text = ?`)
			params = append(params, opts.Query)
		}
	} else {
		clauses = append(clauses, `1=1`)
	}

	processNames := make([]string, 0, len(opts.ProcessNames))
	for _, name := range opts.ProcessNames {
		if strings.TrimSpace(name) != "" {
			processNames = append(processNames, name)
		}
	}
	if len(processNames) > 0 {
		placeholders := strings.Repeat("?,", len(processNames))
		clauses = append(clauses, `(s.process_name IN (`+placeholders[:len(placeholders)-1]+`))`)
		for _, name := range processNames {
			params = append(params, name)
		}
	}

	if opts.StartTime != nil {
		clauses = append(clauses, `s.created_at >= ?`)
		params = append(params, epochToTimestamp(*opts.StartTime))
	}
	if opts.EndTime != nil {
		clauses = append(clauses, `s.created_at <= ?`)
		params = append(params, epochToTimestamp(*opts.EndTime))
	}

	limit := max(opts.Limit, 0)
	offset := max(opts.Offset, 0)
	params = append(params, limit, offset)

	selectRelevance := ""
	orderClause := `ORDER BY s.created_at DESC, r.id DESC`
	if relevanceExpr != "" {
		selectRelevance = `, ` + relevanceExpr + ` AS relevance`
		orderClause = `ORDER BY relevance DESC, s.created_at DESC, r.id DESC`
	}

	query := fmt.Sprintf(`
		SELECT
			r.id, r.text, r.confidence,
			r.box_x1, r.box_y1, r.box_x2, r.box_y2,
			r.box_x3, r.box_y3, r.box_x4, r.box_y4,
			r.created_at,
			s.id AS screenshot_id,
			s.image_path,
			s.window_title,
			s.process_name,
			s.created_at AS screenshot_created_at%s
		FROM ocr_results r
		JOIN screenshots s ON r.screenshot_id = s.id
		WHERE %s
		%s
		LIMIT ? OFFSET ?`,
		selectRelevance, strings.Join(clauses, " AND "), orderClause)

	rows, err := s.db.QueryContext(ctx, query, append(relevanceParams, params...)...)
	if err != nil {
		return nil, fmt.Errorf("search spans: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var (
			hit        SearchHit
			confidence sql.NullFloat64
			title      sql.NullString
			process    sql.NullString
			relevance  sql.NullFloat64
		)
		dest := []any{
			&hit.ID, &hit.Text, &confidence,
			&hit.Box[0][0], &hit.Box[0][1], &hit.Box[1][0], &hit.Box[1][1],
			&hit.Box[2][0], &hit.Box[2][1], &hit.Box[3][0], &hit.Box[3][1],
			&hit.CreatedAt,
			&hit.ScreenshotID, &hit.ImagePath, &title, &process, &hit.ScreenshotCreatedAt,
		}
		if relevanceExpr != "" {
			dest = append(dest, &relevance)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		hit.Confidence = confidence.Float64
		hit.WindowTitle = title.String
		hit.ProcessName = process.String
		hit.Relevance = relevance.Float64
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}
