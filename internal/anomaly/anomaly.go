// Package anomaly flags statistically unusual records in a reconciled set:
// excessive daily hours, rate outliers against the run mean, and
// near-duplicate entries sharing an identity key and date. Flags are report
// artifacts; nothing here drops or mutates records.
package anomaly

import (
	"fmt"
	"math"

	"fleet-recon/internal/model"
)

// Detect applies the configured rules to a record set. Rules with
// non-positive thresholds are skipped, and an empty record set yields an
// empty flag set (the rate mean is never computed over zero records).
// Output order is deterministic given input order.
func Detect(records []model.CanonicalRecord, rules model.AnomalyRules) []model.AnomalyFlag {
	flags := []model.AnomalyFlag{}
	if len(records) == 0 {
		return flags
	}

	flags = append(flags, detectExcessiveHours(records, rules.ExcessiveHoursDaily)...)
	flags = append(flags, detectOutlierRates(records, rules.OutlierMultiplier)...)
	flags = append(flags, detectDuplicates(records, rules.DuplicateTolerance)...)
	return flags
}

func detectExcessiveHours(records []model.CanonicalRecord, threshold float64) []model.AnomalyFlag {
	if threshold <= 0 {
		return nil
	}
	var flags []model.AnomalyFlag
	for _, rec := range records {
		if rec.Hours == nil || *rec.Hours <= threshold {
			continue
		}
		flags = append(flags, model.AnomalyFlag{
			Type:     model.AnomalyExcessiveHours,
			Severity: model.SeverityWarning,
			Records:  []model.RecordRef{rec.Ref()},
			Key:      rec.Key(),
			Date:     rec.Date,
			Score:    *rec.Hours,
			Detail:   fmt.Sprintf("%.2f hours exceeds daily limit %.2f", *rec.Hours, threshold),
		})
	}
	return flags
}

func detectOutlierRates(records []model.CanonicalRecord, multiplier float64) []model.AnomalyFlag {
	if multiplier <= 0 {
		return nil
	}
	var sum float64
	var n int
	for _, rec := range records {
		if rec.Rate != nil {
			sum += *rec.Rate
			n++
		}
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	cutoff := multiplier * mean

	var flags []model.AnomalyFlag
	for _, rec := range records {
		if rec.Rate == nil || *rec.Rate <= cutoff {
			continue
		}
		flags = append(flags, model.AnomalyFlag{
			Type:     model.AnomalyOutlierRate,
			Severity: model.SeverityWarning,
			Records:  []model.RecordRef{rec.Ref()},
			Key:      rec.Key(),
			Date:     rec.Date,
			Score:    *rec.Rate,
			Detail:   fmt.Sprintf("rate %.2f exceeds %.1fx mean rate %.2f", *rec.Rate, multiplier, mean),
		})
	}
	return flags
}

func detectDuplicates(records []model.CanonicalRecord, tolerance float64) []model.AnomalyFlag {
	if tolerance <= 0 {
		return nil
	}

	type groupKey struct {
		key  string
		date string
	}
	groups := make(map[groupKey][]int)
	var order []groupKey
	for i, rec := range records {
		if rec.Key() == "" {
			continue
		}
		gk := groupKey{key: rec.Key(), date: rec.Date}
		if _, seen := groups[gk]; !seen {
			order = append(order, gk)
		}
		groups[gk] = append(groups[gk], i)
	}

	var flags []model.AnomalyFlag
	for _, gk := range order {
		idxs := groups[gk]
		if len(idxs) < 2 {
			continue
		}
		for a := 0; a < len(idxs); a++ {
			for b := a + 1; b < len(idxs); b++ {
				ra, rb := records[idxs[a]], records[idxs[b]]
				score, compared := Similarity(ra, rb)
				if compared == 0 || score <= tolerance {
					continue
				}
				flags = append(flags, model.AnomalyFlag{
					Type:     model.AnomalyPotentialDuplicate,
					Severity: model.SeverityCritical,
					Records:  []model.RecordRef{ra.Ref(), rb.Ref()},
					Key:      gk.key,
					Date:     gk.date,
					Score:    score,
					Detail:   fmt.Sprintf("similarity %.4f across %d compared fields", score, compared),
				})
			}
		}
	}
	return flags
}

// Similarity scores a pair of same-identity records. Numeric fields (hours,
// rate) score 1 minus the normalized absolute difference; the text location
// field scores 1.0 on exact match and 0.0 otherwise. A field is compared only
// when present on both sides; the free-text category/description is excluded
// because duplicate billing lines legitimately vary in it. Returns the
// average across compared fields and the number of fields compared.
func Similarity(a, b model.CanonicalRecord) (float64, int) {
	var total float64
	var n int

	if a.Hours != nil && b.Hours != nil {
		total += numericSimilarity(*a.Hours, *b.Hours)
		n++
	}
	if a.Rate != nil && b.Rate != nil {
		total += numericSimilarity(*a.Rate, *b.Rate)
		n++
	}
	if a.Location != "" && b.Location != "" {
		if a.Location == b.Location {
			total += 1.0
		}
		n++
	}

	if n == 0 {
		// Nothing to distinguish two records sharing identity and date.
		return 1.0, 0
	}
	return total / float64(n), n
}

func numericSimilarity(a, b float64) float64 {
	if a == b {
		return 1.0
	}
	denom := math.Max(math.Abs(a), math.Abs(b))
	if denom == 0 {
		return 1.0
	}
	sim := 1.0 - math.Abs(a-b)/denom
	if sim < 0 {
		return 0
	}
	return sim
}
