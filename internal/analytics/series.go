package analytics

import (
	"math"
	"sort"
	"time"

	"mesapos/backend/internal/domain"
)

var monthLabels = [12]string{"Ene", "Feb", "Mar", "Abr", "May", "Jun", "Jul", "Ago", "Sep", "Oct", "Nov", "Dic"}

// Monday first, matching the week window.
var weekLabels = [7]string{"Lun", "Mar", "Mié", "Jue", "Vie", "Sáb", "Dom"}

type seriesBucket struct {
	order int64
	label string
	sales float64
	items int
}

// BuildSeries groups records into chart buckets for the given period.
// Values are rounded to whole units; the series is for display and must not
// feed back into snapshot figures.
func BuildSeries(records []domain.SaleRecord, period domain.Period, loc *time.Location) []domain.SeriesPoint {
	if loc == nil {
		loc = time.Local
	}

	buckets := map[int64]*seriesBucket{}
	switch period {
	case domain.PeriodWeek:
		for i, label := range weekLabels {
			buckets[int64(i)] = &seriesBucket{order: int64(i), label: label}
		}
	case domain.PeriodYear:
		for i, label := range monthLabels {
			buckets[int64(i)] = &seriesBucket{order: int64(i), label: label}
		}
	}

	for _, record := range records {
		at := record.Time(loc)
		var order int64
		var label string
		switch period {
		case domain.PeriodToday:
			order, label = int64(at.Hour()), at.Format("15")+":00"
		case domain.PeriodWeek:
			order = int64((int(at.Weekday()) + 6) % 7)
		case domain.PeriodYear:
			order = int64(at.Month()) - 1
		default:
			day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, loc)
			order, label = day.Unix(), day.Format(dayLabelLayout)
		}

		bucket, ok := buckets[order]
		if !ok {
			bucket = &seriesBucket{order: order, label: label}
			buckets[order] = bucket
		}
		bucket.sales += record.Total
		bucket.items += record.ItemCount()
	}

	sorted := make([]*seriesBucket, 0, len(buckets))
	for _, bucket := range buckets {
		sorted = append(sorted, bucket)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].order < sorted[j].order
	})

	points := make([]domain.SeriesPoint, 0, len(sorted))
	for _, bucket := range sorted {
		points = append(points, domain.SeriesPoint{
			Label: bucket.label,
			Sales: int64(math.Round(bucket.sales)),
			Items: int64(bucket.items),
		})
	}
	return points
}
