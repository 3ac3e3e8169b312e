package analytics

import (
	"sort"
	"strings"
	"time"

	"mesapos/backend/internal/domain"
)

const (
	topItemsLimit  = 10
	notAvailable   = "N/A"
	unnamedItem    = "Sin nombre"
	dayKeyLayout   = "2006-01-02"
	dayLabelLayout = "02/01"
	minGrowthDays  = 4
	minGrowthSales = 1.0
	minGrowthItems = 0
)

var weekdayNames = [7]string{"Domingo", "Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado"}

// Aggregate computes the snapshot for records in the local time zone.
func Aggregate(records []domain.SaleRecord, period domain.Period) domain.AnalyticsSnapshot {
	return AggregateIn(records, period, time.Local)
}

// AggregateIn computes the snapshot using loc for calendar bucketing. An
// empty input yields a zeroed snapshot, never an error.
func AggregateIn(records []domain.SaleRecord, period domain.Period, loc *time.Location) domain.AnalyticsSnapshot {
	if loc == nil {
		loc = time.Local
	}
	snapshot := emptySnapshot(period)
	if len(records) == 0 {
		return snapshot
	}

	days := map[string]*dayBucket{}
	hours := map[string]float64{}
	items := newItemRollup()
	categories := map[string]float64{}
	classify := newClassifier()

	for _, record := range records {
		at := record.Time(loc)
		count := record.ItemCount()

		snapshot.TotalSales += record.Total
		snapshot.TotalTickets++
		snapshot.TotalItems += count

		key := at.Format(dayKeyLayout)
		day, ok := days[key]
		if !ok {
			day = &dayBucket{at: time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, loc)}
			days[key] = day
		}
		day.sales += record.Total
		day.items += count
		day.tickets++

		snapshot.WeekdaySales[at.Weekday()] += record.Total
		hours[at.Format("15")+":00"] += record.Total

		for _, item := range record.Items {
			revenue := item.Subtotal()
			items.add(strings.TrimSpace(item.Name), item.Quantity, revenue)
			categories[classify.classify(item.Name)] += revenue
		}
	}

	tickets := float64(snapshot.TotalTickets)
	snapshot.AvgTicket = snapshot.TotalSales / tickets
	snapshot.AvgItemsPerTicket = float64(snapshot.TotalItems) / tickets

	snapshot.DailyData = sortedDays(days)
	snapshot.HighestDailySale, snapshot.LowestDailySale = dailyExtremes(snapshot.DailyData)
	snapshot.BestSellingDay = bestWeekday(snapshot.WeekdaySales)
	snapshot.MostPopularItems, snapshot.TopRevenueItems = items.rankings(snapshot.TotalSales)
	snapshot.CategoryData = categoryStats(categories, snapshot.TotalSales)
	snapshot.HourlyData = hourlyStats(hours)
	snapshot.SalesGrowth, snapshot.ItemsGrowth = growth(snapshot.DailyData, period)

	return snapshot
}

func emptySnapshot(period domain.Period) domain.AnalyticsSnapshot {
	return domain.AnalyticsSnapshot{
		Period:           period,
		DailyData:        []domain.DailySales{},
		HighestDailySale: domain.DayAmount{Date: notAvailable},
		LowestDailySale:  domain.DayAmount{Date: notAvailable},
		BestSellingDay:   domain.WeekdayAmount{Day: notAvailable},
		MostPopularItems: []domain.ItemStat{},
		TopRevenueItems:  []domain.ItemStat{},
		CategoryData:     []domain.CategoryStat{},
		HourlyData:       []domain.HourlySales{},
	}
}

type dayBucket struct {
	at      time.Time
	sales   float64
	items   int
	tickets int
}

// sortedDays orders days by full calendar date so windows spanning a year
// boundary stay chronological; the DD/MM label is display only.
func sortedDays(days map[string]*dayBucket) []domain.DailySales {
	buckets := make([]*dayBucket, 0, len(days))
	for _, day := range days {
		buckets = append(buckets, day)
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].at.Before(buckets[j].at)
	})

	out := make([]domain.DailySales, 0, len(buckets))
	for _, day := range buckets {
		out = append(out, domain.DailySales{
			Key:     day.at.Format(dayKeyLayout),
			Date:    day.at.Format(dayLabelLayout),
			Sales:   day.sales,
			Items:   day.items,
			Tickets: day.tickets,
		})
	}
	return out
}

func dailyExtremes(days []domain.DailySales) (highest domain.DayAmount, lowest domain.DayAmount) {
	if len(days) == 0 {
		return domain.DayAmount{Date: notAvailable}, domain.DayAmount{Date: notAvailable}
	}
	highest = domain.DayAmount{Date: days[0].Date, Amount: days[0].Sales}
	lowest = highest
	for _, day := range days[1:] {
		if day.Sales > highest.Amount {
			highest = domain.DayAmount{Date: day.Date, Amount: day.Sales}
		}
		if day.Sales < lowest.Amount {
			lowest = domain.DayAmount{Date: day.Date, Amount: day.Sales}
		}
	}
	return highest, lowest
}

// bestWeekday reports the weekday with the largest summed sales over the
// whole window. It is a sum, not a per-day average.
func bestWeekday(buckets [7]float64) domain.WeekdayAmount {
	best := -1
	for i, amount := range buckets {
		if amount <= 0 {
			continue
		}
		if best < 0 || amount > buckets[best] {
			best = i
		}
	}
	if best < 0 {
		return domain.WeekdayAmount{Day: notAvailable}
	}
	return domain.WeekdayAmount{Day: weekdayNames[best], Amount: buckets[best]}
}

type itemBucket struct {
	name     string
	quantity int
	revenue  float64
}

// itemRollup keeps first-seen order so equal rankings stay in input order.
type itemRollup struct {
	order []*itemBucket
	index map[string]*itemBucket
}

func newItemRollup() *itemRollup {
	return &itemRollup{index: map[string]*itemBucket{}}
}

// add buckets blank names under unnamedItem so item percentages still
// cover every unit counted in TotalItems.
func (r *itemRollup) add(name string, quantity int, revenue float64) {
	if name == "" {
		name = unnamedItem
	}
	bucket, ok := r.index[name]
	if !ok {
		bucket = &itemBucket{name: name}
		r.index[name] = bucket
		r.order = append(r.order, bucket)
	}
	bucket.quantity += quantity
	bucket.revenue += revenue
}

func (r *itemRollup) rankings(totalSales float64) (byQuantity []domain.ItemStat, byRevenue []domain.ItemStat) {
	totalQuantity := 0
	for _, bucket := range r.order {
		totalQuantity += bucket.quantity
	}

	quantityOrder := append([]*itemBucket(nil), r.order...)
	sort.SliceStable(quantityOrder, func(i, j int) bool {
		return quantityOrder[i].quantity > quantityOrder[j].quantity
	})
	byQuantity = make([]domain.ItemStat, 0, topItemsLimit)
	for _, bucket := range quantityOrder[:min(topItemsLimit, len(quantityOrder))] {
		byQuantity = append(byQuantity, domain.ItemStat{
			Name:       bucket.name,
			Quantity:   bucket.quantity,
			Revenue:    bucket.revenue,
			Percentage: percentOf(float64(bucket.quantity), float64(totalQuantity)),
		})
	}

	revenueOrder := append([]*itemBucket(nil), r.order...)
	sort.SliceStable(revenueOrder, func(i, j int) bool {
		return revenueOrder[i].revenue > revenueOrder[j].revenue
	})
	byRevenue = make([]domain.ItemStat, 0, topItemsLimit)
	for _, bucket := range revenueOrder[:min(topItemsLimit, len(revenueOrder))] {
		byRevenue = append(byRevenue, domain.ItemStat{
			Name:       bucket.name,
			Quantity:   bucket.quantity,
			Revenue:    bucket.revenue,
			Percentage: percentOf(bucket.revenue, totalSales),
		})
	}
	return byQuantity, byRevenue
}

func categoryStats(totals map[string]float64, totalSales float64) []domain.CategoryStat {
	stats := make([]domain.CategoryStat, 0, len(categoryOrder))
	for _, name := range categoryOrder {
		amount := totals[name]
		if amount == 0 {
			continue
		}
		stats = append(stats, domain.CategoryStat{Name: name, Amount: amount})
	}
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Amount > stats[j].Amount
	})
	for i := range stats {
		stats[i].Percentage = percentOf(stats[i].Amount, totalSales)
		stats[i].Color = categoryPalette[i%len(categoryPalette)]
	}
	return stats
}

func hourlyStats(hours map[string]float64) []domain.HourlySales {
	stats := make([]domain.HourlySales, 0, len(hours))
	for hour, sales := range hours {
		stats = append(stats, domain.HourlySales{Hour: hour, Sales: sales})
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Hour < stats[j].Hour
	})
	return stats
}

// growth compares the later half of the day list against the earlier half.
// Only week, month and year windows with at least four days qualify.
func growth(days []domain.DailySales, period domain.Period) (sales float64, items float64) {
	switch period {
	case domain.PeriodWeek, domain.PeriodMonth, domain.PeriodYear:
	default:
		return 0, 0
	}
	if len(days) < minGrowthDays {
		return 0, 0
	}

	mid := (len(days) + 1) / 2
	var firstSales, secondSales float64
	var firstItems, secondItems int
	for i, day := range days {
		if i < mid {
			firstSales += day.Sales
			firstItems += day.Items
			continue
		}
		secondSales += day.Sales
		secondItems += day.Items
	}

	if firstSales > minGrowthSales {
		sales = (secondSales - firstSales) / firstSales * 100
	}
	if firstItems > minGrowthItems {
		items = float64(secondItems-firstItems) / float64(firstItems) * 100
	}
	return sales, items
}

func percentOf(part float64, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}
