package analytics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mesapos/backend/internal/domain"
)

var testLoc = time.FixedZone("CST", -6*60*60)

// Wednesday.
var testNow = time.Date(2024, time.May, 15, 12, 30, 0, 0, testLoc)

func at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, testLoc)
}

func sale(id string, when time.Time, total float64, items ...domain.LineItem) domain.SaleRecord {
	return domain.SaleRecord{
		ID:          id,
		TableNumber: 1,
		TableName:   "Mesa 1",
		Items:       items,
		Total:       total,
		Timestamp:   when.UnixMilli(),
	}
}

func item(name string, price float64, qty int) domain.LineItem {
	return domain.LineItem{Name: name, Price: price, Quantity: qty}
}

func ids(records []domain.SaleRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestFilterWeekBoundaries(t *testing.T) {
	records := []domain.SaleRecord{
		sale("monday-start", at(2024, time.May, 13, 0, 0), 10),
		{ID: "prev-sunday-end", Timestamp: time.Date(2024, time.May, 12, 23, 59, 59, int(999*time.Millisecond), testLoc).UnixMilli()},
		{ID: "sunday-end", Timestamp: time.Date(2024, time.May, 19, 23, 59, 59, int(999*time.Millisecond), testLoc).UnixMilli()},
		sale("next-monday", at(2024, time.May, 20, 0, 0), 10),
	}

	got := FilterByPeriod(records, domain.Selection{Period: domain.PeriodWeek}, testNow)
	assert.ElementsMatch(t, []string{"monday-start", "sunday-end"}, ids(got))
}

func TestFilterWeekWhenNowIsSunday(t *testing.T) {
	sunday := time.Date(2024, time.May, 19, 8, 0, 0, 0, testLoc)
	from, to, ok := Window(domain.Selection{Period: domain.PeriodWeek}, sunday)
	require.True(t, ok)
	assert.Equal(t, at(2024, time.May, 13, 0, 0), from)
	assert.Equal(t, 19, to.Day())
	assert.Equal(t, 23, to.Hour())
}

func TestFilterTodayMonthYear(t *testing.T) {
	now := time.Date(2024, time.February, 10, 9, 0, 0, 0, testLoc)
	records := []domain.SaleRecord{
		sale("jan-31", at(2024, time.January, 31, 23, 0), 1),
		sale("feb-10-early", at(2024, time.February, 10, 0, 0), 1),
		sale("feb-29", at(2024, time.February, 29, 23, 59), 1),
		sale("mar-01", at(2024, time.March, 1, 0, 0), 1),
		sale("dec-31-prev", at(2023, time.December, 31, 12, 0), 1),
	}

	today := FilterByPeriod(records, domain.Selection{Period: domain.PeriodToday}, now)
	assert.ElementsMatch(t, []string{"feb-10-early"}, ids(today))

	month := FilterByPeriod(records, domain.Selection{Period: domain.PeriodMonth}, now)
	assert.ElementsMatch(t, []string{"feb-10-early", "feb-29"}, ids(month))

	year := FilterByPeriod(records, domain.Selection{Period: domain.PeriodYear}, now)
	assert.ElementsMatch(t, []string{"jan-31", "feb-10-early", "feb-29", "mar-01"}, ids(year))

	all := FilterByPeriod(records, domain.Selection{Period: domain.PeriodAll}, now)
	assert.Len(t, all, len(records))
}

func TestFilterCustomRange(t *testing.T) {
	records := []domain.SaleRecord{
		sale("before", at(2024, time.May, 1, 23, 59), 1),
		sale("first-day", at(2024, time.May, 2, 0, 0), 1),
		sale("last-day", at(2024, time.May, 5, 23, 59), 1),
		sale("after", at(2024, time.May, 6, 0, 0), 1),
	}
	start := at(2024, time.May, 2, 15, 0)
	end := at(2024, time.May, 5, 1, 0)

	got := FilterByPeriod(records, domain.Selection{Period: domain.PeriodCustom, CustomStart: &start, CustomEnd: &end}, testNow)
	assert.ElementsMatch(t, []string{"first-day", "last-day"}, ids(got))

	missing := FilterByPeriod(records, domain.Selection{Period: domain.PeriodCustom, CustomStart: &start}, testNow)
	assert.Empty(t, missing)
}

func TestFilterEmptyInput(t *testing.T) {
	for _, period := range []domain.Period{domain.PeriodToday, domain.PeriodWeek, domain.PeriodMonth, domain.PeriodYear, domain.PeriodAll, domain.PeriodCustom} {
		got := FilterByPeriod(nil, domain.Selection{Period: period}, testNow)
		assert.NotNil(t, got, period)
		assert.Empty(t, got, period)
	}
}

func TestAggregateEmpty(t *testing.T) {
	snapshot := Aggregate(nil, domain.PeriodWeek)

	assert.Zero(t, snapshot.TotalSales)
	assert.Zero(t, snapshot.TotalTickets)
	assert.Zero(t, snapshot.AvgTicket)
	assert.Empty(t, snapshot.MostPopularItems)
	assert.Empty(t, snapshot.CategoryData)
	assert.Equal(t, domain.WeekdayAmount{Day: "N/A", Amount: 0}, snapshot.BestSellingDay)
	assert.Equal(t, domain.DayAmount{Date: "N/A", Amount: 0}, snapshot.HighestDailySale)
	assert.Equal(t, domain.DayAmount{Date: "N/A", Amount: 0}, snapshot.LowestDailySale)
}

func TestAggregateThreeConsecutiveDays(t *testing.T) {
	records := []domain.SaleRecord{
		sale("a", at(2024, time.May, 13, 13, 0), 100, item("Taco de pastor", 20, 5)),
		sale("b", at(2024, time.May, 14, 14, 0), 200, item("Taco de suadero", 25, 8)),
		sale("c", at(2024, time.May, 15, 15, 0), 300, item("Consomé grande", 60, 5)),
	}

	filtered := FilterByPeriod(records, domain.Selection{Period: domain.PeriodWeek}, testNow)
	snapshot := AggregateIn(filtered, domain.PeriodWeek, testLoc)

	assert.InDelta(t, 600, snapshot.TotalSales, 1e-9)
	assert.Equal(t, 3, snapshot.TotalTickets)
	assert.InDelta(t, 200, snapshot.AvgTicket, 1e-9)
	assert.Equal(t, domain.DayAmount{Date: "15/05", Amount: 300}, snapshot.HighestDailySale)
	assert.Equal(t, domain.DayAmount{Date: "13/05", Amount: 100}, snapshot.LowestDailySale)
	assert.Equal(t, 18, snapshot.TotalItems)
	assert.InDelta(t, 6, snapshot.AvgItemsPerTicket, 1e-9)
	// Fewer than four days: no growth.
	assert.Zero(t, snapshot.SalesGrowth)
	assert.Zero(t, snapshot.ItemsGrowth)
}

func TestAggregateDailySumsMatchTotals(t *testing.T) {
	records := []domain.SaleRecord{
		sale("a", at(2024, time.May, 13, 9, 0), 45.5, item("Taco", 15.5, 1), item("Agua de horchata", 30, 1)),
		sale("b", at(2024, time.May, 13, 21, 0), 12.25, item("Refresco", 12.25, 1)),
		sale("c", at(2024, time.May, 14, 10, 0), 99.99, item("Kilo de carnitas", 99.99, 1)),
		sale("d", at(2024, time.May, 16, 11, 0), 0.1, item("Salsa extra", 0.05, 2)),
	}

	snapshot := AggregateIn(records, domain.PeriodAll, testLoc)

	sales := 0.0
	items := 0
	tickets := 0
	for _, day := range snapshot.DailyData {
		sales += day.Sales
		items += day.Items
		tickets += day.Tickets
	}
	assert.InDelta(t, snapshot.TotalSales, sales, 1e-9)
	assert.Equal(t, snapshot.TotalItems, items)
	assert.Equal(t, snapshot.TotalTickets, tickets)
}

func TestAggregateIsRepeatable(t *testing.T) {
	records := []domain.SaleRecord{
		sale("a", at(2024, time.May, 13, 9, 0), 80, item("Taco", 20, 4)),
		sale("b", at(2024, time.May, 14, 9, 0), 40, item("Coca", 20, 2)),
		sale("c", at(2024, time.May, 15, 9, 0), 40, item("Coca", 20, 2)),
		sale("d", at(2024, time.May, 16, 9, 0), 90, item("Caldo", 45, 2)),
	}

	first := AggregateIn(records, domain.PeriodWeek, testLoc)
	second := AggregateIn(records, domain.PeriodWeek, testLoc)
	assert.Equal(t, first, second)
}

func TestAggregateTopTenByQuantity(t *testing.T) {
	lines := make([]domain.LineItem, 0, 15)
	total := 0.0
	for i := 1; i <= 15; i++ {
		lines = append(lines, item(fmt.Sprintf("item-%02d", i), 1, 16-i))
		total += float64(16 - i)
	}
	snapshot := AggregateIn([]domain.SaleRecord{sale("a", testNow, total, lines...)}, domain.PeriodAll, testLoc)

	require.Len(t, snapshot.MostPopularItems, 10)
	for i, stat := range snapshot.MostPopularItems {
		assert.Equal(t, fmt.Sprintf("item-%02d", i+1), stat.Name)
		assert.Equal(t, 15-i, stat.Quantity)
	}
	assert.InDelta(t, 15.0/120*100, snapshot.MostPopularItems[0].Percentage, 1e-9)
	require.Len(t, snapshot.TopRevenueItems, 10)
	assert.Equal(t, "item-01", snapshot.TopRevenueItems[0].Name)
}

func TestAggregateMergesTrimmedNamesAndKeepsTieOrder(t *testing.T) {
	records := []domain.SaleRecord{
		sale("a", testNow, 60, item("Taco ", 10, 3), item("Agua", 10, 3)),
		sale("b", testNow, 10, item(" Taco", 10, 1)),
	}
	snapshot := AggregateIn(records, domain.PeriodAll, testLoc)

	require.Len(t, snapshot.MostPopularItems, 2)
	assert.Equal(t, "Taco", snapshot.MostPopularItems[0].Name)
	assert.Equal(t, 4, snapshot.MostPopularItems[0].Quantity)
	assert.Equal(t, "Agua", snapshot.MostPopularItems[1].Name)
}

func TestAggregateBucketsBlankItemNames(t *testing.T) {
	records := []domain.SaleRecord{
		sale("a", testNow, 50, item("Taco", 10, 3), item("  ", 10, 1)),
		sale("b", testNow, 10, item("", 10, 1)),
	}
	snapshot := AggregateIn(records, domain.PeriodAll, testLoc)

	require.Len(t, snapshot.MostPopularItems, 2)
	assert.Equal(t, "Taco", snapshot.MostPopularItems[0].Name)
	assert.Equal(t, unnamedItem, snapshot.MostPopularItems[1].Name)
	assert.Equal(t, 2, snapshot.MostPopularItems[1].Quantity)

	quantity := 0
	percentage := 0.0
	for _, stat := range snapshot.MostPopularItems {
		quantity += stat.Quantity
		percentage += stat.Percentage
	}
	assert.Equal(t, snapshot.TotalItems, quantity)
	assert.InDelta(t, 100, percentage, 1e-9)
}

func TestAggregateCategoryAttribution(t *testing.T) {
	records := []domain.SaleRecord{sale("a", testNow, 50, item("Refresco de Cola", 25, 2))}
	snapshot := AggregateIn(records, domain.PeriodAll, testLoc)

	require.Len(t, snapshot.CategoryData, 1)
	assert.Equal(t, "Bebidas", snapshot.CategoryData[0].Name)
	assert.InDelta(t, 50, snapshot.CategoryData[0].Amount, 1e-9)
	assert.InDelta(t, 100, snapshot.CategoryData[0].Percentage, 1e-9)
	assert.Equal(t, categoryPalette[0], snapshot.CategoryData[0].Color)
	for _, category := range snapshot.CategoryData {
		assert.NotEqual(t, "Otros", category.Name)
	}
}

func TestAggregateCategoriesSortedWithPalette(t *testing.T) {
	records := []domain.SaleRecord{
		sale("a", testNow, 175,
			item("Taco de asada", 20, 2),
			item("Kilo de carnitas", 100, 1),
			item("Salsa", 5, 1),
			item("Café de olla", 25, 1),
		),
	}
	snapshot := AggregateIn(records, domain.PeriodAll, testLoc)

	names := make([]string, 0, len(snapshot.CategoryData))
	for _, category := range snapshot.CategoryData {
		names = append(names, category.Name)
	}
	assert.Equal(t, []string{"Kilos", "Tacos", "Bebidas", "Otros"}, names)
	assert.Equal(t, categoryPalette[3], snapshot.CategoryData[3].Color)
}

func TestClassifyOrderAndCase(t *testing.T) {
	cases := map[string]string{
		"Taco de agua":           "Tacos",
		"Kilo de tacos":          "Tacos",
		"CAFÉ de olla":           "Bebidas",
		"Boing de mango":         "Bebidas",
		"Consomé chico":          "Consomé",
		"consome grande":         "Consomé",
		"Caldo de res":           "Consomé",
		"Medio kilo de carnitas": "Kilos",
		"1 KG barbacoa":          "Kilos",
		"Salsa":                  "Otros",
	}
	for name, want := range cases {
		assert.Equal(t, want, Classify(name), name)
	}
}

func TestAggregateWeekdayIsSummed(t *testing.T) {
	records := []domain.SaleRecord{
		sale("mon-1", at(2024, time.May, 6, 12, 0), 100),
		sale("mon-2", at(2024, time.May, 13, 12, 0), 100),
		sale("wed", at(2024, time.May, 15, 12, 0), 150),
	}
	snapshot := AggregateIn(records, domain.PeriodAll, testLoc)

	assert.Equal(t, domain.WeekdayAmount{Day: "Lunes", Amount: 200}, snapshot.BestSellingDay)
	assert.InDelta(t, 150, snapshot.WeekdaySales[time.Wednesday], 1e-9)
}

func TestAggregateDaysOrderedAcrossYearBoundary(t *testing.T) {
	records := []domain.SaleRecord{
		sale("jan", at(2024, time.January, 1, 12, 0), 10),
		sale("dec", at(2023, time.December, 31, 12, 0), 20),
	}
	snapshot := AggregateIn(records, domain.PeriodAll, testLoc)

	require.Len(t, snapshot.DailyData, 2)
	assert.Equal(t, "31/12", snapshot.DailyData[0].Date)
	assert.Equal(t, "01/01", snapshot.DailyData[1].Date)
}

func TestAggregateHourly(t *testing.T) {
	records := []domain.SaleRecord{
		sale("a", at(2024, time.May, 13, 13, 5), 30),
		sale("b", at(2024, time.May, 13, 9, 45), 10),
		sale("c", at(2024, time.May, 14, 13, 55), 5),
	}
	snapshot := AggregateIn(records, domain.PeriodAll, testLoc)

	assert.Equal(t, []domain.HourlySales{{Hour: "09:00", Sales: 10}, {Hour: "13:00", Sales: 35}}, snapshot.HourlyData)
}

func TestAggregateGrowth(t *testing.T) {
	records := []domain.SaleRecord{
		sale("d1", at(2024, time.May, 1, 12, 0), 100, item("Taco", 100, 1)),
		sale("d2", at(2024, time.May, 2, 12, 0), 100, item("Taco", 100, 1)),
		sale("d3", at(2024, time.May, 3, 12, 0), 150, item("Taco", 75, 2)),
		sale("d4", at(2024, time.May, 4, 12, 0), 150, item("Taco", 75, 2)),
	}

	month := AggregateIn(records, domain.PeriodMonth, testLoc)
	assert.InDelta(t, 50, month.SalesGrowth, 1e-9)
	assert.InDelta(t, 100, month.ItemsGrowth, 1e-9)

	all := AggregateIn(records, domain.PeriodAll, testLoc)
	assert.Zero(t, all.SalesGrowth)
	assert.Zero(t, all.ItemsGrowth)

	custom := AggregateIn(records, domain.PeriodCustom, testLoc)
	assert.Zero(t, custom.SalesGrowth)
}

func TestAggregateGrowthIgnoresTinyBaseline(t *testing.T) {
	records := []domain.SaleRecord{
		sale("d1", at(2024, time.May, 1, 12, 0), 0.5),
		sale("d2", at(2024, time.May, 2, 12, 0), 0.5),
		sale("d3", at(2024, time.May, 3, 12, 0), 50),
		sale("d4", at(2024, time.May, 4, 12, 0), 50),
		sale("d5", at(2024, time.May, 5, 12, 0), 50),
	}
	snapshot := AggregateIn(records, domain.PeriodMonth, testLoc)

	// First half is d1..d3 (ceil(5/2) = 3) so the baseline is 51.
	assert.InDelta(t, (100.0-51.0)/51.0*100, snapshot.SalesGrowth, 1e-9)
	assert.Zero(t, snapshot.ItemsGrowth)

	tiny := AggregateIn(records[:4], domain.PeriodMonth, testLoc)
	assert.Zero(t, tiny.SalesGrowth)
}

func TestBuildSeriesWeekRoundsForDisplay(t *testing.T) {
	records := []domain.SaleRecord{
		sale("mon", at(2024, time.May, 13, 12, 0), 100.4, item("Taco", 100.4, 1)),
		sale("wed", at(2024, time.May, 15, 12, 0), 300.6, item("Taco", 100.2, 3)),
		sale("sun", at(2024, time.May, 19, 12, 0), 10),
	}
	points := BuildSeries(records, domain.PeriodWeek, testLoc)

	require.Len(t, points, 7)
	assert.Equal(t, domain.SeriesPoint{Label: "Lun", Sales: 100, Items: 1}, points[0])
	assert.Equal(t, domain.SeriesPoint{Label: "Mié", Sales: 301, Items: 3}, points[2])
	assert.Equal(t, domain.SeriesPoint{Label: "Dom", Sales: 10, Items: 0}, points[6])
}

func TestBuildSeriesTodayByHour(t *testing.T) {
	records := []domain.SaleRecord{
		sale("late", at(2024, time.May, 15, 20, 10), 10),
		sale("early", at(2024, time.May, 15, 8, 10), 5),
	}
	points := BuildSeries(records, domain.PeriodToday, testLoc)

	require.Len(t, points, 2)
	assert.Equal(t, "08:00", points[0].Label)
	assert.Equal(t, "20:00", points[1].Label)
}
