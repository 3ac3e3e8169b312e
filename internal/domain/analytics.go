package domain

import (
	"fmt"
	"strings"
	"time"
)

type Period string

const (
	PeriodToday  Period = "today"
	PeriodWeek   Period = "week"
	PeriodMonth  Period = "month"
	PeriodYear   Period = "year"
	PeriodAll    Period = "all"
	PeriodCustom Period = "custom"
)

func ParsePeriod(raw string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(raw))); p {
	case PeriodToday, PeriodWeek, PeriodMonth, PeriodYear, PeriodAll, PeriodCustom:
		return p, nil
	case "":
		return PeriodAll, nil
	default:
		return "", fmt.Errorf("unknown period %q", raw)
	}
}

// Selection is a period plus the optional bounds used by PeriodCustom.
type Selection struct {
	Period      Period
	CustomStart *time.Time
	CustomEnd   *time.Time
}

type DailySales struct {
	Key     string  `json:"key"`
	Date    string  `json:"date"`
	Sales   float64 `json:"sales"`
	Items   int     `json:"items"`
	Tickets int     `json:"tickets"`
}

type DayAmount struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

type WeekdayAmount struct {
	Day    string  `json:"day"`
	Amount float64 `json:"amount"`
}

type ItemStat struct {
	Name       string  `json:"name"`
	Quantity   int     `json:"quantity"`
	Revenue    float64 `json:"revenue"`
	Percentage float64 `json:"percentage"`
}

type CategoryStat struct {
	Name       string  `json:"name"`
	Amount     float64 `json:"amount"`
	Percentage float64 `json:"percentage"`
	Color      string  `json:"color"`
}

type HourlySales struct {
	Hour  string  `json:"hour"`
	Sales float64 `json:"sales"`
}

type SeriesPoint struct {
	Label string `json:"label"`
	Sales int64  `json:"sales"`
	Items int64  `json:"items"`
}

type AnalyticsSnapshot struct {
	Period            Period         `json:"period"`
	TotalSales        float64        `json:"total_sales"`
	TotalTickets      int            `json:"total_tickets"`
	TotalItems        int            `json:"total_items"`
	AvgTicket         float64        `json:"avg_ticket"`
	AvgItemsPerTicket float64        `json:"avg_items_per_ticket"`
	DailyData         []DailySales   `json:"daily_data"`
	HighestDailySale  DayAmount      `json:"highest_daily_sale"`
	LowestDailySale   DayAmount      `json:"lowest_daily_sale"`
	WeekdaySales      [7]float64     `json:"weekday_sales"`
	BestSellingDay    WeekdayAmount  `json:"best_selling_day"`
	MostPopularItems  []ItemStat     `json:"most_popular_items"`
	TopRevenueItems   []ItemStat     `json:"top_revenue_items"`
	CategoryData      []CategoryStat `json:"category_data"`
	HourlyData        []HourlySales  `json:"hourly_data"`
	SalesGrowth       float64        `json:"sales_growth"`
	ItemsGrowth       float64        `json:"items_growth"`
}

type AnalyticsResponse struct {
	Snapshot AnalyticsSnapshot `json:"snapshot"`
	Series   []SeriesPoint     `json:"series"`
	Source   string            `json:"source"`
}
