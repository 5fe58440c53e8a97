package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmattos/bilheteria/internal/domain/classify"
	"github.com/dmattos/bilheteria/internal/domain/models"
	"github.com/dmattos/bilheteria/internal/lib/money"
	"github.com/dmattos/bilheteria/internal/storage"
)

// BucketCounts — количество билетов по категориям оплаты.
type BucketCounts struct {
	Cash int `json:"cash"`
	Pix  int `json:"pix"`
	Card int `json:"card"`
}

// FreeCounts — количество бесплатных билетов по мотивам.
type FreeCounts struct {
	DayFree       int `json:"day_free"`
	Accessibility int `json:"accessibility_free"`
	Other         int `json:"other_free"`
}

// BucketRevenue — выручка в центах по категориям оплаты.
type BucketRevenue struct {
	CashCents int64 `json:"cash_cents"`
	PixCents  int64 `json:"pix_cents"`
	CardCents int64 `json:"card_cents"`
}

// DailyLedgerRow — агрегат одного календарного дня. Деньги только в центах:
// никакого деления на 100 до границы отображения.
type DailyLedgerRow struct {
	Day             time.Time     `json:"day"`
	Full            BucketCounts  `json:"full"`
	Half            BucketCounts  `json:"half"`
	Free            FreeCounts    `json:"free"`
	Revenue         BucketRevenue `json:"revenue"`
	PayingAttendees int           `json:"paying_attendees"`
	TotalAttendees  int           `json:"total_attendees"`
}

// LedgerRow — строка бордеро для внешнего экспортёра. Числовые колонки
// дублируются готовыми к печати десятичными строками.
type LedgerRow struct {
	Date string `json:"date"` // YYYY-MM-DD, либо TOTAL для итоговой строки

	FullCash int `json:"full_cash"`
	FullPix  int `json:"full_pix"`
	FullCard int `json:"full_card"`
	HalfCash int `json:"half_cash"`
	HalfPix  int `json:"half_pix"`
	HalfCard int `json:"half_card"`

	FreeDay           int `json:"free_day"`
	FreeAccessibility int `json:"free_accessibility"`
	FreeOther         int `json:"free_other"`

	PayingAttendees int `json:"paying_attendees"`
	TotalAttendees  int `json:"total_attendees"`

	RevenueCashCents  int64 `json:"revenue_cash_cents"`
	RevenuePixCents   int64 `json:"revenue_pix_cents"`
	RevenueCardCents  int64 `json:"revenue_card_cents"`
	RevenueTotalCents int64 `json:"revenue_total_cents"`

	RevenueCash  string `json:"revenue_cash"`
	RevenuePix   string `json:"revenue_pix"`
	RevenueCard  string `json:"revenue_card"`
	RevenueTotal string `json:"revenue_total"`
}

// LedgerReport — готовое бордеро: по строке на каждый календарный день
// диапазона (дни без продаж — нулевые) плюс итоговая строка.
// Тариф в шапке — отображаемый параметр, выручка по нему не пересчитывается.
type LedgerReport struct {
	From      string      `json:"from"`
	To        string      `json:"to"`
	FullPrice string      `json:"full_price"`
	HalfPrice string      `json:"half_price"`
	Rows      []LedgerRow `json:"rows"`
	Total     LedgerRow   `json:"total"`
}

// StateRow — сводка продаж по штату посетителя (UF). Заказы без штата
// собираются в строку с пустым значением.
type StateRow struct {
	State           string `json:"state"`
	FullQty         int    `json:"full_qty"`
	HalfQty         int    `json:"half_qty"`
	FreeQty         int    `json:"free_qty"`
	PayingAttendees int    `json:"paying_attendees"`
	TotalAttendees  int    `json:"total_attendees"`
	RevenueCents    int64  `json:"revenue_cents"`
	Revenue         string `json:"revenue"`
}

// ReportService — конвейер агрегации и сборщик бордеро. Все отчётные
// представления ходят через него, а не через собственный SQL.
type ReportService interface {
	AggregateDaily(ctx context.Context, from, to time.Time) ([]DailyLedgerRow, error)
	AggregateByState(ctx context.Context, from, to time.Time) ([]StateRow, error)
	BuildLedger(ctx context.Context, from, to time.Time, prices TicketPrices) (*LedgerReport, error)
}

type reportService struct {
	log        *slog.Logger
	ledgerRepo storage.LedgerStorage
}

func NewReportService(log *slog.Logger, ledgerRepo storage.LedgerStorage) ReportService {
	return &reportService{log: log, ledgerRepo: ledgerRepo}
}

// AggregateDaily агрегирует позиции по дням, классифицируя сырые строки оплаты
// и мотивов по категориям. Детерминирован: повторный запуск над теми же данными
// даёт идентичный результат. Ошибки хранилища пробрасываются как есть —
// частичный или нулевой отчёт вместо ошибки недопустим.
func (s *reportService) AggregateDaily(ctx context.Context, from, to time.Time) ([]DailyLedgerRow, error) {
	const op = "service.ReportService.AggregateDaily"
	logger := s.log.With(slog.String("op", op))

	if to.Before(from) {
		return nil, fmt.Errorf("%s: %w: range end before start", op, ErrValidation)
	}

	groups, err := s.ledgerRepo.SelectDailyGroups(ctx, from, to)
	if err != nil {
		logger.Error("failed to select daily groups", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Группы приходят отсортированными по дню: складываем последовательно
	var rows []DailyLedgerRow
	var cur *DailyLedgerRow
	for _, g := range groups {
		if cur == nil || !sameDay(cur.Day, g.Day) {
			rows = append(rows, DailyLedgerRow{Day: g.Day})
			cur = &rows[len(rows)-1]
		}
		foldGroup(cur, g)
	}

	for i := range rows {
		rows[i].PayingAttendees = countSum(rows[i].Full) + countSum(rows[i].Half)
		rows[i].TotalAttendees = rows[i].PayingAttendees +
			rows[i].Free.DayFree + rows[i].Free.Accessibility + rows[i].Free.Other
	}
	return rows, nil
}

// AggregateByState строит географическую сводку продаж: по строке на штат
// с разбивкой по типам билетов. Группы приходят отсортированными по штату,
// поэтому складываем последовательно.
func (s *reportService) AggregateByState(ctx context.Context, from, to time.Time) ([]StateRow, error) {
	const op = "service.ReportService.AggregateByState"
	logger := s.log.With(slog.String("op", op))

	if to.Before(from) {
		return nil, fmt.Errorf("%s: %w: range end before start", op, ErrValidation)
	}

	groups, err := s.ledgerRepo.SelectStateGroups(ctx, from, to)
	if err != nil {
		logger.Error("failed to select state groups", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var rows []StateRow
	var cur *StateRow
	for _, g := range groups {
		if cur == nil || cur.State != g.State {
			rows = append(rows, StateRow{State: g.State})
			cur = &rows[len(rows)-1]
		}
		switch g.TicketType {
		case models.TicketFree:
			cur.FreeQty += g.Qty
		case models.TicketHalf:
			cur.HalfQty += g.Qty
			cur.RevenueCents += g.RevenueCents
		default:
			cur.FullQty += g.Qty
			cur.RevenueCents += g.RevenueCents
		}
	}

	for i := range rows {
		rows[i].PayingAttendees = rows[i].FullQty + rows[i].HalfQty
		rows[i].TotalAttendees = rows[i].PayingAttendees + rows[i].FreeQty
		rows[i].Revenue = money.FormatCents(rows[i].RevenueCents)
	}
	return rows, nil
}

// foldGroup раскладывает одну группу в счётчики дня. Бесплатные билеты
// классифицируются по мотиву и не несут смысла формы оплаты.
func foldGroup(row *DailyLedgerRow, g storage.ItemGroup) {
	if g.TicketType == models.TicketFree {
		switch classify.ForFreeReason(g.DiscountReason) {
		case classify.FreeDay:
			row.Free.DayFree += g.Qty
		case classify.FreeAccessibility:
			row.Free.Accessibility += g.Qty
		default:
			row.Free.Other += g.Qty
		}
		return
	}

	bucket := classify.ForPayment(g.PaymentMethod)
	counts := &row.Full
	if g.TicketType == models.TicketHalf {
		counts = &row.Half
	}
	switch bucket {
	case classify.PaymentCash:
		counts.Cash += g.Qty
		row.Revenue.CashCents += g.RevenueCents
	case classify.PaymentPix:
		counts.Pix += g.Qty
		row.Revenue.PixCents += g.RevenueCents
	default:
		counts.Card += g.Qty
		row.Revenue.CardCents += g.RevenueCents
	}
}

func countSum(c BucketCounts) int {
	return c.Cash + c.Pix + c.Card
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// BuildLedger собирает бордеро: каждая дата диапазона получает строку
// (в том числе дни без продаж), последней идёт синтетическая итоговая строка.
func (s *reportService) BuildLedger(ctx context.Context, from, to time.Time, prices TicketPrices) (*LedgerReport, error) {
	const op = "service.ReportService.BuildLedger"

	daily, err := s.AggregateDaily(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	byDay := make(map[string]DailyLedgerRow, len(daily))
	for _, d := range daily {
		byDay[d.Day.Format("2006-01-02")] = d
	}

	report := &LedgerReport{
		From:      from.Format("2006-01-02"),
		To:        to.Format("2006-01-02"),
		FullPrice: money.FormatCents(prices.FullCents),
		HalfPrice: money.FormatCents(prices.HalfCents),
	}

	var total LedgerRow
	for day := truncateDay(from); !day.After(truncateDay(to)); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		row := ledgerRowFrom(key, byDay[key]) // нулевая строка, если дня нет в данных
		addRow(&total, row)
		report.Rows = append(report.Rows, row)
	}

	total.Date = "TOTAL"
	formatRevenue(&total)
	report.Total = total
	return report, nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func ledgerRowFrom(date string, d DailyLedgerRow) LedgerRow {
	row := LedgerRow{
		Date:              date,
		FullCash:          d.Full.Cash,
		FullPix:           d.Full.Pix,
		FullCard:          d.Full.Card,
		HalfCash:          d.Half.Cash,
		HalfPix:           d.Half.Pix,
		HalfCard:          d.Half.Card,
		FreeDay:           d.Free.DayFree,
		FreeAccessibility: d.Free.Accessibility,
		FreeOther:         d.Free.Other,
		PayingAttendees:   d.PayingAttendees,
		TotalAttendees:    d.TotalAttendees,
		RevenueCashCents:  d.Revenue.CashCents,
		RevenuePixCents:   d.Revenue.PixCents,
		RevenueCardCents:  d.Revenue.CardCents,
		RevenueTotalCents: d.Revenue.CashCents + d.Revenue.PixCents + d.Revenue.CardCents,
	}
	formatRevenue(&row)
	return row
}

func addRow(total *LedgerRow, row LedgerRow) {
	total.FullCash += row.FullCash
	total.FullPix += row.FullPix
	total.FullCard += row.FullCard
	total.HalfCash += row.HalfCash
	total.HalfPix += row.HalfPix
	total.HalfCard += row.HalfCard
	total.FreeDay += row.FreeDay
	total.FreeAccessibility += row.FreeAccessibility
	total.FreeOther += row.FreeOther
	total.PayingAttendees += row.PayingAttendees
	total.TotalAttendees += row.TotalAttendees
	total.RevenueCashCents += row.RevenueCashCents
	total.RevenuePixCents += row.RevenuePixCents
	total.RevenueCardCents += row.RevenueCardCents
	total.RevenueTotalCents += row.RevenueTotalCents
}

func formatRevenue(row *LedgerRow) {
	row.RevenueCash = money.FormatCents(row.RevenueCashCents)
	row.RevenuePix = money.FormatCents(row.RevenuePixCents)
	row.RevenueCard = money.FormatCents(row.RevenueCardCents)
	row.RevenueTotal = money.FormatCents(row.RevenueTotalCents)
}
