package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"mesapos/backend/internal/analytics"
	"mesapos/backend/internal/connectivity"
	"mesapos/backend/internal/domain"
	"mesapos/backend/internal/ledger"
	"mesapos/backend/internal/recommendation"
	"mesapos/backend/internal/store"
	"mesapos/backend/internal/syncer"
	"mesapos/backend/internal/xid"
)

var (
	ErrInvalidSale    = errors.New("invalid sale")
	ErrInvalidTable   = errors.New("invalid table")
	ErrOffline        = errors.New("remote repository is offline")
	ErrSyncIncomplete = errors.New("some sales could not be synced")
	ErrForbidden      = errors.New("manager role required")

	ErrInvalidSuggestion = errors.New("invalid suggestion request")
)

const (
	localDateLayout = "02/01/2006"
	maxTableName    = 64

	suggestionWindow = 90 * 24 * time.Hour
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	Location      *time.Location
	Logger        logrus.FieldLogger
	Now           func() time.Time
	RemoteTimeout time.Duration
	Suggester     *recommendation.Engine
}

type Service struct {
	ledger        *ledger.Ledger
	remote        store.Remote
	probe         connectivity.Probe
	engine        *syncer.Engine
	validate      *validator.Validate
	loc           *time.Location
	log           logrus.FieldLogger
	now           func() time.Time
	remoteTimeout time.Duration
	suggester     *recommendation.Engine
}

func New(l *ledger.Ledger, remote store.Remote, probe connectivity.Probe, engine *syncer.Engine, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = syncer.DefaultRemoteTimeout
	}
	if opts.Suggester == nil {
		opts.Suggester = recommendation.NewEngine(nil, 0)
	}

	return &Service{
		ledger:        l,
		remote:        remote,
		probe:         probe,
		engine:        engine,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		loc:           opts.Location,
		log:           opts.Logger.WithField("component", "service"),
		now:           opts.Now,
		remoteTimeout: opts.RemoteTimeout,
		suggester:     opts.Suggester,
	}
}

func (s *Service) Location() *time.Location {
	return s.loc
}

// RecordSale stores the sale locally first, then tries one push when the
// remote is reachable. A failed or skipped push queues the sale for the
// sync engine. Only local persistence errors are returned; once this
// returns nil the sale is on disk. When the push lands but the synced flag
// cannot be saved, the sale is queued anyway and the next pass settles it
// through the duplicate-ID path.
func (s *Service) RecordSale(ctx context.Context, req domain.RecordSaleRequest) (domain.SaleRecord, error) {
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return domain.SaleRecord{}, fmt.Errorf("%w: %v", ErrInvalidSale, err)
	}

	tableName, err := s.resolveTableName(ctx, req.TableNumber, req.TableName)
	if err != nil {
		return domain.SaleRecord{}, err
	}

	items := req.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	for i := range items {
		items[i].Name = strings.TrimSpace(items[i].Name)
	}

	now := s.now()
	record := domain.SaleRecord{
		ID:          xid.New("sale"),
		TableNumber: req.TableNumber,
		TableName:   tableName,
		Items:       items,
		Total:       req.Total,
		Timestamp:   now.UnixMilli(),
		Date:        now.In(s.loc).Format(localDateLayout),
	}

	if err := s.ledger.AppendRecord(ctx, record); err != nil {
		return domain.SaleRecord{}, fmt.Errorf("persist sale: %w", err)
	}

	entry := s.log.WithFields(logrus.Fields{"sale_id": record.ID, "table": record.TableNumber})

	if s.probe.IsOnline(ctx) {
		if pushErr := s.engine.Push(ctx, record); pushErr != nil {
			entry.WithError(pushErr).Warn("immediate sync failed, queued for retry")
		} else if markErr := s.ledger.MarkSynced(ctx, record.ID); markErr != nil {
			entry.WithError(markErr).Warn("sale pushed but not marked synced, queued for reconciliation")
		} else {
			record.Synced = true
			entry.Debug("sale recorded and synced")
			return record, nil
		}
	} else {
		entry.Info("offline, sale queued for sync")
	}

	if err := s.ledger.Enqueue(ctx, record.ID); err != nil {
		return domain.SaleRecord{}, fmt.Errorf("queue sale: %w", err)
	}
	return record, nil
}

// ListSales returns the sales in the selected window, newest first. When the
// remote is reachable its rows are used, plus local sales it has not seen
// yet; otherwise only the local ledger is read.
func (s *Service) ListSales(ctx context.Context, sel domain.Selection) (domain.SaleListResponse, error) {
	records, source, err := s.loadRecords(ctx)
	if err != nil {
		return domain.SaleListResponse{}, err
	}

	filtered := analytics.FilterByPeriod(records, sel, s.now().In(s.loc))
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp > filtered[j].Timestamp
	})

	return domain.SaleListResponse{
		Period: string(sel.Period),
		Sales:  filtered,
		Source: source,
	}, nil
}

func (s *Service) Analytics(ctx context.Context, sel domain.Selection) (domain.AnalyticsResponse, error) {
	records, source, err := s.loadRecords(ctx)
	if err != nil {
		return domain.AnalyticsResponse{}, err
	}

	filtered := analytics.FilterByPeriod(records, sel, s.now().In(s.loc))
	return domain.AnalyticsResponse{
		Snapshot: analytics.AggregateIn(filtered, sel.Period, s.loc),
		Series:   analytics.BuildSeries(filtered, sel.Period, s.loc),
		Source:   source,
	}, nil
}

// Suggest offers one more item for an open ticket based on the last 90 days
// of sales.
func (s *Service) Suggest(ctx context.Context, req domain.SuggestionRequest) (domain.SuggestionResponse, error) {
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return domain.SuggestionResponse{}, fmt.Errorf("%w: %v", ErrInvalidSuggestion, err)
	}

	records, _, err := s.loadRecords(ctx)
	if err != nil {
		return domain.SuggestionResponse{}, err
	}

	now := s.now().In(s.loc)
	cutoff := now.Add(-suggestionWindow).UnixMilli()
	recent := records[:0:0]
	for _, record := range records {
		if record.Timestamp >= cutoff {
			recent = append(recent, record)
		}
	}
	return s.suggester.Suggest(ctx, req, recent, now), nil
}

// ManualSync is the user-initiated sync. Unlike background passes it reports
// problems: ErrOffline when the remote cannot be reached and
// ErrSyncIncomplete when any push failed.
func (s *Service) ManualSync(ctx context.Context) (domain.SyncReport, error) {
	report, err := s.engine.ProcessPendingSyncs(ctx)
	if err != nil {
		return report, err
	}
	if !report.Online {
		return report, ErrOffline
	}
	if report.Failed > 0 {
		return report, fmt.Errorf("%w: %d failed, %d abandoned", ErrSyncIncomplete, report.Failed, report.Abandoned)
	}
	return report, nil
}

func (s *Service) SyncStatus(ctx context.Context) (domain.SyncStatus, error) {
	state, err := s.ledger.Snapshot(ctx)
	if err != nil {
		return domain.SyncStatus{}, err
	}

	queued := make(map[string]struct{}, len(state.Pending))
	for _, id := range state.Pending {
		queued[id] = struct{}{}
	}
	status := domain.SyncStatus{
		Online:      s.probe.IsOnline(ctx),
		Pending:     len(state.Pending),
		Total:       len(state.Records),
		MaxAttempts: s.engine.MaxAttempts(),
	}
	for _, record := range state.Records {
		if _, ok := queued[record.ID]; !ok && !record.Synced {
			status.Abandoned++
		}
	}
	return status, nil
}

// RequeueAbandoned puts every unsynced sale that is no longer queued back on
// the queue with a fresh attempt budget.
func (s *Service) RequeueAbandoned(ctx context.Context) (int, error) {
	state, err := s.ledger.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	queued := make(map[string]struct{}, len(state.Pending))
	for _, id := range state.Pending {
		queued[id] = struct{}{}
	}

	requeued := 0
	for _, record := range state.Records {
		if record.Synced {
			continue
		}
		if _, ok := queued[record.ID]; ok {
			continue
		}
		if err := s.ledger.Enqueue(ctx, record.ID); err != nil {
			return requeued, err
		}
		requeued++
	}
	if requeued > 0 {
		s.log.WithField("count", requeued).Info("abandoned sales requeued")
	}
	return requeued, nil
}

func (s *Service) TableNames(ctx context.Context) ([]domain.TableName, error) {
	return s.ledger.TableNames(ctx)
}

func (s *Service) SetTableName(ctx context.Context, number int, name string) (domain.TableName, error) {
	name = strings.TrimSpace(name)
	if number < 1 || len([]rune(name)) > maxTableName {
		return domain.TableName{}, ErrInvalidTable
	}
	if err := s.ledger.SetTableName(ctx, number, name); err != nil {
		return domain.TableName{}, err
	}
	if name == "" {
		name = defaultTableName(number)
	}
	return domain.TableName{Number: number, Name: name}, nil
}

// ClearAll wipes the remote sales table and the local ledger. It needs a
// manager and a reachable remote so both sides are cleared together.
func (s *Service) ClearAll(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleManager {
		return ErrForbidden
	}
	if !s.probe.IsOnline(ctx) {
		return ErrOffline
	}

	remoteCtx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()
	if err := s.remote.DeleteAll(remoteCtx); err != nil {
		return fmt.Errorf("clear remote sales: %w", err)
	}
	if err := s.ledger.Clear(ctx); err != nil {
		return fmt.Errorf("clear local sales: %w", err)
	}

	s.log.WithField("actor", actor.Username).Warn("all sales cleared")
	return nil
}

func (s *Service) resolveTableName(ctx context.Context, number int, override string) (string, error) {
	if name := strings.TrimSpace(override); name != "" {
		return name, nil
	}
	name, ok, err := s.ledger.TableName(ctx, number)
	if err != nil {
		return "", fmt.Errorf("load table names: %w", err)
	}
	if ok && name != "" {
		return name, nil
	}
	return defaultTableName(number), nil
}

func (s *Service) loadRecords(ctx context.Context) ([]domain.SaleRecord, string, error) {
	local, err := s.ledger.Records(ctx)
	if err != nil {
		return nil, "", err
	}
	if !s.probe.IsOnline(ctx) {
		return local, domain.SourceLocal, nil
	}

	remoteCtx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()
	remote, err := s.remote.SelectAll(remoteCtx)
	if err != nil {
		s.log.WithError(err).Warn("remote read failed, using local sales")
		return local, domain.SourceLocal, nil
	}

	seen := make(map[string]struct{}, len(remote))
	for _, record := range remote {
		seen[record.ID] = struct{}{}
	}
	merged := remote
	for _, record := range local {
		if _, ok := seen[record.ID]; !ok && !record.Synced {
			merged = append(merged, record)
		}
	}
	return merged, domain.SourceRemote, nil
}

func defaultTableName(number int) string {
	return fmt.Sprintf("Mesa %d", number)
}
