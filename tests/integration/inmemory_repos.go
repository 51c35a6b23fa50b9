package integration

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/batsonnoah58/betledger/internal/core/domain"
	"github.com/batsonnoah58/betledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory Ledger Repo ---

type ledgerEntryRec struct {
	entry domain.LedgerEntry
	seq   int64
}

type inMemoryLedgerRepo struct {
	mu      sync.RWMutex
	wallets map[uuid.UUID]*domain.Wallet
	entries []ledgerEntryRec
	nextSeq int64
}

func newInMemoryLedgerRepo() *inMemoryLedgerRepo {
	return &inMemoryLedgerRepo{wallets: make(map[uuid.UUID]*domain.Wallet)}
}

func (r *inMemoryLedgerRepo) CreateWallet(ctx context.Context, w *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.wallets[w.UserID]; ok {
		return nil // ON CONFLICT DO NOTHING
	}
	cp := *w
	r.wallets[w.UserID] = &cp
	return nil
}

func (r *inMemoryLedgerRepo) GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[userID]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryLedgerRepo) GetWalletForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	return r.GetWallet(ctx, userID)
}

func (r *inMemoryLedgerRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID, balance int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[userID]
	if !ok {
		return fmt.Errorf("wallet not found")
	}
	w.Balance = balance
	w.UpdatedAt = time.Now()
	return nil
}

func (r *inMemoryLedgerRepo) InsertEntry(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ExternalRef != nil {
		for _, rec := range r.entries {
			other := rec.entry
			if other.UserID == e.UserID && other.Kind == e.Kind &&
				other.ExternalRef != nil && *other.ExternalRef == *e.ExternalRef {
				return &pgconn.PgError{Code: "23505", ConstraintName: "ledger_entries_external_ref_uq"}
			}
		}
	}
	r.nextSeq++
	r.entries = append(r.entries, ledgerEntryRec{entry: *e, seq: r.nextSeq})
	return nil
}

func (r *inMemoryLedgerRepo) HasExternalRef(ctx context.Context, tx pgx.Tx, userID uuid.UUID, kind domain.EntryKind, externalRef string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.entries {
		e := rec.entry
		if e.UserID == userID && e.Kind == kind && e.ExternalRef != nil && *e.ExternalRef == externalRef {
			return true, nil
		}
	}
	return false, nil
}

func (r *inMemoryLedgerRepo) History(ctx context.Context, params ports.LedgerHistoryParams) ([]domain.LedgerEntry, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var before int64 = 1<<62 - 1
	if params.Cursor != "" {
		v, err := strconv.ParseInt(params.Cursor, 10, 64)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor %q", params.Cursor)
		}
		before = v
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}

	var matched []ledgerEntryRec
	for _, rec := range r.entries {
		if rec.entry.UserID != params.UserID || rec.seq >= before {
			continue
		}
		if params.Kind != nil && rec.entry.Kind != *params.Kind {
			continue
		}
		matched = append(matched, rec)
	}
	// Newest first
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq > matched[j].seq })

	var out []domain.LedgerEntry
	var next string
	for i, rec := range matched {
		if i == limit {
			next = strconv.FormatInt(matched[i-1].seq, 10)
			break
		}
		out = append(out, rec.entry)
	}
	return out, next, nil
}

func (r *inMemoryLedgerRepo) SumEntries(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum int64
	for _, rec := range r.entries {
		if rec.entry.UserID == userID {
			sum += rec.entry.Amount
		}
	}
	return sum, nil
}

// --- In-Memory Bet Repo ---

type inMemoryBetRepo struct {
	mu     sync.RWMutex
	groups map[uuid.UUID]*domain.BetGroup
	legs   map[uuid.UUID]*domain.Bet
}

func newInMemoryBetRepo() *inMemoryBetRepo {
	return &inMemoryBetRepo{
		groups: make(map[uuid.UUID]*domain.BetGroup),
		legs:   make(map[uuid.UUID]*domain.Bet),
	}
}

func (r *inMemoryBetRepo) CreateGroup(ctx context.Context, tx pgx.Tx, g *domain.BetGroup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *g
	cp.Legs = nil
	r.groups[g.ID] = &cp
	for i := range g.Legs {
		leg := g.Legs[i]
		r.legs[leg.ID] = &leg
	}
	return nil
}

func (r *inMemoryBetRepo) GetGroup(ctx context.Context, id uuid.UUID) (*domain.BetGroup, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.groupWithLegs(id), nil
}

func (r *inMemoryBetRepo) groupWithLegs(id uuid.UUID) *domain.BetGroup {
	g, ok := r.groups[id]
	if !ok {
		return nil
	}
	cp := *g
	for _, leg := range r.legs {
		if leg.GroupID == id {
			cp.Legs = append(cp.Legs, *leg)
		}
	}
	sort.Slice(cp.Legs, func(i, j int) bool { return cp.Legs[i].ID.String() < cp.Legs[j].ID.String() })
	return &cp
}

func (r *inMemoryBetRepo) GetGroupForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.BetGroup, error) {
	return r.GetGroup(ctx, id)
}

func (r *inMemoryBetRepo) GetLeg(ctx context.Context, id uuid.UUID) (*domain.Bet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	leg, ok := r.legs[id]
	if !ok {
		return nil, nil
	}
	cp := *leg
	return &cp, nil
}

func (r *inMemoryBetRepo) SettleLeg(ctx context.Context, tx pgx.Tx, legID uuid.UUID, status domain.BetStatus, settledAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	leg, ok := r.legs[legID]
	if !ok || leg.Status != domain.BetStatusActive {
		return false, nil
	}
	leg.Status = status
	leg.SettledAt = &settledAt
	return true, nil
}

func (r *inMemoryBetRepo) SettleGroup(ctx context.Context, tx pgx.Tx, groupID uuid.UUID, status domain.BetStatus, settledAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[groupID]
	if !ok || g.Status != domain.BetStatusActive {
		return false, nil
	}
	g.Status = status
	g.SettledAt = &settledAt
	return true, nil
}

func (r *inMemoryBetRepo) LegsByGroup(ctx context.Context, tx pgx.Tx, groupID uuid.UUID) ([]domain.Bet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Bet
	for _, leg := range r.legs {
		if leg.GroupID == groupID {
			out = append(out, *leg)
		}
	}
	return out, nil
}

func (r *inMemoryBetRepo) ListByUser(ctx context.Context, params ports.BetListParams) ([]domain.BetGroup, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []domain.BetGroup
	for id, g := range r.groups {
		if g.UserID != params.UserID {
			continue
		}
		if params.Settled != nil {
			settled := g.Status != domain.BetStatusActive
			if settled != *params.Settled {
				continue
			}
		}
		full := r.groupWithLegs(id)
		if params.Query != "" && !legsMatch(full.Legs, params.Query) {
			continue
		}
		matched = append(matched, *full)
	}

	switch params.Sort {
	case ports.BetSortStake:
		sort.Slice(matched, func(i, j int) bool { return matched[i].Stake > matched[j].Stake })
	case ports.BetSortWinnings:
		sort.Slice(matched, func(i, j int) bool { return matched[i].PotentialWinnings > matched[j].PotentialWinnings })
	default:
		sort.Slice(matched, func(i, j int) bool { return matched[i].PlacedAt.After(matched[j].PlacedAt) })
	}

	total := int64(len(matched))
	start := (params.Page - 1) * params.PageSize
	if start >= len(matched) {
		return []domain.BetGroup{}, total, nil
	}
	end := start + params.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func legsMatch(legs []domain.Bet, query string) bool {
	q := strings.ToLower(query)
	for _, leg := range legs {
		if strings.Contains(strings.ToLower(leg.Label), q) {
			return true
		}
	}
	return false
}

func (r *inMemoryBetRepo) Stats(ctx context.Context) (*ports.BetStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := &ports.BetStats{}
	for _, g := range r.groups {
		stats.TotalGroups++
		stats.TotalStaked += g.Stake
		switch g.Status {
		case domain.BetStatusActive:
			stats.ActiveGroups++
		case domain.BetStatusWon:
			stats.WonGroups++
			stats.TotalPaidOut += g.PotentialWinnings
		case domain.BetStatusLost:
			stats.LostGroups++
		}
	}
	return stats, nil
}

// --- In-Memory Payment Repo ---

type inMemoryPaymentRepo struct {
	mu       sync.RWMutex
	payments map[uuid.UUID]*domain.PendingPayment
}

func newInMemoryPaymentRepo() *inMemoryPaymentRepo {
	return &inMemoryPaymentRepo{payments: make(map[uuid.UUID]*domain.PendingPayment)}
}

func (r *inMemoryPaymentRepo) Create(ctx context.Context, p *domain.PendingPayment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.payments {
		if other.GatewayRef == p.GatewayRef {
			return fmt.Errorf("gateway_ref already exists")
		}
	}
	cp := *p
	r.payments[p.ID] = &cp
	return nil
}

func (r *inMemoryPaymentRepo) GetByGatewayRef(ctx context.Context, ref string) (*domain.PendingPayment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.payments {
		if p.GatewayRef == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryPaymentRepo) GetByGatewayRefForUpdate(ctx context.Context, tx pgx.Tx, ref string) (*domain.PendingPayment, error) {
	return r.GetByGatewayRef(ctx, ref)
}

func (r *inMemoryPaymentRepo) Resolve(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.PaymentStatus, resolvedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok || p.Status != domain.PaymentStatusPending {
		return false, nil
	}
	p.Status = status
	p.ResolvedAt = &resolvedAt
	return true, nil
}

func (r *inMemoryPaymentRepo) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	now := time.Now()
	for _, p := range r.payments {
		if p.Status == domain.PaymentStatusPending && p.CreatedAt.Before(cutoff) {
			p.Status = domain.PaymentStatusFailed
			p.ResolvedAt = &now
			n++
		}
	}
	return n, nil
}

func (r *inMemoryPaymentRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.PendingPayment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 {
		limit = 20
	}
	var out []domain.PendingPayment
	for _, p := range r.payments {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- In-Memory Catalog Repo ---

type inMemoryCatalogRepo struct {
	mu      sync.RWMutex
	games   map[uuid.UUID]*domain.Game
	options map[uuid.UUID]*domain.MarketOption
}

func newInMemoryCatalogRepo() *inMemoryCatalogRepo {
	return &inMemoryCatalogRepo{
		games:   make(map[uuid.UUID]*domain.Game),
		options: make(map[uuid.UUID]*domain.MarketOption),
	}
}

func (r *inMemoryCatalogRepo) addGame(g domain.Game) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games[g.ID] = &g
}

func (r *inMemoryCatalogRepo) addOption(o domain.MarketOption) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.options[o.ID] = &o
}

func (r *inMemoryCatalogRepo) GetGame(ctx context.Context, id uuid.UUID) (*domain.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.games[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (r *inMemoryCatalogRepo) GetMarketOption(ctx context.Context, id uuid.UUID) (*domain.MarketOption, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.options[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

// --- In-Memory Transactor ---

// inMemoryTransactor serializes transactions with one mutex, standing in
// for the wallet row lock the real Postgres transactor relies on.
type inMemoryTransactor struct {
	mu sync.Mutex
}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &serialTx{release: t.mu.Unlock}, nil
}

// serialTx is a no-op pgx.Tx that releases the transactor lock exactly
// once, on Commit or Rollback.
type serialTx struct {
	once    sync.Once
	release func()
}

func (t *serialTx) done() {
	t.once.Do(t.release)
}

func (t *serialTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *serialTx) Commit(ctx context.Context) error          { t.done(); return nil }
func (t *serialTx) Rollback(ctx context.Context) error        { t.done(); return nil }
func (t *serialTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *serialTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *serialTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *serialTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *serialTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *serialTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *serialTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *serialTx) Conn() *pgx.Conn { return nil }
