package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	domainErrors "github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/errors"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/model"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/repository"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/worker"
)

var errStoreDown = errors.New("connection refused")

// fakeLogRepo keeps webhook logs in memory with the same transition rules
// as the gorm repository.
type fakeLogRepo struct {
	mu         sync.Mutex
	logs       map[uuid.UUID]*model.WebhookLog
	failCreate error
	now        func() time.Time
}

func newFakeLogRepo() *fakeLogRepo {
	return &fakeLogRepo{logs: make(map[uuid.UUID]*model.WebhookLog), now: time.Now}
}

func (r *fakeLogRepo) Create(_ context.Context, log *model.WebhookLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate != nil {
		return r.failCreate
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = r.now()
	}
	if log.UpdatedAt.IsZero() {
		log.UpdatedAt = log.CreatedAt
	}
	cp := *log
	r.logs[log.ID] = &cp
	return nil
}

func (r *fakeLogRepo) Get(_ context.Context, id uuid.UUID) (*model.WebhookLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	log, ok := r.logs[id]
	if !ok {
		return nil, nil
	}
	cp := *log
	return &cp, nil
}

func (r *fakeLogRepo) Advance(_ context.Context, id uuid.UUID, to model.WebhookLogStatus, update repository.LogUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	log, ok := r.logs[id]
	if !ok || !log.Status.CanAdvanceTo(to) {
		return domainErrors.ErrStatusRegression
	}
	log.Status = to
	log.UpdatedAt = r.now()
	if update.EventType != nil {
		log.EventType = *update.EventType
	}
	if update.SchemaVersion != nil {
		log.SchemaVersion = *update.SchemaVersion
	}
	if update.ExtractedEmail != nil {
		log.ExtractedEmail = update.ExtractedEmail
	}
	if update.TransactionID != nil {
		log.TransactionID = update.TransactionID
	}
	if update.ErrorMessage != nil {
		log.ErrorMessage = update.ErrorMessage
	}
	return nil
}

func (r *fakeLogRepo) Reclaim(_ context.Context, id uuid.UUID, staleBefore time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	log, ok := r.logs[id]
	if !ok || log.Status != model.WebhookLogProcessing || !log.UpdatedAt.Before(staleBefore) {
		return false, nil
	}
	log.UpdatedAt = r.now()
	return true, nil
}

func (r *fakeLogRepo) ListStale(_ context.Context, before time.Time, limit int) ([]*model.WebhookLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.WebhookLog
	for _, log := range r.logs {
		if log.Status.IsTerminal() || !log.UpdatedAt.Before(before) {
			continue
		}
		cp := *log
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeLogRepo) List(_ context.Context, filter repository.LogFilter) ([]*model.WebhookLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.WebhookLog
	for _, log := range r.logs {
		if filter.Status != "" && log.Status != filter.Status {
			continue
		}
		if filter.Source != "" && log.Source != filter.Source {
			continue
		}
		cp := *log
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeLogRepo) SearchPayload(_ context.Context, term string, limit int) ([]*model.WebhookLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	needle := strings.ToLower(term)
	var out []*model.WebhookLog
	for _, log := range r.logs {
		email := ""
		if log.ExtractedEmail != nil {
			email = *log.ExtractedEmail
		}
		if strings.Contains(strings.ToLower(log.RawPayload), needle) || strings.Contains(strings.ToLower(email), needle) {
			cp := *log
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// all returns every record, oldest first.
func (r *fakeLogRepo) all() []*model.WebhookLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.WebhookLog, 0, len(r.logs))
	for _, log := range r.logs {
		cp := *log
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// put stores log as is, for tests that need a specific state.
func (r *fakeLogRepo) put(log *model.WebhookLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *log
	r.logs[log.ID] = &cp
}

// fakeSubscriptionRepo mirrors the upsert and ledger rules of the gorm
// repository. Every Apply is all or nothing.
type fakeSubscriptionRepo struct {
	mu        sync.Mutex
	users     map[string]*model.UserAccount
	records   map[string]*model.SubscriptionRecord
	failApply error
}

func newFakeSubscriptionRepo() *fakeSubscriptionRepo {
	return &fakeSubscriptionRepo{
		users:   make(map[string]*model.UserAccount),
		records: make(map[string]*model.SubscriptionRecord),
	}
}

func (r *fakeSubscriptionRepo) ExistsByTransactionID(_ context.Context, transactionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.records[transactionID]
	return ok, nil
}

func (r *fakeSubscriptionRepo) ApplyGrant(_ context.Context, grant repository.AccessGrant, record *model.SubscriptionRecord) (*model.UserAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failApply != nil {
		return nil, r.failApply
	}
	if _, dup := r.records[record.TransactionID]; dup {
		return nil, fmt.Errorf("%w: %s", domainErrors.ErrDuplicateTransaction, record.TransactionID)
	}

	email := model.NormalizeEmail(grant.Email)
	start := grant.StartDate
	user, ok := r.users[email]
	if !ok {
		user = &model.UserAccount{
			ID:                         uuid.New(),
			Email:                      email,
			PlanType:                   grant.PlanType,
			SubscriptionExpirationDate: grant.ExpirationDate,
			LifetimeAccess:             grant.Lifetime,
			CreatedAt:                  time.Now(),
		}
		r.users[email] = user
	} else {
		if !user.LifetimeAccess {
			user.PlanType = grant.PlanType
		}
		user.LifetimeAccess = user.LifetimeAccess || grant.Lifetime
		switch {
		case user.LifetimeAccess:
			user.SubscriptionExpirationDate = nil
		case user.SubscriptionExpirationDate == nil || (grant.ExpirationDate != nil && grant.ExpirationDate.After(*user.SubscriptionExpirationDate)):
			user.SubscriptionExpirationDate = grant.ExpirationDate
		}
	}
	if user.LifetimeAccess {
		user.SubscriptionExpirationDate = nil
	}
	user.AccessLevel = grant.AccessLevel
	user.SubscriptionSource = grant.Source
	user.SubscriptionStartDate = &start
	user.UpdatedAt = time.Now()

	r.append(user.ID, record)
	cp := *user
	return &cp, nil
}

func (r *fakeSubscriptionRepo) ApplyRevocation(_ context.Context, revocation repository.AccessRevocation, record *model.SubscriptionRecord) (*model.UserAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failApply != nil {
		return nil, r.failApply
	}
	email := model.NormalizeEmail(revocation.Email)
	user, ok := r.users[email]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domainErrors.ErrUserNotFound, email)
	}
	if _, dup := r.records[record.TransactionID]; dup {
		return nil, fmt.Errorf("%w: %s", domainErrors.ErrDuplicateTransaction, record.TransactionID)
	}

	original, found := r.records[revocation.OriginalTransactionID]
	if found {
		record.PlanType = original.PlanType
	}
	keepLifetime := user.LifetimeAccess && !(found && original.Status == model.SubscriptionLifetime)
	if revocation.Downgrade && !keepLifetime {
		effective := revocation.EffectiveAt
		user.AccessLevel = model.AccessLevelFree
		user.LifetimeAccess = false
		user.SubscriptionExpirationDate = &effective
		user.UpdatedAt = time.Now()
	}

	r.append(user.ID, record)
	cp := *user
	return &cp, nil
}

func (r *fakeSubscriptionRepo) append(userID uuid.UUID, record *model.SubscriptionRecord) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.UserID = userID
	record.CreatedAt = time.Now()
	cp := *record
	r.records[record.TransactionID] = &cp
}

func (r *fakeSubscriptionRepo) GetUserByEmail(_ context.Context, email string) (*model.UserAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[model.NormalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	cp := *user
	return &cp, nil
}

func (r *fakeSubscriptionRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*model.SubscriptionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.SubscriptionRecord
	for _, rec := range r.records {
		if rec.UserID == userID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransactionID < out[j].TransactionID })
	return out, nil
}

func (r *fakeSubscriptionRepo) FindByPayloadEmail(_ context.Context, email string, _ [][]string, limit int) ([]*model.SubscriptionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.SubscriptionRecord
	for _, rec := range r.records {
		if strings.Contains(strings.ToLower(string(rec.RawWebhookPayload)), email) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeSubscriptionRepo) recordCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func (r *fakeSubscriptionRepo) record(txn string) *model.SubscriptionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[txn]
	if !ok {
		return nil
	}
	cp := *rec
	return &cp
}

// inlineQueue runs every job as soon as it is queued.
type inlineQueue struct {
	mu   sync.Mutex
	runs int
}

func (q *inlineQueue) TryEnqueue(job worker.Job) bool {
	q.mu.Lock()
	q.runs++
	q.mu.Unlock()
	_ = job.Process(context.Background())
	return true
}

// boundedQueue holds up to capacity jobs without running them.
type boundedQueue struct {
	capacity int
	jobs     []worker.Job
}

func (q *boundedQueue) TryEnqueue(job worker.Job) bool {
	if len(q.jobs) >= q.capacity {
		return false
	}
	q.jobs = append(q.jobs, job)
	return true
}

// fakeRelayRepo is an in-memory relay_deliveries table.
type fakeRelayRepo struct {
	mu         sync.Mutex
	deliveries map[uuid.UUID]*model.RelayDelivery
	failCreate error
}

func newFakeRelayRepo() *fakeRelayRepo {
	return &fakeRelayRepo{deliveries: make(map[uuid.UUID]*model.RelayDelivery)}
}

func (r *fakeRelayRepo) Create(_ context.Context, d *model.RelayDelivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate != nil {
		return r.failCreate
	}
	if d.Status == "" {
		d.Status = model.RelayQueued
	}
	d.CreatedAt = time.Now()
	cp := *d
	r.deliveries[d.ID] = &cp
	return nil
}

func (r *fakeRelayRepo) Get(_ context.Context, id uuid.UUID) (*model.RelayDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deliveries[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (r *fakeRelayRepo) RecordAttempt(_ context.Context, id uuid.UUID, result repository.ForwardResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deliveries[id]
	if !ok {
		return fmt.Errorf("relay delivery not found: %s", id)
	}
	d.Status = result.Status
	d.Attempts++
	d.ResponseStatus = result.ResponseStatus
	d.LastError = result.LastError
	if result.Status == model.RelayForwarded {
		now := time.Now()
		d.ForwardedAt = &now
	}
	return nil
}

func (r *fakeRelayRepo) Requeue(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deliveries[id]
	if !ok || d.Status != model.RelayForwardFailed {
		return false, nil
	}
	d.Status = model.RelayQueued
	return true, nil
}

func (r *fakeRelayRepo) ListByStatus(_ context.Context, status model.RelayDeliveryStatus, _ int) ([]*model.RelayDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.RelayDelivery
	for _, d := range r.deliveries {
		if d.Status == status {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}
