// Package cart держит зеркало корзины пользователя и синхронизирует его
// с удалённой коллекцией позиций.
//
// Любая мутация сначала пишется в удалённое хранилище и только после
// подтверждения применяется к зеркалу. Мутации одной позиции выполняются
// последовательно, разных позиций независимо. Ответы, полученные для
// предыдущего пользователя сессии, отбрасываются по номеру поколения.
// Перечитывание того же пользователя поколение не меняет и дожидается
// мутаций в полёте.
package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// Имена операций для логов и метрик.
const (
	OpAdd    = "add"
	OpUpdate = "update_quantity"
	OpRemove = "remove"
)

// Snapshot: согласованный срез состояния зеркала.
type Snapshot struct {
	Generation uint64
	Identity   domain.Identity
	Lines      []domain.CartLine
	Totals     domain.Totals
}

// Listener получает снимок после каждого изменения зеркала в порядке применения.
// Listener не должен синхронно вызывать мутации синхронизатора.
type Listener func(Snapshot)

// Options задаёт зависимости синхронизатора.
type Options struct {
	Logger  *log.Entry
	Metrics *metrics.CartMetrics
	Now     func() time.Time
}

// Option настраивает Synchronizer.
type Option func(*Options)

// WithLogger задаёт logger синхронизатора.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithMetrics задаёт метрики синхронизатора.
func WithMetrics(m *metrics.CartMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithClock подменяет источник времени для CreatedAt новых позиций.
func WithClock(now func() time.Time) Option {
	return func(opts *Options) {
		opts.Now = now
	}
}

type subscription struct {
	id       uint64
	listener Listener
}

// Synchronizer: зеркало корзины одной сессии.
type Synchronizer struct {
	store   domain.LineStore
	logger  *log.Entry
	metrics *metrics.CartMetrics
	now     func() time.Time
	locks   *keyedLock
	// barrier: мутации держат его на чтение, перечитывание на запись.
	barrier sync.RWMutex

	mu         sync.RWMutex
	identity   domain.Identity
	generation uint64
	lines      []domain.CartLine
	// loaded закрывается, когда выборка текущего поколения завершилась.
	loaded    chan struct{}
	loadErr   error
	commitSeq uint64

	subMu   sync.Mutex
	subs    []subscription
	nextSub uint64

	// Рассылка идёт строго по номерам коммитов.
	deliverMu   sync.Mutex
	deliverCond *sync.Cond
	delivered   uint64
}

// NewSynchronizer создаёт синхронизатор без привязанного пользователя.
func NewSynchronizer(store domain.LineStore, options ...Option) *Synchronizer {
	opts := Options{}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "cart-synchronizer")
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	s := &Synchronizer{
		store:   store,
		logger:  logger,
		metrics: opts.Metrics,
		now:     now,
		locks:   newKeyedLock(),
	}
	s.deliverCond = sync.NewCond(&s.deliverMu)
	return s
}

// Bind привязывает пользователя: очищает зеркало и загружает его позиции.
// Нулевой Identity очищает зеркало без обращения к хранилищу.
// Повторная привязка того же пользователя работает как Reload.
// Если пока шла выборка пользователь сменился, возвращается ErrIdentityChanged.
func (s *Synchronizer) Bind(ctx context.Context, identity domain.Identity) error {
	if s.rebind(identity) {
		return s.Reload(ctx)
	}

	gen, loaded := s.begin(identity)
	if identity.IsZero() {
		return nil
	}
	return s.fetch(ctx, gen, identity, loaded)
}

// Reload перечитывает позиции текущего пользователя в том же поколении.
// Зеркало не очищается: выборка ждёт завершения мутаций в полёте и
// заменяет позиции целиком. При ошибке зеркало остаётся прежним.
func (s *Synchronizer) Reload(ctx context.Context) error {
	s.mu.RLock()
	gen := s.generation
	identity := s.identity
	loaded := s.loaded
	s.mu.RUnlock()

	if identity.IsZero() {
		return nil
	}
	if loaded != nil {
		select {
		case <-loaded:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.barrier.Lock()
	defer s.barrier.Unlock()

	lines, err := s.store.Query(ctx, identity.Key())

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		s.metrics.RecordStaleResponse()
		s.metrics.RecordBind(metrics.ResultStale)
		return domain.ErrIdentityChanged
	}
	if err != nil {
		s.mu.Unlock()
		s.metrics.RecordBind(metrics.ResultFailed)
		s.logger.WithError(err).WithField("generation", gen).Warn("failed to reload cart lines")
		return remoteError("query", err)
	}
	s.lines = domain.CloneLines(lines)
	s.loadErr = nil
	s.commitAndUnlock()

	s.metrics.RecordBind(metrics.ResultApplied)
	return nil
}

// rebind обновляет поля пользователя, если ключ не изменился.
func (s *Synchronizer) rebind(identity domain.Identity) bool {
	if identity.IsZero() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity.Key() != identity.Key() {
		return false
	}
	s.identity = identity
	return true
}

// Follow вызывает Bind для каждого пользователя из потока провайдера аутентификации.
// Выборка предыдущего пользователя отменяется при появлении следующего.
// При закрытии канала дожидается последней выборки и возвращает nil,
// при отмене ctx возвращает ctx.Err().
func (s *Synchronizer) Follow(ctx context.Context, identities <-chan domain.Identity) error {
	var (
		wg         sync.WaitGroup
		cancelPrev context.CancelFunc
	)
	defer func() {
		if cancelPrev != nil {
			cancelPrev()
		}
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case identity, ok := <-identities:
			if !ok {
				// Поток закончился: последняя выборка доводится до конца.
				wg.Wait()
				return nil
			}

			if s.rebind(identity) {
				// Тот же пользователь: текущая выборка не отменяется.
				reloadCtx, cancel := context.WithCancel(ctx)
				prev := cancelPrev
				cancelPrev = func() {
					if prev != nil {
						prev()
					}
					cancel()
				}
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := s.Reload(reloadCtx); err != nil && !errors.Is(err, domain.ErrIdentityChanged) {
						s.logger.WithError(err).Warn("cart reload failed")
					}
				}()
				continue
			}

			gen, loaded := s.begin(identity)
			if cancelPrev != nil {
				cancelPrev()
				cancelPrev = nil
			}
			if identity.IsZero() {
				continue
			}

			fetchCtx, cancel := context.WithCancel(ctx)
			cancelPrev = cancel
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := s.fetch(fetchCtx, gen, identity, loaded)
				if err != nil && !errors.Is(err, domain.ErrIdentityChanged) {
					s.logger.WithError(err).WithField("generation", gen).Warn("cart bind failed")
				}
			}()
		}
	}
}

// begin открывает новое поколение: зеркало очищается сразу.
func (s *Synchronizer) begin(identity domain.Identity) (uint64, chan struct{}) {
	loaded := make(chan struct{})

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.identity = identity
	s.lines = nil
	s.loadErr = nil
	s.loaded = loaded
	if identity.IsZero() {
		close(loaded)
		s.metrics.RecordBind("cleared")
	}
	s.commitAndUnlock()

	s.logger.WithFields(log.Fields{
		"generation": gen,
		"signed_in":  !identity.IsZero(),
	}).Debug("cart identity bound")
	return gen, loaded
}

func (s *Synchronizer) fetch(ctx context.Context, gen uint64, identity domain.Identity, loaded chan struct{}) error {
	defer close(loaded)

	lines, err := s.store.Query(ctx, identity.Key())

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		s.metrics.RecordStaleResponse()
		s.metrics.RecordBind(metrics.ResultStale)
		return domain.ErrIdentityChanged
	}
	if err != nil {
		s.loadErr = remoteError("query", err)
		loadErr := s.loadErr
		s.mu.Unlock()
		s.metrics.RecordBind(metrics.ResultFailed)
		s.logger.WithError(err).WithField("generation", gen).Warn("failed to load cart lines")
		return loadErr
	}
	s.lines = domain.CloneLines(lines)
	s.commitAndUnlock()

	s.metrics.RecordBind(metrics.ResultApplied)
	return nil
}

// AddLine добавляет товар в корзину. Если позиция для товара уже есть,
// её количество увеличивается на 1.
func (s *Synchronizer) AddLine(ctx context.Context, productRef string, snapshot domain.ProductSnapshot) error {
	start := s.now()
	return s.finish(OpAdd, start, s.addLine(ctx, productRef, snapshot))
}

func (s *Synchronizer) addLine(ctx context.Context, productRef string, snapshot domain.ProductSnapshot) error {
	productRef = strings.TrimSpace(productRef)
	if productRef == "" {
		return domain.ErrProductRefRequired
	}

	gen, owner, err := s.ready(ctx)
	if err != nil {
		return err
	}
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	// Добавления одного товара идут строго по очереди: N параллельных
	// добавлений дают одну позицию с количеством N.
	unlock, err := s.locks.Lock(ctx, "product:"+productRef)
	if err != nil {
		return err
	}
	defer unlock()

	s.mu.RLock()
	if s.generation != gen {
		s.mu.RUnlock()
		return domain.ErrIdentityChanged
	}
	existing, found := findByProduct(s.lines, productRef)
	s.mu.RUnlock()

	if found {
		err := s.updateQuantity(ctx, gen, existing.ID, 1)
		// Позиция могла быть удалена, пока мы ждали блокировку.
		if !errors.Is(err, errLineGone) {
			return err
		}
	}

	line := domain.CartLine{
		ProductRef:      productRef,
		Quantity:        1,
		Owner:           owner,
		ProductSnapshot: snapshot,
		CreatedAt:       s.now(),
	}

	s.metrics.MutationStarted()
	id, err := s.store.Insert(ctx, line)
	s.metrics.MutationFinished()
	if err != nil {
		return remoteError("insert", err)
	}
	line.ID = id

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		s.metrics.RecordStaleResponse()
		return domain.ErrIdentityChanged
	}
	s.lines = append(s.lines, line)
	s.commitAndUnlock()

	s.logger.WithFields(log.Fields{
		"line_id":     id,
		"product_ref": productRef,
	}).Debug("cart line added")
	return nil
}

// UpdateQuantity меняет количество на delta с нижней границей 1.
// Если количество не меняется, удалённая запись не выполняется.
func (s *Synchronizer) UpdateQuantity(ctx context.Context, lineID string, delta int) error {
	start := s.now()

	gen, _, err := s.ready(ctx)
	if err == nil {
		s.barrier.RLock()
		err = s.updateQuantity(ctx, gen, lineID, delta)
		s.barrier.RUnlock()
	}
	if errors.Is(err, errLineGone) {
		err = domain.ErrLineNotFound
	}
	return s.finish(OpUpdate, start, err)
}

// errLineGone: позиции нет в зеркале; наружу отдаётся как ErrLineNotFound.
var errLineGone = fmt.Errorf("mirror: %w", domain.ErrLineNotFound)

func (s *Synchronizer) updateQuantity(ctx context.Context, gen uint64, lineID string, delta int) error {
	unlock, err := s.locks.Lock(ctx, "line:"+lineID)
	if err != nil {
		return err
	}
	defer unlock()

	s.mu.RLock()
	if s.generation != gen {
		s.mu.RUnlock()
		return domain.ErrIdentityChanged
	}
	idx := indexOfLine(s.lines, lineID)
	if idx < 0 {
		s.mu.RUnlock()
		return errLineGone
	}
	current := s.lines[idx].Quantity
	s.mu.RUnlock()

	next := domain.ClampQuantity(current, delta)
	if next == current {
		return errNoop
	}

	s.metrics.MutationStarted()
	err = s.store.Update(ctx, lineID, domain.QuantityPatch(next))
	s.metrics.MutationFinished()
	if err != nil {
		return remoteError("update", err)
	}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		s.metrics.RecordStaleResponse()
		return domain.ErrIdentityChanged
	}
	// Под блокировкой позиции удалить её могла только смена поколения.
	if idx = indexOfLine(s.lines, lineID); idx >= 0 {
		s.lines[idx].Quantity = next
	}
	s.commitAndUnlock()

	s.logger.WithFields(log.Fields{
		"line_id":  lineID,
		"quantity": next,
	}).Debug("cart line quantity updated")
	return nil
}

// RemoveLine удаляет позицию. Удаление отсутствующей позиции не является ошибкой.
func (s *Synchronizer) RemoveLine(ctx context.Context, lineID string) error {
	start := s.now()
	return s.finish(OpRemove, start, s.removeLine(ctx, lineID))
}

func (s *Synchronizer) removeLine(ctx context.Context, lineID string) error {
	gen, _, err := s.ready(ctx)
	if err != nil {
		return err
	}
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	unlock, err := s.locks.Lock(ctx, "line:"+lineID)
	if err != nil {
		return err
	}
	defer unlock()

	s.mu.RLock()
	if s.generation != gen {
		s.mu.RUnlock()
		return domain.ErrIdentityChanged
	}
	present := indexOfLine(s.lines, lineID) >= 0
	s.mu.RUnlock()
	if !present {
		return errNoop
	}

	s.metrics.MutationStarted()
	err = s.store.Delete(ctx, lineID)
	s.metrics.MutationFinished()
	if err != nil {
		return remoteError("delete", err)
	}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		s.metrics.RecordStaleResponse()
		return domain.ErrIdentityChanged
	}
	if idx := indexOfLine(s.lines, lineID); idx >= 0 {
		s.lines = append(s.lines[:idx:idx], s.lines[idx+1:]...)
	}
	s.commitAndUnlock()

	s.logger.WithField("line_id", lineID).Debug("cart line removed")
	return nil
}

// Lines возвращает копию позиций зеркала.
func (s *Synchronizer) Lines() []domain.CartLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CloneLines(s.lines)
}

// Identity возвращает пользователя, к которому привязана сессия.
func (s *Synchronizer) Identity() domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Totals считает итоги по зеркалу.
func (s *Synchronizer) Totals() domain.Totals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.ComputeTotals(s.lines)
}

// Snapshot возвращает текущее состояние зеркала целиком.
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe регистрирует слушателя изменений и возвращает функцию отписки.
func (s *Synchronizer) Subscribe(listener Listener) func() {
	s.subMu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscription{id: id, listener: listener})
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// ready ждёт завершения выборки текущего поколения и возвращает его номер
// и ключ владельца.
func (s *Synchronizer) ready(ctx context.Context) (uint64, string, error) {
	s.mu.RLock()
	gen := s.generation
	loaded := s.loaded
	s.mu.RUnlock()

	if loaded != nil {
		select {
		case <-loaded:
		case <-ctx.Done():
			return 0, "", ctx.Err()
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.generation != gen {
		return 0, "", domain.ErrIdentityChanged
	}
	if s.identity.IsZero() {
		return 0, "", domain.ErrNotAuthenticated
	}
	if s.loadErr != nil {
		return 0, "", s.loadErr
	}
	return gen, s.identity.Key(), nil
}

// commitAndUnlock снимает снимок, отпускает s.mu и рассылает снимок слушателям.
// Вызывается с захваченным на запись s.mu.
func (s *Synchronizer) commitAndUnlock() {
	snapshot := s.snapshotLocked()
	ticket := s.commitSeq
	s.commitSeq++
	s.mu.Unlock()

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	for s.delivered != ticket {
		s.deliverCond.Wait()
	}
	defer func() {
		s.delivered++
		s.deliverCond.Broadcast()
	}()

	s.subMu.Lock()
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	s.subMu.Unlock()

	for _, sub := range subs {
		sub.listener(Snapshot{
			Generation: snapshot.Generation,
			Identity:   snapshot.Identity,
			Lines:      domain.CloneLines(snapshot.Lines),
			Totals:     snapshot.Totals,
		})
	}
}

func (s *Synchronizer) snapshotLocked() Snapshot {
	return Snapshot{
		Generation: s.generation,
		Identity:   s.identity,
		Lines:      domain.CloneLines(s.lines),
		Totals:     domain.ComputeTotals(s.lines),
	}
}

// errNoop помечает мутацию, которая не потребовала удалённой записи.
var errNoop = errors.New("noop")

// finish фиксирует метрики мутации и переводит errNoop в успешный результат.
func (s *Synchronizer) finish(op string, start time.Time, err error) error {
	result := metrics.ResultApplied
	switch {
	case err == nil:
	case errors.Is(err, errNoop):
		result = metrics.ResultNoop
		err = nil
	case domain.IsStale(err):
		result = metrics.ResultStale
	default:
		result = metrics.ResultFailed
		if domain.IsRemoteFailure(err) {
			s.logger.WithError(err).WithField("op", op).Warn("cart mutation failed")
		}
	}
	s.metrics.ObserveMutation(op, result, s.now().Sub(start))
	return err
}

func remoteError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrRemoteFailure, op, err)
}

func findByProduct(lines []domain.CartLine, productRef string) (domain.CartLine, bool) {
	for _, line := range lines {
		if line.ProductRef == productRef {
			return line, true
		}
	}
	return domain.CartLine{}, false
}

func indexOfLine(lines []domain.CartLine, id string) int {
	for i, line := range lines {
		if line.ID == id {
			return i
		}
	}
	return -1
}
