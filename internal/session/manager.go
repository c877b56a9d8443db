// Package session владеет синхронизаторами корзин: по одному на пользователя.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/vladislavdragonenkov/storefront/internal/cart"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	defaultIdleTTL = 30 * time.Minute
	// bindTimeout ограничивает общую привязку, не зависящую от отмены вызывающих.
	bindTimeout = 15 * time.Second
)

// ManagerOptions задаёт параметры менеджера сессий.
type ManagerOptions struct {
	Logger      *log.Entry
	Metrics     *metrics.CartMetrics
	IdleTTL     time.Duration
	Now         func() time.Time
	CartOptions []cart.Option
}

// ManagerOption настраивает Manager.
type ManagerOption func(*ManagerOptions)

// WithLogger задаёт logger менеджера.
func WithLogger(logger *log.Entry) ManagerOption {
	return func(opts *ManagerOptions) {
		opts.Logger = logger
	}
}

// WithMetrics задаёт метрики сессий; они же передаются синхронизаторам.
func WithMetrics(m *metrics.CartMetrics) ManagerOption {
	return func(opts *ManagerOptions) {
		opts.Metrics = m
	}
}

// WithIdleTTL задаёт время простоя, после которого сессия выселяется.
func WithIdleTTL(ttl time.Duration) ManagerOption {
	return func(opts *ManagerOptions) {
		opts.IdleTTL = ttl
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) ManagerOption {
	return func(opts *ManagerOptions) {
		opts.Now = now
	}
}

// WithCartOptions добавляет опции для создаваемых синхронизаторов.
func WithCartOptions(options ...cart.Option) ManagerOption {
	return func(opts *ManagerOptions) {
		opts.CartOptions = append(opts.CartOptions, options...)
	}
}

type entry struct {
	sync     *cart.Synchronizer
	lastSeen time.Time
}

// Manager хранит по одному синхронизатору на ключ пользователя.
type Manager struct {
	store       domain.LineStore
	logger      *log.Entry
	metrics     *metrics.CartMetrics
	idleTTL     time.Duration
	now         func() time.Time
	cartOptions []cart.Option

	mu       sync.Mutex
	sessions map[string]*entry
	binds    singleflight.Group
}

// NewManager создаёт менеджер сессий поверх удалённой коллекции позиций.
func NewManager(store domain.LineStore, options ...ManagerOption) *Manager {
	opts := ManagerOptions{IdleTTL: defaultIdleTTL}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "session-manager")
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = defaultIdleTTL
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	cartOptions := []cart.Option{
		cart.WithLogger(logger.WithField("component", "cart-synchronizer")),
		cart.WithMetrics(opts.Metrics),
	}
	cartOptions = append(cartOptions, opts.CartOptions...)

	return &Manager{
		store:       store,
		logger:      logger,
		metrics:     opts.Metrics,
		idleTTL:     opts.IdleTTL,
		now:         now,
		cartOptions: cartOptions,
		sessions:    make(map[string]*entry),
	}
}

// Acquire возвращает синхронизатор пользователя, создавая и привязывая его
// при первом обращении. Одновременные первые обращения выполняют одну привязку;
// отмена ctx одного из них не прерывает привязку для остальных.
func (m *Manager) Acquire(ctx context.Context, identity domain.Identity) (*cart.Synchronizer, error) {
	if identity.IsZero() {
		return nil, domain.ErrNotAuthenticated
	}
	key := identity.Key()

	if s, ok := m.touch(key); ok {
		return s, nil
	}

	ch := m.binds.DoChan(key, func() (any, error) {
		if s, ok := m.touch(key); ok {
			return s, nil
		}

		bindCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bindTimeout)
		defer cancel()

		s := cart.NewSynchronizer(m.store, m.cartOptions...)
		if err := s.Bind(bindCtx, identity); err != nil {
			return nil, fmt.Errorf("bind session: %w", err)
		}

		m.mu.Lock()
		m.sessions[key] = &entry{sync: s, lastSeen: m.now()}
		m.mu.Unlock()

		m.metrics.SessionOpened()
		m.logger.WithField("sessions", m.Len()).Debug("cart session opened")
		return s, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*cart.Synchronizer), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release закрывает сессию пользователя (выход): зеркало очищается.
func (m *Manager) Release(ctx context.Context, identity domain.Identity) error {
	key := identity.Key()
	if key == "" {
		return nil
	}

	m.mu.Lock()
	e, ok := m.sessions[key]
	delete(m.sessions, key)
	m.mu.Unlock()

	if !ok {
		return nil
	}

	m.metrics.SessionClosed(false)
	return e.sync.Bind(ctx, domain.Identity{})
}

// Sweep выселяет сессии, простаивающие дольше IdleTTL, и возвращает их число.
func (m *Manager) Sweep(now time.Time) int {
	cutoff := now.Add(-m.idleTTL)

	m.mu.Lock()
	var evicted []*entry
	for key, e := range m.sessions {
		if e.lastSeen.Before(cutoff) {
			evicted = append(evicted, e)
			delete(m.sessions, key)
		}
	}
	m.mu.Unlock()

	for _, e := range evicted {
		// Нулевой пользователь очищает зеркало без обращения к хранилищу.
		_ = e.sync.Bind(context.Background(), domain.Identity{})
		m.metrics.SessionClosed(true)
	}
	return len(evicted)
}

// Len возвращает число живых сессий.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) touch(key string) (*cart.Synchronizer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[key]
	if !ok {
		return nil, false
	}
	e.lastSeen = m.now()
	return e.sync, true
}
