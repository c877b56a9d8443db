package cart_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// fakeStore: удалённая коллекция Cart с перехватом вызовов.
// hook вызывается до выполнения операции и может заблокировать её или вернуть ошибку.
type fakeStore struct {
	mu    sync.Mutex
	lines map[string]domain.CartLine
	seq   int
	calls map[string]int
	hook  func(ctx context.Context, op, key string) error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		lines: make(map[string]domain.CartLine),
		calls: make(map[string]int),
	}
}

func (f *fakeStore) setHook(hook func(ctx context.Context, op, key string) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hook = hook
}

func (f *fakeStore) before(ctx context.Context, op, key string) error {
	f.mu.Lock()
	f.calls[op]++
	hook := f.hook
	f.mu.Unlock()

	if hook == nil {
		return nil
	}
	return hook(ctx, op, key)
}

func (f *fakeStore) seed(owner, productRef string, price int64, qty int) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	id := fmt.Sprintf("line-%d", f.seq)
	f.lines[id] = domain.CartLine{
		ID:         id,
		ProductRef: productRef,
		Quantity:   qty,
		Owner:      owner,
		ProductSnapshot: domain.ProductSnapshot{
			Name:  productRef,
			Price: decimal.NewFromInt(price),
		},
		CreatedAt: time.Unix(int64(f.seq), 0).UTC(),
	}
	return id
}

func (f *fakeStore) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeStore) line(id string) (domain.CartLine, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	line, ok := f.lines[id]
	return line, ok
}

func (f *fakeStore) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.lines, id)
}

func (f *fakeStore) Insert(ctx context.Context, line domain.CartLine) (string, error) {
	if err := f.before(ctx, "insert", line.ProductRef); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.lines {
		if existing.Owner == line.Owner && existing.ProductRef == line.ProductRef {
			return "", domain.ErrLineAlreadyExists
		}
	}
	f.seq++
	line.ID = fmt.Sprintf("line-%d", f.seq)
	f.lines[line.ID] = line
	return line.ID, nil
}

func (f *fakeStore) Query(ctx context.Context, owner string) ([]domain.CartLine, error) {
	if err := f.before(ctx, "query", owner); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var result []domain.CartLine
	for _, line := range f.lines {
		if line.Owner == owner {
			result = append(result, line)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (f *fakeStore) Update(ctx context.Context, id string, patch domain.LinePatch) error {
	if err := f.before(ctx, "update", id); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	line, ok := f.lines[id]
	if !ok {
		return domain.ErrLineNotFound
	}
	if patch.Quantity != nil {
		line.Quantity = *patch.Quantity
	}
	f.lines[id] = line
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	if err := f.before(ctx, "delete", id); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.lines, id)
	return nil
}

var _ domain.LineStore = (*fakeStore)(nil)

// gate блокирует операцию до release; entered закрывается при входе.
type gate struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gate) wait(ctx context.Context) error {
	g.once.Do(func() { close(g.entered) })
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *gate) open() {
	close(g.release)
}

func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for %s", what)
	}
}

func loggerForTests() *log.Entry {
	logger := log.New()
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: false, DisableTimestamp: true})
	logger.SetLevel(log.WarnLevel)
	return logger.WithField("component", "test")
}
