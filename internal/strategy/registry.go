package strategy

import (
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

var ErrUnknownStrategy = errors.New("unknown strategy")

// Factory builds a strategy instance for one bot.
type Factory func(p Params) (Strategy, error)

// Registry maps strategy identifiers to factories. Populated at startup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry: все стратегии, которые знает сервис.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(HybridTrendName, NewHybridTrend)
	// старый формат имени из bot_config (полный путь к классу)
	r.Register("strategies.active.hybrid_trend.HybridTrendStrategy", NewHybridTrend)
	r.Register(DonchianName, NewDonchianStrategy)
	return r
}

func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[normName(name)] = f
}

// Resolve builds the strategy registered under name.
// Unknown names yield an error wrapping ErrUnknownStrategy.
func (r *Registry) Resolve(name string, p Params) (Strategy, error) {
	r.mu.RLock()
	f, ok := r.factories[normName(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownStrategy, "%q", name)
	}

	s, err := f(p.normalized())
	if err != nil {
		return nil, errors.Wrapf(err, "build strategy %q", name)
	}
	return s, nil
}

// Has reports whether name resolves to a registered factory.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[normName(name)]
	return ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func normName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
