package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driven"
	"github.com/custodia-labs/propest/internal/core/ports/driving"
)

// Ensure ParameterSetService implements the interface.
var _ driving.ParameterSetService = (*ParameterSetService)(nil)

// ParameterSetService resolves parameter set references by scheme.
// References without a scheme are file paths.
type ParameterSetService struct {
	resolvers map[string]driven.ParameterSetResolver
}

// NewParameterSetService creates a parameter set service.
func NewParameterSetService(resolvers ...driven.ParameterSetResolver) *ParameterSetService {
	s := &ParameterSetService{resolvers: make(map[string]driven.ParameterSetResolver)}
	for _, r := range resolvers {
		s.resolvers[r.Scheme()] = r
	}
	return s
}

// Resolve fetches every reference, in order.
func (s *ParameterSetService) Resolve(ctx context.Context, refs ...string) ([]domain.ParameterSet, error) {
	if len(refs) == 0 {
		return nil, domain.ErrNoParameterSets
	}
	sets := make([]domain.ParameterSet, 0, len(refs))
	seen := make(map[string]string, len(refs))
	for _, ref := range refs {
		scheme := Scheme(ref)
		resolver, ok := s.resolvers[scheme]
		if !ok {
			return nil, fmt.Errorf("%w: parameter set scheme %q", domain.ErrUnsupportedType, scheme)
		}
		set, err := resolver.Resolve(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", ref, err)
		}
		if prev, dup := seen[set.ID]; dup {
			return nil, fmt.Errorf("%w: %s and %s have the same content", domain.ErrInvalidInput, prev, ref)
		}
		seen[set.ID] = ref
		sets = append(sets, set)
	}
	return sets, nil
}

// Schemes returns the supported reference schemes.
func (s *ParameterSetService) Schemes() []string {
	schemes := make([]string, 0, len(s.resolvers))
	for scheme := range s.resolvers {
		schemes = append(schemes, scheme)
	}
	sort.Strings(schemes)
	return schemes
}

// Scheme returns the scheme of a reference, "file" when it has none.
func Scheme(ref string) string {
	if i := strings.Index(ref, "://"); i > 0 {
		return strings.ToLower(ref[:i])
	}
	return "file"
}
