// Package permission decides whether a command may touch a store.
package permission

import (
	"context"
	"errors"

	"github.com/tazhate/calbridge/internal/domain"
	"github.com/tazhate/calbridge/internal/pluginerr"
	"github.com/tazhate/calbridge/internal/prompt"
)

// Provider reports and requests authorization for aliases.
type Provider interface {
	State(ctx context.Context, alias domain.PermissionAlias) (domain.PermissionState, error)
	// Request may block on user interaction. It returns the state of every
	// requested alias afterwards.
	Request(ctx context.Context, aliases []domain.PermissionAlias) (map[domain.PermissionAlias]domain.PermissionState, error)
}

// Gate guards commands behind the aliases the platform recognizes.
type Gate struct {
	provider  Provider
	supported []domain.PermissionAlias
}

func NewGate(p Provider, supported []domain.PermissionAlias) *Gate {
	return &Gate{provider: p, supported: supported}
}

// Supported reports whether the platform recognizes alias.
func (g *Gate) Supported(alias domain.PermissionAlias) bool {
	for _, a := range g.supported {
		if a == alias {
			return true
		}
	}
	return false
}

// Aliases lists the recognized aliases.
func (g *Gate) Aliases() []domain.PermissionAlias {
	return append([]domain.PermissionAlias(nil), g.supported...)
}

// CheckAccess returns the current state of alias without prompting.
func (g *Gate) CheckAccess(ctx context.Context, source string, alias domain.PermissionAlias) (domain.PermissionState, error) {
	if !g.Supported(alias) {
		return "", pluginerr.New(pluginerr.Unimplemented, source, "")
	}
	st, err := g.provider.State(ctx, alias)
	if err != nil {
		return "", pluginerr.FromError(err, source)
	}
	return st, nil
}

// CheckAll returns the state of every recognized alias.
func (g *Gate) CheckAll(ctx context.Context, source string) (map[domain.PermissionAlias]domain.PermissionState, error) {
	out := make(map[domain.PermissionAlias]domain.PermissionState, len(g.supported))
	for _, a := range g.supported {
		st, err := g.CheckAccess(ctx, source, a)
		if err != nil {
			return nil, err
		}
		out[a] = st
	}
	return out, nil
}

// RequestAccess requests the aliases together and folds their states into one.
func (g *Gate) RequestAccess(ctx context.Context, source string, aliases ...domain.PermissionAlias) (domain.PermissionState, error) {
	states, err := g.request(ctx, source, aliases)
	if err != nil {
		return "", err
	}
	folded := make([]domain.PermissionState, 0, len(aliases))
	for _, a := range aliases {
		folded = append(folded, states[a])
	}
	return domain.CombineStates(folded...), nil
}

// RequestAll requests every recognized alias.
func (g *Gate) RequestAll(ctx context.Context, source string) (map[domain.PermissionAlias]domain.PermissionState, error) {
	return g.request(ctx, source, g.supported)
}

func (g *Gate) request(ctx context.Context, source string, aliases []domain.PermissionAlias) (map[domain.PermissionAlias]domain.PermissionState, error) {
	for _, a := range aliases {
		if !g.Supported(a) {
			return nil, pluginerr.New(pluginerr.Unimplemented, source, "")
		}
	}
	states, err := g.provider.Request(ctx, aliases)
	if err != nil {
		if errors.Is(err, prompt.ErrNoPresenter) {
			return nil, pluginerr.New(pluginerr.NoViewController, source, "")
		}
		return nil, pluginerr.FromError(err, source)
	}
	return states, nil
}

// RequireAccess returns nil iff the alias for req is granted.
func (g *Gate) RequireAccess(ctx context.Context, source string, req domain.AccessRequirement) error {
	st, err := g.CheckAccess(ctx, source, req.Alias())
	if err != nil {
		return err
	}
	if st != domain.StateGranted {
		return pluginerr.NoAccessFor(source, req)
	}
	return nil
}
