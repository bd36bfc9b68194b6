package permission

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tazhate/calbridge/internal/domain"
	"github.com/tazhate/calbridge/internal/prompt"
)

// Policy decides how requests for ungranted aliases are answered.
type Policy string

const (
	PolicyPrompt Policy = "prompt"
	PolicyGrant  Policy = "grant"
	PolicyDeny   Policy = "deny"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyPrompt, PolicyGrant, PolicyDeny:
		return Policy(s), nil
	}
	return "", fmt.Errorf("unknown permission policy %q", s)
}

// StateStore persists the state of each alias. ok is false for an alias never asked.
type StateStore interface {
	PermissionState(ctx context.Context, alias domain.PermissionAlias) (st domain.PermissionState, ok bool, err error)
	SetPermissionState(ctx context.Context, alias domain.PermissionAlias, st domain.PermissionState) error
}

// ConsentProvider asks the owner for access and remembers the answer.
// A first refusal leaves the alias promptable with rationale, a second denies it.
type ConsentProvider struct {
	store     StateStore
	consenter prompt.Consenter
	policy    Policy
	slot      prompt.Slot[bool]
	logger    *slog.Logger
}

func NewConsentProvider(store StateStore, consenter prompt.Consenter, policy Policy, logger *slog.Logger) *ConsentProvider {
	if consenter == nil {
		consenter = prompt.Headless{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsentProvider{store: store, consenter: consenter, policy: policy, logger: logger}
}

func (p *ConsentProvider) State(ctx context.Context, alias domain.PermissionAlias) (domain.PermissionState, error) {
	if p.policy == PolicyGrant {
		return domain.StateGranted, nil
	}
	st, ok, err := p.store.PermissionState(ctx, alias)
	if err != nil {
		return "", fmt.Errorf("get permission %s: %w", alias, err)
	}
	if !ok {
		return domain.StatePrompt, nil
	}
	return st, nil
}

func (p *ConsentProvider) Request(ctx context.Context, aliases []domain.PermissionAlias) (map[domain.PermissionAlias]domain.PermissionState, error) {
	states := make(map[domain.PermissionAlias]domain.PermissionState, len(aliases))
	var pending []domain.PermissionAlias
	rationale := false
	for _, a := range aliases {
		st, err := p.State(ctx, a)
		if err != nil {
			return nil, err
		}
		states[a] = st
		if st.Promptable() {
			pending = append(pending, a)
			rationale = rationale || st == domain.StatePromptWithRationale
		}
	}
	if len(pending) == 0 {
		return states, nil
	}

	granted := false
	switch p.policy {
	case PolicyDeny:
		for _, a := range pending {
			if err := p.set(ctx, states, a, domain.StateDenied); err != nil {
				return nil, err
			}
		}
		return states, nil
	default:
		req, err := p.slot.Begin()
		if err != nil {
			return nil, err
		}
		if err := p.consenter.ConfirmAccess(ctx, req, pending, rationale); err != nil {
			req.Cancel()
			return nil, err
		}
		answer, ok, err := req.Wait(ctx)
		if err != nil {
			return nil, err
		}
		granted = ok && answer
	}

	for _, a := range pending {
		next := domain.StateGranted
		if !granted {
			next = refused(states[a])
		}
		if err := p.set(ctx, states, a, next); err != nil {
			return nil, err
		}
	}
	p.logger.Info("permission request answered", "aliases", pending, "granted", granted)
	return states, nil
}

func (p *ConsentProvider) set(ctx context.Context, states map[domain.PermissionAlias]domain.PermissionState, a domain.PermissionAlias, st domain.PermissionState) error {
	if err := p.store.SetPermissionState(ctx, a, st); err != nil {
		return fmt.Errorf("set permission %s: %w", a, err)
	}
	states[a] = st
	return nil
}

func refused(st domain.PermissionState) domain.PermissionState {
	if st == domain.StatePrompt {
		return domain.StatePromptWithRationale
	}
	return domain.StateDenied
}
