package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/domain"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/session"
)

// ErrUnknownModel is returned when selecting a model that is not offered.
var ErrUnknownModel = errors.New("unknown model")

// Conversation returns the stored history. An empty history yields the
// greeting as a single assistant entry, without storing it.
func (s *Service) Conversation(ctx context.Context, sess *session.Session, greeting string) []domain.ConversationMessage {
	entries := sess.History().All(ctx)
	if len(entries) == 0 && greeting != "" {
		return []domain.ConversationMessage{domain.NewMessage(domain.RoleAssistant, greeting)}
	}
	return entries
}

// ClearConversation removes the history and the remote bindings so the next
// message starts on a fresh thread. It returns session.ErrRunInFlight without
// touching the session while a run holds its lock.
func (s *Service) ClearConversation(ctx context.Context, sess *session.Session) error {
	if s.locker.Busy(sess.ID()) {
		return session.ErrRunInFlight
	}
	if err := sess.History().Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear conversation: %w", err)
	}
	sess.Logger().Info("conversation cleared")
	return nil
}

// Models lists the models offered to the user and the one currently
// selected. The configured list wins over the remote listing.
func (s *Service) Models(ctx context.Context, sess *session.Session) (domain.ModelsResponse, error) {
	models := slices.Clone(s.config.OpenAI.Models)
	if len(models) == 0 {
		remote, err := s.llm.ListModels(ctx)
		if err != nil {
			return domain.ModelsResponse{}, fmt.Errorf("failed to list models: %w", err)
		}
		for _, m := range remote {
			if chatModel(m) {
				models = append(models, m)
			}
		}
		sort.Strings(models)
	}

	selected := sess.SelectedModel(ctx)
	if !slices.Contains(models, selected) {
		models = append(models, selected)
	}
	return domain.ModelsResponse{Success: true, Selected: selected, Models: models}, nil
}

// SelectModel stores the model used for assistants created from now on.
func (s *Service) SelectModel(ctx context.Context, sess *session.Session, model string) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return fmt.Errorf("%w: model is required", ErrUnknownModel)
	}
	if offered := s.config.OpenAI.Models; len(offered) > 0 && !slices.Contains(offered, model) {
		return fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}
	if err := sess.SetSelectedModel(ctx, model); err != nil {
		return fmt.Errorf("failed to select model: %w", err)
	}
	return nil
}

// Tools describes the current catalog.
func (s *Service) Tools() domain.ToolsResponse {
	catalog := s.Catalog()
	if catalog == nil {
		return domain.ToolsResponse{Success: true, Namespaces: map[string]string{}, Tools: []domain.ToolDescriptor{}}
	}
	return domain.ToolsResponse{
		Success:    true,
		Namespaces: catalog.Namespaces(),
		Tools:      catalog.Descriptors(),
	}
}

// chatModel reports whether a remote model id names a chat model.
func chatModel(id string) bool {
	if strings.HasPrefix(id, "gpt-") {
		return true
	}
	return len(id) > 1 && id[0] == 'o' && id[1] >= '0' && id[1] <= '9'
}
