// Package service implements the assistant run engine and the conversation
// operations exposed to the browser.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/adapter/llm"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/config"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/domain"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/observability"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/prompt"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/repository"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/session"
	"github.com/doublesecretagency/craft-sidekick-sub000/internal/skills"
)

// Version is the service version reported to the model. Set at build time.
var Version = "dev"

// Sink receives the entries of a turn that the live UI must display.
type Sink interface {
	Send(msg domain.ConversationMessage) error
}

type Service struct {
	store    repository.Store
	llm      llm.AssistantClient
	registry *skills.Registry
	prompts  *prompt.Compiler
	config   *config.Config
	metrics  *observability.Metrics
	logger   *slog.Logger
	locker   *session.Locker

	mu           sync.RWMutex
	dispatcher   *skills.Dispatcher
	instructions string
	fingerprint  string
}

func New(store repository.Store, client llm.AssistantClient, registry *skills.Registry, prompts *prompt.Compiler, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if prompts == nil {
		prompts = prompt.NewCompiler()
	}
	return &Service{
		store:    store,
		llm:      client,
		registry: registry,
		prompts:  prompts,
		config:   cfg,
		metrics:  metrics,
		logger:   logger,
		locker:   session.NewLocker(),
	}
}

// Env returns the environment the tool catalog is built for.
func (s *Service) Env() skills.Env {
	return skills.Env{
		HostVersion:       s.config.CMS.HostVersion,
		AllowAdminChanges: s.config.CMS.AllowAdminChanges,
		ServiceVersion:    Version,
	}
}

// Reload rebuilds the tool catalog and the system instructions. It fails
// when the registry produces an invalid catalog.
func (s *Service) Reload(ctx context.Context) error {
	env := s.Env()
	catalog, err := s.registry.Build(ctx, env)
	if err != nil {
		return fmt.Errorf("failed to build tool catalog: %w", err)
	}
	instructions, err := s.prompts.Compile(ctx, catalog, env)
	if err != nil {
		return fmt.Errorf("failed to compile instructions: %w", err)
	}

	sum := sha256.Sum256([]byte(catalog.Fingerprint() + "\n" + instructions))

	s.mu.Lock()
	s.dispatcher = skills.NewDispatcher(catalog, s.metrics, s.logger)
	s.instructions = instructions
	s.fingerprint = hex.EncodeToString(sum[:])
	s.mu.Unlock()

	s.logger.Info("tool catalog built", "tools", catalog.Len(), "fingerprint", catalog.Fingerprint()[:12])
	return nil
}

// snapshot returns the current dispatcher, instructions and binding
// fingerprint.
func (s *Service) snapshot() (*skills.Dispatcher, string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dispatcher, s.instructions, s.fingerprint
}

// Catalog returns the current tool catalog, nil before Reload.
func (s *Service) Catalog() *skills.Catalog {
	d, _, _ := s.snapshot()
	if d == nil {
		return nil
	}
	return d.Catalog()
}

// Instructions returns the compiled system instructions.
func (s *Service) Instructions() string {
	_, instructions, _ := s.snapshot()
	return instructions
}

// Session returns the session with the given id, creating it if needed.
func (s *Service) Session(ctx context.Context, id string) *session.Session {
	if err := s.store.EnsureSession(ctx, id); err != nil {
		s.logger.Warn("failed to touch session", "session_id", id, "error", err)
	}
	return session.New(id, repository.Scope(s.store, id), s.config.OpenAI.DefaultModel, s.logger)
}
