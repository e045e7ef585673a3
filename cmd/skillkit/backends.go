package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/agentskills/skillkit/pkg/config"
	"github.com/agentskills/skillkit/pkg/logger"
	"github.com/agentskills/skillkit/pkg/services"
	"github.com/agentskills/skillkit/pkg/services/generative"
	"github.com/agentskills/skillkit/pkg/services/mcp"
	"github.com/agentskills/skillkit/pkg/skills"
	"github.com/agentskills/skillkit/pkg/store"
	"github.com/agentskills/skillkit/pkg/trends"
)

// backends holds the collaborators shared by every skill invocation.
type backends struct {
	router   *services.Router
	mcp      *mcp.Client
	store    *store.SQLiteStore
	detector *trends.Detector
}

// newBackends opens the outcome store and connects the service backends.
// MCP routes take precedence over the generative client for a capability
// both can serve. A generative client that cannot be built is skipped.
func newBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	outcomes, err := store.NewSQLiteStore(ctx, cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	b := &backends{
		router: services.NewRouter(),
		store:  outcomes,
	}

	gen, err := generative.NewClient(ctx, cfg.Generative, cfg.Retry)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("generative backend disabled")
	} else {
		b.router.Register(gen, gen.Capabilities()...)
	}

	if len(cfg.MCP.Servers) > 0 {
		mcpClient, err := mcp.NewClient(cfg.MCP, cfg.Retry)
		if err != nil {
			b.Close(ctx)
			return nil, errors.Wrap(err, "failed to configure mcp backend")
		}
		if err := mcpClient.Initialize(ctx); err != nil {
			mcpClient.Close(ctx)
			b.Close(ctx)
			return nil, err
		}
		b.mcp = mcpClient
		b.router.Register(mcpClient, mcpClient.Capabilities()...)
	}

	trendsConfig := cfg.Trends
	if trendsConfig.PollInterval <= 0 {
		trendsConfig.PollInterval = cfg.Dispatch.PollInterval
	}
	b.detector = trends.NewDetector(b.router, trendsConfig)

	logger.G(ctx).WithField("capabilities", b.router.Capabilities()).Info("service backends ready")
	return b, nil
}

// skillOptions turns the dispatch settings into invocation options.
func skillOptions(cfg *config.Config) []skills.Option {
	return []skills.Option{
		skills.WithTimeout(cfg.Dispatch.Timeout),
		skills.WithPollInterval(cfg.Dispatch.PollInterval),
	}
}

// Close releases the MCP connections and the database.
func (b *backends) Close(ctx context.Context) {
	if b.mcp != nil {
		b.mcp.Close(ctx)
	}
	if err := b.store.Close(); err != nil {
		logger.G(ctx).WithError(err).Error("failed to close outcome store")
	}
}
