package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"igscout/internal/coverage"
	"igscout/internal/models"
	"igscout/internal/repository"
)

// ClientStore is the slice of the client repository the processor needs
type ClientStore interface {
	GetByID(ctx context.Context, clientID string) (*models.Client, error)
	UpdateFollowingSnapshot(ctx context.Context, clientID string, expectedCount int, syncedAt time.Time) error
}

// FollowingStore is the slice of the page repository the processor needs
type FollowingStore interface {
	ReplaceFollowing(ctx context.Context, clientID string, accounts []repository.DiscoveredAccount) (int, error)
}

// FollowingOutcome carries the structured job result together with the
// coverage report the worker loop uses for its retry decision.
type FollowingOutcome struct {
	Result models.FollowingScrapeResult
	Report coverage.Report
}

type FollowingProcessor struct {
	clients  ClientStore
	pages    FollowingStore
	provider ScrapeProvider
	log      *zap.SugaredLogger
}

func NewFollowingProcessor(clients ClientStore, pages FollowingStore, provider ScrapeProvider, log *zap.SugaredLogger) *FollowingProcessor {
	return &FollowingProcessor{
		clients:  clients,
		pages:    pages,
		provider: provider,
		log:      log,
	}
}

// Process executes one FOLLOWING_SCRAPE job: pulls the client's following
// list, stores the discovered pages and relationship edges, and verifies
// coverage against the provider's expected count. The retrieved data is
// stored even when coverage requires a retry; relationship writes are
// replace-shaped, so a partial run re-running later is harmless.
func (p *FollowingProcessor) Process(ctx context.Context, job *models.ScrapeJob) (*FollowingOutcome, error) {
	if job.ClientID == nil {
		return nil, fmt.Errorf("following scrape job %s has no client target", job.ID)
	}

	client, err := p.clients.GetByID(ctx, *job.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	p.log.Infof("Scraping following list for @%s (job %s, attempt %d)",
		client.Handle, job.ID, job.CoverageAttempt)

	res, err := p.provider.FollowingList(ctx, client.Handle)
	if err != nil {
		return nil, fmt.Errorf("provider call failed: %w", err)
	}
	if res.RawError != "" {
		return nil, fmt.Errorf("provider error: %s", res.RawError)
	}

	// The reported total is always recorded, even when this run's coverage
	// comes up short: it is the denominator for the next check.
	expected := client.ExpectedFollowingCount
	if res.ExpectedCount != nil {
		expected = *res.ExpectedCount
		if err := p.clients.UpdateFollowingSnapshot(ctx, client.ID, expected, time.Now()); err != nil {
			return nil, fmt.Errorf("failed to update following snapshot: %w", err)
		}
	}

	handles := make([]string, 0, len(res.Accounts))
	accounts := make([]repository.DiscoveredAccount, 0, len(res.Accounts))
	for _, a := range res.Accounts {
		if a.Handle == "" {
			continue
		}
		handles = append(handles, a.Handle)
		accounts = append(accounts, repository.DiscoveredAccount{
			Handle:      a.Handle,
			DisplayName: a.DisplayName,
			IsVerified:  a.IsVerified,
			IsPrivate:   a.IsPrivate,
		})
	}

	stored, err := p.pages.ReplaceFollowing(ctx, client.ID, accounts)
	if err != nil {
		return nil, fmt.Errorf("failed to store following results: %w", err)
	}

	report := coverage.Verify(expected, handles)

	p.log.Infof("Job %s: %d accounts stored, coverage %.1f%% (%s)",
		job.ID, stored, report.Ratio*100, report.Decision)

	return &FollowingOutcome{
		Result: models.FollowingScrapeResult{
			AccountsRetrieved: report.Retrieved,
			ExpectedCount:     report.Expected,
			CoverageRatio:     report.Ratio,
			Decision:          string(report.Decision),
			Shortfall:         report.Shortfall,
		},
		Report: report,
	}, nil
}
