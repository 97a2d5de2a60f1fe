package deployer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Ccintegration/SAP-IS-CICD/core/models"
)

// ClientFactory creates a tenant client for a named tenant.
type ClientFactory func(tenantName string) (TenantAPI, error)

// DeployArtifact identifies one artifact in a batch deployment request.
type DeployArtifact struct {
	IFlowID     string `json:"iflow_id"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	PackageID   string `json:"package_id"`
	PackageName string `json:"package_name"`
}

// Executor runs batch deployments: one workflow goroutine per artifact, all
// joined before the session outcome is aggregated.
type Executor struct {
	store        *SessionStore
	configs      ConfigResolver
	clients      ClientFactory
	sourceTenant string
}

// NewExecutor wires the executor to its collaborators. sourceTenant names
// the tenant artifacts are promoted from.
func NewExecutor(store *SessionStore, configs ConfigResolver, clients ClientFactory, sourceTenant string) *Executor {
	return &Executor{
		store:        store,
		configs:      configs,
		clients:      clients,
		sourceTenant: sourceTenant,
	}
}

// Submit registers a new deployment session and schedules its execution as a
// detached background task. It returns as soon as the session is stored;
// remote failures surface later through polling, never here.
func (e *Executor) Submit(artifacts []DeployArtifact, targetTenant, deploymentID string) (*models.DeploymentSession, error) {
	if len(artifacts) == 0 {
		return nil, fmt.Errorf("no artifacts in deployment request")
	}
	if targetTenant == "" {
		return nil, fmt.Errorf("target tenant is required")
	}
	for i, a := range artifacts {
		if a.IFlowID == "" || a.Version == "" {
			return nil, fmt.Errorf("artifact %d is missing iflow_id or version", i)
		}
	}
	if deploymentID == "" {
		deploymentID = uuid.New().String()
	}

	progress := make([]*models.ArtifactProgress, len(artifacts))
	for i, a := range artifacts {
		progress[i] = &models.ArtifactProgress{
			IFlowID:     a.IFlowID,
			Name:        a.Name,
			Version:     a.Version,
			PackageID:   a.PackageID,
			PackageName: a.PackageName,
		}
	}

	sess := models.NewDeploymentSession(deploymentID, targetTenant, progress)
	if err := e.store.Create(sess); err != nil {
		return nil, err
	}

	go e.run(context.Background(), sess)

	return sess, nil
}

// run executes every artifact workflow concurrently and aggregates the
// session outcome once all of them settle.
func (e *Executor) run(ctx context.Context, sess *models.DeploymentSession) {
	logger := log.With().Str("deployment_id", sess.ID).Str("target", sess.TargetTenant).Logger()
	logger.Info().Int("artifacts", sess.Total).Msg("starting batch deployment")

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("deployment aggregation panicked")
			sess.Mutate(func() {
				now := time.Now().UTC()
				sess.Status = models.DeploymentStatusFailed
				sess.CompletedAt = &now
			})
		}
	}()

	sess.Mutate(func() { sess.Status = models.DeploymentStatusInProgress })

	source, err := e.clients(e.sourceTenant)
	if err != nil {
		e.failAll(sess, fmt.Errorf("source tenant %s: %w", e.sourceTenant, err))
		return
	}
	target, err := e.clients(sess.TargetTenant)
	if err != nil {
		e.failAll(sess, fmt.Errorf("target tenant %s: %w", sess.TargetTenant, err))
		return
	}

	var wg sync.WaitGroup
	for _, art := range sess.Artifacts {
		wg.Add(1)
		go func(art *models.ArtifactProgress) {
			defer wg.Done()
			w := &workflow{
				source:  source,
				target:  target,
				configs: e.configs,
				env:     sess.TargetTenant,
				sess:    sess,
				art:     art,
				log:     logger.With().Str("iflow_id", art.IFlowID).Logger(),
			}
			// A panicking workflow must not take sibling artifacts down.
			defer func() {
				if r := recover(); r != nil {
					logger.Error().Interface("panic", r).Str("iflow_id", art.IFlowID).Msg("workflow panicked")
					sess.Mutate(func() {
						now := time.Now().UTC()
						art.Status = models.ArtifactStatusFailed
						art.Error = fmt.Sprintf("internal error: %v", r)
						art.FinishedAt = &now
					})
				}
			}()
			w.run(ctx)
		}(art)
	}
	wg.Wait()

	e.aggregate(sess)

	sum := sess.Summary()
	logger.Info().
		Str("status", string(sum.Status)).
		Int("completed", sum.Completed).
		Int("failed", sum.Failed).
		Msg("batch deployment finished")
}

// aggregate computes the session status from the settled artifact outcomes:
// completed when nothing failed, failed when nothing succeeded, partial
// otherwise.
func (e *Executor) aggregate(sess *models.DeploymentSession) {
	sess.Mutate(func() {
		completed, failed := 0, 0
		for _, a := range sess.Artifacts {
			switch a.Status {
			case models.ArtifactStatusCompleted:
				completed++
			case models.ArtifactStatusFailed:
				failed++
			}
		}

		switch {
		case failed == 0:
			sess.Status = models.DeploymentStatusCompleted
		case completed == 0:
			sess.Status = models.DeploymentStatusFailed
		default:
			sess.Status = models.DeploymentStatusPartial
		}

		now := time.Now().UTC()
		sess.CompletedAt = &now
	})
}

func (e *Executor) failAll(sess *models.DeploymentSession, err error) {
	log.Error().Err(err).Str("deployment_id", sess.ID).Msg("deployment could not start")
	sess.Mutate(func() {
		now := time.Now().UTC()
		for _, a := range sess.Artifacts {
			a.Status = models.ArtifactStatusFailed
			a.Error = err.Error()
			a.FinishedAt = &now
		}
		sess.Status = models.DeploymentStatusFailed
		sess.CompletedAt = &now
	})
}
