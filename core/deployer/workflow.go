package deployer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Ccintegration/SAP-IS-CICD/core/models"
)

// TenantAPI is the set of remote operations the workflow needs from a tenant
// client. Satisfied by *sap.Client.
type TenantAPI interface {
	Tenant() string
	FetchArtifact(ctx context.Context, id, version string) ([]byte, error)
	PackageExists(ctx context.Context, id string) (bool, error)
	GetPackage(ctx context.Context, id string) (*models.IntegrationPackage, error)
	CreatePackage(ctx context.Context, pkg *models.IntegrationPackage) error
	IFlowExists(ctx context.Context, id, version string) (bool, error)
	UploadIFlow(ctx context.Context, id, version, packageID string, content []byte, name string) error
	UpdateIFlow(ctx context.Context, id, version, packageID string, content []byte, name string) error
	BatchUpdateConfig(ctx context.Context, id, version string, rows []models.ConfigParameter) error
	Deploy(ctx context.Context, id, version string) models.DeployResult
}

// ConfigResolver looks up previously saved configuration rows for an
// artifact version in a target environment.
type ConfigResolver interface {
	Resolve(iflowID, version, env string) ([]models.ConfigParameter, error)
}

// workflow drives one artifact through fetch, package reconciliation,
// upload, configure and deploy. It owns its progress record exclusively and
// records every phase transition before starting the next phase.
type workflow struct {
	source  TenantAPI
	target  TenantAPI
	configs ConfigResolver
	env     string
	sess    *models.DeploymentSession
	art     *models.ArtifactProgress
	log     zerolog.Logger
}

func (w *workflow) run(ctx context.Context) {
	w.sess.Mutate(func() {
		now := time.Now().UTC()
		w.art.StartedAt = &now
		w.art.Status = models.ArtifactStatusInProgress
	})

	content, ok := w.fetchPhase(ctx)
	if !ok {
		return
	}
	if !w.packagePhase(ctx) {
		return
	}
	if !w.uploadPhase(ctx, content) {
		return
	}
	w.configurePhase(ctx)
	w.deployPhase(ctx)
}

// fetchPhase downloads the artifact binary from the source tenant.
func (w *workflow) fetchPhase(ctx context.Context) ([]byte, bool) {
	w.setUpload(models.PhaseFetching, 10, "Fetching artifact from "+w.source.Tenant())

	content, err := w.source.FetchArtifact(ctx, w.art.IFlowID, w.art.Version)
	if err != nil {
		w.failUpload("failed to fetch artifact", err)
		return nil, false
	}
	return content, true
}

// packagePhase ensures the destination package exists, creating it from
// source metadata when absent.
func (w *workflow) packagePhase(ctx context.Context) bool {
	w.setUpload(models.PhaseCheckingPackage, 30, "Checking destination package "+w.art.PackageID)

	exists, err := w.target.PackageExists(ctx, w.art.PackageID)
	if err != nil {
		w.failUpload("failed to check destination package", err)
		return false
	}
	if exists {
		return true
	}

	w.setUpload(models.PhaseCreatingPackage, 45, "Creating package "+w.art.PackageID)

	pkg, err := w.source.GetPackage(ctx, w.art.PackageID)
	if err != nil {
		w.failUpload("failed to read source package details", err)
		return false
	}
	if err := w.target.CreatePackage(ctx, pkg); err != nil {
		w.failUpload("failed to create destination package", err)
		return false
	}
	return true
}

// uploadPhase creates or replaces the artifact on the destination tenant.
func (w *workflow) uploadPhase(ctx context.Context, content []byte) bool {
	exists, err := w.target.IFlowExists(ctx, w.art.IFlowID, w.art.Version)
	if err != nil {
		w.failUpload("failed to check destination artifact", err)
		return false
	}

	if exists {
		w.setUpload(models.PhaseUpdating, 60, "Updating existing artifact")
		err = w.target.UpdateIFlow(ctx, w.art.IFlowID, w.art.Version, w.art.PackageID, content, w.art.Name)
	} else {
		w.setUpload(models.PhaseUploading, 60, "Uploading new artifact")
		err = w.target.UploadIFlow(ctx, w.art.IFlowID, w.art.Version, w.art.PackageID, content, w.art.Name)
	}
	if err != nil {
		w.failUpload("failed to upload artifact", err)
		return false
	}

	w.sess.Mutate(func() {
		w.art.UploadStatus = models.PhaseCompleted
		w.art.UploadPercent = 100
		w.art.Message = "Artifact uploaded"
	})
	return true
}

// configurePhase reapplies saved configuration parameters. Missing rows and
// remote update failures both mark the phase failed but do not stop the
// workflow; deployment still proceeds.
func (w *workflow) configurePhase(ctx context.Context) {
	w.sess.Mutate(func() {
		w.art.ConfigureStatus = models.PhaseConfiguring
		w.art.ConfigurePercent = 50
		w.art.Message = "Applying configuration parameters"
	})

	rows, err := w.configs.Resolve(w.art.IFlowID, w.art.Version, w.env)
	if err != nil {
		w.log.Warn().Err(err).Msg("configuration lookup failed")
		w.sess.Mutate(func() {
			w.art.ConfigureStatus = models.PhaseFailed
			w.art.Message = "configuration lookup failed: " + err.Error()
		})
		return
	}
	if len(rows) == 0 {
		w.sess.Mutate(func() {
			w.art.ConfigureStatus = models.PhaseFailed
			w.art.Message = "no configuration parameters found"
		})
		return
	}

	if err := w.target.BatchUpdateConfig(ctx, w.art.IFlowID, w.art.Version, rows); err != nil {
		w.log.Warn().Err(err).Msg("batch configuration update failed")
		w.sess.Mutate(func() {
			w.art.ConfigureStatus = models.PhaseFailed
			w.art.Message = err.Error()
		})
		return
	}

	w.sess.Mutate(func() {
		w.art.ConfigureStatus = models.PhaseCompleted
		w.art.ConfigurePercent = 100
		w.art.Message = fmt.Sprintf("Applied %d configuration parameters", len(rows))
	})
}

// deployPhase triggers the runtime deployment and settles the overall state.
// The artifact counts as completed only when all three phases completed, so
// a soft configure failure surfaces in the final status even after a
// successful deploy.
func (w *workflow) deployPhase(ctx context.Context) {
	var configWarning string
	w.sess.Mutate(func() {
		if w.art.ConfigureStatus != models.PhaseCompleted {
			configWarning = w.art.Message
		}
		w.art.DeployStatus = models.PhaseDeploying
		w.art.DeployPercent = 50
		w.art.Message = "Deploying to runtime"
	})

	result := w.target.Deploy(ctx, w.art.IFlowID, w.art.Version)
	if result.Status != models.DeployStatusDeployed {
		w.sess.Mutate(func() {
			now := time.Now().UTC()
			w.art.DeployStatus = models.PhaseFailed
			w.art.Status = models.ArtifactStatusFailed
			w.art.Message = result.Message
			w.art.Error = result.Message
			w.art.FinishedAt = &now
		})
		return
	}

	w.sess.Mutate(func() {
		now := time.Now().UTC()
		w.art.DeployStatus = models.PhaseCompleted
		w.art.DeployPercent = 100
		w.art.FinishedAt = &now
		if w.art.UploadStatus == models.PhaseCompleted && w.art.ConfigureStatus == models.PhaseCompleted {
			w.art.Status = models.ArtifactStatusCompleted
			w.art.Message = "Deployment completed"
		} else {
			w.art.Status = models.ArtifactStatusFailed
			w.art.Message = "Deployed with configuration warnings"
			w.art.Error = "deployed with configuration warnings: " + configWarning
		}
	})
}

func (w *workflow) setUpload(status models.PhaseStatus, percent int, msg string) {
	w.sess.Mutate(func() {
		w.art.UploadStatus = status
		w.art.UploadPercent = percent
		w.art.Message = msg
	})
}

// failUpload marks the upload phase and the whole artifact failed. No later
// phase runs after this.
func (w *workflow) failUpload(msg string, err error) {
	w.log.Error().Err(err).Str("iflow_id", w.art.IFlowID).Msg(msg)
	w.sess.Mutate(func() {
		now := time.Now().UTC()
		w.art.UploadStatus = models.PhaseFailed
		w.art.Status = models.ArtifactStatusFailed
		w.art.Message = msg
		w.art.Error = err.Error()
		w.art.FinishedAt = &now
	})
}
