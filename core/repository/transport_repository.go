package repository

import (
	"database/sql"
	"fmt"

	"github.com/Ccintegration/SAP-IS-CICD/core/models"
)

// TransportRepository reads transport-release metadata. The tables are
// maintained by the transport tooling; this service only queries them.
type TransportRepository struct {
	db *DB
}

// NewTransportRepository creates a new transport repository.
func NewTransportRepository(db *DB) *TransportRepository {
	return &TransportRepository{db: db}
}

const transportSelect = `
	SELECT
		tr.TRANSPORT_ID,
		tr.TRANSPORT_NAME,
		COALESCE(tr.DESCRIPTION, ''),
		tr.STATUS,
		tr.CREATED_DATE,
		COALESCE(tr.CREATED_BY, ''),
		tr.UPDATED_DATE,
		COALESCE(tr.UPDATED_BY, ''),
		COALESCE(tr.TARGET_SYSTEM, ''),
		COUNT(ta.ARTIFACT_ID)
	FROM TRANSPORT_PACKAGES tr
	LEFT JOIN TRANSPORT_ARTIFACTS ta ON tr.TRANSPORT_ID = ta.TRANSPORT_ID
`

const transportGroupBy = `
	GROUP BY tr.TRANSPORT_ID, tr.TRANSPORT_NAME, tr.DESCRIPTION, tr.STATUS,
		tr.CREATED_DATE, tr.CREATED_BY, tr.UPDATED_DATE, tr.UPDATED_BY, tr.TARGET_SYSTEM
`

func scanTransport(row interface{ Scan(...interface{}) error }) (*models.TransportRelease, error) {
	var tr models.TransportRelease
	var modified sql.NullTime
	err := row.Scan(
		&tr.ID,
		&tr.Name,
		&tr.Description,
		&tr.Status,
		&tr.CreatedDate,
		&tr.CreatedBy,
		&modified,
		&tr.ModifiedBy,
		&tr.TargetEnvironment,
		&tr.TotalArtifacts,
	)
	if err != nil {
		return nil, err
	}
	if modified.Valid {
		tr.ModifiedDate = &modified.Time
	}
	tr.SourceEnvironment = "DEV"
	return &tr, nil
}

// List returns every transport release with its artifact count, newest first.
func (r *TransportRepository) List() ([]*models.TransportRelease, error) {
	rows, err := r.db.Query(transportSelect + transportGroupBy + " ORDER BY tr.CREATED_DATE DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var releases []*models.TransportRelease
	for rows.Next() {
		tr, err := scanTransport(rows)
		if err != nil {
			return nil, err
		}
		releases = append(releases, tr)
	}
	return releases, rows.Err()
}

// Get returns one transport release by id.
func (r *TransportRepository) Get(id string) (*models.TransportRelease, error) {
	row := r.db.QueryRow(transportSelect+" WHERE tr.TRANSPORT_ID = $1 "+transportGroupBy, id)
	tr, err := scanTransport(row)
	if err != nil {
		return nil, fmt.Errorf("transport release %s: %w", id, err)
	}
	return tr, err
}

// ListArtifacts returns the artifacts of a transport release in deployment
// order.
func (r *TransportRepository) ListArtifacts(transportID string) ([]*models.TransportArtifact, error) {
	query := `
		SELECT
			ARTIFACT_ID,
			TRANSPORT_ID,
			IFLOW_ID,
			IFLOW_NAME,
			COALESCE(PACKAGE_ID, ''),
			COALESCE(PACKAGE_NAME, ''),
			IFLOW_VERSION,
			COALESCE(STATUS, ''),
			ADDED_DATE
		FROM TRANSPORT_ARTIFACTS
		WHERE TRANSPORT_ID = $1
		ORDER BY ARTIFACT_ID ASC
	`

	rows, err := r.db.Query(query, transportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []*models.TransportArtifact
	for rows.Next() {
		var ta models.TransportArtifact
		var added sql.NullTime
		err := rows.Scan(
			&ta.ID,
			&ta.TransportReleaseID,
			&ta.IFlowID,
			&ta.IFlowName,
			&ta.PackageID,
			&ta.PackageName,
			&ta.Version,
			&ta.Status,
			&added,
		)
		if err != nil {
			return nil, err
		}
		if added.Valid {
			ta.CreatedDate = &added.Time
		}
		ta.DeploymentOrder = ta.ID
		artifacts = append(artifacts, &ta)
	}
	return artifacts, rows.Err()
}
