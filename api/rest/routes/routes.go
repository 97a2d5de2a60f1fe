package routes

import (
	"github.com/gorilla/mux"

	"github.com/Ccintegration/SAP-IS-CICD/api/rest/handlers"
	"github.com/Ccintegration/SAP-IS-CICD/core/configstore"
	"github.com/Ccintegration/SAP-IS-CICD/core/deployer"
	"github.com/Ccintegration/SAP-IS-CICD/core/repository"
	"github.com/Ccintegration/SAP-IS-CICD/providers/sap"
)

// SetupRoutes configures all API routes.
func SetupRoutes(
	r *mux.Router,
	executor *deployer.Executor,
	sessions *deployer.SessionStore,
	source *sap.Client,
	configs *configstore.Store,
	transports *repository.TransportRepository,
) {
	deploymentHandler := handlers.NewDeploymentHandler(executor, sessions)
	sapHandler := handlers.NewSAPHandler(source)
	configHandler := handlers.NewConfigFileHandler(configs)

	api := r.PathPrefix("/api").Subrouter()

	// Batch deployment endpoints
	api.HandleFunc("/deployment/deploy", deploymentHandler.Deploy).Methods("POST")
	api.HandleFunc("/deployment/status/{deploymentId}", deploymentHandler.Status).Methods("GET")
	api.HandleFunc("/deployment/sessions", deploymentHandler.Sessions).Methods("GET")

	// Source tenant proxy endpoints. The fixed paths must be registered
	// before their wildcard siblings.
	api.HandleFunc("/sap/packages", sapHandler.GetPackages).Methods("GET")
	api.HandleFunc("/sap/packages/paginated", sapHandler.GetPackagesPaginated).Methods("GET")
	api.HandleFunc("/sap/packages/{packageId}", sapHandler.GetPackage).Methods("GET")
	api.HandleFunc("/sap/base-tenant-data", sapHandler.GetBaseTenantData).Methods("GET")
	api.HandleFunc("/sap/iflows", sapHandler.GetIFlows).Methods("GET")
	api.HandleFunc("/sap/iflows/{iflowId}/configurations", sapHandler.GetIFlowConfigurations).Methods("GET")
	api.HandleFunc("/sap/iflows/{iflowId}/resources", sapHandler.GetIFlowResources).Methods("GET")
	api.HandleFunc("/sap/iflows/{iflowId}", sapHandler.GetIFlowDetails).Methods("GET")
	api.HandleFunc("/sap/refresh-token", sapHandler.RefreshToken).Methods("POST")
	api.HandleFunc("/sap/token-status", sapHandler.TokenStatus).Methods("GET")
	api.HandleFunc("/tenants/test-connection", sapHandler.TestConnection).Methods("POST")

	// Saved configuration files
	api.HandleFunc("/save-iflow-configurations", configHandler.Save).Methods("POST")
	api.HandleFunc("/list-configuration-files", configHandler.List).Methods("GET")
	api.HandleFunc("/download-configuration-file/{filename}", configHandler.Download).Methods("GET")

	// Transport release lookups require the transport database
	if transports != nil {
		transportHandler := handlers.NewTransportHandler(transports)
		api.HandleFunc("/transports", transportHandler.List).Methods("GET")
		api.HandleFunc("/transports/{transportId}", transportHandler.Get).Methods("GET")
		api.HandleFunc("/transports/{transportId}/artifacts", transportHandler.ListArtifacts).Methods("GET")
	}
}
