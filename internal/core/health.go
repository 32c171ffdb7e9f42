package core

import "net/http"

// healthResponse is the JSON response body for the health check endpoint.
type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
}

// HandleHealth reports process liveness and build metadata. The engine has no
// external dependencies that can go unhealthy while the process is up (the
// remote endpoint failing is normal degraded operation, not unhealthiness),
// so this is a constant-time check.
//
// This endpoint is public and is mounted at GET /health.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "healthy",
		Service: s.Config.Service,
		Version: s.Config.Build.Version,
		Commit:  s.Config.Build.Commit,
	}
	JSON(w, r, http.StatusOK, resp)
}
