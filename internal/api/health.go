package api

import (
	"fmt"
	"net/http"
	"os"
	"runtime"

	"likoin.network/lkn/internal/types"
)

// @Title: Get Health
// @Route: GET /api/health
// @Description: Returns server health status
// @Response: {"status": "ok"}
func (s *Service) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// @Title: Get Version
// @Route: GET /api/version
// @Description: Returns the lkn version, node ID and last committed block
// @Response: {"version": "...", "status": "ok", "id": "...", "height": "12", "app_hash": "..."}
func (s *Service) HandleVersion(w http.ResponseWriter, r *http.Request) {
	hostname, _ := os.Hostname()
	height, hash := s.chain.LastCommit()

	response := map[string]string{
		"version":  types.Version,
		"build":    types.BuildTime,
		"status":   "ok",
		"hostname": hostname,
		"go_ver":   runtime.Version(),
		"os_arch":  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		"height":   fmt.Sprintf("%d", height),
		"app_hash": fmt.Sprintf("%X", hash),
	}
	if s.opts.NodeID != "" {
		response["id"] = s.opts.NodeID
	}

	s.writeJSON(w, http.StatusOK, response)
}
