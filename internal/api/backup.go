package api

import (
	"fmt"
	"net/http"
)

// @Title: Create Backup
// @Route: POST /api/backup
// @Description: Copy the node database into the backups directory, pruning the oldest copies
// @Response: {"status": "ok", "path": "..."}
func (s *Service) HandleBackup(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}

	backupPath, err := s.store.BackupCurrent(s.opts.MaxBackups)
	if err != nil {
		s.logger.Error(fmt.Sprintf("Failed to create backup: %v", err))
		s.writeError(w, http.StatusInternalServerError, "Failed to save backup")
		return
	}

	s.logger.Info(fmt.Sprintf("API: Created backup at: %s", backupPath))
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"path":   backupPath,
	})
}
