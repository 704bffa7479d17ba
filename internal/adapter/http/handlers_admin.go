package adapthttp

import (
	"io"
	"net/http"
	"strings"

	"weighttrack/internal/app"
)

// handleBackup streams a full copy of the store to holders of the backup
// secret.
func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	if header == "" {
		writeErrorCode(w, http.StatusUnauthorized, codeUnauthorized, "authorization header missing")
		return
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || s.backupSecret == "" || !app.ConstantTimeCompare(token, s.backupSecret) {
		s.writeError(w, r, app.ErrForbidden)
		return
	}

	name := s.backup.BackupFilename()
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)

	cw := &countingWriter{w: w}
	if err := s.backup.Backup(r.Context(), cw); err != nil {
		if cw.n == 0 {
			w.Header().Del("Content-Disposition")
			s.writeError(w, r, err)
			return
		}
		s.log.Errorw("backup aborted mid-stream", "bytes", cw.n, "error", err)
		return
	}
	s.log.Infow("backup served", "file", name, "bytes", cw.n)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
