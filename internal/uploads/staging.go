package uploads

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/clipstream/backend/internal/apperror"
	"github.com/clipstream/backend/internal/logging"
)

// maxFormMemory bounds how much of a multipart body is buffered in memory
// before spilling to the Go runtime's own temp files.
const maxFormMemory = 10 << 20

// StagedFile is one multipart file written to scratch storage.
type StagedFile struct {
	Field        string
	OriginalName string
	LocalPath    string
	ContentType  string
	Size         int64
	Rule         Rule
}

// Staged holds every scratch file created for one request together with the
// idempotent cleanup finalizer that removes them.
type Staged struct {
	Files map[string]StagedFile

	cleanup sync.Once
}

// Stager writes incoming multipart files to a local scratch directory.
type Stager struct {
	Dir string
}

// Stage parses the request's multipart form and writes each ruled field to
// scratch storage under a collision-resistant name. Validation runs before
// any file is accepted; a filter failure removes everything staged so far.
//
// The returned Staged must have Cleanup deferred by the caller. Watch should
// additionally be invoked so an aborted connection still triggers cleanup.
func (s Stager) Stage(r *http.Request, rules map[string]Rule) (*Staged, error) {
	if err := s.ensureWritable(); err != nil {
		return nil, apperror.Internal("upload storage unavailable", err)
	}

	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		return nil, apperror.BadRequest("invalid multipart request body")
	}

	staged := &Staged{Files: make(map[string]StagedFile)}

	for field, rule := range rules {
		header, ok := formFile(r, field)
		if !ok {
			if rule.Required {
				staged.Cleanup(r.Context())
				return nil, apperror.BadRequest(fmt.Sprintf("field %q: file is required", field))
			}
			continue
		}

		contentType := header.Header.Get("Content-Type")
		if err := rule.check(field, contentType, header.Size); err != nil {
			staged.Cleanup(r.Context())
			return nil, apperror.BadRequest(err.Error())
		}

		localPath, written, err := s.write(header)
		if err != nil {
			staged.Cleanup(r.Context())
			return nil, apperror.Internal("stage uploaded file", err)
		}

		staged.Files[field] = StagedFile{
			Field:        field,
			OriginalName: header.Filename,
			LocalPath:    localPath,
			ContentType:  contentType,
			Size:         written,
			Rule:         rule,
		}
	}

	return staged, nil
}

// Watch removes the staged files when the request context ends, covering
// client disconnects that bypass the handler's own deferred cleanup.
func (st *Staged) Watch(ctx context.Context) {
	go func() {
		<-ctx.Done()
		st.Cleanup(context.WithoutCancel(ctx))
	}()
}

// Cleanup deletes every staged file exactly once. Removal failures are
// logged, never surfaced; a file already gone counts as cleaned.
func (st *Staged) Cleanup(ctx context.Context) {
	if st == nil {
		return
	}
	st.cleanup.Do(func() {
		logger := logging.FromContext(ctx)
		for _, f := range st.Files {
			if err := os.Remove(f.LocalPath); err != nil && !os.IsNotExist(err) {
				logger.Warn("remove staged file", "path", f.LocalPath, "error", err)
			}
		}
	})
}

// File returns the staged file for a field, if present.
func (st *Staged) File(field string) (StagedFile, bool) {
	f, ok := st.Files[field]
	return f, ok
}

// ensureWritable probes the scratch directory, failing closed when it cannot
// be created or written to.
func (s Stager) ensureWritable() error {
	if strings.TrimSpace(s.Dir) == "" {
		return fmt.Errorf("scratch directory not configured")
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}
	probe := filepath.Join(s.Dir, ".probe-"+xid.New().String())
	f, err := os.Create(probe)
	if err != nil {
		return fmt.Errorf("scratch directory not writable: %w", err)
	}
	f.Close()
	return os.Remove(probe)
}

func (s Stager) write(header *multipart.FileHeader) (string, int64, error) {
	src, err := header.Open()
	if err != nil {
		return "", 0, fmt.Errorf("open multipart file: %w", err)
	}
	defer src.Close()

	name := fmt.Sprintf("%d-%s-%s", time.Now().UnixNano(), xid.New().String(), sanitizeName(header.Filename))
	localPath := filepath.Join(s.Dir, name)

	dst, err := os.Create(localPath)
	if err != nil {
		return "", 0, fmt.Errorf("create scratch file: %w", err)
	}

	written, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(localPath)
		return "", 0, fmt.Errorf("write scratch file: %w", err)
	}

	return localPath, written, nil
}

// formFile looks the field up without re-parsing the form.
func formFile(r *http.Request, field string) (*multipart.FileHeader, bool) {
	if r.MultipartForm == nil {
		return nil, false
	}
	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		return nil, false
	}
	return headers[0], true
}

// sanitizeName keeps the original file name recognizable while stripping
// path separators and shell-hostile characters.
func sanitizeName(name string) string {
	base := filepath.Base(name)
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return "upload"
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "upload"
	}
	return b.String()
}
