package hunter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/zaneriley/Home-Hunter/models"
	"github.com/zaneriley/Home-Hunter/storage"
)

// Archiver keeps raw page snapshots for later inspection, on disk and
// optionally in a bucket. Everything here is best-effort: a failed
// archive never fails a cycle.
type Archiver struct {
	dir      string
	uploader storage.Uploader
}

func NewArchiver(dir string, uploader storage.Uploader) *Archiver {
	if uploader == nil {
		uploader = storage.NoOpUploader{}
	}
	return &Archiver{dir: dir, uploader: uploader}
}

func (a *Archiver) Save(ctx context.Context, runUID string, doc *models.PageDocument) {
	if a.dir == "" {
		return
	}

	siteDir := filepath.Join(a.dir, doc.Site)
	if err := os.MkdirAll(siteDir, 0755); err != nil {
		log.Printf("Archive dir %s: %v", siteDir, err)
		return
	}

	stamp := doc.FetchedAt.UTC().Format("20060102T150405Z")
	base := fmt.Sprintf("%s_%s", stamp, runUID)

	htmlPath := filepath.Join(siteDir, base+".html")
	if err := os.WriteFile(htmlPath, []byte(doc.HTML), 0644); err != nil {
		log.Printf("Archive write %s: %v", htmlPath, err)
	} else {
		a.upload(ctx, path.Join(doc.Site, base+".html"), strings.NewReader(doc.HTML), "text/html")
	}

	if len(doc.Screenshot) > 0 {
		shotPath := filepath.Join(siteDir, base+".png")
		if err := os.WriteFile(shotPath, doc.Screenshot, 0644); err != nil {
			log.Printf("Archive write %s: %v", shotPath, err)
		} else {
			a.upload(ctx, path.Join(doc.Site, base+".png"), bytes.NewReader(doc.Screenshot), "image/png")
		}
	}
}

func (a *Archiver) upload(ctx context.Context, key string, data io.Reader, contentType string) {
	if err := a.uploader.Upload(ctx, key, data, contentType); err != nil {
		log.Printf("Archive upload %s: %v", key, err)
	}
}
