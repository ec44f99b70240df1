package annotate

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path"
	"path/filepath"

	"prelabel/internal/logger"

	"github.com/antoineross/supabase-go"
	"github.com/cockroachdb/errors"
	storage_go "github.com/supabase-community/storage-go"
)

// Archive keeps a JSON copy of every delivery, in Supabase storage when
// configured and under the local data directory otherwise.
type Archive struct {
	supabaseClient *supabase.Client
	bucket         string
	dataDir        string
	production     bool
	log            *logger.Logger
}

type ArchiveConfig struct {
	SupabaseURL        string
	SupabaseServiceKey string
	Bucket             string
	DataDir            string
	Production         bool
}

func NewArchive(cfg ArchiveConfig) (*Archive, error) {
	a := &Archive{bucket: cfg.Bucket, dataDir: cfg.DataDir, production: cfg.Production, log: logger.New("Archive")}
	if cfg.Production && (cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" || cfg.Bucket == "") {
		return nil, errors.New("production environment requires Supabase configuration: NEXT_PUBLIC_SUPABASE_URL, SUPABASE_SERVICE_ROLE_KEY, and SUPABASE_STORAGE_BUCKET must be set")
	}
	if cfg.SupabaseURL != "" && cfg.SupabaseServiceKey != "" {
		client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, nil)
		if err != nil {
			if cfg.Production {
				return nil, errors.Wrap(err, "failed to initialize Supabase client in production")
			}
			a.log.LogWarnf("failed to initialize Supabase client: %v", err)
		} else {
			a.supabaseClient = client
		}
	}
	return a, nil
}

// objectPath is the bucket-relative path of a delivery.
func objectPath(d Delivery) string {
	return path.Join("predictions", safeName(d.JobID), safeName(d.TaskID)+".json")
}

func safeName(s string) string {
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return filepath.Base(filepath.Clean("/" + s))
}

// Deliver stores d. The Supabase client takes no context, so ctx is only
// checked before each write.
func (a *Archive) Deliver(ctx context.Context, d Delivery) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode delivery")
	}
	key := objectPath(d)
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "archive delivery")
	}

	if a.supabaseClient != nil && a.bucket != "" {
		contentType := "application/json"
		upsert := true
		_, err := a.supabaseClient.Storage.UploadFile(a.bucket, key, bytes.NewReader(data), storage_go.FileOptions{ContentType: &contentType, Upsert: &upsert})
		if err == nil {
			return nil
		}
		a.log.LogWarnf("Supabase upload failed: %v", err)
		if a.production {
			return errors.Wrap(err, "failed to upload delivery to Supabase storage in production")
		}
	} else if a.production {
		return errors.New("supabase storage is required in production environment")
	}

	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "archive delivery")
	}
	local := filepath.Join(a.dataDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return err
	}
	return os.WriteFile(local, data, 0o644)
}
