package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/sourceplane/apexflow/internal/ctxlog"
	"github.com/sourceplane/apexflow/internal/model"
	"github.com/sourceplane/apexflow/internal/planner"
	"github.com/sourceplane/apexflow/internal/schema"
)

// Outbox hands manifests to the external dispatch service by dropping them
// into a directory it watches. A manifest is accepted once its file exists.
type Outbox struct {
	Dir  string
	Spec model.ManifestSpec
}

// Submit renders g and writes it to the outbox, returning the workflow id
func (o *Outbox) Submit(ctx context.Context, g *planner.Graph, meta model.Metadata) (string, error) {
	if o.Dir == "" {
		return "", model.Configf("no outbox directory configured for remote submission (set outbox_dir or use --debug)")
	}
	if err := g.Validate(); err != nil {
		return "", err
	}

	r := NewRenderer()
	m, err := r.RenderManifest(g, meta, o.Spec)
	if err != nil {
		return "", err
	}
	v, err := schema.Default()
	if err != nil {
		return "", err
	}
	if err := v.ValidateManifest(m); err != nil {
		return "", err
	}
	data, err := r.RenderJSON(m)
	if err != nil {
		return "", fmt.Errorf("failed to render manifest: %w", err)
	}

	id := uuid.NewString()
	if err := os.MkdirAll(o.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create outbox: %w", err)
	}
	path := filepath.Join(o.Dir, fmt.Sprintf("%s-%s.json", meta.Name, id))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("failed to publish manifest: %w", err)
	}

	ctxlog.FromContext(ctx).Info("workflow submitted", "workflow", id, "manifest", path)
	return id, nil
}
