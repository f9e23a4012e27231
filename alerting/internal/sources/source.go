package sources

import (
	"context"

	"weaponwatch/alerting/internal/models"
)

// Source produces detection candidates on demand. Poll is called once per
// tick by a Runner and never concurrently with itself.
type Source interface {
	Name() string
	Poll(ctx context.Context) ([]models.Candidate, error)
}

// Committer is implemented by sources that track progress. Commit is called
// for each candidate the ingester processed without error.
type Committer interface {
	Commit(c models.Candidate)
}

// Ingester is the gate candidates are handed to.
type Ingester interface {
	Ingest(ctx context.Context, c models.Candidate) (models.Alert, bool, error)
}
