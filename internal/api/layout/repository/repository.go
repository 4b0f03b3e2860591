package layoutRepository

import (
	"LayoutGolang/internal/entity"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type SQLExecutor interface {
	sqlx.ExtContext
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
	Rebind(query string) string
}

func New(db *sqlx.DB, log *logrus.Logger) Repository {
	return &repository{
		DB:  db,
		log: log,
	}
}

type repository struct {
	DB  *sqlx.DB
	log *logrus.Logger
}

type Repository interface {
	NewClient(tx bool) (Client, error)
}

func (r *repository) NewClient(tx bool) (Client, error) {
	var sqlExecutor SQLExecutor
	var commitFunc, rollbackFunc func() error

	sqlExecutor = r.DB

	if tx {
		var err error
		txx, err := r.DB.Beginx()
		if err != nil {
			return Client{}, err
		}

		sqlExecutor = txx
		commitFunc = txx.Commit
		rollbackFunc = txx.Rollback
	} else {
		commitFunc = func() error { return nil }
		rollbackFunc = func() error { return nil }
	}

	return Client{
		Runs:     &layoutRepository{q: sqlExecutor, log: r.log},
		Commit:   commitFunc,
		Rollback: rollbackFunc,
	}, nil
}

type Client struct {
	Runs interface {
		CreateRun(c context.Context, run entity.LayoutRun) error
		UpdateRunResult(c context.Context, run entity.LayoutRun) error
		GetRunByID(c context.Context, id string) (entity.LayoutRun, error)
		GetRuns(c context.Context, limit int, offset int) ([]entity.LayoutRun, error)
		CountRuns(c context.Context) (int, error)
		CreateCandidate(c context.Context, candidate entity.LayoutCandidate) error
		GetCandidatesByRunID(c context.Context, runID string) ([]entity.LayoutCandidate, error)
	}

	Commit   func() error
	Rollback func() error
}

type layoutRepository struct {
	q   SQLExecutor
	log *logrus.Logger
}
