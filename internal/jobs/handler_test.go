package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/altcredit/internal/loader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loaderFunc func(ctx context.Context, source loader.Source, mode loader.Mode) (*loader.Result, error)

func (f loaderFunc) Load(ctx context.Context, source loader.Source, mode loader.Mode) (*loader.Result, error) {
	return f(ctx, source, mode)
}

func TestNewLoadJob(t *testing.T) {
	job, err := NewLoadJob("nessie", "")
	require.NoError(t, err)
	assert.Equal(t, "nessie", job.Source)
	assert.Equal(t, "append", job.Mode)

	_, err = NewLoadJob("plaid", "append")
	assert.Error(t, err)
	_, err = NewLoadJob("knot", "upsert")
	assert.Error(t, err)
}

func TestLoadHandler(t *testing.T) {
	var gotSource loader.Source
	var gotMode loader.Mode
	h := LoadHandler(loaderFunc(func(_ context.Context, s loader.Source, m loader.Mode) (*loader.Result, error) {
		gotSource, gotMode = s, m
		return &loader.Result{Transactions: 3, Products: 7, Archived: []string{"a", "b"}, FailedMerchants: []string{"Uber Eats"}}, nil
	}))

	job := &LoadJob{JobID: "j1", Source: "knot", Mode: "replace"}
	require.NoError(t, h(context.Background(), job))
	assert.Equal(t, loader.SourceKnot, gotSource)
	assert.Equal(t, loader.ModeReplace, gotMode)
	assert.Equal(t, &LoadCounts{Transactions: 3, Products: 7, Archived: 2, FailedMerchants: []string{"Uber Eats"}}, job.Result)
}

func TestLoadHandler_Error(t *testing.T) {
	boom := errors.New("boom")
	h := LoadHandler(loaderFunc(func(context.Context, loader.Source, loader.Mode) (*loader.Result, error) {
		return nil, boom
	}))

	job := &LoadJob{JobID: "j2", Source: "nessie"}
	err := h(context.Background(), job)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "j2")
	assert.Nil(t, job.Result)

	assert.Error(t, h(context.Background(), &LoadJob{Source: "bogus"}))
}
