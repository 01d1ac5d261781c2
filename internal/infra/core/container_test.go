package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingComp struct {
	*BaseComponent
	log     *[]string
	failErr error
}

func newRecording(name string, log *[]string, deps ...string) *recordingComp {
	return &recordingComp{BaseComponent: NewBaseComponent(name, deps...), log: log}
}

func (r *recordingComp) Start(ctx context.Context) error {
	if r.failErr != nil {
		return r.failErr
	}
	*r.log = append(*r.log, "start:"+r.Name())
	return r.BaseComponent.Start(ctx)
}

func (r *recordingComp) Stop(ctx context.Context) error {
	*r.log = append(*r.log, "stop:"+r.Name())
	return r.BaseComponent.Stop(ctx)
}

func TestOrderedRespectsDependencies(t *testing.T) {
	var log []string
	c := NewContainer()
	require.NoError(t, c.Register("svc", newRecording("svc", &log, "dao")))
	require.NoError(t, c.Register("dao", newRecording("dao", &log, "gorm")))
	require.NoError(t, c.Register("gorm", newRecording("gorm", &log)))

	ordered, err := c.Ordered()
	require.NoError(t, err)
	names := make([]string, 0, len(ordered))
	for _, comp := range ordered {
		names = append(names, comp.Name())
	}
	assert.Equal(t, []string{"gorm", "dao", "svc"}, names)
}

func TestOrderedReportsMissingAndCycles(t *testing.T) {
	var log []string
	c := NewContainer()
	require.NoError(t, c.Register("a", newRecording("a", &log, "missing")))
	_, err := c.Ordered()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a -> missing")

	c = NewContainer()
	require.NoError(t, c.Register("a", newRecording("a", &log, "b")))
	require.NoError(t, c.Register("b", newRecording("b", &log, "a")))
	_, err = c.Ordered()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular dependency")
}

func TestLifecycleStopsStartedOnFailure(t *testing.T) {
	var log []string
	c := NewContainer()
	require.NoError(t, c.Register("gorm", newRecording("gorm", &log)))
	broken := newRecording("dao", &log, "gorm")
	broken.failErr = errors.New("boom")
	require.NoError(t, c.Register("dao", broken))

	lm := NewLifecycleManager(c)
	err := lm.StartAll(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"start:gorm", "stop:gorm"}, log)
}

func TestResolveAs(t *testing.T) {
	var log []string
	c := NewContainer()
	require.NoError(t, c.Register("gorm", newRecording("gorm", &log)))

	got, err := ResolveAs[*recordingComp](c, "gorm")
	require.NoError(t, err)
	assert.Equal(t, "gorm", got.Name())

	_, err = ResolveAs[*BaseComponent](c, "gorm")
	assert.Error(t, err)
}
