package mainthreadtest_test

import (
	"context"
	"testing"
	"time"

	"github.com/joeycumines/go-mainthread"
	"github.com/joeycumines/go-mainthread/mainthreadtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	mainthreadtest.Main(m, mainthread.WithMetrics(true))
}

func TestExecutor(t *testing.T) {
	e := mainthreadtest.Executor(t)
	assert.True(t, mainthread.Started())
	assert.False(t, mainthread.IsMainThread())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	onMain, err := mainthread.Call(ctx, e, mainthread.IsMainThread)
	require.NoError(t, err)
	assert.True(t, onMain)
	assert.NotZero(t, e.Metrics().Executed)
}
