package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/lanpos/internal/config"
	"github.com/dmitrijs2005/lanpos/internal/logging"
	"github.com/dmitrijs2005/lanpos/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.LoadDefaults()
	c.DatabaseDSN = "file:" + filepath.Join(t.TempDir(), "data", "pos.db")
	c.RegisterName = "Front"
	c.OpsAddr = ""
	return c
}

func TestNewApp_IdentitySurvivesRestart(t *testing.T) {
	ctx := context.Background()
	c := testConfig(t)

	a, err := NewApp(ctx, c, logging.NewDiscard())
	require.NoError(t, err)
	info := a.Info()
	assert.Equal(t, "Front", info.RegisterName)
	assert.Equal(t, string(models.ModeStandalone), info.Mode)
	require.NotEmpty(t, info.RegisterID)
	assert.Nil(t, a.Archiver)
	require.NoError(t, a.Close())

	b, err := NewApp(ctx, c, logging.NewDiscard())
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, info.RegisterID, b.Info().RegisterID)
	assert.Equal(t, info.RegisterID, b.Store.RegisterID())
}

func TestApp_LocalSaleQueuesWithoutPlatform(t *testing.T) {
	ctx := context.Background()
	a, err := NewApp(ctx, testConfig(t), logging.NewDiscard())
	require.NoError(t, err)
	defer a.Close()

	sess := models.Session{ID: "s1", UserID: "alice"}
	_, err = a.Operations().AddItem(ctx, sess, models.LineItem{ProductID: "sku-1", Quantity: 1, UnitPrice: decimal.NewFromInt(3)})
	require.NoError(t, err)
	out, err := a.Operations().Checkout(ctx, sess, "cash", decimal.NewFromInt(3))
	require.NoError(t, err)
	assert.True(t, out.Paid)

	n, err := a.Operations().PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	a, err := NewApp(context.Background(), testConfig(t), logging.NewDiscard())
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
