package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/event-attendance/internal/config"
	"github.com/Shivanand-hulikatti/event-attendance/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	root := newRootCmd()

	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	assert.Equal(t, "serve", serve.Name())
	assert.NotNil(t, serve.Flags().Lookup("port"))

	down, _, err := root.Find([]string{"migrate", "down"})
	require.NoError(t, err)
	steps := down.Flags().Lookup("steps")
	require.NotNil(t, steps)
	assert.Equal(t, "1", steps.DefValue)
}

func TestMigrateDownRejectsZeroSteps(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"migrate", "down", "--steps", "0", "--env-file", t.TempDir() + "/missing.env"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps must be > 0")
}

func TestApplyLogFlags(t *testing.T) {
	t.Cleanup(func() { logLevel, logFormat = "", "" })

	cfg := config.LoggingConfig{Level: "info", Format: "json"}
	applyLogFlags(&cfg)
	assert.Equal(t, config.LoggingConfig{Level: "info", Format: "json"}, cfg)

	logLevel, logFormat = "debug", "console"
	applyLogFlags(&cfg)
	assert.Equal(t, config.LoggingConfig{Level: "debug", Format: "console"}, cfg)
}

func TestOpenMemoryBackend(t *testing.T) {
	cfg := config.Config{
		Storage:   config.StorageConfig{Driver: config.StorageMemory},
		Admission: config.AdmissionConfig{Timeout: time.Second},
	}
	store, err := openBackend(context.Background(), cfg, false, zerolog.Nop())
	require.NoError(t, err)
	defer store.close()

	ctx := context.Background()
	owner := model.Actor{ID: "owner", Email: "owner@example.com", Role: model.RoleOrganizer}
	require.NoError(t, store.actors.Create(ctx, owner, "hash"))
	require.NoError(t, store.events.Create(ctx, model.Event{ID: "e1", OwnerID: "owner", Capacity: 1, Date: "2026-01-01"}))

	view, err := store.attendance.SetStatus(ctx, "e1", "owner", model.StatusConfirmed, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, view.ConfirmedCount)

	_, err = openBackend(context.Background(), config.Config{Storage: config.StorageConfig{Driver: "sqlite"}}, false, zerolog.Nop())
	assert.Error(t, err)
}
