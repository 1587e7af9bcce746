// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/checklist-fuser/internal/reconcile"
	"github.com/pdiddy/checklist-fuser/internal/store"
	"github.com/pdiddy/checklist-fuser/pkg/types"
)

// openStore opens the session database using the --data-dir flag, the
// store.data_dir config key, or the default, in that order.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	if dataDir == "" {
		dataDir = viper.GetString("store.data_dir")
	}
	if dataDir == "" {
		dataDir = "data"
	}
	return store.NewStore(types.StoreConfig{DataDir: dataDir})
}

// loadSession rebuilds a session's reconciliation engine from the
// cached documents and persisted records.
func loadSession(ctx context.Context, s *store.Store, sessionID string) (types.Session, *reconcile.Engine, types.Document, types.Document, error) {
	var doc1, doc2 types.Document

	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return types.Session{}, nil, doc1, doc2, err
	}

	d1, err := s.LoadCachedDocument(ctx, sess.Doc1Hash)
	if err != nil {
		return types.Session{}, nil, doc1, doc2, err
	}
	d2, err := s.LoadCachedDocument(ctx, sess.Doc2Hash)
	if err != nil {
		return types.Session{}, nil, doc1, doc2, err
	}
	if d1 == nil || d2 == nil {
		return types.Session{}, nil, doc1, doc2, fmt.Errorf("session %s references documents missing from the cache", sessionID)
	}

	records, err := s.LoadRecords(ctx, sessionID)
	if err != nil {
		return types.Session{}, nil, doc1, doc2, err
	}

	engine := reconcile.NewEngine(*d1, *d2)
	engine.Restore(records)
	return sess, engine, *d1, *d2, nil
}

// syncSession writes the engine's records and refreshed stats back to
// the store after an operation.
func syncSession(ctx context.Context, s *store.Store, sess types.Session, engine *reconcile.Engine) error {
	if err := s.SaveRecords(ctx, sess.ID, engine.Records()); err != nil {
		return err
	}
	sess.Stats = engine.Stats()
	return s.UpdateSession(ctx, sess)
}
