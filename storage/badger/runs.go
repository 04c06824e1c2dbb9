// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/storage"
)

// RunReports implements storage.RunStore for BadgerDB.
type RunReports struct {
	backend *Backend
}

var _ storage.RunStore = (*RunReports)(nil)

// NewRunReports creates a new RunReports store.
func NewRunReports(backend *Backend) *RunReports {
	return &RunReports{
		backend: backend,
	}
}

// SaveRunReport persists the report, replacing the previous one.
func (r *RunReports) SaveRunReport(ctx context.Context, report *core.RunReport) error {
	value := storage.MarshalRunReport(report)
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set([]byte(runReportKey), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LastRunReport retrieves the stored report.
// Returns nil, nil if no run has been recorded.
func (r *RunReports) LastRunReport(ctx context.Context) (*core.RunReport, error) {
	var report *core.RunReport
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(runReportKey))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		return item.Value(func(val []byte) error {
			var unmarshalErr error
			report, unmarshalErr = storage.UnmarshalRunReport(val)
			return unmarshalErr
		})
	}, false)

	return report, err
}
