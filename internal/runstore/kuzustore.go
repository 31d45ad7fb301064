//go:build cgo

package runstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	kuzu "github.com/kuzudb/go-kuzu"

	"github.com/dusk-indust/courseforge/internal/orchestrator"
)

// KuzuStore implements orchestrator.StateStore on a KuzuDB database. It
// requires CGO because the go-kuzu driver wraps KuzuDB's C library.
type KuzuStore struct {
	db   *kuzu.Database
	conn *kuzu.Connection
}

// Compile-time check that KuzuStore satisfies StateStore.
var _ orchestrator.StateStore = (*KuzuStore)(nil)

// NewKuzuStore creates a KuzuStore backed by an in-memory KuzuDB instance.
func NewKuzuStore() (*KuzuStore, error) {
	return openKuzu(":memory:")
}

// NewKuzuFileStore creates a KuzuStore backed by a file-based KuzuDB at the
// given directory path, so run state survives across invocations. KuzuDB
// creates the leaf directory itself for new databases.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	return openKuzu(dbPath)
}

func openKuzu(path string) (*KuzuStore, error) {
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn}, nil
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// ---------- Schema setup ----------

// ddlStatements defines the Cypher DDL executed by InitSchema.
// Order matters: node tables must precede relationship tables.
var ddlStatements = []string{
	`CREATE NODE TABLE IF NOT EXISTS Run(
		run_id STRING,
		scope STRING,
		status STRING,
		units_total INT64,
		units_completed INT64,
		PRIMARY KEY(run_id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Entry(
		id STRING,
		run_id STRING,
		target_ref STRING,
		kind STRING,
		body STRING,
		visual_tags STRING,
		position INT64,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Binding(
		id STRING,
		run_id STRING,
		image_id INT64,
		storage_key STRING,
		description STRING,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Pending(
		run_id STRING,
		units STRING,
		PRIMARY KEY(run_id)
	)`,
	`CREATE REL TABLE IF NOT EXISTS HAS_ENTRY(FROM Run TO Entry)`,
	`CREATE REL TABLE IF NOT EXISTS HAS_BINDING(FROM Run TO Binding)`,
}

// InitSchema creates all node and relationship tables if they do not exist.
func (s *KuzuStore) InitSchema(_ context.Context) error {
	for _, stmt := range ddlStatements {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
		res.Close()
	}
	return nil
}

// ---------- StateStore implementation ----------

// SaveRun replaces the persisted state of a run: the Run node, its entries,
// and its bindings are deleted and recreated from the given state.
func (s *KuzuStore) SaveRun(_ context.Context, state *orchestrator.RunState) error {
	if err := s.deleteRun(state.RunID); err != nil {
		return err
	}

	err := s.exec(
		`CREATE (r:Run {
			run_id: $id,
			scope: $scope,
			status: $status,
			units_total: $total,
			units_completed: $done
		})`,
		map[string]any{
			"id":     state.RunID,
			"scope":  string(state.Scope),
			"status": string(state.Status),
			"total":  int64(state.UnitsTotal),
			"done":   int64(state.UnitsCompleted),
		},
	)
	if err != nil {
		return err
	}

	for pos, ref := range state.Order {
		entry, ok := state.Content[ref]
		if !ok {
			continue
		}
		tags, err := json.Marshal(entry.VisualTags)
		if err != nil {
			return fmt.Errorf("kuzu: encode visual tags: %w", err)
		}
		err = s.exec(
			`CREATE (e:Entry {
				id: $id,
				run_id: $run,
				target_ref: $ref,
				kind: $kind,
				body: $body,
				visual_tags: $tags,
				position: $pos
			})`,
			map[string]any{
				"id":   entryID(state.RunID, ref),
				"run":  state.RunID,
				"ref":  entry.TargetRef,
				"kind": entry.Kind,
				"body": entry.Body,
				"tags": string(tags),
				"pos":  int64(pos),
			},
		)
		if err != nil {
			return err
		}
		err = s.exec(
			`MATCH (r:Run {run_id: $run}), (e:Entry {id: $id})
			 CREATE (r)-[:HAS_ENTRY]->(e)`,
			map[string]any{"run": state.RunID, "id": entryID(state.RunID, ref)},
		)
		if err != nil {
			return err
		}
	}

	for _, b := range state.Bindings {
		err = s.exec(
			`CREATE (b:Binding {
				id: $id,
				run_id: $run,
				image_id: $img,
				storage_key: $key,
				description: $description
			})`,
			map[string]any{
				"id":          bindingID(state.RunID, b.ID),
				"run":         state.RunID,
				"img":         int64(b.ID),
				"key":         b.StorageKey,
				"description": b.Description,
			},
		)
		if err != nil {
			return err
		}
		err = s.exec(
			`MATCH (r:Run {run_id: $run}), (b:Binding {id: $id})
			 CREATE (r)-[:HAS_BINDING]->(b)`,
			map[string]any{"run": state.RunID, "id": bindingID(state.RunID, b.ID)},
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// LoadRun reads a run back by id. Returns nil (no error) when the run does
// not exist.
func (s *KuzuStore) LoadRun(_ context.Context, runID string) (*orchestrator.RunState, error) {
	rows, err := s.query(
		`MATCH (r:Run {run_id: $id})
		 RETURN r.scope, r.status, r.units_total, r.units_completed`,
		map[string]any{"id": runID},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	r := rows[0]

	state := orchestrator.NewRunState(runID, orchestrator.Scope(toString(r[0])), toInt(r[2]))
	state.Status = orchestrator.RunStatus(toString(r[1]))
	state.UnitsCompleted = toInt(r[3])

	entryRows, err := s.query(
		`MATCH (e:Entry {run_id: $run})
		 RETURN e.target_ref, e.kind, e.body, e.visual_tags, e.position
		 ORDER BY e.position`,
		map[string]any{"run": runID},
	)
	if err != nil {
		return nil, err
	}
	for _, er := range entryRows {
		entry := orchestrator.ContentEntry{
			TargetRef: toString(er[0]),
			Kind:      toString(er[1]),
			Body:      toString(er[2]),
		}
		if raw := toString(er[3]); raw != "" {
			if err := json.Unmarshal([]byte(raw), &entry.VisualTags); err != nil {
				return nil, fmt.Errorf("kuzu: decode visual tags: %w", err)
			}
		}
		state.Content[entry.TargetRef] = entry
		state.Order = append(state.Order, entry.TargetRef)
	}

	bindingRows, err := s.query(
		`MATCH (b:Binding {run_id: $run})
		 RETURN b.image_id, b.storage_key, b.description`,
		map[string]any{"run": runID},
	)
	if err != nil {
		return nil, err
	}
	for _, br := range bindingRows {
		b := orchestrator.ImageBinding{
			ID:          toInt(br[0]),
			StorageKey:  toString(br[1]),
			Description: toString(br[2]),
		}
		state.Bindings[b.ID] = b
	}
	return state, nil
}

// SaveContinuation records the pending units of a run as a JSON document.
// An empty continuation clears the record.
func (s *KuzuStore) SaveContinuation(_ context.Context, cont orchestrator.Continuation) error {
	if err := s.exec(
		"MATCH (p:Pending {run_id: $id}) DETACH DELETE p",
		map[string]any{"id": cont.RunID},
	); err != nil {
		return err
	}
	if cont.Empty() {
		return nil
	}
	units, err := json.Marshal(cont.Units)
	if err != nil {
		return fmt.Errorf("kuzu: encode continuation: %w", err)
	}
	return s.exec(
		"CREATE (p:Pending {run_id: $id, units: $units})",
		map[string]any{"id": cont.RunID, "units": string(units)},
	)
}

// LoadContinuation reads the pending continuation for a run. Returns an
// empty continuation when none is recorded.
func (s *KuzuStore) LoadContinuation(_ context.Context, runID string) (*orchestrator.Continuation, error) {
	rows, err := s.query(
		"MATCH (p:Pending {run_id: $id}) RETURN p.units",
		map[string]any{"id": runID},
	)
	if err != nil {
		return nil, err
	}
	cont := &orchestrator.Continuation{RunID: runID}
	if len(rows) == 0 {
		return cont, nil
	}
	if err := json.Unmarshal([]byte(toString(rows[0][0])), &cont.Units); err != nil {
		return nil, fmt.Errorf("kuzu: decode continuation: %w", err)
	}
	return cont, nil
}

// ListRuns returns all persisted run ids.
func (s *KuzuStore) ListRuns(context.Context) ([]string, error) {
	rows, err := s.query("MATCH (r:Run) RETURN r.run_id ORDER BY r.run_id", nil)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, toString(r[0]))
	}
	return ids, nil
}

// deleteRun removes a run and everything hanging off it.
func (s *KuzuStore) deleteRun(runID string) error {
	statements := []string{
		"MATCH (e:Entry {run_id: $id}) DETACH DELETE e",
		"MATCH (b:Binding {run_id: $id}) DETACH DELETE b",
		"MATCH (r:Run {run_id: $id}) DETACH DELETE r",
	}
	for _, stmt := range statements {
		if err := s.exec(stmt, map[string]any{"id": runID}); err != nil {
			return err
		}
	}
	return nil
}

func entryID(runID, ref string) string {
	return runID + ":" + ref
}

func bindingID(runID string, imageID int) string {
	return fmt.Sprintf("%s:%d", runID, imageID)
}

// ---------- Internal helpers ----------

// exec runs a parameterized Cypher statement that produces no result rows.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// query runs a parameterized Cypher statement and collects all result rows.
// Each row is a []any slice with values in column order.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int32:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
