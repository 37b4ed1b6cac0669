package raft

import (
	"encoding/json"
	"fmt"
	"io"

	hraft "github.com/hashicorp/raft"
	"github.com/rs/zerolog"

	"github.com/cuemby/slotdb/internal/database"
	"github.com/cuemby/slotdb/internal/log"
	"github.com/cuemby/slotdb/internal/metrics"
	"github.com/cuemby/slotdb/internal/types"
)

// FSM adapts Database to hashicorp/raft's state-machine interface: Apply
// decodes and runs one committed Command using the same heap-then-WAL
// ordering as direct DML (§4.4), Snapshot/Restore round-trip the whole
// catalog+heap state through Database.Snapshot/Restore.
type FSM struct {
	db     *database.Database
	logger zerolog.Logger
}

func NewFSM(db *database.Database) *FSM {
	return &FSM{db: db, logger: log.WithComponent("raft")}
}

// Apply decodes log.Data as a Command and applies it, returning a
// CommandResponse (never an error — failures are carried in the
// response so every replica's state machine stays in lockstep even when
// a command fails, e.g. a duplicate primary key).
func (f *FSM) Apply(l *hraft.Log) interface{} {
	cmd, err := UnmarshalCommand(l.Data)
	if err != nil {
		return ErrorResponse(err)
	}

	resp := f.apply(cmd)
	metrics.RaftAppliedTotal.Inc()
	if resp.Kind == RespError {
		f.logger.Warn().Str("kind", string(cmd.Kind)).Str("table", cmd.Table).Str("error", resp.Message).Msg("raft apply failed")
	}
	return resp
}

func (f *FSM) apply(cmd Command) CommandResponse {
	switch cmd.Kind {
	case CmdInsert:
		rid, err := f.db.ApplyInsert(cmd.Table, cmd.DecodedRow().Values)
		if err != nil {
			return ErrorResponse(err)
		}
		return InsertResponse(rid)

	case CmdUpdate:
		if _, err := f.db.ApplyUpdate(cmd.Table, cmd.DecodedRID(), cmd.DecodedNewRow().Values); err != nil {
			return ErrorResponse(err)
		}
		return UpdateResponse(1)

	case CmdDelete:
		if err := f.db.ApplyDelete(cmd.Table, cmd.DecodedRID()); err != nil {
			return ErrorResponse(err)
		}
		return DeleteResponse(1)

	case CmdCreateTable:
		if _, err := f.db.ApplyCreateTable(cmd.Table, cmd.Columns, cmd.PrimaryKey); err != nil {
			return ErrorResponse(err)
		}
		return DDLResponse()

	case CmdDropTable:
		if err := f.db.ApplyDropTable(cmd.Table); err != nil {
			return ErrorResponse(err)
		}
		return DDLResponse()

	case CmdCreateIndex:
		if err := f.db.ApplyCreateIndex(cmd.IndexName, cmd.Table, cmd.Column); err != nil {
			return ErrorResponse(err)
		}
		return DDLResponse()

	case CmdDropIndex:
		if err := f.db.ApplyDropIndex(cmd.IndexName); err != nil {
			return ErrorResponse(err)
		}
		return DDLResponse()

	default:
		return ErrorResponse(fmt.Errorf("%w: unknown command kind %q", types.ErrRaft, cmd.Kind))
	}
}

// Snapshot captures the full catalog+heap state as the FSM snapshot
// payload. The underlying page files, catalog.json and WAL already
// durably persist this node's data independent of Raft; the snapshot
// exists so a joining or lagging follower can be caught up by
// installing one, per §4.12's "Installation overwrites in-memory state
// machine" contract.
func (f *FSM) Snapshot() (hraft.FSMSnapshot, error) {
	snap, err := f.db.Snapshot()
	if err != nil {
		return nil, err
	}
	return &fsmSnapshot{snap: snap}, nil
}

// Restore replaces the local catalog+heap state with the snapshot read
// from rc and truncates the local WAL, since the snapshot now subsumes
// every WAL record up to the index it represents.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	var snap database.Snapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return fmt.Errorf("%w: decode snapshot: %v", types.ErrRaft, err)
	}
	return f.db.Restore(snap)
}

type fsmSnapshot struct {
	snap database.Snapshot
}

func (s *fsmSnapshot) Persist(sink hraft.SnapshotSink) error {
	if err := json.NewEncoder(sink).Encode(s.snap); err != nil {
		sink.Cancel()
		return fmt.Errorf("%w: persist snapshot: %v", types.ErrRaft, err)
	}
	return sink.Close()
}

func (s *fsmSnapshot) Release() {}
