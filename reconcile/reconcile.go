// Package reconcile computes the action set needed to bring a local vault
// tree and a remote tree into agreement. The policy is last-writer-wins:
// the side performing the sync always treats its local copy as
// authoritative for files that differ. No timestamps or vector clocks are
// consulted, so the order of sync passes, not actual edit recency,
// determines the winner. That is a deliberate simplicity trade-off.
//
// Deletions propagate asymmetrically: a path that disappeared locally is
// deleted remotely (detected against the previous remote snapshot), but a
// path deleted remotely by another device is re-uploaded rather than
// deleted locally, because a remote absence is indistinguishable from a
// local file the remote has never seen. This mirrors the engine's
// historical behavior and is preserved intentionally; see DESIGN.md.
package reconcile

import (
	"sort"

	"github.com/OpenParachutePBC/parachute-sub000/snapshot"
)

// Op identifies the transfer a single Action performs.
type Op int

const (
	// OpUpload sends the local copy to the remote.
	OpUpload Op = iota

	// OpDownload fetches the remote copy to the local tree.
	OpDownload

	// OpDeleteRemote removes the path from the remote tree.
	OpDeleteRemote
)

// String returns a human-readable representation of the operation.
func (o Op) String() string {
	switch o {
	case OpUpload:
		return "upload"
	case OpDownload:
		return "download"
	case OpDeleteRemote:
		return "delete-remote"
	default:
		return "unknown"
	}
}

// Action is one transfer the executing backend must perform.
type Action struct {
	Op   Op
	Path string
}

// Result aggregates what one reconciliation pass accomplished. It is
// produced once per pass and consumed by the orchestrator to update the
// observable sync state.
type Result struct {
	Uploaded   int    `json:"uploaded"`
	Downloaded int    `json:"downloaded"`
	Deleted    int    `json:"deleted"`
	Err        string `json:"error,omitempty"`
}

// Plan computes the action set for one pass:
//
//   - present locally, absent remotely: upload
//   - present remotely, absent locally, and unknown to the previous remote
//     snapshot: download
//   - present in both with differing digests: upload (local wins)
//   - present in the previous remote snapshot but now absent locally:
//     delete remotely
//   - identical digests on both sides: no action
//
// prevRemote may be nil on a first pass; deletion propagation is then
// skipped because there is no evidence the local side ever had the file.
// The returned actions are ordered deterministically by operation then path.
func Plan(local, remote, prevRemote snapshot.Snapshot) []Action {
	var actions []Action

	for _, p := range local.Paths() {
		remoteHash, onRemote := remote[p]
		switch {
		case !onRemote:
			actions = append(actions, Action{Op: OpUpload, Path: p})
		case remoteHash != local[p]:
			// Differing content: the syncing side's copy is authoritative.
			actions = append(actions, Action{Op: OpUpload, Path: p})
		}
	}

	for _, p := range remote.Paths() {
		if _, onLocal := local[p]; onLocal {
			continue
		}

		if _, known := prevRemote[p]; known {
			// The local side synced this path before and has since
			// removed it: propagate the deletion.
			actions = append(actions, Action{Op: OpDeleteRemote, Path: p})
			continue
		}

		actions = append(actions, Action{Op: OpDownload, Path: p})
	}

	sort.Slice(actions, func(i, j int) bool {
		if actions[i].Op != actions[j].Op {
			return actions[i].Op < actions[j].Op
		}
		return actions[i].Path < actions[j].Path
	})

	return actions
}

// Summarize tallies an action set into the counters a Result reports.
func Summarize(actions []Action) Result {
	var r Result
	for _, a := range actions {
		switch a.Op {
		case OpUpload:
			r.Uploaded++
		case OpDownload:
			r.Downloaded++
		case OpDeleteRemote:
			r.Deleted++
		}
	}
	return r
}
