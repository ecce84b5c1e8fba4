package book

import (
	"log/slog"
	"strconv"
)

// Continuity thresholds for the aggregated depth stream. Gaps up to
// smallGapLimit are normal network timing; anything past firstGapLimit right
// after a snapshot would rebuild the book from garbage.
const (
	firstGapLimit = 5000
	smallGapLimit = 100
)

// VersionGate enforces delta-stream continuity against a reference snapshot
// version. State advances only after the book mutation it describes has been
// applied; a rejected frame leaves the gate untouched.
//
// The gate is not internally synchronized: at most one transport goroutine
// processes frames for a symbol, which serializes all access.
type VersionGate struct {
	snapshotVersion int64
	lastToVersion   int64
	hasLastTo       bool
}

// NoteSnapshot records a freshly applied snapshot version and resets the
// per-stream continuity cursor.
func (g *VersionGate) NoteSnapshot(version int64) {
	g.snapshotVersion = version
	g.lastToVersion = 0
	g.hasLastTo = false
}

// Commit advances the continuity cursor after a successful book mutation.
// Frames without a toVersion fall back to the applied update id when it is
// positive; otherwise the cursor stays where it was.
func (g *VersionGate) Commit(toVersion string, updateID int64) {
	if v, err := strconv.ParseInt(toVersion, 10, 64); err == nil && toVersion != "" {
		g.lastToVersion = v
		g.hasLastTo = true
		return
	}
	if updateID > 0 {
		g.lastToVersion = updateID
		g.hasLastTo = true
	}
}

// SnapshotVersion returns the current reference version.
func (g *VersionGate) SnapshotVersion() int64 {
	return g.snapshotVersion
}

// LastToVersion returns the continuity cursor and whether it is set.
func (g *VersionGate) LastToVersion() (int64, bool) {
	return g.lastToVersion, g.hasLastTo
}

// DeriveUpdateID picks the id a frame should stamp onto the book:
// toVersion when parseable, else fromVersion, else the legacy UpdateID
// field, else 0.
func DeriveUpdateID(frame DepthFrame) int64 {
	if frame.ToVersion != "" {
		if v, err := strconv.ParseInt(frame.ToVersion, 10, 64); err == nil {
			return v
		}
	}
	if frame.FromVersion != "" {
		if v, err := strconv.ParseInt(frame.FromVersion, 10, 64); err == nil {
			return v
		}
	}
	return frame.UpdateID
}

// CheckContinuity evaluates the continuity policy for a frame carrying both
// fromVersion and toVersion. It returns false when the frame must be
// rejected; on acceptance any realignment has already been applied to the
// gate. Frames missing either marker bypass the check entirely.
func (g *VersionGate) CheckContinuity(frame DepthFrame) bool {
	if frame.FromVersion == "" || frame.ToVersion == "" {
		return true
	}
	from, err := strconv.ParseInt(frame.FromVersion, 10, 64)
	if err != nil {
		// Non-numeric versions cannot be validated; let the frame through.
		return true
	}

	if !g.hasLastTo {
		return g.checkFirstFrame(from)
	}
	return g.checkSubsequentFrame(from)
}

// checkFirstFrame handles the first stream frame after a snapshot.
func (g *VersionGate) checkFirstFrame(from int64) bool {
	if g.snapshotVersion <= 0 {
		// No snapshot reference yet; adopt this frame as the baseline.
		if from > 0 {
			g.snapshotVersion = from - 1
		}
		return true
	}

	expected := g.snapshotVersion + 1
	gap := from - expected

	switch {
	case gap > firstGapLimit:
		slog.Warn("[OrderBook] Skipping first stream frame: too far ahead of snapshot",
			"fromVersion", from, "snapshotVersion", g.snapshotVersion, "gap", gap)
		return false
	case gap > 0:
		if gap > 1000 {
			slog.Warn("[OrderBook] Large first-frame gap from snapshot; adjusting baseline",
				"gap", gap)
		}
		g.snapshotVersion = from - 1
		return true
	case gap < -smallGapLimit:
		slog.Warn("[OrderBook] Outdated first stream frame; ignoring",
			"fromVersion", from, "behind", -gap)
		return false
	default:
		// Zero or small negative gap is fine.
		return true
	}
}

// checkSubsequentFrame handles frames once the continuity cursor is set.
func (g *VersionGate) checkSubsequentFrame(from int64) bool {
	expected := g.lastToVersion + 1
	gap := from - expected

	switch {
	case gap > smallGapLimit:
		// Realign instead of rejecting so the stream cannot wedge the book
		// after a network hiccup. The book may be stale until it converges.
		slog.Warn("[OrderBook] Large version gap; realigning baseline",
			"gap", gap, "expected", expected, "fromVersion", from)
		g.lastToVersion = from - 1
		return true
	case gap < -smallGapLimit:
		slog.Warn("[OrderBook] Outdated frame; ignoring",
			"fromVersion", from, "expected", expected, "behind", -gap)
		return false
	default:
		return true
	}
}
