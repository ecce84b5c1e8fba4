package book

import (
	"strconv"
	"testing"
)

func deltaFrame(from, to int64) DepthFrame {
	return DepthFrame{
		Bids:        []PriceLevel{{100, 1}},
		Asks:        []PriceLevel{{101, 1}},
		FromVersion: strconv.FormatInt(from, 10),
		ToVersion:   strconv.FormatInt(to, 10),
	}
}

func TestDeriveUpdateID(t *testing.T) {
	cases := []struct {
		name  string
		frame DepthFrame
		want  int64
	}{
		{"toVersion wins", DepthFrame{FromVersion: "5", ToVersion: "7"}, 7},
		{"fromVersion fallback", DepthFrame{FromVersion: "5"}, 5},
		{"legacy field fallback", DepthFrame{UpdateID: 3}, 3},
		{"nothing", DepthFrame{}, 0},
		{"non-numeric toVersion", DepthFrame{FromVersion: "5", ToVersion: "abc"}, 5},
	}

	for _, c := range cases {
		if got := DeriveUpdateID(c.frame); got != c.want {
			t.Errorf("%s: DeriveUpdateID = %d, want %d", c.name, got, c.want)
		}
	}
}

func TestVersionGate_FirstFrameBoundaries(t *testing.T) {
	cases := []struct {
		name         string
		from         int64
		wantAccept   bool
		wantSnapshot int64 // expected snapshotVersion after the check
	}{
		{"contiguous", 1001, true, 1000},
		{"gap exactly 5000", 6001, true, 6000},
		{"gap 5001 rejected", 6002, false, 1000},
		{"behind by 100", 901, true, 1000},
		{"behind by 101 rejected", 900, false, 1000},
		{"moderate gap 149", 1150, true, 1149},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var gate VersionGate
			gate.NoteSnapshot(1000)

			got := gate.CheckContinuity(deltaFrame(c.from, c.from+1))
			if got != c.wantAccept {
				t.Fatalf("CheckContinuity(from=%d) = %v, want %v", c.from, got, c.wantAccept)
			}
			if gate.SnapshotVersion() != c.wantSnapshot {
				t.Errorf("snapshotVersion = %d, want %d", gate.SnapshotVersion(), c.wantSnapshot)
			}
		})
	}
}

func TestVersionGate_SubsequentFrameBoundaries(t *testing.T) {
	cases := []struct {
		name       string
		from       int64
		wantAccept bool
		wantLastTo int64 // after check, before commit
	}{
		{"contiguous", 1152, true, 1151},
		{"gap exactly 100", 1252, true, 1151},
		{"gap 101 realigns", 1253, true, 1252},
		{"behind by 100", 1052, true, 1151},
		{"behind by 101 rejected", 1051, false, 1151},
		{"far behind", 900, false, 1151},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var gate VersionGate
			gate.NoteSnapshot(1000)
			gate.Commit("1151", 1151)

			got := gate.CheckContinuity(deltaFrame(c.from, c.from+1))
			if got != c.wantAccept {
				t.Fatalf("CheckContinuity(from=%d) = %v, want %v", c.from, got, c.wantAccept)
			}
			lastTo, ok := gate.LastToVersion()
			if !ok {
				t.Fatal("lastToVersion unset")
			}
			if lastTo != c.wantLastTo {
				t.Errorf("lastToVersion = %d, want %d", lastTo, c.wantLastTo)
			}
		})
	}
}

func TestVersionGate_MissingMarkersBypassCheck(t *testing.T) {
	var gate VersionGate
	gate.NoteSnapshot(1000)

	frames := []DepthFrame{
		{FromVersion: "999999"},            // no toVersion
		{ToVersion: "999999"},              // no fromVersion
		{},                                 // neither
		{FromVersion: "x", ToVersion: "y"}, // unparseable
	}
	for i, f := range frames {
		if !gate.CheckContinuity(f) {
			t.Errorf("frame %d should bypass the continuity check", i)
		}
	}
}

func TestVersionGate_NoSnapshotAdoptsBaseline(t *testing.T) {
	var gate VersionGate

	if !gate.CheckContinuity(deltaFrame(500, 501)) {
		t.Fatal("frame should be accepted with no snapshot reference")
	}
	if gate.SnapshotVersion() != 499 {
		t.Errorf("snapshotVersion = %d, want 499", gate.SnapshotVersion())
	}
}

func TestVersionGate_CommitFallsBackToUpdateID(t *testing.T) {
	var gate VersionGate
	gate.NoteSnapshot(10)

	gate.Commit("", 42)
	lastTo, ok := gate.LastToVersion()
	if !ok || lastTo != 42 {
		t.Errorf("lastToVersion = %d/%v, want 42/true", lastTo, ok)
	}

	// Zero update id leaves the cursor unchanged.
	gate.Commit("", 0)
	lastTo, _ = gate.LastToVersion()
	if lastTo != 42 {
		t.Errorf("lastToVersion = %d, want unchanged 42", lastTo)
	}
}
