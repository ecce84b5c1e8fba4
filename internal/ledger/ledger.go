package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-json"

	"mexc_go/pkg/safe"
)

// quoteCapacityLimit bounds realized PnL to ±10^15 quote units.
const quoteCapacityLimit = int64(1e15)

// ErrOverflow is returned when ledger arithmetic would wrap. The accumulator
// cannot continue safely past this point.
var ErrOverflow = errors.New("ledger: integer overflow")

// Side of a fill.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Fill is one executed trade in fixed-point units (base/quote scaled by the
// configured powers of ten).
type Fill struct {
	ID       int64  `json:"id"`
	Time     int64  `json:"time"` // epoch ms
	Side     Side   `json:"side"`
	BaseQty  int64  `json:"base"`
	QuoteQty int64  `json:"quote"`
	FeeQty   int64  `json:"feeQty"`
	FeeAsset string `json:"feeAsset"`
	IsMaker  bool   `json:"isMaker"`
}

// State is the replayed position and realized PnL.
type State struct {
	PositionBase int64
	PositionCost int64
	RealizedPnL  int64
	LastTradeID  int64
}

// Config locates the journal and fixes the integer scales. Scales must stay
// stable across reloads or the journal becomes unreadable.
type Config struct {
	Path       string
	BaseScale  int64
	QuoteScale int64
}

// Ledger is the append-only fill journal plus its in-memory accumulator.
// Single-threaded by design: only the quoter touches it.
type Ledger struct {
	config  Config
	entries []Fill
	state   State
}

// New validates the configuration and creates an empty ledger.
func New(config Config) (*Ledger, error) {
	if config.Path == "" {
		return nil, errors.New("ledger: storage path not set")
	}
	if config.BaseScale <= 0 || config.QuoteScale <= 0 {
		return nil, errors.New("ledger: scales must be positive")
	}
	return &Ledger{config: config}, nil
}

// State returns a copy of the current accumulator.
func (l *Ledger) State() State {
	return l.state
}

// Load reads all journal records, skipping malformed lines, then rebuilds
// the state by replaying entries sorted by id. A missing journal yields an
// empty state.
func (l *Ledger) Load() (State, error) {
	l.entries = l.entries[:0]
	l.state = State{}

	if err := l.ensureDirectory(); err != nil {
		return State{}, err
	}

	file, err := os.Open(l.config.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return l.state, nil
		}
		return State{}, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var fill Fill
		if err := json.Unmarshal(line, &fill); err != nil {
			continue
		}
		if fill.Side != Sell {
			fill.Side = Buy
		}
		l.entries = append(l.entries, fill)
	}
	if err := scanner.Err(); err != nil {
		return State{}, err
	}

	if err := l.rebuild(); err != nil {
		return State{}, err
	}
	return l.state, nil
}

// Append persists the fill (one JSON record per line, sync best-effort) and
// then folds it into the accumulator. Arithmetic overflow surfaces as
// ErrOverflow.
func (l *Ledger) Append(fill Fill) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrOverflow, r)
		}
	}()

	if err := l.persist(fill); err != nil {
		return err
	}
	l.entries = append(l.entries, fill)
	l.apply(fill)
	return nil
}

// apply folds one fill into the accumulator. Buys add to the position at
// cost; sells consume the position at average cost, realizing the
// difference. Sell quantity beyond the held position is absorbed — the
// position never goes negative.
func (l *Ledger) apply(fill Fill) {
	if fill.Side == Buy {
		l.state.PositionBase = safe.Add(l.state.PositionBase, fill.BaseQty)
		l.state.PositionCost = safe.Add(l.state.PositionCost, fill.QuoteQty)
	} else {
		if fill.BaseQty > l.state.PositionBase {
			slog.Warn("[Ledger] Sell exceeds held position; excess absorbed",
				"fill_id", fill.ID,
				"fill_base", fill.BaseQty,
				"position_base", l.state.PositionBase)
		}
		remaining := fill.BaseQty
		for remaining > 0 && l.state.PositionBase > 0 {
			positionBase := l.state.PositionBase
			if positionBase < 1 {
				positionBase = 1
			}
			avgCost := float64(l.state.PositionCost) / float64(positionBase)

			matched := l.state.PositionBase
			if remaining < matched {
				matched = remaining
			}

			costReduction := int64(math.Round(avgCost * float64(matched)))
			fillRatio := float64(matched) / float64(fill.BaseQty)
			proceeds := int64(math.Round(float64(fill.QuoteQty) * fillRatio))

			l.state.PositionBase -= matched
			l.state.PositionCost -= costReduction
			if l.state.PositionCost < 0 {
				l.state.PositionCost = 0
			}
			l.state.RealizedPnL = safe.Add(l.state.RealizedPnL, proceeds-costReduction)

			remaining -= matched
		}
	}

	if fill.ID > l.state.LastTradeID {
		l.state.LastTradeID = fill.ID
	}
	l.state.RealizedPnL = safe.Clamp(l.state.RealizedPnL, -quoteCapacityLimit, quoteCapacityLimit)
}

// rebuild replays all loaded entries sorted by id.
func (l *Ledger) rebuild() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrOverflow, r)
		}
	}()

	l.state = State{}

	sorted := make([]Fill, len(l.entries))
	copy(sorted, l.entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})

	for _, fill := range sorted {
		l.apply(fill)
	}
	return nil
}

func (l *Ledger) ensureDirectory() error {
	dir := filepath.Dir(l.config.Path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}

func (l *Ledger) persist(fill Fill) error {
	if err := l.ensureDirectory(); err != nil {
		return err
	}

	record, err := json.Marshal(fill)
	if err != nil {
		return err
	}

	file, err := os.OpenFile(l.config.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("ledger: append to %s: %w", l.config.Path, err)
	}
	defer file.Close()

	if _, err := file.Write(append(record, '\n')); err != nil {
		return err
	}
	// Best-effort durability; a failed sync does not fail the append.
	_ = file.Sync()
	return nil
}
