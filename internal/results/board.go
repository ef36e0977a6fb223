package results

import (
	"bytes"
	"context"
	"encoding/json"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sasagar/rtsv/client"
	"github.com/sasagar/rtsv/relay"
)

// Snapshot is a copy of the board state.
type Snapshot struct {
	// Current is the question on screen, 0 when results are hidden.
	Current   int64
	Displayed []int64
	Results   map[int64][]Result
}

// Board is the presenter view of one event. It follows relay broadcasts and
// re-fetches a question's aggregate whenever it may have changed; it never
// applies counts incrementally.
type Board struct {
	fetcher Fetcher
	timeout time.Duration
	logger  zerolog.Logger

	mu        sync.Mutex
	current   int64
	displayed []int64
	results   map[int64][]Result
	onChange  []func(Snapshot)

	subs []*client.Subscription
}

// NewBoard creates an empty board.
func NewBoard(fetcher Fetcher, logger zerolog.Logger) *Board {
	return &Board{
		fetcher: fetcher,
		timeout: 5 * time.Second,
		logger:  logger.With().Str("component", "results").Logger(),
		results: make(map[int64][]Result),
	}
}

// Attach subscribes the board to m. Detach releases the subscriptions.
func (b *Board) Attach(m *client.Manager) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs = append(b.subs,
		m.On(relay.EventDisplayQuestion, b.handleDisplayQuestion),
		m.On(relay.EventUpdateResults, b.handleUpdateResults),
		m.On(relay.EventHideResults, b.handleHideResults),
		m.On(relay.EventAnswerPicked, b.handleAnswerPicked),
		m.On(relay.EventAnswerHidden, b.handleAnswerHidden),
		m.On(client.EventConnect, b.handleConnect),
	)
}

// Detach disposes every subscription made by Attach.
func (b *Board) Detach() {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Dispose()
	}
}

// OnChange registers fn to run after every state change.
func (b *Board) OnChange(fn func(Snapshot)) {
	b.mu.Lock()
	b.onChange = append(b.onChange, fn)
	b.mu.Unlock()
}

// Snapshot returns a copy of the board state.
func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *Board) snapshotLocked() Snapshot {
	results := make(map[int64][]Result, len(b.results))
	for id, rows := range b.results {
		results[id] = slices.Clone(rows)
	}
	return Snapshot{
		Current:   b.current,
		Displayed: slices.Clone(b.displayed),
		Results:   results,
	}
}

func (b *Board) handleDisplayQuestion(args []json.RawMessage) {
	var msg struct {
		QuestionID json.RawMessage `json:"questionId"`
	}
	if !decodeFirst(args, &msg) {
		return
	}
	id, ok := parseID(msg.QuestionID)
	if !ok {
		b.logger.Debug().Msg("display-question without question id")
		return
	}

	b.mu.Lock()
	if !slices.Contains(b.displayed, id) {
		b.displayed = append(b.displayed, id)
	}
	b.current = id
	b.mu.Unlock()

	b.refresh(id)
}

func (b *Board) handleUpdateResults(args []json.RawMessage) {
	var msg struct {
		QuestionID json.RawMessage `json:"questionId"`
	}
	if !decodeFirst(args, &msg) {
		return
	}
	id, ok := parseID(msg.QuestionID)
	if !ok {
		return
	}

	b.refresh(id)
}

func (b *Board) handleHideResults([]json.RawMessage) {
	b.mu.Lock()
	b.current = 0
	b.mu.Unlock()

	b.changed()
}

func (b *Board) handleAnswerPicked(args []json.RawMessage) {
	var msg struct {
		QuestionID json.RawMessage `json:"questionId"`
		AnswerID   json.RawMessage `json:"answerId"`
		IsPicked   bool            `json:"isPicked"`
	}
	if !decodeFirst(args, &msg) {
		return
	}

	b.patch(msg.QuestionID, msg.AnswerID, func(r *Result) { r.IsPicked = msg.IsPicked })
}

func (b *Board) handleAnswerHidden(args []json.RawMessage) {
	var msg struct {
		QuestionID json.RawMessage `json:"questionId"`
		AnswerID   json.RawMessage `json:"answerId"`
		IsHidden   bool            `json:"isHidden"`
	}
	if !decodeFirst(args, &msg) {
		return
	}

	b.patch(msg.QuestionID, msg.AnswerID, func(r *Result) { r.IsHidden = msg.IsHidden })
}

// handleConnect re-fetches the question on screen, since updates broadcast
// while disconnected were missed.
func (b *Board) handleConnect([]json.RawMessage) {
	b.mu.Lock()
	current := b.current
	b.mu.Unlock()

	if current != 0 {
		b.refresh(current)
	}
}

func (b *Board) patch(rawQuestion, rawAnswer json.RawMessage, apply func(*Result)) {
	questionID, ok := parseID(rawQuestion)
	if !ok {
		return
	}
	answerID, ok := parseID(rawAnswer)
	if !ok {
		return
	}

	b.mu.Lock()
	rows := b.results[questionID]
	found := false
	for i := range rows {
		if rows[i].ID == answerID {
			apply(&rows[i])
			found = true
		}
	}
	b.mu.Unlock()

	if found {
		b.changed()
	}
}

func (b *Board) refresh(questionID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	rows, err := b.fetcher.QuestionResults(ctx, questionID)
	if err != nil {
		// Keep the previous aggregate; it is stale but still meaningful.
		b.logger.Error().Err(err).Int64("question", questionID).Msg("fetching results failed")
		return
	}

	b.mu.Lock()
	b.results[questionID] = rows
	b.mu.Unlock()

	b.changed()
}

func (b *Board) changed() {
	b.mu.Lock()
	snapshot := b.snapshotLocked()
	fns := slices.Clone(b.onChange)
	b.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}

func decodeFirst(args []json.RawMessage, v any) bool {
	if len(args) == 0 {
		return false
	}
	return json.Unmarshal(args[0], v) == nil
}

// parseID accepts a JSON number or a numeric string.
func parseID(raw json.RawMessage) (int64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}

	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
	}

	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
