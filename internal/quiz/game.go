// Package quiz is a small trivia game built on the room framework. It shows
// the intended split: lifecycle hooks keep the game's own bookkeeping in step
// with the room, while the action handler drives phase transitions and
// publishes results back through the room.
package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mcoot/gameroom-go/dependencies/random"
	"github.com/mcoot/gameroom-go/model"
	"github.com/mcoot/gameroom-go/room"
)

// Game phases
const (
	PhaseLobby    model.Phase = "lobby"
	PhaseQuestion model.Phase = "question"
	PhaseReveal   model.Phase = "reveal"
	PhaseResults  model.Phase = "results"
)

// Action types
const (
	ActionAnswer = "answer"
	ActionNext   = "next"
)

// Question is one multiple-choice question. The answer index stays
// server-side; clients only ever see the prompt and options.
type Question struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
	Answer  int      `json:"-"`
}

// AnswerPayload is the payload of an answer action
type AnswerPayload struct {
	Choice int `json:"choice"`
}

// Config returns the room configuration a quiz expects
func Config() model.GameConfig {
	return model.GameConfig{
		MinPlayers: 2,
		MaxPlayers: 8,
		Phases:     []model.Phase{PhaseLobby, PhaseQuestion, PhaseReveal, PhaseResults},
	}
}

// Game implements room.Game for a round-based trivia quiz. The host advances
// the quiz with next actions; players answer with answer actions, and the
// round scores as soon as every connected player has answered.
type Game struct {
	mu        sync.Mutex
	rm        room.Interface
	random    random.Random
	logger    *slog.Logger
	questions []Question
	current   int
	scores    map[model.PlayerID]int
	answered  map[model.PlayerID]int
}

// Ensure Game implements the game interface
var _ room.Game = (*Game)(nil)

// New creates a quiz over the given questions. Call Bind before the room
// starts taking actions.
func New(questions []Question, rnd random.Random, logger *slog.Logger) *Game {
	return &Game{
		random:    rnd,
		logger:    logger.With(slog.String("component", "quiz")),
		questions: questions,
		scores:    make(map[model.PlayerID]int),
		answered:  make(map[model.PlayerID]int),
	}
}

// Bind attaches the room this game drives
func (g *Game) Bind(rm room.Interface) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rm = rm
}

func (g *Game) OnPlayerJoin(ctx context.Context, player model.Player) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.scores[player.ID]; !ok {
		g.scores[player.ID] = 0
	}
	return nil
}

func (g *Game) OnPlayerLeave(ctx context.Context, playerID model.PlayerID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.scores, playerID)
	delete(g.answered, playerID)
	return nil
}

func (g *Game) OnGameStart(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.random.Shuffle(len(g.questions), func(i, j int) {
		g.questions[i], g.questions[j] = g.questions[j], g.questions[i]
	})
	g.current = 0
	g.logger.Info("quiz started", slog.Int("questions", len(g.questions)))
	return nil
}

func (g *Game) OnGameEnd(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.logger.Info("quiz finished", slog.Any("scores", g.scoresLocked()))
	return nil
}

func (g *Game) OnPhaseChange(ctx context.Context, transition model.PhaseTransition) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if transition.To == PhaseQuestion {
		g.answered = make(map[model.PlayerID]int)
	}
	return nil
}

// HandleAction routes quiz actions. Rule violations come back as
// unsuccessful results, not errors; errors are reserved for room failures.
func (g *Game) HandleAction(ctx context.Context, action model.PlayerAction) (model.ActionResult, error) {
	switch action.Type {
	case ActionAnswer:
		return g.handleAnswer(ctx, action)
	case ActionNext:
		return g.handleNext(ctx, action)
	default:
		return reject(fmt.Sprintf("unknown action %q", action.Type)), nil
	}
}

// handleAnswer records a player's choice; once every connected player has
// answered, it scores the round and reveals
func (g *Game) handleAnswer(ctx context.Context, action model.PlayerAction) (model.ActionResult, error) {
	rm := g.boundRoom()
	if rm == nil {
		return reject("game is not bound to a room"), nil
	}
	state := rm.State()
	if state.Phase != PhaseQuestion {
		return reject("answers are only accepted during a question"), nil
	}

	var payload AnswerPayload
	if err := decodePayload(action.Payload, &payload); err != nil {
		return reject("malformed answer payload"), nil
	}

	g.mu.Lock()
	question := g.questions[g.current]
	if payload.Choice < 0 || payload.Choice >= len(question.Options) {
		g.mu.Unlock()
		return reject("choice out of range"), nil
	}
	if _, dup := g.answered[action.PlayerID]; dup {
		g.mu.Unlock()
		return reject("already answered this question"), nil
	}
	g.answered[action.PlayerID] = payload.Choice

	connected := 0
	for _, p := range state.Players {
		if p.IsConnected {
			connected++
		}
	}
	allIn := len(g.answered) >= connected
	g.mu.Unlock()

	if !allIn {
		return model.ActionResult{Success: true, Data: map[string]any{"waiting": true}}, nil
	}
	if err := g.reveal(ctx, rm); err != nil {
		return model.ActionResult{}, err
	}
	return model.ActionResult{Success: true, Data: map[string]any{"waiting": false}}, nil
}

// handleNext advances the quiz, host only. From the lobby it serves the
// first question; from a reveal it serves the next one or finishes.
func (g *Game) handleNext(ctx context.Context, action model.PlayerAction) (model.ActionResult, error) {
	rm := g.boundRoom()
	if rm == nil {
		return reject("game is not bound to a room"), nil
	}
	state := rm.State()
	if !isHost(state, action.PlayerID) {
		return reject("only the host can advance the quiz"), nil
	}

	switch state.Phase {
	case PhaseLobby:
		return g.serveQuestion(ctx, rm, 0)
	case PhaseReveal:
		g.mu.Lock()
		next := g.current + 1
		finished := next >= len(g.questions)
		g.mu.Unlock()
		if finished {
			return g.finish(ctx, rm)
		}
		return g.serveQuestion(ctx, rm, next)
	default:
		return reject("nothing to advance in this phase"), nil
	}
}

// serveQuestion publishes a question and moves the room into the question
// phase
func (g *Game) serveQuestion(ctx context.Context, rm room.Interface, idx int) (model.ActionResult, error) {
	g.mu.Lock()
	if len(g.questions) == 0 {
		g.mu.Unlock()
		return reject("the quiz has no questions"), nil
	}
	g.current = idx
	question := g.questions[idx]
	scores := g.scoresLocked()
	total := len(g.questions)
	g.mu.Unlock()

	if err := rm.TransitionPhase(ctx, PhaseQuestion); err != nil {
		return model.ActionResult{}, err
	}
	if err := rm.UpdateMetadata(ctx, map[string]any{
		"question": question.Prompt,
		"options":  question.Options,
		"number":   idx + 1,
		"total":    total,
		"scores":   scores,
	}); err != nil {
		return model.ActionResult{}, err
	}
	return model.ActionResult{Success: true}, nil
}

// reveal scores the round, publishes the result and moves the room to the
// reveal phase
func (g *Game) reveal(ctx context.Context, rm room.Interface) error {
	g.mu.Lock()
	question := g.questions[g.current]
	for id, choice := range g.answered {
		if choice == question.Answer {
			g.scores[id]++
		}
	}
	scores := g.scoresLocked()
	number := g.current + 1
	total := len(g.questions)
	g.mu.Unlock()

	if err := rm.TransitionPhase(ctx, PhaseReveal); err != nil {
		return err
	}
	if err := rm.UpdateMetadata(ctx, map[string]any{
		"question": question.Prompt,
		"number":   number,
		"total":    total,
		"answer":   question.Answer,
		"scores":   scores,
	}); err != nil {
		return err
	}
	return rm.BroadcastCustom(ctx, "quiz:reveal", map[string]any{
		"answer": question.Answer,
		"scores": scores,
	})
}

// finish publishes the final standings and ends the game
func (g *Game) finish(ctx context.Context, rm room.Interface) (model.ActionResult, error) {
	g.mu.Lock()
	scores := g.scoresLocked()
	g.mu.Unlock()

	winners := topScorers(scores)
	if err := rm.TransitionPhase(ctx, PhaseResults); err != nil {
		return model.ActionResult{}, err
	}
	if err := rm.UpdateMetadata(ctx, map[string]any{
		"scores":  scores,
		"winners": winners,
	}); err != nil {
		return model.ActionResult{}, err
	}
	if err := rm.End(ctx); err != nil {
		return model.ActionResult{}, err
	}
	return model.ActionResult{Success: true, Data: map[string]any{"winners": winners}}, nil
}

func (g *Game) boundRoom() room.Interface {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rm
}

func (g *Game) scoresLocked() map[string]int {
	scores := make(map[string]int, len(g.scores))
	for id, score := range g.scores {
		scores[string(id)] = score
	}
	return scores
}

func reject(msg string) model.ActionResult {
	return model.ActionResult{Success: false, Error: msg}
}

func isHost(state *model.GameState, id model.PlayerID) bool {
	for _, p := range state.Players {
		if p.ID == id {
			return p.IsHost
		}
	}
	return false
}

func topScorers(scores map[string]int) []string {
	best := -1
	var winners []string
	for id, score := range scores {
		switch {
		case score > best:
			best = score
			winners = []string{id}
		case score == best:
			winners = append(winners, id)
		}
	}
	sort.Strings(winners)
	return winners
}

// decodePayload reroutes the payload through JSON so both typed structs and
// generically-decoded map payloads are accepted
func decodePayload(payload any, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
