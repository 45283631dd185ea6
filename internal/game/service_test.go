package game

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triviashow/backend/pkg/http/ws"
)

type stubGenerator struct {
	questions []Question
	err       error
	calls     int
}

func (g *stubGenerator) GenerateQuestions(_ context.Context, topic string, count int) ([]Question, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.questions, nil
}

type stubQuipper struct{}

func (stubQuipper) IntroQuip(context.Context) string   { return "intro" }
func (stubQuipper) WelcomeQuip(context.Context) string { return "welcome" }
func (stubQuipper) GoodbyeQuip(context.Context) string { return "goodbye" }
func (stubQuipper) RoundQuip(_ context.Context, _ string, _ []string) string {
	return "round"
}
func (stubQuipper) GameOverQuip(_ context.Context, _ []string) string { return "gameover" }

type sentEvent struct {
	InstanceID string
	Message    ws.Message
}

type recordingFabric struct {
	mu     sync.Mutex
	events []sentEvent
}

func (f *recordingFabric) ToInstance(instanceID string, msg ws.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{InstanceID: instanceID, Message: msg})
}

func (f *recordingFabric) Global(msg ws.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{Message: msg})
}

func (f *recordingFabric) eventNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.events))
	for i, e := range f.events {
		names[i] = e.Message.Event
	}
	return names
}

func (f *recordingFabric) count(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.Message.Event == event {
			n++
		}
	}
	return n
}

type recordingArchiver struct {
	mu   sync.Mutex
	recs []GameRecord
}

func (a *recordingArchiver) RecordGame(_ context.Context, rec GameRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recs = append(a.recs, rec)
	return nil
}

func (a *recordingArchiver) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.recs)
}

type serviceFixture struct {
	service   *Service
	registry  *Registry
	fabric    *recordingFabric
	archiver  *recordingArchiver
	generator *stubGenerator
}

func newServiceFixture(t *testing.T, opts ServiceOptions) *serviceFixture {
	t.Helper()

	registry, _ := newTestRegistry(t)
	fabric := &recordingFabric{}
	archiver := &recordingArchiver{}
	generator := &stubGenerator{questions: twoQuestions()}
	logger := zerolog.New(io.Discard)

	svc := NewService(registry, NewScheduler(logger), generator, stubQuipper{}, fabric, archiver, opts, logger)
	return &serviceFixture{
		service:   svc,
		registry:  registry,
		fabric:    fabric,
		archiver:  archiver,
		generator: generator,
	}
}

func fastOpts() ServiceOptions {
	return ServiceOptions{AdvanceDelay: 20 * time.Millisecond, GameOverDelay: 20 * time.Millisecond}
}

func TestServiceRegisterBroadcastsRoster(t *testing.T) {
	fx := newServiceFixture(t, fastOpts())
	ctx := context.Background()

	players, err := fx.service.RegisterPlayer(ctx, "", "alice")
	require.NoError(t, err)
	assert.Len(t, players, 1)
	assert.Equal(t, 1, fx.fabric.count(ws.EventPlayerRegistered))

	// Idempotent duplicate still reports the roster.
	players, err = fx.service.RegisterPlayer(ctx, "", "alice")
	require.NoError(t, err)
	assert.Len(t, players, 1)
}

func TestServiceStartGame(t *testing.T) {
	fx := newServiceFixture(t, fastOpts())
	ctx := context.Background()

	result, err := fx.service.StartGame(ctx, "", 2, []string{"history"})
	require.NoError(t, err)
	assert.Equal(t, "Capital of France?", result.CurrentQuestion.Text)
	assert.Equal(t, 2, result.TotalQuestions)
	assert.Equal(t, "intro", result.IntroQuip)
	assert.Equal(t, 1, fx.fabric.count(ws.EventGameStarted))

	sess := fx.registry.Snapshot(ctx, "")
	assert.Equal(t, PhaseInProgress, sess.Phase)
}

func TestServiceStartGameValidation(t *testing.T) {
	fx := newServiceFixture(t, fastOpts())

	_, err := fx.service.StartGame(context.Background(), "", 0, []string{"history"})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = fx.service.StartGame(context.Background(), "", 2, nil)
	assert.ErrorAs(t, err, &verr)
}

func TestServiceStartGameGeneratorFailureLeavesNotStarted(t *testing.T) {
	fx := newServiceFixture(t, fastOpts())
	fx.generator.err = errors.New("upstream down")
	ctx := context.Background()

	_, err := fx.service.StartGame(ctx, "", 2, []string{"history"})
	require.Error(t, err)
	assert.Equal(t, 0, fx.fabric.count(ws.EventGameStarted))

	sess := fx.registry.Snapshot(ctx, "")
	assert.Equal(t, PhaseNotStarted, sess.Phase)
}

func TestServiceStartGameWhileInProgress(t *testing.T) {
	fx := newServiceFixture(t, fastOpts())
	ctx := context.Background()

	_, err := fx.service.StartGame(ctx, "", 2, []string{"history"})
	require.NoError(t, err)

	_, err = fx.service.StartGame(ctx, "", 2, []string{"history"})
	var serr *StateError
	assert.ErrorAs(t, err, &serr)
}

func TestServiceSubmitAnswerMidGameAutoAdvances(t *testing.T) {
	fx := newServiceFixture(t, fastOpts())
	ctx := context.Background()

	_, err := fx.service.RegisterPlayer(ctx, "", "alice")
	require.NoError(t, err)
	_, err = fx.service.StartGame(ctx, "", 2, []string{"history"})
	require.NoError(t, err)

	result, err := fx.service.SubmitAnswer(ctx, "", "alice", "Paris")
	require.NoError(t, err)
	assert.True(t, result.Correct)
	assert.True(t, result.RoundComplete)
	assert.Equal(t, []string{"alice"}, result.Winners)
	assert.Equal(t, "Paris", result.CorrectAnswer)
	assert.Equal(t, 1, fx.fabric.count(ws.EventRoundComplete))

	// The scheduler advances the round after the post-round delay.
	assert.Eventually(t, func() bool {
		return fx.fabric.count(ws.EventNewQuestion) == 1
	}, time.Second, 5*time.Millisecond)

	sess := fx.registry.Snapshot(ctx, "")
	assert.Equal(t, 1, sess.CurrentQuestionIndex)
	assert.Empty(t, sess.Answers)
}

func TestServiceLastRoundAutoEndsAndArchives(t *testing.T) {
	fx := newServiceFixture(t, fastOpts())
	ctx := context.Background()

	_, err := fx.service.RegisterPlayer(ctx, "", "alice")
	require.NoError(t, err)
	_, err = fx.service.StartGame(ctx, "", 2, []string{"history"})
	require.NoError(t, err)

	_, err = fx.service.SubmitAnswer(ctx, "", "alice", "Paris")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return fx.fabric.count(ws.EventNewQuestion) == 1
	}, time.Second, 5*time.Millisecond)

	result, err := fx.service.SubmitAnswer(ctx, "", "alice", "4")
	require.NoError(t, err)
	assert.True(t, result.RoundComplete)

	assert.Eventually(t, func() bool {
		return fx.fabric.count(ws.EventGameOver) == 1
	}, time.Second, 5*time.Millisecond)

	sess := fx.registry.Snapshot(ctx, "")
	assert.Equal(t, PhaseEnded, sess.Phase)
	assert.Equal(t, 1, fx.archiver.count())
	assert.Equal(t, []string{"alice"}, fx.archiver.recs[0].Winners)
}

func TestServiceSubmitWrongAnswerStillCompletesRound(t *testing.T) {
	fx := newServiceFixture(t, fastOpts())
	ctx := context.Background()

	_, err := fx.service.RegisterPlayer(ctx, "", "alice")
	require.NoError(t, err)
	_, err = fx.service.StartGame(ctx, "", 2, []string{"history"})
	require.NoError(t, err)

	result, err := fx.service.SubmitAnswer(ctx, "", "alice", "Lyon")
	require.NoError(t, err)
	assert.False(t, result.Correct)
	assert.True(t, result.RoundComplete)
	assert.Empty(t, result.Winners)
}

func TestServiceNextQuestionSupersedesTimer(t *testing.T) {
	fx := newServiceFixture(t, ServiceOptions{AdvanceDelay: time.Minute, GameOverDelay: time.Minute})
	ctx := context.Background()

	_, err := fx.service.RegisterPlayer(ctx, "", "alice")
	require.NoError(t, err)
	_, err = fx.service.StartGame(ctx, "", 2, []string{"history"})
	require.NoError(t, err)
	_, err = fx.service.SubmitAnswer(ctx, "", "alice", "Paris")
	require.NoError(t, err)

	result, err := fx.service.NextQuestion(ctx, "")
	require.NoError(t, err)
	assert.False(t, result.GameOver)
	assert.Equal(t, "2+2?", result.Question.Text)
	assert.Equal(t, 1, result.QuestionIndex)
	assert.Equal(t, 1, fx.fabric.count(ws.EventNewQuestion))

	// The pending auto-advance was cancelled; no second advance can land.
	time.Sleep(50 * time.Millisecond)
	sess := fx.registry.Snapshot(ctx, "")
	assert.Equal(t, 1, sess.CurrentQuestionIndex)
}

func TestServiceNextQuestionOnLastEndsGame(t *testing.T) {
	fx := newServiceFixture(t, fastOpts())
	ctx := context.Background()

	_, err := fx.service.RegisterPlayer(ctx, "", "alice")
	require.NoError(t, err)
	_, err = fx.service.StartGame(ctx, "", 2, []string{"history"})
	require.NoError(t, err)

	_, err = fx.service.NextQuestion(ctx, "")
	require.NoError(t, err)

	result, err := fx.service.NextQuestion(ctx, "")
	require.NoError(t, err)
	assert.True(t, result.GameOver)
	assert.Equal(t, 1, fx.fabric.count(ws.EventGameOver))

	sess := fx.registry.Snapshot(ctx, "")
	assert.Equal(t, PhaseEnded, sess.Phase)
}

func TestServiceEndGame(t *testing.T) {
	fx := newServiceFixture(t, fastOpts())
	ctx := context.Background()

	_, err := fx.service.RegisterPlayer(ctx, "", "alice")
	require.NoError(t, err)
	_, err = fx.service.StartGame(ctx, "", 2, []string{"history"})
	require.NoError(t, err)
	_, err = fx.service.SubmitAnswer(ctx, "", "alice", "Paris")
	require.NoError(t, err)

	result, err := fx.service.EndGame(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, result.Winners)
	assert.Equal(t, map[string]int{"alice": 1}, result.FinalScores)
	assert.Equal(t, 1, fx.fabric.count(ws.EventGameOver))
	assert.Equal(t, 1, fx.archiver.count())
}

func TestServiceEndGameNotInProgress(t *testing.T) {
	fx := newServiceFixture(t, fastOpts())

	_, err := fx.service.EndGame(context.Background(), "")
	var serr *StateError
	assert.ErrorAs(t, err, &serr)
}

func TestServiceResetGame(t *testing.T) {
	fx := newServiceFixture(t, fastOpts())
	ctx := context.Background()

	_, err := fx.service.RegisterPlayer(ctx, "", "alice")
	require.NoError(t, err)
	_, err = fx.service.StartGame(ctx, "", 2, []string{"history"})
	require.NoError(t, err)

	require.NoError(t, fx.service.ResetGame(ctx, ""))
	assert.Equal(t, 1, fx.fabric.count(ws.EventGameReset))

	sess := fx.registry.Snapshot(ctx, "")
	assert.Equal(t, PhaseNotStarted, sess.Phase)
	assert.Empty(t, sess.Players)
}

func TestServiceResetCancelsPendingAdvance(t *testing.T) {
	fx := newServiceFixture(t, ServiceOptions{AdvanceDelay: 30 * time.Millisecond, GameOverDelay: 30 * time.Millisecond})
	ctx := context.Background()

	_, err := fx.service.RegisterPlayer(ctx, "", "alice")
	require.NoError(t, err)
	_, err = fx.service.StartGame(ctx, "", 2, []string{"history"})
	require.NoError(t, err)
	_, err = fx.service.SubmitAnswer(ctx, "", "alice", "Paris")
	require.NoError(t, err)

	require.NoError(t, fx.service.ResetGame(ctx, ""))

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, fx.fabric.count(ws.EventNewQuestion), "reset must defuse the pending advance")

	sess := fx.registry.Snapshot(ctx, "")
	assert.Equal(t, PhaseNotStarted, sess.Phase)
}

func TestServiceCurrentQuestion(t *testing.T) {
	fx := newServiceFixture(t, fastOpts())
	ctx := context.Background()

	_, err := fx.service.CurrentQuestion(ctx, "")
	var serr *StateError
	assert.ErrorAs(t, err, &serr)

	_, err = fx.service.StartGame(ctx, "", 2, []string{"history"})
	require.NoError(t, err)

	q, err := fx.service.CurrentQuestion(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "Capital of France?", q.Text)
}

func TestServicePlayerAnsweredProgress(t *testing.T) {
	fx := newServiceFixture(t, fastOpts())
	ctx := context.Background()

	_, err := fx.service.RegisterPlayer(ctx, "", "alice")
	require.NoError(t, err)
	_, err = fx.service.RegisterPlayer(ctx, "", "bob")
	require.NoError(t, err)
	_, err = fx.service.StartGame(ctx, "", 2, []string{"history"})
	require.NoError(t, err)

	result, err := fx.service.SubmitAnswer(ctx, "", "alice", "Paris")
	require.NoError(t, err)
	assert.False(t, result.RoundComplete)
	assert.Equal(t, 1, fx.fabric.count(ws.EventPlayerAnswered))
	assert.Equal(t, 0, fx.fabric.count(ws.EventRoundComplete))
}
