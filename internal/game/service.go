package game

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/triviashow/backend/internal/metrics"
	"github.com/triviashow/backend/pkg/http/ws"
)

// QuestionGenerator is the external collaborator that turns a topic into a
// sequence of multiple-choice questions. It applies its own retry/backoff
// policy and fails closed.
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, topic string, count int) ([]Question, error)
}

// Quipper produces host flavor lines. Implementations never fail: on error or
// timeout they return a hardcoded fallback for the context.
type Quipper interface {
	IntroQuip(ctx context.Context) string
	WelcomeQuip(ctx context.Context) string
	GoodbyeQuip(ctx context.Context) string
	RoundQuip(ctx context.Context, question string, winners []string) string
	GameOverQuip(ctx context.Context, winners []string) string
}

// Broadcaster fans events out to the connections of one instance, or to all
// connections for cross-cutting events.
type Broadcaster interface {
	ToInstance(instanceID string, msg ws.Message)
	Global(msg ws.Message)
}

// GameRecord is the durable summary of a finished game.
type GameRecord struct {
	InstanceID     string
	Topics         []string
	TotalQuestions int
	Winners        []string
	FinalScores    map[string]int
	EndedAt        time.Time
}

// Archiver persists finished games for the history view.
type Archiver interface {
	RecordGame(ctx context.Context, rec GameRecord) error
}

// ServiceOptions carries the lifecycle delays.
type ServiceOptions struct {
	AdvanceDelay  time.Duration
	GameOverDelay time.Duration
}

// Service orchestrates session transitions: it serializes mutations through
// the registry, persists before broadcasting, and hands completed rounds to
// the scheduler.
type Service struct {
	registry  *Registry
	scheduler *Scheduler
	generator QuestionGenerator
	quipper   Quipper
	fabric    Broadcaster
	archiver  Archiver
	opts      ServiceOptions
	logger    zerolog.Logger
}

// NewService wires a game service. archiver may be nil when the history
// database is not configured.
func NewService(
	registry *Registry,
	scheduler *Scheduler,
	generator QuestionGenerator,
	quipper Quipper,
	fabric Broadcaster,
	archiver Archiver,
	opts ServiceOptions,
	logger zerolog.Logger,
) *Service {
	if opts.AdvanceDelay <= 0 {
		opts.AdvanceDelay = 5 * time.Second
	}
	if opts.GameOverDelay <= 0 {
		opts.GameOverDelay = 8 * time.Second
	}
	return &Service{
		registry:  registry,
		scheduler: scheduler,
		generator: generator,
		quipper:   quipper,
		fabric:    fabric,
		archiver:  archiver,
		opts:      opts,
		logger:    logger.With().Str("component", "game_service").Logger(),
	}
}

// Registry exposes the instance registry for the WS handler and workers.
func (s *Service) Registry() *Registry {
	return s.registry
}

// RegisterPlayer adds a handle to the roster. Duplicate registration is an
// idempotent no-op; either way the current roster is broadcast.
func (s *Service) RegisterPlayer(ctx context.Context, instanceID, handle string) ([]Player, error) {
	instanceID = s.registry.ResolveID(instanceID)

	var players []Player
	err := s.registry.Mutate(ctx, instanceID, func(sess *Session) error {
		if err := sess.Register(handle); err != nil {
			return err
		}
		players = append([]Player(nil), sess.Players...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.fabric.ToInstance(instanceID, ws.NewMessage(ws.EventPlayerRegistered, ws.PlayerRegisteredPayload{
		Players:    toPlayerInfos(players),
		InstanceID: instanceID,
	}))
	return players, nil
}

// Players returns the current roster.
func (s *Service) Players(ctx context.Context, instanceID string) []Player {
	var players []Player
	s.registry.View(ctx, instanceID, func(sess *Session) {
		players = append([]Player(nil), sess.Players...)
	})
	return players
}

// StartResult is returned by StartGame and echoed in the gameStarted event.
type StartResult struct {
	CurrentQuestion Question
	TotalQuestions  int
	IntroQuip       string
	WelcomeQuip     string
}

// StartGame generates questions for the first topic and transitions the
// session to in-progress. Generation failure leaves the session un-started.
func (s *Service) StartGame(ctx context.Context, instanceID string, numQuestions int, topics []string) (StartResult, error) {
	instanceID = s.registry.ResolveID(instanceID)

	if numQuestions <= 0 || len(topics) == 0 {
		return StartResult{}, NewValidationError("invalid game configuration")
	}

	var inProgress bool
	s.registry.View(ctx, instanceID, func(sess *Session) {
		inProgress = sess.Phase == PhaseInProgress
	})
	if inProgress {
		return StartResult{}, NewStateError("game is already in progress")
	}

	questions, err := s.generator.GenerateQuestions(ctx, topics[0], numQuestions)
	if err != nil {
		return StartResult{}, err
	}

	introQuip := s.quipper.IntroQuip(ctx)
	welcomeQuip := s.quipper.WelcomeQuip(ctx)

	var result StartResult
	err = s.registry.Mutate(ctx, instanceID, func(sess *Session) error {
		if err := sess.Start(topics, questions); err != nil {
			return err
		}
		current, err := sess.CurrentQuestion()
		if err != nil {
			return err
		}
		result = StartResult{
			CurrentQuestion: current,
			TotalQuestions:  sess.TotalQuestions,
			IntroQuip:       introQuip,
			WelcomeQuip:     welcomeQuip,
		}
		return nil
	})
	if err != nil {
		return StartResult{}, err
	}

	metrics.GamesStarted.Inc()
	s.fabric.ToInstance(instanceID, ws.NewMessage(ws.EventGameStarted, ws.GameStartedPayload{
		CurrentQuestion: toQuestionPayload(result.CurrentQuestion),
		IntroQuip:       result.IntroQuip,
		WelcomeQuip:     result.WelcomeQuip,
		TotalQuestions:  result.TotalQuestions,
		InstanceID:      instanceID,
	}))
	return result, nil
}

// SubmitResult is the HTTP-facing outcome of one submission.
type SubmitResult struct {
	Correct       bool           `json:"correct"`
	Score         int            `json:"score"`
	RoundComplete bool           `json:"roundComplete"`
	Winners       []string       `json:"winners,omitempty"`
	CorrectAnswer string         `json:"correctAnswer,omitempty"`
	Scores        map[string]int `json:"scores"`
}

// SubmitAnswer records one answer. When the submission completes the round,
// the persisted outcome is broadcast and a follow-up timer is armed: advance
// for a mid-game round, game-over for the last one.
func (s *Service) SubmitAnswer(ctx context.Context, instanceID, handle, answer string) (SubmitResult, error) {
	instanceID = s.registry.ResolveID(instanceID)

	var (
		result        AnswerResult
		scores        map[string]int
		questionIndex int
		total         int
		answered      int
		registered    int
		questionText  string
	)
	err := s.registry.Mutate(ctx, instanceID, func(sess *Session) error {
		var err error
		result, err = sess.SubmitAnswer(handle, answer)
		if err != nil {
			return err
		}
		scores = copyScores(sess.Scores)
		questionIndex = sess.CurrentQuestionIndex
		total = sess.TotalQuestions
		answered = len(sess.Answers)
		registered = len(sess.Players)
		if q, qerr := sess.CurrentQuestion(); qerr == nil {
			questionText = q.Text
		}
		return nil
	})
	if err != nil {
		return SubmitResult{}, err
	}

	metrics.AnswersSubmitted.Inc()
	s.fabric.ToInstance(instanceID, ws.NewMessage(ws.EventPlayerAnswered, ws.PlayerAnsweredPayload{
		Handle:     handle,
		Answered:   answered,
		Registered: registered,
		InstanceID: instanceID,
	}))

	if result.RoundComplete {
		metrics.RoundsCompleted.Inc()
		quip := s.quipper.RoundQuip(ctx, questionText, result.RoundWinners)
		s.fabric.ToInstance(instanceID, ws.NewMessage(ws.EventRoundComplete, ws.RoundCompletePayload{
			Winners:        result.RoundWinners,
			CorrectAnswer:  result.CorrectAnswer,
			Scores:         scores,
			Quip:           quip,
			QuestionIndex:  questionIndex,
			TotalQuestions: total,
			IsLastQuestion: result.LastQuestion,
			InstanceID:     instanceID,
		}))
		s.scheduleRoundFollowup(instanceID, questionIndex, result.LastQuestion)
	}

	return SubmitResult{
		Correct:       result.Correct,
		Score:         result.Score,
		RoundComplete: result.RoundComplete,
		Winners:       result.RoundWinners,
		CorrectAnswer: result.CorrectAnswer,
		Scores:        scores,
	}, nil
}

func (s *Service) scheduleRoundFollowup(instanceID string, questionIndex int, last bool) {
	key := TimerKey{InstanceID: instanceID, QuestionIndex: questionIndex}
	if last {
		s.scheduler.Schedule(key, s.opts.GameOverDelay, func() {
			s.autoEnd(instanceID, questionIndex)
		})
		return
	}
	s.scheduler.Schedule(key, s.opts.AdvanceDelay, func() {
		s.autoAdvance(instanceID, questionIndex)
	})
}

// errStaleTimer marks a deferred action whose round or phase changed before
// the timer fired. Swallowed silently.
var errStaleTimer = errors.New("stale timer")

func (s *Service) autoAdvance(instanceID string, questionIndex int) {
	ctx := context.Background()

	var (
		question Question
		newIndex int
	)
	err := s.registry.Mutate(ctx, instanceID, func(sess *Session) error {
		if sess.Phase != PhaseInProgress || sess.CurrentQuestionIndex != questionIndex {
			return errStaleTimer
		}
		var err error
		question, err = sess.Advance()
		if err != nil {
			return err
		}
		newIndex = sess.CurrentQuestionIndex
		return nil
	})
	if err != nil {
		if !errors.Is(err, errStaleTimer) {
			s.logger.Warn().Err(err).Str("instance_id", instanceID).Msg("auto advance failed")
		}
		return
	}

	s.fabric.ToInstance(instanceID, ws.NewMessage(ws.EventNewQuestion, ws.NewQuestionPayload{
		Question:      toQuestionPayload(question),
		QuestionIndex: newIndex,
		InstanceID:    instanceID,
	}))
}

func (s *Service) autoEnd(instanceID string, questionIndex int) {
	ctx := context.Background()

	outcome, err := s.endSession(ctx, instanceID, &questionIndex)
	if err != nil {
		if !errors.Is(err, errStaleTimer) {
			s.logger.Warn().Err(err).Str("instance_id", instanceID).Msg("auto end failed")
		}
		return
	}
	s.broadcastGameOver(ctx, instanceID, outcome)
}

// EndResult is the final outcome of a game.
type EndResult struct {
	Winners     []string       `json:"winners"`
	FinalScores map[string]int `json:"finalScores"`
	Topics      []string       `json:"-"`
	Total       int            `json:"-"`
}

// endSession transitions the session to ended and captures the final
// standings. When expectIndex is non-nil the end is a deferred timer action
// and is skipped if the round moved on.
func (s *Service) endSession(ctx context.Context, instanceID string, expectIndex *int) (EndResult, error) {
	var outcome EndResult
	err := s.registry.Mutate(ctx, instanceID, func(sess *Session) error {
		if expectIndex != nil && (sess.Phase != PhaseInProgress || sess.CurrentQuestionIndex != *expectIndex) {
			return errStaleTimer
		}
		if err := sess.End(); err != nil {
			return err
		}
		outcome = EndResult{
			Winners:     OverallWinners(sess),
			FinalScores: copyScores(sess.Scores),
			Topics:      append([]string(nil), sess.Topics...),
			Total:       sess.TotalQuestions,
		}
		return nil
	})
	return outcome, err
}

func (s *Service) broadcastGameOver(ctx context.Context, instanceID string, outcome EndResult) {
	quip := s.quipper.GameOverQuip(ctx, outcome.Winners)
	goodbye := s.quipper.GoodbyeQuip(ctx)

	s.fabric.ToInstance(instanceID, ws.NewMessage(ws.EventGameOver, ws.GameOverPayload{
		Winners:     outcome.Winners,
		FinalScores: outcome.FinalScores,
		Quip:        quip,
		GoodbyeQuip: goodbye,
		InstanceID:  instanceID,
	}))

	if s.archiver != nil {
		rec := GameRecord{
			InstanceID:     instanceID,
			Topics:         outcome.Topics,
			TotalQuestions: outcome.Total,
			Winners:        outcome.Winners,
			FinalScores:    outcome.FinalScores,
			EndedAt:        time.Now().UTC(),
		}
		if err := s.archiver.RecordGame(ctx, rec); err != nil {
			s.logger.Warn().Err(err).Str("instance_id", instanceID).Msg("game archive failed")
		}
	}
}

// AdvanceResult is returned by NextQuestion: either the next question or the
// end-of-game outcome when the sequence is exhausted.
type AdvanceResult struct {
	GameOver      bool
	Question      Question
	QuestionIndex int
	End           EndResult
}

// NextQuestion advances the host-driven way. Advancing past the last
// question ends the game. Any pending auto-advance timer is superseded.
func (s *Service) NextQuestion(ctx context.Context, instanceID string) (AdvanceResult, error) {
	instanceID = s.registry.ResolveID(instanceID)
	s.scheduler.Cancel(instanceID)

	var (
		result AdvanceResult
		isLast bool
	)
	s.registry.View(ctx, instanceID, func(sess *Session) {
		isLast = sess.Phase == PhaseInProgress && sess.CurrentQuestionIndex >= sess.TotalQuestions-1
	})

	if isLast {
		outcome, err := s.endSession(ctx, instanceID, nil)
		if err != nil {
			return AdvanceResult{}, err
		}
		s.broadcastGameOver(ctx, instanceID, outcome)
		return AdvanceResult{GameOver: true, End: outcome}, nil
	}

	err := s.registry.Mutate(ctx, instanceID, func(sess *Session) error {
		question, err := sess.Advance()
		if err != nil {
			return err
		}
		result = AdvanceResult{Question: question, QuestionIndex: sess.CurrentQuestionIndex}
		return nil
	})
	if err != nil {
		return AdvanceResult{}, err
	}

	s.fabric.ToInstance(instanceID, ws.NewMessage(ws.EventNewQuestion, ws.NewQuestionPayload{
		Question:      toQuestionPayload(result.Question),
		QuestionIndex: result.QuestionIndex,
		InstanceID:    instanceID,
	}))
	return result, nil
}

// EndGame force-ends a game and broadcasts the final standings.
func (s *Service) EndGame(ctx context.Context, instanceID string) (EndResult, error) {
	instanceID = s.registry.ResolveID(instanceID)
	s.scheduler.Cancel(instanceID)

	outcome, err := s.endSession(ctx, instanceID, nil)
	if err != nil {
		return EndResult{}, err
	}
	s.broadcastGameOver(ctx, instanceID, outcome)
	return outcome, nil
}

// ResetGame returns the session to its empty shape and cancels anything the
// scheduler still holds for it.
func (s *Service) ResetGame(ctx context.Context, instanceID string) error {
	instanceID = s.registry.ResolveID(instanceID)
	s.scheduler.Cancel(instanceID)

	err := s.registry.Mutate(ctx, instanceID, func(sess *Session) error {
		sess.Reset("")
		return nil
	})
	if err != nil {
		return err
	}
	s.fabric.ToInstance(instanceID, ws.NewMessage(ws.EventGameReset, nil))
	return nil
}

// CurrentQuestion returns the active round's question.
func (s *Service) CurrentQuestion(ctx context.Context, instanceID string) (Question, error) {
	var (
		question Question
		err      error
	)
	s.registry.View(ctx, instanceID, func(sess *Session) {
		question, err = sess.CurrentQuestion()
	})
	return question, err
}

func toQuestionPayload(q Question) ws.QuestionPayload {
	return ws.QuestionPayload{Text: q.Text, Choices: q.Choices}
}

func toPlayerInfos(players []Player) []ws.PlayerInfo {
	infos := make([]ws.PlayerInfo, len(players))
	for i, p := range players {
		infos[i] = ws.PlayerInfo{Handle: p.Handle, JoinedAt: p.JoinedAt.Format(time.RFC3339)}
	}
	return infos
}

func copyScores(scores map[string]int) map[string]int {
	out := make(map[string]int, len(scores))
	for handle, score := range scores {
		out[handle] = score
	}
	return out
}
