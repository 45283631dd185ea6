package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoQuestions() []Question {
	return []Question{
		{Text: "Capital of France?", Choices: []string{"Paris", "Lyon", "Nice", "Lille"}, CorrectAnswer: "Paris"},
		{Text: "2+2?", Choices: []string{"3", "4", "5", "6"}, CorrectAnswer: "4"},
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	s := NewSession("game-instance-default")

	assert.NoError(t, s.Register("alice"))
	assert.NoError(t, s.Register("alice"))
	assert.Len(t, s.Players, 1)
}

func TestRegisterRequiresHandle(t *testing.T) {
	s := NewSession("game-instance-default")

	err := s.Register("")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestStartFromNotStarted(t *testing.T) {
	s := NewSession("game-instance-default")

	require.NoError(t, s.Start([]string{"history"}, twoQuestions()))
	assert.Equal(t, PhaseInProgress, s.Phase)
	assert.Equal(t, 0, s.CurrentQuestionIndex)
	assert.Equal(t, 2, s.TotalQuestions)
}

func TestStartWhileInProgressFails(t *testing.T) {
	s := NewSession("game-instance-default")
	require.NoError(t, s.Start([]string{"history"}, twoQuestions()))

	err := s.Start([]string{"history"}, twoQuestions())
	var serr *StateError
	assert.ErrorAs(t, err, &serr)
}

func TestStartAgainAfterEnd(t *testing.T) {
	s := NewSession("game-instance-default")
	require.NoError(t, s.Register("alice"))
	require.NoError(t, s.Start([]string{"history"}, twoQuestions()))

	_, err := s.SubmitAnswer("alice", "Paris")
	require.NoError(t, err)
	require.NoError(t, s.End())

	// Scores and answers from the previous run must not leak.
	require.NoError(t, s.Start([]string{"science"}, twoQuestions()))
	assert.Empty(t, s.Scores)
	assert.Empty(t, s.Answers)
	assert.Equal(t, []string{"science"}, s.Topics)
}

func TestStartRejectsEmptyQuestionSet(t *testing.T) {
	s := NewSession("game-instance-default")

	err := s.Start([]string{"history"}, nil)
	var gerr *GameError
	assert.ErrorAs(t, err, &gerr)
	assert.Equal(t, PhaseNotStarted, s.Phase)
}

func TestSubmitAnswerScoresCorrect(t *testing.T) {
	s := NewSession("game-instance-default")
	require.NoError(t, s.Register("alice"))
	require.NoError(t, s.Register("bob"))
	require.NoError(t, s.Start([]string{"history"}, twoQuestions()))

	res, err := s.SubmitAnswer("alice", "Paris")
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.Equal(t, 1, res.Score)
	assert.False(t, res.RoundComplete, "round is not complete until every player answers")
}

func TestSubmitAnswerWrongDoesNotScore(t *testing.T) {
	s := NewSession("game-instance-default")
	require.NoError(t, s.Register("alice"))
	require.NoError(t, s.Start([]string{"history"}, twoQuestions()))

	res, err := s.SubmitAnswer("alice", "Lyon")
	require.NoError(t, err)
	assert.False(t, res.Correct)
	assert.Equal(t, 0, res.Score)
}

func TestSubmitAnswerFirstWriteWins(t *testing.T) {
	s := NewSession("game-instance-default")
	require.NoError(t, s.Register("alice"))
	require.NoError(t, s.Register("bob"))
	require.NoError(t, s.Start([]string{"history"}, twoQuestions()))

	_, err := s.SubmitAnswer("alice", "Lyon")
	require.NoError(t, err)

	_, err = s.SubmitAnswer("alice", "Paris")
	var serr *StateError
	assert.ErrorAs(t, err, &serr)
	assert.Equal(t, "Lyon", s.Answers["alice"], "recorded answer must not be overwritten")
	assert.Equal(t, 0, s.Scores["alice"])
}

func TestSubmitAnswerUnregisteredPlayer(t *testing.T) {
	s := NewSession("game-instance-default")
	require.NoError(t, s.Register("alice"))
	require.NoError(t, s.Start([]string{"history"}, twoQuestions()))

	_, err := s.SubmitAnswer("mallory", "Paris")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSubmitAnswerBeforeStart(t *testing.T) {
	s := NewSession("game-instance-default")
	require.NoError(t, s.Register("alice"))

	_, err := s.SubmitAnswer("alice", "Paris")
	var serr *StateError
	assert.ErrorAs(t, err, &serr)
}

func TestRoundCompletionReportsWinners(t *testing.T) {
	s := NewSession("game-instance-default")
	require.NoError(t, s.Register("alice"))
	require.NoError(t, s.Register("bob"))
	require.NoError(t, s.Start([]string{"history"}, twoQuestions()))

	_, err := s.SubmitAnswer("alice", "Paris")
	require.NoError(t, err)

	res, err := s.SubmitAnswer("bob", "Lyon")
	require.NoError(t, err)
	assert.True(t, res.RoundComplete)
	assert.Equal(t, []string{"alice"}, res.RoundWinners)
	assert.Equal(t, "Paris", res.CorrectAnswer)
	assert.False(t, res.LastQuestion)
}

func TestLateJoinWidensRoundCompletion(t *testing.T) {
	s := NewSession("game-instance-default")
	require.NoError(t, s.Register("alice"))
	require.NoError(t, s.Start([]string{"history"}, twoQuestions()))

	// A join mid-round means the round now needs two answers.
	require.NoError(t, s.Register("bob"))

	res, err := s.SubmitAnswer("alice", "Paris")
	require.NoError(t, err)
	assert.False(t, res.RoundComplete)

	res, err = s.SubmitAnswer("bob", "Paris")
	require.NoError(t, err)
	assert.True(t, res.RoundComplete)
}

func TestAdvanceClearsAnswers(t *testing.T) {
	s := NewSession("game-instance-default")
	require.NoError(t, s.Register("alice"))
	require.NoError(t, s.Start([]string{"history"}, twoQuestions()))

	_, err := s.SubmitAnswer("alice", "Paris")
	require.NoError(t, err)

	q, err := s.Advance()
	require.NoError(t, err)
	assert.Equal(t, "2+2?", q.Text)
	assert.Equal(t, 1, s.CurrentQuestionIndex)
	assert.Empty(t, s.Answers)
	assert.Equal(t, 1, s.Scores["alice"], "cumulative scores survive the round boundary")
}

func TestAdvancePastLastQuestionFails(t *testing.T) {
	s := NewSession("game-instance-default")
	require.NoError(t, s.Start([]string{"history"}, twoQuestions()))

	_, err := s.Advance()
	require.NoError(t, err)

	_, err = s.Advance()
	var gerr *GameError
	assert.ErrorAs(t, err, &gerr)
}

func TestEndKeepsScores(t *testing.T) {
	s := NewSession("game-instance-default")
	require.NoError(t, s.Register("alice"))
	require.NoError(t, s.Start([]string{"history"}, twoQuestions()))

	_, err := s.SubmitAnswer("alice", "Paris")
	require.NoError(t, err)

	require.NoError(t, s.End())
	assert.Equal(t, PhaseEnded, s.Phase)
	assert.Equal(t, 1, s.Scores["alice"])
	assert.Empty(t, s.Answers)
}

func TestEndRequiresInProgress(t *testing.T) {
	s := NewSession("game-instance-default")

	err := s.End()
	var serr *StateError
	assert.ErrorAs(t, err, &serr)
}

func TestResetClearsEverything(t *testing.T) {
	s := NewSession("game-instance-default")
	require.NoError(t, s.Register("alice"))
	require.NoError(t, s.Start([]string{"history"}, twoQuestions()))
	s.AddConnection("conn-1")

	s.Reset("")

	assert.Equal(t, PhaseNotStarted, s.Phase)
	assert.Empty(t, s.Players)
	assert.Empty(t, s.Scores)
	assert.Empty(t, s.Questions)
	assert.Empty(t, s.ActiveConnections)
	assert.Equal(t, "game-instance-default", s.InstanceID)
}

func TestCurrentQuestionOutsideGame(t *testing.T) {
	s := NewSession("game-instance-default")

	_, err := s.CurrentQuestion()
	var serr *StateError
	assert.ErrorAs(t, err, &serr)
}
