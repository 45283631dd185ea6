package game

import (
	"time"
)

// Phase is the coarse session state.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseInProgress Phase = "in_progress"
	PhaseEnded      Phase = "ended"
)

// Question is an immutable multiple-choice question. CorrectAnswer is always
// one of Choices; the generator client enforces that at the boundary.
type Question struct {
	Text          string   `json:"question"`
	Choices       []string `json:"choices"`
	CorrectAnswer string   `json:"correctAnswer"`
}

// Player is a registered participant, unique by handle.
type Player struct {
	Handle   string    `json:"handle"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Session tracks one running (or not-yet-started / ended) game instance.
// All mutation goes through its methods; the Registry serializes callers
// per instance, so methods themselves do no locking.
type Session struct {
	InstanceID           string
	Phase                Phase
	Topics               []string
	Questions            []Question
	CurrentQuestionIndex int
	TotalQuestions       int
	Players              []Player
	Answers              map[string]string
	Scores               map[string]int
	ActiveConnections    map[string]struct{}
	CreatedAt            time.Time
	LastActivity         time.Time
}

// NewSession creates an empty not-started session for an instance id.
func NewSession(instanceID string) *Session {
	now := time.Now().UTC()
	return &Session{
		InstanceID:        instanceID,
		Phase:             PhaseNotStarted,
		Answers:           make(map[string]string),
		Scores:            make(map[string]int),
		ActiveConnections: make(map[string]struct{}),
		CreatedAt:         now,
		LastActivity:      now,
	}
}

// AnswerResult reports the outcome of a single submission.
type AnswerResult struct {
	Correct       bool
	Score         int
	RoundComplete bool
	RoundWinners  []string
	CorrectAnswer string
	LastQuestion  bool
}

// Register adds a player unless already present. Duplicate registration is an
// idempotent no-op.
func (s *Session) Register(handle string) error {
	if handle == "" {
		return NewValidationError("player handle is required")
	}
	for _, p := range s.Players {
		if p.Handle == handle {
			return nil
		}
	}
	s.Players = append(s.Players, Player{Handle: handle, JoinedAt: time.Now().UTC()})
	return nil
}

// HasPlayer reports whether a handle is registered.
func (s *Session) HasPlayer(handle string) bool {
	for _, p := range s.Players {
		if p.Handle == handle {
			return true
		}
	}
	return false
}

// Start begins a game with a pre-generated question sequence. Scores and
// round answers are cleared; an ended session may be started again directly.
func (s *Session) Start(topics []string, questions []Question) error {
	if s.Phase == PhaseInProgress {
		return NewStateError("game is already in progress")
	}
	if len(questions) == 0 {
		return NewGameError("no questions provided")
	}
	s.Phase = PhaseInProgress
	s.Topics = topics
	s.Questions = questions
	s.CurrentQuestionIndex = 0
	s.TotalQuestions = len(questions)
	s.Scores = make(map[string]int)
	s.Answers = make(map[string]string)
	return nil
}

// SubmitAnswer records a player's answer for the current round. The first
// answer wins; later submissions from the same handle are rejected, not
// overwritten. A correct answer increments the player's cumulative score.
func (s *Session) SubmitAnswer(handle, answer string) (AnswerResult, error) {
	if handle == "" || answer == "" {
		return AnswerResult{}, NewValidationError("player handle and answer are required")
	}
	if s.Phase != PhaseInProgress {
		return AnswerResult{}, NewStateError("game has not started")
	}
	if !s.HasPlayer(handle) {
		return AnswerResult{}, NewValidationError("player %q is not registered", handle)
	}
	if _, answered := s.Answers[handle]; answered {
		return AnswerResult{}, NewStateError("player has already answered")
	}

	current, err := s.CurrentQuestion()
	if err != nil {
		return AnswerResult{}, err
	}

	s.Answers[handle] = answer
	correct := answer == current.CorrectAnswer
	if correct {
		s.Scores[handle]++
	}

	result := AnswerResult{
		Correct:       correct,
		Score:         s.Scores[handle],
		RoundComplete: IsRoundComplete(s),
		LastQuestion:  s.CurrentQuestionIndex >= s.TotalQuestions-1,
	}
	if result.RoundComplete {
		result.RoundWinners = RoundWinners(s)
		result.CorrectAnswer = current.CorrectAnswer
	}
	return result, nil
}

// Advance moves to the next question and clears the round-local answers.
func (s *Session) Advance() (Question, error) {
	if s.Phase != PhaseInProgress {
		return Question{}, NewStateError("game has not started")
	}
	if s.CurrentQuestionIndex >= len(s.Questions)-1 {
		return Question{}, NewGameError("no more questions available")
	}
	s.CurrentQuestionIndex++
	s.Answers = make(map[string]string)
	return s.Questions[s.CurrentQuestionIndex], nil
}

// End finishes the game. Scores survive for the final display; the
// round-local answers do not.
func (s *Session) End() error {
	if s.Phase != PhaseInProgress {
		return NewStateError("game is not in progress")
	}
	s.Phase = PhaseEnded
	s.Answers = make(map[string]string)
	return nil
}

// Reset returns the session to its empty not-started shape. A non-empty
// newInstanceID re-keys the session, used when repurposing the default
// instance.
func (s *Session) Reset(newInstanceID string) {
	if newInstanceID != "" {
		s.InstanceID = newInstanceID
	}
	s.Phase = PhaseNotStarted
	s.Topics = nil
	s.Questions = nil
	s.CurrentQuestionIndex = 0
	s.TotalQuestions = 0
	s.Players = nil
	s.Answers = make(map[string]string)
	s.Scores = make(map[string]int)
	s.ActiveConnections = make(map[string]struct{})
	s.LastActivity = time.Now().UTC()
}

// CurrentQuestion returns the question the active round is about.
func (s *Session) CurrentQuestion() (Question, error) {
	if s.Phase != PhaseInProgress {
		return Question{}, NewStateError("no current question available")
	}
	if s.CurrentQuestionIndex < 0 || s.CurrentQuestionIndex >= len(s.Questions) {
		return Question{}, NewGameError("question index %d out of range", s.CurrentQuestionIndex)
	}
	return s.Questions[s.CurrentQuestionIndex], nil
}

// AddConnection tracks a live connection attached to this session.
func (s *Session) AddConnection(connID string) {
	if s.ActiveConnections == nil {
		s.ActiveConnections = make(map[string]struct{})
	}
	s.ActiveConnections[connID] = struct{}{}
}

// RemoveConnection drops a connection from presence tracking.
func (s *Session) RemoveConnection(connID string) {
	delete(s.ActiveConnections, connID)
}

// Touch bumps the last-activity timestamp.
func (s *Session) Touch() {
	s.LastActivity = time.Now().UTC()
}
