package ws

import "encoding/json"

// Event names for the WebSocket protocol.
const (
	// Client -> Server
	EventReconnectStateRequest = "reconnectStateRequest"
	EventJoinGameInstance      = "joinGameInstance"
	EventPing                  = "ping"

	// Server -> Client
	EventGameStarted         = "gameStarted"
	EventNewQuestion         = "newQuestion"
	EventRoundComplete       = "roundComplete"
	EventGameOver            = "gameOver"
	EventGameReset           = "gameReset"
	EventPlayerRegistered    = "playerRegistered"
	EventPlayerAnswered      = "playerAnswered"
	EventReconnectState      = "reconnectState"
	EventInstancePlayerCount = "instancePlayerCount"
	EventGameInstanceInfo    = "gameInstanceInfo"
	EventError               = "error"
	EventPong                = "pong"
)

// Message wraps all WebSocket payloads with an event name.
type Message struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage marshals payload into a Message. Marshal failures collapse to an
// empty payload; every payload type here is a plain struct so this only
// happens on programmer error.
func NewMessage(event string, payload any) Message {
	msg := Message{Event: event}
	if payload != nil {
		msg.Payload, _ = json.Marshal(payload)
	}
	return msg
}

// Client messages (incoming)

type JoinGameInstancePayload struct {
	InstanceID string `json:"instanceId"`
}

// Server messages (outgoing)

type QuestionPayload struct {
	Text    string   `json:"question"`
	Choices []string `json:"choices"`
}

type GameStartedPayload struct {
	CurrentQuestion QuestionPayload `json:"currentQuestion"`
	IntroQuip       string          `json:"introQuip"`
	WelcomeQuip     string          `json:"welcomeQuip"`
	TotalQuestions  int             `json:"totalQuestions"`
	InstanceID      string          `json:"instanceId"`
}

type NewQuestionPayload struct {
	Question      QuestionPayload `json:"question"`
	QuestionIndex int             `json:"questionIndex"`
	InstanceID    string          `json:"instanceId"`
}

type RoundCompletePayload struct {
	Winners        []string       `json:"winners"`
	CorrectAnswer  string         `json:"correctAnswer"`
	Scores         map[string]int `json:"scores"`
	Quip           string         `json:"quip"`
	QuestionIndex  int            `json:"currentQuestionIndex"`
	TotalQuestions int            `json:"totalQuestions"`
	IsLastQuestion bool           `json:"isLastQuestion"`
	InstanceID     string         `json:"instanceId"`
}

type GameOverPayload struct {
	Winners     []string       `json:"winners"`
	FinalScores map[string]int `json:"finalScores"`
	Quip        string         `json:"quip"`
	GoodbyeQuip string         `json:"goodbyeQuip"`
	InstanceID  string         `json:"instanceId"`
}

type PlayerInfo struct {
	Handle   string `json:"handle"`
	JoinedAt string `json:"joinedAt"`
}

type PlayerRegisteredPayload struct {
	Players    []PlayerInfo `json:"players"`
	InstanceID string       `json:"instanceId"`
}

type PlayerAnsweredPayload struct {
	Handle     string `json:"handle"`
	Answered   int    `json:"answered"`
	Registered int    `json:"registered"`
	InstanceID string `json:"instanceId"`
}

type InstancePlayerCountPayload struct {
	Count      int    `json:"count"`
	InstanceID string `json:"instanceId"`
}

type GameInstanceInfoPayload struct {
	InstanceID string `json:"instanceId"`
	Timestamp  string `json:"timestamp"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
