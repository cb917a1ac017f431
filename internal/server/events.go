package server

const (
	eventHello         = "hello"
	eventPixelRevealed = "pixel_revealed"
	eventGameActivated = "game_activated"
	eventGameCompleted = "game_completed"
)

type wsEvent struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type pixelRevealedEvent struct {
	ImageID        uint   `json:"imageId"`
	Index          int    `json:"index"`
	Color          string `json:"color"`
	RevealedBy     string `json:"revealedBy"`
	RevealedPixels int    `json:"revealedPixels"`
}

type gameCompletedEvent struct {
	ImageID       uint    `json:"imageId"`
	OnchainGameID *uint64 `json:"onchainGameId"`
	WinnerAddress string  `json:"winnerAddress"`
	PoolAmount    string  `json:"poolAmount"`
}

func (s *Server) broadcast(eventType string, data any) {
	s.hub.Broadcast(wsEvent{Type: eventType, Data: data})
}
