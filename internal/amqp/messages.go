package amqp

import (
	"encoding/json"
	"time"
)

// BoardRefreshedMessage announces that a new dataset replaced the old one.
// Consumers reload what they need from the board; the message only carries
// what they need to decide whether to bother.
type BoardRefreshedMessage struct {
	BoardID   string    `json:"board_id"`
	Items     int       `json:"items"`
	Records   int       `json:"records"`
	FetchedAt time.Time `json:"fetched_at"`
	Trigger   string    `json:"trigger"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBoardRefreshedMessage(boardID string, items, records int, fetchedAt time.Time, trigger string) *BoardRefreshedMessage {
	return &BoardRefreshedMessage{
		BoardID:   boardID,
		Items:     items,
		Records:   records,
		FetchedAt: fetchedAt,
		Trigger:   trigger,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *BoardRefreshedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// BoardRefreshedMessageFromJSON decodes a message body.
func BoardRefreshedMessageFromJSON(data []byte) (*BoardRefreshedMessage, error) {
	var msg BoardRefreshedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
