package kafka

import (
	"encoding/json"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

// IncomingMessage is a consumed Kafka message plus parsed headers.
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string
}

// ObservationBatch is the payload the extraction layer publishes: one or
// more profile observations.
type ObservationBatch struct {
	Items []models.ProfileObservation `json:"items"`
}

// ParseObservations decodes the message body. Both a batch envelope and a
// bare single observation are accepted; extraction publishes either.
func (m *IncomingMessage) ParseObservations() ([]models.ProfileObservation, error) {
	var batch ObservationBatch
	if err := json.Unmarshal(m.Value, &batch); err == nil && len(batch.Items) > 0 {
		return batch.Items, nil
	}

	var single models.ProfileObservation
	if err := json.Unmarshal(m.Value, &single); err != nil {
		return nil, err
	}
	return []models.ProfileObservation{single}, nil
}
