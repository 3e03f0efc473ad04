package consumer

import (
	"encoding/json"
	"log"

	"github.com/parkwise/reservation-service/internal/models"
	amqp "github.com/rabbitmq/amqp091-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SpotConsumer struct {
	db *gorm.DB
}

func NewSpotConsumer(db *gorm.DB) *SpotConsumer {
	return &SpotConsumer{db: db}
}

// Start listens for catalog messages and upserts spots into the local read model.
func (sc *SpotConsumer) Start(msgs <-chan amqp.Delivery) {
	go func() {
		for msg := range msgs {
			sc.handleMessage(msg)
		}
		log.Println("[SpotConsumer] channel closed, stopping consumer")
	}()
}

func (sc *SpotConsumer) handleMessage(msg amqp.Delivery) {
	var spot models.Spot
	if err := json.Unmarshal(msg.Body, &spot); err != nil {
		log.Printf("[SpotConsumer] failed to unmarshal: %v", err)
		msg.Nack(false, false)
		return
	}

	// Upsert: insert or update on conflict (same ID from the catalog service)
	result := sc.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"spot_number", "parking_name", "parking_address", "level_number", "hourly_rate", "status", "updated_at"}),
	}).Create(&spot)

	if result.Error != nil {
		log.Printf("[SpotConsumer] failed to upsert spot %d: %v", spot.ID, result.Error)
		msg.Nack(false, true) // requeue
		return
	}

	log.Printf("[SpotConsumer] synced spot %d (%s)", spot.ID, spot.SpotNumber)
	msg.Ack(false)
}
