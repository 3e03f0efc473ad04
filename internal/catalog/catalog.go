package catalog

import (
	"context"
	"errors"
	"log"

	"github.com/parkwise/reservation-service/internal/models"
	"github.com/parkwise/reservation-service/internal/repository"
	"github.com/parkwise/reservation-service/pkg/rabbitmq"
	"gorm.io/gorm"
)

var ErrSpotNotFound = errors.New("spot not found")

// Catalog is the parking-lot collaborator: it owns spot data and
// occupancy marks. The reservation core consumes this interface only.
type Catalog interface {
	GetSpot(ctx context.Context, spotID uint) (*models.Spot, error)
	IsSpotFree(ctx context.Context, spotID uint) (bool, error)
	MarkReserved(ctx context.Context, spotID uint) error
	MarkFree(ctx context.Context, spotID uint) error
}

// localCatalog serves reads from the Postgres spot read model (synced by
// the spot.* consumer) and propagates marks back to the catalog service
// over RabbitMQ. Marks are idempotent: re-freeing a free spot is fine.
type localCatalog struct {
	spots     repository.SpotRepository
	publisher *rabbitmq.Publisher
}

func NewLocalCatalog(spots repository.SpotRepository, publisher *rabbitmq.Publisher) Catalog {
	return &localCatalog{spots: spots, publisher: publisher}
}

func (c *localCatalog) GetSpot(ctx context.Context, spotID uint) (*models.Spot, error) {
	spot, err := c.spots.FindByID(ctx, spotID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSpotNotFound
		}
		return nil, err
	}
	return spot, nil
}

func (c *localCatalog) IsSpotFree(ctx context.Context, spotID uint) (bool, error) {
	spot, err := c.GetSpot(ctx, spotID)
	if err != nil {
		return false, err
	}
	return spot.Status == models.SpotFree, nil
}

func (c *localCatalog) MarkReserved(ctx context.Context, spotID uint) error {
	if err := c.spots.UpdateStatus(ctx, spotID, models.SpotReserved); err != nil {
		return err
	}
	c.notify("spot.reserved", spotID)
	return nil
}

func (c *localCatalog) MarkFree(ctx context.Context, spotID uint) error {
	if err := c.spots.UpdateStatus(ctx, spotID, models.SpotFree); err != nil {
		return err
	}
	c.notify("spot.freed", spotID)
	return nil
}

func (c *localCatalog) notify(routingKey string, spotID uint) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(routingKey, map[string]uint{"spot_id": spotID}); err != nil {
		log.Printf("[Catalog] publish %s for spot %d failed: %v", routingKey, spotID, err)
	}
}
