package repositories

import (
	"context"

	"babcia/internal/database"
	"babcia/internal/logger"
	"babcia/internal/models"
	"babcia/internal/types"
)

const defaultInteractionLimit = 50

type InteractionRepository interface {
	Create(ctx context.Context, interaction *models.Interaction) error
	// History returns the persona's most recent interactions, oldest first
	History(ctx context.Context, persona models.Persona, limit int) ([]models.Interaction, error)
	Last(ctx context.Context, persona models.Persona) (*models.Interaction, error)
}

type interactionRepository struct {
	db  database.DB
	log logger.Logger
}

func NewInteractionRepository(db database.DB) InteractionRepository {
	return &interactionRepository{
		db:  db,
		log: logger.New("interactionRepository"),
	}
}

func (r *interactionRepository) Create(ctx context.Context, interaction *models.Interaction) error {
	log := r.log.Function("Create")

	if err := r.db.SQLWithContext(ctx).Create(interaction).Error; err != nil {
		return log.ErrorWithType(types.ErrStorage, "failed to record interaction",
			"persona", interaction.Persona, "error", err)
	}
	return nil
}

func (r *interactionRepository) History(
	ctx context.Context,
	persona models.Persona,
	limit int,
) ([]models.Interaction, error) {
	log := r.log.Function("History")

	if limit <= 0 {
		limit = defaultInteractionLimit
	}

	var interactions []models.Interaction
	if err := r.db.SQLWithContext(ctx).
		Where("persona = ?", persona).
		Order("timestamp DESC").
		Limit(limit).
		Find(&interactions).Error; err != nil {
		return nil, log.ErrorWithType(types.ErrStorage, "failed to load interactions",
			"persona", persona, "error", err)
	}

	for i, j := 0, len(interactions)-1; i < j; i, j = i+1, j-1 {
		interactions[i], interactions[j] = interactions[j], interactions[i]
	}
	return interactions, nil
}

func (r *interactionRepository) Last(ctx context.Context, persona models.Persona) (*models.Interaction, error) {
	interactions, err := r.History(ctx, persona, 1)
	if err != nil {
		return nil, err
	}
	if len(interactions) == 0 {
		return nil, nil
	}
	return &interactions[0], nil
}
