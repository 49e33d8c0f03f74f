package repository

import (
	"context"
	"errors"

	"comedor/internal/domain/model"
	repo "comedor/internal/repository"

	"gorm.io/gorm"
)

type dishGormRepository struct {
	db *gorm.DB
}

func NewDishGormRepository(db *gorm.DB) repo.DishRepository {
	return &dishGormRepository{db: db}
}

func (r *dishGormRepository) List(ctx context.Context) ([]model.Dish, error) {
	var dishes []model.Dish
	err := r.db.WithContext(ctx).Preload("Ingredients").Order("name ASC").Find(&dishes).Error
	return dishes, err
}

func (r *dishGormRepository) FindByID(ctx context.Context, id int64) (model.Dish, error) {
	var d model.Dish
	err := r.db.WithContext(ctx).Preload("Ingredients").First(&d, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Dish{}, repo.ErrNotFound
	}
	return d, err
}

func (r *dishGormRepository) ListIngredients(ctx context.Context, dishID int64) ([]model.DishIngredient, error) {
	var ings []model.DishIngredient
	err := r.db.WithContext(ctx).Where("dish_id = ?", dishID).Find(&ings).Error
	return ings, err
}

func (r *dishGormRepository) DetachProduct(ctx context.Context, productID int64) error {
	return r.db.WithContext(ctx).Model(&model.DishIngredient{}).
		Where("product_id = ?", productID).
		Update("product_id", nil).Error
}

type profileGormRepository struct {
	db *gorm.DB
}

func NewProfileGormRepository(db *gorm.DB) repo.ProfileRepository {
	return &profileGormRepository{db: db}
}

func (r *profileGormRepository) FindByID(ctx context.Context, id string) (model.Profile, error) {
	var p model.Profile
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Profile{}, repo.ErrNotFound
	}
	return p, err
}
