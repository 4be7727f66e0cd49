package services

import (
	"communication-service/internal/database"
	"communication-service/internal/models"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Task kinds handled by the background worker
const (
	TaskSendNotifications = "send_notifications"
	TaskSendCSVEmail      = "send_csv_email"
)

type QueueService struct{}

func (s *QueueService) Enqueue(kind string, payload models.JSONMap) (*models.Task, error) {
	task := models.Task{
		Kind:    kind,
		Payload: payload,
		Status:  models.TaskStatusPending,
	}

	if err := database.DB.Create(&task).Error; err != nil {
		return nil, err
	}

	return &task, nil
}

// GetPendingTask claims the oldest pending task, if any. The claim happens
// inside a transaction with SKIP LOCKED so concurrent workers never grab
// the same row.
func (s *QueueService) GetPendingTask() (*models.Task, error) {
	var task models.Task

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", models.TaskStatusPending).
			Order("created_at asc").
			First(&task)

		if result.Error != nil {
			return result.Error
		}

		now := time.Now()
		if err := tx.Model(&models.Task{}).Where("id = ?", task.ID).Updates(map[string]interface{}{
			"status":     models.TaskStatusRunning,
			"started_at": now,
		}).Error; err != nil {
			return err
		}

		task.Status = models.TaskStatusRunning
		task.StartedAt = &now
		return nil
	})

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &task, nil
}

func (s *QueueService) UpdateTask(task *models.Task) error {
	return database.DB.Model(task).Select("status", "finished_at", "error_message").Updates(task).Error
}

func (s *QueueService) GetActiveTasks() ([]models.Task, error) {
	var tasks []models.Task
	err := database.DB.Where("status IN ?", []string{models.TaskStatusPending, models.TaskStatusRunning}).
		Order("created_at asc").
		Find(&tasks).Error
	return tasks, err
}

func (s *QueueService) GetTaskHistory(limit int) ([]models.Task, error) {
	var tasks []models.Task
	err := database.DB.Where("status IN ?", []string{models.TaskStatusSuccess, models.TaskStatusFailed}).
		Order("finished_at desc").
		Limit(limit).
		Find(&tasks).Error
	return tasks, err
}

func (s *QueueService) CountByStatus(status string) (int64, error) {
	var count int64
	err := database.DB.Model(&models.Task{}).Where("status = ?", status).Count(&count).Error
	return count, err
}
