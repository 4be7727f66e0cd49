package worker

import (
	"fmt"
	"log"
	"time"

	"communication-service/internal/models"
	"communication-service/internal/services"
	"communication-service/internal/utils"
)

type Worker struct {
	QueueService  services.QueueService
	AuthService   services.AuthService
	ExportService services.ExportService
}

func NewWorker() *Worker {
	return &Worker{
		QueueService:  services.QueueService{},
		AuthService:   services.AuthService{},
		ExportService: services.ExportService{},
	}
}

func (w *Worker) Start() {
	log.Println("Background Worker Started... (Polling every 5s)")

	go func() {
		for {
			task, err := w.QueueService.GetPendingTask()
			if err != nil {
				log.Printf("Worker DB Error: %v", err)
				time.Sleep(5 * time.Second)
				continue
			}

			if task == nil {
				time.Sleep(5 * time.Second)
				continue
			}

			log.Printf("Worker: Processing Task %s (%s)", task.ID, task.Kind)
			w.processTask(task)
		}
	}()
}

func (w *Worker) processTask(task *models.Task) {
	var err error
	switch task.Kind {
	case services.TaskSendNotifications:
		err = w.handleSendNotifications(task)
	case services.TaskSendCSVEmail:
		err = w.handleSendCSVEmail(task)
	default:
		err = fmt.Errorf("unknown task kind %q", task.Kind)
	}

	if err != nil {
		log.Printf("Worker: Task %s failed: %v", task.ID, err)
		task.MarkFinished(models.TaskStatusFailed, err.Error())
	} else {
		task.MarkFinished(models.TaskStatusSuccess, "")
	}
	if updateErr := w.QueueService.UpdateTask(task); updateErr != nil {
		log.Printf("Worker: failed to persist task %s result: %v", task.ID, updateErr)
	}
}

// handleSendNotifications fans an email template out to every recipient
// listed in the payload, each with its own context. The audit rows are
// attributed to the notifications system user.
func (w *Worker) handleSendNotifications(task *models.Task) error {
	payload := map[string]interface{}(task.Payload)

	templateName, _ := payload["template"].(string)
	templatePath, err := utils.ValidateEmailTemplate(utils.TemplatesDir(), templateName)
	if err != nil {
		return err
	}

	recipients := toStringSlice(payload["emails"])
	if len(recipients) == 0 {
		return fmt.Errorf("notification task %s has no recipients", task.ID)
	}

	fromAddress, _ := payload["from_address"].(string)
	context := toStringMap(payload["context"])

	user, err := w.AuthService.NotificationsUser()
	if err != nil {
		return err
	}

	emailService := services.EmailService{
		TemplatesPath: templatePath,
		To:            recipients,
		FromAddress:   fromAddress,
		Context:       context,
		User:          user,
	}
	_, err = emailService.SendWithBulkContextAndLog(true)
	return err
}

func (w *Worker) handleSendCSVEmail(task *models.Task) error {
	payload := map[string]interface{}(task.Payload)

	exporter, _ := payload["exporter"].(string)
	userID, _ := payload["user_id"].(string)
	failSilently, _ := payload["fail_silently"].(bool)

	return w.ExportService.SendCSVEmail(
		exporter,
		toStringSlice(payload["pks"]),
		toStringSlice(payload["columns"]),
		userID,
		failSilently,
	)
}

// Payloads come back from jsonb as []interface{} / map[string]interface{};
// these coerce them into the shapes the handlers want.
func toStringSlice(raw interface{}) []string {
	switch value := raw.(type) {
	case []string:
		return value
	case []interface{}:
		out := make([]string, 0, len(value))
		for _, item := range value {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func toStringMap(raw interface{}) map[string]interface{} {
	if value, ok := raw.(map[string]interface{}); ok {
		return value
	}
	return nil
}
