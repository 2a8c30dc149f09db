package services

import (
	"context"
	"fmt"
	"strings"

	"kudos-backend/metrics"
	"kudos-backend/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RecognitionRequest is the input of SendRecognition.
type RecognitionRequest struct {
	SenderID   string
	ReceiverID string
	Message    string
	Badge      models.Badge
	Points     int64
}

// RecognitionService records recognitions and credits their points. The
// recognition is kept even when the credit fails; RetryCredit completes it.
type RecognitionService struct {
	DB            *gorm.DB
	Ledger        *LedgerService
	Notifications NotificationQueue
	Log           logrus.FieldLogger

	AllowSelfRecognition bool
	MaxPoints            int64
}

func NewRecognitionService(db *gorm.DB, ledger *LedgerService, queue NotificationQueue, log logrus.FieldLogger) *RecognitionService {
	if queue == nil {
		queue = discardQueue{}
	}
	return &RecognitionService{
		DB:            db,
		Ledger:        ledger,
		Notifications: queue,
		Log:           log,
	}
}

func (s *RecognitionService) validate(req *RecognitionRequest) error {
	req.SenderID = strings.TrimSpace(req.SenderID)
	req.ReceiverID = strings.TrimSpace(req.ReceiverID)
	req.Message = strings.TrimSpace(req.Message)
	req.Badge = models.Badge(strings.ToUpper(strings.TrimSpace(string(req.Badge))))

	if req.SenderID == "" {
		return invalidInput("sender_id is required")
	}
	if req.ReceiverID == "" {
		return invalidInput("receiver_id is required")
	}
	if req.Message == "" {
		return invalidInput("message is required")
	}
	if req.Points < 0 {
		return invalidInput("points must not be negative")
	}
	if s.MaxPoints > 0 && req.Points > s.MaxPoints {
		return invalidInput("points must not exceed %d", s.MaxPoints)
	}
	if req.Badge != "" && !req.Badge.IsValid() {
		return invalidInput("unknown badge %q", req.Badge)
	}
	if !s.AllowSelfRecognition && req.SenderID == req.ReceiverID {
		return ErrSelfRecognition
	}
	return nil
}

// SendRecognition persists the recognition and then credits the receiver.
// A credit failure is returned together with the stored recognition.
func (s *RecognitionService) SendRecognition(ctx context.Context, req RecognitionRequest) (*models.Recognition, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}

	rec := models.Recognition{
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Message:    req.Message,
		Badge:      req.Badge,
		Points:     req.Points,
	}
	if err := s.DB.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, internal("failed to save recognition", err)
	}
	metrics.RecordRecognition()

	log := s.Log.WithFields(logrus.Fields{
		"recognition_id": rec.ID,
		"sender_id":      rec.SenderID,
		"receiver_id":    rec.ReceiverID,
		"points":         rec.Points,
	})

	var creditErr error
	if rec.Points > 0 {
		_, creditErr = s.Ledger.Credit(ctx, rec.ReceiverID, rec.Points, models.SourceRecognition, rec.ID.String())
		if creditErr != nil {
			log.WithError(creditErr).Error("recognition saved but credit failed")
		}
	}

	s.Notifications.Enqueue(recognitionNotification(&rec))
	log.Info("recognition sent")
	return &rec, creditErr
}

func recognitionNotification(rec *models.Recognition) Notification {
	message := fmt.Sprintf("%s recognized you: %s", rec.SenderID, rec.Message)
	if rec.Points > 0 {
		message = fmt.Sprintf("%s recognized you with %d points: %s", rec.SenderID, rec.Points, rec.Message)
	}
	data := map[string]string{
		"type":           "recognition",
		"recognition_id": rec.ID.String(),
	}
	if rec.Badge != "" {
		data["badge"] = string(rec.Badge)
	}
	return Notification{
		UserID:  rec.ReceiverID,
		Title:   "You've been recognized",
		Message: message,
		Data:    data,
	}
}

// Get loads a single recognition.
func (s *RecognitionService) Get(ctx context.Context, id uuid.UUID) (*models.Recognition, error) {
	var rec models.Recognition
	res := s.DB.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&rec)
	if res.Error != nil {
		return nil, internal("failed to load recognition", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrRecognitionNotFound
	}
	return &rec, nil
}

// RetryCredit re-applies the credit of a recognition. The ledger reference makes
// it safe to call any number of times; it returns the receiver's balance.
func (s *RecognitionService) RetryCredit(ctx context.Context, id uuid.UUID) (*models.Recognition, int64, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	if rec.Points == 0 {
		balance, err := s.Ledger.GetBalance(ctx, rec.ReceiverID)
		return rec, balance, err
	}
	balance, err := s.Ledger.Credit(ctx, rec.ReceiverID, rec.Points, models.SourceRecognition, rec.ID.String())
	if err != nil {
		return rec, 0, err
	}
	return rec, balance, nil
}

// RecognitionFilter narrows List. Empty fields match everything.
type RecognitionFilter struct {
	SenderID   string
	ReceiverID string
}

// List returns a page of recognitions, newest first.
func (s *RecognitionService) List(ctx context.Context, filter RecognitionFilter, page, limit int) ([]models.Recognition, int64, error) {
	page, limit = normalizePage(page, limit)

	db := s.DB.WithContext(ctx).Model(&models.Recognition{})
	if filter.SenderID != "" {
		db = db.Where("sender_id = ?", filter.SenderID)
	}
	if filter.ReceiverID != "" {
		db = db.Where("receiver_id = ?", filter.ReceiverID)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, internal("failed to count recognitions", err)
	}

	recognitions := []models.Recognition{}
	if err := db.Order("created_at DESC, id ASC").Offset((page - 1) * limit).Limit(limit).Find(&recognitions).Error; err != nil {
		return nil, 0, internal("failed to list recognitions", err)
	}
	return recognitions, total, nil
}
