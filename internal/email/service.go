package email

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"time"

	"github.com/redis/go-redis/v9"

	"fitclass/internal/logger"
	"fitclass/internal/metrics"
)

const (
	queueKey  = "emails"
	failedKey = "emails:failed"

	maxTries = 3
)

type Job struct {
	To      string    `json:"to"`
	Name    string    `json:"name"`
	Type    string    `json:"type"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Tries   int       `json:"tries"`
	Created time.Time `json:"created"`
}

// Service queues outgoing mail on Redis and drains the queue from a worker
// goroutine. Sending is decoupled from request handling so a slow SMTP
// server never blocks a booking.
type Service struct {
	redis    *redis.Client
	from     string
	fromName string
	smtpHost string
	smtpPort string
	smtpUser string
	smtpPass string
}

func New(rdb *redis.Client, fromEmail, fromName, smtpHost, smtpPort, smtpUser, smtpPass string) *Service {
	return &Service{
		redis:    rdb,
		from:     fromEmail,
		fromName: fromName,
		smtpHost: smtpHost,
		smtpPort: smtpPort,
		smtpUser: smtpUser,
		smtpPass: smtpPass,
	}
}

func (s *Service) enqueue(ctx context.Context, job Job) error {
	job.Created = time.Now()

	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := s.redis.LPush(ctx, queueKey, data).Err(); err != nil {
		logger.Errorf("Failed to queue email to %s: %v", job.To, err)
		metrics.RecordEmail(job.Type, "queue_failed")
		return err
	}
	logger.Infof("Email queued: %s to %s", job.Subject, job.To)
	return nil
}

// Start runs the queue worker until the context ends.
func (s *Service) Start(ctx context.Context) {
	logger.Info("Email worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Email worker stopped")
			return
		default:
			s.processNext(ctx)
		}
	}
}

func (s *Service) processNext(ctx context.Context) {
	result, err := s.redis.BRPop(ctx, 2*time.Second, queueKey).Result()
	if err != nil {
		return
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		logger.Errorf("Bad email data: %v", err)
		return
	}

	job.Tries++
	if err := s.sendNow(job); err != nil {
		logger.Errorf("Failed to send email to %s (attempt %d): %v", job.To, job.Tries, err)

		if job.Tries < maxTries {
			time.Sleep(5 * time.Second)
			data, _ := json.Marshal(job)
			s.redis.LPush(context.Background(), queueKey, data)
		} else {
			s.saveFailed(job, err)
			metrics.RecordEmail(job.Type, "failed")
		}
		return
	}

	logger.Infof("Email sent to %s", job.To)
	metrics.RecordEmail(job.Type, "sent")
}

func (s *Service) sendNow(job Job) error {
	message := fmt.Sprintf("From: %s <%s>\r\n", s.fromName, s.from)
	message += fmt.Sprintf("To: %s\r\n", job.To)
	message += fmt.Sprintf("Subject: %s\r\n", job.Subject)
	message += "\r\n" + job.Body

	var auth smtp.Auth
	if s.smtpUser != "" && s.smtpPass != "" {
		auth = smtp.PlainAuth("", s.smtpUser, s.smtpPass, s.smtpHost)
	}

	addr := s.smtpHost + ":" + s.smtpPort
	return smtp.SendMail(addr, auth, s.from, []string{job.To}, []byte(message))
}

func (s *Service) saveFailed(job Job, err error) {
	failed := map[string]interface{}{
		"job":   job,
		"error": err.Error(),
		"time":  time.Now(),
	}
	data, _ := json.Marshal(failed)
	s.redis.LPush(context.Background(), failedKey, data)
	logger.Errorf("Email to %s moved to failed queue after %d attempts", job.To, job.Tries)
}

func (s *Service) QueueLength(ctx context.Context) int64 {
	length, _ := s.redis.LLen(ctx, queueKey).Result()
	return length
}

func (s *Service) SendBookingConfirmed(ctx context.Context, to, name string, start time.Time) error {
	body := fmt.Sprintf(`Hi %s,

Your booking is confirmed.

Class time: %s

See you there!

- FitClass Team`, name, start.Format("Jan 2, 2006 at 3:04 PM"))

	return s.enqueue(ctx, Job{
		To:      to,
		Name:    name,
		Type:    "booking_confirmed",
		Subject: "Booking Confirmed",
		Body:    body,
	})
}

func (s *Service) SendBookingCancelled(ctx context.Context, to, name string, reason string) error {
	if reason == "" {
		reason = "the booking was cancelled"
	}
	body := fmt.Sprintf(`Hi %s,

Your booking is no longer active: %s.

If a session was restored to your account it is available for rebooking.

- FitClass Team`, name, reason)

	return s.enqueue(ctx, Job{
		To:      to,
		Name:    name,
		Type:    "booking_cancelled",
		Subject: "Booking Cancelled",
		Body:    body,
	})
}

func (s *Service) SendReminder(ctx context.Context, to, name string, start time.Time) error {
	body := fmt.Sprintf(`Hi %s,

A reminder about your upcoming class:

Class time: %s

- FitClass Team`, name, start.Format("Jan 2, 2006 at 3:04 PM"))

	return s.enqueue(ctx, Job{
		To:      to,
		Name:    name,
		Type:    "reminder",
		Subject: "Class Reminder",
		Body:    body,
	})
}
