package email

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"time"

	"campuscredits/internal/logger"
	"campuscredits/internal/metrics"

	"github.com/redis/go-redis/v9"
)

const (
	queueKey       = "emails"
	failedQueueKey = "emails:failed"
	maxTries       = 3
)

type EmailJob struct {
	Type    string    `json:"type"`
	To      string    `json:"to"`
	Name    string    `json:"name"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Tries   int       `json:"tries"`
	Created time.Time `json:"created"`
}

// Contacts resolves where to send mail for an account.
type Contacts interface {
	Contact(ctx context.Context, accountID int64) (email, displayName string, err error)
}

type Settings struct {
	From     string
	FromName string
	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
}

type Service struct {
	redis      *redis.Client
	contacts   Contacts
	settings   Settings
	send       func(EmailJob) error
	retryDelay time.Duration
}

func New(rdb *redis.Client, contacts Contacts, settings Settings) *Service {
	s := &Service{
		redis:      rdb,
		contacts:   contacts,
		settings:   settings,
		retryDelay: 5 * time.Second,
	}
	s.send = s.sendNow
	return s
}

func (s *Service) Send(ctx context.Context, emailType, to, name, subject, body string) error {
	job := EmailJob{
		Type:    emailType,
		To:      to,
		Name:    name,
		Subject: subject,
		Body:    body,
		Tries:   0,
		Created: time.Now(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		logger.Errorf("Failed to marshal email job: %v", err)
		return err
	}

	if err := s.redis.LPush(ctx, queueKey, string(data)).Err(); err != nil {
		logger.Errorf("Failed to queue email to %s: %v", to, err)
		return err
	}

	logger.Info("email queued", "type", emailType, "to", to)
	return nil
}

// Start consumes the queue until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	logger.Info("Email service started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Email service stopped")
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

	var job EmailJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		logger.Errorf("Bad email data: %v", err)
		return
	}

	job.Tries++
	logger.Debug("sending email", "to", job.To, "attempt", job.Tries)
	if err := s.send(job); err != nil {
		logger.WithError(err).Warn("email send failed", "to", job.To, "attempt", job.Tries)

		if job.Tries < maxTries {
			if s.retryDelay > 0 {
				select {
				case <-ctx.Done():
				case <-time.After(s.retryDelay):
				}
			}
			data, _ := json.Marshal(job)
			s.redis.LPush(context.Background(), queueKey, string(data))
			metrics.RecordEmail(job.Type, "retry")
		} else {
			logger.Errorf("Email to %s failed after %d attempts", job.To, maxTries)
			s.saveFailed(job, err)
			metrics.RecordEmail(job.Type, "failed")
		}
		return
	}

	metrics.RecordEmail(job.Type, "sent")
	logger.Info("email sent", "type", job.Type, "to", job.To)
}

func (s *Service) sendNow(job EmailJob) error {

	message := fmt.Sprintf("From: %s <%s>\r\n", s.settings.FromName, s.settings.From)
	message += fmt.Sprintf("To: %s\r\n", job.To)
	message += fmt.Sprintf("Subject: %s\r\n", job.Subject)
	message += "\r\n" + job.Body

	var auth smtp.Auth
	if s.settings.SMTPUser != "" && s.settings.SMTPPass != "" {
		auth = smtp.PlainAuth("", s.settings.SMTPUser, s.settings.SMTPPass, s.settings.SMTPHost)
	}

	addr := s.settings.SMTPHost + ":" + s.settings.SMTPPort
	return smtp.SendMail(addr, auth, s.settings.From, []string{job.To}, []byte(message))
}

func (s *Service) saveFailed(job EmailJob, err error) {
	failed := map[string]interface{}{
		"job":   job,
		"error": err.Error(),
		"time":  time.Now(),
	}
	data, _ := json.Marshal(failed)
	s.redis.LPush(context.Background(), failedQueueKey, string(data))
}

func (s *Service) QueueLength(ctx context.Context) int64 {
	length, _ := s.redis.LLen(ctx, queueKey).Result()
	metrics.EmailQueueLength.Set(float64(length))
	return length
}

func (s *Service) notify(ctx context.Context, emailType string, accountID int64, subject string, body func(name string) string) error {
	to, name, err := s.contacts.Contact(ctx, accountID)
	if err != nil {
		return fmt.Errorf("lookup contact %d: %w", accountID, err)
	}
	return s.Send(ctx, emailType, to, name, subject, body(name))
}

func (s *Service) TransferReceived(ctx context.Context, toAccountID, fromAccountID, amount int64, reason string) error {
	return s.notify(ctx, "transfer_received", toAccountID, fmt.Sprintf("You received %d credits", amount), func(name string) string {
		return fmt.Sprintf(`Hi %s,

Account #%d sent you %d credits.

Reason: %s

- Campus Credits`, name, fromAccountID, amount, reason)
	})
}

func (s *Service) AttendanceRewarded(ctx context.Context, accountID, eventID, amount int64) error {
	return s.notify(ctx, "attendance_rewarded", accountID, "Thanks for attending", func(name string) string {
		return fmt.Sprintf(`Hi %s,

Your attendance at event #%d was recorded and %d credits were added to your balance.

- Campus Credits`, name, eventID, amount)
	})
}

func (s *Service) ReviewDecided(ctx context.Context, submitterID, entityID int64, kind, status, note string) error {
	subject := fmt.Sprintf("Your %s was %s", humanKind(kind), status)
	return s.notify(ctx, "review_"+status, submitterID, subject, func(name string) string {
		body := fmt.Sprintf(`Hi %s,

Your %s (#%d) was %s.`, name, humanKind(kind), entityID, status)
		if note != "" {
			body += "\n\nReviewer note: " + note
		}
		return body + "\n\n- Campus Credits"
	})
}

func humanKind(kind string) string {
	switch kind {
	case "shop_request":
		return "shop request"
	case "volunteer_application":
		return "volunteer application"
	default:
		return kind
	}
}
