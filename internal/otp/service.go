// Package otp implements email one-time-code verification: code issuance
// with per-email rate limiting, hashed storage in redis, and attempt-limited
// verification with lockout.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/idfine/chatbot-platform/internal/notify"
	"github.com/idfine/chatbot-platform/pkg/logging"
)

// Defaults applied when Options fields are zero.
const (
	DefaultTTL                = 5 * time.Minute
	DefaultMaxAttempts        = 5
	DefaultLockout            = 15 * time.Minute
	DefaultMaxRequestsPerHour = 3
)

// User-facing messages. The chat surface is Turkish with ASCII folding.
const (
	msgTooManyRequests  = "Bu e-posta adresi icin cok fazla dogrulama kodu istendi. Lutfen daha sonra tekrar deneyin."
	msgLookupFailed     = "Kimlik dogrulama sistemi su anda kullanilamamaktadir. Lutfen daha sonra tekrar deneyin."
	msgSendFailed       = "Dogrulama kodu gonderilirken bir hata olustu. Lutfen tekrar deneyin."
	msgCodeExpired      = "Dogrulama kodu suresi dolmus veya bulunamadi. Lutfen yeni bir kod isteyin."
	msgLockedOut        = "Cok fazla basarisiz deneme. Hesabiniz gecici olarak kilitlendi."
	msgNoPartnerRecord  = "Bu e-posta adresi ile eslesen bir musteri kaydi bulunamadi. Lutfen kayitli e-posta adresinizi kullaniyor oldugunuzdan emin olun."
)

// PartnerDirectory looks up ERP customer records by email. A zero id means
// no record matched.
type PartnerDirectory interface {
	FindPartnerByEmail(ctx context.Context, email string) (id int, name string, err error)
}

// Result is the outcome of a code request or verification. Message is always
// safe to show to the user.
type Result struct {
	Success     bool
	Message     string
	PartnerID   int
	PartnerName string
	Email       string
}

// Options tunes the service limits.
type Options struct {
	TTL                time.Duration
	MaxAttempts        int
	Lockout            time.Duration
	MaxRequestsPerHour int
}

// Service issues and verifies one-time codes. Codes are stored hashed; the
// plaintext exists only in the outbound email.
type Service struct {
	redis    *redis.Client
	partners PartnerDirectory
	email    notify.EmailSender
	opts     Options
	logger   *logging.Logger
	tracer   trace.Tracer

	// overridable in tests
	codeFn func() (string, error)
}

// NewService creates an OTP service.
func NewService(rdb *redis.Client, partners PartnerDirectory, email notify.EmailSender, opts Options, logger *logging.Logger) *Service {
	if rdb == nil {
		panic("otp: redis client cannot be nil")
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Lockout <= 0 {
		opts.Lockout = DefaultLockout
	}
	if opts.MaxRequestsPerHour <= 0 {
		opts.MaxRequestsPerHour = DefaultMaxRequestsPerHour
	}
	if email == nil {
		email = notify.NewStubEmailSender(logger)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		redis:    rdb,
		partners: partners,
		email:    email,
		opts:     opts,
		logger:   logger,
		tracer:   otel.Tracer("chatbot.internal.otp"),
		codeFn:   randomCode,
	}
}

func emailHash(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])[:16]
}

func codeHash(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func otpKey(visitorID, emailH string) string {
	return fmt.Sprintf("otp:%s:%s", visitorID, emailH)
}

func attemptsKey(visitorID string) string {
	return fmt.Sprintf("otp_attempts:%s", visitorID)
}

func rateKey(emailH string) string {
	return fmt.Sprintf("otp_rate:%s", emailH)
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("otp: failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// challenge is the redis-persisted state of one issued code.
type challenge struct {
	CodeHash    string `json:"code_hash"`
	Email       string `json:"email"`
	PartnerID   int    `json:"partner_id"`
	PartnerName string `json:"partner_name"`
}

// Request issues a code for the email and sends it. The success message is
// identical whether or not a customer record exists, so the endpoint cannot
// be used to probe which addresses are registered.
func (s *Service) Request(ctx context.Context, visitorID, email string) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "otp.request")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))
	emailH := emailHash(email)

	count, err := s.redis.Get(ctx, rateKey(emailH)).Int()
	if err != nil && err != redis.Nil {
		return Result{}, fmt.Errorf("otp: failed to read rate counter: %w", err)
	}
	if count >= s.opts.MaxRequestsPerHour {
		return Result{Message: msgTooManyRequests}, nil
	}

	if locked, msg, err := s.lockoutStatus(ctx, visitorID); err != nil {
		return Result{}, err
	} else if locked {
		return Result{Message: msg}, nil
	}

	partnerID, partnerName := 0, ""
	if s.partners != nil {
		partnerID, partnerName, err = s.partners.FindPartnerByEmail(ctx, email)
		if err != nil {
			span.RecordError(err)
			s.logger.Error("partner lookup failed", "error", err)
			return Result{Message: msgLookupFailed}, nil
		}
	}

	code, err := s.codeFn()
	if err != nil {
		return Result{}, err
	}

	data, err := json.Marshal(challenge{
		CodeHash:    codeHash(code),
		Email:       email,
		PartnerID:   partnerID,
		PartnerName: partnerName,
	})
	if err != nil {
		return Result{}, fmt.Errorf("otp: failed to marshal challenge: %w", err)
	}
	if err := s.redis.Set(ctx, otpKey(visitorID, emailH), data, s.opts.TTL).Err(); err != nil {
		return Result{}, fmt.Errorf("otp: failed to store challenge: %w", err)
	}

	pipe := s.redis.Pipeline()
	pipe.Incr(ctx, rateKey(emailH))
	pipe.Expire(ctx, rateKey(emailH), time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("otp: failed to bump rate counter: %w", err)
	}

	// Only registered customers receive mail; unknown addresses still get
	// the same reply below.
	if partnerID != 0 {
		if err := s.sendCodeEmail(ctx, email, partnerName, code); err != nil {
			span.RecordError(err)
			s.logger.Error("verification email failed", "error", err)
			return Result{Message: msgSendFailed}, nil
		}
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("%s adresine 6 haneli dogrulama kodu gonderildi. Lutfen kodu buraya yazin. (5 dakika gecerlidir)", email),
	}, nil
}

// Verify checks a submitted code. Wrong codes count toward the lockout;
// success clears both the challenge and the attempt counter.
func (s *Service) Verify(ctx context.Context, visitorID, email, code string) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "otp.verify")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))
	emailH := emailHash(email)
	key := otpKey(visitorID, emailH)

	if locked, msg, err := s.lockoutStatus(ctx, visitorID); err != nil {
		return Result{}, err
	} else if locked {
		return Result{Message: msg}, nil
	}

	raw, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Result{Message: msgCodeExpired}, nil
		}
		return Result{}, fmt.Errorf("otp: failed to load challenge: %w", err)
	}
	var ch challenge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return Result{}, fmt.Errorf("otp: failed to decode challenge: %w", err)
	}

	if codeHash(strings.TrimSpace(code)) != ch.CodeHash {
		attempts, err := s.redis.Incr(ctx, attemptsKey(visitorID)).Result()
		if err != nil {
			return Result{}, fmt.Errorf("otp: failed to count attempt: %w", err)
		}
		if err := s.redis.Expire(ctx, attemptsKey(visitorID), s.opts.Lockout).Err(); err != nil {
			return Result{}, fmt.Errorf("otp: failed to arm lockout: %w", err)
		}

		remaining := s.opts.MaxAttempts - int(attempts)
		if remaining <= 0 {
			if err := s.redis.Del(ctx, key).Err(); err != nil {
				return Result{}, fmt.Errorf("otp: failed to discard challenge: %w", err)
			}
			s.logger.Warn("verification locked out", "visitor_id", visitorID)
			return Result{Message: msgLockedOut}, nil
		}
		return Result{Message: fmt.Sprintf("Yanlis dogrulama kodu. %d deneme hakkiniz kaldi.", remaining)}, nil
	}

	// The code was right but no customer record backs it: discard so the
	// challenge cannot be replayed.
	if ch.PartnerID == 0 {
		if err := s.redis.Del(ctx, key).Err(); err != nil {
			return Result{}, fmt.Errorf("otp: failed to discard challenge: %w", err)
		}
		return Result{Message: msgNoPartnerRecord}, nil
	}

	if err := s.redis.Del(ctx, key, attemptsKey(visitorID)).Err(); err != nil {
		return Result{}, fmt.Errorf("otp: failed to clear state: %w", err)
	}

	name := ch.PartnerName
	if name == "" {
		name = "degerli musterimiz"
	}
	s.logger.Info("customer verified", "visitor_id", visitorID, "partner_id", ch.PartnerID)
	return Result{
		Success:     true,
		Message:     fmt.Sprintf("Basariyla dogrulandi! Merhaba %s.", name),
		PartnerID:   ch.PartnerID,
		PartnerName: ch.PartnerName,
		Email:       ch.Email,
	}, nil
}

func (s *Service) lockoutStatus(ctx context.Context, visitorID string) (bool, string, error) {
	attempts, err := s.redis.Get(ctx, attemptsKey(visitorID)).Int()
	if err != nil && err != redis.Nil {
		return false, "", fmt.Errorf("otp: failed to read attempt counter: %w", err)
	}
	if attempts < s.opts.MaxAttempts {
		return false, "", nil
	}
	ttl, err := s.redis.TTL(ctx, attemptsKey(visitorID)).Result()
	if err != nil {
		return false, "", fmt.Errorf("otp: failed to read lockout ttl: %w", err)
	}
	minutes := int(ttl.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	return true, fmt.Sprintf("Cok fazla basarisiz deneme. Lutfen %d dakika sonra tekrar deneyin.", minutes), nil
}

func (s *Service) sendCodeEmail(ctx context.Context, email, partnerName, code string) error {
	name := partnerName
	if name == "" {
		name = "Degerli Musterimiz"
	}
	html := fmt.Sprintf(`<div style="font-family: Arial, sans-serif; max-width: 500px; margin: 0 auto; padding: 20px;">
  <div style="text-align: center; margin-bottom: 20px;">
    <h2 style="color: #231f20; margin: 0;">ID Fine</h2>
    <p style="color: #666; margin: 5px 0;">Porser Porselen</p>
  </div>
  <div style="background: #f7f7f7; border-radius: 8px; padding: 24px; text-align: center;">
    <p style="margin: 0 0 10px 0;">Merhaba <strong>%s</strong>,</p>
    <p style="margin: 0 0 20px 0;">Dogrulama kodunuz:</p>
    <div style="background: #231f20; color: white; font-size: 32px; letter-spacing: 8px; padding: 16px 32px; border-radius: 8px; display: inline-block; font-weight: bold;">%s</div>
    <p style="margin: 20px 0 0 0; color: #888; font-size: 13px;">Bu kod 5 dakika gecerlidir. Kodu kimseyle paylasmayiniz.</p>
  </div>
  <p style="color: #999; font-size: 11px; text-align: center; margin-top: 20px;">Bu e-postayi siz istemediyseniz, lutfen dikkate almayin.</p>
</div>`, name, code)

	return s.email.Send(ctx, notify.EmailMessage{
		To:      email,
		ToName:  name,
		Subject: "ID Fine - Dogrulama Kodunuz",
		Body:    fmt.Sprintf("Dogrulama kodunuz: %s (5 dakika gecerlidir)", code),
		HTML:    html,
	})
}
