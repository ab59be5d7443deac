package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Policy is the operator-tunable disconnection policy, hot-reloaded from policy.yml.
type Policy struct {
	EligibilityThreshold int           `mapstructure:"eligibilityThreshold"`
	StrictTransitions    bool          `mapstructure:"strictTransitions"`
	Remarks              string        `mapstructure:"remarks"`
	Notices              Notices       `mapstructure:"notices"`
	Listing              ListingPolicy `mapstructure:"listing"`
	SMS                  SMSPolicy     `mapstructure:"sms"`
}

type Notice struct {
	Title   string `mapstructure:"title"`
	Message string `mapstructure:"message"`
}

// Render substitutes the consumer placeholders into both texts.
func (n Notice) Render(firstName, consumerID string) Notice {
	r := strings.NewReplacer("{FirstName}", firstName, "{ConsumerID}", consumerID)
	return Notice{Title: r.Replace(n.Title), Message: r.Replace(n.Message)}
}

// Notices hold the in-app notice texts. {FirstName} and {ConsumerID} are substituted per consumer.
type Notices struct {
	Disconnect    Notice `mapstructure:"disconnect"`
	Reconnect     Notice `mapstructure:"reconnect"`
	Warning       Notice `mapstructure:"warning"`
	ReminderTitle string `mapstructure:"reminderTitle"`
}

type ListingPolicy struct {
	OverduePageSize      int `mapstructure:"overduePageSize"`
	NotificationPageSize int `mapstructure:"notificationPageSize"`
	RecipientPageSize    int `mapstructure:"recipientPageSize"`
	SmsLogLimit          int `mapstructure:"smsLogLimit"`
}

type SMSPolicy struct {
	Workers          int           `mapstructure:"workers"`
	BreakerThreshold int           `mapstructure:"breakerThreshold"`
	BreakerCooldown  time.Duration `mapstructure:"breakerCooldown"`
	SendRate         float64       `mapstructure:"sendRate"`
	SendBurst        int           `mapstructure:"sendBurst"`
	RequeueAfter     time.Duration `mapstructure:"requeueAfter"`
	DispatchLockTTL  time.Duration `mapstructure:"dispatchLockTTL"`
}

func DefaultPolicy() Policy {
	return Policy{
		EligibilityThreshold: 2,
		StrictTransitions:    true,
		Remarks:              "2 or more overdue bills",
		Notices: Notices{
			Disconnect: Notice{
				Title: "Disconnection Notice",
				Message: "Hello {FirstName}, you failed to pay any bill from your 2 overdue bills within 3 days. " +
					"Your water service has been disconnected. To reconnect, please visit the main office of " +
					"Santa Fe Water System located at the Santa Fe Municipal Hall. Thank you.",
			},
			Reconnect: Notice{
				Title: "Reconnection Notice",
				Message: "Hello {FirstName}, your water service has been successfully reconnected. " +
					"Thank you for settling your bills. You may now continue using our services.",
			},
			Warning: Notice{
				Title: "Disconnection Notice",
				Message: "Hello {FirstName}, you have 2 overdue bills that are not yet paid. " +
					"Please pay at least one bill within 3 days to avoid disconnection.",
			},
			ReminderTitle: "Water Bill Reminder",
		},
		Listing: ListingPolicy{
			OverduePageSize:      10,
			NotificationPageSize: 7,
			RecipientPageSize:    5,
			SmsLogLimit:          100,
		},
		SMS: SMSPolicy{
			Workers:          2,
			BreakerThreshold: 10,
			BreakerCooldown:  time.Minute,
			SendRate:         5,
			SendBurst:        10,
			RequeueAfter:     10 * time.Minute,
			DispatchLockTTL:  2 * time.Minute,
		},
	}
}

type PolicyHolder struct {
	current atomic.Value // holds Policy
}

// NewPolicyHolder reads policy.yml from the standard locations and watches it for changes.
func NewPolicyHolder(log *zap.Logger) (*PolicyHolder, error) {
	return LoadPolicyHolder(log, "/var/lib/tirta/config", "/etc/tirta", ".")
}

func LoadPolicyHolder(log *zap.Logger, paths ...string) (*PolicyHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("policy")

	v := viper.New()
	v.SetConfigName("policy")
	v.SetConfigType("yml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix("TIRTA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setPolicyDefaults(v, DefaultPolicy())

	watch := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		watch = false
		log.Info("policy file not found, using defaults")
	}

	cfg, err := decodePolicy(v)
	if err != nil {
		return nil, err
	}

	holder := &PolicyHolder{}
	holder.current.Store(cfg)

	if watch {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := decodePolicy(v)
			if err != nil {
				log.Warn("policy reload rejected", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("policy reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

// NewStaticPolicyHolder wraps a fixed policy, used by tests and tooling.
func NewStaticPolicyHolder(p Policy) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(p)
	return holder
}

func (h *PolicyHolder) Get() Policy {
	if h == nil {
		return DefaultPolicy()
	}
	p, ok := h.current.Load().(Policy)
	if !ok {
		return DefaultPolicy()
	}
	return p
}

func (h *PolicyHolder) Set(p Policy) error {
	if err := validatePolicy(p); err != nil {
		return err
	}
	h.current.Store(p)
	return nil
}

func decodePolicy(v *viper.Viper) (Policy, error) {
	var doc struct {
		Policy Policy `mapstructure:"policy"`
	}
	if err := v.Unmarshal(&doc); err != nil {
		return Policy{}, fmt.Errorf("decode policy: %w", err)
	}
	if err := validatePolicy(doc.Policy); err != nil {
		return Policy{}, err
	}
	return doc.Policy, nil
}

func setPolicyDefaults(v *viper.Viper, d Policy) {
	v.SetDefault("policy.eligibilityThreshold", d.EligibilityThreshold)
	v.SetDefault("policy.strictTransitions", d.StrictTransitions)
	v.SetDefault("policy.remarks", d.Remarks)
	v.SetDefault("policy.notices.disconnect.title", d.Notices.Disconnect.Title)
	v.SetDefault("policy.notices.disconnect.message", d.Notices.Disconnect.Message)
	v.SetDefault("policy.notices.reconnect.title", d.Notices.Reconnect.Title)
	v.SetDefault("policy.notices.reconnect.message", d.Notices.Reconnect.Message)
	v.SetDefault("policy.notices.warning.title", d.Notices.Warning.Title)
	v.SetDefault("policy.notices.warning.message", d.Notices.Warning.Message)
	v.SetDefault("policy.notices.reminderTitle", d.Notices.ReminderTitle)
	v.SetDefault("policy.listing.overduePageSize", d.Listing.OverduePageSize)
	v.SetDefault("policy.listing.notificationPageSize", d.Listing.NotificationPageSize)
	v.SetDefault("policy.listing.recipientPageSize", d.Listing.RecipientPageSize)
	v.SetDefault("policy.listing.smsLogLimit", d.Listing.SmsLogLimit)
	v.SetDefault("policy.sms.workers", d.SMS.Workers)
	v.SetDefault("policy.sms.breakerThreshold", d.SMS.BreakerThreshold)
	v.SetDefault("policy.sms.breakerCooldown", d.SMS.BreakerCooldown)
	v.SetDefault("policy.sms.sendRate", d.SMS.SendRate)
	v.SetDefault("policy.sms.sendBurst", d.SMS.SendBurst)
	v.SetDefault("policy.sms.requeueAfter", d.SMS.RequeueAfter)
	v.SetDefault("policy.sms.dispatchLockTTL", d.SMS.DispatchLockTTL)
}

func validatePolicy(p Policy) error {
	if p.EligibilityThreshold < 1 {
		return errors.New("policy.eligibilityThreshold must be at least 1")
	}
	if strings.TrimSpace(p.Remarks) == "" {
		return errors.New("policy.remarks cannot be empty")
	}
	for name, notice := range map[string]Notice{
		"disconnect": p.Notices.Disconnect,
		"reconnect":  p.Notices.Reconnect,
		"warning":    p.Notices.Warning,
	} {
		if strings.TrimSpace(notice.Title) == "" || strings.TrimSpace(notice.Message) == "" {
			return fmt.Errorf("policy.notices.%s requires title and message", name)
		}
	}
	if strings.TrimSpace(p.Notices.ReminderTitle) == "" {
		return errors.New("policy.notices.reminderTitle cannot be empty")
	}
	if p.Listing.OverduePageSize <= 0 || p.Listing.NotificationPageSize <= 0 ||
		p.Listing.RecipientPageSize <= 0 || p.Listing.SmsLogLimit <= 0 {
		return errors.New("policy.listing sizes must be positive")
	}
	if p.SMS.Workers <= 0 {
		return errors.New("policy.sms.workers must be positive")
	}
	if p.SMS.BreakerThreshold <= 0 || p.SMS.BreakerCooldown <= 0 {
		return errors.New("policy.sms breaker settings must be positive")
	}
	if p.SMS.SendRate <= 0 || p.SMS.SendBurst <= 0 {
		return errors.New("policy.sms send rate must be positive")
	}
	return nil
}
