package compliance

import (
	"context"
	"fmt"
	"strings"
)

// NoticeLevel represents the verbosity of the safety notice.
type NoticeLevel string

const (
	// NoticeShort is the shortest notice.
	NoticeShort NoticeLevel = "short"
	// NoticeMedium is a moderate notice.
	NoticeMedium NoticeLevel = "medium"
	// NoticeFull is the most comprehensive notice.
	NoticeFull NoticeLevel = "full"
)

// Notice templates
const (
	noticeShortText = "Automated wellness assistant. In crisis? Call or text 988."

	noticeMediumText = "This is an automated wellness assistant, not a crisis service. If you are in crisis, call or text 988 for immediate support."

	noticeFullText = "This is an automated wellness assistant. It is not a substitute for professional mental health care or emergency services. If you are in crisis or thinking about harming yourself, call or text the 988 Suicide & Crisis Lifeline, or call your local emergency number right away."
)

// NoticeConfig configures the safety notice service.
type NoticeConfig struct {
	// Level determines which notice template to use.
	Level NoticeLevel
	// Enabled controls whether notices are appended.
	Enabled bool
	// FirstMessageOnly appends the notice only to the first message in a session.
	FirstMessageOnly bool
	// CustomText overrides the default template.
	CustomText string
}

// DefaultNoticeConfig returns sensible defaults.
func DefaultNoticeConfig() NoticeConfig {
	return NoticeConfig{
		Level:            NoticeMedium,
		Enabled:          true,
		FirstMessageOnly: false,
	}
}

// NoticeService appends safety notices to outbound messages.
type NoticeService struct {
	audit  *AuditService
	config NoticeConfig
}

// NewNoticeService creates a new safety notice service.
func NewNoticeService(audit *AuditService, config NoticeConfig) *NoticeService {
	return &NoticeService{
		audit:  audit,
		config: config,
	}
}

// NoticeText returns the appropriate notice text.
func (s *NoticeService) NoticeText() string {
	if s.config.CustomText != "" {
		return s.config.CustomText
	}

	switch s.config.Level {
	case NoticeShort:
		return noticeShortText
	case NoticeFull:
		return noticeFullText
	default:
		return noticeMediumText
	}
}

// AppendNotice appends the safety notice to the message if configured.
func (s *NoticeService) AppendNotice(ctx context.Context, message string, opts NoticeOptions) (string, error) {
	if !s.config.Enabled {
		return message, nil
	}

	// Skip if first-message-only mode and this isn't the first message
	if s.config.FirstMessageOnly && !opts.IsFirstMessage {
		return message, nil
	}

	notice := s.NoticeText()

	// Don't append if the message already carries it
	if strings.Contains(message, notice) {
		return message, nil
	}

	result := fmt.Sprintf("%s\n\n%s", strings.TrimSpace(message), notice)

	if s.audit != nil && strings.TrimSpace(opts.UserID) != "" {
		_ = s.audit.LogNoticeSent(ctx, opts.UserID, opts.SessionID, string(s.config.Level), notice)
	}

	return result, nil
}

// NoticeOptions provides context for notice addition.
type NoticeOptions struct {
	UserID         string
	SessionID      string
	IsFirstMessage bool
}

// MustAppendNotice is like AppendNotice but panics on error.
func (s *NoticeService) MustAppendNotice(ctx context.Context, message string, opts NoticeOptions) string {
	result, err := s.AppendNotice(ctx, message, opts)
	if err != nil {
		panic(fmt.Sprintf("compliance: failed to append safety notice: %v", err))
	}
	return result
}

// ShouldAppendNotice checks if a notice should be appended based on config.
func (s *NoticeService) ShouldAppendNotice(isFirstMessage bool) bool {
	if !s.config.Enabled {
		return false
	}
	if s.config.FirstMessageOnly && !isFirstMessage {
		return false
	}
	return true
}
