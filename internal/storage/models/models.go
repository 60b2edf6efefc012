package models

import (
	"fmt"
	"time"
)

// Platform identifies a conversational AI surface being scraped.
type Platform string

const (
	PlatformChatGPT    Platform = "chatgpt"
	PlatformGemini     Platform = "gemini"
	PlatformPerplexity Platform = "perplexity"
)

func AllPlatforms() []Platform {
	return []Platform{PlatformChatGPT, PlatformGemini, PlatformPerplexity}
}

func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformChatGPT, PlatformGemini, PlatformPerplexity:
		return Platform(s), nil
	}
	return "", fmt.Errorf("unsupported platform: %q", s)
}

// ResponseStatus is the lifecycle state of a scraped response. Transitions
// only go processing -> completed or processing -> failed.
type ResponseStatus string

const (
	StatusProcessing ResponseStatus = "processing"
	StatusCompleted  ResponseStatus = "completed"
	StatusFailed     ResponseStatus = "failed"
)

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Brand struct {
	ID         string    `json:"id"`
	CategoryID string    `json:"categoryId"`
	Name       string    `json:"name"`
	LogoURL    *string   `json:"logoUrl"`
	WebsiteURL *string   `json:"websiteUrl"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Prompt struct {
	ID         string    `json:"id"`
	CategoryID string    `json:"categoryId"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Response is the central record of one scraping attempt. Text is nil while
// the row is in flight; BrandsMentioned preserves the candidate-list order.
type Response struct {
	ID              string         `json:"id"`
	PromptID        string         `json:"promptId"`
	PromptText      string         `json:"promptText"`
	Platform        Platform       `json:"platform"`
	Text            *string        `json:"text"`
	BrandsMentioned []string       `json:"brandsMentioned"`
	Status          ResponseStatus `json:"status"`
	ErrorMessage    *string        `json:"errorMessage"`
	RawHTML         *string        `json:"-"`
	CreatedAt       time.Time      `json:"createdAt"`
	CompletedAt     *time.Time     `json:"completedAt"`
}

// SessionCredential is a per-platform cookie snapshot. At most one live
// snapshot per platform; overwritten wholesale on each authentication.
type SessionCredential struct {
	Platform   Platform
	Cookies    []Cookie
	LastUsedAt time.Time
}

type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain,omitempty"`
	Path     string `json:"path,omitempty"`
	Expires  int64  `json:"expires,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
	HTTPOnly bool   `json:"httpOnly,omitempty"`
}

// Citation is an enrichment artifact referencing one response and one brand.
type Citation struct {
	ID         int64
	ResponseID string
	BrandName  string
	URL        string
	Title      string
	Domain     string
	Position   int
}

// MentionContext is an enrichment artifact summarizing how a brand was
// mentioned in a response.
type MentionContext struct {
	ID         int64
	ResponseID string
	BrandName  string
	Context    string
	Sentiment  string
	Keywords   []string
}

// Snapshot is a read-only view of the response log used by the aggregation
// layer. It is loaded in one pass so aggregate functions stay pure.
type Snapshot struct {
	Categories []Category
	Brands     []Brand
	Prompts    []Prompt
	Responses  []Response
}
