package meta

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/audience-pilot/internal/domain"
	"github.com/ignite/audience-pilot/internal/window"
)

// Fields requested from the Graph API.
const (
	adSetFields   = "id,name,campaign_id,campaign{name},daily_budget,created_time,targeting"
	insightFields = "date_start,spend,impressions,clicks,actions,action_values"
)

// Graph API error codes that signal throttling. Everything else in an error
// envelope is treated as permanent for the current call.
var rateLimitCodes = map[int]bool{
	4:     true, // application request limit
	17:    true, // user request limit
	32:    true, // page request limit
	613:   true, // custom rate limit
	80000: true, // ads insights throttle
	80004: true, // ads management throttle
}

// Permanent error codes worth naming in messages.
const (
	codeBadCredentials   = 190
	codeInvalidParameter = 100
)

// validDatePresets is the fixed set accepted by the insights endpoints.
// An unrecognized preset silently falls back to DefaultDatePreset.
var validDatePresets = map[string]bool{
	"yesterday": true, "last_3d": true, "last_7d": true, "last_14d": true,
	"last_28d": true, "last_30d": true, "last_90d": true, "this_month": true,
	"last_month": true, "this_quarter": true, "last_quarter": true,
	"this_year": true, "last_year": true, "maximum": true,
}

// DefaultDatePreset is used when the caller's preset is not recognized.
const DefaultDatePreset = "last_7d"

// NormalizeDatePreset returns preset if valid, else the default.
func NormalizeDatePreset(preset string) string {
	if validDatePresets[preset] {
		return preset
	}
	return DefaultDatePreset
}

// APIError is a structured Graph API error envelope.
type APIError struct {
	Message    string `json:"message"`
	Type       string `json:"type"`
	Code       int    `json:"code"`
	Subcode    int    `json:"error_subcode"`
	HTTPStatus int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph api error: %s (code=%d, subcode=%d, status=%d)",
		e.Message, e.Code, e.Subcode, e.HTTPStatus)
}

// IsRateLimit reports whether the error is a throttling signal.
func (e *APIError) IsRateLimit() bool {
	return rateLimitCodes[e.Code] || e.HTTPStatus == 429
}

// IsPermanent reports whether retrying the call cannot help.
func (e *APIError) IsPermanent() bool {
	return !e.IsRateLimit()
}

type errorEnvelope struct {
	Error *APIError `json:"error"`
}

// AdSet is the raw ad-set metadata returned by the entity listing.
type AdSet struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	CampaignID  string          `json:"campaign_id"`
	Campaign    *struct {
		Name string `json:"name"`
	} `json:"campaign"`
	DailyBudget string          `json:"daily_budget"`
	CreatedTime string          `json:"created_time"`
	Targeting   json.RawMessage `json:"targeting"`
}

// LaunchedAt parses the ad set's creation time, or nil when absent.
func (a *AdSet) LaunchedAt() *time.Time {
	if a.CreatedTime == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05-0700", time.RFC3339} {
		if t, err := time.Parse(layout, a.CreatedTime); err == nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}

// Budget parses the daily budget. The Graph API reports budgets in minor
// currency units; values that are clearly minor-unit amounts are divided out.
func (a *AdSet) Budget() *float64 {
	if a.DailyBudget == "" {
		return nil
	}
	v, err := strconv.ParseFloat(a.DailyBudget, 64)
	if err != nil {
		return nil
	}
	if v > 10000 {
		v /= 100
	}
	return &v
}

// targeting is the subset of the targeting spec used for type inference.
type targeting struct {
	Interests       []json.RawMessage `json:"interests"`
	FlexibleSpec    []json.RawMessage `json:"flexible_spec"`
	CustomAudiences []json.RawMessage `json:"custom_audiences"`
}

// InferAudienceType classifies an ad set from its targeting metadata:
// lookalike source audiences win, then custom audiences, then interest
// stacks; anything without narrowing is broad.
func (a *AdSet) InferAudienceType() domain.AudienceType {
	if len(a.Targeting) == 0 {
		return domain.AudienceBroad
	}
	var t targeting
	if err := json.Unmarshal(a.Targeting, &t); err != nil {
		return domain.AudienceBroad
	}
	for _, spec := range append(t.FlexibleSpec, t.CustomAudiences...) {
		if strings.Contains(strings.ToLower(string(spec)), "lookalike") {
			return domain.AudienceLookalike
		}
	}
	if len(t.CustomAudiences) > 0 {
		return domain.AudienceCustom
	}
	if len(t.Interests) > 0 || len(t.FlexibleSpec) > 0 {
		return domain.AudienceInterest
	}
	return domain.AudienceBroad
}

// actionEntry is one conversion action count or value.
type actionEntry struct {
	ActionType string `json:"action_type"`
	Value      string `json:"value"`
}

// InsightRow is one day of raw insight data for one ad set.
type InsightRow struct {
	DateStart    string        `json:"date_start"`
	Spend        string        `json:"spend"`
	Impressions  string        `json:"impressions"`
	Clicks       string        `json:"clicks"`
	Actions      []actionEntry `json:"actions"`
	ActionValues []actionEntry `json:"action_values"`
}

// purchaseActionTypes are the conversion actions summed into purchases
// and revenue.
var purchaseActionTypes = map[string]bool{
	"purchase":      true,
	"omni_purchase": true,
}

func sumActions(entries []actionEntry) float64 {
	var total float64
	for _, e := range entries {
		if !purchaseActionTypes[e.ActionType] {
			continue
		}
		v, err := strconv.ParseFloat(e.Value, 64)
		if err != nil {
			continue
		}
		total += v
	}
	return total
}

// ToDailyRow converts a raw insight row into an aggregation input.
func (r *InsightRow) ToDailyRow() window.DailyRow {
	date, _ := time.Parse("2006-01-02", r.DateStart)
	spend, _ := strconv.ParseFloat(r.Spend, 64)
	impressions, _ := strconv.ParseInt(r.Impressions, 10, 64)
	clicks, _ := strconv.ParseInt(r.Clicks, 10, 64)
	return window.DailyRow{
		Date:        date,
		Spend:       spend,
		Revenue:     sumActions(r.ActionValues),
		Purchases:   int(sumActions(r.Actions)),
		Impressions: impressions,
		Clicks:      clicks,
	}
}

// EnsureActPrefix normalizes an ad account reference to the act_ form the
// Graph API expects.
func EnsureActPrefix(accountID string) string {
	if strings.HasPrefix(accountID, "act_") {
		return accountID
	}
	return "act_" + accountID
}

// paging is the standard Graph API pagination envelope.
type paging struct {
	Next string `json:"next"`
}

type adSetPage struct {
	Data   []AdSet `json:"data"`
	Paging paging  `json:"paging"`
}

type insightPage struct {
	Data []InsightRow `json:"data"`
}
