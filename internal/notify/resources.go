package notify

import (
	"fmt"
	"strings"
)

// Resource is one crisis support channel offered to users.
type Resource struct {
	Name        string `json:"name"`
	Contact     string `json:"contact"`
	Description string `json:"description"`
	Region      string `json:"region"`
}

// SafetyFooter closes every outbound resource message.
const SafetyFooter = "If you are in immediate danger, call your local emergency number right away. You matter, and help is available."

// Directory is the curated catalog of crisis resources by region.
type Directory struct {
	byRegion map[string][]Resource
}

// DefaultDirectory returns the built-in resource catalog.
func DefaultDirectory() *Directory {
	return &Directory{byRegion: map[string][]Resource{
		"us": {
			{Name: "988 Suicide & Crisis Lifeline", Contact: "Call or text 988", Description: "Free, confidential support 24/7", Region: "us"},
			{Name: "Crisis Text Line", Contact: "Text HOME to 741741", Description: "Text with a trained crisis counselor", Region: "us"},
			{Name: "SAMHSA National Helpline", Contact: "1-800-662-4357", Description: "Treatment referral and information, 24/7", Region: "us"},
			{Name: "Veterans Crisis Line", Contact: "Call 988 then press 1", Description: "Support for veterans and their families", Region: "us"},
		},
		"uk": {
			{Name: "Samaritans", Contact: "Call 116 123", Description: "Free to call, 24/7", Region: "uk"},
			{Name: "Shout", Contact: "Text SHOUT to 85258", Description: "Free, confidential text support", Region: "uk"},
		},
		"global": {
			{Name: "Befrienders Worldwide", Contact: "befrienders.org", Description: "Find a helpline in your country", Region: "global"},
			{Name: "International Association for Suicide Prevention", Contact: "iasp.info/resources/Crisis_Centres", Description: "Directory of crisis centres", Region: "global"},
		},
	}}
}

// Select returns the resources to offer for a region and risk level. High and
// critical levels get the full regional catalog; lower levels get a lighter
// touch. Unknown regions fall back to the global directory.
func (d *Directory) Select(region, riskLevel string) []Resource {
	if d == nil || len(d.byRegion) == 0 {
		return nil
	}

	key := strings.ToLower(strings.TrimSpace(region))
	rs, ok := d.byRegion[key]
	if !ok || len(rs) == 0 {
		rs = d.byRegion["global"]
	}
	if len(rs) == 0 {
		return nil
	}

	switch strings.ToLower(strings.TrimSpace(riskLevel)) {
	case "critical", "high":
		return append([]Resource(nil), rs...)
	default:
		if len(rs) > 2 {
			rs = rs[:2]
		}
		return append([]Resource(nil), rs...)
	}
}

// FormatResourceMessage renders the user-facing resource list with the
// safety footer appended.
func FormatResourceMessage(rs []Resource) string {
	var b strings.Builder
	b.WriteString("Here are some resources that can help right now:\n\n")
	for _, r := range rs {
		b.WriteString(fmt.Sprintf("• %s: %s", r.Name, r.Contact))
		if r.Description != "" {
			b.WriteString(fmt.Sprintf(" (%s)", r.Description))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(SafetyFooter)
	return b.String()
}

// Names returns just the resource names, used to record what was provided on
// the crisis event.
func Names(rs []Resource) []string {
	names := make([]string, 0, len(rs))
	for _, r := range rs {
		names = append(names, r.Name)
	}
	return names
}
