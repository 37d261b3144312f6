// Package main runs end-to-end tests of the crisis analysis API.
//
// Scenarios cover the full detection and intervention surface:
//   - Benign message produces no intervention
//   - Critical message triggers the full protocol inline
//   - Event lifecycle (unresolved queue, resolution, double-resolve conflict)
//   - Async analysis job flow (accept, poll, completed assessment)
//   - Mood check-in recording and retrieval
//   - Risk profile round-trip
//   - Follow-up dashboard endpoints
//   - Input validation rejections
//
// Usage:
//
//	API_BASE_URL=... go run scripts/e2e/run_e2e.go [scenario-name]
//	API_BASE_URL=... go run scripts/e2e/run_e2e.go                    # runs all
//	API_BASE_URL=... go run scripts/e2e/run_e2e.go critical-detection # runs one
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Constants
// ---------------------------------------------------------------------------

const (
	maxWaitSecs  = 45
	pollInterval = 2 * time.Second
)

var (
	apiBase string
	runID   string
)

// ---------------------------------------------------------------------------
// Scenario definition
// ---------------------------------------------------------------------------

type scenario struct {
	Name string
	Fn   func(t *T)
}

// T is a lightweight test context for a single scenario.
type T struct {
	passed int
	failed int
	name   string
}

func (t *T) check(name string, ok bool) {
	if ok {
		fmt.Printf("    PASS: %s\n", name)
		t.passed++
	} else {
		fmt.Printf("    FAIL: %s\n", name)
		t.failed++
	}
}

func (t *T) fatalf(format string, args ...interface{}) {
	fmt.Printf("    FATAL: "+format+"\n", args...)
	t.failed++
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// userFor returns a scenario-scoped user ID so runs do not pollute each other.
func userFor(scenario string) string {
	return fmt.Sprintf("e2e-%s-%s", scenario, runID)
}

func postJSON(path string, payload interface{}) (int, map[string]interface{}, error) {
	body, _ := json.Marshal(payload)
	resp, err := http.Post(apiBase+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	var decoded map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp.StatusCode, decoded, nil
}

func putJSON(path string, payload interface{}) (int, map[string]interface{}, error) {
	body, _ := json.Marshal(payload)
	req, err := http.NewRequest(http.MethodPut, apiBase+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	var decoded map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp.StatusCode, decoded, nil
}

func getJSON(path string) (int, map[string]interface{}, error) {
	resp, err := http.Get(apiBase + path)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	var decoded map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp.StatusCode, decoded, nil
}

func analyze(userID, message string) (int, map[string]interface{}, error) {
	return postJSON("/api/v1/crisis/analyze", map[string]string{
		"user_id":    userID,
		"session_id": "e2e-session-" + runID,
		"message":    message,
	})
}

// waitForJob polls the job endpoint until it leaves pending or the deadline
// passes.
func waitForJob(jobID string, maxSecs int) (map[string]interface{}, error) {
	deadline := time.Now().Add(time.Duration(maxSecs) * time.Second)
	for time.Now().Before(deadline) {
		time.Sleep(pollInterval)
		code, job, err := getJSON("/api/v1/crisis/jobs/" + jobID)
		if err != nil || code != http.StatusOK {
			continue
		}
		status, _ := job["status"].(string)
		if status != "" && status != "pending" {
			return job, nil
		}
	}
	return nil, fmt.Errorf("timed out waiting for job %s after %ds", jobID, maxSecs)
}

func assessmentOf(result map[string]interface{}) map[string]interface{} {
	a, _ := result["assessment"].(map[string]interface{})
	return a
}

func interventionOf(result map[string]interface{}) map[string]interface{} {
	i, _ := result["intervention"].(map[string]interface{})
	return i
}

func riskLevel(result map[string]interface{}) string {
	level, _ := assessmentOf(result)["level"].(string)
	return level
}

func eventsOf(payload map[string]interface{}) []map[string]interface{} {
	raw, ok := payload["events"].([]interface{})
	if !ok {
		return nil
	}
	var out []map[string]interface{}
	for _, e := range raw {
		if em, ok := e.(map[string]interface{}); ok {
			out = append(out, em)
		}
	}
	return out
}

func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

// 1. Benign message: no intervention, no crisis event
func scenarioBenignMessage(t *T) {
	user := userFor("benign")
	code, result, err := analyze(user, "Had a nice walk in the park today, feeling pretty good about things.")
	if err != nil {
		t.fatalf("analyze: %v", err)
		return
	}

	t.check("returns 200", code == http.StatusOK)
	t.check("risk level is none or low", containsAny(riskLevel(result), "none", "low"))

	intervened, _ := interventionOf(result)["intervened"].(bool)
	t.check("no intervention triggered", !intervened)
}

// 2. Critical message: full protocol runs inline
func scenarioCriticalDetection(t *T) {
	user := userFor("critical")
	code, result, err := analyze(user, "I can't do this anymore. I want to end my life tonight and I have a plan.")
	if err != nil {
		t.fatalf("analyze: %v", err)
		return
	}

	t.check("returns 200", code == http.StatusOK)
	t.check("risk level is critical", riskLevel(result) == "critical")

	assessment := assessmentOf(result)
	urgency, _ := assessment["urgency_seconds"].(float64)
	t.check("urgency is immediate", urgency == 0)

	confidence, _ := assessment["confidence"].(float64)
	t.check("confidence is high", confidence >= 0.8)

	intervention := interventionOf(result)
	intervened, _ := intervention["intervened"].(bool)
	t.check("intervention triggered", intervened)

	eventID, _ := intervention["crisis_event_id"].(string)
	t.check("crisis event created", eventID != "" && eventID != "00000000-0000-0000-0000-000000000000")

	outcome, _ := intervention["outcome"].(map[string]interface{})
	resources, _ := outcome["resources_provided"].([]interface{})
	t.check("crisis resources provided", len(resources) > 0)
}

// 3. Event lifecycle: unresolved queue → resolve → conflict on re-resolve
func scenarioEventLifecycle(t *T) {
	user := userFor("lifecycle")
	_, result, err := analyze(user, "Everyone would be better off without me. I keep thinking about ending it.")
	if err != nil {
		t.fatalf("analyze: %v", err)
		return
	}

	eventID, _ := interventionOf(result)["crisis_event_id"].(string)
	if eventID == "" || eventID == "00000000-0000-0000-0000-000000000000" {
		t.fatalf("no crisis event created, cannot test lifecycle")
		return
	}

	code, unresolved, err := getJSON("/api/v1/crisis/events/unresolved?limit=200")
	if err != nil {
		t.fatalf("list unresolved: %v", err)
		return
	}
	t.check("unresolved list returns 200", code == http.StatusOK)

	found := false
	for _, e := range eventsOf(unresolved) {
		if id, _ := e["id"].(string); id == eventID {
			found = true
		}
	}
	t.check("event appears in unresolved queue", found)

	code, resolved, err := postJSON("/api/v1/crisis/events/"+eventID+"/resolve", map[string]string{
		"resolved_by": "e2e-oncall",
		"resolution":  "user confirmed safe after outreach call",
	})
	if err != nil {
		t.fatalf("resolve: %v", err)
		return
	}
	t.check("resolve returns 200", code == http.StatusOK)
	resolvedBy, _ := resolved["resolved_by"].(string)
	t.check("resolution recorded", resolvedBy == "e2e-oncall")

	code, _, err = postJSON("/api/v1/crisis/events/"+eventID+"/resolve", map[string]string{
		"resolved_by": "e2e-oncall",
		"resolution":  "duplicate",
	})
	if err != nil {
		t.fatalf("second resolve: %v", err)
		return
	}
	t.check("second resolve conflicts", code == http.StatusConflict)

	code, history, err := getJSON("/api/v1/crisis/events?user_id=" + user)
	if err != nil {
		t.fatalf("list events: %v", err)
		return
	}
	t.check("event history returns 200", code == http.StatusOK)
	t.check("history contains the event", len(eventsOf(history)) >= 1)
}

// 4. Async analysis: accepted, then completed by the worker fleet
func scenarioAsyncAnalysis(t *T) {
	user := userFor("async")
	code, accepted, err := postJSON("/api/v1/crisis/analyze/async", map[string]string{
		"user_id": user,
		"message": "Work has been stressful lately and I feel worn down.",
	})
	if err != nil {
		t.fatalf("analyze async: %v", err)
		return
	}
	t.check("returns 202", code == http.StatusAccepted)

	jobID, _ := accepted["jobId"].(string)
	if jobID == "" {
		t.fatalf("no job id returned")
		return
	}

	job, err := waitForJob(jobID, maxWaitSecs)
	if err != nil {
		t.fatalf("%v", err)
		return
	}

	status, _ := job["status"].(string)
	t.check("job completed", status == "completed")

	assessment, _ := job["assessment"].(map[string]interface{})
	t.check("completed job carries assessment", assessment != nil)
}

// 5. Mood tracking: record then read back
func scenarioMoodTracking(t *T) {
	user := userFor("mood")
	code, _, err := postJSON("/api/v1/mood", map[string]interface{}{
		"user_id":       user,
		"score":         4,
		"sleep_quality": 3,
	})
	if err != nil {
		t.fatalf("record mood: %v", err)
		return
	}
	t.check("record returns 201", code == http.StatusCreated)

	code, entries, err := getJSON("/api/v1/mood?user_id=" + user)
	if err != nil {
		t.fatalf("list mood: %v", err)
		return
	}
	t.check("list returns 200", code == http.StatusOK)
	count, _ := entries["count"].(float64)
	t.check("entry visible", count >= 1)
}

// 6. Risk profile round-trip
func scenarioRiskProfile(t *T) {
	user := userFor("profile")
	code, updated, err := putJSON("/api/v1/users/"+user+"/risk-profile", map[string]interface{}{
		"risk_factors": []string{"prior_attempt", "recent_loss"},
	})
	if err != nil {
		t.fatalf("update profile: %v", err)
		return
	}
	t.check("update returns 200", code == http.StatusOK)

	factors, _ := updated["risk_factors"].([]interface{})
	t.check("update echoes factors", len(factors) == 2)

	code, fetched, err := getJSON("/api/v1/users/" + user + "/risk-profile")
	if err != nil {
		t.fatalf("get profile: %v", err)
		return
	}
	t.check("get returns 200", code == http.StatusOK)

	fetchedFactors, _ := fetched["risk_factors"].([]interface{})
	hasPrior := false
	for _, f := range fetchedFactors {
		if s, _ := f.(string); s == "prior_attempt" {
			hasPrior = true
		}
	}
	t.check("factors persisted", hasPrior)
}

// 7. Follow-up dashboard endpoints respond
func scenarioFollowUpDashboard(t *T) {
	user := userFor("followups")
	code, list, err := getJSON("/api/v1/followups?user_id=" + user)
	if err != nil {
		t.fatalf("list followups: %v", err)
		return
	}
	t.check("list returns 200", code == http.StatusOK)
	_, hasKey := list["follow_ups"]
	t.check("list has follow_ups key", hasKey)

	code, stats, err := getJSON("/api/v1/followups/stats")
	if err != nil {
		t.fatalf("followup stats: %v", err)
		return
	}
	t.check("stats returns 200", code == http.StatusOK)
	t.check("stats decoded", stats != nil)
}

// 8. Validation: malformed input is rejected before analysis
func scenarioValidation(t *T) {
	code, _, err := postJSON("/api/v1/crisis/analyze", map[string]string{"message": "no user id"})
	if err != nil {
		t.fatalf("analyze without user: %v", err)
		return
	}
	t.check("analyze without user_id rejected", code == http.StatusBadRequest)

	code, _, err = postJSON("/api/v1/mood", map[string]interface{}{
		"user_id": userFor("validation"),
		"score":   11,
	})
	if err != nil {
		t.fatalf("mood out of range: %v", err)
		return
	}
	t.check("mood score out of range rejected", code == http.StatusBadRequest)

	code, _, err = postJSON("/api/v1/crisis/analyze/async", map[string]string{"user_id": userFor("validation")})
	if err != nil {
		t.fatalf("async without message: %v", err)
		return
	}
	t.check("async without message rejected", code == http.StatusBadRequest)
}

// 9. Health endpoint
func scenarioHealth(t *T) {
	code, body, err := getJSON("/health")
	if err != nil {
		t.fatalf("health: %v", err)
		return
	}
	t.check("health returns 200", code == http.StatusOK)
	status, _ := body["status"].(string)
	t.check("status ok", status == "ok")
}

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	apiBase = os.Getenv("API_BASE_URL")
	if apiBase == "" {
		fmt.Fprintln(os.Stderr, "ERROR: API_BASE_URL required")
		os.Exit(1)
	}
	apiBase = strings.TrimRight(apiBase, "/")
	runID = fmt.Sprintf("%d", time.Now().UnixNano())

	scenarios := []scenario{
		{"health", scenarioHealth},
		{"benign-message", scenarioBenignMessage},
		{"critical-detection", scenarioCriticalDetection},
		{"event-lifecycle", scenarioEventLifecycle},
		{"async-analysis", scenarioAsyncAnalysis},
		{"mood-tracking", scenarioMoodTracking},
		{"risk-profile", scenarioRiskProfile},
		{"followup-dashboard", scenarioFollowUpDashboard},
		{"validation", scenarioValidation},
	}

	// Filter by name if argument provided
	filter := ""
	if len(os.Args) > 1 {
		filter = os.Args[1]
	}

	totalPassed := 0
	totalFailed := 0
	scenarioResults := make([]string, 0)

	for _, s := range scenarios {
		if filter != "" && s.Name != filter {
			continue
		}

		fmt.Printf("\n========================================\n")
		fmt.Printf("SCENARIO: %s\n", s.Name)
		fmt.Printf("========================================\n")

		t := &T{name: s.Name}
		s.Fn(t)

		totalPassed += t.passed
		totalFailed += t.failed

		status := "✅"
		if t.failed > 0 {
			status = "❌"
		}
		scenarioResults = append(scenarioResults, fmt.Sprintf("  %s %s (%d passed, %d failed)", status, s.Name, t.passed, t.failed))
	}

	fmt.Printf("\n========================================\n")
	fmt.Println("SUMMARY")
	fmt.Printf("========================================\n")
	for _, r := range scenarioResults {
		fmt.Println(r)
	}
	fmt.Printf("\nTotal: %d passed, %d failed\n", totalPassed, totalFailed)

	if totalFailed > 0 {
		fmt.Println("\n❌ SOME TESTS FAILED")
		os.Exit(1)
	}
	fmt.Println("\n✅ ALL TESTS PASSED")
}
