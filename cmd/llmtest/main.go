package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/havenmind/wellness-ai-platform/internal/crisis"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// A benign multi-turn exchange to verify the provider round-trip
	messages := []crisis.ChatMessage{
		{Role: crisis.ChatRoleUser, Content: "I've been feeling pretty low this week and I can't sleep."},
		{Role: crisis.ChatRoleAssistant, Content: "I'm sorry to hear that. Trouble sleeping can make everything feel heavier. Has anything changed recently?"},
		{Role: crisis.ChatRoleUser, Content: "Work has been rough, but talking helps a little."},
	}

	systemPrompt := []string{
		"You are a supportive mental wellness assistant. Keep responses brief and warm.",
	}

	req := crisis.LLMRequest{
		System:      systemPrompt,
		Messages:    messages,
		MaxTokens:   200,
		Temperature: 0.2,
	}

	line := strings.Repeat("=", 60)
	fmt.Println(line)
	fmt.Println("LLM Provider Test")
	fmt.Println(line)

	// Test Gemini directly
	geminiKey := os.Getenv("GEMINI_API_KEY")
	if geminiKey != "" {
		fmt.Println("\n[1] Testing Gemini directly...")
		geminiClient, err := crisis.NewGeminiLLMClient(ctx, geminiKey, os.Getenv("GEMINI_MODEL_ID"))
		if err != nil {
			fmt.Printf("    ❌ Failed to create Gemini client: %v\n", err)
		} else {
			start := time.Now()
			resp, err := geminiClient.Complete(ctx, req)
			elapsed := time.Since(start)
			if err != nil {
				fmt.Printf("    ❌ Gemini error: %v\n", err)
			} else {
				fmt.Printf("    ✅ Gemini response (%v):\n", elapsed.Round(time.Millisecond))
				fmt.Printf("    %s\n", resp.Text)
				fmt.Printf("    Tokens: in=%d, out=%d\n", resp.Usage.InputTokens, resp.Usage.OutputTokens)
			}
		}
	} else {
		fmt.Println("\n[1] Skipping Gemini test (GEMINI_API_KEY not set)")
	}

	// Test Bedrock (will likely fail due to rate limits, which is fine)
	fmt.Println("\n[2] Testing Bedrock (may fail due to rate limits)...")
	fmt.Println("    Skipping direct Bedrock test (requires AWS SDK setup)")
	fmt.Println("    Bedrock will be tested via the fallback mechanism in the full app")

	fmt.Println("\n" + line)
	fmt.Println("Test Summary")
	fmt.Println(line)
	fmt.Println("✅ If Gemini responded above, the fallback provider is working")
	fmt.Println("✅ The AI analyzer and sentiment client share this provider stack")
	fmt.Println("\nTo test the full fallback flow:")
	fmt.Println("  1. Run: docker compose up")
	fmt.Println("  2. POST a message to /api/v1/crisis/analyze")
	fmt.Println("  3. Watch logs for: 'primary LLM failed, attempting fallback'")
}
