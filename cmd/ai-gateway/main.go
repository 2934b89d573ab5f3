// Package main is the entry point for ai-gateway.
package main

import (
	"context"
	"os"

	"charm.land/fang/v2"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ai-gateway",
	Short: "Unified reverse proxy for LLM providers",
	Long: `ai-gateway is a reverse proxy that exposes a single OpenAI-compatible
surface over multiple LLM backends (OpenAI, Anthropic, GROQ, Fireworks,
Together, AWS Bedrock), handling per-provider auth, request signing,
stream translation, and request telemetry.`,
}

func main() {
	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		os.Exit(1)
	}
}
