// Package provider defines the vendor-neutral streaming interface for LLM
// backends. Each adapter (ollama, openai, anthropic, gemini, mistral) maps
// aichat's conversation types to its vendor's request envelope and
// normalizes the vendor's streaming chunks into plain text fragments,
// keeping wire details invisible to the pipeline.
package provider
