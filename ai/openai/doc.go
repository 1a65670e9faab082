// Package openai implements the ai interfaces against OpenAI-compatible
// APIs (OpenAI, Ollama, LocalAI, vLLM and similar).
//
// Model JSON output is treated as untrusted input: responses are unfenced,
// repaired and parsed defensively, and a response that never parses degrades
// to an empty extraction instead of an error.
package openai
